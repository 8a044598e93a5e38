package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakwatchio/api/pkg/domain/shared"
)

func TestNewScan(t *testing.T) {
	t.Run("creates pending scan", func(t *testing.T) {
		sc, err := NewScan("payments", RefTypeBranch, "main", "alice")
		require.NoError(t, err)

		assert.Equal(t, StatusPending, sc.Status)
		assert.Equal(t, "payments", sc.ProjectName)
		assert.Equal(t, "main", sc.Ref)
		assert.Equal(t, "alice", sc.Initiator)
		assert.False(t, sc.ID.IsZero())
		assert.Nil(t, sc.StartedAt)
		assert.Nil(t, sc.CompletedAt)
	})

	t.Run("rejects empty project name", func(t *testing.T) {
		_, err := NewScan("", RefTypeBranch, "main", "")
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("rejects invalid ref type", func(t *testing.T) {
		_, err := NewScan("payments", RefType("twig"), "main", "")
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("rejects empty ref", func(t *testing.T) {
		_, err := NewScan("payments", RefTypeTag, "", "")
		assert.True(t, shared.IsValidation(err))
	})
}

func TestScanTransitions(t *testing.T) {
	t.Run("pending to running records start time and resolved ref", func(t *testing.T) {
		sc, _ := NewScan("payments", RefTypeBranch, "main", "")

		require.NoError(t, sc.MarkRunning("a1b2c3d4"))
		assert.Equal(t, StatusRunning, sc.Status)
		assert.Equal(t, "a1b2c3d4", sc.Ref)
		require.NotNil(t, sc.StartedAt)
	})

	t.Run("empty resolved ref keeps original", func(t *testing.T) {
		sc, _ := NewScan("payments", RefTypeBranch, "main", "")

		require.NoError(t, sc.MarkRunning(""))
		assert.Equal(t, "main", sc.Ref)
	})

	t.Run("running to completed", func(t *testing.T) {
		sc, _ := NewScan("payments", RefTypeBranch, "main", "")
		require.NoError(t, sc.MarkRunning(""))

		require.NoError(t, sc.MarkCompleted())
		assert.Equal(t, StatusCompleted, sc.Status)
		require.NotNil(t, sc.CompletedAt)
		assert.True(t, sc.IsFinished())
	})

	t.Run("cannot complete a pending scan", func(t *testing.T) {
		sc, _ := NewScan("payments", RefTypeBranch, "main", "")
		assert.Error(t, sc.MarkCompleted())
	})

	t.Run("failed carries a message with a default", func(t *testing.T) {
		sc, _ := NewScan("payments", RefTypeBranch, "main", "")
		require.NoError(t, sc.MarkFailed("Queue full"))
		assert.Equal(t, "Queue full", sc.ErrorMessage)

		sc2, _ := NewScan("payments", RefTypeBranch, "main", "")
		require.NoError(t, sc2.MarkFailed(""))
		assert.NotEmpty(t, sc2.ErrorMessage)
	})

	t.Run("timeout only from running and leaves no message", func(t *testing.T) {
		sc, _ := NewScan("payments", RefTypeBranch, "main", "")
		assert.Error(t, sc.MarkTimeout())

		require.NoError(t, sc.MarkRunning(""))
		require.NoError(t, sc.MarkTimeout())
		assert.Equal(t, StatusTimeout, sc.Status)
		assert.Empty(t, sc.ErrorMessage)
	})

	t.Run("terminal states are never resurrected", func(t *testing.T) {
		for _, setup := range []func(*Scan){
			func(s *Scan) { _ = s.MarkRunning(""); _ = s.MarkCompleted() },
			func(s *Scan) { _ = s.MarkFailed("x") },
			func(s *Scan) { _ = s.MarkRunning(""); _ = s.MarkTimeout() },
		} {
			sc, _ := NewScan("payments", RefTypeBranch, "main", "")
			setup(sc)
			before := sc.Status

			assert.Error(t, sc.MarkRunning(""))
			assert.Error(t, sc.MarkCompleted())
			assert.Error(t, sc.MarkFailed("y"))
			assert.Error(t, sc.MarkTimeout())
			assert.Equal(t, before, sc.Status)
		}
	})
}

func TestScanSetRepoCommit(t *testing.T) {
	sc, _ := NewScan("payments", RefTypeBranch, "main", "")

	sc.SetRepoCommit("")
	assert.Empty(t, sc.RepoCommit)

	sc.SetRepoCommit("abc123")
	assert.Equal(t, "abc123", sc.RepoCommit)

	// Set once: later callbacks never reset it.
	sc.SetRepoCommit("def456")
	assert.Equal(t, "abc123", sc.RepoCommit)
}

func TestScanSetProgress(t *testing.T) {
	sc, _ := NewScan("payments", RefTypeBranch, "main", "")

	sc.SetProgress(120, 3, []string{"vendor/a", "vendor/b", "vendor/c"})
	sc.SetProgress(250, 5, []string{"vendor/a"})

	// Progress replaces, never accumulates.
	assert.Equal(t, 250, sc.FilesScanned)
	assert.Equal(t, 5, sc.ExcludedFilesCount)
	assert.Len(t, sc.ExcludedFiles, 1)
}

func TestStatusValidity(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusTimeout} {
		assert.True(t, s.IsValid(), s.String())
	}
	assert.False(t, Status("queued").IsValid())

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusTimeout.IsTerminal())
}
