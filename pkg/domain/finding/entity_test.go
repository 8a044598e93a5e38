package finding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakwatchio/api/pkg/domain/shared"
)

func TestNew(t *testing.T) {
	scanID := shared.NewID()

	t.Run("creates unreviewed finding", func(t *testing.T) {
		f, err := New(scanID, "src/config.py", 42, "AKIA1234", "AWS Access Key", SeverityHigh, 0.97, "aws_key = AKIA1234")
		require.NoError(t, err)

		assert.Equal(t, StatusNone, f.Status)
		assert.False(t, f.IsException)
		assert.Nil(t, f.RefutedAt)
		assert.False(t, f.IsManual())
	})

	t.Run("validates inputs", func(t *testing.T) {
		_, err := New(scanID, "", 1, "v", "t", SeverityHigh, 0.5, "")
		assert.True(t, shared.IsValidation(err))

		_, err = New(scanID, "f", 1, "", "t", SeverityHigh, 0.5, "")
		assert.True(t, shared.IsValidation(err))

		_, err = New(scanID, "f", 1, "v", "t", Severity("Critical"), 0.5, "")
		assert.True(t, shared.IsValidation(err))

		_, err = New(scanID, "f", 1, "v", "t", SeverityHigh, 1.5, "")
		assert.True(t, shared.IsValidation(err))
	})
}

func TestNewManual(t *testing.T) {
	scanID := shared.NewID()

	f, err := NewManual(scanID, "docs/setup.md", 10, "hardcoded password", SeverityPotential, "bob")
	require.NoError(t, err)

	assert.Equal(t, TypeManual, f.Type)
	assert.Equal(t, "hardcoded password"+ManualValueSuffix, f.RawValue)
	assert.True(t, f.IsManual())
	assert.Equal(t, StatusConfirmed, f.Status)
	assert.Equal(t, "bob", f.ReviewedBy)

	// Suffix is not doubled when already present.
	f2, err := NewManual(scanID, "docs/setup.md", 10, "secret"+ManualValueSuffix, SeverityHigh, "bob")
	require.NoError(t, err)
	assert.Equal(t, "secret"+ManualValueSuffix, f2.RawValue)
}

func TestIdentity(t *testing.T) {
	a, _ := New(shared.NewID(), "src/a.go", 7, "tok_123", "Generic Token", SeverityHigh, 0.9, "ctx one")
	b, _ := New(shared.NewID(), "src/a.go", 7, "tok_123", "Generic Token", SeverityPotential, 0.2, "ctx two")

	// Identity ignores scan, severity, confidence and context.
	assert.Equal(t, a.Identity(), b.Identity())

	moved, _ := New(shared.NewID(), "src/a.go", 8, "tok_123", "Generic Token", SeverityHigh, 0.9, "")
	assert.NotEqual(t, a.Identity(), moved.Identity())
}

func TestReviewDecisions(t *testing.T) {
	t.Run("confirm requires reviewer", func(t *testing.T) {
		f, _ := New(shared.NewID(), "f", 1, "v", "t", SeverityHigh, 0.5, "")
		assert.Error(t, f.Confirm(""))

		require.NoError(t, f.Confirm("alice"))
		assert.Equal(t, StatusConfirmed, f.Status)
		assert.False(t, f.IsException)
	})

	t.Run("refute sets exception fields", func(t *testing.T) {
		f, _ := New(shared.NewID(), "f", 1, "v", "t", SeverityHigh, 0.5, "")
		require.NoError(t, f.Refute("alice", "test fixture"))

		assert.Equal(t, StatusRefuted, f.Status)
		assert.True(t, f.IsException)
		assert.Equal(t, "test fixture", f.ExceptionComment)
		require.NotNil(t, f.RefutedAt)
	})

	t.Run("confirm after refute clears exception state", func(t *testing.T) {
		f, _ := New(shared.NewID(), "f", 1, "v", "t", SeverityHigh, 0.5, "")
		require.NoError(t, f.Refute("alice", "oops"))
		require.NoError(t, f.Confirm("bob"))

		assert.False(t, f.IsException)
		assert.Empty(t, f.ExceptionComment)
		assert.Nil(t, f.RefutedAt)
		assert.Equal(t, "bob", f.ReviewedBy)
	})

	t.Run("clear resets everything", func(t *testing.T) {
		f, _ := New(shared.NewID(), "f", 1, "v", "t", SeverityHigh, 0.5, "")
		require.NoError(t, f.Refute("alice", "oops"))

		f.ClearStatus()
		assert.Equal(t, StatusNone, f.Status)
		assert.False(t, f.IsException)
		assert.Empty(t, f.ReviewedBy)
		assert.Nil(t, f.RefutedAt)
	})
}

func TestInheritDecision(t *testing.T) {
	scanID := shared.NewID()

	t.Run("refuted carries comment, timestamp and severity", func(t *testing.T) {
		prior, _ := New(scanID, "f", 1, "v", "t", SeverityHigh, 0.5, "")
		require.NoError(t, prior.Refute("alice", "known fixture"))
		prior.Severity = SeverityPotential // reviewer downgraded it

		fresh, _ := New(shared.NewID(), "f", 1, "v", "t", SeverityHigh, 0.9, "")
		fresh.InheritDecision(prior)

		assert.Equal(t, StatusRefuted, fresh.Status)
		assert.True(t, fresh.IsException)
		assert.Equal(t, "known fixture", fresh.ExceptionComment)
		assert.Equal(t, prior.RefutedAt, fresh.RefutedAt)
		assert.Equal(t, "alice", fresh.ReviewedBy)
		assert.Equal(t, SeverityPotential, fresh.Severity)
	})

	t.Run("confirmed carries reviewer, clears comment and timestamp", func(t *testing.T) {
		prior, _ := New(scanID, "f", 1, "v", "t", SeverityPotential, 0.5, "")
		require.NoError(t, prior.Confirm("bob"))
		prior.Severity = SeverityHigh

		fresh, _ := New(shared.NewID(), "f", 1, "v", "t", SeverityPotential, 0.9, "")
		fresh.InheritDecision(prior)

		assert.Equal(t, StatusConfirmed, fresh.Status)
		assert.False(t, fresh.IsException)
		assert.Empty(t, fresh.ExceptionComment)
		assert.Nil(t, fresh.RefutedAt)
		assert.Equal(t, "bob", fresh.ReviewedBy)
		assert.Equal(t, SeverityHigh, fresh.Severity)
	})

	t.Run("unreviewed prior changes nothing", func(t *testing.T) {
		prior, _ := New(scanID, "f", 1, "v", "t", SeverityHigh, 0.5, "")
		fresh, _ := New(shared.NewID(), "f", 1, "v", "t", SeverityPotential, 0.9, "")

		fresh.InheritDecision(prior)
		assert.Equal(t, StatusNone, fresh.Status)
		assert.Equal(t, SeverityPotential, fresh.Severity)
	})
}

func TestCloneFor(t *testing.T) {
	src, _ := NewManual(shared.NewID(), "f", 1, "v", SeverityHigh, "alice")
	target := shared.NewID()

	clone := src.CloneFor(target)

	assert.NotEqual(t, src.ID, clone.ID)
	assert.Equal(t, target, clone.ScanID)
	assert.Equal(t, src.Identity(), clone.Identity())
	assert.Equal(t, src.Status, clone.Status)
	assert.Equal(t, src.ReviewedBy, clone.ReviewedBy)
}
