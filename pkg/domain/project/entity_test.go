package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakwatchio/api/pkg/domain/shared"
)

func TestNew(t *testing.T) {
	t.Run("normalizes the repository url", func(t *testing.T) {
		p, err := New("payments", "https://Git.Example.COM/payments.git", "alice")
		require.NoError(t, err)
		assert.Equal(t, "https://git.example.com/payments", p.RepoURL)
		assert.False(t, p.ID.IsZero())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := New("", "https://git.example.com/x", "")
		assert.True(t, shared.IsValidation(err))
	})
}

func TestNormalizeRepoURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://git.example.com/payments.git", "https://git.example.com/payments"},
		{"https://git.example.com/payments/", "https://git.example.com/payments"},
		{"https://GIT.EXAMPLE.COM/Payments", "https://git.example.com/Payments"},
		{"https://git.example.com/payments?ref=main#readme", "https://git.example.com/payments"},
	}
	for _, tc := range cases {
		got, err := NormalizeRepoURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "not a url", "/relative/path"} {
		_, err := NormalizeRepoURL(bad)
		assert.True(t, shared.IsValidation(err), bad)
	}
}
