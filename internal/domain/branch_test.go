package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostKey(t *testing.T) {
	tests := []struct {
		message string
		want    string
		wantErr bool
	}{
		{"https://example.com/a", "example.com", false},
		{"http://Sub.Example.COM:8080/x?y=1", "sub.example.com", false},
		{"https://[::1]:443/", "::1", false},
		{"mailto:someone", "", false},
		{"example.com/no-scheme", "", true},
		{"not a url", "", true},
		{"", "", true},
		{"http://[::1", "", true},
	}

	for _, tt := range tests {
		got, err := HostKey(tt.message)
		assert.Equal(t, tt.want, got, "HostKey(%q)", tt.message)
		if tt.wantErr {
			assert.Error(t, err, "HostKey(%q)", tt.message)
		} else {
			assert.NoError(t, err, "HostKey(%q)", tt.message)
		}
	}
}

func TestBranchIndexDedup(t *testing.T) {
	idx := NewBranchIndex()
	messages := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/a",
		"https://test.org/",
		"https://example.com/b",
		"https://example.com/a",
	}
	for _, m := range messages {
		_, err := idx.Index(m)
		require.NoError(t, err)
	}

	branch, ok := idx.Get("example.com")
	require.True(t, ok)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, branch.Messages)
	assert.False(t, branch.Expanded)

	for _, entry := range idx.Filter("") {
		seen := make(map[string]bool)
		for _, m := range entry.Branch.Messages {
			assert.False(t, seen[m], "duplicate %q in %s", m, entry.Key)
			seen[m] = true
		}
	}
}

func TestBranchIndexMalformedURL(t *testing.T) {
	idx := NewBranchIndex()

	key, err := idx.Index("::not-a-url")
	assert.Error(t, err)
	assert.Equal(t, "", key)

	_, err = idx.Index("::not-a-url")
	assert.Error(t, err)

	branch, ok := idx.Get("")
	require.True(t, ok, "malformed messages are still filed")
	assert.Equal(t, []string{"::not-a-url"}, branch.Messages)
}

func TestBranchIndexFilter(t *testing.T) {
	idx := NewBranchIndex()
	idx.Index("https://example.com/")
	idx.Index("https://test.org/")
	idx.Index("https://EXAMPLES.net/")

	// An indexed-but-emptied branch must never be listed.
	idx.branches["test.org"].Messages = nil

	t.Run("substring match excludes empty branches", func(t *testing.T) {
		got := idx.Filter("examp")
		keys := entryKeys(got)
		assert.Equal(t, []string{"example.com", "examples.net"}, keys)
		assert.NotContains(t, keys, "test.org")
	})

	t.Run("query is case-insensitive", func(t *testing.T) {
		assert.Equal(t, []string{"example.com", "examples.net"}, entryKeys(idx.Filter("EXAMP")))
	})

	t.Run("empty query lists all non-empty branches in first-seen order", func(t *testing.T) {
		assert.Equal(t, []string{"example.com", "examples.net"}, entryKeys(idx.Filter("")))
	})

	t.Run("returns copies", func(t *testing.T) {
		got := idx.Filter("example.com")
		require.Len(t, got, 1)
		got[0].Branch.Messages[0] = "mutated"
		branch, _ := idx.Get("example.com")
		assert.Equal(t, "https://example.com/", branch.Messages[0])
	})

	t.Run("recomputes after new messages", func(t *testing.T) {
		idx.Index("https://example.org/")
		assert.Contains(t, entryKeys(idx.Filter("examp")), "example.org")
	})
}

func TestBranchIndexToggle(t *testing.T) {
	idx := NewBranchIndex()
	idx.Index("https://example.com/")

	expanded, err := idx.Toggle("example.com")
	require.NoError(t, err)
	assert.True(t, expanded)

	expanded, err = idx.Toggle("example.com")
	require.NoError(t, err)
	assert.False(t, expanded)

	_, err = idx.Toggle("missing.com")
	assert.ErrorIs(t, err, ErrUnknownBranch)
}

func TestBranchIndexReset(t *testing.T) {
	idx := NewBranchIndex()
	idx.Index("https://example.com/")
	idx.Reset()

	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Filter(""))
}

func entryKeys(entries []BranchEntry) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys
}
