package domain

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ErrUnknownBranch is returned when a branch key has never been indexed
var ErrUnknownBranch = errors.New("unknown branch")

// Branch groups the distinct messages seen for one hostname
type Branch struct {
	Messages []string `json:"messages"`
	Expanded bool     `json:"expanded"`
}

// BranchEntry is one row of the filtered branch view
type BranchEntry struct {
	Key    string `json:"key"`
	Branch Branch `json:"value"`
}

// BranchIndex files raw messages under the hostname they point at.
// Branches are kept in first-seen order. Not safe for concurrent use.
type BranchIndex struct {
	branches map[string]*Branch
	order    []string
}

// NewBranchIndex creates an empty index
func NewBranchIndex() *BranchIndex {
	return &BranchIndex{branches: make(map[string]*Branch)}
}

// HostKey extracts the branch key for message. Anything that does not
// parse as an absolute URL yields the empty key and a non-nil error.
func HostKey(message string) (string, error) {
	u, err := url.Parse(message)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", message, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("invalid url %q: missing scheme", message)
	}
	return strings.ToLower(u.Hostname()), nil
}

// Index files message under its hostname key. The message is always
// stored; the returned error only reports that the key fell back to "".
func (b *BranchIndex) Index(message string) (string, error) {
	key, err := HostKey(message)

	branch, ok := b.branches[key]
	if !ok {
		b.branches[key] = &Branch{Messages: []string{message}}
		b.order = append(b.order, key)
		return key, err
	}

	// Full scan on purpose: dedup holds over the branch's entire history.
	if !slices.Contains(branch.Messages, message) {
		branch.Messages = append(branch.Messages, message)
	}
	return key, err
}

// Filter returns non-empty branches whose key contains query, ignoring case
func (b *BranchIndex) Filter(query string) []BranchEntry {
	q := strings.ToLower(query)
	entries := make([]BranchEntry, 0, len(b.order))
	for _, key := range b.order {
		branch := b.branches[key]
		if len(branch.Messages) == 0 || !strings.Contains(strings.ToLower(key), q) {
			continue
		}
		entries = append(entries, BranchEntry{
			Key: key,
			Branch: Branch{
				Messages: slices.Clone(branch.Messages),
				Expanded: branch.Expanded,
			},
		})
	}
	return entries
}

// Get returns a copy of the branch stored under key
func (b *BranchIndex) Get(key string) (Branch, bool) {
	branch, ok := b.branches[key]
	if !ok {
		return Branch{}, false
	}
	return Branch{Messages: slices.Clone(branch.Messages), Expanded: branch.Expanded}, true
}

// Toggle flips the expanded flag of key and returns the new value
func (b *BranchIndex) Toggle(key string) (bool, error) {
	branch, ok := b.branches[key]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownBranch, key)
	}
	branch.Expanded = !branch.Expanded
	return branch.Expanded, nil
}

// Len returns the number of branches, including empty ones
func (b *BranchIndex) Len() int { return len(b.order) }

// Reset drops every branch
func (b *BranchIndex) Reset() {
	b.branches = make(map[string]*Branch)
	b.order = nil
}
