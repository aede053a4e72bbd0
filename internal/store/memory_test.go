package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, opts ...Option) Store {
		return NewMemoryStore(opts...)
	})
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	created := createIssue(t, s, "p", "a", "x")
	created.Title = "mutated by caller"

	listed, err := s.ListIssues(ctx, "p", nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "a", listed[0].Title)

	listed[0].Open = false
	again, err := s.ListIssues(ctx, "p", nil)
	require.NoError(t, err)
	assert.True(t, again[0].Open)
}
