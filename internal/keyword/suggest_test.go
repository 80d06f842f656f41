package keyword

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSuggestIndex(t *testing.T, entries []Entry) *SuggestIndex {
	t.Helper()
	idx, err := NewSuggestIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Rebuild(context.Background(), entries))
	return idx
}

func TestSuggestPrefixMatch(t *testing.T) {
	idx := newTestSuggestIndex(t, []Entry{
		{VideoID: "v1", Title: "Bayesian Statistics Explained", Channel: "MathChannel"},
		{VideoID: "v2", Title: "Baking Sourdough Bread", Channel: "KitchenLab"},
		{VideoID: "v3", Title: "Introduction to Bayes Theorem", Channel: "MathChannel"},
	})

	got, err := idx.Suggest(context.Background(), "baye", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []string{got[0].VideoID, got[1].VideoID}
	assert.ElementsMatch(t, []string{"v1", "v3"}, ids)
	for _, s := range got {
		assert.NotEmpty(t, s.Title)
	}
}

func TestSuggestMultiTermRequiresAllTerms(t *testing.T) {
	idx := newTestSuggestIndex(t, []Entry{
		{VideoID: "v1", Title: "Go Concurrency Patterns", Channel: "GopherTalks"},
		{VideoID: "v2", Title: "Go Garbage Collector Deep Dive", Channel: "GopherTalks"},
		{VideoID: "v3", Title: "Concurrency in Java", Channel: "JVMTalks"},
	})

	got, err := idx.Suggest(context.Background(), "go conc", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].VideoID)
}

func TestSuggestMatchesChannel(t *testing.T) {
	idx := newTestSuggestIndex(t, []Entry{
		{VideoID: "v1", Title: "Weekly News", Channel: "TechReport"},
		{VideoID: "v2", Title: "Cooking Basics", Channel: "KitchenLab"},
	})

	got, err := idx.Suggest(context.Background(), "techrep", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].VideoID)
	assert.Equal(t, "TechReport", got[0].Channel)
}

func TestSuggestEmptyPrefixAndLimit(t *testing.T) {
	idx := newTestSuggestIndex(t, []Entry{
		{VideoID: "v1", Title: "Something", Channel: "Ch"},
	})

	got, err := idx.Suggest(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.Suggest(context.Background(), "some", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestLimit(t *testing.T) {
	entries := []Entry{
		{VideoID: "v1", Title: "Rust Basics Part One", Channel: "C"},
		{VideoID: "v2", Title: "Rust Basics Part Two", Channel: "C"},
		{VideoID: "v3", Title: "Rust Basics Part Three", Channel: "C"},
	}
	idx := newTestSuggestIndex(t, entries)

	got, err := idx.Suggest(context.Background(), "rust", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRebuildReplacesContents(t *testing.T) {
	idx := newTestSuggestIndex(t, []Entry{
		{VideoID: "old", Title: "Old Video", Channel: "C"},
	})

	require.NoError(t, idx.Rebuild(context.Background(), []Entry{
		{VideoID: "new", Title: "New Video", Channel: "C"},
	}))

	got, err := idx.Suggest(context.Background(), "old", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.Suggest(context.Background(), "new", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].VideoID)

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}
