// Package keyword provides a Bleve-backed title index for autocomplete
// suggestions.
package keyword

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/querytube/querytube/internal/models"
)

// Entry is one suggestible video.
type Entry struct {
	VideoID string `json:"id"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
}

// SuggestIndex indexes video titles and channel names for prefix-style
// autocomplete. The index is rebuilt wholesale after each embed run, so it
// lives in memory; Rebuild swaps the whole index under a lock.
type SuggestIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

func suggestMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a typed prefix
	// like "bayes" matches the literal word rather than a stemmed form.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("channel", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	im.AddDocumentMapping("video", docMapping)
	im.DefaultType = "video"
	im.DefaultMapping = docMapping

	return im
}

// NewSuggestIndex creates an empty in-memory suggestion index.
func NewSuggestIndex() (*SuggestIndex, error) {
	index, err := bleve.NewMemOnly(suggestMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion index: %w", err)
	}
	return &SuggestIndex{index: index}, nil
}

// Rebuild replaces the index contents with the given entries. The previous
// index keeps serving Suggest calls until the swap.
func (s *SuggestIndex) Rebuild(ctx context.Context, entries []Entry) error {
	fresh, err := bleve.NewMemOnly(suggestMapping())
	if err != nil {
		return fmt.Errorf("failed to create suggestion index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			_ = fresh.Close()
			return err
		}
		if err := batch.Index(e.VideoID, e); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("failed to index entry %s: %w", e.VideoID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("failed to apply suggestion batch: %w", err)
	}

	s.mu.Lock()
	old := s.index
	s.index = fresh
	s.mu.Unlock()
	return old.Close()
}

// Suggest returns up to limit title suggestions for the typed prefix. Every
// term but the last is matched as a whole word; the last term matches as a
// prefix, which is what an as-you-type box needs.
func (s *SuggestIndex) Suggest(ctx context.Context, prefix string, limit int) ([]*models.Suggestion, error) {
	terms := strings.Fields(strings.ToLower(prefix))
	if len(terms) == 0 || limit <= 0 {
		return []*models.Suggestion{}, nil
	}

	last := terms[len(terms)-1]
	titleQ := fieldPrefixQuery(terms[:len(terms)-1], last, "title")
	channelQ := fieldPrefixQuery(terms[:len(terms)-1], last, "channel")
	q := bleve.NewDisjunctionQuery(titleQ, channelQ)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"title", "channel"}

	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()

	results, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("suggestion search failed: %w", err)
	}

	out := make([]*models.Suggestion, 0, len(results.Hits))
	for _, hit := range results.Hits {
		sug := &models.Suggestion{VideoID: hit.ID, Score: hit.Score}
		if title, ok := hit.Fields["title"].(string); ok {
			sug.Title = title
		}
		if channel, ok := hit.Fields["channel"].(string); ok {
			sug.Channel = channel
		}
		out = append(out, sug)
	}
	return out, nil
}

// fieldPrefixQuery builds a conjunction requiring every complete term plus a
// prefix match for the partially typed last term, all on a single field.
func fieldPrefixQuery(complete []string, last, field string) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(complete)+1)
	for _, term := range complete {
		tq := bleve.NewTermQuery(term)
		tq.SetField(field)
		queries = append(queries, tq)
	}
	pq := bleve.NewPrefixQuery(last)
	pq.SetField(field)
	queries = append(queries, pq)
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// Count returns the number of indexed entries.
func (s *SuggestIndex) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Close closes the underlying index.
func (s *SuggestIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
