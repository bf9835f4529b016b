package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"ragserver/internal/helper"
	"ragserver/internal/models"

	"github.com/philippgille/chromem-go"
)

// ChromemStore keeps everything in an in-process chromem-go collection. It
// resets on restart; there is no persistence across process lifetimes. A
// mutex-guarded mirror of the working set backs Get and Count, which chromem
// does not expose directly.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu   sync.RWMutex
	docs map[string]models.StoredChunk
}

func NewChromemStore(collectionName string) (*ChromemStore, error) {
	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %v", err)
	}
	return &ChromemStore{
		db:         db,
		collection: c,
		docs:       make(map[string]models.StoredChunk),
	}, nil
}

func (s *ChromemStore) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	for i, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return nil, fmt.Errorf("chunk %d has no embedding", i)
		}
	}
	docs := make([]chromem.Document, 0, len(chunks))
	stored := make([]models.StoredChunk, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		id, err := helper.NewChunkID()
		if err != nil {
			return nil, err
		}
		docs = append(docs, chromem.Document{
			ID:      id,
			Content: ch.Text,
			Metadata: map[string]string{
				"source":  ch.Source,
				"part":    strconv.Itoa(ch.Part),
				"context": ch.Context,
			},
			Embedding: ch.Embedding,
		})
		stored = append(stored, models.StoredChunk{ID: id, Chunk: ch})
		ids = append(ids, id)
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %v", err)
	}
	s.mu.Lock()
	for _, sc := range stored {
		s.docs[sc.ID] = sc
	}
	s.mu.Unlock()
	return ids, nil
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int, contextFilter string) ([]models.RetrievedChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	matching := 0
	for _, sc := range s.docs {
		if contextFilter == "" || sc.Context == contextFilter {
			matching++
		}
	}
	s.mu.RUnlock()
	if matching == 0 {
		return nil, nil
	}
	if k > matching {
		k = matching
	}

	opts := chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       k,
	}
	if contextFilter != "" {
		opts.Where = map[string]string{"context": contextFilter}
	}
	results, err := s.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	retrieved := make([]models.RetrievedChunk, 0, len(results))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range results {
		sc, ok := s.docs[r.ID]
		if !ok {
			continue // deleted between query and lookup
		}
		retrieved = append(retrieved, models.RetrievedChunk{
			StoredChunk: sc,
			Distance:    1 - r.Similarity,
		})
	}
	return retrieved, nil
}

func (s *ChromemStore) Get(ctx context.Context, contextFilter string) ([]models.StoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StoredChunk
	for _, sc := range s.docs {
		if contextFilter == "" || sc.Context == contextFilter {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Context != out[j].Context {
			return out[i].Context < out[j].Context
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Part < out[j].Part
	})
	return out, nil
}

func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	present := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.docs[id]; ok {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, nil, nil, present...); err != nil {
		return fmt.Errorf("failed to delete documents: %v", err)
	}
	for _, id := range present {
		delete(s.docs, id)
	}
	return nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *ChromemStore) Ping(ctx context.Context) error { return nil }

func (s *ChromemStore) Close() error { return nil }
