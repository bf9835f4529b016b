package vectorstore

import (
	"context"
	"fmt"
	"math"

	"ragserver/internal/config"
	"ragserver/internal/models"
)

// Store is the uniform interface over the configured vector backend. The
// handle is created once at startup and shared by all requests; backends must
// tolerate concurrent calls (chromem and postgres delegate to the library or
// server, the faiss helper is serialized in the adapter).
type Store interface {
	// Add assigns each chunk a fresh unique id and persists the whole batch,
	// or fails the whole batch.
	Add(ctx context.Context, chunks []models.Chunk) ([]string, error)
	// Query returns up to k chunks ordered by ascending cosine distance,
	// optionally restricted to one context.
	Query(ctx context.Context, embedding []float32, k int, contextFilter string) ([]models.RetrievedChunk, error)
	// Get returns every stored chunk matching the filter, with ids.
	Get(ctx context.Context, contextFilter string) ([]models.StoredChunk, error)
	// Delete removes exactly the given ids; absent ids are ignored.
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Replacer is an optional capability for backends that replace a working set
// in one rebuild instead of separate delete and add passes.
type Replacer interface {
	Replace(ctx context.Context, oldIDs []string, chunks []models.Chunk) ([]string, error)
}

// New creates the store selected by cfg.Backend.
func New(ctx context.Context, cfg *config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "chromem":
		return NewChromemStore("rag_chunks")
	case "postgres":
		return NewPostgresStore(ctx, &cfg.Postgres, cfg.Dimension)
	case "faiss":
		return NewFaissStore(&cfg.Faiss)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s", cfg.Backend)
	}
}

// cosineDistance is 1 - cosine similarity; smaller means more similar.
func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
