package rag

import (
	"context"
	"sync"

	"ragserver/internal/vectorstore"
)

// DefaultTopK is the result count used when a query does not specify one.
const DefaultTopK = 5

// Embedder turns texts into dense vectors, one per input, order preserved.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RAG wires the chunker, the provider gateways and the vector store into the
// ingestion, retrieval and rechunk workflows. All dependencies are injected;
// the struct holds no other state than the per-context rechunk locks.
type RAG struct {
	embedder   Embedder
	generator  Generator
	store      vectorstore.Store
	chunkWords int

	locks sync.Map // context tag -> *sync.Mutex
}

// New builds the workflow service. chunkWords is the default chunk target for
// ingestion.
func New(embedder Embedder, generator Generator, store vectorstore.Store, chunkWords int) *RAG {
	return &RAG{
		embedder:   embedder,
		generator:  generator,
		store:      store,
		chunkWords: chunkWords,
	}
}

// lockContext serializes rechunk passes over one context scope. An empty tag
// locks the global scope. This narrows, but does not close, the window in
// which concurrent readers can observe a half-replaced document.
func (r *RAG) lockContext(tag string) func() {
	key := tag
	if key == "" {
		key = "\x00all"
	}
	v, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
