package rag

import (
	"context"
	"sort"
	"strings"

	"ragserver/internal/chunker"
	"ragserver/internal/models"
	"ragserver/internal/vectorstore"

	"github.com/rs/zerolog/log"
)

// Rechunk reconstructs every stored document in the scope from its chunks,
// re-splits the text at the new target length and swaps the old chunks for
// the new ones. Backends that can rebuild in one pass do so via the Replacer
// capability; everything else gets an explicit delete-then-add, whose window
// is visible to concurrent readers of the same scope.
func (r *RAG) Rechunk(ctx context.Context, chunkWords int, contextFilter string) (models.RechunkResult, error) {
	if chunkWords <= 0 {
		return models.RechunkResult{}, &ValidationError{Field: "chunkLength", Reason: "must be a positive integer"}
	}

	unlock := r.lockContext(contextFilter)
	defer unlock()

	existing, err := r.store.Get(ctx, contextFilter)
	if err != nil {
		return models.RechunkResult{}, &StoreError{Op: "get", Err: err}
	}
	if len(existing) == 0 {
		return models.RechunkResult{}, nil
	}

	// Group by (context, source) and rebuild each document in part order. The
	// reconstruction is lossy: the chunker normalized whitespace at sentence
	// boundaries, so joining with single spaces only approximates the source.
	type docKey struct {
		context string
		source  string
	}
	groups := make(map[docKey][]models.StoredChunk)
	var order []docKey
	for _, sc := range existing {
		key := docKey{context: sc.Context, source: sc.Source}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], sc)
	}

	oldIDs := make([]string, 0, len(existing))
	for _, sc := range existing {
		oldIDs = append(oldIDs, sc.ID)
	}

	var newChunks []models.Chunk
	for _, key := range order {
		group := groups[key]
		sort.Slice(group, func(i, j int) bool { return group[i].Part < group[j].Part })
		texts := make([]string, len(group))
		for i, sc := range group {
			texts[i] = sc.Text
		}
		reconstructed := strings.Join(texts, " ")
		for i, part := range chunker.Chunk(reconstructed, chunkWords) {
			newChunks = append(newChunks, models.Chunk{
				Text:    part,
				Source:  key.source,
				Part:    i,
				Context: key.context,
			})
		}
	}

	if len(newChunks) > 0 {
		texts := make([]string, len(newChunks))
		for i, ch := range newChunks {
			texts[i] = ch.Text
		}
		vectors, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return models.RechunkResult{}, &ProviderError{Provider: "embedding", Err: err}
		}
		for i := range newChunks {
			newChunks[i].Embedding = vectors[i]
		}
	}

	if replacer, ok := r.store.(vectorstore.Replacer); ok {
		if _, err := replacer.Replace(ctx, oldIDs, newChunks); err != nil {
			return models.RechunkResult{}, &StoreError{Op: "replace", Err: err}
		}
	} else {
		if err := r.store.Delete(ctx, oldIDs); err != nil {
			return models.RechunkResult{}, &StoreError{Op: "delete", Err: err}
		}
		if _, err := r.store.Add(ctx, newChunks); err != nil {
			return models.RechunkResult{}, &StoreError{Op: "add", Err: err}
		}
	}
	log.Info().
		Int("oldChunks", len(existing)).
		Int("newChunks", len(newChunks)).
		Str("context", contextFilter).
		Int("chunkWords", chunkWords).
		Msg("rechunked stored documents")
	return models.RechunkResult{OldChunks: len(existing), NewChunks: len(newChunks)}, nil
}
