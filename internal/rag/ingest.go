package rag

import (
	"context"
	"os"

	"ragserver/internal/chunker"
	"ragserver/internal/helper"
	"ragserver/internal/models"
	"ragserver/internal/parser"

	"github.com/rs/zerolog/log"
)

// Ingest reads every staged upload, chunks it, embeds all chunks in one
// batched call and stores them under one context tag. Files that cannot be
// read are skipped with a warning; only a batch yielding zero chunks overall
// is an error. Staged files are removed on success and failure alike.
func (r *RAG) Ingest(ctx context.Context, files []models.UploadedFile, contextTag string) (models.IngestResult, error) {
	if len(files) == 0 {
		return models.IngestResult{}, &ValidationError{Field: "files", Reason: "at least one file is required"}
	}
	if contextTag == "" {
		contextTag = helper.NewContextID()
	}

	var chunks []models.Chunk
	for _, f := range files {
		text, err := parser.ExtractText(f.Path, f.Name)
		if rmErr := os.Remove(f.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("file", f.Name).Msg("failed to remove staged upload")
		}
		if err != nil {
			log.Warn().Err(err).Str("file", f.Name).Msg("skipping unreadable upload")
			continue
		}
		for i, part := range chunker.Chunk(text, r.chunkWords) {
			chunks = append(chunks, models.Chunk{
				Text:    part,
				Source:  f.Name,
				Part:    i,
				Context: contextTag,
			})
		}
	}
	if len(chunks) == 0 {
		return models.IngestResult{}, &NoContentError{Reason: "no extractable content in the uploaded files"}
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return models.IngestResult{}, &ProviderError{Provider: "embedding", Err: err}
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if _, err := r.store.Add(ctx, chunks); err != nil {
		return models.IngestResult{}, &StoreError{Op: "add", Err: err}
	}
	log.Info().Int("chunks", len(chunks)).Str("context", contextTag).Msg("ingested upload batch")
	return models.IngestResult{Chunks: len(chunks), Context: contextTag}, nil
}
