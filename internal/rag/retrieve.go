package rag

import (
	"context"
	"fmt"
	"strings"

	"ragserver/internal/models"
)

// Retrieve embeds the query, pulls the k most similar chunks and asks the
// generation provider to answer from that context alone. An empty result set
// is a normal outcome with a fixed answer, not an error.
func (r *RAG) Retrieve(ctx context.Context, query string, k int, contextFilter string) (models.RetrieveResult, error) {
	if strings.TrimSpace(query) == "" {
		return models.RetrieveResult{}, &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return models.RetrieveResult{}, &ProviderError{Provider: "embedding", Err: err}
	}
	results, err := r.store.Query(ctx, queryVector, k, contextFilter)
	if err != nil {
		return models.RetrieveResult{}, &StoreError{Op: "query", Err: err}
	}
	if len(results) == 0 {
		return models.RetrieveResult{
			Answer:    models.NoResultsAnswer,
			Retrieved: []models.RetrievedChunk{},
		}, nil
	}

	blocks := make([]string, 0, len(results))
	for _, res := range results {
		blocks = append(blocks, fmt.Sprintf("[%s | part %d]\n%s", res.Source, res.Part, res.Text))
	}
	prompt := fmt.Sprintf(models.AnswerPromptTemplate, strings.Join(blocks, models.ContextSeparator), query)

	answer, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return models.RetrieveResult{}, &ProviderError{Provider: "generation", Err: err}
	}
	return models.RetrieveResult{Answer: answer, Retrieved: results}, nil
}
