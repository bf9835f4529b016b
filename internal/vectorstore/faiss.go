package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"

	"ragserver/internal/config"
	"ragserver/internal/helper"
	"ragserver/internal/models"

	"github.com/rs/zerolog/log"
)

// FaissStore indexes vectors through an external helper process that owns a
// faiss index on disk. The helper only supports a full index rebuild from a
// payload file and a point query over argv, so the adapter keeps the complete
// working set (ids and embeddings included) in memory, persisted alongside the
// helper's own files, and rewrites the whole index on every mutation. Helper
// invocations are serialized; the process is not safe for concurrent use.
type FaissStore struct {
	python string
	script string
	dir    string

	mu     sync.Mutex
	chunks []models.StoredChunk
}

const (
	workingSetFile = "chunks.json"
	payloadFile    = "payload.json"
	indexFile      = "faiss.index"
	metaFile       = "meta.json"
)

type faissChunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Part      int       `json:"part"`
	Context   string    `json:"context"`
	Embedding []float32 `json:"embedding"`
}

type payloadChunk struct {
	Text      string         `json:"text"`
	Metadata  chunkMetadata  `json:"metadata"`
	Context   string         `json:"context"`
	Embedding []float32      `json:"embedding"`
}

type chunkMetadata struct {
	Source string `json:"source"`
	Part   int    `json:"part"`
}

type queryResult struct {
	Text     string        `json:"text"`
	Metadata chunkMetadata `json:"metadata"`
	Context  string        `json:"context"`
}

func NewFaissStore(cfg *config.FaissConfig) (*FaissStore, error) {
	if err := helper.CreateFolder(cfg.Dir); err != nil {
		return nil, err
	}
	s := &FaissStore{python: cfg.Python, script: cfg.Script, dir: cfg.Dir}
	if err := s.loadWorkingSet(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FaissStore) loadWorkingSet() error {
	data, err := os.ReadFile(filepath.Join(s.dir, workingSetFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read working set: %w", err)
	}
	var saved []faissChunk
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("failed to parse working set: %w", err)
	}
	for _, fc := range saved {
		s.chunks = append(s.chunks, models.StoredChunk{
			ID: fc.ID,
			Chunk: models.Chunk{
				Text:      fc.Text,
				Source:    fc.Source,
				Part:      fc.Part,
				Context:   fc.Context,
				Embedding: fc.Embedding,
			},
		})
	}
	log.Debug().Int("chunks", len(s.chunks)).Msg("loaded faiss working set")
	return nil
}

// rebuild asks the helper to rebuild the index from scratch and, only once
// that succeeds, persists the working set. The order matters: a failed batch
// must not be resurrected from chunks.json on the next startup. Callers hold
// s.mu.
func (s *FaissStore) rebuild(ctx context.Context) error {
	saved := make([]faissChunk, 0, len(s.chunks))
	payload := make([]payloadChunk, 0, len(s.chunks))
	for _, sc := range s.chunks {
		saved = append(saved, faissChunk{
			ID:        sc.ID,
			Text:      sc.Text,
			Source:    sc.Source,
			Part:      sc.Part,
			Context:   sc.Context,
			Embedding: sc.Embedding,
		})
		payload = append(payload, payloadChunk{
			Text:      sc.Text,
			Metadata:  chunkMetadata{Source: sc.Source, Part: sc.Part},
			Context:   sc.Context,
			Embedding: sc.Embedding,
		})
	}
	if len(s.chunks) == 0 {
		// The helper cannot build an empty index; drop its files instead.
		_ = os.Remove(filepath.Join(s.dir, indexFile))
		_ = os.Remove(filepath.Join(s.dir, metaFile))
		return writeJSONFile(filepath.Join(s.dir, workingSetFile), saved)
	}
	payloadPath := filepath.Join(s.dir, payloadFile)
	if err := writeJSONFile(payloadPath, map[string]interface{}{"chunks": payload}); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, s.python, s.script, "index", payloadPath, s.dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("index helper failed: %v: %s", err, bytes.TrimSpace(out))
	}
	if err := writeJSONFile(filepath.Join(s.dir, workingSetFile), saved); err != nil {
		return err
	}
	log.Debug().Int("chunks", len(s.chunks)).Msg("rebuilt faiss index")
	return nil
}

func (s *FaissStore) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.chunks
	ids := make([]string, 0, len(chunks))
	next := make([]models.StoredChunk, len(prev), len(prev)+len(chunks))
	copy(next, prev)
	for _, ch := range chunks {
		id, err := helper.NewChunkID()
		if err != nil {
			return nil, err
		}
		next = append(next, models.StoredChunk{ID: id, Chunk: ch})
		ids = append(ids, id)
	}
	s.chunks = next
	if err := s.rebuild(ctx); err != nil {
		s.chunks = prev
		return nil, err
	}
	return ids, nil
}

func (s *FaissStore) Query(ctx context.Context, embedding []float32, k int, contextFilter string) ([]models.RetrievedChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		return nil, nil
	}
	// The helper neither filters by context nor reports distances, so fetch
	// enough neighbors to filter locally and rank by cosine distance here.
	fetch := k
	if contextFilter != "" || fetch > len(s.chunks) {
		fetch = len(s.chunks)
	}
	req, err := json.Marshal(map[string]interface{}{
		"embedding": embedding,
		"k":         fetch,
		"context":   contextFilter,
	})
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, s.python, s.script, "query", string(req), s.dir)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("query helper failed: %v", err)
	}
	results, err := parseQueryOutput(out)
	if err != nil {
		return nil, err
	}

	// The helper's meta carries no ids, so results map back to the working
	// set by (context, source, part). If the same filename is ingested twice
	// into one context those positions collide and the later chunk shadows
	// the earlier one in query results.
	byPosition := make(map[string]models.StoredChunk, len(s.chunks))
	for _, sc := range s.chunks {
		byPosition[positionKey(sc.Context, sc.Source, sc.Part)] = sc
	}
	retrieved := make([]models.RetrievedChunk, 0, len(results))
	for _, r := range results {
		sc, ok := byPosition[positionKey(r.Context, r.Metadata.Source, r.Metadata.Part)]
		if !ok {
			continue
		}
		if contextFilter != "" && sc.Context != contextFilter {
			continue
		}
		retrieved = append(retrieved, models.RetrievedChunk{
			StoredChunk: sc,
			Distance:    cosineDistance(embedding, sc.Embedding),
		})
	}
	sort.Slice(retrieved, func(i, j int) bool { return retrieved[i].Distance < retrieved[j].Distance })
	if len(retrieved) > k {
		retrieved = retrieved[:k]
	}
	return retrieved, nil
}

func (s *FaissStore) Get(ctx context.Context, contextFilter string) ([]models.StoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StoredChunk
	for _, sc := range s.chunks {
		if contextFilter == "" || sc.Context == contextFilter {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *FaissStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	prev := s.chunks
	var next []models.StoredChunk
	for _, sc := range prev {
		if !drop[sc.ID] {
			next = append(next, sc)
		}
	}
	if len(next) == len(prev) {
		return nil
	}
	s.chunks = next
	if err := s.rebuild(ctx); err != nil {
		s.chunks = prev
		return err
	}
	return nil
}

// Replace swaps the old ids for the new chunks in a single index rebuild.
func (s *FaissStore) Replace(ctx context.Context, oldIDs []string, chunks []models.Chunk) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(oldIDs))
	for _, id := range oldIDs {
		drop[id] = true
	}
	prev := s.chunks
	var next []models.StoredChunk
	for _, sc := range prev {
		if !drop[sc.ID] {
			next = append(next, sc)
		}
	}
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		id, err := helper.NewChunkID()
		if err != nil {
			return nil, err
		}
		next = append(next, models.StoredChunk{ID: id, Chunk: ch})
		ids = append(ids, id)
	}
	s.chunks = next
	if err := s.rebuild(ctx); err != nil {
		s.chunks = prev
		return nil, err
	}
	return ids, nil
}

func (s *FaissStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks), nil
}

func (s *FaissStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.script); err != nil {
		return fmt.Errorf("index helper script not found: %w", err)
	}
	return nil
}

func (s *FaissStore) Close() error { return nil }

func positionKey(context, source string, part int) string {
	return fmt.Sprintf("%s\x00%s\x00%d", context, source, part)
}

// parseQueryOutput finds the JSON result array in the helper's stdout,
// skipping any diagnostic lines around it.
func parseQueryOutput(out []byte) ([]queryResult, error) {
	for _, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '[' {
			continue
		}
		var results []queryResult
		if err := json.Unmarshal(line, &results); err != nil {
			return nil, fmt.Errorf("failed to parse helper output: %w", err)
		}
		return results, nil
	}
	return nil, fmt.Errorf("no result array in helper output")
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
