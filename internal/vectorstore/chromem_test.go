package vectorstore

import (
	"context"
	"testing"

	"ragserver/internal/models"
)

func chunk(text, source string, part int, contextTag string, embedding []float32) models.Chunk {
	return models.Chunk{Text: text, Source: source, Part: part, Context: contextTag, Embedding: embedding}
}

func TestChromemAddQueryOrdering(t *testing.T) {
	s, err := NewChromemStore("test")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	ids, err := s.Add(ctx, []models.Chunk{
		chunk("about cats", "a.txt", 0, "c1", []float32{1, 0, 0}),
		chunk("about dogs", "a.txt", 1, "c1", []float32{0.8, 0.6, 0}),
		chunk("about fish", "b.txt", 0, "c1", []float32{0, 1, 0}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			t.Fatalf("ids not unique: %v", ids)
		}
		seen[id] = true
	}

	got, err := s.Query(ctx, []float32{1, 0, 0}, 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if got[0].Text != "about cats" {
		t.Errorf("closest = %q, want about cats", got[0].Text)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Errorf("distances not non-decreasing: %v then %v", got[i-1].Distance, got[i].Distance)
		}
	}
}

func TestChromemQueryKLargerThanStore(t *testing.T) {
	s, _ := NewChromemStore("test")
	ctx := context.Background()
	if _, err := s.Add(ctx, []models.Chunk{chunk("only one", "a.txt", 0, "c1", []float32{1, 0, 0})}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, []float32{1, 0, 0}, 50, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %d results, want 1", len(got))
	}
}

func TestChromemContextFilter(t *testing.T) {
	s, _ := NewChromemStore("test")
	ctx := context.Background()
	_, err := s.Add(ctx, []models.Chunk{
		chunk("one", "a.txt", 0, "proj1", []float32{1, 0, 0}),
		chunk("two", "b.txt", 0, "proj2", []float32{1, 0, 0}),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(ctx, []float32{1, 0, 0}, 10, "proj1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Context != "proj1" {
		t.Errorf("filter returned %v", got)
	}

	// Unknown context is an empty result, not an error.
	got, err = s.Query(ctx, []float32{1, 0, 0}, 10, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("unknown context returned %v", got)
	}
}

func TestChromemGetAndCount(t *testing.T) {
	s, _ := NewChromemStore("test")
	ctx := context.Background()
	_, err := s.Add(ctx, []models.Chunk{
		chunk("p1", "doc.txt", 1, "c1", []float32{0, 1, 0}),
		chunk("p0", "doc.txt", 0, "c1", []float32{1, 0, 0}),
		chunk("x", "other.txt", 0, "c2", []float32{0, 0, 1}),
	})
	if err != nil {
		t.Fatal(err)
	}
	all, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d chunks for c1, want 2", len(all))
	}
	if all[0].Part != 0 || all[1].Part != 1 {
		t.Errorf("chunks not ordered by part: %+v", all)
	}
	n, err := s.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("count = %d, %v; want 3", n, err)
	}
}

func TestChromemDeleteIdempotent(t *testing.T) {
	s, _ := NewChromemStore("test")
	ctx := context.Background()
	ids, err := s.Add(ctx, []models.Chunk{chunk("gone soon", "a.txt", 0, "c1", []float32{1, 0, 0})})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, ids); err != nil {
		t.Fatal(err)
	}
	// Deleting again, and deleting unknown ids, must not error.
	if err := s.Delete(ctx, ids); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
	if err := s.Delete(ctx, []string{"never-existed"}); err != nil {
		t.Errorf("unknown id delete errored: %v", err)
	}
	n, _ := s.Count(ctx)
	if n != 0 {
		t.Errorf("count after delete = %d, want 0", n)
	}
}

func TestCosineDistance(t *testing.T) {
	if d := cosineDistance([]float32{1, 0}, []float32{1, 0}); d > 1e-6 {
		t.Errorf("identical vectors distance = %v, want 0", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{0, 1}); d < 0.99 || d > 1.01 {
		t.Errorf("orthogonal vectors distance = %v, want 1", d)
	}
	if d := cosineDistance([]float32{0, 0}, []float32{1, 0}); d != 1 {
		t.Errorf("zero vector distance = %v, want 1", d)
	}
}
