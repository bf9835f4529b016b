package vectorstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"ragserver/internal/config"
	"ragserver/internal/helper"
	"ragserver/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// PostgresStore persists chunks in a pgvector-enabled Postgres server.
type PostgresStore struct {
	db        *bun.DB
	dimension int
}

type chunkRow struct {
	bun.BaseModel `bun:"table:rag_chunks,alias:c"`
	ID            string  `bun:"id,pk"`
	Text          string  `bun:"text,notnull"`
	Source        string  `bun:"source,notnull"`
	Part          int     `bun:"part,notnull"`
	Context       string  `bun:"context,notnull"`
	Embedding     Vector  `bun:"embedding,notnull"`
	Distance      float64 `bun:"distance,scanonly"`
}

func NewPostgresStore(ctx context.Context, cfg *config.PostgresConfig, dimension int) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	s := &PostgresStore{db: db, dimension: dimension}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_chunks (
		id uuid PRIMARY KEY,
		text text NOT NULL,
		source text NOT NULL,
		part integer NOT NULL,
		context text NOT NULL,
		embedding vector(%d) NOT NULL
	)`, s.dimension)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create rag_chunks table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	rows := make([]chunkRow, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		id, err := helper.NewChunkID()
		if err != nil {
			return nil, err
		}
		rows = append(rows, chunkRow{
			ID:        id,
			Text:      ch.Text,
			Source:    ch.Source,
			Part:      ch.Part,
			Context:   ch.Context,
			Embedding: Vector(ch.Embedding),
		})
		ids = append(ids, id)
	}
	// One transaction so a failed batch leaves nothing behind.
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) Query(ctx context.Context, embedding []float32, k int, contextFilter string) ([]models.RetrievedChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	var rows []chunkRow
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("c.*").
		ColumnExpr("embedding <=> ? AS distance", Vector(embedding)).
		OrderExpr("embedding <=> ?", Vector(embedding)).
		Limit(k)
	if contextFilter != "" {
		q = q.Where("context = ?", contextFilter)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	retrieved := make([]models.RetrievedChunk, 0, len(rows))
	for _, r := range rows {
		retrieved = append(retrieved, models.RetrievedChunk{
			StoredChunk: r.toStored(),
			Distance:    float32(r.Distance),
		})
	}
	return retrieved, nil
}

func (s *PostgresStore) Get(ctx context.Context, contextFilter string) ([]models.StoredChunk, error) {
	var rows []chunkRow
	q := s.db.NewSelect().
		Model(&rows).
		Order("context", "source", "part")
	if contextFilter != "" {
		q = q.Where("context = ?", contextFilter)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	out := make([]models.StoredChunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toStored())
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*chunkRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (r chunkRow) toStored() models.StoredChunk {
	return models.StoredChunk{
		ID: r.ID,
		Chunk: models.Chunk{
			Text:      r.Text,
			Source:    r.Source,
			Part:      r.Part,
			Context:   r.Context,
			Embedding: []float32(r.Embedding),
		},
	}
}

// Vector serializes a float32 slice as a pgvector literal.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

func (v *Vector) Scan(src interface{}) error {
	var raw string
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return fmt.Errorf("cannot scan %T into Vector", src)
	}
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		*v = Vector{}
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(Vector, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("invalid vector element %q: %v", p, err)
		}
		out = append(out, float32(f))
	}
	*v = out
	return nil
}
