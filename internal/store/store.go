// Package store persists ingested documents and their embedded chunks in
// PostgreSQL with the pgvector extension, and serves filtered similarity
// search over them. Source documents and chunks live in the same database so
// a document and its chunks are always written in one transaction.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/ragline/ragline/internal/faults"
)

// DefaultDimensions is the embedding width used when the caller does not
// configure one. It matches nomic-embed-text, the default embedding model.
const DefaultDimensions = 768

// SourceDocument is one ingested file, identified by path and content hash.
type SourceDocument struct {
	// FilePath is the absolute path of the ingested file.
	FilePath string `json:"file_path"`
	// FileHash is the hex SHA-256 of the file's content at ingestion time.
	FileHash string `json:"file_hash"`
	// FileSize is the file size in bytes.
	FileSize int64 `json:"file_size"`
	// EmbeddingModel names the model that produced the chunk vectors, so a
	// later model swap is detectable against the stored rows.
	EmbeddingModel string `json:"embedding_model"`
}

// Chunk is one embedded window of a source document.
type Chunk struct {
	// ID is the deterministic chunk identifier.
	ID string `json:"id"`
	// Text is the chunk's normalized content.
	Text string `json:"text"`
	// Embedding is the chunk's vector.
	Embedding []float32 `json:"embedding"`
	// Metadata carries source path, page, chunk index, and similar keys.
	Metadata map[string]string `json:"metadata"`
}

// RetrievalResult is one similarity-search hit.
type RetrievalResult struct {
	// ID is the chunk id.
	ID string `json:"id"`
	// Content is the chunk text.
	Content string `json:"content"`
	// Metadata is the chunk's stored metadata.
	Metadata map[string]string `json:"metadata"`
	// Similarity is 1 minus the cosine distance, higher is closer.
	Similarity float64 `json:"similarity"`
}

// Store is the PostgreSQL-backed chunk store. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	dim  int
	log  *slog.Logger
}

// Open connects to PostgreSQL at dsn, registers the pgvector types on every
// connection, and applies the schema. dim is the embedding width enforced by
// the chunks table; it must match the configured embedding model.
func Open(ctx context.Context, dsn string, dim int, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if dim <= 0 {
		dim = DefaultDimensions
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{pool: pool, dim: dim, log: log}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies the schema. All statements are idempotent so migrate is
// safe to run on every startup.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS source_documents (
			id              BIGSERIAL PRIMARY KEY,
			file_path       TEXT NOT NULL UNIQUE,
			file_hash       TEXT NOT NULL,
			file_size       BIGINT NOT NULL,
			embedding_model TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`ALTER TABLE source_documents
			ADD COLUMN IF NOT EXISTS embedding_model TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE source_documents
			ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
		`CREATE INDEX IF NOT EXISTS idx_source_documents_hash
			ON source_documents (file_hash)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id          TEXT PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES source_documents(id) ON DELETE CASCADE,
			content     TEXT NOT NULL,
			embedding   vector(%d) NOT NULL,
			metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dim),
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding
			ON chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &faults.StorageError{Op: "migrate", Err: err}
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Exists reports whether the document at filePath has been fully ingested
// with exactly this content hash. A row at the same path with a different
// hash does not count: the file changed and must be re-ingested. Because Save
// is transactional, a matching row implies all of its chunks exist too.
func (s *Store) Exists(ctx context.Context, filePath, fileHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM source_documents WHERE file_path = $1 AND file_hash = $2)`,
		filePath, fileHash,
	).Scan(&exists)
	if err != nil {
		return false, &faults.StorageError{Op: "exists", Err: err}
	}
	return exists, nil
}

// Save upserts a source document and its chunks in a single transaction.
// An unchanged document (same path, same hash) is a no-op. A changed document
// (same path, new hash) has its old chunks deleted and replaced. Either the
// document row and every chunk land together, or nothing does.
func (s *Store) Save(ctx context.Context, doc SourceDocument, chunks []Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &faults.StorageError{Op: "save", Err: err}
	}
	defer tx.Rollback(ctx)

	var docID int64
	var prevHash string
	err = tx.QueryRow(ctx,
		`SELECT id, file_hash FROM source_documents WHERE file_path = $1 FOR UPDATE`,
		doc.FilePath,
	).Scan(&docID, &prevHash)

	switch {
	case err == pgx.ErrNoRows:
		err = tx.QueryRow(ctx,
			`INSERT INTO source_documents (file_path, file_hash, file_size, embedding_model)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			doc.FilePath, doc.FileHash, doc.FileSize, doc.EmbeddingModel,
		).Scan(&docID)
		if err != nil {
			return &faults.StorageError{Op: "save", Err: err}
		}
	case err != nil:
		return &faults.StorageError{Op: "save", Err: err}
	case prevHash == doc.FileHash:
		// Unchanged content, nothing to write.
		return tx.Commit(ctx)
	default:
		// Same path, new content: replace the document's chunks. The delete
		// is explicit rather than relying on cascade because the document row
		// itself survives the update.
		if _, err := tx.Exec(ctx,
			`UPDATE source_documents
			 SET file_hash = $1, file_size = $2, embedding_model = $3, updated_at = now()
			 WHERE id = $4`,
			doc.FileHash, doc.FileSize, doc.EmbeddingModel, docID,
		); err != nil {
			return &faults.StorageError{Op: "save", Err: err}
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM chunks WHERE document_id = $1`, docID,
		); err != nil {
			return &faults.StorageError{Op: "save", Err: err}
		}
		s.log.Info("store: replacing chunks for changed document",
			slog.String("file", doc.FilePath),
		)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		md, err := json.Marshal(c.Metadata)
		if err != nil {
			return &faults.StorageError{Op: "save", Err: err}
		}
		batch.Queue(
			`INSERT INTO chunks (id, document_id, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE
			 SET document_id = EXCLUDED.document_id,
			     content     = EXCLUDED.content,
			     embedding   = EXCLUDED.embedding,
			     metadata    = EXCLUDED.metadata`,
			c.ID, docID, c.Text, pgvector.NewVector(c.Embedding), md,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return &faults.StorageError{Op: "save", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &faults.StorageError{Op: "save", Err: err}
	}
	s.log.Debug("store: document saved",
		slog.String("file", doc.FilePath),
		slog.Int("chunks", len(chunks)),
	)
	return nil
}

// Reset deletes every document and chunk. Used by `ragline reset`.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`TRUNCATE chunks, source_documents RESTART IDENTITY CASCADE`)
	if err != nil {
		return &faults.StorageError{Op: "reset", Err: err}
	}
	s.log.Warn("store: all documents and chunks deleted")
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, &faults.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// Ping reports database reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Name identifies the store in readiness output.
func (s *Store) Name() string { return "postgres" }
