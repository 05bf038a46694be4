// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite implements storage.ChunkRepository on a single SQLite file
// using the pure-Go modernc.org/sqlite driver.
//
// Chunks live in one table, protocol_chunks, keyed by chunk_id. Vectors are
// stored as little-endian float32 blobs and metadata as a JSON object.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS protocol_chunks (
	chunk_id      TEXT PRIMARY KEY,
	agency_name   TEXT NOT NULL,
	state_code    TEXT NOT NULL DEFAULT '',
	protocol_name TEXT NOT NULL DEFAULT '',
	protocol_code TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	protocol_type TEXT NOT NULL DEFAULT '',
	chunk_index   INTEGER NOT NULL,
	total_chunks  INTEGER NOT NULL,
	content       TEXT NOT NULL,
	source_file   TEXT NOT NULL DEFAULT '',
	metadata      TEXT NOT NULL DEFAULT '{}',
	embedding     BLOB NOT NULL,
	inserted_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_protocol_chunks_agency ON protocol_chunks (agency_name, state_code);
`

const columns = `chunk_id, agency_name, state_code, protocol_name, protocol_code, category,
	protocol_type, chunk_index, total_chunks, content, source_file, metadata, embedding, inserted_at`

const upsertSQL = `INSERT INTO protocol_chunks (` + columns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chunk_id) DO UPDATE SET
	agency_name = excluded.agency_name,
	state_code = excluded.state_code,
	protocol_name = excluded.protocol_name,
	protocol_code = excluded.protocol_code,
	category = excluded.category,
	protocol_type = excluded.protocol_type,
	chunk_index = excluded.chunk_index,
	total_chunks = excluded.total_chunks,
	content = excluded.content,
	source_file = excluded.source_file,
	metadata = excluded.metadata,
	embedding = excluded.embedding,
	inserted_at = excluded.inserted_at`

// Store is a SQLite-backed chunk repository.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ storage.ChunkRepository = (*Store)(nil)

// Open opens or creates the database file at path and ensures the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", storage.ErrInvalidQuery)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL mode for concurrent readers during batch writes
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "sqlite-store"),
	}, nil
}

// NewChunkRepository opens a SQLite chunk repository.
//
// Returns storage.ChunkRepository interface to enforce abstraction.
func NewChunkRepository(path string) (storage.ChunkRepository, error) {
	return Open(path)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DeleteAgencyChunks removes the chunks of agency, optionally restricted to
// one jurisdiction.
func (s *Store) DeleteAgencyChunks(ctx context.Context, agency, jurisdiction string) (int, error) {
	if agency == "" {
		return 0, storage.ErrInvalidQuery
	}

	query := "DELETE FROM protocol_chunks WHERE agency_name = ?"
	args := []any{agency}
	if jurisdiction != "" {
		query += " AND state_code = ?"
		args = append(args, jurisdiction)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.logger.Debug("deleted agency chunks", "agency", agency, "jurisdiction", jurisdiction, "count", n)
	return int(n), nil
}

// UpsertChunks writes chunks in a single transaction.
func (s *Store) UpsertChunks(ctx context.Context, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		if err := storage.ValidateForUpsert(chunk); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return mapError(err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		if chunk.Metadata == nil {
			metadata = []byte("{}")
		}

		_, err = stmt.ExecContext(ctx,
			chunk.ID, chunk.AgencyName, chunk.JurisdictionCode,
			chunk.ProtocolTitle, chunk.ProtocolNumber, chunk.Section,
			string(chunk.ProtocolType), chunk.Ordinal, chunk.TotalChunks,
			chunk.Content, chunk.SourceReference, string(metadata),
			storage.MarshalVector(chunk.Vector), now.UnixMicro(),
		)
		if err != nil {
			return mapError(err)
		}
		chunk.InsertedAt = now
	}

	return mapError(tx.Commit())
}

// GetChunk retrieves a chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*core.Chunk, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM protocol_chunks WHERE chunk_id = ?", id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}
	return chunk, nil
}

// ListAgencyChunks returns every chunk of agency.
func (s *Store) ListAgencyChunks(ctx context.Context, agency string) ([]*core.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM protocol_chunks WHERE agency_name = ?", agency)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var chunks []*core.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	storage.SortChunks(chunks)
	return chunks, nil
}

// CountAgencyChunks returns the number of chunks stored for agency.
func (s *Store) CountAgencyChunks(ctx context.Context, agency string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM protocol_chunks WHERE agency_name = ?", agency).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (*core.Chunk, error) {
	var (
		chunk        core.Chunk
		protocolType string
		metadata     string
		embedding    []byte
		insertedAt   int64
	)
	err := row.Scan(
		&chunk.ID, &chunk.AgencyName, &chunk.JurisdictionCode,
		&chunk.ProtocolTitle, &chunk.ProtocolNumber, &chunk.Section,
		&protocolType, &chunk.Ordinal, &chunk.TotalChunks,
		&chunk.Content, &chunk.SourceReference, &metadata,
		&embedding, &insertedAt,
	)
	if err != nil {
		return nil, err
	}

	chunk.ProtocolType = core.ProtocolType(protocolType)
	chunk.InsertedAt = time.UnixMicro(insertedAt).UTC()
	if chunk.Vector, err = storage.UnmarshalVector(embedding); err != nil {
		return nil, err
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
	}
	return &chunk, nil
}

// mapError converts driver errors to storage errors where one applies.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	return err
}
