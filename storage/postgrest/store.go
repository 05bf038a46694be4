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

// Package postgrest implements storage.ChunkRepository against a hosted
// Postgres table exposed through PostgREST, as provided by Supabase.
//
// The table is expected to have the columns written by this package, with
// chunk_id as a unique key and embedding as a pgvector column. Upserts use
// PostgREST's merge-duplicates resolution on chunk_id, so repeated runs over
// unchanged input overwrite rows instead of adding new ones.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/storage"
)

// DefaultTable is the chunk table name.
const DefaultTable = "protocol_chunks"

// Config holds connection settings for the PostgREST store.
type Config struct {
	// URL is the project base URL, e.g. "https://xyz.supabase.co".
	URL string

	// APIKey is sent as both the apikey header and the bearer token.
	APIKey string

	// Table is the chunk table name. Default: protocol_chunks
	Table string

	// Timeout bounds each HTTP request. Default: 60s
	Timeout time.Duration

	// PageSize is the number of rows fetched per list request. Default: 1000
	PageSize int
}

func (c *Config) applyDefaults() {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.PageSize <= 0 {
		c.PageSize = 1000
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
}

// Store talks to a PostgREST endpoint.
type Store struct {
	client   *http.Client
	endpoint string
	apiKey   string
	pageSize int
	closed   atomic.Bool
	logger   *slog.Logger
}

var _ storage.ChunkRepository = (*Store)(nil)

// New creates a Store. A nil client uses a default client with the
// configured timeout.
func New(cfg Config, client *http.Client) (*Store, error) {
	cfg.applyDefaults()
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: postgrest URL is required", storage.ErrInvalidQuery)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: postgrest API key is required", storage.ErrInvalidQuery)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Store{
		client:   client,
		endpoint: cfg.URL + "/rest/v1/" + cfg.Table,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		logger:   slog.Default().With("component", "postgrest-store", "table", cfg.Table),
	}, nil
}

// NewChunkRepository creates a PostgREST chunk repository.
//
// Returns storage.ChunkRepository interface to enforce abstraction.
func NewChunkRepository(cfg Config) (storage.ChunkRepository, error) {
	return New(cfg, nil)
}

// Close marks the store closed and releases idle connections.
func (s *Store) Close() error {
	s.closed.Store(true)
	s.client.CloseIdleConnections()
	return nil
}

// DeleteAgencyChunks removes the chunks of agency, optionally restricted to
// one jurisdiction.
func (s *Store) DeleteAgencyChunks(ctx context.Context, agency, jurisdiction string) (int, error) {
	if agency == "" {
		return 0, storage.ErrInvalidQuery
	}
	q := url.Values{}
	q.Set("agency_name", "eq."+agency)
	if jurisdiction != "" {
		q.Set("state_code", "eq."+jurisdiction)
	}

	resp, err := s.do(ctx, http.MethodDelete, q, nil, "return=minimal,count=exact")
	if err != nil {
		return 0, err
	}
	n, _ := contentRangeTotal(resp.header.Get("Content-Range"))
	s.logger.Debug("deleted agency chunks", "agency", agency, "jurisdiction", jurisdiction, "count", n)
	return n, nil
}

// UpsertChunks writes chunks in one request.
func (s *Store) UpsertChunks(ctx context.Context, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		if err := storage.ValidateForUpsert(chunk); err != nil {
			return err
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]row, len(chunks))
	for i, chunk := range chunks {
		rows[i] = toRow(chunk, now)
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	q := url.Values{}
	q.Set("on_conflict", "chunk_id")
	if _, err := s.do(ctx, http.MethodPost, q, body, "resolution=merge-duplicates,return=minimal"); err != nil {
		return err
	}
	for _, chunk := range chunks {
		chunk.InsertedAt = now
	}
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*core.Chunk, error) {
	q := url.Values{}
	q.Set("chunk_id", "eq."+id)
	q.Set("select", "*")
	q.Set("limit", "1")

	rows, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0].chunk(), nil
}

// ListAgencyChunks pages through every chunk of agency.
func (s *Store) ListAgencyChunks(ctx context.Context, agency string) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	for offset := 0; ; offset += s.pageSize {
		q := url.Values{}
		q.Set("agency_name", "eq."+agency)
		q.Set("select", "*")
		q.Set("order", "protocol_code.asc,protocol_name.asc,chunk_index.asc")
		q.Set("limit", strconv.Itoa(s.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		rows, err := s.fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			chunks = append(chunks, r.chunk())
		}
		if len(rows) < s.pageSize {
			break
		}
	}
	storage.SortChunks(chunks)
	return chunks, nil
}

// CountAgencyChunks asks PostgREST for an exact row count.
func (s *Store) CountAgencyChunks(ctx context.Context, agency string) (int, error) {
	q := url.Values{}
	q.Set("agency_name", "eq."+agency)
	q.Set("select", "chunk_id")
	q.Set("limit", "1")

	resp, err := s.do(ctx, http.MethodGet, q, nil, "count=exact")
	if err != nil {
		return 0, err
	}
	n, ok := contentRangeTotal(resp.header.Get("Content-Range"))
	if !ok {
		return 0, fmt.Errorf("%w: missing row count in Content-Range %q", storage.ErrRemote, resp.header.Get("Content-Range"))
	}
	return n, nil
}

func (s *Store) fetch(ctx context.Context, q url.Values) ([]row, error) {
	resp, err := s.do(ctx, http.MethodGet, q, nil, "")
	if err != nil {
		return nil, err
	}
	var rows []row
	if err := json.Unmarshal(resp.body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return rows, nil
}

type response struct {
	header http.Header
	body   []byte
}

func (s *Store) do(ctx context.Context, method string, q url.Values, body []byte, prefer string) (*response, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+"?"+q.Encode(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", storage.ErrRemote, method, s.endpoint, resp.StatusCode, string(raw))
	}
	return &response{header: resp.Header, body: raw}, nil
}

// contentRangeTotal parses the total from "0-24/3573" or "*/0".
func contentRangeTotal(header string) (int, bool) {
	idx := strings.LastIndexByte(header, '/')
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(header[idx+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
