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

package badger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/storage"
)

// ChunkRepository implements storage.ChunkRepository using BadgerDB.
//
// Chunks are stored under a key grouped by agency and jurisdiction, with a
// secondary ID index pointing back at the primary key so lookups by ID and
// re-homing of a chunk to a different agency both work.
type ChunkRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// newChunkRepository is an internal constructor that returns the concrete type.
func newChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{
		backend: backend,
		logger:  backend.logger.With("repository", "chunks"),
	}
}

// NewChunkRepository creates a chunk repository on an open backend.
// The backend stays owned by the caller.
func NewChunkRepository(backend *Backend) storage.ChunkRepository {
	return newChunkRepository(backend)
}

// Close is a no-op; the backend is closed by its owner.
func (r *ChunkRepository) Close() error {
	return nil
}

func (r *ChunkRepository) check(ctx context.Context) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return ctx.Err()
}

// DeleteAgencyChunks removes the chunks of agency, optionally restricted to
// one jurisdiction.
func (r *ChunkRepository) DeleteAgencyChunks(ctx context.Context, agency, jurisdiction string) (int, error) {
	if agency == "" {
		return 0, storage.ErrInvalidQuery
	}
	if err := r.check(ctx); err != nil {
		return 0, err
	}

	keys, err := r.backend.ScanKeys(makeAgencyPrefix(agency, jurisdiction))
	if err != nil {
		return 0, err
	}

	all := make([][]byte, 0, 2*len(keys))
	for _, key := range keys {
		all = append(all, key, makeChunkIDKey(chunkIDFromKey(key)))
	}
	if err := r.backend.DeleteKeys(all); err != nil {
		return 0, err
	}

	r.logger.Debug("deleted agency chunks", "agency", agency, "jurisdiction", jurisdiction, "count", len(keys))
	return len(keys), nil
}

// UpsertChunks writes chunks in a single transaction.
func (r *ChunkRepository) UpsertChunks(ctx context.Context, chunks ...*core.Chunk) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := storage.ValidateForUpsert(chunk); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.AgencyName, chunk.JurisdictionCode, chunk.ID)
			idKey := makeChunkIDKey(chunk.ID)

			// Drop the previous primary record if the chunk moved partitions
			previous, err := readValue(tx, idKey)
			if err != nil {
				return err
			}
			if previous != nil && !bytes.Equal(previous, key) {
				if err := tx.Delete(previous); err != nil {
					return err
				}
			}

			chunk.InsertedAt = now
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(idKey, key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunk retrieves a chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id string) (*core.Chunk, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var chunk *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key, err := readValue(tx, makeChunkIDKey(id))
		if err != nil {
			return err
		}
		if key == nil {
			return storage.ErrNotFound
		}
		value, err := readValue(tx, key)
		if err != nil {
			return err
		}
		if value == nil {
			return storage.ErrNotFound
		}
		chunk, err = storage.UnmarshalChunk(value)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// ListAgencyChunks returns every chunk of agency.
func (r *ChunkRepository) ListAgencyChunks(ctx context.Context, agency string) ([]*core.Chunk, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeAgencyPrefix(agency, "")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				chunks = append(chunks, chunk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	storage.SortChunks(chunks)
	return chunks, nil
}

// CountAgencyChunks counts the chunks of agency without decoding them.
func (r *ChunkRepository) CountAgencyChunks(ctx context.Context, agency string) (int, error) {
	if err := r.check(ctx); err != nil {
		return 0, err
	}
	keys, err := r.backend.ScanKeys(makeAgencyPrefix(agency, ""))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// readValue returns a copy of the value stored at key, or nil if absent.
func readValue(tx *badger.Txn, key []byte) ([]byte, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
