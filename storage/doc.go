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

// Package storage provides the storage abstraction layer for protocol chunks.
//
// This package defines the ChunkRepository interface that decouples the
// ingestion pipeline from the store it writes to. Three implementations are
// provided:
//
//   - storage/badger: embedded BadgerDB store, the default for local runs
//   - storage/sqlite: single-file SQLite store
//   - storage/postgrest: hosted Postgres (Supabase) through its REST API
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.ChunkRepository interface:
//
//	repo, err := badger.NewChunkRepository(backend)  // returns storage.ChunkRepository
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Partitioning
//
// Every chunk belongs to exactly one agency. DeleteAgencyChunks removes one
// agency's chunks and nothing else, which is what makes a full-replace
// ingestion run safe when several agencies share a store.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
