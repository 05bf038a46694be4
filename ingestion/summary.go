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

package ingestion

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/protoingest/core"
)

// MaxErrorLength bounds error messages kept in a Summary.
const MaxErrorLength = 200

// BatchError records a batch that could not be embedded or stored.
type BatchError struct {
	Batch   int // Zero-based batch index
	Chunks  int // Number of chunks in the batch
	Message string
}

// SkippedDocument records a document that produced no chunks.
type SkippedDocument struct {
	ID     string
	Reason string
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	RunID  string
	Agency string

	DocumentsSeen      int
	DocumentsSkipped   int
	DocumentsProcessed int

	ChunksCreated  int
	ChunksInserted int
	ChunksFailed   int
	DeletedChunks  int

	BatchErrors      []BatchError
	SkippedDocuments []SkippedDocument

	Cancelled bool
	Elapsed   time.Duration
}

// String renders a one-line report.
func (s *Summary) String() string {
	return fmt.Sprintf("agency=%q documents=%d processed=%d skipped=%d chunks=%d inserted=%d failed=%d deleted=%d",
		s.Agency, s.DocumentsSeen, s.DocumentsProcessed, s.DocumentsSkipped,
		s.ChunksCreated, s.ChunksInserted, s.ChunksFailed, s.DeletedChunks)
}

func (s *Summary) skip(id, reason string) {
	s.DocumentsSkipped++
	s.SkippedDocuments = append(s.SkippedDocuments, SkippedDocument{
		ID:     id,
		Reason: core.TruncateRunes(reason, MaxErrorLength),
	})
}

// runState holds the counters shared by batch workers.
type runState struct {
	inserted atomic.Int64
	failed   atomic.Int64

	mu     sync.Mutex
	errors []BatchError
}

func (r *runState) succeeded(n int) {
	r.inserted.Add(int64(n))
}

func (r *runState) batchFailed(batch, n int, err error) {
	r.failed.Add(int64(n))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, BatchError{
		Batch:   batch,
		Chunks:  n,
		Message: core.TruncateRunes(err.Error(), MaxErrorLength),
	})
}

// merge copies the worker counters into s. Call after all workers finish.
func (r *runState) merge(s *Summary) {
	s.ChunksInserted = int(r.inserted.Load())
	s.ChunksFailed = int(r.failed.Load())

	r.mu.Lock()
	defer r.mu.Unlock()
	s.BatchErrors = append(s.BatchErrors, r.errors...)
	slices.SortFunc(s.BatchErrors, func(a, b BatchError) int {
		return cmp.Compare(a.Batch, b.Batch)
	})
}
