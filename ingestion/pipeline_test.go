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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/protoingest/agency"
	"github.com/poiesic/protoingest/ai/mock"
	"github.com/poiesic/protoingest/categorize"
	"github.com/poiesic/protoingest/chunker"
	"github.com/poiesic/protoingest/core"
	"github.com/poiesic/protoingest/source"
	"github.com/poiesic/protoingest/storage"
	"github.com/poiesic/protoingest/storage/badger"
	"github.com/poiesic/protoingest/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAgency = "Test County EMS Agency"

// sliceSource serves documents whose text is set inline.
type sliceSource struct {
	docs []*core.Document
	errs map[string]error
}

func (s *sliceSource) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	return s.docs, nil
}

func (s *sliceSource) Text(ctx context.Context, doc *core.Document) (string, error) {
	if err := s.errs[doc.ID]; err != nil {
		return "", err
	}
	return doc.Text, nil
}

// failingDeleteRepo fails every delete.
type failingDeleteRepo struct {
	storage.ChunkRepository
}

func (failingDeleteRepo) DeleteAgencyChunks(ctx context.Context, agency, jurisdiction string) (int, error) {
	return 0, errors.New("store unavailable")
}

func testProfile() agency.Profile {
	return agency.Profile{
		Key:          "test",
		Name:         testAgency,
		Jurisdiction: "CA",
		ProtocolYear: 2025,
		Chunking: chunker.Config{
			Size:      200,
			Overlap:   20,
			MinLength: 20,
		},
		Strategy:          categorize.SectionFirst,
		CategorizeContent: true,
		TypeRule:          categorize.TypeBySection,
		NumberedTitles:    true,
	}
}

func protocolText(sentence string, n int) string {
	return strings.Repeat(sentence+" ", n)
}

func testDocuments() []*core.Document {
	return []*core.Document{
		{
			ID:           "106_-_PERSONNEL_INVESTIGATION_AND_DISCIPLINE.pdf",
			Name:         "106_-_PERSONNEL_INVESTIGATION_AND_DISCIPLINE.pdf",
			CategoryPath: "protocols",
			Text:         protocolText("Investigations follow the agency disciplinary process.", 12),
			Pages:        4,
			Size:         2048,
		},
		{
			ID:           "700-Stroke.pdf",
			Name:         "700-Stroke.pdf",
			CategoryPath: "protocols/Clinical",
			Text:         protocolText("Assess for stroke and seizure activity before transport.", 12),
		},
		{
			ID:   "900-Blank.pdf",
			Name: "900-Blank.pdf",
			Text: "   \n  ",
		},
	}
}

func setupRepository(t *testing.T) storage.ChunkRepository {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func newTestPipeline(t *testing.T, repo storage.ChunkRepository, embedder *mock.MockEmbedder, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(repo, embedder, testProfile(), opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func chunkIDs(t *testing.T, repo storage.ChunkRepository, agency string) []string {
	t.Helper()
	chunks, err := repo.ListAgencyChunks(context.Background(), agency)
	require.NoError(t, err)
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func TestNewPipeline_Errors(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()

	_, err := NewPipeline(nil, embedder, testProfile())
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewPipeline(repo, nil, testProfile())
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	bad := testProfile()
	bad.Chunking.Overlap = bad.Chunking.Size
	_, err = NewPipeline(repo, embedder, bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, chunker.ErrInvalidOverlap)

	_, err = NewPipeline(repo, embedder, testProfile(), WithBatchSize(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPipeline(repo, embedder, testProfile(), WithRetry(0, time.Millisecond))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestPrepare(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, repo, embedder)

	chunks, summary, err := p.Prepare(t.Context(), &sliceSource{docs: testDocuments()})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 3, summary.DocumentsSeen)
	assert.Equal(t, 2, summary.DocumentsProcessed)
	assert.Equal(t, 1, summary.DocumentsSkipped)
	assert.Equal(t, "900-Blank.pdf", summary.SkippedDocuments[0].ID)
	assert.Equal(t, len(chunks), summary.ChunksCreated)

	first := chunks[0]
	assert.Equal(t, "106", first.ProtocolNumber)
	assert.Equal(t, "106 - PERSONNEL INVESTIGATION AND DISCIPLINE", first.ProtocolTitle)
	assert.Equal(t, categorize.Administrative, first.Section)
	assert.Equal(t, core.ProtocolTypePolicy, first.ProtocolType)
	assert.Equal(t, testAgency, first.AgencyName)
	assert.Equal(t, "CA", first.JurisdictionCode)
	assert.Equal(t, "106_-_PERSONNEL_INVESTIGATION_AND_DISCIPLINE.pdf", first.SourceReference)
	assert.Equal(t, "4", first.Metadata["pages"])
	assert.Equal(t, "2048", first.Metadata["file_size"])
	assert.Equal(t, "2025", first.Metadata["protocol_year"])

	perDocument := map[string][]*core.Chunk{}
	for _, c := range chunks {
		perDocument[c.ProtocolNumber] = append(perDocument[c.ProtocolNumber], c)
		assert.NoError(t, core.ValidateChunk(c))
		assert.Empty(t, c.Vector)
		assert.LessOrEqual(t, len(c.Content), 200+20)
	}
	for docID, docChunks := range map[string][]*core.Chunk{
		"106_-_PERSONNEL_INVESTIGATION_AND_DISCIPLINE.pdf": perDocument["106"],
		"700-Stroke.pdf": perDocument["700"],
	} {
		require.NotEmpty(t, docChunks, docID)
		for i, c := range docChunks {
			assert.Equal(t, i, c.Ordinal)
			assert.Equal(t, len(docChunks), c.TotalChunks)
			assert.Equal(t, core.ChunkKey(testAgency, docID, i), c.ID)
		}
	}

	stroke := perDocument["700"][0]
	assert.Equal(t, categorize.Neurological, stroke.Section)
	assert.Equal(t, core.ProtocolTypeProtocol, stroke.ProtocolType)

	assert.Zero(t, embedder.CallCount(), "prepare must not embed")
	count, err := repo.CountAgencyChunks(t.Context(), testAgency)
	require.NoError(t, err)
	assert.Zero(t, count, "prepare must not write")
}

func TestPrepare_ExtractionFailure(t *testing.T) {
	p := newTestPipeline(t, setupRepository(t), mock.NewMockEmbedder())
	src := &sliceSource{
		docs: testDocuments()[:2],
		errs: map[string]error{"700-Stroke.pdf": errors.New("malformed xref table")},
	}

	chunks, summary, err := p.Prepare(t.Context(), src)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	assert.Equal(t, 1, summary.DocumentsSkipped)
	assert.Equal(t, 1, summary.DocumentsProcessed)
	assert.Contains(t, summary.SkippedDocuments[0].Reason, "malformed xref table")
}

func TestRun_UnreadableFileSkipped(t *testing.T) {
	root := t.TempDir()
	text := protocolText("Assess for stroke and seizure activity before transport.", 12)
	require.NoError(t, os.WriteFile(filepath.Join(root, "700_Stroke.txt"), []byte(text), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "gone.pdf"), filepath.Join(root, "701_Broken.pdf")))

	src, err := source.NewDirectorySource(root)
	require.NoError(t, err)

	repo := setupRepository(t)
	p := newTestPipeline(t, repo, mock.NewMockEmbedder())
	summary, err := p.Run(t.Context(), src)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.DocumentsSeen)
	assert.Equal(t, 1, summary.DocumentsSkipped)
	assert.Equal(t, 1, summary.DocumentsProcessed)
	require.Len(t, summary.SkippedDocuments, 1)
	assert.Equal(t, "701_Broken.pdf", summary.SkippedDocuments[0].ID)
	assert.Positive(t, summary.ChunksInserted)
	assert.Len(t, chunkIDs(t, repo, testAgency), summary.ChunksInserted)
}

func TestPrepare_SnapshotTitles(t *testing.T) {
	profile := testProfile()
	profile.NumberedTitles = false
	p, err := NewPipeline(setupRepository(t), mock.NewMockEmbedder(), profile)
	require.NoError(t, err)
	defer p.Release()

	doc := &core.Document{
		ID:        "42",
		Name:      "C-3.pdf",
		Title:     "Chest Pain",
		ShortCode: "C-3",
		Text:      protocolText("Cardiac monitoring and a 12-lead ECG are required for chest pain.", 3),
	}
	chunks, _, err := p.Prepare(t.Context(), &sliceSource{docs: []*core.Document{doc}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "C-3", chunks[0].ProtocolNumber)
	assert.Equal(t, "Chest Pain", chunks[0].ProtocolTitle)
	assert.Equal(t, categorize.Cardiac, chunks[0].Section)
}

func TestRun_FullReplace(t *testing.T) {
	ctx := t.Context()
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, repo, embedder, WithBatchSize(3))

	stale := storagetest.NewDocumentChunks(testAgency, "CA", "removed", 2)
	other := storagetest.NewDocumentChunks("Other County EMS Agency", "CA", "keep", 3)
	require.NoError(t, repo.UpsertChunks(ctx, append(stale, other...)...))

	summary, err := p.Run(ctx, &sliceSource{docs: testDocuments()})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.DeletedChunks)
	assert.Equal(t, 1, summary.DocumentsSkipped)
	assert.Equal(t, summary.ChunksCreated, summary.ChunksInserted)
	assert.Zero(t, summary.ChunksFailed)
	assert.Empty(t, summary.BatchErrors)
	assert.False(t, summary.Cancelled)

	count, err := repo.CountAgencyChunks(ctx, testAgency)
	require.NoError(t, err)
	assert.Equal(t, summary.ChunksCreated, count)

	_, err = repo.GetChunk(ctx, stale[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	others, err := repo.CountAgencyChunks(ctx, "Other County EMS Agency")
	require.NoError(t, err)
	assert.Equal(t, 3, others)

	stored, err := repo.GetChunk(ctx, core.ChunkKey(testAgency, "700-Stroke.pdf", 0))
	require.NoError(t, err)
	assert.Equal(t, mock.GenerateVector(stored.EmbeddingText(DefaultInputLimit), mock.DefaultDimension), stored.Vector)

	firstIDs := chunkIDs(t, repo, testAgency)

	again, err := p.Run(ctx, &sliceSource{docs: testDocuments()})
	require.NoError(t, err)
	assert.Equal(t, summary.ChunksCreated, again.DeletedChunks)
	assert.Equal(t, firstIDs, chunkIDs(t, repo, testAgency), "re-runs must produce identical keys")
}

func TestRun_BatchFailureContinues(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 2 {
			return nil, errors.New("provider returned 503: " + strings.Repeat("x", 500))
		}
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = mock.GenerateVector(text, 8)
		}
		return vectors, nil
	}
	p := newTestPipeline(t, repo, embedder, WithPoolSize(1), WithBatchSize(2), WithRetry(1, 0))

	summary, err := p.Run(t.Context(), &sliceSource{docs: testDocuments()})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ChunksFailed)
	assert.Equal(t, summary.ChunksCreated-2, summary.ChunksInserted)
	require.Len(t, summary.BatchErrors, 1)
	assert.Equal(t, 1, summary.BatchErrors[0].Batch)
	assert.Equal(t, 2, summary.BatchErrors[0].Chunks)
	assert.LessOrEqual(t, len([]rune(summary.BatchErrors[0].Message)), MaxErrorLength)
	assert.Contains(t, summary.BatchErrors[0].Message, "503")

	count, err := repo.CountAgencyChunks(t.Context(), testAgency)
	require.NoError(t, err)
	assert.Equal(t, summary.ChunksInserted, count)
}

func TestRun_CountMismatchFailsBatch(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2, 3}}, nil
	}
	p := newTestPipeline(t, repo, embedder, WithBatchSize(2), WithRetry(1, 0))

	summary, err := p.Run(t.Context(), &sliceSource{docs: testDocuments()[1:2]})
	require.NoError(t, err)
	assert.Zero(t, summary.ChunksInserted)
	assert.Equal(t, summary.ChunksCreated, summary.ChunksFailed)
}

func TestRun_RetriesTransientFailure(t *testing.T) {
	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("timeout")
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0}
		}
		return vectors, nil
	}
	p := newTestPipeline(t, repo, embedder, WithPoolSize(1), WithRetry(3, time.Millisecond),
		WithRequestInterval(time.Millisecond))

	summary, err := p.Run(t.Context(), &sliceSource{docs: testDocuments()})
	require.NoError(t, err)
	assert.Zero(t, summary.ChunksFailed)
	assert.Equal(t, summary.ChunksCreated, summary.ChunksInserted)
}

func TestRun_DeleteFailureIsFatal(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, failingDeleteRepo{setupRepository(t)}, embedder)

	summary, err := p.Run(t.Context(), &sliceSource{docs: testDocuments()})
	assert.ErrorIs(t, err, ErrDeleteFailed)
	require.NotNil(t, summary)
	assert.Zero(t, summary.ChunksInserted)
	assert.Zero(t, embedder.CallCount(), "nothing is embedded after a failed delete")
}

func TestRun_NoChunksKeepsStore(t *testing.T) {
	ctx := t.Context()
	repo := setupRepository(t)
	require.NoError(t, repo.UpsertChunks(ctx, storagetest.NewDocumentChunks(testAgency, "CA", "existing", 2)...))
	p := newTestPipeline(t, repo, mock.NewMockEmbedder())

	summary, err := p.Run(ctx, &sliceSource{docs: testDocuments()[2:]})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DocumentsSkipped)
	assert.Zero(t, summary.DeletedChunks)

	count, err := repo.CountAgencyChunks(ctx, testAgency)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	repo := setupRepository(t)
	embedder := mock.NewMockEmbedder()
	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(callCtx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 2 {
			cancel()
			return nil, callCtx.Err()
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{0.5, 0.5}
		}
		return vectors, nil
	}
	p := newTestPipeline(t, repo, embedder, WithPoolSize(1), WithBatchSize(2), WithRetry(1, 0))

	summary, err := p.Run(ctx, &sliceSource{docs: testDocuments()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 2, summary.ChunksInserted, "batches written before cancellation stay")
	assert.Less(t, summary.ChunksInserted+summary.ChunksFailed, summary.ChunksCreated)

	count, err := repo.CountAgencyChunks(context.Background(), testAgency)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRun_Progress(t *testing.T) {
	var out strings.Builder
	p := newTestPipeline(t, setupRepository(t), mock.NewMockEmbedder(), WithProgress(&out), WithPoolSize(1))

	summary, err := p.Run(t.Context(), &sliceSource{docs: testDocuments()})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "chunks/s")
	assert.Contains(t, out.String(), "/"+strconv.Itoa(summary.ChunksCreated)+" chunks")
}

func TestRun_NilSource(t *testing.T) {
	p := newTestPipeline(t, setupRepository(t), mock.NewMockEmbedder())
	_, err := p.Run(t.Context(), nil)
	assert.ErrorIs(t, err, ErrSourceRequired)
}

func TestVisibleLength(t *testing.T) {
	assert.Equal(t, 0, visibleLength(" \n\t "))
	assert.Equal(t, 6, visibleLength(" ab c\nd é f"))
}
