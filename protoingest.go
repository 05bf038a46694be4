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

// Package protoingest ingests EMS protocol documents into a searchable
// chunk store.
//
// A Database pairs a chunk repository with an embedding provider and builds
// ingestion pipelines for agency profiles:
//
//	db, err := protoingest.NewDatabase("protocols.db")
//	...
//	profile, _ := agency.Lookup("santa-clara")
//	pipeline, err := db.NewIngestionPipeline(profile)
//	...
//	summary, err := pipeline.Run(ctx, src)
package protoingest

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/protoingest/agency"
	"github.com/poiesic/protoingest/ai"
	"github.com/poiesic/protoingest/ai/openai"
	"github.com/poiesic/protoingest/ai/voyage"
	"github.com/poiesic/protoingest/config"
	"github.com/poiesic/protoingest/ingestion"
	"github.com/poiesic/protoingest/source"
	"github.com/poiesic/protoingest/storage"
	"github.com/poiesic/protoingest/storage/badger"
	"github.com/poiesic/protoingest/storage/postgrest"
	"github.com/poiesic/protoingest/storage/sqlite"
)

type Database struct {
	backend  *badger.Backend // nil unless the badger store is used
	repo     storage.ChunkRepository
	provider ai.AIProvider
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig  *ai.Config
	provider  ai.AIProvider
	batchSize int
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses an existing provider instead of building one.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithEmbeddingBatchSize sets how many texts the OpenAI-compatible client
// sends per request.
func WithEmbeddingBatchSize(size int) DatabaseOption {
	return func(o *databaseOptions) {
		o.batchSize = size
	}
}

func applyOptions(opts []DatabaseOption) *databaseOptions {
	options := &databaseOptions{
		aiConfig:  ai.DefaultConfig(),
		batchSize: ingestion.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// NewProvider builds the embedding provider named by cfg.Provider.
func NewProvider(cfg *ai.Config, batchSize int) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderVoyage:
		return voyage.NewProvider(cfg)
	default:
		return openai.NewProvider(cfg, batchSize)
	}
}

func newDatabase(repo storage.ChunkRepository, backend *badger.Backend, opts []DatabaseOption) (*Database, error) {
	options := applyOptions(opts)

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = NewProvider(options.aiConfig, options.batchSize)
		if err != nil {
			return nil, err
		}
	}

	return &Database{
		backend:  backend,
		repo:     repo,
		provider: provider,
		logger:   slog.Default(),
	}, nil
}

// NewDatabase opens a badger chunk store in the directory filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	db, err := newDatabase(badger.NewChunkRepository(backend), backend, opts)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteDatabase opens a SQLite chunk store at path.
func NewSQLiteDatabase(path string, opts ...DatabaseOption) (*Database, error) {
	repo, err := sqlite.NewChunkRepository(path)
	if err != nil {
		return nil, err
	}

	db, err := newDatabase(repo, nil, opts)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return db, nil
}

// NewPostgRESTDatabase uses a remote PostgREST table as the chunk store.
func NewPostgRESTDatabase(cfg postgrest.Config, opts ...DatabaseOption) (*Database, error) {
	repo, err := postgrest.NewChunkRepository(cfg)
	if err != nil {
		return nil, err
	}

	db, err := newDatabase(repo, nil, opts)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return db, nil
}

// Open builds the store and provider described by cfg. Extra options are
// applied after the ones derived from cfg.
func Open(cfg *config.AppConfig, opts ...DatabaseOption) (*Database, error) {
	all := append([]DatabaseOption{
		WithAIConfig(cfg.AI()),
		WithEmbeddingBatchSize(cfg.Ingestion.BatchSize),
	}, opts...)

	switch cfg.Store.Type {
	case config.StoreBadger:
		return NewDatabase(cfg.Store.Path, all...)
	case config.StoreSQLite:
		return NewSQLiteDatabase(cfg.Store.Path, all...)
	case config.StorePostgREST:
		pg := cfg.Store.PostgREST
		return NewPostgRESTDatabase(postgrest.Config{
			URL:      pg.URL,
			APIKey:   pg.APIKey,
			Table:    pg.Table,
			PageSize: pg.PageSize,
			Timeout:  pg.Timeout,
		}, all...)
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", config.ErrInvalidConfig, cfg.Store.Type)
	}
}

// OpenSource builds the document source described by cfg.
func OpenSource(cfg config.SourceConfig) (source.Source, error) {
	switch cfg.Type {
	case config.SourceDirectory:
		return source.NewDirectorySource(cfg.Path)
	case config.SourceSnapshot:
		return source.LoadSnapshot(cfg.Path, cfg.FileRoot)
	default:
		return nil, fmt.Errorf("%w: unknown source type %q", config.ErrInvalidConfig, cfg.Type)
	}
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.repo.Close(); err != nil {
		db.logger.Error("error closing chunk repository", "err", err)
		return err
	}

	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.repo
}

func (db *Database) Embedder() ai.Embedder {
	return db.provider.Embedder()
}

func (db *Database) NewIngestionPipeline(profile agency.Profile, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(db.repo, db.provider.Embedder(), profile, opts...)
}
