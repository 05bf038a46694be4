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

// Package config loads protoingest settings from a YAML file.
//
// Secrets are not written into the file. Fields such as api_key may refer to
// variables with ${NAME}; they are resolved from an optional .env file and
// then the process environment when the file is loaded.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/protoingest/agency"
	"github.com/poiesic/protoingest/ai"
	"github.com/poiesic/protoingest/categorize"
	"github.com/poiesic/protoingest/chunker"
	"github.com/poiesic/protoingest/ingestion"
	"github.com/poiesic/protoingest/reembed"
	"gopkg.in/yaml.v3"
)

// Source types.
const (
	SourceDirectory = "directory"
	SourceSnapshot  = "snapshot"
)

// Store types.
const (
	StoreBadger    = "badger"
	StoreSQLite    = "sqlite"
	StorePostgREST = "postgrest"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// AgencyConfig selects a built-in profile and overrides its fields.
type AgencyConfig struct {
	Profile           string `yaml:"profile"`
	Name              string `yaml:"name,omitempty"`
	Jurisdiction      string `yaml:"jurisdiction,omitempty"`
	ProtocolYear      int    `yaml:"protocol_year,omitempty"`
	Strategy          string `yaml:"strategy,omitempty"`
	TypeRule          string `yaml:"type_rule,omitempty"`
	CategorizeContent *bool  `yaml:"categorize_content,omitempty"`
	NumberedTitles    *bool  `yaml:"numbered_titles,omitempty"`
}

// SourceConfig describes where documents come from.
type SourceConfig struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	FileRoot string `yaml:"file_root,omitempty"` // Snapshot only: directory of downloaded files
}

// ChunkerConfig overrides the profile's chunk sizing. Zero values keep the
// profile setting.
type ChunkerConfig struct {
	Size          int    `yaml:"size,omitempty"`
	Overlap       *int   `yaml:"overlap,omitempty"`    // nil keeps the profile value; 0 disables overlap
	MinLength     *int   `yaml:"min_length,omitempty"` // nil keeps the profile value
	Normalization string `yaml:"normalization,omitempty"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Host       string        `yaml:"host,omitempty"`
	Model      string        `yaml:"model,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty"`
	InputLimit int           `yaml:"input_limit,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// PostgRESTConfig holds connection details for a PostgREST chunk table.
type PostgRESTConfig struct {
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Table    string        `yaml:"table,omitempty"`
	PageSize int           `yaml:"page_size,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// StoreConfig selects and configures the chunk store.
type StoreConfig struct {
	Type      string          `yaml:"type"`
	Path      string          `yaml:"path,omitempty"` // badger directory or sqlite file
	PostgREST PostgRESTConfig `yaml:"postgrest,omitempty"`
}

// IngestionConfig tunes the pipeline.
type IngestionConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	PoolSize        int           `yaml:"pool_size"`
	ExtractWorkers  int           `yaml:"extract_workers"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	RequestInterval time.Duration `yaml:"request_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MinTextLength   int           `yaml:"min_text_length"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Agency    AgencyConfig    `yaml:"agency"`
	Source    SourceConfig    `yaml:"source"`
	Chunker   ChunkerConfig   `yaml:"chunker,omitempty"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Ingestion IngestionConfig `yaml:"ingestion"`
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	return &AppConfig{
		Agency: AgencyConfig{Profile: "generic"},
		Source: SourceConfig{Type: SourceDirectory, Path: "protocols"},
		Embedding: EmbeddingConfig{
			Provider: ai.ProviderOpenAI,
		},
		Store: StoreConfig{Type: StoreBadger, Path: "protoingest.db"},
		Ingestion: IngestionConfig{
			BatchSize:      ingestion.DefaultBatchSize,
			PoolSize:       2,
			ExtractWorkers: ingestion.DefaultExtractWorkers,
			MaxAttempts:    ingestion.DefaultMaxAttempts,
			RetryDelay:     ingestion.DefaultRetryDelay,
			RequestTimeout: ingestion.DefaultRequestTimeout,
			MinTextLength:  ingestion.DefaultMinTextLength,
		},
	}
}

// Load reads the YAML file at path over the defaults, resolves ${VAR}
// references using envFile (optional) and the environment, and validates
// the result. An empty path returns the validated defaults.
func Load(path, envFile string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	vars := map[string]string{}
	if envFile != "" {
		loaded, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		vars = loaded
	}
	cfg.expand(func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expand resolves ${VAR} references in fields that may carry secrets or
// deployment-specific locations.
func (c *AppConfig) expand(lookup func(string) string) {
	for _, field := range []*string{
		&c.Source.Path,
		&c.Source.FileRoot,
		&c.Embedding.Host,
		&c.Embedding.APIKey,
		&c.Store.Path,
		&c.Store.PostgREST.URL,
		&c.Store.PostgREST.APIKey,
	} {
		*field = os.Expand(*field, lookup)
	}
}

// Validate checks that every section can be turned into a component.
func (c *AppConfig) Validate() error {
	switch c.Source.Type {
	case SourceDirectory, SourceSnapshot:
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidConfig, c.Source.Type)
	}

	switch c.Store.Type {
	case StoreBadger, StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for %s", ErrInvalidConfig, c.Store.Type)
		}
	case StorePostgREST:
		if c.Store.PostgREST.URL == "" || c.Store.PostgREST.APIKey == "" {
			return fmt.Errorf("%w: store.postgrest.url and api_key are required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store type %q", ErrInvalidConfig, c.Store.Type)
	}

	if _, err := c.Profile(); err != nil {
		return err
	}
	if err := c.AI().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	in := c.Ingestion
	if in.BatchSize < 1 || in.PoolSize < 1 || in.MaxAttempts < 1 {
		return fmt.Errorf("%w: batch_size, pool_size and max_attempts must be positive", ErrInvalidConfig)
	}
	return nil
}

// Profile resolves the agency profile with every override applied.
func (c *AppConfig) Profile() (agency.Profile, error) {
	a := c.Agency
	p, err := agency.Lookup(a.Profile)
	if err != nil {
		return agency.Profile{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if a.Name != "" {
		p.Name = a.Name
	}
	if a.Jurisdiction != "" {
		p.Jurisdiction = a.Jurisdiction
	}
	if a.ProtocolYear != 0 {
		p.ProtocolYear = a.ProtocolYear
	}
	if a.Strategy != "" {
		if p.Strategy, err = categorize.ParseStrategy(a.Strategy); err != nil {
			return agency.Profile{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if a.TypeRule != "" {
		if p.TypeRule, err = categorize.ParseTypeRule(a.TypeRule); err != nil {
			return agency.Profile{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if a.CategorizeContent != nil {
		p.CategorizeContent = *a.CategorizeContent
	}
	if a.NumberedTitles != nil {
		p.NumberedTitles = *a.NumberedTitles
	}

	ch := c.Chunker
	if ch.Size != 0 {
		p.Chunking.Size = ch.Size
	}
	if ch.Overlap != nil {
		p.Chunking.Overlap = *ch.Overlap
	}
	if ch.MinLength != nil {
		p.Chunking.MinLength = *ch.MinLength
	}
	if ch.Normalization != "" {
		if p.Chunking.Normalization, err = chunker.ParseNormalization(ch.Normalization); err != nil {
			return agency.Profile{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	if err := p.Validate(); err != nil {
		return agency.Profile{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}

// AI builds the embedding provider configuration. Empty fields take the
// provider's defaults.
func (c *AppConfig) AI() *ai.Config {
	e := c.Embedding
	cfg := ai.DefaultConfig()
	if strings.EqualFold(strings.TrimSpace(e.Provider), ai.ProviderVoyage) {
		cfg = ai.DefaultVoyageConfig()
	}

	opts := []ai.ConfigOption{ai.WithProvider(e.Provider)}
	if e.Host != "" {
		opts = append(opts, ai.WithEmbeddingHost(e.Host))
	}
	if e.Model != "" {
		opts = append(opts, ai.WithEmbeddingModel(e.Model))
	}
	if e.APIKey != "" {
		opts = append(opts, ai.WithAPIKey(e.APIKey))
	}
	if e.InputLimit > 0 {
		opts = append(opts, ai.WithInputLimit(e.InputLimit))
	}
	if e.Timeout > 0 {
		opts = append(opts, ai.WithTimeout(e.Timeout))
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.Normalize()
	return cfg
}

// PipelineOptions converts the ingestion section into pipeline options.
func (c *AppConfig) PipelineOptions() []ingestion.Option {
	in := c.Ingestion
	return []ingestion.Option{
		ingestion.WithBatchSize(in.BatchSize),
		ingestion.WithPoolSize(in.PoolSize),
		ingestion.WithExtractWorkers(in.ExtractWorkers),
		ingestion.WithRetry(in.MaxAttempts, in.RetryDelay),
		ingestion.WithRequestInterval(in.RequestInterval),
		ingestion.WithRequestTimeout(in.RequestTimeout),
		ingestion.WithMinTextLength(in.MinTextLength),
		ingestion.WithInputLimit(c.AI().InputLimit),
	}
}

// ReembedConfig returns the settings for refreshing stored vectors.
func (c *AppConfig) ReembedConfig() *reembed.Config {
	in := c.Ingestion
	cfg := reembed.DefaultConfig()
	if in.BatchSize > 0 {
		cfg.BatchSize = in.BatchSize
	}
	if in.MaxAttempts > 0 {
		cfg.MaxRetries = in.MaxAttempts
	}
	if in.RetryDelay > 0 {
		cfg.RetryDelay = in.RetryDelay
	}
	if in.RequestTimeout > 0 {
		cfg.RequestTimeout = in.RequestTimeout
	}
	cfg.InputLimit = c.AI().InputLimit
	return cfg
}

// Save writes cfg as YAML.
func Save(path string, cfg *AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
