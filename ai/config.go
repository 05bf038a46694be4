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

package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderVoyage = "voyage"
)

// ErrCountMismatch indicates a provider returned a different number of
// embeddings than texts submitted.
var ErrCountMismatch = errors.New("embedding count does not match input count")

// CheckCount returns ErrCountMismatch when got differs from want.
func CheckCount(want, got int) error {
	if want != got {
		return fmt.Errorf("%w: sent %d, received %d", ErrCountMismatch, want, got)
	}
	return nil
}

// Config holds configuration for the embedding provider.
type Config struct {
	// Provider selects the implementation: "openai" for any OpenAI-compatible
	// server, or "voyage" for the Voyage AI API.
	Provider string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "voyage-3"
	EmbeddingModel string

	// APIKey authenticates against hosted providers. Local OpenAI-compatible
	// servers accept any value.
	APIKey string

	// InputLimit is the maximum number of characters submitted per text.
	// Default: 16000
	InputLimit int

	// Timeout bounds a single embedding request.
	// Default: 60s
	Timeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the embedding provider name.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithInputLimit sets the per-text character limit.
func WithInputLimit(limit int) ConfigOption {
	return func(c *Config) {
		c.InputLimit = limit
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "embeddinggemma",
		InputLimit:     16000,
		Timeout:        60 * time.Second,
	}
}

// DefaultVoyageConfig returns a Config for the hosted Voyage AI API.
// The API key still has to be supplied.
func DefaultVoyageConfig() *Config {
	return &Config{
		Provider:       ProviderVoyage,
		EmbeddingHost:  "https://api.voyageai.com/v1",
		EmbeddingModel: "voyage-3",
		InputLimit:     16000,
		Timeout:        60 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It lowercases the provider name and adds the /v1 suffix to the host if
// missing; both supported APIs are versioned under /v1.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		// Remove trailing slash if present before adding /v1
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Provider != ProviderOpenAI && c.Provider != ProviderVoyage {
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Provider == ProviderVoyage && c.APIKey == "" {
		return errors.New("ai config: APIKey is required for voyage")
	}
	if c.InputLimit <= 0 {
		return errors.New("ai config: InputLimit must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be positive")
	}
	return nil
}
