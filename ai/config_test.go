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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, 16000, cfg.InputLimit)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderVoyage),
			WithEmbeddingHost("https://api.voyageai.com/v1"),
			WithEmbeddingModel("voyage-3"),
			WithAPIKey("secret"),
			WithInputLimit(8000),
			WithTimeout(30*time.Second),
		)

		assert.Equal(t, ProviderVoyage, cfg.Provider)
		assert.Equal(t, "https://api.voyageai.com/v1", cfg.EmbeddingHost)
		assert.Equal(t, "voyage-3", cfg.EmbeddingModel)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, 8000, cfg.InputLimit)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name             string
		provider         string
		host             string
		expectedProvider string
		expectedHost     string
	}{
		{name: "already has /v1", host: "http://localhost:11434/v1", expectedProvider: ProviderOpenAI, expectedHost: "http://localhost:11434/v1"},
		{name: "missing /v1", host: "http://localhost:11434", expectedProvider: ProviderOpenAI, expectedHost: "http://localhost:11434/v1"},
		{name: "has trailing slash", host: "http://localhost:11434/", expectedProvider: ProviderOpenAI, expectedHost: "http://localhost:11434/v1"},
		{name: "empty host", host: "", expectedProvider: ProviderOpenAI, expectedHost: ""},
		{name: "provider case", provider: " Voyage ", host: "https://api.voyageai.com", expectedProvider: ProviderVoyage, expectedHost: "https://api.voyageai.com/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, EmbeddingHost: tt.host}

			cfg.Normalize()

			assert.Equal(t, tt.expectedProvider, cfg.Provider)
			assert.Equal(t, tt.expectedHost, cfg.EmbeddingHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "cohere" }, wantErr: "provider"},
		{name: "missing embedding host", mutate: func(c *Config) { c.EmbeddingHost = "" }, wantErr: "EmbeddingHost"},
		{name: "missing embedding model", mutate: func(c *Config) { c.EmbeddingModel = "" }, wantErr: "EmbeddingModel"},
		{name: "voyage without key", mutate: func(c *Config) { c.Provider = ProviderVoyage }, wantErr: "APIKey"},
		{name: "zero input limit", mutate: func(c *Config) { c.InputLimit = 0 }, wantErr: "InputLimit"},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("voyage with key", func(t *testing.T) {
		cfg := DefaultVoyageConfig()
		cfg.APIKey = "secret"
		assert.NoError(t, cfg.Validate())
	})
}

func TestCheckCount(t *testing.T) {
	assert.NoError(t, CheckCount(3, 3))

	err := CheckCount(3, 2)
	assert.True(t, errors.Is(err, ErrCountMismatch))
	assert.Contains(t, err.Error(), "sent 3, received 2")
}
