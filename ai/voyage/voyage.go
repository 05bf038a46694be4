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

// Package voyage implements ai.Embedder against the Voyage AI embeddings API.
//
// Texts are submitted with input_type "document", which is what Voyage
// recommends for corpus-side embeddings.
package voyage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/protoingest/ai"
)

// InputTypeDocument marks texts as retrieval corpus entries.
const InputTypeDocument = "document"

type embeddingRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Detail string `json:"detail,omitempty"`
}

// Embedder calls the Voyage AI embeddings endpoint.
type Embedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config, client *http.Client) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &Embedder{
		client:  client,
		baseURL: config.EmbeddingHost,
		apiKey:  config.APIKey,
		model:   config.EmbeddingModel,
		logger:  slog.Default().With("component", "voyage-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates a Voyage embedder. A nil client uses a default
// client with the configured timeout.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config, client *http.Client) (ai.Embedder, error) {
	return newEmbedder(config, client)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates embeddings for texts in one request. Vectors are
// returned in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{
		Input:     texts,
		Model:     e.model,
		InputType: InputTypeDocument,
	})
	if err != nil {
		return nil, fmt.Errorf("voyage: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voyage: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	e.logger.Debug("requesting embeddings", "count", len(texts))
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voyage: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voyage: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voyage: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("voyage: decode response: %w", err)
	}
	if parsed.Detail != "" {
		return nil, fmt.Errorf("voyage: %s", parsed.Detail)
	}
	if err := ai.CheckCount(len(texts), len(parsed.Data)); err != nil {
		return nil, fmt.Errorf("voyage: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("voyage: invalid embedding index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	e.logger.Debug("received embeddings", "count", len(vectors), "tokens", parsed.Usage.TotalTokens)
	return vectors, nil
}

// Provider implements ai.AIProvider for Voyage AI.
type Provider struct {
	embedder *Embedder
}

// NewProvider creates a Voyage provider.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config, nil)
	if err != nil {
		return nil, err
	}
	return &Provider{embedder: embedder}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases idle connections.
func (p *Provider) Close() error {
	p.embedder.client.CloseIdleConnections()
	return nil
}
