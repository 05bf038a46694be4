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

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"protoingest"}, args...))
	return out.String(), err
}

func writeProtocols(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "protocols")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Clinical"), 0o755))
	text := strings.Repeat("Assess for stroke symptoms and note the time last known well. ", 40)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Clinical", "705-Stroke.txt"), []byte(text), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("index"), 0o644))
	return dir
}

func fakeVoyage(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i := range req.Input {
			data[i] = item{Embedding: []float32{float32(i), 1, 0}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runApp(t, "--log-level", "verbose", "profiles")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestProfilesCommand(t *testing.T) {
	out, err := runApp(t, "profiles")
	require.NoError(t, err)
	assert.Contains(t, out, "santa-clara")
	assert.Contains(t, out, "Solano County EMS Agency")
	assert.Contains(t, out, "collapse")
}

func TestChunkCommand(t *testing.T) {
	dir := writeProtocols(t)

	out, err := runApp(t, "chunk", "--env-file", "", "--profile", "santa-clara", "--source", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "705")
	assert.Contains(t, out, "Neurological")
	assert.Contains(t, out, "705 - Stroke")
	assert.Contains(t, out, "2 documents, 1 skipped")
	assert.Contains(t, out, "skipped README.md")
}

func TestSourceFlagsExclusive(t *testing.T) {
	_, err := runApp(t, "chunk", "--env-file", "", "--source", "a", "--snapshot", "b.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestIngestAndCount(t *testing.T) {
	dir := writeProtocols(t)
	server := fakeVoyage(t)
	db := filepath.Join(t.TempDir(), "chunks.db")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := fmt.Sprintf(`agency:
  profile: generic
  name: Test County EMS Agency
embedding:
  provider: voyage
  host: %s
  api_key: ${TEST_VOYAGE_KEY}
store:
  type: sqlite
  path: %s
ingestion:
  batch_size: 3
  retry_delay: 1ms
`, server.URL, db)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	t.Setenv("TEST_VOYAGE_KEY", "test-key")

	out, err := runApp(t, "ingest", "--config", cfgPath, "--env-file", "", "--source", dir, "--progress=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents skipped:   1")
	assert.Contains(t, out, "Chunks failed:       0")

	out, err = runApp(t, "count", "--config", cfgPath, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Test County EMS Agency:")
	assert.NotContains(t, out, ": 0 chunks")

	out, err = runApp(t, "reembed", "--config", cfgPath, "--env-file", "", "--normalize")
	require.NoError(t, err)
	assert.Contains(t, out, "Test County EMS Agency:")
	assert.Contains(t, out, "chunks reembedded")
	assert.NotContains(t, out, ": 0 chunks")
}
