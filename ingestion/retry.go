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
	"log/slog"
	"time"

	"github.com/poiesic/protoingest/ai"
)

// RetryWithBackoff calls op until it succeeds, maxAttempts is reached or op
// returns an error that Retryable rejects. The wait after attempt n is
// baseDelay<<(n-1). The last error from op is returned.
func RetryWithBackoff(ctx context.Context, op func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		if attempt == maxAttempts || !Retryable(err) {
			return err
		}

		wait := baseDelay << (attempt - 1)
		slog.Debug("embedding request failed", "attempt", attempt, "max_attempts", maxAttempts, "wait", wait, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Retryable reports whether err may clear on a later attempt. A provider
// that returns the wrong number of vectors is misconfigured and keeps
// doing so.
func Retryable(err error) bool {
	return !errors.Is(err, ai.ErrCountMismatch)
}
