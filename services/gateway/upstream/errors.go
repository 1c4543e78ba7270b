// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import "errors"

// Sentinel errors for the fixed failure taxonomy. Handlers translate these
// with errors.Is; raw upstream bodies are logged here and never attached to
// the returned error.
var (
	// ErrMissingCredentials means no API key was configured. Fails fast
	// before any upstream call.
	ErrMissingCredentials = errors.New("upstream credentials not configured")

	// ErrRateLimited maps upstream HTTP 429. Retryable by the caller; the
	// gateway itself never retries.
	ErrRateLimited = errors.New("upstream rate limit exceeded")

	// ErrQuotaExhausted maps upstream HTTP 402. Terminal until external
	// action (payment / plan change).
	ErrQuotaExhausted = errors.New("upstream usage quota exhausted")

	// ErrUpstream covers every other non-2xx upstream status.
	ErrUpstream = errors.New("upstream request failed")
)
