// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// # Description
//
// Sets the required headers for Server-Sent Events:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
//
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// relaySSE copies the upstream SSE byte stream to the client unmodified,
// flushing after every chunk so deltas arrive as they are produced.
//
// # Description
//
// Reads raw chunks from the upstream body and writes them through without
// parsing or rewriting; the gateway is a byte-level relay, framing included.
// Stops when the upstream closes the stream, the client context is
// cancelled, or a write fails (client disconnect).
//
// # Outputs
//
//   - int64: Bytes relayed, for metrics.
//   - error: Non-nil on client disconnect or cancelled context. Upstream
//     EOF is a clean stop, not an error.
func relaySSE(ctx context.Context, w http.ResponseWriter, upstream io.Reader) (int64, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return 0, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	var relayed int64
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return relayed, err
		}

		n, readErr := upstream.Read(buf)
		if n > 0 {
			written, writeErr := w.Write(buf[:n])
			relayed += int64(written)
			if writeErr != nil {
				return relayed, fmt.Errorf("write to client: %w", writeErr)
			}
			flusher.Flush()
		}
		if readErr != nil {
			if readErr == io.EOF {
				return relayed, nil
			}
			// A mid-stream upstream read error after headers were already
			// sent cannot change the HTTP status; the stream just ends and
			// the client treats the partial buffer as the result.
			return relayed, fmt.Errorf("read from upstream: %w", readErr)
		}
	}
}
