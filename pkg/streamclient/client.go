// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package streamclient consumes the gateway's streaming chat endpoint.
//
// A stream is a cancellable task yielding typed events over a channel:
// zero or more Delta events carrying the cumulative text, terminated by
// exactly one Done or one Failed. Cancelling the context abandons the
// stream; no events are delivered after cancellation, so a superseded
// stream can never write into state that has moved on.
package streamclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mentora-ai/mentora/pkg/attach"
)

const (
	defaultBaseURL = "http://localhost:8080"

	ssePrefix     = "data: "
	sseTerminator = "[DONE]"
)

// ErrIdleTimeout reports an upstream that went silent for longer than
// the configured idle window. Only produced when WithIdleTimeout is set.
var ErrIdleTimeout = errors.New("stream idle for too long")

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Preferences bias the tutor's system prompt.
type Preferences struct {
	LearningStyle string `json:"learningStyle,omitempty"`
	ExampleDomain string `json:"exampleDomain,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	Gamification  bool   `json:"gamification,omitempty"`
}

// LearningContext is recent performance data, also prompt-biasing only.
type LearningContext struct {
	Accuracy   float64 `json:"accuracy"`
	Engagement float64 `json:"engagement"`
	Topic      string  `json:"topic,omitempty"`
	Difficulty string  `json:"difficulty,omitempty"`
}

// Request is the chat request body. The last message must be from the
// user; the gateway validates the rest.
type Request struct {
	Messages        []Message        `json:"messages"`
	Files           []attach.File    `json:"files,omitempty"`
	UserPreferences *Preferences     `json:"userPreferences,omitempty"`
	LearningContext *LearningContext `json:"learningContext,omitempty"`
}

// Client talks to a running gateway.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	idleTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a gateway other than localhost:8080.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient substitutes the transport (for tests and custom TLS).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithIdleTimeout fails the stream if no bytes arrive for d. Off by
// default: without it a hung upstream hangs the read loop indefinitely.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// New creates a Client. The zero configuration targets a local gateway
// with no read deadline beyond the transport's own.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		// No overall timeout: a streaming response stays open as long
		// as the model is generating.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream opens the chat request and returns the event channel. A non-2xx
// response is returned as an error here, before any event is produced;
// once the channel is handed out, failures arrive as a Failed event.
// The channel is closed after the terminal event, or silently on
// context cancellation.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode the chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build the chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeErrorBody(resp)
	}

	events := make(chan Event)
	go c.consume(ctx, resp.Body, events)
	return events, nil
}

// decodeErrorBody turns the gateway's {"error": "..."} body into an
// error carrying the human-readable message and the status code.
func decodeErrorBody(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("chat request rejected (status %d): %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("chat request rejected (status %d)", resp.StatusCode)
}

// deltaChunk is the upstream line shape we care about. Everything else
// on a line is ignored.
type deltaChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// consume folds SSE lines into events until the terminator, the end of
// the stream, cancellation, or the idle deadline.
func (c *Client) consume(ctx context.Context, body io.ReadCloser, events chan<- Event) {
	defer close(events)
	defer body.Close()

	// Lines are scanned on a separate goroutine so the fold loop can
	// select on cancellation and the idle timer while a read is blocked.
	// stop releases the scanner if the fold loop exits first.
	stop := make(chan struct{})
	defer close(stop)
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	var idle *time.Timer
	var idleC <-chan time.Time
	if c.idleTimeout > 0 {
		idle = time.NewTimer(c.idleTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	var buf strings.Builder
	emit := func(ev Event) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	finish := func() {
		text := buf.String()
		emit(Done{Text: text, Confidence: ClassifyConfidence(text)})
	}

	for {
		select {
		case <-ctx.Done():
			// Abandoned. Closing the body unblocks the scanner.
			return

		case <-idleC:
			if buf.Len() > 0 {
				// Partial text is still useful; prefer it over an error.
				finish()
				return
			}
			emit(Failed{Err: ErrIdleTimeout})
			return

		case line, ok := <-lines:
			if !ok {
				// Stream ended without a terminator. Partial results are
				// preserved, not discarded; a read error with no text at
				// all is the only case reported as a failure.
				if err := <-scanErr; err != nil && buf.Len() == 0 {
					emit(Failed{Err: fmt.Errorf("stream read failed: %w", err)})
					return
				}
				finish()
				return
			}

			if idle != nil {
				if !idle.Stop() {
					<-idle.C
				}
				idle.Reset(c.idleTimeout)
			}

			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, ssePrefix) {
				continue
			}
			payload := strings.TrimPrefix(line, ssePrefix)
			if payload == sseTerminator {
				finish()
				return
			}

			var chunk deltaChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				// Lenient skip: providers emit keep-alive and comment
				// lines that are not meaningful payload.
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			buf.WriteString(chunk.Choices[0].Delta.Content)
			if !emit(Delta{Text: buf.String()}) {
				return
			}
		}
	}
}
