// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package upstream is the client for the hosted LLM gateway.
//
// The chat branch needs the raw response body so the handler can relay the
// SSE bytes unmodified, which rules out the high-level streaming helpers of
// SDK clients; requests are built with the SDK's payload types and sent over
// a plain HTTP client instead.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds everything the client needs, injected at startup. No
// environment lookups happen in the request path.
type Config struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	ImageModel  string
	HTTPTimeout time.Duration
}

// ImageResult is the outcome of one image-generation call.
type ImageResult struct {
	ImageURL     string
	TextResponse string
}

// Client is the upstream gateway interface the handlers depend on.
type Client interface {
	// StreamChat issues one streaming chat-completions request and returns
	// the raw response body for byte-level relay. The caller owns closing
	// the body. A non-2xx upstream status is translated to a sentinel error
	// and no body is returned.
	StreamChat(ctx context.Context, req openai.ChatCompletionRequest) (io.ReadCloser, error)

	// GenerateImage issues one non-streaming call requesting image+text
	// modalities and extracts the first image reference.
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}

// CredentialRotator is implemented by clients whose API key can be
// swapped at runtime. The config watcher uses it to apply a rotated key
// without a restart.
type CredentialRotator interface {
	// SetAPIKey replaces the bearer credential for subsequent requests.
	// In-flight requests keep the key they started with.
	SetAPIKey(key string)
}

// =============================================================================
// HTTP Implementation
// =============================================================================

type httpClient struct {
	cfg  Config
	http *http.Client

	// mu guards apiKey, which the config watcher may rotate while
	// requests are in flight.
	mu     sync.RWMutex
	apiKey string
}

var (
	_ Client            = (*httpClient)(nil)
	_ CredentialRotator = (*httpClient)(nil)
)

// NewClient builds the gateway client. Returns ErrMissingCredentials when
// the API key is empty so startup fails before the first request.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream base URL is required")
	}
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &httpClient{
		cfg:    cfg,
		apiKey: cfg.APIKey,
		// Timeout bounds the whole exchange including the streamed body.
		http: &http.Client{Timeout: timeout},
	}, nil
}

// SetAPIKey applies a rotated credential. An empty key is ignored rather
// than locking the client out.
func (c *httpClient) SetAPIKey(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

func (c *httpClient) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

func (c *httpClient) StreamChat(ctx context.Context, req openai.ChatCompletionRequest) (io.ReadCloser, error) {
	req.Stream = true
	if req.Model == "" {
		req.Model = c.cfg.ChatModel
	}

	resp, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}
	return resp.Body, nil
}

// imageChatRequest is the non-streaming image+text modality request. The
// SDK's request type has no image modality field, so this branch keeps its
// own wire struct.
type imageChatRequest struct {
	Model      string             `json:"model"`
	Messages   []imageChatMessage `json:"messages"`
	Modalities []string           `json:"modalities"`
}

type imageChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type imageChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *httpClient) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	req := imageChatRequest{
		Model:      c.cfg.ImageModel,
		Messages:   []imageChatMessage{{Role: "user", Content: prompt}},
		Modalities: []string{"image", "text"},
	}

	resp, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}

	var parsed imageChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode image response: %w", err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.Images) == 0 {
		return nil, fmt.Errorf("%w: no image in response", ErrUpstream)
	}

	return &ImageResult{
		ImageURL:     parsed.Choices[0].Message.Images[0].ImageURL.URL,
		TextResponse: parsed.Choices[0].Message.Content,
	}, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upstream request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.bearer())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return resp, nil
}

// statusError logs the upstream body server-side and returns the sentinel
// for the status. The body never travels further than the log.
func (c *httpClient) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	slog.Error("Upstream gateway returned error status",
		"status", resp.StatusCode,
		"body", string(body))
	return StatusError(resp.StatusCode)
}

// StatusError maps an upstream HTTP status to the sentinel taxonomy.
func StatusError(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExhausted
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, status)
	}
}
