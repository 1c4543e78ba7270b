// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mentora-ai/mentora/services/gateway/datatypes"
	"github.com/mentora-ai/mentora/services/gateway/observability"
	"github.com/mentora-ai/mentora/services/gateway/prompt"
	"github.com/mentora-ai/mentora/services/gateway/upstream"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ChatHandler defines the contract for the chat proxy endpoint.
//
// # Description
//
// ChatHandler abstracts the POST /v1/chat endpoint, enabling mock upstream
// clients in tests. One handler serves both branches: streaming chat relay
// and non-streaming image generation.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the handler holds no
// mutable state across requests.
type ChatHandler interface {
	// HandleChat processes POST /v1/chat.
	//
	// # Outputs
	//
	// Chat branch: 200 text/event-stream, the upstream SSE bytes relayed
	// unmodified. Image branch: 200 JSON {imageUrl, textResponse}.
	// Errors: {error} JSON with 400 (validation), 429 (rate limit),
	// 402 (quota), 500 (anything else).
	HandleChat(c *gin.Context)
}

// =============================================================================
// Struct Definition
// =============================================================================

// chatHandler implements ChatHandler for production use.
//
// # Description
//
// chatHandler coordinates between the HTTP layer and the upstream gateway:
//   - Request parsing and validation
//   - System prompt construction and final-message rewriting
//   - SSE byte relay (chat) or JSON translation (image)
//   - Upstream error translation to the fixed taxonomy
//
// It never touches persistent state; persistence is the caller's
// responsibility after the stream completes.
type chatHandler struct {
	client upstream.Client
	tracer trace.Tracer
}

// NewChatHandler creates a ChatHandler with the provided upstream client.
// Panics on a nil client (programming error).
func NewChatHandler(client upstream.Client) ChatHandler {
	if client == nil {
		panic("NewChatHandler: client must not be nil")
	}
	return &chatHandler{
		client: client,
		tracer: otel.Tracer("mentora.gateway.handlers.chat"),
	}
}

// =============================================================================
// Handler Methods
// =============================================================================

// HandleChat processes POST /v1/chat.
//
// # Description
//
// The flow is:
//  1. Parse and validate the request body
//  2. Image branch: one non-streaming upstream call, JSON response
//  3. Chat branch: build system prompt, rewrite final message for
//     attachments, issue the streaming upstream request
//  4. Relay the raw upstream byte stream with SSE headers
//  5. On upstream failure before streaming starts, translate to the
//     taxonomy (429 / 402 / 500) without echoing the upstream body
//
// # Limitations
//
//   - Errors after the first relayed byte cannot change the HTTP status;
//     the stream simply ends and the client keeps its partial buffer.
//   - Single attempt; no retry or backoff.
func (h *chatHandler) HandleChat(c *gin.Context) {
	startTime := time.Now()

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleChat")
	defer span.End()

	// Step 1: Parse request body
	var req datatypes.ChatRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		slog.Error("Failed to parse chat request", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(observability.EndpointChatStream, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
		return
	}
	req.EnsureDefaults()

	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("request.message_count", len(req.Messages)),
		attribute.Int("request.file_count", len(req.Files)),
		attribute.Bool("request.image_branch", req.GenerateImage != nil),
	)

	// Step 2: Validate request
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Chat request validation failed",
			"error", err,
			"requestId", req.RequestID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(observability.EndpointChatStream, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request: validation failed"})
		return
	}

	// Step 3: Branch
	if req.GenerateImage != nil {
		h.handleImage(ctx, c, span, &req, startTime)
		return
	}
	h.handleChatStream(ctx, c, span, &req, startTime)
}

// handleChatStream runs the streaming branch: prompt construction, final
// message rewrite, upstream call, byte relay.
func (h *chatHandler) handleChatStream(ctx context.Context, c *gin.Context, span trace.Span, req *datatypes.ChatRequest, startTime time.Time) {
	endpoint := observability.EndpointChatStream

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	success := false
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			duration := time.Since(startTime).Seconds()
			m.RecordRequest(endpoint, success)
			m.RecordStreamDuration(endpoint, duration, success)
		}
	}()

	// Step 4: Build the upstream payload. Prompt construction is pure, so
	// the outbound message list is exactly [system, ...messages] with only
	// the final message rewritten for attachments.
	systemPrompt := prompt.Build(req.UserPreferences, req.LearningContext)
	payload := upstream.BuildChatPayload(systemPrompt, req.Messages, req.Files)

	// Step 5: Open the upstream stream
	body, err := h.client.StreamChat(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream call failed")
		writeTaxonomyError(c, endpoint, req.RequestID, err)
		return
	}
	defer body.Close()

	if m := observability.DefaultMetrics; m != nil {
		m.RecordTimeToFirstByte(endpoint, time.Since(startTime).Seconds())
	}

	// Step 6: Relay raw bytes
	SetSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	relayed, relayErr := relaySSE(ctx, c.Writer, body)
	span.SetAttributes(attribute.Int64("stream.relayed_bytes", relayed))
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRelayedBytes(endpoint, int(relayed))
	}

	if relayErr != nil {
		span.RecordError(relayErr)
		span.SetStatus(codes.Error, "relay interrupted")
		slog.Warn("SSE relay interrupted",
			"error", relayErr,
			"requestId", req.RequestID,
			"relayedBytes", relayed,
		)
		if m := observability.DefaultMetrics; m != nil {
			if errors.Is(relayErr, context.Canceled) {
				m.RecordClientDisconnect(endpoint)
			} else {
				m.RecordError(endpoint, observability.ErrorCodeUpstream)
			}
		}
		return
	}

	success = true
	span.SetStatus(codes.Ok, "stream relayed")
	slog.Info("Chat stream relayed",
		"requestId", req.RequestID,
		"relayedBytes", relayed,
		"durationMs", time.Since(startTime).Milliseconds(),
	)
}

// handleImage runs the non-streaming image-generation branch.
func (h *chatHandler) handleImage(ctx context.Context, c *gin.Context, span trace.Span, req *datatypes.ChatRequest, startTime time.Time) {
	endpoint := observability.EndpointImage

	success := false
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(endpoint, success)
		}
	}()

	result, err := h.client.GenerateImage(ctx, req.GenerateImage.Prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image generation failed")
		writeTaxonomyError(c, endpoint, req.RequestID, err)
		return
	}

	success = true
	span.SetStatus(codes.Ok, "image generated")
	slog.Info("Image generated",
		"requestId", req.RequestID,
		"durationMs", time.Since(startTime).Milliseconds(),
	)
	c.JSON(http.StatusOK, datatypes.ImageResponse{
		ImageURL:     result.ImageURL,
		TextResponse: result.TextResponse,
	})
}

// =============================================================================
// Error Translation
// =============================================================================

// writeTaxonomyError maps an upstream sentinel error to the caller-facing
// taxonomy. The raw upstream detail was already logged at the client layer;
// only the fixed wording leaves the gateway.
func writeTaxonomyError(c *gin.Context, endpoint observability.Endpoint, requestID string, err error) {
	var status int
	var msg string
	var code observability.ErrorCode

	switch {
	case errors.Is(err, upstream.ErrRateLimited):
		status = http.StatusTooManyRequests
		msg = "rate limit exceeded, please try again in a moment"
		code = observability.ErrorCodeRateLimit
	case errors.Is(err, upstream.ErrQuotaExhausted):
		status = http.StatusPaymentRequired
		msg = "usage limit reached, please review your payment plan"
		code = observability.ErrorCodeQuota
	default:
		status = http.StatusInternalServerError
		msg = "service error, please try again"
		code = observability.ErrorCodeUpstream
	}

	slog.Error("Upstream call failed",
		"error", err,
		"requestId", requestID,
		"status", status,
	)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, code)
	}
	c.JSON(status, datatypes.ErrorResponse{Error: msg})
}
