// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response types for the gateway
// service.
//
// This file contains the chat endpoint types. For learning/analytics types,
// see learning.go.
package datatypes

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	// Checked as bytes, not runes, to bound request memory.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100

	// MaxFilesPerRequest is the maximum number of attachments on a request.
	// Attachments only ever apply to the final message, so there is no reason
	// for a client to send more than a handful.
	MaxFilesPerRequest = 8
)

// Message roles accepted on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on string fields.
// Byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Chat Request Types
// =============================================================================

// Message is one turn of conversation history.
//
// # Description
//
// Role is "user" or "assistant"; system prompts are never supplied by
// clients, the gateway constructs them. Content is plain text; any
// attachment content is carried separately in ChatRequest.Files and folded
// into the final message by the gateway.
//
// # Assumptions
//
//   - Messages are in chronological order.
//   - The final message of a chat request has role "user".
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"maxbytes"`
}

// FileAttachment is one client-side file attached to the final message.
//
// # Description
//
// Images travel as base64-encoded inline data. Documents (PDF) travel as
// pre-extracted text plus a page count; the raw bytes never reach the
// upstream gateway. The payload lives for exactly one request: the store
// may retain name/type metadata but never the content.
//
// # Fields
//
//   - Name: Display name, e.g. "notes.pdf".
//   - Type: MIME type, e.g. "image/png" or "application/pdf".
//   - Base64: Inline payload for image types.
//   - PDFText: Extracted text for document types (may be truncated).
//   - PDFPageCount: Total pages in the source document, 0 if unknown.
type FileAttachment struct {
	Name         string `json:"name" validate:"required,max=255"`
	Type         string `json:"type" validate:"required,max=100"`
	Base64       string `json:"base64,omitempty"`
	PDFText      string `json:"pdfText,omitempty"`
	PDFPageCount int    `json:"pdfPageCount,omitempty"`
}

// IsImage reports whether the attachment should be sent to the upstream as
// an inline image part rather than flattened into text.
func (f *FileAttachment) IsImage() bool {
	return len(f.Type) > 6 && f.Type[:6] == "image/"
}

// ImageDirective requests image generation instead of a chat completion.
// Mutually exclusive with the chat branch: when present, Messages are
// ignored and a single non-streaming upstream call is made.
type ImageDirective struct {
	Prompt string `json:"prompt" validate:"required,maxbytes"`
}

// ChatRequest is the body of POST /v1/chat.
//
// # Description
//
// One normalized request covering both branches of the endpoint:
//
//   - Chat branch (GenerateImage nil): Messages are relayed to the upstream
//     behind a constructed system prompt, and the upstream SSE stream is
//     passed through to the caller byte for byte.
//   - Image branch (GenerateImage set): one non-streaming upstream call; the
//     response is translated to {imageUrl, textResponse} JSON.
//
// Files apply only to the final message. UserPreferences and
// LearningContext, when present, parameterize the system prompt and nothing
// else.
type ChatRequest struct {
	RequestID       string           `json:"request_id,omitempty" validate:"omitempty,uuid4"`
	Messages        []Message        `json:"messages" validate:"omitempty,max=100,dive"`
	Files           []FileAttachment `json:"files,omitempty" validate:"omitempty,max=8,dive"`
	GenerateImage   *ImageDirective  `json:"generateImage,omitempty"`
	UserPreferences *UserPreferences `json:"userPreferences,omitempty"`
	LearningContext *LearningContext `json:"learningContext,omitempty"`
}

// Validate checks structural validity plus the cross-field invariants that
// tags cannot express.
//
// # Description
//
// Beyond tag validation this enforces:
//   - the chat branch requires at least one message,
//   - the final message of the chat branch has role "user",
//   - the two branches are mutually exclusive inputs (image directive wins,
//     but supplying both is rejected to catch confused clients).
func (r *ChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return err
	}
	if r.GenerateImage != nil {
		if len(r.Messages) > 0 {
			return fmt.Errorf("generateImage and messages are mutually exclusive")
		}
		if g := r.GenerateImage; g != nil {
			if err := chatValidate.Struct(g); err != nil {
				return err
			}
		}
		return nil
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must contain at least one entry")
	}
	if last := r.Messages[len(r.Messages)-1]; last.Role != RoleUser {
		return fmt.Errorf("last message must have role %q, got %q", RoleUser, last.Role)
	}
	return nil
}

// EnsureDefaults populates the request id when the client did not send one.
func (r *ChatRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
}

// =============================================================================
// Image Response Types
// =============================================================================

// ImageResponse is the JSON body returned by the image-generation branch.
type ImageResponse struct {
	ImageURL     string `json:"imageUrl"`
	TextResponse string `json:"textResponse,omitempty"`
}

// =============================================================================
// Error Response Types
// =============================================================================

// ErrorResponse is the uniform JSON error body for the chat endpoint.
// The Error string follows the fixed taxonomy (rate limit / usage limit /
// service error) and never echoes upstream bodies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// nowUnixMilli exists so tests can pin time.
var nowUnixMilli = func() int64 { return time.Now().UnixMilli() }
