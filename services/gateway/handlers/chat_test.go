// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentora-ai/mentora/services/gateway/prompt"
	"github.com/mentora-ai/mentora/services/gateway/upstream"
)

// =============================================================================
// Mock Upstream Client
// =============================================================================

// mockUpstreamClient implements upstream.Client with configurable behavior.
type mockUpstreamClient struct {
	// StreamBody is returned as the raw SSE stream.
	StreamBody string
	// StreamErr, when set, fails StreamChat before any bytes flow.
	StreamErr error

	ImageResult *upstream.ImageResult
	ImageErr    error

	// Captured inputs.
	LastRequest openai.ChatCompletionRequest
	LastPrompt  string
	CallCount   int
}

func (m *mockUpstreamClient) StreamChat(_ context.Context, req openai.ChatCompletionRequest) (io.ReadCloser, error) {
	m.CallCount++
	m.LastRequest = req
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	return io.NopCloser(strings.NewReader(m.StreamBody)), nil
}

func (m *mockUpstreamClient) GenerateImage(_ context.Context, p string) (*upstream.ImageResult, error) {
	m.CallCount++
	m.LastPrompt = p
	if m.ImageErr != nil {
		return nil, m.ImageErr
	}
	return m.ImageResult, nil
}

// createTestChatRouter builds a router with the chat handler wired in.
func createTestChatRouter(t *testing.T, client upstream.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewChatHandler(client)
	router.POST("/v1/chat", handler.HandleChat)
	return router
}

func postChat(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Chat Branch Tests
// =============================================================================

func TestHandleChat_RelaysUpstreamBytesUnmodified(t *testing.T) {
	const stream = "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n"
	mock := &mockUpstreamClient{StreamBody: stream}
	router := createTestChatRouter(t, mock)

	w := postChat(t, router, `{"messages":[{"role":"user","content":"hello"}]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, stream, w.Body.String())
}

func TestHandleChat_OutboundPayloadIsSystemPlusMessages(t *testing.T) {
	mock := &mockUpstreamClient{StreamBody: "data: [DONE]\n\n"}
	router := createTestChatRouter(t, mock)

	w := postChat(t, router, `{"messages":[
		{"role":"user","content":"first"},
		{"role":"assistant","content":"second"},
		{"role":"user","content":"third"}
	]}`)

	require.Equal(t, http.StatusOK, w.Code)
	msgs := mock.LastRequest.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, prompt.Base, msgs[0].Content)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, "third", msgs[3].Content)
}

func TestHandleChat_PersonalizationExtendsSystemPrompt(t *testing.T) {
	mock := &mockUpstreamClient{StreamBody: "data: [DONE]\n\n"}
	router := createTestChatRouter(t, mock)

	w := postChat(t, router, `{
		"messages":[{"role":"user","content":"hi"}],
		"userPreferences":{"learningStyle":"visual","difficulty":"easy"},
		"learningContext":{"accuracy":40,"engagement":90}
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	system := mock.LastRequest.Messages[0].Content
	assert.Contains(t, system, "visual")
	assert.Contains(t, system, "simplify")
}

func TestHandleChat_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		streamErr  error
		wantStatus int
		wantSubstr string
	}{
		{"rate limited", upstream.ErrRateLimited, http.StatusTooManyRequests, "rate limit"},
		{"quota exhausted", upstream.ErrQuotaExhausted, http.StatusPaymentRequired, "payment"},
		{"generic upstream", upstream.ErrUpstream, http.StatusInternalServerError, "service error"},
		{"missing credentials", upstream.ErrMissingCredentials, http.StatusInternalServerError, "service error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockUpstreamClient{StreamErr: tt.streamErr}
			router := createTestChatRouter(t, mock)

			w := postChat(t, router, `{"messages":[{"role":"user","content":"hi"}]}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, strings.ToLower(resp["error"]), tt.wantSubstr)
		})
	}
}

func TestHandleChat_InvalidBody(t *testing.T) {
	router := createTestChatRouter(t, &mockUpstreamClient{})
	w := postChat(t, router, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_ValidationFailure(t *testing.T) {
	mock := &mockUpstreamClient{}
	router := createTestChatRouter(t, mock)

	// Last message is not from the user.
	w := postChat(t, router, `{"messages":[
		{"role":"user","content":"q"},
		{"role":"assistant","content":"a"}
	]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mock.CallCount)
}

func TestHandleChat_ImageAttachmentRewritesLastMessage(t *testing.T) {
	mock := &mockUpstreamClient{StreamBody: "data: [DONE]\n\n"}
	router := createTestChatRouter(t, mock)

	w := postChat(t, router, `{
		"messages":[{"role":"user","content":"what is this?"}],
		"files":[{"name":"pic.png","type":"image/png","base64":"Zm9v"}]
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	last := mock.LastRequest.Messages[len(mock.LastRequest.Messages)-1]
	require.Len(t, last.MultiContent, 2)
	assert.Equal(t, "what is this?", last.MultiContent[0].Text)
	assert.Equal(t, "data:image/png;base64,Zm9v", last.MultiContent[1].ImageURL.URL)
}

// =============================================================================
// Image Branch Tests
// =============================================================================

func TestHandleChat_ImageBranch(t *testing.T) {
	mock := &mockUpstreamClient{
		ImageResult: &upstream.ImageResult{
			ImageURL:     "https://img.example/cat.png",
			TextResponse: "a cat",
		},
	}
	router := createTestChatRouter(t, mock)

	w := postChat(t, router, `{"generateImage":{"prompt":"draw a cat"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "draw a cat", mock.LastPrompt)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://img.example/cat.png", resp["imageUrl"])
	assert.Equal(t, "a cat", resp["textResponse"])
}

func TestHandleChat_ImageBranchErrorTaxonomy(t *testing.T) {
	mock := &mockUpstreamClient{ImageErr: upstream.ErrRateLimited}
	router := createTestChatRouter(t, mock)

	w := postChat(t, router, `{"generateImage":{"prompt":"draw"}}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, strings.ToLower(w.Body.String()), "rate limit")
}

func TestNewChatHandler_NilClientPanics(t *testing.T) {
	assert.Panics(t, func() { NewChatHandler(nil) })
}
