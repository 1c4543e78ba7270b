// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validChatRequest() *ChatRequest {
	return &ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
		},
	}
}

func TestChatRequestValidate_Valid(t *testing.T) {
	req := validChatRequest()
	assert.NoError(t, req.Validate())
}

func TestChatRequestValidate_EmptyMessages(t *testing.T) {
	req := &ChatRequest{}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}

func TestChatRequestValidate_LastMessageMustBeUser(t *testing.T) {
	req := &ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "question"},
			{Role: RoleAssistant, Content: "answer"},
		},
	}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last message")
}

func TestChatRequestValidate_InvalidRole(t *testing.T) {
	req := &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "injected"},
		},
	}
	assert.Error(t, req.Validate())
}

func TestChatRequestValidate_ContentTooLarge(t *testing.T) {
	req := &ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Content: strings.Repeat("a", MaxMessageContentBytes+1)},
		},
	}
	assert.Error(t, req.Validate())
}

func TestChatRequestValidate_ContentAtLimit(t *testing.T) {
	req := &ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Content: strings.Repeat("a", MaxMessageContentBytes)},
		},
	}
	assert.NoError(t, req.Validate())
}

func TestChatRequestValidate_ImageBranch(t *testing.T) {
	req := &ChatRequest{
		GenerateImage: &ImageDirective{Prompt: "a red fox"},
	}
	assert.NoError(t, req.Validate())
}

func TestChatRequestValidate_ImageBranchEmptyPrompt(t *testing.T) {
	req := &ChatRequest{
		GenerateImage: &ImageDirective{},
	}
	assert.Error(t, req.Validate())
}

func TestChatRequestValidate_BothBranchesRejected(t *testing.T) {
	req := validChatRequest()
	req.GenerateImage = &ImageDirective{Prompt: "a red fox"}
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestChatRequestValidate_TooManyFiles(t *testing.T) {
	req := validChatRequest()
	for i := 0; i < MaxFilesPerRequest+1; i++ {
		req.Files = append(req.Files, FileAttachment{Name: "f.png", Type: "image/png"})
	}
	assert.Error(t, req.Validate())
}

func TestChatRequestEnsureDefaults(t *testing.T) {
	req := validChatRequest()
	require.Empty(t, req.RequestID)
	req.EnsureDefaults()
	assert.NotEmpty(t, req.RequestID)

	// An existing id is preserved.
	fixed := req.RequestID
	req.EnsureDefaults()
	assert.Equal(t, fixed, req.RequestID)
}

func TestFileAttachmentIsImage(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		want     bool
	}{
		{"png", "image/png", true},
		{"jpeg", "image/jpeg", true},
		{"pdf", "application/pdf", false},
		{"plain text", "text/plain", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &FileAttachment{Name: "f", Type: tt.mimeType}
			assert.Equal(t, tt.want, f.IsImage())
		})
	}
}
