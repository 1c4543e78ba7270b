// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentora-ai/mentora/services/gateway/datatypes"
)

func TestBuildChatPayload_NoAttachments(t *testing.T) {
	msgs := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "first"},
		{Role: datatypes.RoleAssistant, Content: "second"},
		{Role: datatypes.RoleUser, Content: "third"},
	}

	payload := BuildChatPayload("SYSTEM", msgs, nil)

	require.Len(t, payload.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, payload.Messages[0].Role)
	assert.Equal(t, "SYSTEM", payload.Messages[0].Content)
	for i, m := range msgs {
		assert.Equal(t, m.Role, payload.Messages[i+1].Role)
		assert.Equal(t, m.Content, payload.Messages[i+1].Content)
		assert.Empty(t, payload.Messages[i+1].MultiContent)
	}
}

func TestBuildChatPayload_SingleImageAttachment(t *testing.T) {
	msgs := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "what is in this picture?"},
	}
	files := []datatypes.FileAttachment{
		{Name: "photo.png", Type: "image/png", Base64: "aGVsbG8="},
	}

	payload := BuildChatPayload("SYSTEM", msgs, files)

	require.Len(t, payload.Messages, 2)
	last := payload.Messages[1]
	assert.Empty(t, last.Content)
	require.Len(t, last.MultiContent, 2)

	var textParts, imageParts int
	for _, p := range last.MultiContent {
		switch p.Type {
		case openai.ChatMessagePartTypeText:
			textParts++
			// Original content, unchanged.
			assert.Equal(t, "what is in this picture?", p.Text)
		case openai.ChatMessagePartTypeImageURL:
			imageParts++
			require.NotNil(t, p.ImageURL)
			assert.Equal(t, "data:image/png;base64,aGVsbG8=", p.ImageURL.URL)
		}
	}
	assert.Equal(t, 1, textParts)
	assert.Equal(t, 1, imageParts)
}

func TestBuildChatPayload_DocumentAttachment(t *testing.T) {
	msgs := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "summarize this"},
	}
	files := []datatypes.FileAttachment{
		{Name: "notes.pdf", Type: "application/pdf", PDFText: "T", PDFPageCount: 3},
	}

	payload := BuildChatPayload("SYSTEM", msgs, files)

	require.Len(t, payload.Messages, 2)
	content := payload.Messages[1].Content
	assert.Contains(t, content, "summarize this")
	assert.Contains(t, content, "T")
	assert.Contains(t, content, "3 pages")
	assert.Contains(t, content, "notes.pdf")
}

func TestBuildChatPayload_FileWithoutExtractedText(t *testing.T) {
	msgs := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "see attached"},
	}
	files := []datatypes.FileAttachment{
		{Name: "data.csv", Type: "text/csv"},
	}

	payload := BuildChatPayload("SYSTEM", msgs, files)
	assert.Contains(t, payload.Messages[1].Content, "[Attached file: data.csv]")
}

func TestBuildChatPayload_MixedAttachments(t *testing.T) {
	msgs := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "compare these"},
	}
	files := []datatypes.FileAttachment{
		{Name: "chart.jpg", Type: "image/jpeg", Base64: "abc"},
		{Name: "report.pdf", Type: "application/pdf", PDFText: "quarterly numbers", PDFPageCount: 2},
	}

	payload := BuildChatPayload("SYSTEM", msgs, files)
	last := payload.Messages[1]
	require.Len(t, last.MultiContent, 2)

	// Text part carries the document block; image rides alongside.
	assert.Equal(t, openai.ChatMessagePartTypeText, last.MultiContent[0].Type)
	assert.Contains(t, last.MultiContent[0].Text, "compare these")
	assert.Contains(t, last.MultiContent[0].Text, "quarterly numbers")
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, last.MultiContent[1].Type)
}

func TestBuildChatPayload_EarlierMessagesUntouchedByAttachments(t *testing.T) {
	msgs := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "history one"},
		{Role: datatypes.RoleAssistant, Content: "history two"},
		{Role: datatypes.RoleUser, Content: "final"},
	}
	files := []datatypes.FileAttachment{
		{Name: "a.png", Type: "image/png", Base64: "xyz"},
	}

	payload := BuildChatPayload("SYSTEM", msgs, files)
	assert.Equal(t, "history one", payload.Messages[1].Content)
	assert.Equal(t, "history two", payload.Messages[2].Content)
	assert.Empty(t, payload.Messages[1].MultiContent)
}
