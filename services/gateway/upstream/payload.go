// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upstream

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mentora-ai/mentora/services/gateway/datatypes"
)

// BuildChatPayload translates the inbound request into the upstream
// chat-completions payload: the system prompt first, then the message list
// verbatim, with only the final message rewritten when attachments are
// present.
//
// # Description
//
// Attachment rewriting on the final message:
//   - Document attachments are flattened into the message text as labeled
//     blocks (filename, page count, extracted text). A file with no
//     extracted text gets a bare filename marker.
//   - Image attachments become inline image parts alongside a single text
//     part. The text part carries the (possibly document-extended) message
//     content; with image-only attachments it equals the original content
//     byte for byte.
//
// Messages before the last are never touched.
//
// # Inputs
//
//   - systemPrompt: Fixed-plus-personalized instruction block.
//   - msgs: Validated, non-empty message history; last role is "user".
//   - files: Attachments for the final message, possibly empty.
//
// # Outputs
//
//   - openai.ChatCompletionRequest ready for StreamChat. Model is left
//     empty; the client fills its configured default.
func BuildChatPayload(systemPrompt string, msgs []datatypes.Message, files []datatypes.FileAttachment) openai.ChatCompletionRequest {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for i, m := range msgs {
		if i == len(msgs)-1 && len(files) > 0 {
			out = append(out, rewriteFinalMessage(m, files))
			continue
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{Messages: out}
}

// rewriteFinalMessage folds attachments into the last message per the
// rules above.
func rewriteFinalMessage(m datatypes.Message, files []datatypes.FileAttachment) openai.ChatCompletionMessage {
	text := m.Content
	var imageParts []openai.ChatMessagePart

	for _, f := range files {
		if f.IsImage() {
			imageParts = append(imageParts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", f.Type, f.Base64),
				},
			})
			continue
		}
		text += documentBlock(f)
	}

	if len(imageParts) == 0 {
		return openai.ChatCompletionMessage{Role: m.Role, Content: text}
	}

	parts := make([]openai.ChatMessagePart, 0, len(imageParts)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: text,
	})
	parts = append(parts, imageParts...)
	return openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts}
}

// documentBlock renders one non-image attachment as a labeled text block
// appended to the message.
func documentBlock(f datatypes.FileAttachment) string {
	var b strings.Builder
	b.WriteString("\n\n")
	if f.PDFText == "" {
		fmt.Fprintf(&b, "[Attached file: %s]", f.Name)
		return b.String()
	}
	if f.PDFPageCount > 0 {
		fmt.Fprintf(&b, "[Attached document: %s, %d pages]\n", f.Name, f.PDFPageCount)
	} else {
		fmt.Fprintf(&b, "[Attached document: %s]\n", f.Name)
	}
	b.WriteString(f.PDFText)
	return b.String()
}
