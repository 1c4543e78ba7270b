// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package attach converts raw files into wire-ready attachments before
// they are placed on a chat request.
//
// Images are base64-encoded inline. Documents (PDF) have their text
// extracted up to a page cap; past the cap a truncation notice is
// appended so both the model and the user know the content is partial.
// Extraction failure is a distinct, user-visible error - a request is
// never sent with partial or corrupt attachment data.
package attach

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
)

// DefaultMaxBytes bounds a single attachment's raw size.
const DefaultMaxBytes = 10 * 1024 * 1024 // 10MB

// DefaultMaxPages bounds document extraction.
const DefaultMaxPages = 20

var (
	// ErrTooLarge is returned when an attachment exceeds the size bound.
	ErrTooLarge = errors.New("attachment exceeds the maximum allowed size")

	// ErrExtraction is returned when document text extraction fails
	// (corrupt or encrypted file). It is surfaced before any network call.
	ErrExtraction = errors.New("could not extract text from the document")
)

// File is a wire-ready attachment. Images carry inline base64 data;
// documents carry extracted text and a page count instead.
type File struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Base64       string `json:"base64,omitempty"`
	PDFText      string `json:"pdfText,omitempty"`
	PDFPageCount int    `json:"pdfPageCount,omitempty"`
}

// IsImage reports whether the attachment is an inline image.
func (f *File) IsImage() bool {
	return strings.HasPrefix(f.Type, "image/")
}

// FromReader reads an image or other binary file and base64-encodes it
// inline. Reading stops with ErrTooLarge past DefaultMaxBytes.
func FromReader(name, mime string, r io.Reader) (*File, error) {
	data, err := io.ReadAll(io.LimitReader(r, DefaultMaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %q: %w", name, err)
	}
	if int64(len(data)) > DefaultMaxBytes {
		return nil, fmt.Errorf("%w: %q", ErrTooLarge, name)
	}
	return &File{
		Name:   name,
		Type:   mime,
		Base64: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// ExtractPDF extracts text from up to maxPages pages of a PDF. The page
// count reported on the attachment is the document's full page count,
// not the number of pages extracted. maxPages <= 0 uses DefaultMaxPages.
func ExtractPDF(ctx context.Context, name string, r io.ReaderAt, size int64, maxPages int) (*File, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if size > DefaultMaxBytes {
		return nil, fmt.Errorf("%w: %q", ErrTooLarge, name)
	}

	docs, err := documentloaders.NewPDF(r, size).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrExtraction, name, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %q: document has no readable pages", ErrExtraction, name)
	}

	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.PageContent)
	}
	text, total := foldPages(pages, maxPages)

	return &File{
		Name:         name,
		Type:         "application/pdf",
		PDFText:      text,
		PDFPageCount: total,
	}, nil
}

// foldPages joins extracted page text, capping at maxPages and appending
// a truncation notice when the document is longer than the cap.
func foldPages(pages []string, maxPages int) (text string, total int) {
	total = len(pages)
	kept := pages
	if total > maxPages {
		kept = pages[:maxPages]
	}
	text = strings.Join(kept, "\n\n")
	if total > maxPages {
		text += fmt.Sprintf("\n\n[Document truncated: showing the first %d of %d pages]", maxPages, total)
	}
	return text, total
}
