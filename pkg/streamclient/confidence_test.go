// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package streamclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyConfidence_Tiers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Confidence
	}{
		{
			name: "assertive answer is high",
			text: "A fraction represents a part of a whole. The numerator counts parts.",
			want: ConfidenceHigh,
		},
		{
			name: "single hedge is medium",
			text: "I think the answer is 42.",
			want: ConfidenceMedium,
		},
		{
			name: "multiple hedges are low",
			text: "I'm not sure, but it could be related to rounding. Perhaps try again.",
			want: ConfidenceLow,
		},
		{
			name: "empty text is low",
			text: "",
			want: ConfidenceLow,
		},
		{
			name: "whitespace only is low",
			text: "   \n\t ",
			want: ConfidenceLow,
		},
		{
			name: "hedge detection is case-insensitive",
			text: "PERHAPS you meant subtraction.",
			want: ConfidenceMedium,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyConfidence(tc.text))
		})
	}
}

func TestClassifyConfidence_Pure(t *testing.T) {
	text := "It might be a precision issue, though I believe the algorithm is correct."
	first := ClassifyConfidence(text)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ClassifyConfidence(text))
	}
}
