// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package streamclient

import "strings"

// hedgeMarkers are uncertainty phrases counted by ClassifyConfidence.
// Matching is case-insensitive substring search.
var hedgeMarkers = []string{
	"i'm not sure",
	"i am not sure",
	"not certain",
	"i don't know",
	"i do not know",
	"it might",
	"it may",
	"it could be",
	"possibly",
	"perhaps",
	"i think",
	"i believe",
	"hard to say",
	"unclear",
	"may or may not",
}

// ClassifyConfidence assigns a tier from hedging language in the final
// text: no hedges is high, one is medium, more is low. Empty text is
// low. This is a heuristic, not a statistical model.
func ClassifyConfidence(text string) Confidence {
	if strings.TrimSpace(text) == "" {
		return ConfidenceLow
	}
	lower := strings.ToLower(text)
	hedges := 0
	for _, marker := range hedgeMarkers {
		hedges += strings.Count(lower, marker)
	}
	switch {
	case hedges == 0:
		return ConfidenceHigh
	case hedges == 1:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
