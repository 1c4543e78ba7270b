// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package streamclient

// Confidence is a heuristic classification of a finished answer into
// three ordered tiers. It is a pure function of the final text.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Event is one step of a streaming chat response. Exactly one of Done or
// Failed terminates a stream; Delta events precede it.
type Event interface {
	isEvent()
}

// Delta carries the cumulative text assembled so far, not just the
// latest fragment, so a consumer can always render the full message.
type Delta struct {
	Text string
}

// Done carries the final assembled text and its confidence tier. It
// fires exactly once, including when the stream ends early with only
// partial text.
type Done struct {
	Text       string
	Confidence Confidence
}

// Failed reports a stream that broke before producing any text. It is
// mutually exclusive with Done.
type Failed struct {
	Err error
}

func (Delta) isEvent()  {}
func (Done) isEvent()   {}
func (Failed) isEvent() {}
