// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package prompt builds the system prompt for upstream chat requests.
//
// Construction is pure: the same preferences and learning context always
// produce the same string, so the outbound payload is reproducible in tests.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mentora-ai/mentora/services/gateway/datatypes"
)

// Base is the fixed instruction block present on every chat request.
const Base = `You are Mentora, a patient and encouraging AI tutor.
Keep a warm, supportive tone. Format answers in Markdown: short paragraphs,
bulleted steps for procedures, fenced code blocks for code.
When the user shares an image, describe what you see before answering.
Never invent facts; say so when you are unsure.`

// Adaptation thresholds. Below these the personalization block asks the
// model to change its approach.
const (
	lowAccuracyThreshold   = 60.0
	lowEngagementThreshold = 50.0
)

// Build returns the complete system prompt: the fixed base plus, when
// personalization data is supplied, a deterministic block describing the
// learner's preferences and recent performance.
func Build(prefs *datatypes.UserPreferences, lc *datatypes.LearningContext) string {
	var b strings.Builder
	b.WriteString(Base)

	if prefs != nil {
		b.WriteString("\n\nLearner profile:")
		if prefs.LearningStyle != "" {
			fmt.Fprintf(&b, "\n- Preferred learning style: %s.", prefs.LearningStyle)
		}
		if prefs.ExampleDomain != "" {
			fmt.Fprintf(&b, "\n- Draw examples from: %s.", prefs.ExampleDomain)
		}
		if prefs.Difficulty != "" {
			fmt.Fprintf(&b, "\n- Target difficulty: %s.", prefs.Difficulty)
		}
		if prefs.Gamification {
			b.WriteString("\n- Use light gamification: award points, celebrate streaks and milestones.")
		}
	}

	if lc != nil {
		b.WriteString("\n\nRecent performance:")
		fmt.Fprintf(&b, "\n- Average accuracy: %.0f%%.", lc.Accuracy)
		fmt.Fprintf(&b, "\n- Engagement score: %.0f%%.", lc.Engagement)
		if lc.Topic != "" {
			fmt.Fprintf(&b, "\n- Last topic: %s.", lc.Topic)
		}
		if lc.Difficulty != "" {
			fmt.Fprintf(&b, "\n- Last difficulty: %s.", lc.Difficulty)
		}
		if lc.Accuracy < lowAccuracyThreshold {
			b.WriteString("\n- Accuracy is low: simplify explanations, use smaller steps, and check understanding often.")
		}
		if lc.Engagement < lowEngagementThreshold {
			b.WriteString("\n- Engagement is low: make responses more interactive, ask questions back, and vary the format.")
		}
	}

	return b.String()
}
