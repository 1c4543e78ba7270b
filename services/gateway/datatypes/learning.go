// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// Personalization Types
// =============================================================================

// Difficulty levels accepted for preferences and analytics.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// UserPreferences is the user's stored learning profile. The chat endpoint
// accepts it inline to parameterize the system prompt; the preferences
// endpoints persist it.
type UserPreferences struct {
	LearningStyle string `json:"learningStyle,omitempty" validate:"omitempty,max=100"`
	ExampleDomain string `json:"exampleDomain,omitempty" validate:"omitempty,max=100"`
	Difficulty    string `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Gamification  bool   `json:"gamification,omitempty"`
}

// Validate checks the preference fields against the struct tags.
func (p *UserPreferences) Validate() error {
	return chatValidate.Struct(p)
}

// LearningContext is a summary of recent performance supplied by the client
// (or derived by GET /v1/analytics). Accuracy and Engagement are 0-100.
type LearningContext struct {
	Accuracy   float64 `json:"accuracy" validate:"min=0,max=100"`
	Engagement float64 `json:"engagement" validate:"min=0,max=100"`
	Topic      string  `json:"topic,omitempty" validate:"omitempty,max=200"`
	Difficulty string  `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// =============================================================================
// Conversation Store Types
// =============================================================================

// Conversation is one stored chat thread.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// StoredMessage is one persisted turn of a conversation. Seq is a
// per-conversation sequence number assigned at append time; listing a
// conversation returns messages ordered by Seq, so insertion order is the
// read order.
type StoredMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Seq            uint64 `json:"seq"`
	CreatedAt      int64  `json:"createdAt"`
}

// AppendMessageRequest is the body of POST /v1/conversations/:id/messages.
type AppendMessageRequest struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,maxbytes"`
}

// Validate checks the append request against the struct tags.
func (r *AppendMessageRequest) Validate() error {
	return chatValidate.Struct(r)
}

// CreateConversationRequest is the body of POST /v1/conversations.
type CreateConversationRequest struct {
	Title string `json:"title" validate:"omitempty,max=200"`
}

// =============================================================================
// Analytics Types
// =============================================================================

// AnalyticsRecord is one quiz/exercise outcome.
//
// # Fields
//
//   - Accuracy: Percent correct, 0-100.
//   - ResponseTimeMs: Time to answer in milliseconds.
//   - EngagementScore: Derived engagement, 0-100.
//   - Topic: Free-text topic label.
//   - Difficulty: "easy", "medium" or "hard".
type AnalyticsRecord struct {
	ID              string  `json:"id"`
	Accuracy        float64 `json:"accuracy" validate:"min=0,max=100"`
	ResponseTimeMs  int64   `json:"responseTimeMs" validate:"min=0"`
	EngagementScore float64 `json:"engagementScore" validate:"min=0,max=100"`
	Topic           string  `json:"topic" validate:"omitempty,max=200"`
	Difficulty      string  `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	CreatedAt       int64   `json:"createdAt"`
}

// Validate checks the record against the struct tags.
func (a *AnalyticsRecord) Validate() error {
	return chatValidate.Struct(a)
}

// EnsureDefaults assigns an id and timestamp for records the client did not
// stamp.
func (a *AnalyticsRecord) EnsureDefaults() {
	if a.ID == "" {
		a.ID = generateUUID()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = nowUnixMilli()
	}
}

// AnalyticsSummary is the response of GET /v1/analytics: the raw records
// plus the derived learning context a client can feed straight back into
// POST /v1/chat.
type AnalyticsSummary struct {
	Records []AnalyticsRecord `json:"records"`
	Derived *LearningContext  `json:"derived,omitempty"`
}

// DeriveLearningContext averages recent records into the context shape the
// chat endpoint accepts. Records are assumed newest-last; the last `window`
// records contribute. Returns nil when there is nothing to derive.
func DeriveLearningContext(records []AnalyticsRecord, window int) *LearningContext {
	if len(records) == 0 || window <= 0 {
		return nil
	}
	start := len(records) - window
	if start < 0 {
		start = 0
	}
	recent := records[start:]
	var accSum, engSum float64
	for _, r := range recent {
		accSum += r.Accuracy
		engSum += r.EngagementScore
	}
	last := recent[len(recent)-1]
	return &LearningContext{
		Accuracy:   accSum / float64(len(recent)),
		Engagement: engSum / float64(len(recent)),
		Topic:      last.Topic,
		Difficulty: last.Difficulty,
	}
}

// generateUUID returns a random v4 UUID string.
func generateUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// crypto/rand failure; effectively unreachable.
		panic(fmt.Sprintf("uuid generation failed: %v", err))
	}
	return id.String()
}
