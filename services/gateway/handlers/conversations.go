// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentora-ai/mentora/services/gateway/datatypes"
	"github.com/mentora-ai/mentora/services/gateway/observability"
	"github.com/mentora-ai/mentora/services/gateway/store"
)

// analyticsDeriveWindow is how many recent records feed the derived
// learning context returned by GET /v1/analytics.
const analyticsDeriveWindow = 10

// ListConversations handles GET /v1/conversations.
func ListConversations(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, err := s.ListConversations(c.Request.Context())
		if err != nil {
			storeError(c, observability.EndpointConversations, "list conversations", err)
			return
		}
		if convs == nil {
			convs = []datatypes.Conversation{}
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs})
	}
}

// CreateConversation handles POST /v1/conversations.
func CreateConversation(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateConversationRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		conv, err := s.CreateConversation(c.Request.Context(), req.Title)
		if err != nil {
			storeError(c, observability.EndpointConversations, "create conversation", err)
			return
		}
		c.JSON(http.StatusCreated, conv)
	}
}

// GetConversation handles GET /v1/conversations/:id.
func GetConversation(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, err := s.GetConversation(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "conversation not found"})
				return
			}
			storeError(c, observability.EndpointConversations, "get conversation", err)
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

// DeleteConversation handles DELETE /v1/conversations/:id.
func DeleteConversation(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.DeleteConversation(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "conversation not found"})
				return
			}
			storeError(c, observability.EndpointConversations, "delete conversation", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ListMessages handles GET /v1/conversations/:id/messages.
func ListMessages(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := s.ListMessages(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "conversation not found"})
				return
			}
			storeError(c, observability.EndpointConversations, "list messages", err)
			return
		}
		if msgs == nil {
			msgs = []datatypes.StoredMessage{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

// AppendMessage handles POST /v1/conversations/:id/messages. Clients call
// this after a stream completes to persist the final assembled message.
func AppendMessage(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AppendMessageRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request: validation failed"})
			return
		}
		msg, err := s.AppendMessage(c.Request.Context(), c.Param("id"), req.Role, req.Content)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "conversation not found"})
				return
			}
			storeError(c, observability.EndpointConversations, "append message", err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// GetPreferences handles GET /v1/preferences.
func GetPreferences(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefs, err := s.GetPreferences(c.Request.Context())
		if err != nil {
			storeError(c, observability.EndpointPreferences, "get preferences", err)
			return
		}
		c.JSON(http.StatusOK, prefs)
	}
}

// PutPreferences handles PUT /v1/preferences.
func PutPreferences(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var prefs datatypes.UserPreferences
		if err := c.BindJSON(&prefs); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		if err := prefs.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request: validation failed"})
			return
		}
		if err := s.PutPreferences(c.Request.Context(), &prefs); err != nil {
			storeError(c, observability.EndpointPreferences, "put preferences", err)
			return
		}
		c.JSON(http.StatusOK, prefs)
	}
}

// PostAnalytics handles POST /v1/analytics.
func PostAnalytics(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rec datatypes.AnalyticsRecord
		if err := c.BindJSON(&rec); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		if err := rec.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request: validation failed"})
			return
		}
		if err := s.AppendAnalytics(c.Request.Context(), &rec); err != nil {
			storeError(c, observability.EndpointAnalytics, "append analytics", err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

// GetAnalytics handles GET /v1/analytics. The response carries the raw
// records plus the derived learning context in the shape POST /v1/chat
// accepts, so a client can close the personalization loop directly.
func GetAnalytics(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := s.ListAnalytics(c.Request.Context())
		if err != nil {
			storeError(c, observability.EndpointAnalytics, "list analytics", err)
			return
		}
		if recs == nil {
			recs = []datatypes.AnalyticsRecord{}
		}
		c.JSON(http.StatusOK, datatypes.AnalyticsSummary{
			Records: recs,
			Derived: datatypes.DeriveLearningContext(recs, analyticsDeriveWindow),
		})
	}
}

func storeError(c *gin.Context, endpoint observability.Endpoint, op string, err error) {
	slog.Error("Store operation failed", "op", op, "error", err)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, observability.ErrorCodeStore)
	}
	c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "service error, please try again"})
}
