// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mentora-ai/mentora/services/gateway/handlers"
	"github.com/mentora-ai/mentora/services/gateway/store"
	"github.com/mentora-ai/mentora/services/gateway/upstream"
)

// SetupRoutes wires the gateway's HTTP surface onto the router.
func SetupRoutes(router *gin.Engine, client upstream.Client, s *store.Store) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chatHandler := handlers.NewChatHandler(client)

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/chat", chatHandler.HandleChat)

		conversations := v1.Group("/conversations")
		{
			conversations.GET("", handlers.ListConversations(s))
			conversations.POST("", handlers.CreateConversation(s))
			conversations.GET("/:id", handlers.GetConversation(s))
			conversations.DELETE("/:id", handlers.DeleteConversation(s))
			conversations.GET("/:id/messages", handlers.ListMessages(s))
			conversations.POST("/:id/messages", handlers.AppendMessage(s))
		}

		v1.GET("/preferences", handlers.GetPreferences(s))
		v1.PUT("/preferences", handlers.PutPreferences(s))

		v1.GET("/analytics", handlers.GetAnalytics(s))
		v1.POST("/analytics", handlers.PostAnalytics(s))
	}
}
