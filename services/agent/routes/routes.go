// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the agent's HTTP endpoints onto a Gin router.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/plantpulse-ai/plantpulse/services/agent/handlers"
	"github.com/plantpulse-ai/plantpulse/services/agent/middleware"
)

// Options carries the wired handlers and middleware settings.
type Options struct {
	Chat  *handlers.ChatHandler
	Tools *handlers.ToolsHandler

	// APIToken enables bearer auth on /v1 when non-empty.
	APIToken string

	// RateLimit enables per-client rate limiting on /v1 when non-nil.
	RateLimit *middleware.RateLimiter
}

// SetupRoutes registers all endpoints. Health and metrics stay outside
// the authenticated group so probes and scrapers need no credentials.
func SetupRoutes(router *gin.Engine, opts Options) {
	router.Use(otelgin.Middleware("plantpulse-agent"))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.APIToken))
	if opts.RateLimit != nil {
		v1.Use(opts.RateLimit.Middleware())
	}
	{
		v1.POST("/chat", opts.Chat.HandleChat)
		v1.POST("/chat/stream", opts.Chat.HandleChatStream)
		v1.GET("/chat/ws", opts.Chat.HandleChatWS)
		v1.GET("/tools", opts.Tools.HandleListTools)
	}
}
