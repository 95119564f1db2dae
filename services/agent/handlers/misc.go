// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantpulse-ai/plantpulse/services/agent/tools"
)

// HealthCheck serves GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "agent"})
}

// ToolsHandler serves the tool catalog listing.
type ToolsHandler struct {
	invoker tools.Invoker
}

// NewToolsHandler creates the catalog handler. Panics on nil invoker.
func NewToolsHandler(invoker tools.Invoker) *ToolsHandler {
	if invoker == nil {
		panic("handlers: tool invoker is required")
	}
	return &ToolsHandler{invoker: invoker}
}

// HandleListTools serves GET /v1/tools with the catalog in stable order.
func (h *ToolsHandler) HandleListTools(c *gin.Context) {
	specs := h.invoker.Catalog().Specs()
	out := make([]gin.H, 0, len(specs))
	for _, spec := range specs {
		out = append(out, gin.H{"name": spec.Name, "description": spec.Description})
	}
	c.JSON(http.StatusOK, gin.H{"tools": out, "count": len(out)})
}
