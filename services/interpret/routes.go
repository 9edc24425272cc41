// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package interpret

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the /v1/interpret endpoints.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//	limit - Middleware applied to the processing endpoints. May be nil.
//
// Endpoints:
//
//	POST /v1/interpret/process - Process one document
//	POST /v1/interpret/batch - Process many documents
//	POST /v1/interpret/model/reload - Re-apply the network file
//	GET  /v1/interpret/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers, limit gin.HandlerFunc) {
	g := rg.Group("/interpret")

	processing := []gin.HandlerFunc{}
	if limit != nil {
		processing = append(processing, limit)
	}
	g.POST("/process", append(processing, handlers.HandleProcess)...)
	g.POST("/batch", append(processing, handlers.HandleBatch)...)
	g.POST("/model/reload", handlers.HandleReload)
	g.GET("/health", handlers.HandleHealth)
}
