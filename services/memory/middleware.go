// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// getOrCreateRequestID returns the caller-supplied request ID or mints one,
// and echoes it on the response so clients can correlate logs.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(requestIDHeader, id)
	return id
}

// AuditMiddleware logs every /tools/* call with method, status, and latency,
// and records the Prometheus tool metrics.
//
// Thread Safety: this middleware is safe for concurrent use.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/tools/") {
			return
		}

		tool := strings.TrimPrefix(path, "/tools/")
		status := c.Writer.Status()
		toolCallsTotal.WithLabelValues(tool, strconv.Itoa(status)).Inc()
		toolLatencySeconds.WithLabelValues(tool).Observe(elapsed.Seconds())

		slog.Info("AUDIT",
			slog.String("path", path),
			slog.String("method", c.Request.Method),
			slog.Int("status", status),
			slog.Float64("latency_ms", float64(elapsed.Microseconds())/1000.0),
		)
	}
}
