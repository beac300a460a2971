package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/relaymesh/apigw/internal/observability"
	"github.com/relaymesh/apigw/internal/pipeline"
)

// Response headers recomputed by the server rather than copied from
// the upstream response.
var skipResponseHeaders = map[string]bool{
	"content-length":    true,
	"connection":        true,
	"transfer-encoding": true,
}

// handleProxy is the catch-all gateway handler: it maps the inbound
// request to a pipeline descriptor and writes the terminal result.
func (s *Server) handleProxy(c *gin.Context) {
	correlationID := correlationIDFrom(c)

	service, ok := s.orchestrator.ResolveService(c.Request.URL.Path)
	if !ok {
		writeFailure(c, &pipeline.Failure{
			StatusCode:    http.StatusForbidden,
			Message:       "no route matches request path",
			CorrelationID: correlationID,
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, defaultMaxRequestBody))
	if err != nil {
		writeFailure(c, &pipeline.Failure{
			StatusCode:    http.StatusBadRequest,
			Message:       "request body unreadable",
			Details:       err.Error(),
			CorrelationID: correlationID,
		})
		return
	}

	desc := pipeline.NewRequestDescriptor(service, c.Request.Method, c.Request.URL.Path)
	desc.Query = c.Request.URL.Query()
	desc.Headers = flattenHeaders(c.Request.Header)
	desc.Body = body
	desc.CorrelationID = correlationID

	result := s.orchestrator.Process(c.Request.Context(), desc)
	writeResult(c, result)
}

// handleCacheStats exposes backend cache statistics.
func (s *Server) handleCacheStats(c *gin.Context) {
	stats, ok := s.orchestrator.CacheStats()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"message": "cache statistics unavailable"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":    stats.Hits,
		"misses":  stats.Misses,
		"size":    stats.Size,
		"hitRate": stats.HitRate(),
	})
}

// handleInvalidateCache drops every cached response for one service.
func (s *Server) handleInvalidateCache(c *gin.Context) {
	service := c.Param("service")
	removed := s.orchestrator.InvalidateService(c.Request.Context(), service)

	s.logger.Info("cache invalidated",
		observability.String("service", service),
		observability.Int("removed", removed),
	)
	c.JSON(http.StatusOK, gin.H{"service": service, "removed": removed})
}

// writeResult materializes a pipeline result onto the HTTP response.
func writeResult(c *gin.Context, result *pipeline.Result) {
	if !result.Success() {
		writeFailure(c, result.Failure)
		return
	}

	for name, value := range result.Headers {
		if skipResponseHeaders[strings.ToLower(name)] {
			continue
		}
		c.Writer.Header().Set(name, value)
	}
	if result.FromCache {
		c.Writer.Header().Set("X-Cache", "HIT")
	}

	contentType := c.Writer.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(result.StatusCode, contentType, result.Body)
}

func writeFailure(c *gin.Context, failure *pipeline.Failure) {
	c.Data(failure.StatusCode, "application/json", failure.JSON())
}

// flattenHeaders reduces a multi-value header map to the first value
// per name, the shape the pipeline works with.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}

func correlationIDFrom(c *gin.Context) string {
	return observability.CorrelationIDFromContext(c.Request.Context())
}
