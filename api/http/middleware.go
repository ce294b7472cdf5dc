// Package http exposes a query cache over HTTP with gin: an inspector for
// entries and events, a Prometheus endpoint, and request middleware.
//
// Package http 使用gin通过HTTP暴露查询缓存：条目与事件的检查接口、
// Prometheus端点以及请求中间件。
package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/pkg/cache"
	"github.com/Humphrey-He/hquery/pkg/logger"
)

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID reuses the caller's X-Request-ID or generates one, and echoes it
// in the response.
//
// RequestID 复用调用方的X-Request-ID或生成一个新的，并在响应中回显。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger returns a middleware that logs each request with zap.
// Server errors log at Error, client errors at Warn, the rest at Debug.
//
// RequestLogger 返回使用zap记录每个请求的中间件。
//
// Parameters:
//   - log: The logger; nil discards
//
// Returns:
//   - gin.HandlerFunc: The middleware
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	log = logger.OrNop(log)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String(requestIDKey, c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Debug("http request", fields...)
		}
	}
}

// Cache state headers set by CacheHeaders.
const (
	EntriesHeader = "X-Cache-Entries"
	FetchesHeader = "X-Cache-Fetches"
)

// CacheHeaders reports the size of c on every response, so a client can
// watch the cache grow without polling /cache/entries.
//
// CacheHeaders 在每个响应中报告c的大小。
func CacheHeaders(c *cache.Client) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header(EntriesHeader, strconv.Itoa(c.Len()))
		ctx.Header(FetchesHeader, strconv.Itoa(c.FetchingCount()))
		ctx.Next()
	}
}
