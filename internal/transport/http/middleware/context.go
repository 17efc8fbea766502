package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIDHeader carries the correlation identifier across service boundaries.
const TraceIDHeader = "X-Trace-ID"

const traceIDKey = "trace_id"

// EnrichContext assigns each request a trace identifier. An inbound value is
// honoured only when it parses as a UUID; anything else is replaced so a
// caller cannot inject arbitrary text into logs and responses.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(TraceIDHeader))
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}

		c.Set(traceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID returns the trace identifier assigned to the request.
func GetTraceID(c *gin.Context) string {
	if value, exists := c.Get(traceIDKey); exists {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
