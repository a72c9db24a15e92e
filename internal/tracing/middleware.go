package tracing

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tsyne-dev/tsyne-host/internal/shared/id"
)

// RequestIDHeader carries the request identifier on requests and
// responses.
const RequestIDHeader = "X-Request-ID"

// Middleware stamps every request with a request identifier, echoes it on
// the response, and submits one span per handled request. Well-formed
// caller-supplied identifiers are kept so clients can correlate retries.
func Middleware(t *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := id.NewRequestID()
		if hdr := c.GetHeader(RequestIDHeader); hdr != "" {
			if supplied, err := id.ParseRequest(hdr); err == nil {
				reqID = supplied
			}
		}

		c.Request = c.Request.WithContext(WithRequest(c.Request.Context(), reqID))
		c.Header(RequestIDHeader, reqID.String())

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}

		start := time.Now()
		c.Next()

		span := &Span{
			Request:  reqID,
			Name:     name,
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
			Status:   c.Writer.Status(),
			Duration: time.Since(start),
		}
		if len(c.Errors) > 0 {
			span.Err = c.Errors.Last()
		}
		t.Submit(span)
	}
}
