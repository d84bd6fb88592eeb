package middleware

import (
	"crypto/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/example/engagement-score/internal/logging"
)

// RequestIDHeader carries the request ID on both the request and the response.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "requestID"

// maxRequestIDLength bounds client supplied IDs; longer ones are replaced.
const maxRequestIDLength = 128

// RequestID reuses a well-formed incoming X-Request-ID or assigns a new ULID,
// echoes it on the response and stores it on the request context. The ID is
// for log correlation only and never keys stored results.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = newULID(time.Now())
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func newULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
