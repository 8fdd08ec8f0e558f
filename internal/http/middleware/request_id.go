package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID, or mints one, so a request
// can be correlated between a fronting proxy and these logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		c.Set(RequestIDHeader, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// requestIDFrom returns the id set by RequestID, or "" before it ran.
func requestIDFrom(c *gin.Context) string {
	val, _ := c.Get(RequestIDHeader)
	id, _ := val.(string)
	return id
}

func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// Never happens on supported platforms; a fixed id beats failing
		// the request over a log correlation tag.
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(buf)
}
