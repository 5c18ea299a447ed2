package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type SizeLimitConfig struct {
	MaxBodySize   int64
	MaxHeaderSize int
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   1 << 20,
		MaxHeaderSize: 1 << 14,
	}
}

// SizeLimit rejects oversized requests before the body is read. The
// body check relies on Content-Length; chunked uploads without one
// pass through and are bounded by the server's own limits.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxBodySize {
			abortWith(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", config.MaxBodySize))
			return
		}

		headerSize := 0
		for name, values := range c.Request.Header {
			headerSize += len(name)
			for _, v := range values {
				headerSize += len(v)
			}
		}
		if headerSize > config.MaxHeaderSize {
			abortWith(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request headers exceed %d bytes", config.MaxHeaderSize))
			return
		}

		c.Next()
	}
}
