package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes bounds request bodies after decompression.
const MaxBodyBytes = 1 << 20

type gzipBody struct {
	io.Reader
	closers []io.Closer
}

func (b gzipBody) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DecompressRequest transparently handles gzip encoded requests and caps the body size.
func DecompressRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if !strings.Contains(c.GetHeader("Content-Encoding"), "gzip") {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
			c.Next()
			return
		}

		original := c.Request.Body
		reader, err := gzip.NewReader(original)
		if err != nil {
			abort(c, http.StatusBadRequest, "invalid_request")
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, gzipBody{Reader: reader, closers: []io.Closer{reader, original}}, MaxBodyBytes)
		c.Request.Header.Del("Content-Encoding")
		c.Request.ContentLength = -1
		c.Next()
	}
}
