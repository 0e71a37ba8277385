package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// ResponseCache keeps rendered GET responses for a short TTL. The roster and journal
// views change whenever a scan is recorded, so the journal purges it after every write.
type ResponseCache struct {
	entries *cache.Cache
	ttl     time.Duration
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries: cache.New(ttl, 2*ttl),
		ttl:     ttl,
	}
}

// Purge drops every cached response.
func (rc *ResponseCache) Purge() {
	rc.entries.Flush()
}

// Len returns the number of cached responses, expired ones included until cleanup.
func (rc *ResponseCache) Len() int {
	return rc.entries.ItemCount()
}

// snapshot is a 200 response as it was sent.
type snapshot struct {
	header http.Header
	body   []byte
}

func (s snapshot) replay(w gin.ResponseWriter) {
	for k, v := range s.header {
		w.Header()[k] = v
	}
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(http.StatusOK)
	w.Write(s.body)
}

// teeWriter copies the body into buf while writing it through.
type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware serves GET requests from the cache, keyed by path and query. Only 200
// responses are stored.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, ok := rc.entries.Get(key); ok {
			v.(snapshot).replay(c.Writer)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		tee := teeWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = tee
		c.Next()

		if tee.Status() != http.StatusOK {
			return
		}
		header := tee.Header().Clone()
		header.Del("X-Cache")
		rc.entries.Set(key, snapshot{header: header, body: tee.buf.Bytes()}, rc.ttl)
	}
}
