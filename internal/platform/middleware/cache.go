package middleware

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ETagConfig controls the validator headers set on catalog reads.
type ETagConfig struct {
	MaxAge      int // seconds
	Private     bool
	VaryHeaders []string
}

func DefaultETagConfig() ETagConfig {
	return ETagConfig{
		MaxAge:      60,
		Private:     true,
		VaryHeaders: []string{"Accept", "Authorization", "X-Tenant-ID"},
	}
}

// bufferedResponseWriter holds the body back until the ETag is known.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (w *bufferedResponseWriter) Header() http.Header { return w.writer.Header() }

func (w *bufferedResponseWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *bufferedResponseWriter) WriteHeader(code int) { w.statusCode = code }

func (w *bufferedResponseWriter) Flush() {}

func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// ETag hashes successful GET and HEAD bodies into a weak ETag and answers
// 304 when If-None-Match already holds it. The catalog changes rarely, so
// clients polling the food list mostly get empty 304s.
func ETag(cfg ETagConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}

			res := c.Response()
			orig := res.Writer
			buf := &bufferedResponseWriter{writer: orig, statusCode: http.StatusOK}
			res.Writer = buf
			err := next(c)
			res.Writer = orig
			if err != nil {
				return err
			}
			if buf.statusCode >= 300 {
				return buf.flushTo()
			}

			res.Header().Set("Cache-Control", cacheControl(cfg))
			if len(cfg.VaryHeaders) > 0 {
				res.Header().Set("Vary", strings.Join(cfg.VaryHeaders, ", "))
			}
			etag := computeETag(buf.buf.Bytes())
			res.Header().Set("ETag", etag)

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				res.Header().Del(echo.HeaderContentType)
				orig.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.flushTo()
		}
	}
}

func computeETag(body []byte) string {
	return fmt.Sprintf(`W/"%x"`, md5.Sum(body))
}

func cacheControl(cfg ETagConfig) string {
	scope := "public"
	if cfg.Private {
		scope = "private"
	}
	return fmt.Sprintf("%s, max-age=%d, must-revalidate", scope, cfg.MaxAge)
}

// etagMatch compares weakly and accepts lists and "*".
func etagMatch(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
