package edgelog

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
)

const (
	ctxKeyNotes            = "edgelog.notes"
	ctxKeyMaskNames        = "edgelog.maskNames"
	ctxKeySkipResponseBody = "edgelog.skipResponseBody"
)

// maxMultipartMemory bounds in-memory parsing of multipart bodies.
const maxMultipartMemory = 32 << 20

// SetNotes attaches annotations to the current request; they appear in the
// END entry's notes field.
func SetNotes(c *gin.Context, v any) {
	c.Set(ctxKeyNotes, v)
}

// ApplyMasks adds masking rules to the current request. They apply to that
// request's END entry on top of any globally registered rules.
func ApplyMasks(c *gin.Context, names ...string) {
	if existing, ok := c.Get(ctxKeyMaskNames); ok {
		names = append(existing.([]string), names...)
	}

	c.Set(ctxKeyMaskNames, names)
}

// SkipResponseBody opts the current request out of response body logging.
func SkipResponseBody(c *gin.Context) {
	c.Set(ctxKeySkipResponseBody, true)
}

type middlewareOptions struct {
	logger *Logger
	masker *Masker
}

// MiddlewareOption configures the RequestLogger middleware.
type MiddlewareOption func(*middlewareOptions)

// WithMiddlewareLogger routes middleware entries to the given logger.
func WithMiddlewareLogger(l *Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMiddlewareMasker sanitizes middleware entries with the given masker.
func WithMiddlewareMasker(m *Masker) MiddlewareOption {
	return func(o *middlewareOptions) {
		if m != nil {
			o.masker = m
		}
	}
}

// RequestLogger returns gin middleware that logs the START and END edges of
// every incoming request, with bodies, forms, query strings and headers
// sanitized before they reach the log.
//
// Blocklisted path prefixes and disabled configuration make it a no-op.
func RequestLogger(opts ...MiddlewareOption) gin.HandlerFunc {
	o := &middlewareOptions{}

	for _, opt := range opts {
		opt(o)
	}

	return func(c *gin.Context) {
		masker := o.masker
		if masker == nil {
			masker = DefaultMasker()
		}

		cfg := masker.Config()

		if !cfg.EnableLoggingMiddleware || blocklisted(cfg.MiddlewareBlocklist, c.Request.URL.Path) {
			c.Next()

			return
		}

		rlOpts := []RequestLogOption{WithRequestMasker(masker)}
		if o.logger != nil {
			rlOpts = append(rlOpts, WithRequestLogger(o.logger))
		}

		rl := NewRequestLog(DirectionIncoming, c.Request.Method, c.Request.URL.String(), rlOpts...)
		rl.Request = c.Request

		captureRequestBody(c, rl)

		rl.Start(c.Request.Context())

		var capture *bodyCaptureWriter

		if cfg.LogResponseContent {
			capture = &bodyCaptureWriter{ResponseWriter: c.Writer}
			c.Writer = capture
		}

		defer func() {
			if r := recover(); r != nil {
				rl.Err = fmt.Errorf("panic: %v", r)
				finishRequestLog(c, rl, capture)

				panic(r)
			}
		}()

		c.Next()

		if err := c.Errors.Last(); err != nil {
			rl.Err = err
		}

		finishRequestLog(c, rl, capture)
	}
}

func finishRequestLog(c *gin.Context, rl *RequestLog, capture *bodyCaptureWriter) {
	if notes, ok := c.Get(ctxKeyNotes); ok {
		rl.Notes = notes
	}

	if names, ok := c.Get(ctxKeyMaskNames); ok {
		rl.MaskNames = names.([]string)
	}

	logBody := true
	if _, ok := c.Get(ctxKeySkipResponseBody); ok {
		logBody = false
	}

	info := &ResponseInfo{
		StatusCode: c.Writer.Status(),
		Header:     c.Writer.Header(),
		LogBody:    logBody,
	}

	if capture != nil {
		info.Body = capture.body.Bytes()
	}

	rl.Response = info

	rl.End(c.Request.Context())
}

// captureRequestBody reads and restores the request body, decoding it into
// the shape the END entry will log. Multipart bodies are reduced to the list
// of uploaded file names; their content never enters the log.
func captureRequestBody(c *gin.Context, rl *RequestLog) {
	ct, _, _ := mime.ParseMediaType(c.ContentType())

	if strings.HasPrefix(ct, "multipart/") {
		if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
			return
		}

		names := make([]any, 0)

		for _, files := range c.Request.MultipartForm.File {
			for _, fh := range files {
				names = append(names, fh.Filename)
			}
		}

		rl.RequestData = map[string]any{"file_list": names}
		rl.PostForm = url.Values(c.Request.MultipartForm.Value)

		return
	}

	if c.Request.Body == nil {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	if len(body) == 0 {
		return
	}

	rl.RequestBody = body

	if ct == "application/x-www-form-urlencoded" {
		if form, err := url.ParseQuery(string(body)); err == nil {
			rl.PostForm = form
		}

		return
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		rl.RequestData = decoded

		return
	}

	// Keep the raw string; it is sanitized when the entries are assembled,
	// so per-request mask names still apply to it.
	rl.RequestData = string(body)
}

func blocklisted(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}

// bodyCaptureWriter tees the response body so the END entry can log it.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)

	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)

	return w.ResponseWriter.WriteString(s)
}
