package edgelog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// notLoggedKey marks a response body that was deliberately left out of the log.
const notLoggedKey = "NOT_LOGGED"

// ResponseInfo carries the response side of an exchange into End.
type ResponseInfo struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// LogBody gates body logging for this exchange. The middleware clears
	// it when a handler opts out; the outbound transport always sets it.
	LogBody bool
}

// RequestLog tracks one HTTP exchange from its START edge to its END edge.
// Begin emits the START entry; populate the exported fields as the exchange
// progresses, then call End to emit the END entry.
type RequestLog struct {
	logger    *Logger
	masker    *Masker
	direction Direction
	start     time.Time
	end       time.Time
	method    string
	url       string

	// Request is the inbound *http.Request for incoming exchanges.
	Request *http.Request

	// RequestBody holds the captured request body bytes, if any.
	RequestBody []byte

	// RequestData overrides body decoding with an already-decoded value.
	// A string value is treated as a raw text body: it is sanitized through
	// the query-string path and logged under a "raw_body" key.
	RequestData any

	// PostForm holds urlencoded form fields parsed from the request body.
	PostForm url.Values

	// Response describes the response side, set before End.
	Response *ResponseInfo

	// Notes carries caller-attached annotations into the END entry.
	Notes any

	// Err marks the exchange as failed; the END entry is logged at ERROR
	// severity and carries the error text.
	Err error

	// MaskNames lists extra masking rules applied to this exchange only.
	MaskNames []string
}

// RequestLogOption configures a RequestLog at Begin.
type RequestLogOption func(*RequestLog)

// WithRequestLogger routes the exchange's entries to the given logger.
func WithRequestLogger(l *Logger) RequestLogOption {
	return func(rl *RequestLog) {
		if l != nil {
			rl.logger = l
		}
	}
}

// WithRequestMasker sanitizes the exchange's entries with the given masker.
func WithRequestMasker(m *Masker) RequestLogOption {
	return func(rl *RequestLog) {
		if m != nil {
			rl.masker = m
		}
	}
}

// Begin starts tracking an exchange and emits its START entry immediately.
// The default logger and masker are used unless options say otherwise.
//
// Callers that want request details (headers, query, body) on the START
// entry should use NewRequestLog, attach them, then call Start.
func Begin(ctx context.Context, direction Direction, method, rawURL string, opts ...RequestLogOption) *RequestLog {
	rl := NewRequestLog(direction, method, rawURL, opts...)
	rl.Start(ctx)

	return rl
}

// NewRequestLog builds a RequestLog without emitting anything, so request
// details can be attached before Start emits the START entry.
func NewRequestLog(direction Direction, method, rawURL string, opts ...RequestLogOption) *RequestLog {
	rl := &RequestLog{
		logger:    Default(),
		masker:    DefaultMasker(),
		direction: direction,
		start:     time.Now(),
		method:    strings.ToUpper(method),
		url:       rawURL,
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// Start emits the exchange's START entry.
func (rl *RequestLog) Start(ctx context.Context) {
	rl.emit(ctx, EdgeStart)
}

// End finishes the exchange and emits its END entry.
func (rl *RequestLog) End(ctx context.Context) {
	rl.end = time.Now()
	rl.emit(ctx, EdgeEnd)
}

func (rl *RequestLog) emit(ctx context.Context, edge Edge) {
	ctx = rl.maskContext(ctx)

	var e *Entry

	if rl.direction == DirectionOutgoing {
		e = rl.outgoingEntry(ctx, edge)
	} else {
		e = rl.incomingEntry(ctx, edge)
	}

	e.Smart = true
	e.Direction = rl.direction
	e.Edge = edge
	e.Start = rl.start
	e.End = rl.end
	e.Notes = rl.Notes
	e.Err = rl.Err
	e.Severity = string(LogLevelInfo)

	if rl.Err != nil {
		e.Severity = string(LogLevelError)
	}

	rl.logger.logEvent(e)
}

// maskContext layers the exchange's own mask names, and any names carried on
// the inbound request's context, over the caller's context.
func (rl *RequestLog) maskContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if rl.Request != nil {
		if names := ActiveMaskNames(rl.Request.Context()); len(names) > 0 {
			ctx = WithMaskNames(ctx, names...)
		}
	}

	if len(rl.MaskNames) > 0 {
		ctx = WithMaskNames(ctx, rl.MaskNames...)
	}

	return ctx
}

func (rl *RequestLog) outgoingEntry(ctx context.Context, edge Edge) *Entry {
	sanURL := rl.masker.SanitizeURL(ctx, rl.url)

	if edge == EdgeStart {
		return &Entry{
			Message: fmt.Sprintf("OUTGOING (start): %s %s", rl.method, sanURL),
			Request: map[string]any{
				"method": rl.method,
				"url":    sanURL,
			},
		}
	}

	req := map[string]any{
		"method":  rl.method,
		"url":     sanURL,
		"path":    urlPath(rl.url),
		"headers": rl.sanitizedHeaders(ctx, requestHeader(rl.Request)),
		"data":    rl.sanitizedBody(ctx, rl.RequestBody),
	}

	e := &Entry{
		Message: fmt.Sprintf("OUTGOING (end): %s %s", rl.method, sanURL),
		Request: req,
	}

	if rl.Response != nil {
		e.Message = fmt.Sprintf("OUTGOING (end): %s %s (%d)", rl.method, sanURL, rl.Response.StatusCode)
		e.Response = map[string]any{
			"status_code": rl.Response.StatusCode,
			"data":        rl.sanitizedBody(ctx, rl.Response.Body),
		}
	}

	return e
}

func (rl *RequestLog) incomingEntry(ctx context.Context, edge Edge) *Entry {
	req := map[string]any{
		"method": rl.method,
		"path":   urlPath(rl.url),
	}

	if rl.Request != nil {
		req["remote_addr"] = rl.Request.RemoteAddr
		req["url_scheme"] = urlScheme(rl.Request)
		req["GET"] = rl.sanitizedValues(ctx, rl.Request.URL.Query())
		req["headers"] = rl.sanitizedHeaders(ctx, rl.Request.Header)
	}

	if len(rl.PostForm) > 0 {
		req["POST"] = rl.sanitizedValues(ctx, rl.PostForm)
	}

	if rl.RequestData != nil {
		req["data"] = rl.sanitizedRequestData(ctx)
	}

	if edge == EdgeStart {
		return &Entry{
			Message: fmt.Sprintf("INCOMING (start): %s %s", rl.method, urlPath(rl.url)),
			Request: req,
		}
	}

	e := &Entry{
		Message: fmt.Sprintf("INCOMING (end): %s %s", rl.method, urlPath(rl.url)),
		Request: req,
	}

	if rl.Response != nil {
		e.Message = fmt.Sprintf("INCOMING (end): %s %s (%d)", rl.method, urlPath(rl.url), rl.Response.StatusCode)

		resp := map[string]any{
			"status_code": rl.Response.StatusCode,
		}

		if data := rl.incomingResponseData(ctx); data != nil {
			resp["data"] = data
		}

		e.Response = resp
	}

	return e
}

// incomingResponseData decides what of the response body, if anything, ends
// up in the log. A handler opt-out records a sentinel in the body's place;
// otherwise the body appears only when response content logging is enabled
// and the content type is JSON, and is omitted entirely when it is not.
func (rl *RequestLog) incomingResponseData(ctx context.Context) any {
	if !rl.Response.LogBody {
		return map[string]any{
			notLoggedKey: "Response body logging was disabled for this request",
		}
	}

	cfg := rl.masker.Config()

	if !cfg.LogResponseContent || !isJSONContentType(rl.Response.Header.Get("Content-Type")) {
		return nil
	}

	return rl.sanitizedBody(ctx, rl.Response.Body)
}

// sanitizedBody decodes body bytes as JSON when possible and sanitizes the
// result; non-JSON bodies fall back to query-string sanitizing.
func (rl *RequestLog) sanitizedBody(ctx context.Context, body []byte) any {
	if len(body) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return rl.masker.SanitizeQuerystring(ctx, string(body))
	}

	return rl.sanitizedData(ctx, decoded)
}

// sanitizedRequestData renders RequestData for the log. Raw text bodies go
// through the query-string sanitize path so query-shaped text never carries
// sensitive values into the log.
func (rl *RequestLog) sanitizedRequestData(ctx context.Context) any {
	if raw, ok := rl.RequestData.(string); ok {
		return map[string]any{"raw_body": rl.masker.SanitizeAny(ctx, raw)}
	}

	return rl.sanitizedData(ctx, rl.RequestData)
}

func (rl *RequestLog) sanitizedData(ctx context.Context, data any) any {
	if m, ok := data.(map[string]any); ok {
		return rl.masker.SanitizeData(ctx, m)
	}

	return rl.masker.SanitizeAny(ctx, data)
}

func (rl *RequestLog) sanitizedHeaders(ctx context.Context, h http.Header) map[string]any {
	if h == nil {
		return nil
	}

	headers := make(map[string]any, len(h))

	for k, vs := range h {
		headers[k] = strings.Join(vs, ", ")
	}

	// The Referer URL may carry sensitive query parameters of its own.
	if ref, ok := headers["Referer"].(string); ok {
		headers["Referer"] = rl.masker.SanitizeURL(ctx, ref)
	}

	return rl.masker.SanitizeData(ctx, headers)
}

func (rl *RequestLog) sanitizedValues(ctx context.Context, values url.Values) map[string]any {
	return rl.masker.SanitizeData(ctx, valuesToMap(values))
}

func valuesToMap(values url.Values) map[string]any {
	m := make(map[string]any, len(values))

	for k, vs := range values {
		items := make([]any, len(vs))

		for i, v := range vs {
			items[i] = v
		}

		m[k] = items
	}

	return m
}

func requestHeader(r *http.Request) http.Header {
	if r == nil {
		return nil
	}

	return r.Header
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	return u.Path
}

func urlScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}

	return "http"
}

func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "json")
}
