package edgelog

import (
	"bytes"
	"io"
	"net/http"
)

// Transport is an http.RoundTripper that logs the START and END edges of
// every outgoing request it carries, sanitizing URLs, headers and bodies.
// Wrap it around a client's transport:
//
//	client := &http.Client{Transport: &edgelog.Transport{}}
type Transport struct {
	// Base performs the actual request. nil means http.DefaultTransport.
	Base http.RoundTripper

	// Logger receives the entries. nil means the package default.
	Logger *Logger

	// Masker sanitizes the entries. nil means the package default.
	Masker *Masker
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}

	return http.DefaultTransport
}

// RoundTrip logs the request's edges around the base round trip. Errors from
// the base transport are returned unchanged after the END entry is emitted.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	masker := t.Masker
	if masker == nil {
		masker = DefaultMasker()
	}

	if !masker.Config().EnableOutboundRequestLogging {
		return t.base().RoundTrip(req)
	}

	opts := []RequestLogOption{WithRequestMasker(masker)}
	if t.Logger != nil {
		opts = append(opts, WithRequestLogger(t.Logger))
	}

	ctx := req.Context()

	rl := NewRequestLog(DirectionOutgoing, req.Method, req.URL.String(), opts...)
	rl.Request = req
	rl.RequestBody = captureBody(req)

	rl.Start(ctx)

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		rl.Err = err
		rl.End(ctx)

		return nil, err
	}

	body, readErr := io.ReadAll(resp.Body)

	resp.Body.Close()

	if readErr != nil {
		rl.Err = readErr
		rl.End(ctx)

		return nil, readErr
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))

	rl.Response = &ResponseInfo{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		LogBody:    true,
	}

	rl.End(ctx)

	return resp, nil
}

// captureBody snapshots the request body without consuming it for the base
// transport. GetBody is preferred since it leaves the original reader alone.
func captureBody(req *http.Request) []byte {
	if req.Body == nil {
		return nil
	}

	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil
		}

		defer rc.Close()

		body, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}

		return body
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil
	}

	req.Body = io.NopCloser(bytes.NewReader(body))

	return body
}
