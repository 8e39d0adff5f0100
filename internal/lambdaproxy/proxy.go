// Package lambdaproxy serves an http.Handler behind an API Gateway HTTP API
// (payload format 2.0).
package lambdaproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// Handler adapts API Gateway events to an http.Handler.
type Handler struct {
	handler http.Handler
	logger  *slog.Logger
}

// New creates a new Handler.
func New(handler http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{handler: handler, logger: logger}
}

// Handle serves one API Gateway request.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	req, err := NewRequest(ctx, event)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build request",
			"requestId", event.RequestContext.RequestID,
			"error", err,
		)
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "Bad Request"}, nil
	}

	w := newResponseWriter()
	h.handler.ServeHTTP(w, req)
	return w.response(), nil
}

// NewRequest converts event into an *http.Request bound to ctx.
func NewRequest(ctx context.Context, event events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("lambdaproxy: decode body: %w", err)
		}
		body = decoded
	}

	path := event.RawPath
	if path == "" {
		path = "/"
	}
	target := path
	if event.RawQueryString != "" {
		target += "?" + event.RawQueryString
	}

	method := event.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("lambdaproxy: new request: %w", err)
	}
	for name, value := range event.Headers {
		req.Header.Set(name, value)
	}
	if len(event.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(event.Cookies, "; "))
	}

	req.ContentLength = int64(len(body))
	req.RemoteAddr = event.RequestContext.HTTP.SourceIP
	req.RequestURI = target
	req.Host = req.Header.Get("Host")
	if req.Host == "" {
		req.Host = event.RequestContext.DomainName
	}
	req.URL.Host = req.Host
	return req, nil
}

// responseWriter buffers a response for conversion into an API Gateway response.
type responseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

var _ http.ResponseWriter = (*responseWriter)(nil)

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header)}
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) response() events.APIGatewayV2HTTPResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	res := events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    make(map[string]string, len(w.header)),
		Cookies:    w.header.Values("Set-Cookie"),
	}
	for name, values := range w.header {
		if name == "Set-Cookie" {
			continue
		}
		res.Headers[name] = strings.Join(values, ",")
	}

	if body := w.body.Bytes(); utf8.Valid(body) {
		res.Body = string(body)
	} else {
		res.Body = base64.StdEncoding.EncodeToString(body)
		res.IsBase64Encoded = true
	}
	return res
}
