package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stocksync/pkg/logger"
)

// DefaultTimeout bounds every request that does not set its own Timeout.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response is read for its detail.
const maxErrorBody = 64 * 1024

// Request describes a single call. Body is encoded as JSON unless Raw is set,
// in which case Raw is sent verbatim with ContentType.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any
	Raw         io.Reader
	ContentType string
	// Timeout overrides the client default for this call when positive.
	Timeout time.Duration
}

// Client performs authenticated JSON calls against the remote API.
// Zero value is not usable; use New.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	creds     *Credentials
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// New creates a client rooted at baseURL (for example "https://host/api").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidBaseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidBaseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	c := &Client{
		baseURL:   u,
		http:      &http.Client{},
		creds:     NewCredentials(),
		timeout:   DefaultTimeout,
		userAgent: "stocksync/1.0",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Credentials returns the credential holder attached to this client.
func (c *Client) Credentials() *Credentials {
	return c.creds
}

// BaseURL returns the API root the client resolves paths against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete issues a DELETE. The response body, if any, is discarded.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Query: query}, nil)
}

// Upload sends r as the single file part named field of a multipart form.
// timeout bounds the whole call; zero falls back to the client default.
func (c *Client) Upload(ctx context.Context, path, field, filename string, r io.Reader, timeout time.Duration, out any) error {
	body, contentType, err := multipartBody(field, filename, r)
	if err != nil {
		return &Error{Method: http.MethodPost, Path: path, Err: err}
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Raw:         body,
		ContentType: contentType,
		Timeout:     timeout,
	}, out)
}

// Do performs req and decodes a successful JSON response into out (if non-nil).
// A 401 response runs the unauthorized handler exactly once before the error
// is returned.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	requestID := uuid.NewString()
	start := time.Now()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := c.newRequest(ctx, req, requestID)
	if err != nil {
		return &Error{Method: req.Method, Path: req.Path, RequestID: requestID, Err: err}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		gwErr := &Error{
			Method:    req.Method,
			Path:      req.Path,
			RequestID: requestID,
			Err:       err,
			timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
		c.logger.DebugContext(ctx, "gateway call failed",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			logger.RequestID(requestID),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
		return gwErr
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.DebugContext(ctx, "gateway call",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		logger.Status(resp.StatusCode),
		logger.RequestID(requestID),
		logger.Duration(time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		gwErr := &Error{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(body),
			RequestID:  requestID,
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.creds.notifyUnauthorized()
		}
		return gwErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &Error{
			Method:    req.Method,
			Path:      req.Path,
			RequestID: requestID,
			Err:       fmt.Errorf("decode response: %w", err),
			timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	contentType := req.ContentType
	switch {
	case req.Raw != nil:
		body = req.Raw
	case req.Body != nil:
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token := c.creds.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	return httpReq, nil
}

// parseDetail extracts the "detail" member of an error body. Structured
// details (validation error lists) are returned as compact JSON; non-JSON
// bodies are returned trimmed to a single line.
func parseDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, payload.Detail); err == nil {
			return compact.String()
		}
	}

	detail := strings.ReplaceAll(strings.TrimSpace(string(body)), "\n", " ")
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}
	return detail
}

// multipartBody builds an in-memory multipart form with one file part. The
// part's Content-Type is sniffed from the first 512 bytes.
func multipartBody(field, filename string, r io.Reader) (io.Reader, string, error) {
	if r == nil {
		return nil, "", errors.New("upload: nil reader")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("upload: read: %w", err)
	}
	head = head[:n]

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", http.DetectContentType(head))

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(head); err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("upload: read: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf, w.FormDataContentType(), nil
}
