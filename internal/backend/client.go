// Package backend talks to the upstream REST backend that owns every
// back-office entity. It adds bearer authentication, normalizes response
// envelopes and maps failures onto domain error codes.
package backend

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
	"net/url"
	"strings"
	"time"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
)

const maxResponseBytes = 10 << 20

// Config holds the upstream defaults.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client performs JSON requests against the upstream backend.
type Client struct {
	http     *http.Client
	defaults Credentials
	logger   *slog.Logger
}

// NewClient creates a Client. A zero timeout means 30s.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		defaults: Credentials{BaseURL: strings.TrimRight(cfg.BaseURL, "/"), Token: cfg.Token},
		logger:   logger,
	}
}

// File is one file part of a multipart request.
type File struct {
	Field   string
	Name    string
	Content []byte
}

// Form is a multipart/form-data body.
type Form struct {
	Fields map[string]string
	Files  []File
}

// Request describes a mutation sent to the backend. Body is JSON-encoded;
// when Form is set it takes precedence and is sent as multipart.
type Request struct {
	Method    string
	Path      string
	Body      any
	Form      *Form
	ObjectKey string
}

// List fetches a collection and normalizes its envelope.
func (c *Client) List(ctx context.Context, path string, query url.Values, collectionKey string) ([]listing.Row, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + query.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return DecodeCollection(body, collectionKey)
}

// Get fetches a single object.
func (c *Client) Get(ctx context.Context, path, objectKey string) (listing.Row, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return DecodeObject(body, objectKey)
}

// Send performs a POST, PUT, PATCH or DELETE. An empty response body yields
// a nil row.
func (c *Client) Send(ctx context.Context, req Request) (listing.Row, error) {
	var (
		payload     io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		buf, ct, err := encodeForm(req.Form)
		if err != nil {
			return nil, domain.NewAppError(domain.CodeInternal, "failed to encode form", err)
		}
		payload, contentType = buf, ct
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, domain.NewAppError(domain.CodeInternal, "failed to encode payload", err)
		}
		payload, contentType = bytes.NewReader(data), "application/json"
	}

	body, err := c.do(ctx, req.Method, req.Path, payload, contentType)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	if _, ok := body.(map[string]any); !ok {
		return nil, nil
	}
	return DecodeObject(body, req.ObjectKey)
}

// Ping reports whether the backend base URL answers at all. Any HTTP status
// counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.defaults.BaseURL+"/", nil)
	if err != nil {
		return domain.NewAppError(domain.CodeInternal, "failed to create request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewAppError(domain.CodeTransport, "backend unreachable", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload io.Reader, contentType string) (any, error) {
	creds := c.defaults
	if override, ok := CredentialsFrom(ctx); ok {
		if override.BaseURL != "" {
			creds.BaseURL = strings.TrimRight(override.BaseURL, "/")
		}
		if override.Token != "" {
			creds.Token = override.Token
		}
	}

	target := creds.BaseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if id := RequestIDFrom(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.logger.WarnContext(ctx, "upstream request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, domain.NewAppError(domain.CodeTransport, "backend unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewAppError(domain.CodeTransport, "failed to read backend response", err)
	}

	c.logger.DebugContext(ctx, "upstream request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	body, decodeErr := decodeBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewAppError(domain.CodeUpstream, upstreamMessage(body, resp.StatusCode), nil)
	}
	if decodeErr != nil {
		return nil, domain.NewAppError(domain.CodeUpstream, "backend returned invalid JSON", decodeErr)
	}
	if msg, failed := applicationError(body); failed {
		return nil, domain.NewAppError(domain.CodeApplication, msg, nil)
	}
	return body, nil
}

func decodeBody(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// upstreamMessage prefers the body's "message", then "error", then the
// status text.
func upstreamMessage(body any, status int) string {
	if obj, ok := body.(map[string]any); ok {
		for _, key := range []string{"message", "error"} {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
}

// applicationError detects a 2xx body that still reports failure through an
// "error" field.
func applicationError(body any) (string, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return "", false
	}
	raw, ok := obj["error"]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg, true
		}
		return v, true
	case bool:
		if !v {
			return "", false
		}
	}
	if msg, ok := obj["message"].(string); ok && msg != "" {
		return msg, true
	}
	return "request failed", true
}

func encodeForm(form *Form) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range form.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, f := range form.Files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
