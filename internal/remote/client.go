// Package remote is the shared request primitive for the assistant backend:
// one JSON or multipart POST path with uniform authentication and error handling.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const maxErrorBody = 512

// Config controls the remote client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client posts requests to a single base URL.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
}

// FilePart is one file field of a multipart request.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Error is the uniform failure of a remote request: a transport error, a
// non-success status or an undecodable body.
type Error struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("remote base URL is not configured")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote base URL %q: scheme must be http or https", raw)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{base: base, apiKey: strings.TrimSpace(cfg.APIKey), http: httpClient}, nil
}

// PostJSON encodes in as the request body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in any, out any) error {
	endpoint := c.endpoint(path)
	body, err := json.Marshal(in)
	if err != nil {
		return &Error{Op: "POST", URL: endpoint, Err: fmt.Errorf("marshal request: %w", err)}
	}
	return c.do(ctx, endpoint, "application/json", bytes.NewReader(body), out)
}

// PostMultipart sends files and plain fields as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, files []FilePart, fields map[string]string, out any) error {
	endpoint := c.endpoint(path)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, file := range files {
		if err := writeFilePart(writer, file); err != nil {
			return &Error{Op: "POST", URL: endpoint, Err: err}
		}
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return &Error{Op: "POST", URL: endpoint, Err: fmt.Errorf("write field %s: %w", name, err)}
		}
	}
	if err := writer.Close(); err != nil {
		return &Error{Op: "POST", URL: endpoint, Err: fmt.Errorf("close multipart writer: %w", err)}
	}

	return c.do(ctx, endpoint, writer.FormDataContentType(), &buf, out)
}

func (c *Client) do(ctx context.Context, endpoint string, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return &Error{Op: "POST", URL: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: "POST", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: "POST", URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Op:         "POST",
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(payload)), maxErrorBody),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Op: "POST", URL: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	ref := *c.base
	ref.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return ref.String()
}

func writeFilePart(writer *multipart.Writer, file FilePart) error {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create form file %s: %w", file.Field, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("write form file %s: %w", file.Field, err)
	}
	return nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "..."
}
