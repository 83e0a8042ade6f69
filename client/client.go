// Package client talks to a ragline server: it uploads documents, polls job
// status until the job is terminal, and asks questions.
//
// Transport errors are returned as-is and never retried.
package client

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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/ragline/core"
)

// DefaultPollInterval is how often Wait polls when no interval is given.
const DefaultPollInterval = 500 * time.Millisecond

// Client is a ragline HTTP client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
// Default is a client with no overall timeout, since uploads may be large.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "ragline-client")
	return c, nil
}

// SubmitResult is the server's reply to an upload.
type SubmitResult struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Submit uploads r as filename and returns the queued job.
// The body is streamed; r is never read fully into memory.
func (c *Client) Submit(ctx context.Context, filename string, r io.Reader) (SubmitResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filename))
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest", pr)
	if err != nil {
		_ = pr.Close()
		return SubmitResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out SubmitResult
	if err := c.do(req, &out); err != nil {
		_ = pr.CloseWithError(err)
		return SubmitResult{}, fmt.Errorf("submit %s: %w", filename, err)
	}
	c.logger.Debug("submitted document", "file", filename, "jobID", out.JobID)
	return out, nil
}

// SubmitFile opens path and uploads it under its base name.
func (c *Client) SubmitFile(ctx context.Context, path string) (SubmitResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return SubmitResult{}, err
	}
	defer f.Close()
	return c.Submit(ctx, filepath.Base(path), f)
}

// Status fetches the current state of a job.
// Returns ErrJobNotFound when the server does not know id.
func (c *Client) Status(ctx context.Context, id string) (core.JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+url.PathEscape(id), nil)
	if err != nil {
		return core.JobState{}, err
	}

	var state core.JobState
	if err := c.do(req, &state); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return core.JobState{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return core.JobState{}, err
	}
	return state, nil
}

// Wait polls the job every interval until it completes or fails, calling
// onUpdate (if non-nil) with each observed state. A non-positive interval
// means DefaultPollInterval. The first poll happens after one interval.
//
// The final state is returned for both completed and failed jobs; a failed
// job is not an error from Wait's point of view.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration, onUpdate func(core.JobState)) (core.JobState, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return core.JobState{}, ctx.Err()
		case <-ticker.C:
		}

		state, err := c.Status(ctx, id)
		if err != nil {
			return core.JobState{}, err
		}
		if onUpdate != nil {
			onUpdate(state)
		}
		if state.Status.Terminal() {
			return state, nil
		}
	}
}

// Chat asks a question and returns the server's answer.
func (c *Client) Chat(ctx context.Context, question string) (string, error) {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// do sends req and decodes a 2xx JSON body into out. Any other status is
// returned as a *StatusError carrying the server's detail message.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &detail) == nil && detail.Detail != "" {
			se.Detail = detail.Detail
		} else {
			se.Detail = strings.TrimSpace(string(raw))
		}
		return se
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
