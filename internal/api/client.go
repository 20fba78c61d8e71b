// Package api provides the HTTP client for the remote summarizer
// service, with outcome classification for the queue processor.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hkuo/vidsum/client/internal/models"
)

// Classification buckets a delivery outcome for retry policy.
type Classification string

const (
	// ClassSuccess: the mutation is confirmed applied remotely.
	ClassSuccess Classification = "success"
	// ClassTransient: expected to resolve on retry (timeouts, resets,
	// 5xx, 408, 429).
	ClassTransient Classification = "transient"
	// ClassAuth: 401/403; the action is still valid once credentials
	// are fixed.
	ClassAuth Classification = "auth"
	// ClassTerminal: retrying will never succeed (other 4xx).
	ClassTerminal Classification = "terminal"
)

// Outcome is the classified result of one delivery attempt.
type Outcome struct {
	Class      Classification
	StatusCode int
	Err        error
}

// ErrorText returns a user-surfaceable description of the failure.
func (o Outcome) ErrorText() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if o.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", o.StatusCode)
	}
	return ""
}

// Remote is the surface the queue processor drains against. The
// production implementation is Client; tests substitute a recording
// mock.
type Remote interface {
	// Apply delivers one mutation, passing its idempotency key so the
	// server can ignore a duplicate of an already-delivered attempt.
	Apply(ctx context.Context, entry *models.MutationEntry) Outcome

	// FetchSummary reads a summary for cache refill.
	FetchSummary(ctx context.Context, summaryID string) ([]byte, error)
}

// Client is the HTTP implementation of Remote.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL, e.g.
// "https://api.vidsum.app". A nil httpClient uses a 30s-timeout default;
// that timeout surfacing as a transport error is treated as transient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Apply implements Remote. The kind switch is exhaustive; adding a kind
// without a route is a compile-visible change here.
func (c *Client) Apply(ctx context.Context, entry *models.MutationEntry) Outcome {
	var (
		method string
		path   string
		body   []byte
	)

	switch entry.Kind {
	case models.KindCreate:
		method, path, body = http.MethodPost, "/api/summaries", entry.Payload
	case models.KindStar:
		method = http.MethodPatch
		path = fmt.Sprintf("/api/summaries/%s/star", url.PathEscape(entry.TargetID))
		body = mustStarBody(true)
	case models.KindUnstar:
		method = http.MethodPatch
		path = fmt.Sprintf("/api/summaries/%s/star", url.PathEscape(entry.TargetID))
		body = mustStarBody(false)
	case models.KindDelete:
		method = http.MethodDelete
		path = fmt.Sprintf("/api/summaries/%s", url.PathEscape(entry.TargetID))
	case models.KindAskQuestion:
		method, path = http.MethodPost, "/api/qa"
		body = askBody(entry)
	default:
		return Outcome{
			Class: ClassTerminal,
			Err:   fmt.Errorf("unknown mutation kind %q", entry.Kind),
		}
	}

	return c.do(ctx, method, path, body, entry.IdempotencyKey)
}

// FetchSummary implements Remote.
func (c *Client) FetchSummary(ctx context.Context, summaryID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/summaries/"+url.PathEscape(summaryID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch summary %s: %w", summaryID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch summary %s: HTTP %d", summaryID, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// do performs one request and classifies the result.
func (c *Client) do(ctx context.Context, method, path string, body []byte, idempotencyKey string) Outcome {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Outcome{Class: ClassTerminal, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failure: timeout, reset, no route. All transient.
		return Outcome{Class: ClassTransient, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return Classify(resp.StatusCode)
}

// Classify maps an HTTP status to an Outcome.
func Classify(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return Outcome{Class: ClassSuccess, StatusCode: status}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Outcome{Class: ClassAuth, StatusCode: status}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return Outcome{Class: ClassTransient, StatusCode: status}
	case status >= 500:
		return Outcome{Class: ClassTransient, StatusCode: status}
	default:
		return Outcome{Class: ClassTerminal, StatusCode: status}
	}
}

func mustStarBody(starred bool) []byte {
	body, _ := json.Marshal(models.StarPayload{IsStarred: starred})
	return body
}

// askBody wraps the stored question payload with its target summary id,
// matching the QA endpoint's request shape.
func askBody(entry *models.MutationEntry) []byte {
	var ask models.AskPayload
	_ = json.Unmarshal(entry.Payload, &ask)
	body, _ := json.Marshal(map[string]string{
		"summary_id": entry.TargetID,
		"question":   ask.Question,
	})
	return body
}
