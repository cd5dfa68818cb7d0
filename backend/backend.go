// Package backend is the client side of the recognition backend's HTTP contract:
// prediction polling, mode notification, chat exchange and the video feed.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signnet/log"
)

const maxBodyBytes = 1 << 20

// Prediction kinds reported by /get_prediction.
const (
	KindStatic  = "static"
	KindDynamic = "dynamic"
)

// Prediction is one classification result. Type is empty when the backend has
// nothing yet (it reports a null type with "No sign detected").
type Prediction struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Ack is the free-form acknowledgement returned by /set_mode.
type Ack map[string]any

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply *string `json:"reply"`
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

var ErrEmptyReply = errors.New("chat: response has no reply")

type Client struct {
	base    *url.URL
	client  *TracedClient
	timeout time.Duration
}

// New validates baseURL and returns a client. timeout bounds a request only when
// the caller's context carries no deadline of its own.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("backend url %q: missing host", baseURL)
	}
	return &Client{base: u, client: NewTracedClient(), timeout: timeout}, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) (*TracedResponse, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Request(op, resp.StatusCode, resp.Metrics.LogMetrics())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: excerpt(resp.Body)}
	}
	return resp, nil
}

// Prediction fetches the backend's current prediction.
func (c *Client) Prediction(ctx context.Context) (Prediction, error) {
	resp, err := c.do(ctx, "get_prediction", http.MethodGet, c.endpoint("/get_prediction", nil), nil)
	if err != nil {
		return Prediction{}, err
	}
	var p Prediction
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return Prediction{}, fmt.Errorf("get_prediction: parse response: %w", err)
	}
	return p, nil
}

// SetMode tells the backend which recognition strategy the viewer wants.
func (c *Client) SetMode(ctx context.Context, mode string) (Ack, error) {
	resp, err := c.do(ctx, "set_mode", http.MethodGet, c.endpoint("/set_mode", url.Values{"mode": {mode}}), nil)
	if err != nil {
		return nil, err
	}
	var ack Ack
	if err := json.Unmarshal(resp.Body, &ack); err != nil {
		return nil, fmt.Errorf("set_mode: parse response: %w", err)
	}
	return ack, nil
}

// Chat performs one request/response exchange with the conversational endpoint.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("chat: marshal request: %w", err)
	}
	resp, err := c.do(ctx, "chat", http.MethodPost, c.endpoint("/chat", nil), body)
	if err != nil {
		return "", err
	}
	var cr chatResponse
	if err := json.Unmarshal(resp.Body, &cr); err != nil {
		return "", fmt.Errorf("chat: parse response: %w", err)
	}
	if cr.Reply == nil {
		return "", ErrEmptyReply
	}
	return *cr.Reply, nil
}

// FeedURL is the MJPEG stream endpoint.
func (c *Client) FeedURL() string {
	return c.endpoint("/video_feed", nil)
}

// OpenFeed opens the long-lived video feed stream. The caller closes the body.
func (c *Client) OpenFeed(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FeedURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("video_feed: create request: %w", err)
	}
	resp, err := c.client.Stream(req)
	if err != nil {
		return nil, fmt.Errorf("video_feed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Op: "video_feed", Status: resp.StatusCode}
	}
	return resp, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func (m *NetworkMetrics) LogMetrics() log.RequestMetrics {
	return log.RequestMetrics{
		DNSMs:      float64(m.DNS.Microseconds()) / 1000,
		TCPMs:      float64(m.TCP.Microseconds()) / 1000,
		TLSMs:      float64(m.TLS.Microseconds()) / 1000,
		TTFBMs:     float64(m.TTFB.Microseconds()) / 1000,
		TotalMs:    float64(m.Total.Microseconds()) / 1000,
		ConnReused: m.ConnReused,
	}
}
