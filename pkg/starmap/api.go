package starmap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Star is the backend's full entity representation, as returned by
// GET /stars and GET /stars/{id}. Timestamps are unix seconds.
type Star struct {
	ID           int64   `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Message      string  `json:"message"`
	LastLiked    float64 `json:"last_liked"`
	CreationDate float64 `json:"creation_date"`
	UserID       int64   `json:"user_id"`
	Username     string  `json:"username"`
}

// CreateResult is the outcome of POST /stars. The backend rejects
// filtered content with {status:false, message}; that is a user-facing
// condition, not a transport error.
type CreateResult struct {
	Star     *Star
	Rejected bool
	Reason   string
}

// Client talks to the backend HTTP API. The bearer token and user
// attribution come from config; the client never writes them.
type Client struct {
	BaseURL  string
	Token    string
	UserID   int64
	Username string

	HTTPClient *http.Client
}

func NewClient(cfg *Config) *Client {
	return &Client{
		BaseURL:    cfg.BackendURL,
		Token:      cfg.Token,
		UserID:     cfg.UserID,
		Username:   cfg.Username,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchSnapshot fetches the full authoritative star list.
func (c *Client) FetchSnapshot(ctx context.Context) ([]Star, error) {
	var stars []Star
	if err := c.getJSON(ctx, c.BaseURL+"/stars", &stars); err != nil {
		return nil, err
	}
	return stars, nil
}

// FetchSnapshotWithRetry retries the startup snapshot with capped
// exponential backoff: the map is blank until it succeeds, so a cold
// backend should not kill the viewer.
func (c *Client) FetchSnapshotWithRetry(ctx context.Context) ([]Star, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = time.Minute

	var stars []Star
	op := func() error {
		var err error
		stars, err = c.FetchSnapshot(ctx)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return stars, nil
}

// FetchDetail fetches one star's full detail.
func (c *Client) FetchDetail(ctx context.Context, id int64) (*Star, error) {
	var star Star
	if err := c.getJSON(ctx, fmt.Sprintf("%s/stars/%d", c.BaseURL, id), &star); err != nil {
		return nil, err
	}
	return &star, nil
}

// CreateStar submits a new star at a world position. The caller waits
// for the stream `create` event rather than inserting locally.
func (c *Client) CreateStar(ctx context.Context, x, y float64, message string) (*CreateResult, error) {
	body, err := json.Marshal(map[string]any{
		"x":        x,
		"y":        y,
		"message":  message,
		"user_id":  c.UserID,
		"username": c.Username,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/stars", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create star: %s: %s", resp.Status, raw)
	}

	var probe struct {
		Status  *bool  `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Status != nil && !*probe.Status {
		return &CreateResult{Rejected: true, Reason: probe.Message}, nil
	}
	var star Star
	if err := json.Unmarshal(raw, &star); err != nil {
		return nil, fmt.Errorf("create star: decoding response: %w", err)
	}
	return &CreateResult{Star: &star}, nil
}

// LikeStar records a like; the resulting `update` stream event carries
// the fresh like time back to every client.
func (c *Client) LikeStar(ctx context.Context, id int64) error {
	return c.postAction(ctx, id, "like")
}

// DislikeStar records a dislike.
func (c *Client) DislikeStar(ctx context.Context, id int64) error {
	return c.postAction(ctx, id, "dislike")
}

// RemoveStar deletes one star.
func (c *Client) RemoveStar(ctx context.Context, id int64) error {
	return c.deleteURL(ctx, fmt.Sprintf("%s/stars/%d", c.BaseURL, id))
}

// RemoveAllStars clears the map. Admin/debug surface.
func (c *Client) RemoveAllStars(ctx context.Context) error {
	return c.deleteURL(ctx, c.BaseURL+"/stars")
}

func (c *Client) postAction(ctx context.Context, id int64, action string) error {
	url := fmt.Sprintf("%s/stars/%d/%s", c.BaseURL, id, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s star %d: %s: %s", action, id, resp.Status, raw)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) deleteURL(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete %s: %s: %s", url, resp.Status, raw)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, raw)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}
