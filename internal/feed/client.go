package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client fetches log rows and checkpoints over HTTP.
type Client struct {
	// LogURL is the log stream endpoint.
	LogURL string

	// CheckpointURL is the checkpoint endpoint.
	CheckpointURL string

	// HTTPClient is the client used for requests. Defaults to a client with
	// a 10 second timeout.
	HTTPClient *http.Client
}

// NewClient creates a feed client for the given endpoints.
func NewClient(logURL, checkpointURL string) *Client {
	return &Client{
		LogURL:        logURL,
		CheckpointURL: checkpointURL,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchLog returns log rows newer than cursor for the session, along with
// session-level metadata. An empty cursor fetches from the beginning.
func (c *Client) FetchLog(ctx context.Context, sessionID, cursor string) (*LogBatch, error) {
	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("after", cursor)

	var batch LogBatch
	if err := c.get(ctx, c.LogURL, q, &batch); err != nil {
		return nil, fmt.Errorf("log fetch for %s: %w", sessionID, err)
	}
	return &batch, nil
}

// FetchCheckpoints returns the session's checkpoints in server order.
func (c *Client) FetchCheckpoints(ctx context.Context, sessionID string) ([]Checkpoint, error) {
	q := url.Values{}
	q.Set("session_id", sessionID)

	var resp checkpointResponse
	if err := c.get(ctx, c.CheckpointURL, q, &resp); err != nil {
		return nil, fmt.Errorf("checkpoint fetch for %s: %w", sessionID, err)
	}
	return resp.Checkpoints, nil
}

// get issues a GET request and decodes the JSON body into out. Fields absent
// from the response are left at their zero values.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
