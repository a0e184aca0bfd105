// Package backend is the HTTP client for the whisprd coordination API:
// room discovery, queue upserts, the atomic pairing RPC, room cleanup and
// abuse reports.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const requestTimeout = 10 * time.Second

// Client talks to the whisprd REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given API base URL, e.g.
// "https://whispr.example.com/api".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// FindRoom returns the newest room referencing sessionID as either
// participant, or nil if none exists.
func (c *Client) FindRoom(ctx context.Context, sessionID string) (*Room, error) {
	endpoint := fmt.Sprintf("%s/rooms?session=%s", c.baseURL, url.QueryEscape(sessionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("find room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("find room", resp)
	}

	var room Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, fmt.Errorf("find room: decode: %w", err)
	}
	return &room, nil
}

// UpsertQueueEntry publishes intent to be matched, refreshing last_ping.
func (c *Client) UpsertQueueEntry(ctx context.Context, entry QueueEntry) error {
	resp, err := c.post(ctx, "/queue", entry)
	if err != nil {
		return fmt.Errorf("upsert queue entry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError("upsert queue entry", resp)
	}
	return nil
}

// Match invokes the atomic pairing RPC. A nil result means no compatible
// partner is waiting.
func (c *Client) Match(ctx context.Context, sessionID string, constraints Constraints) (*Match, error) {
	body := struct {
		SessionID   string      `json:"session_id"`
		Constraints Constraints `json:"constraints"`
	}{sessionID, constraints}

	resp, err := c.post(ctx, "/match", body)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var match Match
		if err := json.NewDecoder(resp.Body).Decode(&match); err != nil {
			return nil, fmt.Errorf("match: decode: %w", err)
		}
		return &match, nil
	default:
		return nil, apiError("match", resp)
	}
}

// DeleteRoom removes a room record. Deleting an already-deleted room is not
// an error.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	endpoint := fmt.Sprintf("%s/rooms/%s", c.baseURL, url.PathEscape(roomID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return apiError("delete room", resp)
	}
	return nil
}

// FileReport stores an abuse report. Callers treat failures as log-only.
func (c *Client) FileReport(ctx context.Context, report Report) error {
	resp, err := c.post(ctx, "/reports", report)
	if err != nil {
		return fmt.Errorf("file report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return apiError("file report", resp)
	}
	return nil
}

// Stats fetches the online-users display data.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("stats", resp)
	}

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("stats: decode: %w", err)
	}
	return &stats, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.http.Do(req)
}

func apiError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("%s: %s (status %d)", op, body.Error, resp.StatusCode)
	}
	return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
}
