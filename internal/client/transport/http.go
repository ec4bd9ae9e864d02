// Package transport implements the HTTP client for the sync service.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

const defaultTimeout = 30 * time.Second

// Client talks to the Remote Sync Service. Any network failure or non-200
// status (other than 401) is reported as common.ErrTransport so the caller
// knows the cycle is safe to retry in full.
type Client struct {
	baseURL string
	syncKey string
	hc      *http.Client
}

func New(baseURL, syncKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		syncKey: syncKey,
		hc:      &http.Client{Timeout: defaultTimeout},
	}
}

// Probe checks service health and returns the server's clock.
func (c *Client) Probe(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sync", nil)
	if err != nil {
		return time.Time{}, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("%w: probe returned %d", common.ErrTransport, resp.StatusCode)
	}

	var probe syncwire.ProbeResponse
	if err := json.NewDecoder(resp.Body).Decode(&probe); err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid probe response: %v", common.ErrTransport, err)
	}
	return probe.ServerTime, nil
}

// Sync posts a sync request and decodes the merge result.
func (c *Client) Sync(ctx context.Context, sreq *syncwire.SyncRequest) (*syncwire.SyncResponse, error) {
	body, err := json.Marshal(sreq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.syncKey != "" {
		req.Header.Set(common.SyncKeyHeaderName, c.syncKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, common.ErrUnauthorized
	default:
		return nil, fmt.Errorf("%w: sync returned %d", common.ErrTransport, resp.StatusCode)
	}

	var sresp syncwire.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&sresp); err != nil {
		return nil, fmt.Errorf("%w: invalid sync response: %v", common.ErrTransport, err)
	}
	return &sresp, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
