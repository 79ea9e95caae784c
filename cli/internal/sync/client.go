// Package sync talks to a tokgraph server on behalf of the CLI.
package sync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tokgraph/tokgraph/cli/internal/config"
	"github.com/tokgraph/tokgraph/internal/model"
)

// ErrBusy means another device is merging for the same user right now.
var ErrBusy = errors.New("server busy with another sync, try again")

// Client handles submitting usage data and fetching merged exports.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

// SubmitResponse is the submit API response body.
type SubmitResponse struct {
	Success    bool   `json:"success"`
	DaysMerged int    `json:"daysMerged,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewClient creates a client for the configured server.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Submit sends this device's per-day breakdowns to the server.
func (c *Client) Submit(sub model.Submission) (int, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.Server+"/api/submit", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return 0, ErrBusy
	}

	var submitResp SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return 0, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if !submitResp.Success {
		if submitResp.Error != "" {
			return 0, errors.New(submitResp.Error)
		}
		return 0, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return submitResp.DaysMerged, nil
}

// FetchExport retrieves the merged export document across all of the
// user's devices.
func (c *Client) FetchExport() (*model.Export, error) {
	req, err := http.NewRequest(http.MethodGet, c.cfg.Server+"/api/export", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var export model.Export
	if err := json.NewDecoder(resp.Body).Decode(&export); err != nil {
		return nil, err
	}
	return &export, nil
}
