// Package client is a small REST client for the scoring API, used by the
// CLI and by integrations that prefer a typed interface over raw HTTP.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"leadscore/internal/api"
	"leadscore/internal/features"
)

// Client talks to a running scoring server.
type Client struct {
	base string
	rest *resty.Client
}

// New creates a client against base (for example "http://localhost:8080").
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second) // default fallback
	}
	return &Client{base: base, rest: r}
}

// Score submits one company. A validation rejection comes back as a typed
// error carrying the server's message.
func (c *Client) Score(raw features.RawInput) (*api.ScoreResponse, error) {
	result := &api.ScoreResponse{}
	resp, err := c.rest.R().
		SetBody(raw).
		SetResult(result).
		Post(c.base + "/score")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("score: %s: %s", resp.Status(), resp.String())
	}
	// A per-item rejection is HTTP 200 with an error record instead of a
	// score; detect it by the absent segment fields.
	if result.Segment == "" || result.CloseScorePercent == "" {
		var rec api.ErrorResponse
		if jerr := json.Unmarshal(resp.Body(), &rec); jerr == nil && rec.Error != "" {
			return nil, &RejectedError{Record: rec}
		}
	}
	return result, nil
}

// ScoreBatch submits multiple companies and returns the full batch
// response, per-item errors included.
func (c *Client) ScoreBatch(companies []features.RawInput) (*api.BatchResponse, error) {
	result := &api.BatchResponse{}
	resp, err := c.rest.R().
		SetBody(api.BatchRequest{Companies: companies}).
		SetResult(result).
		Post(c.base + "/batch")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("batch: %s: %s", resp.Status(), resp.String())
	}
	return result, nil
}

// Health fetches the server health document.
func (c *Client) Health() (map[string]any, error) {
	var result map[string]any
	resp, err := c.rest.R().
		SetResult(&result).
		Get(c.base + "/health")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("health: %s", resp.Status())
	}
	return result, nil
}

// RejectedError carries the server's error record for an input the model
// declined to score.
type RejectedError struct {
	Record api.ErrorResponse
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("input rejected: %s", e.Record.Error)
}
