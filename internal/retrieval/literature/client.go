// Package literature implements retrieval.RetrievalClient against the
// literature search service over a plain REST/JSON contract.
package literature

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sovadina/consult-gateway/internal/retrieval"
)

// Client is a literature search RetrievalClient bound to one base URL.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a literature Client. timeout bounds each call; zero falls back
// to retrieval.DefaultCallTimeout. Callers should pass the configured
// RETRIEVAL_DEADLINE_SECONDS value here rather than leaving it at zero.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = retrieval.DefaultCallTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchResponse struct {
	Results []struct {
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		Journal  string `json:"journal"`
		Year     int    `json:"year"`
		DOI      string `json:"doi"`
		PMID     string `json:"pmid"`
	} `json:"results"`
}

// CallTool implements retrieval.RetrievalClient. The only supported tool name
// is "search"; params carries "term" and any filter keys the agent forwards.
func (c *Client) CallTool(ctx context.Context, name string, params map[string]any) (retrieval.ToolResult, error) {
	return retrieval.SafeCall(ctx, name, c.timeout, func(ctx context.Context) (retrieval.ToolResult, error) {
		return c.search(ctx, params)
	})
}

func (c *Client) search(ctx context.Context, params map[string]any) (retrieval.ToolResult, error) {
	q := url.Values{}
	if term, ok := params["term"].(string); ok {
		q.Set("q", term)
	}
	for k, v := range params {
		if k == "term" {
			continue
		}
		if s, ok := v.(string); ok {
			q.Set(k, s)
		}
	}

	endpoint := c.baseURL + "/v1/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("literature: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("literature: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("literature: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("literature: status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("literature: decode response: %w", err)
	}

	if len(parsed.Results) == 0 {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeEmpty}, nil
	}

	records := make([]map[string]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		records = append(records, map[string]string{
			"title":    r.Title,
			"abstract": r.Abstract,
			"journal":  r.Journal,
			"year":     fmt.Sprintf("%d", r.Year),
			"doi":      r.DOI,
			"pmid":     r.PMID,
		})
	}

	return retrieval.ToolResult{
		Outcome: retrieval.OutcomeOK,
		Data:    retrieval.TruncateRecords(records),
	}, nil
}

// HealthCheck implements retrieval.RetrievalClient with a lightweight GET.
func (c *Client) HealthCheck(ctx context.Context) retrieval.Health {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return retrieval.HealthUnavailable
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retrieval.HealthUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return retrieval.HealthAvailable
	case resp.StatusCode >= 500:
		return retrieval.HealthDegraded
	default:
		return retrieval.HealthUnavailable
	}
}

// Close implements retrieval.RetrievalClient.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
