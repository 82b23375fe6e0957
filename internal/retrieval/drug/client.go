// Package drug implements retrieval.RetrievalClient against the drug
// registry over JSON-RPC 2.0/HTTP, per the registry's published contract.
package drug

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sovadina/consult-gateway/internal/retrieval"
)

// rpcRequest and rpcResponse mirror the JSON-RPC 2.0 envelope. id is numeric:
// it comes from an atomic counter shared by all concurrent callers of one
// Client, so ids stay unique and monotonic without a lock or a UUID allocation.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC 2.0 error codes; the registry also defines application
// codes above -32000 that we treat as permanent (e.g. unknown drug term).
const (
	errCodeParse          = -32700
	errCodeInvalidRequest = -32600
	errCodeMethodNotFound = -32601
	errCodeInvalidParams  = -32602
	errCodeInternal       = -32603
)

// Client is a drug registry RetrievalClient bound to one base URL.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	nextID     atomic.Int64
}

// New creates a drug registry Client. timeout bounds each call; zero falls
// back to retrieval.DefaultCallTimeout. Callers should pass the configured
// RETRIEVAL_DEADLINE_SECONDS value here rather than leaving it at zero.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = retrieval.DefaultCallTimeout
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CallTool implements retrieval.RetrievalClient.
func (c *Client) CallTool(ctx context.Context, name string, params map[string]any) (retrieval.ToolResult, error) {
	return retrieval.SafeCall(ctx, name, c.timeout, func(ctx context.Context) (retrieval.ToolResult, error) {
		return c.call(ctx, name, params)
	})
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (retrieval.ToolResult, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("drug: marshal params: %w", err)
	}

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  paramsJSON,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("drug: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("drug: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("drug: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("drug: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("drug: status %d", resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("drug: read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("drug: decode response: %w", err)
	}

	if rpcResp.Error != nil {
		outcome := retrieval.OutcomePermanent
		if rpcResp.Error.Code == errCodeInternal {
			outcome = retrieval.OutcomeTransient
		}
		return retrieval.ToolResult{Outcome: outcome}, fmt.Errorf("drug: rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var records []map[string]string
	if err := json.Unmarshal(rpcResp.Result, &records); err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomePermanent}, fmt.Errorf("drug: decode result: %w", err)
	}

	if len(records) == 0 {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeEmpty}, nil
	}

	return retrieval.ToolResult{
		Outcome: retrieval.OutcomeOK,
		Data:    retrieval.TruncateRecords(records),
	}, nil
}

// HealthCheck implements retrieval.RetrievalClient by issuing a lightweight
// "ping" RPC call and classifying the outcome.
func (c *Client) HealthCheck(ctx context.Context) retrieval.Health {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := c.call(ctx, "ping", nil)
	if err != nil {
		if result.Outcome == retrieval.OutcomeTransient {
			return retrieval.HealthDegraded
		}
		return retrieval.HealthUnavailable
	}
	return retrieval.HealthAvailable
}

// Close implements retrieval.RetrievalClient. The underlying http.Client owns
// no persistent connections that require explicit teardown.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
