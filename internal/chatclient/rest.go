package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RESTClient implements ChatClient against any OpenAI-compatible chat
// completions endpoint. It is the default wiring for the classifier and
// synthesizer; a BYO provider can be substituted per request by constructing
// another RESTClient with a different base URL, model, and key.
type RESTClient struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	httpClient     *http.Client
}

// NewRESTClient creates a RESTClient. baseURL defaults to the OpenAI API.
func NewRESTClient(apiKey, baseURL, model string) *RESTClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &RESTClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithEmbeddingModel sets the model Embed uses, distinct from the chat
// completion model. Returns the receiver for chaining at construction time.
func (c *RESTClient) WithEmbeddingModel(model string) *RESTClient {
	c.embeddingModel = model
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	ResponseFmt *responseFmt  `json:"response_format,omitempty"`
}

type responseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate implements ChatClient.Generate.
func (c *RESTClient) Generate(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, "Generate", func() (string, error) {
		return c.complete(ctx, prompt, 0.0, nil)
	})
}

// ClassifyPrompt implements ChatClient.ClassifyPrompt. Temperature is fixed at
// 0 and the provider is asked for a JSON object so classification stays
// deterministic and parseable; Classify (the caller) still falls back to
// KeywordRoute on any parse failure.
func (c *RESTClient) ClassifyPrompt(ctx context.Context, prompt string) (*Classification, error) {
	raw, err := withRetry(ctx, "ClassifyPrompt", func() (string, error) {
		return c.complete(ctx, prompt, 0.0, &responseFmt{Type: "json_object"})
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Intent       string                     `json:"intent"`
		Agents       []string                   `json:"agents"`
		AgentQueries map[string]map[string]any `json:"agentQueries"`
	}
	cleaned := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("chatclient: classify: parse: %w", err)
	}

	return &Classification{
		Intent:       parsed.Intent,
		Agents:       parsed.Agents,
		AgentQueries: parsed.AgentQueries,
	}, nil
}

func (c *RESTClient) complete(ctx context.Context, prompt string, temperature float64, fmtHint *responseFmt) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		MaxTokens:   2048,
		Temperature: temperature,
		ResponseFmt: fmtHint,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("chatclient: marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("chatclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("chatclient: request cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("chatclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chatclient: read response: %w", err)
	}

	if isRetryableStatus(resp.StatusCode) {
		return "", fmt.Errorf("chatclient: rate limited: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chatclient: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("chatclient: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chatclient: API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chatclient: empty response from model")
	}

	return parsed.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed implements guideline.Embedder against the same OpenAI-compatible
// provider used for chat, asked for an embedding instead of a completion.
// It does not use the chat model field: embedding models are named
// separately, so embeddingModel is fixed at construction via WithEmbeddingModel.
func (c *RESTClient) Embed(ctx context.Context, text string) ([]float32, error) {
	model := c.embeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	reqBody := embeddingRequest{Model: model, Input: text}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("chatclient: marshal embedding request: %w", err)
	}

	endpoint := c.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("chatclient: create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("chatclient: embedding request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chatclient: embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chatclient: read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chatclient: unexpected embedding status %d", resp.StatusCode)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("chatclient: decode embedding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("chatclient: embedding API error: %s", parsed.Error.Message)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("chatclient: empty embedding response")
	}

	return parsed.Data[0].Embedding, nil
}

// stripCodeFence removes a leading/trailing markdown code fence, if present.
func stripCodeFence(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) >= 3 {
			cleaned = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return strings.TrimSpace(cleaned)
}
