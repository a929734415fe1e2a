package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mixh8/Truth-Bench/internal/ports"
)

const defaultTimeout = 60 * time.Second

// ModelPricing is the provider's USD price per million tokens for one model.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Client implements ports.Oracle against an OpenAI-compatible
// chat-completions endpoint. Model identity is an opaque string key passed
// through to the provider.
type Client struct {
	http    *resty.Client
	pricing map[string]ModelPricing
}

// NewClient creates an oracle client for the given base URL and API key.
// pricing may be nil; cost estimates are then reported as 0.
func NewClient(baseURL, apiKey string, pricing map[string]ModelPricing) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http, pricing: pricing}
}

// chatCompletionRequest is the wire request for POST /chat/completions.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the subset of the wire response the engine uses.
type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete submits one chat request and returns the raw completion text with
// usage accounting.
func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (ports.ChatResponse, error) {
	body := chatCompletionRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var out chatCompletionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return ports.ChatResponse{}, fmt.Errorf("oracle.Complete: %s: %w", req.Model, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil {
			msg = out.Error.Message
		}
		return ports.ChatResponse{}, fmt.Errorf("oracle.Complete: %s: provider error: %s", req.Model, msg)
	}
	if len(out.Choices) == 0 {
		return ports.ChatResponse{}, fmt.Errorf("oracle.Complete: %s: empty choices", req.Model)
	}

	return ports.ChatResponse{
		Text:             out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		TotalTokens:      out.Usage.TotalTokens,
		CostUSD:          c.estimateCost(req.Model, out.Usage.PromptTokens, out.Usage.CompletionTokens),
	}, nil
}

// estimateCost converts token usage to USD using the configured pricing.
func (c *Client) estimateCost(model string, promptTokens, completionTokens int) float64 {
	p, ok := c.pricing[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*p.InputPerMTok +
		float64(completionTokens)/1e6*p.OutputPerMTok
}
