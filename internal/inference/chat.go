package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbayops/stormdesk/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChatClient talks to an OpenAI-compatible chat-completions endpoint
// (Cerebras in the default configuration). A single call is made per
// request; failed calls are surfaced as-is, never retried here.
type ChatClient struct {
	cfg     config.InferenceConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewChatClient builds a client from configuration.
func NewChatClient(cfg config.InferenceConfig, logger *zap.Logger) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("inference API key is not configured")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("inference endpoint is not configured")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &ChatClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.APITimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     logger.Named("inference"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Infer performs one chat-completions call.
func (c *ChatClient) Infer(ctx context.Context, req Request) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Reason: "rate limit wait aborted", Err: err}
	}

	msgs := []chatMessage{
		{Role: "system", Content: req.Instructions},
		{Role: "user", Content: req.Context},
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, &Error{Reason: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Reason: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Reason: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Reason: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Reason: fmt.Sprintf("service returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &Error{Reason: "decode response", Err: err}
	}
	if parsed.Error != nil {
		return nil, &Error{Reason: "service error: " + parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Reason: "empty response: no choices returned"}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	c.log.Debug("Inference call complete",
		zap.String("model", c.cfg.Model),
		zap.Int("tokens_used", parsed.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{Content: content, TokensUsed: parsed.Usage.TotalTokens}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
