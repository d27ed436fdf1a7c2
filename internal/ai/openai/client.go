package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/co-efb/internal/ai"
	"github.com/yegors/co-efb/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o-mini"

	chatCompletionsPath = "/v1/chat/completions"
	maxErrorBody        = 4096
)

// APIError is a non-200 answer from the chat completions endpoint
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	kind := e.Code
	if kind == "" {
		kind = e.Type
	}
	if kind == "" {
		return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openai: status %d (%s): %s", e.StatusCode, kind, e.Message)
}

// Retryable reports whether the same request may succeed later
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Client summarises briefings through an OpenAI-compatible chat completions endpoint
type Client struct {
	apiKey     string
	baseURL    string
	chatPath   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a client for baseURL, or the public OpenAI API when it is empty
func NewClient(apiKey string, log *logger.Logger, baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  base,
		chatPath: chatCompletionsPath,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: log.Named("openai"),
	}
}

// SetChatPath overrides the chat completions path for gateways that mount it elsewhere
func (c *Client) SetChatPath(path string) {
	if path != "" {
		c.chatPath = path
	}
}

// ChatCompletion implements ai.ChatProvider
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	payload := chatRequest{
		Model:       config.Model,
		Messages:    make([]chatMessage, len(messages)),
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
	}
	if payload.Model == "" {
		payload.Model = DefaultModel
	}
	for i, msg := range messages {
		payload.Messages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.chatPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}

	choice := result.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", ai.ErrEmptyResponse
	}

	c.logger.Debug("Chat completion",
		logger.String("model", result.Model),
		logger.Int("prompt_tokens", result.Usage.PromptTokens),
		logger.Int("completion_tokens", result.Usage.CompletionTokens))
	if choice.FinishReason == "length" {
		c.logger.Warn("Summary cut off by max_tokens",
			logger.String("model", payload.Model),
			logger.Int("max_tokens", payload.MaxTokens))
	}

	return text, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
		apiErr.Type = parsed.Error.Type
		if parsed.Error.Code != nil {
			apiErr.Code = fmt.Sprint(parsed.Error.Code)
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
