package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/yegors/co-efb/internal/ai"
	"github.com/yegors/co-efb/pkg/logger"
)

// Client is a Gemini chat provider backed by the genai SDK
type Client struct {
	client *genai.Client
	logger *logger.Logger
}

// NewClient creates a Gemini client. baseURL overrides the API endpoint
// when set.
func NewClient(ctx context.Context, apiKey, baseURL string, log *logger.Logger) (*Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		client: client,
		logger: log.Named("gemini"),
	}, nil
}

// ChatCompletion implements ai.ChatProvider. System messages become the
// system instruction; assistant turns map to the model role.
func (c *Client) ChatCompletion(ctx context.Context, messages []ai.ChatMessage, config ai.ChatConfig) (string, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case ai.RoleSystem:
			system = append(system, msg.Content)
		case ai.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(config.Temperature)),
	}
	if config.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(config.MaxTokens)
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, config.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini chat failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ai.ErrEmptyResponse
	}

	c.logger.Debug("Gemini completion",
		logger.String("model", config.Model),
		logger.Int("chars", len(text)))
	return text, nil
}
