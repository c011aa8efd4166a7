package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config contains client configuration
type Config struct {
	APIKey  string
	BaseURL string
	// Model is used for classification, replies and translation
	Model string
	// FastModel is used for language detection
	FastModel string
	Timeout   time.Duration
}

// Client is an OpenAI-compatible chat client
type Client struct {
	client    *openai.Client
	model     string
	fastModel string
	timeout   time.Duration
}

// NewClient creates a new chat client
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: api key must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.FastModel == "" {
		cfg.FastModel = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:    openai.NewClientWithConfig(config),
		model:     cfg.Model,
		fastModel: cfg.FastModel,
		timeout:   cfg.Timeout,
	}, nil
}

// Request is one chat completion call
type Request struct {
	System      string
	User        string
	Temperature float32
	// JSON requests a JSON object response
	JSON bool
	// Fast selects the cheaper model
	Fast bool
}

// Complete sends a chat completion and returns the first choice.
// Every call is bounded by the configured timeout.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.model
	if req.Fast {
		model = c.fastModel
	}

	creq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
