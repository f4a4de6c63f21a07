// Package gateway invokes any model served behind an OpenAI-compatible
// chat completions endpoint (OpenAI, Gemini's compatibility layer, xAI).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apphttp "github.com/beartec-jpg/Ai-Peer-review/internal/common/http"
)

var (
	ErrEmptyResponse  = errors.New("EMPTY_RESPONSE")
	ErrGatewayFailure = errors.New("GATEWAY_FAILURE")
)

// ChatClient captures the subset of the go-openai client used by the invoker.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

type Options struct {
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// Config locates the endpoint for NewFromConfig.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Invoker struct {
	chat ChatClient
	opts Options
}

func New(chat ChatClient, opts Options) (*Invoker, error) {
	if chat == nil {
		return nil, errors.New("chat client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	return &Invoker{chat: chat, opts: opts}, nil
}

// NewFromConfig builds a go-openai client pointed at config.BaseURL. The key
// may be empty for local gateways that do not authenticate.
func NewFromConfig(config Config, opts Options) (*Invoker, error) {
	if config.BaseURL == "" {
		return nil, errors.New("gateway base url is required")
	}
	cc := openai.DefaultConfig(config.APIKey)
	cc.BaseURL = strings.TrimRight(config.BaseURL, "/")
	cc.HTTPClient = apphttp.NewClient(config.Timeout)
	return New(openai.NewClientWithConfig(cc), opts)
}

func (g *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if g.opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: g.opts.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := g.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.opts.Model,
		Messages:    messages,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: float32(g.opts.Temperature),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s: %w", ErrGatewayFailure, g.opts.Model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w from %s", ErrEmptyResponse, g.opts.Model)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w from %s", ErrEmptyResponse, g.opts.Model)
	}
	return text, nil
}
