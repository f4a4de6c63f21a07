// Package anthropic invokes Claude models through the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var ErrEmptyResponse = errors.New("EMPTY_RESPONSE")

// MessagesClient is the subset of the SDK used here. *sdk.MessageService
// satisfies it.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

type Options struct {
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// Invoker sends a single user turn and returns the text of the reply.
type Invoker struct {
	msg  MessagesClient
	opts Options
}

func New(msg MessagesClient, opts Options) (*Invoker, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	return &Invoker{msg: msg, opts: opts}, nil
}

// NewFromAPIKey constructs an invoker on the default SDK HTTP client.
func NewFromAPIKey(apiKey string, opts Options, reqOpts ...option.RequestOption) (*Invoker, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	client := sdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)...)
	return New(&client.Messages, opts)
}

func (c *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.opts.Model),
		MaxTokens: int64(c.opts.MaxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if c.opts.Temperature > 0 {
		params.Temperature = sdk.Float(c.opts.Temperature)
	}
	if c.opts.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: c.opts.SystemPrompt}}
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}

	text := firstText(msg)
	if text == "" {
		return "", fmt.Errorf("%w from %s", ErrEmptyResponse, c.opts.Model)
	}
	return text, nil
}

func firstText(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if text := strings.TrimSpace(block.Text); text != "" {
			return text
		}
	}
	return ""
}
