// Package providers turns provider configuration into a model roster.
package providers

import (
	"fmt"
	"strings"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/config"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/anthropic"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/gateway"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/ratelimit"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/static"
)

// BuildRoster creates one invoker per configured provider, in order.
func BuildRoster(cfgs []config.ProviderConfig, log logger.Logger) (*roster.Roster, error) {
	keys := make([]string, len(cfgs))
	for i, pc := range cfgs {
		keys[i] = roster.ProviderKey(pc.Name)
	}

	members := make([]roster.Member, 0, len(cfgs))
	for _, pc := range cfgs {
		inv, err := buildInvoker(pc, keys)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		members = append(members, roster.Member{
			Name:    pc.Name,
			Invoker: ratelimit.Wrap(inv, pc.RequestsPerMinute),
		})

		log.Info("provider configured", map[string]interface{}{
			"provider":          pc.Name,
			"kind":              pc.Kind,
			"model":             pc.Model,
			"requestsPerMinute": pc.RequestsPerMinute,
			"hasAPIKey":         pc.APIKey != "",
		})
	}

	return roster.New(members...)
}

func buildInvoker(pc config.ProviderConfig, keys []string) (roster.Invoker, error) {
	switch strings.ToLower(pc.Kind) {
	case "anthropic":
		return anthropic.NewFromAPIKey(pc.APIKey, anthropic.Options{
			Model:        pc.Model,
			MaxTokens:    pc.MaxTokens,
			Temperature:  pc.Temperature,
			SystemPrompt: pc.SystemPrompt,
		})
	case "openai":
		return gateway.NewFromConfig(gateway.Config{
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Timeout: config.GetDuration(pc.Timeout),
		}, gateway.Options{
			Model:        pc.Model,
			MaxTokens:    pc.MaxTokens,
			Temperature:  pc.Temperature,
			SystemPrompt: pc.SystemPrompt,
		})
	case "static":
		return static.New(pc.Name, keys), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}
