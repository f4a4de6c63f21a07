package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/config"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
)

func TestBuildRoster_Offline(t *testing.T) {
	cfgs := config.DefaultProviders()
	for i := range cfgs {
		cfgs[i].Kind = "static"
	}

	r, err := BuildRoster(cfgs, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"claude", "gpt", "gemini"}, r.Keys())

	out, err := r.Member(1).Invoker.Invoke(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "[GPT] hello", out)
}

func TestBuildRoster_Mixed(t *testing.T) {
	cfgs := []config.ProviderConfig{
		{Name: "Claude", Kind: "anthropic", Model: "claude-sonnet-4-5", APIKey: "k", RequestsPerMinute: 30},
		{Name: "GPT", Kind: "openai", Model: "gpt-4o", BaseURL: "http://localhost:1/v1"},
	}

	r, err := BuildRoster(cfgs, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Size())
}

func TestBuildRoster_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfgs []config.ProviderConfig
	}{
		{"anthropic without key", []config.ProviderConfig{
			{Name: "Claude", Kind: "anthropic", Model: "m"},
			{Name: "B", Kind: "static"},
		}},
		{"unknown kind", []config.ProviderConfig{
			{Name: "A", Kind: "carrier-pigeon"},
			{Name: "B", Kind: "static"},
		}},
		{"too few", []config.ProviderConfig{
			{Name: "A", Kind: "static"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRoster(tt.cfgs, logger.NewNoOpLogger())
			assert.Error(t, err)
		})
	}
}
