// internal/review/followup/config.go
package followup

import (
	"time"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/config"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/retry"
)

const (
	DefaultMaxChain       = 5
	DefaultFullRunCost    = 3.0
	DefaultCostMultiplier = 0.17
)

type Config struct {
	MaxChain       int
	FullRunCost    float64
	CostMultiplier float64
	MaxAttempts    int
	BaseDelay      time.Duration
	Sleep          retry.SleepFunc
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		MaxChain:       cfg.Followup.MaxChain,
		FullRunCost:    cfg.Followup.FullRunCost,
		CostMultiplier: cfg.Followup.CostMultiplier,
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		BaseDelay:      config.GetDuration(cfg.Pipeline.BaseDelay),
	}
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.MaxChain <= 0 {
		out.MaxChain = DefaultMaxChain
	}
	if out.FullRunCost <= 0 {
		out.FullRunCost = DefaultFullRunCost
	}
	if out.CostMultiplier <= 0 {
		out.CostMultiplier = DefaultCostMultiplier
	}
	return &out
}

func (c *Config) executor() *retry.Executor {
	e := retry.New(c.MaxAttempts, c.BaseDelay)
	if c.Sleep != nil {
		e.Sleep = c.Sleep
	}
	return e
}
