// internal/review/peer-review/config.go
package peerreview

import (
	"time"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/config"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/retry"
)

type Config struct {
	// Timeout bounds a whole pipeline run. Zero means no pipeline deadline.
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	// Sleep overrides the wait between attempts; nil uses a real timer.
	Sleep retry.SleepFunc
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:     config.GetDuration(cfg.Pipeline.Timeout),
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		BaseDelay:   config.GetDuration(cfg.Pipeline.BaseDelay),
	}
}

func (c *Config) executor() *retry.Executor {
	e := retry.New(c.MaxAttempts, c.BaseDelay)
	if c.Sleep != nil {
		e.Sleep = c.Sleep
	}
	return e
}
