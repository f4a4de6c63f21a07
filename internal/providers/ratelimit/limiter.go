// Package ratelimit throttles calls to a single provider with a token bucket.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
)

// Invoker wraps another invoker and waits for a token before each call.
type Invoker struct {
	next    roster.Invoker
	limiter *rate.Limiter
}

// Wrap limits next to requestsPerMinute, allowing bursts of the same size.
// A non-positive rate returns next unchanged.
func Wrap(next roster.Invoker, requestsPerMinute int) roster.Invoker {
	if requestsPerMinute <= 0 {
		return next
	}
	return &Invoker{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute),
	}
}

func (l *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.Invoke(ctx, prompt)
}
