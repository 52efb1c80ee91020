package feed

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect defaults. Delays double from the base up to the cap and
// stay there until a connection succeeds.
const (
	DefaultReconnectBase = 5 * time.Second
	DefaultReconnectMax  = 60 * time.Second
)

// ReconnectPolicy produces the wait before each reconnect attempt.
// There is no attempt limit; the caller retries until its context is
// cancelled. Reset must be called after a successful connection so the
// next failure starts from the base again.
type ReconnectPolicy struct {
	eb *backoff.ExponentialBackOff
}

func NewReconnectPolicy(base, max time.Duration) *ReconnectPolicy {
	if base <= 0 {
		base = DefaultReconnectBase
	}
	if max <= 0 {
		max = DefaultReconnectMax
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = base
	eb.MaxInterval = max
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0 // never give up
	eb.Reset()
	return &ReconnectPolicy{eb: eb}
}

// Next returns the delay before the next attempt.
func (p *ReconnectPolicy) Next() time.Duration {
	return p.eb.NextBackOff()
}

// Reset restores the policy to its base delay.
func (p *ReconnectPolicy) Reset() {
	p.eb.Reset()
}
