package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
)

// Pacer decides how long to pause before touching urlStr. upTo bounds the
// randomized part of the pause; zero means no random pause.
type Pacer interface {
	Wait(ctx context.Context, urlStr string, upTo time.Duration) error
}

// HumanPacer sleeps a uniformly random duration in [0, upTo) and then
// waits on the per-host floor.
type HumanPacer struct {
	floor *DomainLimiter
	rand  func(n int64) int64
}

// NewHumanPacer returns a pacer backed by floor. A nil floor disables it.
func NewHumanPacer(floor *DomainLimiter) *HumanPacer {
	return &HumanPacer{floor: floor, rand: rand.Int64N}
}

func (p *HumanPacer) Wait(ctx context.Context, urlStr string, upTo time.Duration) error {
	if upTo > 0 {
		d := time.Duration(p.rand(int64(upTo)))
		log.Debug().Str("url", urlStr).Dur("delay", d).Msg("Pacing")
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	if p.floor != nil {
		return p.floor.Wait(ctx, urlStr)
	}
	return nil
}

// NoopPacer never waits. Tests use it in place of HumanPacer.
type NoopPacer struct{}

func (NoopPacer) Wait(ctx context.Context, _ string, _ time.Duration) error {
	return ctx.Err()
}
