package pipeline

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/rng"
)

// Sink receives every document the pipeline completes.
type Sink interface {
	SaveDocument(ctx context.Context, doc *model.RenderedDocument) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for issue dates, ids and delays.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithRand sets the random source used for scores, ids and footers.
func WithRand(src rng.Source) Option {
	return func(p *Pipeline) {
		if src != nil {
			p.rand = src
		}
	}
}

// WithSink persists completed documents. Sink failures are logged only.
func WithSink(s Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithDelays overrides the per-kind processing delays. A nil map disables
// all delays.
func WithDelays(d map[model.Kind]time.Duration) Option {
	return func(p *Pipeline) {
		p.delays = make(map[model.Kind]time.Duration, len(d))
		for k, v := range d {
			p.delays[k] = v
		}
	}
}
