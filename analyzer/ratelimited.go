package analyzer

import (
	"context"

	"github.com/briksprint/gcode-core/llm"
	"github.com/briksprint/gcode-core/ratelimit"
)

// rateLimitedCompleter adapts an *llm.Client into an llm.Completer that
// acquires rate-limiter capacity before every call, estimating the
// prompt's token cost per §4.9's formula. A RateLimitError from Acquire
// propagates unchanged to the caller, per §7's propagation policy.
type rateLimitedCompleter struct {
	client  *llm.Client
	limiter *ratelimit.Limiter
	caller  string
}

func (r *rateLimitedCompleter) Complete(ctx context.Context, prompt string, stream llm.StreamFunc) (string, error) {
	if err := r.limiter.Acquire(ctx, r.caller, ratelimit.EstimateTokens(prompt)); err != nil {
		return "", err
	}
	return r.client.Complete(ctx, prompt, stream)
}
