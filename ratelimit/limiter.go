package ratelimit

import (
	"context"
	"sync"
	"time"
)

const pollInterval = 10 * time.Millisecond

// Limiter composes a global requests-per-minute bucket, a global
// tokens-per-minute bucket, and per-caller rolling minute/day counters
// (§4.9). The Filesystem Analysis Store is the only shared mutable state
// elsewhere in the pipeline; the limiter is the one other piece of
// process-wide shared state, by design.
type Limiter struct {
	cfg       Config
	globalRPM *tokenBucket
	globalTPM *tokenBucket

	mu      sync.Mutex
	callers map[string]*callerState
}

type callerState struct {
	minute *rollingCounter
	daily  *rollingCounter
}

// New builds a Limiter from cfg.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:       cfg,
		globalRPM: newTokenBucket(cfg.effectiveGlobalRPM()),
		globalTPM: newTokenBucket(cfg.effectiveGlobalTPM()),
		callers:   make(map[string]*callerState),
	}
}

func (l *Limiter) callerStateFor(caller string) *callerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	cs, ok := l.callers[caller]
	if !ok {
		cs = &callerState{
			minute: newRollingCounter(time.Minute),
			daily:  newRollingCounter(24 * time.Hour),
		}
		l.callers[caller] = cs
	}
	return cs
}

// Acquire blocks until a request slot and estimatedTokens of token
// budget are available for caller, or ctx is done, whichever comes
// first. On success it records the request against every counter it
// checked. On timeout it returns a structured *Error naming the
// binding constraint.
func (l *Limiter) Acquire(ctx context.Context, caller string, estimatedTokens int) error {
	cs := l.callerStateFor(caller)
	tokens := float64(estimatedTokens)
	dailyLimit := l.cfg.effectiveUserDaily()
	rpmLimit := l.cfg.effectiveUserRPM()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		// l.mu is held from the peek checks through the commit so that
		// concurrent callers cannot both claim the last free slot.
		l.mu.Lock()
		now := time.Now()

		if dailyLimit > 0 && cs.daily.count(now) >= dailyLimit {
			retryAfter := cs.daily.retryAfter(now)
			l.mu.Unlock()
			if err := l.waitOrFail(ctx, ticker, ErrDailyLimitExceeded, retryAfter); err != nil {
				return err
			}
			continue
		}
		if rpmLimit > 0 && cs.minute.count(now) >= rpmLimit {
			retryAfter := cs.minute.retryAfter(now)
			l.mu.Unlock()
			if err := l.waitOrFail(ctx, ticker, ErrRPMLimitExceeded, retryAfter); err != nil {
				return err
			}
			continue
		}
		if !l.globalRPM.available(1) {
			retryAfter := l.globalRPM.retryAfter(1)
			l.mu.Unlock()
			if err := l.waitOrFail(ctx, ticker, ErrServerBusy, retryAfter); err != nil {
				return err
			}
			continue
		}
		if !l.globalTPM.available(tokens) {
			retryAfter := l.globalTPM.retryAfter(tokens)
			l.mu.Unlock()
			if err := l.waitOrFail(ctx, ticker, ErrTokenLimitExceeded, retryAfter); err != nil {
				return err
			}
			continue
		}

		// Every constraint cleared the peek check above; commit atomically.
		l.globalRPM.take(1)
		l.globalTPM.take(tokens)
		cs.daily.record(now)
		cs.minute.record(now)
		l.mu.Unlock()
		return nil
	}
}

// waitOrFail blocks until the next poll tick or ctx is done. If ctx is
// done first, it returns a structured Error carrying code and
// retryAfter; otherwise it returns nil so the caller re-checks.
func (l *Limiter) waitOrFail(ctx context.Context, ticker *time.Ticker, code ErrorCode, retryAfter float64) error {
	select {
	case <-ctx.Done():
		return &Error{Code: code, RetryAfterSeconds: retryAfter}
	case <-ticker.C:
		return nil
	}
}
