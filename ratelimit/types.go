// Package ratelimit implements the §4.9 rate limiter: two global token
// buckets (requests/min, tokens/min) composed with per-caller rolling
// minute and daily counters.
package ratelimit

import "fmt"

// ErrorCode enumerates the reasons Acquire can refuse a request.
type ErrorCode string

const (
	ErrDailyLimitExceeded ErrorCode = "daily_limit_exceeded"
	ErrRPMLimitExceeded   ErrorCode = "rpm_limit_exceeded"
	ErrTokenLimitExceeded ErrorCode = "token_limit_exceeded"
	ErrServerBusy         ErrorCode = "server_busy"
)

// Error is the structured RateLimitError from spec §7. It propagates
// unchanged to the caller and is intended to be surfaced as an HTTP
// 429-equivalent by the transport layer.
type Error struct {
	RetryAfterSeconds float64
	Code              ErrorCode
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s), retry after %.1fs", e.Code, e.RetryAfterSeconds)
}

// Config configures a Limiter. Effective capacity is configured * 0.9
// per §4.9 (a safety margin under the provider's advertised quota).
type Config struct {
	GlobalRPM      int
	GlobalTPM      int
	UserRPM        int
	UserDailyLimit int
}

const effectiveCapacityFactor = 0.9

// effectiveGlobalRPM/TPM apply the §4.9 0.9 safety margin to the shared
// provider-facing buckets. Per-caller RPM/daily quotas are enforced at
// the configured value exactly — §8 scenario 6 ("user_rpm=5 ... first
// five succeed") is literal about the caller-facing number, so scaling
// it would make that scenario fail; see DESIGN.md.
func (c Config) effectiveGlobalRPM() float64 { return float64(c.GlobalRPM) * effectiveCapacityFactor }
func (c Config) effectiveGlobalTPM() float64 { return float64(c.GlobalTPM) * effectiveCapacityFactor }
func (c Config) effectiveUserRPM() int       { return c.UserRPM }
func (c Config) effectiveUserDaily() int     { return c.UserDailyLimit }

// EstimateTokens approximates a prompt's token count from its text
// length: ASCII runs roughly 4 chars/token, non-ASCII roughly 2, plus a
// fixed 100-token buffer for response overhead (§4.9).
func EstimateTokens(text string) int {
	ascii, nonASCII := 0, 0
	for _, r := range text {
		if r < 128 {
			ascii++
		} else {
			nonASCII++
		}
	}
	return ascii/4 + nonASCII/2 + 100
}
