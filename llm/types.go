// Package llm provides a provider-agnostic gateway to the configured LLM
// (Gemini or OpenAI), plus the two higher-level calls the analysis
// pipeline needs on top of it: per-issue validation and a final expert
// assessment of the whole print.
package llm

import (
	"context"

	"github.com/briksprint/gcode-core/rules"
)

// Completer is the interface Validate and Assess depend on, satisfied by
// *Client. Tests supply fakes against this interface instead of hitting
// a real provider.
type Completer interface {
	Complete(ctx context.Context, prompt string, stream StreamFunc) (string, error)
}

// Provider identifies which backend Client talks to.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Locale is the language tag used for the LLM prompt preamble only; it
// never changes the shape of what is asked for.
type Locale string

const (
	LocaleKorean   Locale = "ko"
	LocaleEnglish  Locale = "en"
	LocaleJapanese Locale = "ja"
	LocaleChinese  Locale = "zh"
)

// TokenUsage accumulates across every call made against one Client.
// Monotonically non-decreasing within an analysis run.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CallCount        int
}

func (u *TokenUsage) add(prompt, completion int) {
	u.PromptTokens += prompt
	u.CompletionTokens += completion
	u.TotalTokens += prompt + completion
	u.CallCount++
}

// ValidatedIssue augments a RuleIssue with an LLM verdict.
type ValidatedIssue struct {
	rules.RuleIssue
	IsValidIssue bool
	Confidence   float64
	Reasoning    string
}

// CheckPointStatus is one named pass/fail/warn entry in the expert
// assessment's per-check-point breakdown.
type CheckPointStatus struct {
	Name   string
	Status string // "pass" | "warn" | "fail"
	Detail string
}

// CriticalIssue is a critical/high-severity finding surfaced at the top
// of the expert assessment, with its proposed fix inlined.
type CriticalIssue struct {
	TypeCode    string
	Line        int
	Description string
	FixProposal string
}

// ExpertAssessment is the final LLM-authored report (§4.7).
type ExpertAssessment struct {
	Score           int
	Grade           string // S | A | B | C | F
	Summary         string
	CheckPoints     []CheckPointStatus
	CriticalIssues  []CriticalIssue
	Recommendations []string
	// Errored is set when the call failed and this is the fail-safe
	// score-zero placeholder described in spec §7.
	Errored   bool
	ErrorText string
}

// Error is the LLMError kind from spec §7: any transport/parse failure
// from the model provider. Callers that hit it for validation keep the
// issue as-is; callers that hit it for expert assessment fall back to a
// score-zero placeholder.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "llm: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
