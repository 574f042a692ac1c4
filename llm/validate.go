package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/briksprint/gcode-core/rules"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism is the default bound on concurrent LLM validation
// calls (§4.6, §6 MAX_CONCURRENT_LLM_CALLS default).
const DefaultParallelism = 5

// ClassifiedIssues is the §4.6 three-track split of a raw RuleIssue list.
// Merged is RuleConfirmed and the kept half of Validated interleaved back
// into the original input order (§5: "the merged list preserves input
// order"), ready for direct use as the final issue list.
type ClassifiedIssues struct {
	RuleConfirmed []rules.RuleIssue
	Validated     []ValidatedIssue
	Filtered      []rules.RuleIssue
	Merged        []rules.RuleIssue
}

// Validate classifies issues into the three §4.6 tracks. snippets holds
// the ±window G-code context for every issue the rule engine flagged as
// ambiguous (see rules.Detect's second return value); an issue with no
// entry in snippets is deterministic and passes through unchanged as
// rule_confirmed. Ambiguous issues are validated concurrently, bounded
// by parallelism (0 or negative uses DefaultParallelism), but Merged
// always reflects issues' original relative order regardless of which
// goroutine finishes first. stream, if non-nil, is handed to every
// per-issue Complete call so a caller can surface mid-execution chunks;
// it may be called from multiple goroutines concurrently.
func Validate(ctx context.Context, client Completer, locale Locale, issues []rules.RuleIssue, snippets map[int]string, parallelism int, stream StreamFunc) ClassifiedIssues {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	isAmbiguous := make([]bool, len(issues))
	var ambiguous []rules.RuleIssue
	for i, iss := range issues {
		if _, needsLLM := snippets[iss.Line]; needsLLM {
			isAmbiguous[i] = true
			ambiguous = append(ambiguous, iss)
		}
	}

	validated := make([]ValidatedIssue, len(ambiguous))
	filteredFlags := make([]bool, len(ambiguous))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	var mu sync.Mutex
	for i, iss := range ambiguous {
		i, iss := i, iss
		g.Go(func() error {
			verdict, err := validateOne(gctx, client, locale, iss, snippets[iss.Line], stream)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Fail-safe: keep the issue as-is on transport/parse failure.
				validated[i] = ValidatedIssue{RuleIssue: iss, IsValidIssue: true, Confidence: 0, Reasoning: "validation unavailable: " + err.Error()}
				return nil
			}
			validated[i] = verdict
			filteredFlags[i] = !verdict.IsValidIssue
			return nil
		})
	}
	// errgroup.Group.Go never returns a non-nil error here (validateOne
	// failures are absorbed above), so Wait cannot fail.
	_ = g.Wait()

	var result ClassifiedIssues
	result.Merged = make([]rules.RuleIssue, 0, len(issues))
	ambiguousIdx := 0
	for i, iss := range issues {
		if !isAmbiguous[i] {
			result.RuleConfirmed = append(result.RuleConfirmed, iss)
			result.Merged = append(result.Merged, iss)
			continue
		}
		v := validated[ambiguousIdx]
		filtered := filteredFlags[ambiguousIdx]
		ambiguousIdx++
		if filtered {
			result.Filtered = append(result.Filtered, v.RuleIssue)
			continue
		}
		result.Validated = append(result.Validated, v)
		result.Merged = append(result.Merged, v.RuleIssue)
	}
	return result
}

func validateOne(ctx context.Context, client Completer, locale Locale, issue rules.RuleIssue, snippet string, stream StreamFunc) (ValidatedIssue, error) {
	prompt := buildValidationPrompt(locale, issue, snippet)
	text, err := client.Complete(ctx, prompt, stream)
	if err != nil {
		return ValidatedIssue{}, err
	}

	verdict, err := parseValidationVerdict(text)
	if err != nil {
		return ValidatedIssue{}, err
	}

	result := ValidatedIssue{
		RuleIssue:    issue,
		IsValidIssue: verdict.IsValidIssue,
		Confidence:   verdict.Confidence,
		Reasoning:    verdict.Reasoning,
	}
	if verdict.CorrectedSeverity != "" {
		result.RuleIssue.Severity = rules.Severity(verdict.CorrectedSeverity)
	}
	return result, nil
}

func buildValidationPrompt(locale Locale, issue rules.RuleIssue, snippet string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", localePreamble(locale))
	fmt.Fprintf(&b, "A rule engine flagged line %d of a G-code file as a possible %q issue:\n", issue.Line, issue.TypeCode)
	fmt.Fprintf(&b, "%s\n\n", issue.LongDescription)
	b.WriteString("Surrounding G-code context:\n```\n")
	b.WriteString(snippet)
	b.WriteString("```\n\n")
	b.WriteString("Respond with a single JSON object: {\"is_valid_issue\": bool, \"confidence\": 0.0-1.0, \"reasoning\": string, \"corrected_severity\": \"critical|high|medium|low|info\" or \"\"}.")
	return b.String()
}

func localePreamble(locale Locale) string {
	switch locale {
	case LocaleKorean:
		return "당신은 3D 프린터 G-code 분석 전문가입니다."
	case LocaleJapanese:
		return "あなたは3Dプリンター用Gコード解析の専門家です。"
	case LocaleChinese:
		return "你是一名3D打印机G代码分析专家。"
	default:
		return "You are an expert 3D-printer G-code analyst."
	}
}

type validationVerdict struct {
	IsValidIssue      bool    `json:"is_valid_issue"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
	CorrectedSeverity string  `json:"corrected_severity"`
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseValidationVerdict extracts the JSON object from the model's
// response, tolerating surrounding prose or markdown code fences.
func parseValidationVerdict(text string) (validationVerdict, error) {
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return validationVerdict{}, fmt.Errorf("no JSON object found in model response")
	}

	var v validationVerdict
	if err := json.Unmarshal([]byte(match), &v); err != nil {
		return validationVerdict{}, fmt.Errorf("decoding verdict: %w", err)
	}
	return v, nil
}
