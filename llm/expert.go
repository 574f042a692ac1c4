package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/briksprint/gcode-core/rules"
	"github.com/briksprint/gcode-core/summary"
)

// optimizedSummary is the whitelisted projection of ComprehensiveSummary
// sent to the expert-assessment prompt (§4.7) — only the fields useful
// for a qualitative read, not every raw sample.
type optimizedSummary struct {
	LayerCount       int     `json:"layer_count"`
	LayerHeight      float64 `json:"layer_height_mm"`
	FirstLayerHeight float64 `json:"first_layer_height_mm"`
	NozzleMinC       float64 `json:"nozzle_min_c"`
	NozzleMaxC       float64 `json:"nozzle_max_c"`
	BedMinC          float64 `json:"bed_min_c"`
	BedMaxC          float64 `json:"bed_max_c"`
	TotalExtrusionMM float64 `json:"total_extrusion_mm"`
	RetractionCount  int     `json:"retraction_count"`
	EstimatedSeconds float64 `json:"estimated_print_seconds"`
	MaxFeedRate      float64 `json:"max_feed_rate"`
}

func projectSummary(s summary.ComprehensiveSummary) optimizedSummary {
	return optimizedSummary{
		LayerCount:       s.Layer.LayerCount,
		LayerHeight:      s.Layer.LayerHeight,
		FirstLayerHeight: s.Layer.FirstLayerHeight,
		NozzleMinC:       s.Temperature.NozzleMin,
		NozzleMaxC:       s.Temperature.NozzleMax,
		BedMinC:          s.Temperature.BedMin,
		BedMaxC:          s.Temperature.BedMax,
		TotalExtrusionMM: s.Extrusion.TotalExtrusion,
		RetractionCount:  s.Extrusion.RetractionCount,
		EstimatedSeconds: s.PrintTime.TotalSeconds,
		MaxFeedRate:      s.FeedRate.MaxFeed,
	}
}

// issueForPrompt is the subset of a validated/confirmed issue the prompt
// needs; line values must be preserved exactly by the model (§4.7).
type issueForPrompt struct {
	TypeCode       string `json:"type_code"`
	Line           int    `json:"line"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	AutofixAllowed bool   `json:"autofix_allowed"`
}

// Assess runs the single §4.7 expert-assessment call: it receives the
// optimized summary plus the final issue list and returns a structured
// ExpertAssessment. On any transport/parse failure it returns the §7
// fail-safe score-zero placeholder with the error text in Summary,
// rather than propagating the error — expert assessment is advisory and
// must not abort the workflow. stream, if non-nil, receives the model's
// raw response chunks as they arrive.
func Assess(ctx context.Context, client Completer, locale Locale, s summary.ComprehensiveSummary, issues []rules.RuleIssue, stream StreamFunc) ExpertAssessment {
	prompt := buildAssessmentPrompt(locale, projectSummary(s), toPromptIssues(issues))

	text, err := client.Complete(ctx, prompt, stream)
	if err != nil {
		return placeholderAssessment(err)
	}

	assessment, err := parseAssessment(text)
	if err != nil {
		return placeholderAssessment(err)
	}
	return assessment
}

func toPromptIssues(issues []rules.RuleIssue) []issueForPrompt {
	out := make([]issueForPrompt, len(issues))
	for i, iss := range issues {
		out[i] = issueForPrompt{
			TypeCode:       iss.TypeCode,
			Line:           iss.Line,
			Severity:       string(iss.Severity),
			Description:    iss.ShortDescription,
			AutofixAllowed: iss.AutofixAllowed,
		}
	}
	return out
}

func buildAssessmentPrompt(locale Locale, s optimizedSummary, issues []issueForPrompt) string {
	summaryJSON, _ := json.Marshal(s)
	issuesJSON, _ := json.Marshal(issues)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", localePreamble(locale))
	b.WriteString("Evaluate this 3D print's G-code quality given the summary and issue list below.\n\n")
	fmt.Fprintf(&b, "Summary:\n%s\n\n", summaryJSON)
	fmt.Fprintf(&b, "Issues (preserve each \"line\" value exactly):\n%s\n\n", issuesJSON)
	b.WriteString("Rules: an empty issue list must score >= 90 with grade \"S\" and an empty critical_issues list. ")
	b.WriteString("Otherwise: grade \"C\" if >=1 critical or >=4 high severity issues; \"B\" if >=1 high; \"A\" if only low/medium; \"S\" if none. ")
	b.WriteString("Issues with autofix_allowed=false are manual-review items: halve their severity weight in scoring and flag low confidence for them.\n\n")
	b.WriteString("Respond with a single JSON object matching this shape: ")
	b.WriteString(`{"score": int, "grade": "S|A|B|C|F", "summary": string, ` +
		`"check_points": [{"name": string, "status": "pass|warn|fail", "detail": string}], ` +
		`"critical_issues": [{"type_code": string, "line": int, "description": string, "fix_proposal": string}], ` +
		`"recommendations": [string]}`)
	return b.String()
}

var assessmentJSONPattern = regexp.MustCompile(`(?s)\{.*\}`)

func parseAssessment(text string) (ExpertAssessment, error) {
	match := assessmentJSONPattern.FindString(text)
	if match == "" {
		return ExpertAssessment{}, fmt.Errorf("no JSON object found in model response")
	}

	var raw struct {
		Score       int    `json:"score"`
		Grade       string `json:"grade"`
		Summary     string `json:"summary"`
		CheckPoints []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			Detail string `json:"detail"`
		} `json:"check_points"`
		CriticalIssues []struct {
			TypeCode    string `json:"type_code"`
			Line        int    `json:"line"`
			Description string `json:"description"`
			FixProposal string `json:"fix_proposal"`
		} `json:"critical_issues"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return ExpertAssessment{}, fmt.Errorf("decoding assessment: %w", err)
	}

	out := ExpertAssessment{
		Score:           raw.Score,
		Grade:           raw.Grade,
		Summary:         raw.Summary,
		Recommendations: raw.Recommendations,
	}
	for _, cp := range raw.CheckPoints {
		out.CheckPoints = append(out.CheckPoints, CheckPointStatus{Name: cp.Name, Status: cp.Status, Detail: cp.Detail})
	}
	for _, ci := range raw.CriticalIssues {
		out.CriticalIssues = append(out.CriticalIssues, CriticalIssue{
			TypeCode: ci.TypeCode, Line: ci.Line, Description: ci.Description, FixProposal: ci.FixProposal,
		})
	}
	return out, nil
}

func placeholderAssessment(err error) ExpertAssessment {
	return ExpertAssessment{
		Score:     0,
		Grade:     "F",
		Summary:   "expert assessment unavailable: " + err.Error(),
		Errored:   true,
		ErrorText: err.Error(),
	}
}
