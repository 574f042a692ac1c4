package patch

import (
	"fmt"
	"strings"

	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/briksprint/gcode-core/rules"
)

const contextWindow = 20

// Plan turns each issue into a Suggestion, inspecting the original line
// and its ±20-line context to avoid duplicate fixes (e.g. a M109 already
// present nearby) and forcing vendor-extension temperature commands to
// action=review since their S value does not carry the real target.
func Plan(lines []gcodeparse.GCodeLine, issues []rules.RuleIssue, filament string) []Suggestion {
	target := targetFor(filament)

	suggestions := make([]Suggestion, 0, len(issues))
	for priority, iss := range issues {
		suggestions = append(suggestions, planOne(lines, iss, target, priority))
	}
	return suggestions
}

func planOne(lines []gcodeparse.GCodeLine, iss rules.RuleIssue, target FilamentTarget, priority int) Suggestion {
	original := ""
	if iss.Line >= 1 && iss.Line <= len(lines) {
		original = lines[iss.Line-1].Raw
	}

	base := Suggestion{
		Line:           iss.Line,
		OriginalRaw:    original,
		Priority:       priority,
		IssueType:      iss.TypeCode,
		Reason:         iss.ShortDescription,
		AutofixAllowed: iss.AutofixAllowed,
		Vendor:         iss.Vendor,
	}

	if iss.Vendor != nil {
		base.Action = ActionReview
		base.AutofixAllowed = false
		base.Reason = fmt.Sprintf("%s (vendor %s=%.0f overrides the standard S value)", base.Reason, iss.Vendor.Param, iss.Vendor.Value)
		return base
	}

	if !iss.AutofixAllowed {
		base.Action = ActionReview
		return base
	}

	switch iss.TypeCode {
	case "cold_extrusion", "early_temp_off", "missing_warmup":
		base.Action = ActionModify
		replacement := fmt.Sprintf("M109 S%.0f", target.NozzleC)
		if hasNearbyCommand(lines, iss.Line, "M109") {
			base.Action = ActionReview
			base.Reason = base.Reason + " (a M109 already exists nearby; skipping to avoid duplication)"
		} else {
			base.Replacement = &replacement
		}
	case "early_bed_off", "bed_temp_off_early":
		base.Action = ActionModify
		replacement := fmt.Sprintf("M190 S%.0f", target.BedC)
		if hasNearbyCommand(lines, iss.Line, "M190") {
			base.Action = ActionReview
			base.Reason = base.Reason + " (a M190 already exists nearby; skipping to avoid duplication)"
		} else {
			base.Replacement = &replacement
		}
	case "missing_end":
		base.Action = ActionAddAfter
		replacement := "; END OF PRINT"
		base.Replacement = &replacement
	case "missing_setup":
		base.Action = ActionAddBefore
		replacement := "G28 ; home all axes"
		base.Replacement = &replacement
	case "excessive_speed":
		base.Action = ActionModify
		replacement := reduceFeedRate(original)
		base.Replacement = &replacement
	case "excessive_retraction":
		base.Action = ActionReview
	default:
		base.Action = ActionReview
	}

	return base
}

// hasNearbyCommand reports whether command appears in the ±contextWindow
// lines around line (1-based, excluding line itself).
func hasNearbyCommand(lines []gcodeparse.GCodeLine, line int, command string) bool {
	start := line - contextWindow
	if start < 1 {
		start = 1
	}
	end := line + contextWindow
	if end > len(lines) {
		end = len(lines)
	}
	for i := start; i <= end; i++ {
		if i == line {
			continue
		}
		if lines[i-1].Command == command {
			return true
		}
	}
	return false
}

// reduceFeedRate rewrites a G0/G1 line's F parameter down to the §4.5
// excessive-speed threshold, leaving every other token untouched.
func reduceFeedRate(raw string) string {
	const cappedFeed = "F18000"
	fields := strings.Fields(raw)
	for i, f := range fields {
		if len(f) > 0 && (f[0] == 'F' || f[0] == 'f') {
			fields[i] = cappedFeed
			return strings.Join(fields, " ")
		}
	}
	return raw + " " + cappedFeed
}
