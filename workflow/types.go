// Package workflow implements the §4.12 orchestrator: a linear node
// graph with one conditional edge, owning an AnalysisState that each
// node mutates in place and progress-reports around.
package workflow

import (
	"time"

	"github.com/briksprint/gcode-core/detect"
	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/briksprint/gcode-core/llm"
	"github.com/briksprint/gcode-core/patch"
	"github.com/briksprint/gcode-core/rules"
	"github.com/briksprint/gcode-core/segment"
	"github.com/briksprint/gcode-core/summary"
)

// Mode selects how far the graph runs (§4.12's conditional edge).
type Mode string

const (
	ModeSummaryOnly Mode = "summary_only"
	ModeFull        Mode = "full"
)

// TimelineEvent is one node's entry in AnalysisState.Timeline.
type TimelineEvent struct {
	Node      string
	Status    string // "started" | "completed" | "failed"
	Message   string
	Timestamp time.Time
}

// AnalysisState is the workflow's cumulative record (§3). The
// orchestrator creates it, every node mutates it in place, and the
// Filesystem Analysis Store serializes it between runs. It exclusively
// owns the parsed lines, layer map, and every derived collection for its
// lifetime.
type AnalysisState struct {
	AnalysisID string
	FilePath   string
	Filament   string
	Locale     llm.Locale
	Mode       Mode

	Parse     gcodeparse.ParseResult
	Printer   detect.PrinterContext
	LayerMap  segment.LayerMap
	NumLayers int

	Summary summary.ComprehensiveSummary

	// DetectedIssues and Snippets are analyze_events's output, consumed
	// by llm_analyze.
	DetectedIssues []rules.RuleIssue
	Snippets       map[int]string

	Classified llm.ClassifiedIssues
	// FinalIssues is rule_confirmed + validated issues (not filtered),
	// the list final_output and apply_patch both work from.
	FinalIssues []rules.RuleIssue

	Assessment llm.ExpertAssessment
	Patches    []patch.Suggestion

	UserApproved bool
	PatchedPath  string

	Usage    llm.TokenUsage
	Timeline []TimelineEvent

	Err error
}

// Error wraps a node failure with the node's name and the underlying
// cause (§7 WorkflowError).
type Error struct {
	Node string
	Err  error
}

func (e *Error) Error() string { return "workflow node " + e.Node + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
