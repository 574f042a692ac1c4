package workflow

import (
	"context"
	"time"

	"github.com/briksprint/gcode-core/detect"
	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/briksprint/gcode-core/llm"
	"github.com/briksprint/gcode-core/patch"
	"github.com/briksprint/gcode-core/progress"
	"github.com/briksprint/gcode-core/rules"
	"github.com/briksprint/gcode-core/segment"
	"github.com/briksprint/gcode-core/summary"
)

const defaultSnippetWindow = 50

// nodeProgress assigns each node a fixed point on the 0.0-1.0 progress
// scale reported to the Tracker at its entry/exit (§4.12, §6).
var nodeProgress = map[string]float64{
	"parse":                 0.05,
	"comprehensive_summary": 0.15,
	"analyze_events":        0.30,
	"llm_analyze":           0.50,
	"expert_assessment":     0.75,
	"final_output":          0.90,
	"apply_patch":           1.0,
}

// Options configures a single Run invocation.
type Options struct {
	Client          llm.Completer
	Tracker         *progress.Tracker
	SnippetWindow   int
	Parallelism     int
	AutoApplyOutput string // path ApplyPatch writes the patched sibling under; empty skips apply_patch
}

// Run drives AnalysisState through the §4.12 node graph:
//
//	parse -> comprehensive_summary -> [summary_only? END : analyze_events]
//	  -> llm_analyze -> expert_assessment -> final_output
//	  -> [user_approved? apply_patch : END] -> END
//
// Each node checks ctx between steps so cancellation takes effect
// between nodes (and, for llm_analyze, between individual per-issue
// calls via the errgroup context llm.Validate already threads through).
func Run(ctx context.Context, state *AnalysisState, data []byte, opts Options) error {
	if err := runNode(ctx, state, opts, "parse", func() error { return parseNode(state, data) }); err != nil {
		return err
	}
	if err := runNode(ctx, state, opts, "comprehensive_summary", func() error { return summaryNode(state) }); err != nil {
		return err
	}

	if state.Mode == ModeSummaryOnly {
		return nil
	}

	if err := runNode(ctx, state, opts, "analyze_events", func() error { return analyzeEventsNode(state, opts) }); err != nil {
		return err
	}
	if err := runNode(ctx, state, opts, "llm_analyze", func() error { return llmAnalyzeNode(ctx, state, opts) }); err != nil {
		return err
	}
	if err := runNode(ctx, state, opts, "expert_assessment", func() error { return expertAssessmentNode(ctx, state, opts) }); err != nil {
		return err
	}
	if err := runNode(ctx, state, opts, "final_output", func() error { return finalOutputNode(state) }); err != nil {
		return err
	}

	if !state.UserApproved {
		return nil
	}
	if err := runNode(ctx, state, opts, "apply_patch", func() error { return applyPatchNode(state, opts) }); err != nil {
		return err
	}
	return nil
}

// runNode reports entry/exit progress, checks ctx before running, and
// wraps any returned error as a workflow Error naming the node.
func runNode(ctx context.Context, state *AnalysisState, opts Options, node string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return recordFailure(state, opts, node, err)
	}

	reportf(state, node, "started")
	reportProgress(opts.Tracker, node, "started")
	if err := fn(); err != nil {
		return recordFailure(state, opts, node, err)
	}
	reportf(state, node, "completed")
	reportProgress(opts.Tracker, node, "completed")
	return nil
}

func recordFailure(state *AnalysisState, opts Options, node string, err error) error {
	message := "failed: " + err.Error()
	state.Timeline = append(state.Timeline, TimelineEvent{Node: node, Status: "failed", Message: err.Error(), Timestamp: time.Now().UTC()})
	reportProgress(opts.Tracker, node, message)
	wrapped := &Error{Node: node, Err: err}
	state.Err = wrapped
	return wrapped
}

func reportf(state *AnalysisState, node, status string) {
	state.Timeline = append(state.Timeline, TimelineEvent{Node: node, Status: status, Timestamp: time.Now().UTC()})
}

// reportProgress mirrors a node's entry/exit onto the Tracker, if one was
// supplied. t may be nil (tracking is optional).
func reportProgress(t *progress.Tracker, node, status string) {
	if t == nil {
		return
	}
	t.Update(nodeProgress[node], node, status, nil)
}

func parseNode(state *AnalysisState, data []byte) error {
	state.Parse = gcodeparse.Parse(data)
	state.Printer = detect.Detect(state.Parse.Lines)

	if state.Parse.FallbackUsed && state.Printer.Slicer == detect.SlicerUnknown {
		return &segment.EncodingError{Encoding: string(state.Parse.Encoding)}
	}

	layerMap, numLayers := segment.BuildLayerMap(state.Parse.Lines)
	state.LayerMap = layerMap
	state.NumLayers = numLayers
	return nil
}

func summaryNode(state *AnalysisState) error {
	state.Summary = summary.Compute(state.Parse.Lines, state.LayerMap, state.NumLayers)
	return nil
}

func analyzeEventsNode(state *AnalysisState, opts Options) error {
	window := opts.SnippetWindow
	if window <= 0 {
		window = defaultSnippetWindow
	}
	issues, snippets := rules.Detect(state.Parse.Lines, state.Printer, state.Filament, window)
	state.DetectedIssues = issues
	state.Snippets = snippets
	return nil
}

func llmAnalyzeNode(ctx context.Context, state *AnalysisState, opts Options) error {
	classified := llm.Validate(ctx, opts.Client, state.Locale, state.DetectedIssues, state.Snippets, opts.Parallelism, streamFor(opts.Tracker, "llm_analyze"))
	state.Classified = classified
	state.FinalIssues = classified.Merged
	return nil
}

func expertAssessmentNode(ctx context.Context, state *AnalysisState, opts Options) error {
	state.Assessment = llm.Assess(ctx, opts.Client, state.Locale, state.Summary, state.FinalIssues, streamFor(opts.Tracker, "expert_assessment"))
	return nil
}

// streamFor binds a node's mid-execution chunk callback to its fixed
// progress value, or returns nil when no Tracker was supplied.
func streamFor(t *progress.Tracker, node string) llm.StreamFunc {
	if t == nil {
		return nil
	}
	return t.ChunkFunc(nodeProgress[node], node)
}

func finalOutputNode(state *AnalysisState) error {
	state.Patches = patch.Plan(state.Parse.Lines, state.FinalIssues, state.Filament)
	return nil
}

func applyPatchNode(state *AnalysisState, opts Options) error {
	if opts.AutoApplyOutput == "" {
		return nil
	}
	outPath, err := patch.ApplyPatches(opts.AutoApplyOutput, state.Parse.Lines, state.Patches)
	if err != nil {
		return err
	}
	state.PatchedPath = outPath
	return nil
}
