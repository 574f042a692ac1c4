// Package analyzer is the public API binding every subsystem together,
// grounded on the teacher's main.go wiring root — the one place that
// constructs every subsystem and hands callbacks between them.
package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/briksprint/gcode-core/detect"
	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/briksprint/gcode-core/llm"
	"github.com/briksprint/gcode-core/progress"
	"github.com/briksprint/gcode-core/ratelimit"
	"github.com/briksprint/gcode-core/rules"
	"github.com/briksprint/gcode-core/segment"
	"github.com/briksprint/gcode-core/store"
	"github.com/briksprint/gcode-core/workflow"
)

// Analyzer wires a Config into the full pipeline: LLM client, rate
// limiter, and Filesystem Analysis Store, all constructed once and
// reused across runs.
type Analyzer struct {
	cfg       *Config
	client    *llm.Client
	completer llm.Completer
	limiter   *ratelimit.Limiter
	store     *store.Store
}

// New constructs an Analyzer from cfg. It creates the analysis store
// directory if needed; an empty GCodeStoreDir means
// OutputDir/analysis_store.
func New(cfg *Config) (*Analyzer, error) {
	storeDir := cfg.GCodeStoreDir
	if storeDir == "" {
		storeDir = filepath.Join(cfg.OutputDir, "analysis_store")
	}
	st, err := store.New(storeDir)
	if err != nil {
		return nil, fmt.Errorf("initializing analysis store: %w", err)
	}

	client := llm.NewClient(llm.Config{
		Provider: llm.Provider(cfg.LLMProvider),
		Model:    cfg.LLMModel,
	})

	limiter := ratelimit.New(ratelimit.Config{
		GlobalRPM:      cfg.GlobalRPM,
		GlobalTPM:      cfg.GlobalTPM,
		UserRPM:        cfg.UserRPM,
		UserDailyLimit: cfg.UserDailyLimit,
	})

	a := &Analyzer{cfg: cfg, client: client, limiter: limiter, store: st}
	a.completer = &rateLimitedCompleter{client: client, limiter: limiter, caller: "default"}
	return a, nil
}

// RunOptions configures one RunAnalysis call.
type RunOptions struct {
	Filament        string
	Locale          llm.Locale
	Mode            workflow.Mode
	UserApproved    bool
	Caller          string // rate-limiter caller ID; defaults to "default"
	Tracker         *progress.Tracker
	AutoApplyOutput string
}

// RunAnalysis runs the full §4.12 workflow over the file at path and
// persists the resulting AnalysisState to the Filesystem Analysis
// Store, keyed by a freshly minted analysis ID.
func (a *Analyzer) RunAnalysis(ctx context.Context, path string, opts RunOptions) (workflow.AnalysisState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.AnalysisState{}, fmt.Errorf("reading gcode file %s: %w", path, err)
	}

	caller := opts.Caller
	if caller == "" {
		caller = "default"
	}
	if opts.Mode == "" {
		opts.Mode = workflow.ModeFull
	}

	id := store.NewID()
	state := &workflow.AnalysisState{
		AnalysisID:   id,
		FilePath:     path,
		Filament:     opts.Filament,
		Locale:       opts.Locale,
		Mode:         opts.Mode,
		UserApproved: opts.UserApproved,
	}

	a.store.Set(store.Record{AnalysisID: id, Status: store.StatusRunning})

	completer := a.completer
	if caller != "default" {
		completer = &rateLimitedCompleter{client: a.client, limiter: a.limiter, caller: caller}
	}

	runErr := workflow.Run(ctx, state, data, workflow.Options{
		Client:          completer,
		Tracker:         opts.Tracker,
		SnippetWindow:   a.cfg.SnippetWindow,
		Parallelism:     a.cfg.MaxConcurrent,
		AutoApplyOutput: opts.AutoApplyOutput,
	})
	state.Usage = a.client.Usage()

	rec := store.Record{AnalysisID: id, Status: store.StatusCompleted, Result: state}
	if runErr != nil {
		rec.Status = store.StatusFailed
		rec.Error = runErr.Error()
	}
	a.store.Set(rec)

	return *state, runErr
}

// RunErrorAnalysisOnly runs the legacy rule-only path (no LLM calls):
// parse, detect context, run the deterministic rule engine, and return
// its issues directly. Used by the CLI's `analyze` subcommand.
func RunErrorAnalysisOnly(path, filament string, snippetWindow int) ([]rules.RuleIssue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gcode file %s: %w", path, err)
	}

	res := gcodeparse.Parse(data)
	ctx := detect.Detect(res.Lines)
	issues, _ := rules.Detect(res.Lines, ctx, filament, snippetWindow)
	return issues, nil
}

// ExtractSegments runs the parser, detector, and segment extractor only,
// returning the layer-indexed segment data (§4.3) without any
// statistical, rule, or LLM analysis.
func ExtractSegments(path string) (segment.SegmentResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return segment.SegmentResult{}, fmt.Errorf("reading gcode file %s: %w", path, err)
	}

	res := gcodeparse.Parse(data)
	ctx := detect.Detect(res.Lines)
	return segment.Extract(res.Lines, ctx, res.Encoding)
}
