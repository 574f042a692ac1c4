package workflow

import (
	"context"
	"testing"

	"github.com/briksprint/gcode-core/llm"
	"github.com/briksprint/gcode-core/progress"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, stream llm.StreamFunc) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if stream != nil {
		stream(f.response)
	}
	return f.response, nil
}

const cleanCura = ";FLAVOR:Marlin\n;LAYER_COUNT:2\nG28\nM104 S200\nM109 S200\n;LAYER:0\nG1 X1 Y1 E1 F1200\n;LAYER:1\nG1 Z0.2\nG1 X2 Y2 E2 F1200\nM104 S0\n; END OF PRINT\n"

func TestRun_SummaryOnlyStopsBeforeAnalyzeEvents(t *testing.T) {
	state := &AnalysisState{Mode: ModeSummaryOnly, Filament: "PLA"}
	err := Run(context.Background(), state, []byte(cleanCura), Options{})

	require.NoError(t, err)
	require.NotZero(t, state.NumLayers)
	for _, ev := range state.Timeline {
		require.NotEqual(t, "analyze_events", ev.Node)
	}
}

func TestRun_FullModeRunsEveryNodeThroughFinalOutput(t *testing.T) {
	fake := &fakeCompleter{response: `{"score": 92, "grade": "S", "summary": "clean", "check_points": [], "critical_issues": [], "recommendations": []}`}
	state := &AnalysisState{Mode: ModeFull, Filament: "PLA"}

	err := Run(context.Background(), state, []byte(cleanCura), Options{Client: fake})

	require.NoError(t, err)
	require.False(t, state.Assessment.Errored)
	require.NotNil(t, state.Patches)

	var sawFinalOutput bool
	for _, ev := range state.Timeline {
		if ev.Node == "final_output" && ev.Status == "completed" {
			sawFinalOutput = true
		}
	}
	require.True(t, sawFinalOutput)
}

func TestRun_SkipsApplyPatchWhenNotApproved(t *testing.T) {
	fake := &fakeCompleter{response: `{"score": 92, "grade": "S", "summary": "clean", "check_points": [], "critical_issues": [], "recommendations": []}`}
	state := &AnalysisState{Mode: ModeFull, Filament: "PLA", UserApproved: false}

	err := Run(context.Background(), state, []byte(cleanCura), Options{Client: fake})
	require.NoError(t, err)

	for _, ev := range state.Timeline {
		require.NotEqual(t, "apply_patch", ev.Node)
	}
}

func TestRun_EncodingErrorOnUnrecognizedLatin1File(t *testing.T) {
	corrupt := []byte{0xFF, 0xFE, '\n'}
	state := &AnalysisState{Mode: ModeSummaryOnly}

	err := Run(context.Background(), state, corrupt, Options{})

	require.Error(t, err)
	var wfErr *Error
	require.ErrorAs(t, err, &wfErr)
	require.Equal(t, "parse", wfErr.Node)
}

func TestRun_ReportsProgressAndStreamsLLMNodes(t *testing.T) {
	fake := &fakeCompleter{response: `{"score": 92, "grade": "S", "summary": "clean", "check_points": [], "critical_issues": [], "recommendations": []}`}
	state := &AnalysisState{Mode: ModeFull, Filament: "PLA"}

	var updates []progress.Update
	tracker := progress.New(func(u progress.Update) { updates = append(updates, u) })

	err := Run(context.Background(), state, []byte(cleanCura), Options{Client: fake, Tracker: tracker})
	require.NoError(t, err)
	require.NotEmpty(t, updates)

	var sawParseStarted, sawFinalOutputCompleted, sawStreamedChunk bool
	for _, u := range updates {
		if u.Step == "parse" && u.Message == "started" {
			sawParseStarted = true
		}
		if u.Step == "final_output" && u.Message == "completed" {
			sawFinalOutputCompleted = true
		}
		if u.Streaming && (u.Step == "llm_analyze" || u.Step == "expert_assessment") {
			sawStreamedChunk = true
		}
	}
	require.True(t, sawParseStarted, "expected a parse/started progress update")
	require.True(t, sawFinalOutputCompleted, "expected a final_output/completed progress update")
	require.True(t, sawStreamedChunk, "expected a streamed chunk from an LLM node")
}

func TestRun_CancelledContextStopsBeforeNextNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := &AnalysisState{Mode: ModeSummaryOnly}
	err := Run(ctx, state, []byte(cleanCura), Options{})

	require.Error(t, err)
}
