package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/briksprint/gcode-core/llm"
	"github.com/briksprint/gcode-core/workflow"
	"github.com/stretchr/testify/require"
)

const sampleGCode = ";FLAVOR:Marlin\n;LAYER_COUNT:1\nG28\nM104 S200\nM109 S200\n;LAYER:0\nG1 X1 Y1 E1 F1200\nM104 S0\n; END OF PRINT\n"

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.gcode")
	require.NoError(t, os.WriteFile(path, []byte(sampleGCode), 0644))
	return path
}

func TestRunErrorAnalysisOnly_NoLLMInvolved(t *testing.T) {
	path := writeSample(t)
	issues, err := RunErrorAnalysisOnly(path, "PLA", 50)
	require.NoError(t, err)
	require.Empty(t, issues)
}

func TestExtractSegments_ProducesLayerData(t *testing.T) {
	path := writeSample(t)
	result, err := ExtractSegments(path)
	require.NoError(t, err)
	require.NotEmpty(t, result.Layers)
}

func TestRunAnalysis_SummaryOnlyPersistsCompletedRecord(t *testing.T) {
	path := writeSample(t)
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.GCodeStoreDir = filepath.Join(cfg.OutputDir, "analysis_store")

	a, err := New(cfg)
	require.NoError(t, err)

	state, err := a.RunAnalysis(context.Background(), path, RunOptions{
		Filament: "PLA",
		Mode:     workflow.ModeSummaryOnly,
	})
	require.NoError(t, err)
	// NumLayers holds the highest layer index (0 for this one-layer sample);
	// the summary reports the layer count.
	require.Equal(t, 1, state.Summary.Layer.LayerCount)

	rec, found := a.store.Get(state.AnalysisID)
	require.True(t, found)
	require.Equal(t, "completed", string(rec.Status))
}

type fakeCompleter struct{ response string }

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, stream llm.StreamFunc) (string, error) {
	return f.response, nil
}

func TestRunAnalysis_FullModeUsesInjectedCompleter(t *testing.T) {
	path := writeSample(t)
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.GCodeStoreDir = filepath.Join(cfg.OutputDir, "analysis_store")

	a, err := New(cfg)
	require.NoError(t, err)
	a.completer = &fakeCompleter{response: `{"score": 90, "grade": "S", "summary": "ok", "check_points": [], "critical_issues": [], "recommendations": []}`}

	state, err := a.RunAnalysis(context.Background(), path, RunOptions{
		Filament: "PLA",
		Mode:     workflow.ModeFull,
	})
	require.NoError(t, err)
	require.False(t, state.Assessment.Errored)
	require.Equal(t, 90, state.Assessment.Score)
}
