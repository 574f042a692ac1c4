package patch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.gcode")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestApplyPatches_EmptySetIsIdentity(t *testing.T) {
	src := "G28\nM104 S200\nG1 X1 Y1 E1\n"
	path := writeTemp(t, src)
	res := gcodeparse.Parse([]byte(src))

	outPath, err := ApplyPatches(path, res.Lines, nil)
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, src, string(out))
}

func TestApplyPatches_ModifyReplacesLine(t *testing.T) {
	src := "M104 S100\nG1 X1 Y1 E1\n"
	path := writeTemp(t, src)
	res := gcodeparse.Parse([]byte(src))
	replacement := "M109 S200"

	outPath, err := ApplyPatches(path, res.Lines, []Suggestion{
		{Line: 1, Action: ActionModify, Replacement: &replacement},
	})
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "M109 S200\nG1 X1 Y1 E1\n", string(out))
}

func TestApplyPatches_DeleteRemovesLine(t *testing.T) {
	src := "G28\nM104 S100\nG1 X1 Y1 E1\n"
	path := writeTemp(t, src)
	res := gcodeparse.Parse([]byte(src))

	outPath, err := ApplyPatches(path, res.Lines, []Suggestion{
		{Line: 2, Action: ActionDelete},
	})
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "G28\nG1 X1 Y1 E1\n", string(out))
}

func TestApplyPatches_ReviewSuggestionNeverApplied(t *testing.T) {
	src := "M104 S100\n"
	path := writeTemp(t, src)
	res := gcodeparse.Parse([]byte(src))
	replacement := "M109 S200"

	outPath, err := ApplyPatches(path, res.Lines, []Suggestion{
		{Line: 1, Action: ActionReview, Replacement: &replacement},
	})
	require.NoError(t, err)

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, src, string(out))
}

func TestApplyPatches_WritesPatchedSibling(t *testing.T) {
	path := writeTemp(t, "G28\n")
	outPath, err := ApplyPatches(path, nil, nil)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(filepath.Dir(path), "test_patched.gcode"), outPath)
}
