package rules

import (
	"testing"

	"github.com/briksprint/gcode-core/detect"
	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/stretchr/testify/require"
)

func hasIssue(issues []RuleIssue, code string) bool {
	for _, i := range issues {
		if i.TypeCode == code {
			return true
		}
	}
	return false
}

func TestDetect_ColdExtrusion(t *testing.T) {
	src := "M104 S100\nG1 X10 Y0 E1.0 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	issues, _ := Detect(res.Lines, ctx, "PLA", 50)
	require.True(t, hasIssue(issues, "cold_extrusion"))
}

func TestDetect_BambuHParamNotColdExtrusion(t *testing.T) {
	src := "M109 S25 H220\nG1 X10 Y0 E1.0 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	issues, _ := Detect(res.Lines, ctx, "PLA", 50)
	require.False(t, hasIssue(issues, "cold_extrusion"))
}

func TestDetect_EarlyTempOff(t *testing.T) {
	src := "M104 S200\nM109 S200\nG1 X1 Y1 E1 F1200\nM104 S0\nG1 X2 Y1 E2 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	issues, snippets := Detect(res.Lines, ctx, "PLA", 50)
	require.True(t, hasIssue(issues, "early_temp_off"))
	for _, i := range issues {
		if i.TypeCode == "early_temp_off" {
			require.Contains(t, snippets, i.Line)
		}
	}
}

func TestDetect_ExcessiveSpeed(t *testing.T) {
	src := "G1 X100 Y0 E1 F20000\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	issues, _ := Detect(res.Lines, ctx, "PLA", 50)
	require.True(t, hasIssue(issues, "excessive_speed"))
}

func TestDetect_MissingEndWhenNoEndMarker(t *testing.T) {
	src := "G28\nM104 S200\nM109 S200\nG1 X1 Y1 E1 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	issues, _ := Detect(res.Lines, ctx, "PLA", 50)
	require.True(t, hasIssue(issues, "missing_end"))
}
