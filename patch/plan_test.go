package patch

import (
	"testing"

	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/briksprint/gcode-core/rules"
	"github.com/stretchr/testify/require"
)

func TestPlan_VendorIssueForcesReview(t *testing.T) {
	res := gcodeparse.Parse([]byte("M109 S25 H220\n"))
	issues := []rules.RuleIssue{
		{TypeCode: "vendor_extension", Line: 1, AutofixAllowed: false, Vendor: &rules.VendorExtension{Param: "H", Value: 220}},
	}

	suggestions := Plan(res.Lines, issues, "PLA")

	require.Len(t, suggestions, 1)
	require.Equal(t, ActionReview, suggestions[0].Action)
	require.False(t, suggestions[0].AutofixAllowed)
}

func TestPlan_ColdExtrusionModifiesWithFilamentTarget(t *testing.T) {
	res := gcodeparse.Parse([]byte("M104 S100\nG1 X1 Y1 E1\n"))
	issues := []rules.RuleIssue{
		{TypeCode: "cold_extrusion", Line: 1, AutofixAllowed: true},
	}

	suggestions := Plan(res.Lines, issues, "ABS")

	require.Len(t, suggestions, 1)
	require.Equal(t, ActionModify, suggestions[0].Action)
	require.NotNil(t, suggestions[0].Replacement)
	require.Equal(t, "M109 S240", *suggestions[0].Replacement)
}

func TestPlan_SkipsDuplicateM109Nearby(t *testing.T) {
	res := gcodeparse.Parse([]byte("M104 S100\nM109 S200\nG1 X1 Y1 E1\n"))
	issues := []rules.RuleIssue{
		{TypeCode: "cold_extrusion", Line: 1, AutofixAllowed: true},
	}

	suggestions := Plan(res.Lines, issues, "PLA")

	require.Equal(t, ActionReview, suggestions[0].Action)
	require.Nil(t, suggestions[0].Replacement)
}

func TestPlan_NonAutofixIssueAlwaysReview(t *testing.T) {
	res := gcodeparse.Parse([]byte("G1 X1 Y1 E20\n"))
	issues := []rules.RuleIssue{
		{TypeCode: "excessive_retraction", Line: 1, AutofixAllowed: false},
	}

	suggestions := Plan(res.Lines, issues, "PLA")

	require.Equal(t, ActionReview, suggestions[0].Action)
}
