// Package patch turns RuleIssues into concrete PatchSuggestions and can
// apply the accepted ones back onto the source file (§4.8).
package patch

import "github.com/briksprint/gcode-core/rules"

// Action is the kind of edit a PatchSuggestion proposes.
type Action string

const (
	ActionModify    Action = "modify"
	ActionDelete    Action = "delete"
	ActionAddBefore Action = "add_before"
	ActionAddAfter  Action = "add_after"
	ActionReview    Action = "review"
)

// Suggestion is one proposed edit (§3 PatchSuggestion).
type Suggestion struct {
	Line           int
	OriginalRaw    string
	Action         Action
	Replacement    *string // nullable when Action == ActionReview with no concrete proposal
	Priority       int
	IssueType      string
	Reason         string
	AutofixAllowed bool
	Vendor         *rules.VendorExtension
}

// FilamentTarget is the recommended nozzle/bed temperature pair for a
// filament type, used to fill in modify-action replacement text.
type FilamentTarget struct {
	NozzleC float64
	BedC    float64
}

// targets are the §4.8 filament-specific defaults. Distinct from
// rules.filamentMinNozzleTemp, which is a minimum-safe threshold used for
// cold-extrusion detection, not a recommended target.
var targets = map[string]FilamentTarget{
	"PLA":   {NozzleC: 200, BedC: 60},
	"ABS":   {NozzleC: 240, BedC: 100},
	"PETG":  {NozzleC: 230, BedC: 70},
	"TPU":   {NozzleC: 220, BedC: 50},
	"NYLON": {NozzleC: 250, BedC: 80},
	"ASA":   {NozzleC: 240, BedC: 100},
	"PC":    {NozzleC: 270, BedC: 110},
}

const defaultFilament = "PLA"

func targetFor(filament string) FilamentTarget {
	if t, ok := targets[filament]; ok {
		return t
	}
	return targets[defaultFilament]
}
