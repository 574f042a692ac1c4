package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/briksprint/gcode-core/detect"
	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/briksprint/gcode-core/summary"
)

const (
	rapidTempChangeThreshold = 50.0
	rapidTempChangeWindow    = 50 // lines
	excessiveSpeedThreshold  = 18000.0
	excessiveRetractionMM    = 10.0
	bedOffEarlyLineMargin    = 500
	setupScanWindow          = 200
	retractEpsilon           = 1e-4
)

// filamentMinNozzleTemp is the minimum nozzle temperature below which
// extrusion is considered cold, per filament type. Filaments not listed
// fall back to a conservative default.
var filamentMinNozzleTemp = map[string]float64{
	"PLA":   170,
	"ABS":   200,
	"PETG":  200,
	"TPU":   190,
	"NYLON": 220,
	"ASA":   200,
	"PC":    250,
}

const defaultMinNozzleTemp = 150.0

func minNozzleTempFor(filament string) float64 {
	if v, ok := filamentMinNozzleTemp[filament]; ok {
		return v
	}
	return defaultMinNozzleTemp
}

// Detect scans lines for every registered anomaly and returns the issue
// list plus a per-line snippet map suitable for the downstream LLM
// validation pass (§4.6 events_needing_llm track).
func Detect(lines []gcodeparse.GCodeLine, ctx detect.PrinterContext, filament string, snippetWindow int) ([]RuleIssue, map[int]string) {
	var issues []RuleIssue
	snippets := make(map[int]string)

	minTemp := minNozzleTempFor(filament)

	issues = append(issues, detectColdExtrusion(lines, minTemp)...)
	issues = append(issues, detectTempOffEarly(lines)...)
	issues = append(issues, detectMissingWarmup(lines)...)
	issues = append(issues, detectRapidTempChange(lines)...)
	issues = append(issues, detectExcessiveSpeed(lines)...)
	issues = append(issues, detectExcessiveRetraction(lines)...)
	issues = append(issues, detectStructural(lines)...)
	issues = append(issues, detectVendorExtension(lines)...)

	for _, iss := range issues {
		if isAmbiguous(iss) {
			snippets[iss.Line] = Snippet(lines, iss.Line, snippetWindow)
		}
	}

	return issues, snippets
}

// isAmbiguous marks which issue types need LLM corroboration rather than
// being reported as-is (§4.6 classification happens downstream, but the
// snippet only needs to be computed for the types that will request it).
func isAmbiguous(iss RuleIssue) bool {
	switch iss.TypeCode {
	case "cold_extrusion", "early_temp_off", "early_bed_off", "bed_temp_off_early":
		return true
	default:
		return false
	}
}

func detectColdExtrusion(lines []gcodeparse.GCodeLine, minTemp float64) []RuleIssue {
	var issues []RuleIssue
	var curNozzle float64
	var curE float64
	var relativeE bool
	var vendorActive *VendorExtension

	for _, l := range lines {
		switch l.Command {
		case "M82":
			relativeE = false
		case "M83":
			relativeE = true
		case "M104", "M109":
			if h, ok := l.Param('H'); ok {
				curNozzle = h
				vendorActive = &VendorExtension{Param: "H", Value: h}
			} else if s, ok := l.Param('S'); ok {
				curNozzle = s
				vendorActive = nil
			}
		case "G0", "G1":
			v, ok := l.Param('E')
			if !ok {
				continue
			}
			var delta float64
			if relativeE {
				delta = v
				curE += v
			} else {
				delta = v - curE
				curE = v
			}
			if delta <= retractEpsilon {
				continue
			}
			if curNozzle > 0 && curNozzle < minTemp {
				issues = append(issues, RuleIssue{
					TypeCode:         "cold_extrusion",
					Line:             l.Index,
					Severity:         SeverityCritical,
					ShortDescription: "Cold extrusion",
					LongDescription:  fmt.Sprintf("Extrusion commanded at nozzle temperature %.0f°C, below the %.0f°C minimum.", curNozzle, minTemp),
					AutofixAllowed:   vendorActive == nil,
					Vendor:           vendorActive,
				})
			}
		}
	}

	return issues
}

func detectTempOffEarly(lines []gcodeparse.GCodeLine) []RuleIssue {
	var issues []RuleIssue
	total := len(lines)

	for i, l := range lines {
		if l.Command != "M104" && l.Command != "M140" {
			continue
		}
		s, ok := l.Param('S')
		if !ok || s != 0 {
			continue
		}

		hasLaterExtrusion := false
		for _, later := range lines[i+1:] {
			if later.Command == "G0" || later.Command == "G1" {
				if v, ok := later.Param('E'); ok && v > retractEpsilon {
					hasLaterExtrusion = true
					break
				}
			}
		}
		if !hasLaterExtrusion {
			continue
		}

		remaining := total - l.Index
		if l.Command == "M104" {
			issues = append(issues, RuleIssue{
				TypeCode:         "early_temp_off",
				Line:             l.Index,
				Severity:         SeverityHigh,
				ShortDescription: "Nozzle turned off early",
				LongDescription:  "M104 S0 appears before the end of the print while further extrusion follows.",
				AutofixAllowed:   true,
			})
			continue
		}

		if remaining > bedOffEarlyLineMargin {
			issues = append(issues, RuleIssue{
				TypeCode:         "bed_temp_off_early",
				Line:             l.Index,
				Severity:         SeverityMedium,
				ShortDescription: "Bed cooled prematurely",
				LongDescription:  "M140 S0 appears far before the print body ends.",
				AutofixAllowed:   true,
			})
		} else {
			issues = append(issues, RuleIssue{
				TypeCode:         "early_bed_off",
				Line:             l.Index,
				Severity:         SeverityMedium,
				ShortDescription: "Bed turned off early",
				LongDescription:  "M140 S0 appears before the end of the print while further extrusion follows.",
				AutofixAllowed:   true,
			})
		}
	}

	return issues
}

func detectMissingWarmup(lines []gcodeparse.GCodeLine) []RuleIssue {
	pendingLine := 0
	var curE float64
	var relativeE bool

	for _, l := range lines {
		switch l.Command {
		case "M82":
			relativeE = false
		case "M83":
			relativeE = true
		case "M104":
			if s, ok := l.Param('S'); ok && s > 0 {
				pendingLine = l.Index
			}
		case "M109":
			pendingLine = 0
		case "G0", "G1":
			v, ok := l.Param('E')
			if !ok {
				continue
			}
			var delta float64
			if relativeE {
				delta = v
				curE += v
			} else {
				delta = v - curE
				curE = v
			}
			if delta > retractEpsilon && pendingLine != 0 {
				return []RuleIssue{{
					TypeCode:         "missing_warmup",
					Line:             pendingLine,
					Severity:         SeverityHigh,
					ShortDescription: "Missing warmup wait",
					LongDescription:  "M104 set a nozzle target but no M109 confirmed it before the first extrusion.",
					AutofixAllowed:   true,
				}}
			}
		}
	}
	return nil
}

func detectRapidTempChange(lines []gcodeparse.GCodeLine) []RuleIssue {
	events := summary.ExtractTempEvents(lines)
	var issues []RuleIssue

	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if prev.Heater != cur.Heater {
			continue
		}
		if cur.Line-prev.Line > rapidTempChangeWindow {
			continue
		}
		if math.Abs(cur.Target-prev.Target) >= rapidTempChangeThreshold {
			issues = append(issues, RuleIssue{
				TypeCode:         "rapid_temp_change",
				Line:             cur.Line,
				Severity:         SeverityMedium,
				ShortDescription: "Rapid temperature change",
				LongDescription:  fmt.Sprintf("Target changed from %.0f°C to %.0f°C within %d lines.", prev.Target, cur.Target, cur.Line-prev.Line),
				AutofixAllowed:   false,
			})
		}
	}

	return issues
}

func detectExcessiveSpeed(lines []gcodeparse.GCodeLine) []RuleIssue {
	var issues []RuleIssue
	for _, l := range lines {
		if l.Command != "G1" {
			continue
		}
		f, ok := l.Param('F')
		if !ok || f <= excessiveSpeedThreshold {
			continue
		}
		issues = append(issues, RuleIssue{
			TypeCode:         "excessive_speed",
			Line:             l.Index,
			Severity:         SeverityMedium,
			ShortDescription: "Excessive print speed",
			LongDescription:  fmt.Sprintf("F%.0f exceeds 300 mm/s.", f),
			AutofixAllowed:   true,
		})
	}
	return issues
}

func detectExcessiveRetraction(lines []gcodeparse.GCodeLine) []RuleIssue {
	var issues []RuleIssue
	var curE float64
	var relativeE bool

	for _, l := range lines {
		switch l.Command {
		case "M82":
			relativeE = false
		case "M83":
			relativeE = true
		case "G0", "G1":
			v, ok := l.Param('E')
			if !ok {
				continue
			}
			var delta float64
			if relativeE {
				delta = v
				curE += v
			} else {
				delta = v - curE
				curE = v
			}
			if delta < -retractEpsilon && -delta > excessiveRetractionMM {
				issues = append(issues, RuleIssue{
					TypeCode:         "excessive_retraction",
					Line:             l.Index,
					Severity:         SeverityLow,
					ShortDescription: "Excessive retraction",
					LongDescription:  fmt.Sprintf("Retraction of %.2fmm exceeds the expected threshold.", -delta),
					AutofixAllowed:   true,
				})
			}
		}
	}

	return issues
}

func detectStructural(lines []gcodeparse.GCodeLine) []RuleIssue {
	var issues []RuleIssue
	window := setupScanWindow
	if window > len(lines) {
		window = len(lines)
	}

	sawHome, sawHeat, sawEnd := false, false, false
	for _, l := range lines[:window] {
		if l.Command == "G28" {
			sawHome = true
		}
		if l.Command == "M104" || l.Command == "M140" {
			if s, ok := l.Param('S'); ok && s > 0 {
				sawHeat = true
			}
		}
	}
	for _, l := range lines {
		if l.HasComment() && containsEndMarker(l.Comment) {
			sawEnd = true
		}
		if l.Command == "M104" || l.Command == "M140" {
			if s, ok := l.Param('S'); ok && s == 0 {
				sawEnd = true
			}
		}
	}

	if !sawHome && !sawHeat {
		issues = append(issues, RuleIssue{
			TypeCode:         "missing_setup",
			Line:             1,
			Severity:         SeverityMedium,
			ShortDescription: "Missing setup sequence",
			LongDescription:  "No homing or heater command found in the leading lines.",
			AutofixAllowed:   false,
		})
	}
	if !sawEnd {
		lastLine := 1
		if len(lines) > 0 {
			lastLine = lines[len(lines)-1].Index
		}
		issues = append(issues, RuleIssue{
			TypeCode:         "missing_end",
			Line:             lastLine,
			Severity:         SeverityLow,
			ShortDescription: "Missing end sequence",
			LongDescription:  "No recognizable end-of-print sequence was found.",
			AutofixAllowed:   false,
		})
	}
	if !sawHome && len(lines) < 20 {
		issues = append(issues, RuleIssue{
			TypeCode:         "structure_abnormal",
			Line:             1,
			Severity:         SeverityMedium,
			ShortDescription: "Abnormal structure",
			LongDescription:  "The file is too short to contain a plausible print sequence.",
			AutofixAllowed:   false,
		})
	}

	return issues
}

func containsEndMarker(comment string) bool {
	return strings.Contains(strings.ToUpper(comment), "END")
}

const maxVendorExtensionIssues = 5

func detectVendorExtension(lines []gcodeparse.GCodeLine) []RuleIssue {
	var issues []RuleIssue
	for _, l := range lines {
		if len(issues) >= maxVendorExtensionIssues {
			break
		}
		if l.Command == "M104" || l.Command == "M109" {
			if h, ok := l.Param('H'); ok {
				issues = append(issues, RuleIssue{
					TypeCode:         "vendor_extension",
					Line:             l.Index,
					Severity:         SeverityInfo,
					ShortDescription: "Vendor extension in use",
					LongDescription:  "Bambu/Orca H parameter observed on a temperature command.",
					AutofixAllowed:   false,
					Vendor:           &VendorExtension{Param: "H", Value: h},
				})
			}
		}
		if l.Command == "G9111" {
			issues = append(issues, RuleIssue{
				TypeCode:         "vendor_extension",
				Line:             l.Index,
				Severity:         SeverityInfo,
				ShortDescription: "Vendor extension in use",
				LongDescription:  "Bambu/Orca G9111 dual-temperature command observed.",
				AutofixAllowed:   false,
			})
		}
	}
	return issues
}
