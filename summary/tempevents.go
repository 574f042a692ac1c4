package summary

import (
	"regexp"
	"strconv"

	"github.com/briksprint/gcode-core/gcodeparse"
)

var (
	bambuExtBedTemp      = regexp.MustCompile(`(?i)\bbedTemp\s*=\s*([0-9.]+)`)
	bambuExtExtruderTemp = regexp.MustCompile(`(?i)\bextruderTemp\s*=\s*([0-9.]+)`)
)

// ExtractTempEvents runs the dedicated temperature-event pass shared by
// the summary and rule engine: every M104/M109/M140/M190 with a positive
// S (or, for Bambu/Orca's G9111, bedTemp/extruderTemp) becomes one event.
// The Bambu H param on a standard M104/M109 overrides S as the true
// target, since S is a dummy value in that vendor form.
func ExtractTempEvents(lines []gcodeparse.GCodeLine) []TempEvent {
	events := make([]TempEvent, 0)

	for _, l := range lines {
		switch l.Command {
		case "M104", "M109":
			if h, ok := l.Param('H'); ok {
				events = append(events, TempEvent{Line: l.Index, Command: l.Command, Target: h, Heater: HeaterNozzle, VendorParam: true})
				continue
			}
			if s, ok := l.Param('S'); ok && s > 0 {
				events = append(events, TempEvent{Line: l.Index, Command: l.Command, Target: s, Heater: HeaterNozzle})
			}
		case "M140", "M190":
			if s, ok := l.Param('S'); ok && s > 0 {
				events = append(events, TempEvent{Line: l.Index, Command: l.Command, Target: s, Heater: HeaterBed})
			}
		case "G9111":
			if m := bambuExtBedTemp.FindStringSubmatch(l.Raw); len(m) > 1 {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					events = append(events, TempEvent{Line: l.Index, Command: l.Command, Target: v, Heater: HeaterBed, VendorParam: true})
				}
			}
			if m := bambuExtExtruderTemp.FindStringSubmatch(l.Raw); len(m) > 1 {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					events = append(events, TempEvent{Line: l.Index, Command: l.Command, Target: v, Heater: HeaterNozzle, VendorParam: true})
				}
			}
		}
	}

	return events
}
