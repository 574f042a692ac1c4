package summary

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/briksprint/gcode-core/segment"
)

const (
	retractionEpsilon   = 1e-4
	defaultSummaryFeed  = 1800.0 // mm/min, per _estimate_print_time default
	feedHistogramBucket = 1000
)

// Compute runs every independent profile pass over lines and layerMap and
// assembles the resulting ComprehensiveSummary. layerMap and totalLayers
// come from segment.BuildLayerMap, computed once upstream and shared
// across consumers.
func Compute(lines []gcodeparse.GCodeLine, layerMap segment.LayerMap, totalLayers int) ComprehensiveSummary {
	return ComprehensiveSummary{
		Temperature: computeTemperatureProfile(lines),
		FeedRate:    computeFeedRateProfile(lines),
		Extrusion:   computeExtrusionProfile(lines),
		Layer:       computeLayerProfile(lines, layerMap, totalLayers),
		Support:     computeSupportProfile(lines, layerMap),
		Fan:         computeFanProfile(lines, layerMap),
		PrintTime:   estimatePrintTime(lines),
		Sections:    analyzeSections(lines),
	}
}

func computeTemperatureProfile(lines []gcodeparse.GCodeLine) TemperatureProfile {
	events := ExtractTempEvents(lines)

	var p TemperatureProfile
	p.Timeline = events

	var nozzleSum, bedSum float64
	nozzleCount, bedCount := 0, 0
	var lastNozzle, lastBed float64
	haveLastNozzle, haveLastBed := false, false

	for _, e := range events {
		switch e.Heater {
		case HeaterNozzle:
			p.NozzleEvents = append(p.NozzleEvents, e)
			if nozzleCount == 0 || e.Target < p.NozzleMin {
				p.NozzleMin = e.Target
			}
			if e.Target > p.NozzleMax {
				p.NozzleMax = e.Target
			}
			nozzleSum += e.Target
			nozzleCount++
			if haveLastNozzle && e.Target != lastNozzle {
				p.ChangeCount++
			}
			lastNozzle = e.Target
			haveLastNozzle = true
		case HeaterBed:
			p.BedEvents = append(p.BedEvents, e)
			if bedCount == 0 || e.Target < p.BedMin {
				p.BedMin = e.Target
			}
			if e.Target > p.BedMax {
				p.BedMax = e.Target
			}
			bedSum += e.Target
			bedCount++
			if haveLastBed && e.Target != lastBed {
				p.ChangeCount++
			}
			lastBed = e.Target
			haveLastBed = true
		}
	}

	if nozzleCount > 0 {
		p.NozzleAvg = nozzleSum / float64(nozzleCount)
	}
	if bedCount > 0 {
		p.BedAvg = bedSum / float64(bedCount)
	}

	return p
}

func computeFeedRateProfile(lines []gcodeparse.GCodeLine) FeedRateProfile {
	p := FeedRateProfile{Histogram: make(map[int]int)}

	var curX, curY, curE, curF float64
	var relativeXYZ, relativeE bool
	var travelSum, printSum float64
	var travelCount, printCount int

	for _, l := range lines {
		switch l.Command {
		case "G90":
			relativeXYZ = false
		case "G91":
			relativeXYZ = true
		case "M82":
			relativeE = false
		case "M83":
			relativeE = true
		case "G0", "G1":
			newX, newY, newE := curX, curY, curE
			if v, ok := l.Param('X'); ok {
				if relativeXYZ {
					newX = curX + v
				} else {
					newX = v
				}
			}
			if v, ok := l.Param('Y'); ok {
				if relativeXYZ {
					newY = curY + v
				} else {
					newY = v
				}
			}
			if v, ok := l.Param('E'); ok {
				if relativeE {
					newE = curE + v
				} else {
					newE = v
				}
			}
			if v, ok := l.Param('F'); ok {
				curF = v
				bucket := int(v) / feedHistogramBucket * feedHistogramBucket
				p.Histogram[bucket]++
				if v > p.MaxFeed {
					p.MaxFeed = v
				}
			}

			moved := math.Abs(newX-curX) > extrusionMoveEpsilon || math.Abs(newY-curY) > extrusionMoveEpsilon
			if moved && curF > 0 {
				dE := newE - curE
				if relativeE {
					dE, _ = l.Param('E')
				}
				if l.Command == "G1" && dE > retractionEpsilon {
					printSum += curF
					printCount++
				} else {
					travelSum += curF
					travelCount++
				}
			}

			curX, curY, curE = newX, newY, newE
		}
	}

	if travelCount > 0 {
		p.TravelAvg = travelSum / float64(travelCount)
	}
	if printCount > 0 {
		p.PrintAvg = printSum / float64(printCount)
	}

	return p
}

const extrusionMoveEpsilon = 1e-4

func computeExtrusionProfile(lines []gcodeparse.GCodeLine) ExtrusionProfile {
	var p ExtrusionProfile
	var curE float64
	var relativeE bool

	for _, l := range lines {
		switch l.Command {
		case "M82":
			relativeE = false
		case "M83":
			relativeE = true
		case "G92":
			if v, ok := l.Param('E'); ok {
				curE = v
			}
		case "G0", "G1":
			v, ok := l.Param('E')
			if !ok {
				continue
			}
			if relativeE {
				if v > retractionEpsilon {
					p.TotalExtrusion += v
				} else if v < -retractionEpsilon {
					p.RetractionCount++
					p.RetractionLengths = append(p.RetractionLengths, -v)
				}
				curE += v
				continue
			}
			newE := v
			delta := newE - curE
			if delta > retractionEpsilon {
				p.TotalExtrusion += delta
			} else if delta < -retractionEpsilon {
				p.RetractionCount++
				p.RetractionLengths = append(p.RetractionLengths, -delta)
			}
			curE = newE
		}
	}

	return p
}

func computeLayerProfile(lines []gcodeparse.GCodeLine, layerMap segment.LayerMap, totalLayers int) LayerProfile {
	firstZ := make(map[int]float64)
	var curZ float64
	var relativeXYZ bool

	for _, l := range lines {
		switch l.Command {
		case "G90":
			relativeXYZ = false
		case "G91":
			relativeXYZ = true
		case "G92":
			if v, ok := l.Param('Z'); ok {
				curZ = v
			}
		case "G0", "G1":
			if v, ok := l.Param('Z'); ok {
				newZ := v
				if relativeXYZ {
					newZ = curZ + v
				}
				curZ = newZ
				layer := layerMap[l.Index]
				if _, ok := firstZ[layer]; !ok {
					firstZ[layer] = newZ
				}
			}
		}
	}

	var samples []float64
	for i := 1; i <= totalLayers; i++ {
		prev, okPrev := firstZ[i-1]
		cur, okCur := firstZ[i]
		if !okPrev || !okCur {
			continue
		}
		d := cur - prev
		if d >= 0.04 && d <= 0.5 {
			samples = append(samples, d)
		}
	}

	lp := LayerProfile{LayerCount: totalLayers + 1}
	if len(samples) > 0 {
		lp.LayerHeight = median(samples)
	}

	firstLayerZ, ok := firstZ[0]
	if ok && firstLayerZ > 1.0 {
		if z1, ok1 := firstZ[1]; ok1 {
			firstLayerZ = z1
		}
	}
	lp.FirstLayerHeight = firstLayerZ

	return lp
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func computeSupportProfile(lines []gcodeparse.GCodeLine, layerMap segment.LayerMap) SupportProfile {
	var p SupportProfile
	var curE float64
	var relativeE bool
	inSupport := false
	seen := make(map[int]bool)

	for _, l := range lines {
		if l.HasComment() {
			upper := strings.ToUpper(l.Comment)
			if strings.HasPrefix(upper, "TYPE:") || strings.HasPrefix(upper, "FEATURE:") {
				inSupport = strings.Contains(upper, "SUPPORT")
			}
		}

		switch l.Command {
		case "M82":
			relativeE = false
		case "M83":
			relativeE = true
		case "G92":
			if v, ok := l.Param('E'); ok {
				curE = v
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
			if delta <= retractionEpsilon {
				continue
			}
			if inSupport {
				p.SupportExtrusion += delta
				layer := layerMap[l.Index]
				if !seen[layer] {
					seen[layer] = true
					p.SupportLayers = append(p.SupportLayers, layer)
				}
			} else {
				p.ModelExtrusion += delta
			}
		}
	}

	return p
}

func computeFanProfile(lines []gcodeparse.GCodeLine, layerMap segment.LayerMap) FanProfile {
	p := FanProfile{FirstOnLayer: -1}

	for _, l := range lines {
		switch l.Command {
		case "M106":
			speed := 255.0
			if v, ok := l.Param('S'); ok {
				speed = v
			}
			layer := layerMap[l.Index]
			p.Events = append(p.Events, FanEvent{Line: l.Index, Layer: layer, Speed: speed})
			if speed > p.MaxSpeed {
				p.MaxSpeed = speed
			}
			if p.FirstOnLayer == -1 && speed > 0 {
				p.FirstOnLayer = layer
			}
		case "M107":
			layer := layerMap[l.Index]
			p.Events = append(p.Events, FanEvent{Line: l.Index, Layer: layer, Speed: 0})
		}
	}

	return p
}

// estimatePrintTime is the authoritative time estimator: it replays
// G0/G1 using the current F (defaulting to 1800 mm/min if none has been
// set yet), accumulating travel and print seconds separately. Any
// slicer-declared estimate found in header comments is preserved for
// parity but never feeds this arithmetic.
func estimatePrintTime(lines []gcodeparse.GCodeLine) PrintTimeEstimate {
	var est PrintTimeEstimate
	var curX, curY, curZ, curE, curF float64
	var relativeXYZ, relativeE bool

	for _, l := range lines {
		if l.HasComment() && !est.HasSlicerDeclared {
			if v, ok := parseSlicerDeclaredSeconds(l.Comment); ok {
				est.SlicerDeclaredSeconds = v
				est.HasSlicerDeclared = true
			}
		}

		switch l.Command {
		case "G90":
			relativeXYZ = false
		case "G91":
			relativeXYZ = true
		case "M82":
			relativeE = false
		case "M83":
			relativeE = true
		case "G0", "G1":
			newX, newY, newZ, newE := curX, curY, curZ, curE
			if v, ok := l.Param('X'); ok {
				if relativeXYZ {
					newX = curX + v
				} else {
					newX = v
				}
			}
			if v, ok := l.Param('Y'); ok {
				if relativeXYZ {
					newY = curY + v
				} else {
					newY = v
				}
			}
			if v, ok := l.Param('Z'); ok {
				if relativeXYZ {
					newZ = curZ + v
				} else {
					newZ = v
				}
			}
			if v, ok := l.Param('E'); ok {
				if relativeE {
					newE = curE + v
				} else {
					newE = v
				}
			}
			if v, ok := l.Param('F'); ok {
				curF = v
			}

			dist := math.Sqrt((newX-curX)*(newX-curX) + (newY-curY)*(newY-curY) + (newZ-curZ)*(newZ-curZ))
			if dist > extrusionMoveEpsilon {
				feed := curF
				if feed <= 0 {
					feed = defaultSummaryFeed
				}
				seconds := dist / (feed / 60.0)
				est.TotalSeconds += seconds

				dE := newE - curE
				if relativeE {
					dE, _ = l.Param('E')
				}
				if l.Command == "G1" && dE > retractionEpsilon {
					est.PrintSeconds += seconds
				} else {
					est.TravelSeconds += seconds
				}
			}

			curX, curY, curZ, curE = newX, newY, newZ, newE
		}
	}

	return est
}

// analyzeSections determines START/BODY/END boundaries: start-end is the
// first ";LAYER:0" or the first non-trivial extruding move after line 50;
// end-start is the last "M104 S0"/"M140 S0" or the last comment
// containing "END".
func analyzeSections(lines []gcodeparse.GCodeLine) SectionBoundaries {
	var b SectionBoundaries
	var curE float64
	var relativeE bool

	for _, l := range lines {
		if b.StartEndLine == 0 {
			if l.HasComment() && strings.HasPrefix(strings.ToUpper(l.Comment), "LAYER:0") {
				b.StartEndLine = l.Index
			} else if l.Index > 50 && l.Command == "G1" {
				v, ok := l.Param('E')
				if ok {
					delta := v
					if !relativeE {
						delta = v - curE
					}
					if delta > retractionEpsilon {
						b.StartEndLine = l.Index
					}
				}
			}
		}

		switch l.Command {
		case "M82":
			relativeE = false
		case "M83":
			relativeE = true
		case "G1", "G0":
			if v, ok := l.Param('E'); ok {
				if !relativeE {
					curE = v
				}
			}
		}

		isEndOff := (l.Command == "M104" || l.Command == "M140")
		if isEndOff {
			if v, ok := l.Param('S'); ok && v == 0 {
				b.BodyEndLine = l.Index
			}
		}
		if l.HasComment() && strings.Contains(strings.ToUpper(l.Comment), "END") {
			b.BodyEndLine = l.Index
		}
	}

	if b.BodyEndLine > 0 && len(lines) > 0 {
		b.EndLength = lines[len(lines)-1].Index - b.BodyEndLine
	}

	return b
}

var (
	curaTimeSeconds = regexp.MustCompile(`^TIME:(\d+(?:\.\d+)?)`)
	prusaTimeHMS    = regexp.MustCompile(`(?i)estimated printing time.*?=\s*(?:(\d+)h\s*)?(?:(\d+)m\s*)?(?:(\d+)s)?`)
)

// parseSlicerDeclaredSeconds recognizes Cura's "TIME:<seconds>" and
// PrusaSlicer/OrcaSlicer's "estimated printing time ... = _h _m _s" forms.
func parseSlicerDeclaredSeconds(comment string) (float64, bool) {
	if m := curaTimeSeconds.FindStringSubmatch(comment); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	if m := prusaTimeHMS.FindStringSubmatch(comment); m != nil && (m[1] != "" || m[2] != "" || m[3] != "") {
		var total float64
		if m[1] != "" {
			if h, err := strconv.ParseFloat(m[1], 64); err == nil {
				total += h * 3600
			}
		}
		if m[2] != "" {
			if mi, err := strconv.ParseFloat(m[2], 64); err == nil {
				total += mi * 60
			}
		}
		if m[3] != "" {
			if s, err := strconv.ParseFloat(m[3], 64); err == nil {
				total += s
			}
		}
		return total, true
	}
	return 0, false
}
