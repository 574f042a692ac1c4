package segment

import (
	"math"
	"strconv"
	"strings"

	"github.com/briksprint/gcode-core/detect"
	"github.com/briksprint/gcode-core/gcodeparse"
)

const extrusionEpsilon = 1e-4

// defaultFeedRate is used to estimate move duration before the file's
// first F parameter is seen.
const defaultFeedRate = 1500.0 // mm/min

type motionState struct {
	x, y, z, e, f float64
	relativeXYZ   bool
	relativeE     bool
	totalFilament float64
	inWipe        bool
	inSupport     bool
}

// Extract replays the full motion state machine over lines, producing
// per-layer segment bins and file-level metadata. ctx supplies the
// already-detected slicer/firmware/equipment context.
func Extract(lines []gcodeparse.GCodeLine, ctx detect.PrinterContext, enc gcodeparse.Encoding) (SegmentResult, error) {
	if enc == gcodeparse.EncodingLatin1 && ctx.Slicer == detect.SlicerUnknown {
		return SegmentResult{}, &EncodingError{Encoding: string(enc)}
	}

	layerMap, maxLayer := BuildLayerMap(lines)

	layers := make([]*LayerData, maxLayer+1)
	for i := range layers {
		layers[i] = &LayerData{Layer: i}
	}

	st := motionState{}
	var bbox BoundingBox
	bboxInit := false
	var seconds float64
	layerFirstZ := make(map[int]float64)

	touch := func(p Point) {
		if !bboxInit {
			bbox = BoundingBox{MinX: p.X, MaxX: p.X, MinY: p.Y, MaxY: p.Y, MinZ: p.Z, MaxZ: p.Z}
			bboxInit = true
			return
		}
		if p.X < bbox.MinX {
			bbox.MinX = p.X
		}
		if p.X > bbox.MaxX {
			bbox.MaxX = p.X
		}
		if p.Y < bbox.MinY {
			bbox.MinY = p.Y
		}
		if p.Y > bbox.MaxY {
			bbox.MaxY = p.Y
		}
		if p.Z < bbox.MinZ {
			bbox.MinZ = p.Z
		}
		if p.Z > bbox.MaxZ {
			bbox.MaxZ = p.Z
		}
	}

	for _, l := range lines {
		layer := layerMap[l.Index]
		ld := layers[layer]

		if l.HasComment() {
			applyRegionMarkers(&st, l.Comment)
		}

		switch l.Command {
		case "G90":
			st.relativeXYZ = false
		case "G91":
			st.relativeXYZ = true
		case "M82":
			st.relativeE = false
		case "M83":
			st.relativeE = true
		case "G28":
			resetHomedAxes(&st, l)
		case "G92":
			applyPositionReset(&st, l)
		case "M104", "M109":
			if v, ok := l.Param('S'); ok {
				ld.NozzleTemp = v
			}
		case "M140", "M190":
			if v, ok := l.Param('S'); ok {
				ld.BedTemp = v
			}
		case "G0", "G1":
			from := Point{X: st.x, Y: st.y, Z: st.z}
			newX, newY, newZ, newE, moved := applyMove(&st, l)
			to := Point{X: newX, Y: newY, Z: newZ}

			if moved {
				touch(from)
				touch(to)

				dE := newE - st.e
				if st.relativeE {
					dE, _ = l.Param('E')
				}
				bin := classify(&st, l.Command, dE)
				mv := Move{From: from, To: to}
				switch bin {
				case binExtrusion:
					ld.Bins.Extrusions = append(ld.Bins.Extrusions, mv)
				case binSupport:
					ld.Bins.Supports = append(ld.Bins.Supports, mv)
				case binWipe:
					ld.Bins.Wipes = append(ld.Bins.Wipes, mv)
				default:
					ld.Bins.Travels = append(ld.Bins.Travels, mv)
				}

				if _, ok := layerFirstZ[layer]; !ok {
					layerFirstZ[layer] = newZ
				}

				dist := math.Sqrt((newX-st.x)*(newX-st.x) + (newY-st.y)*(newY-st.y) + (newZ-st.z)*(newZ-st.z))
				if dist < extrusionEpsilon && math.Abs(dE) > extrusionEpsilon {
					dist = math.Abs(dE)
				}
				feed := st.f
				if feed <= 0 {
					feed = defaultFeedRate
				}
				seconds += dist / (feed / 60.0)
			}

			if v, ok := l.Param('E'); ok {
				applyFilamentAccounting(&st, newE, v)
			}

			st.x, st.y, st.z, st.e = newX, newY, newZ, newE
			if v, ok := l.Param('F'); ok {
				st.f = v
			}
		}
	}

	layerHeight, firstLayerHeight := computeLayerHeights(layerFirstZ, maxLayer)

	out := make([]LayerData, len(layers))
	for i, ld := range layers {
		out[i] = *ld
	}

	return SegmentResult{
		Layers: out,
		Metadata: Metadata{
			BoundingBox:      bbox,
			LayerCount:       maxLayer + 1,
			LayerHeight:      layerHeight,
			FirstLayerHeight: firstLayerHeight,
			TotalFilamentMM:  st.totalFilament,
			EstimatedSeconds: seconds,
			DetectedSlicer:   string(ctx.Slicer),
		},
	}, nil
}

func resetHomedAxes(st *motionState, l gcodeparse.GCodeLine) {
	if len(l.Params) == 0 {
		st.x, st.y, st.z = 0, 0, 0
		return
	}
	if _, ok := l.Param('X'); ok {
		st.x = 0
	}
	if _, ok := l.Param('Y'); ok {
		st.y = 0
	}
	if _, ok := l.Param('Z'); ok {
		st.z = 0
	}
}

func applyPositionReset(st *motionState, l gcodeparse.GCodeLine) {
	if v, ok := l.Param('X'); ok {
		st.x = v
	}
	if v, ok := l.Param('Y'); ok {
		st.y = v
	}
	if v, ok := l.Param('Z'); ok {
		st.z = v
	}
	if v, ok := l.Param('E'); ok {
		st.e = v
	}
}

// applyMove resolves the target XYZE position of a G0/G1 line without
// mutating state, returning the candidate new position and whether the
// XY position actually changed.
func applyMove(st *motionState, l gcodeparse.GCodeLine) (x, y, z, e float64, moved bool) {
	x, y, z, e = st.x, st.y, st.z, st.e

	if v, ok := l.Param('X'); ok {
		if st.relativeXYZ {
			x = st.x + v
		} else {
			x = v
		}
	}
	if v, ok := l.Param('Y'); ok {
		if st.relativeXYZ {
			y = st.y + v
		} else {
			y = v
		}
	}
	if v, ok := l.Param('Z'); ok {
		if st.relativeXYZ {
			z = st.z + v
		} else {
			z = v
		}
	}
	if v, ok := l.Param('E'); ok {
		if st.relativeE {
			e = st.e + v
		} else {
			e = v
		}
	}

	moved = math.Abs(x-st.x) > extrusionEpsilon || math.Abs(y-st.y) > extrusionEpsilon
	return x, y, z, e, moved
}

// applyFilamentAccounting commits extrusion to the running total. In
// relative mode the E parameter is already a delta and is added directly;
// in absolute mode the delta against the last tracked position is used.
// G92 E only resets that baseline (applyPositionReset) and adds nothing.
func applyFilamentAccounting(st *motionState, newE, rawParam float64) {
	if st.relativeE {
		if rawParam > 0 {
			st.totalFilament += rawParam
		}
		return
	}
	if newE > st.e {
		st.totalFilament += newE - st.e
	}
}

type bin int

const (
	binTravel bin = iota
	binExtrusion
	binWipe
	binSupport
)

func classify(st *motionState, command string, dE float64) bin {
	if command == "G1" && dE > extrusionEpsilon {
		if st.inSupport {
			return binSupport
		}
		return binExtrusion
	}
	if st.inWipe {
		return binWipe
	}
	return binTravel
}

func applyRegionMarkers(st *motionState, comment string) {
	upper := strings.ToUpper(comment)
	switch {
	case strings.Contains(upper, "WIPE_START"):
		st.inWipe = true
	case strings.Contains(upper, "WIPE_END"):
		st.inWipe = false
	case strings.HasPrefix(upper, "TYPE:") || strings.HasPrefix(upper, "FEATURE:"):
		st.inSupport = strings.Contains(upper, "SUPPORT")
	}
}

// computeLayerHeights derives the steady-state layer height from the
// modal delta between consecutive layers' first Z sample, and the first
// layer height as layer 0's first Z sample.
func computeLayerHeights(firstZ map[int]float64, maxLayer int) (layerHeight, firstLayerHeight float64) {
	if maxLayer < 1 {
		if z, ok := firstZ[0]; ok {
			return z, z
		}
		return 0, 0
	}

	deltas := make(map[string]int)
	var order []float64
	for i := 1; i <= maxLayer; i++ {
		prev, okPrev := firstZ[i-1]
		cur, okCur := firstZ[i]
		if !okPrev || !okCur {
			continue
		}
		d := cur - prev
		if d <= 0 {
			continue
		}
		key := roundedKey(d)
		deltas[key]++
		order = append(order, d)
	}

	if z0, ok := firstZ[0]; ok {
		firstLayerHeight = z0
	}

	bestCount := -1
	var bestVal float64
	for _, d := range order {
		key := roundedKey(d)
		if c := deltas[key]; c > bestCount {
			bestCount = c
			bestVal = d
		}
	}
	layerHeight = bestVal
	return layerHeight, firstLayerHeight
}

func roundedKey(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', 3, 64)
}
