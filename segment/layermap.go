package segment

import (
	"regexp"
	"strconv"

	"github.com/briksprint/gcode-core/gcodeparse"
)

// LayerMap maps a parsed line's 1-based index to the layer number active
// just before that line executes. Values are in [0, totalLayers] and
// non-decreasing as the index increases.
type LayerMap map[int]int

// zHeuristicThreshold is the minimum Z increase (mm) that is inferred as
// a layer change when no slicer marker is present.
const zHeuristicThreshold = 0.05

var (
	curaLayer     = regexp.MustCompile(`^LAYER:(\d+)`)
	s3dLayer      = regexp.MustCompile(`(?i)^layer\s+(\d+)`)
	bambuLayerNum = regexp.MustCompile(`(?i)^layer\s*num/total_layer_count:\s*(\d+)/(\d+)`)
	orcaChange    = regexp.MustCompile(`^LAYER_CHANGE`)
)

// BuildLayerMap scans the parsed lines for layer markers, falling back to
// a Z-height heuristic when no slicer marker is ever seen. It replays only
// enough motion state (Z position, G28/G92/G90/G91) to track Z.
func BuildLayerMap(lines []gcodeparse.GCodeLine) (LayerMap, int) {
	lm := make(LayerMap, len(lines))

	currentLayer := 0
	relativeXYZ := false
	var curZ float64
	var lastLayerBaselineZ float64
	pendingLayerChange := false
	sawMarker := false
	maxLayer := 0

	for _, l := range lines {
		lm[l.Index] = currentLayer

		if l.Comment != "" {
			if m := curaLayer.FindStringSubmatch(l.Comment); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					currentLayer = n
					sawMarker = true
				}
			} else if m := bambuLayerNum.FindStringSubmatch(l.Comment); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					currentLayer = n - 1
					sawMarker = true
				}
			} else if m := s3dLayer.FindStringSubmatch(l.Comment); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					currentLayer = n - 1
					sawMarker = true
				}
			} else if orcaChange.MatchString(l.Comment) {
				pendingLayerChange = true
				sawMarker = true
			}
		}

		switch l.Command {
		case "M73":
			if v, ok := l.Param('L'); ok {
				currentLayer = int(v) - 1
				sawMarker = true
			}
		case "G28":
			if len(l.Params) == 0 {
				curZ = 0
			} else if _, ok := l.Param('Z'); ok {
				curZ = 0
			}
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
				if pendingLayerChange && newZ > curZ {
					currentLayer++
					pendingLayerChange = false
					lastLayerBaselineZ = newZ
				} else if !sawMarker && newZ-lastLayerBaselineZ > zHeuristicThreshold {
					currentLayer++
					lastLayerBaselineZ = newZ
				}
				curZ = newZ
			}
		}

		if currentLayer > maxLayer {
			maxLayer = currentLayer
		}
	}

	return lm, maxLayer
}
