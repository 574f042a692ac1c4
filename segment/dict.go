package segment

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// ToDict renders a SegmentResult as plain nested arrays/maps suitable for
// direct JSON marshaling, with every coordinate as a float64.
func (r SegmentResult) ToDict() map[string]any {
	layers := make([]any, len(r.Layers))
	for i, ld := range r.Layers {
		layers[i] = map[string]any{
			"layer":       ld.Layer,
			"nozzle_temp": ld.NozzleTemp,
			"bed_temp":    ld.BedTemp,
			"extrusions":  movesToDict(ld.Bins.Extrusions),
			"travels":     movesToDict(ld.Bins.Travels),
			"wipes":       movesToDict(ld.Bins.Wipes),
			"supports":    movesToDict(ld.Bins.Supports),
		}
	}

	return map[string]any{
		"layers":   layers,
		"metadata": metadataToDict(r.Metadata),
	}
}

func movesToDict(moves []Move) [][]float64 {
	out := make([][]float64, len(moves))
	for i, m := range moves {
		out[i] = []float64{m.From.X, m.From.Y, m.From.Z, m.To.X, m.To.Y, m.To.Z}
	}
	return out
}

func metadataToDict(m Metadata) map[string]any {
	return map[string]any{
		"bounding_box": map[string]float64{
			"min_x": m.BoundingBox.MinX, "min_y": m.BoundingBox.MinY, "min_z": m.BoundingBox.MinZ,
			"max_x": m.BoundingBox.MaxX, "max_y": m.BoundingBox.MaxY, "max_z": m.BoundingBox.MaxZ,
		},
		"layer_count":        m.LayerCount,
		"layer_height":       m.LayerHeight,
		"first_layer_height": m.FirstLayerHeight,
		"total_filament_mm":  m.TotalFilamentMM,
		"estimated_seconds":  m.EstimatedSeconds,
		"detected_slicer":    m.DetectedSlicer,
	}
}

// ToBinaryDict renders the same structure but encodes each bin's
// coordinates as a little-endian float32 buffer, base64-encoded, instead
// of nested JSON arrays. This trades JSON readability for a much smaller
// payload on large files.
func (r SegmentResult) ToBinaryDict() map[string]any {
	layers := make([]any, len(r.Layers))
	for i, ld := range r.Layers {
		layers[i] = map[string]any{
			"layer":       ld.Layer,
			"nozzle_temp": ld.NozzleTemp,
			"bed_temp":    ld.BedTemp,
			"extrusions":  encodeMovesBinary(ld.Bins.Extrusions),
			"travels":     encodeMovesBinary(ld.Bins.Travels),
			"wipes":       encodeMovesBinary(ld.Bins.Wipes),
			"supports":    encodeMovesBinary(ld.Bins.Supports),
		}
	}

	return map[string]any{
		"layers":   layers,
		"metadata": metadataToDict(r.Metadata),
	}
}

// encodeMovesBinary packs each move as 6 little-endian float32 values
// (fromX,fromY,fromZ,toX,toY,toZ) and base64-encodes the concatenated
// buffer.
func encodeMovesBinary(moves []Move) string {
	buf := make([]byte, 0, len(moves)*6*4)
	var tmp [4]byte
	put := func(v float64) {
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(float32(v)))
		buf = append(buf, tmp[:]...)
	}
	for _, m := range moves {
		put(m.From.X)
		put(m.From.Y)
		put(m.From.Z)
		put(m.To.X)
		put(m.To.Y)
		put(m.To.Z)
	}
	return base64.StdEncoding.EncodeToString(buf)
}
