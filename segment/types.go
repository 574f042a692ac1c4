// Package segment replays the motion state machine over a parsed G-code
// file and buckets every extrusion, travel, wipe, and support move into
// per-layer bins, alongside bounding box and temperature metadata.
package segment

// Point is a single XYZ coordinate in millimeters.
type Point struct {
	X, Y, Z float64
}

// Move is one emitted segment endpoint pair.
type Move struct {
	From, To Point
}

// LayerBins groups the moves of one layer by motion purpose.
type LayerBins struct {
	Extrusions []Move
	Travels    []Move
	Wipes      []Move
	Supports   []Move
}

// LayerData is everything captured for a single layer.
type LayerData struct {
	Layer      int
	Bins       LayerBins
	NozzleTemp float64
	BedTemp    float64
}

// BoundingBox is the axis-aligned extent of every emitted segment
// endpoint across the whole file.
type BoundingBox struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Metadata is the file-level summary attached to a SegmentResult.
type Metadata struct {
	BoundingBox      BoundingBox
	LayerCount       int
	LayerHeight      float64
	FirstLayerHeight float64
	TotalFilamentMM  float64
	EstimatedSeconds float64
	DetectedSlicer   string
}

// SegmentResult is the full output of Extract: per-layer motion bins plus
// file-level metadata.
type SegmentResult struct {
	Layers   []LayerData
	Metadata Metadata
}

// EncodingError is raised when the source file could only be decoded via
// the latin-1 fallback and no slicer could be identified, meaning the
// extracted geometry cannot be trusted.
type EncodingError struct {
	Encoding string
}

func (e *EncodingError) Error() string {
	return "segment: unrecognized encoding \"" + e.Encoding + "\" with unknown slicer, refusing to extract"
}
