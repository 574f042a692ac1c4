// Package summary computes statistical profiles over a parsed G-code file
// independently of segment extraction: temperature, feed-rate, extrusion,
// layer, support, fan, and print-time profiles, plus section boundaries.
package summary

// HeaterKind identifies which heater a TempEvent targets.
type HeaterKind string

const (
	HeaterNozzle HeaterKind = "nozzle"
	HeaterBed    HeaterKind = "bed"
)

// TempEvent is a single temperature-setting command extracted from the
// line stream, shared between the summary and rules packages.
type TempEvent struct {
	Line        int
	Command     string
	Target      float64
	Heater      HeaterKind
	VendorParam bool // true when the target came from a Bambu/Orca H param
}

// TemperatureProfile aggregates nozzle/bed temperature events.
type TemperatureProfile struct {
	NozzleEvents []TempEvent
	BedEvents    []TempEvent
	NozzleMin    float64
	NozzleMax    float64
	NozzleAvg    float64
	BedMin       float64
	BedMax       float64
	BedAvg       float64
	ChangeCount  int
	Timeline     []TempEvent
}

// FeedRateProfile buckets observed feed rates into 1000 mm/min histogram
// buckets and reports travel vs print averages.
type FeedRateProfile struct {
	Histogram map[int]int
	TravelAvg float64
	PrintAvg  float64
	MaxFeed   float64
}

// ExtrusionProfile totals filament extruded and retraction behavior.
type ExtrusionProfile struct {
	TotalExtrusion    float64
	RetractionCount   int
	RetractionLengths []float64
}

// LayerProfile reports the steady-state and first-layer heights derived
// from the layer map's Z samples.
type LayerProfile struct {
	LayerCount       int
	LayerHeight      float64
	FirstLayerHeight float64
}

// SupportProfile splits extrusion length between support and model
// material and records which layers contain any support extrusion.
type SupportProfile struct {
	SupportExtrusion float64
	ModelExtrusion   float64
	SupportLayers    []int
}

// FanEvent is one M106/M107 occurrence.
type FanEvent struct {
	Line  int
	Layer int
	Speed float64 // 0-255, 0 for M107
}

// FanProfile summarizes cooling-fan usage.
type FanProfile struct {
	Events       []FanEvent
	MaxSpeed     float64
	FirstOnLayer int // -1 if the fan is never turned on
}

// PrintTimeEstimate is the authoritative, self-replayed time estimate
// alongside the slicer-declared value kept for parity only.
type PrintTimeEstimate struct {
	TotalSeconds          float64
	TravelSeconds         float64
	PrintSeconds          float64
	SlicerDeclaredSeconds float64
	HasSlicerDeclared     bool
}

// SectionBoundaries marks the start/body/end line ranges.
type SectionBoundaries struct {
	StartEndLine int // last line of the start sequence
	BodyEndLine  int // last line of the printing body
	EndLength    int // number of lines in the end sequence
}

// ComprehensiveSummary is the full set of independent profiles for one
// parsed file.
type ComprehensiveSummary struct {
	Temperature TemperatureProfile
	FeedRate    FeedRateProfile
	Extrusion   ExtrusionProfile
	Layer       LayerProfile
	Support     SupportProfile
	Fan         FanProfile
	PrintTime   PrintTimeEstimate
	Sections    SectionBoundaries
}
