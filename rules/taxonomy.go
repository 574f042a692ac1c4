// Package rules scans a parsed G-code file for structural and
// temperature anomalies against a fixed issue-type taxonomy, deterministic
// and independent of any LLM call.
package rules

// Category groups type codes for presentation.
type Category string

const (
	CategoryTemperature  Category = "temperature"
	CategorySpeed        Category = "speed"
	CategoryRetraction   Category = "retraction"
	CategoryStructure    Category = "structure"
	CategoryVendor       Category = "vendor"
	CategoryPrintQuality Category = "print_quality"
	CategoryEquipment    Category = "equipment"
	CategorySoftware     Category = "software"
	CategoryOther        Category = "other"
)

// Severity is the fixed severity scale used across issues and assessments.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// TaxonomyEntry is one registered issue type in the catalog.
type TaxonomyEntry struct {
	TypeCode        string
	Category        Category
	DefaultSeverity Severity
	Label           string
	Description     string
	UIColor         string
	Icon            string
}

// Taxonomy is the authoritative, fixed catalog of type codes. Any
// detection rule added to this package must register its type_code here.
var Taxonomy = []TaxonomyEntry{
	{"cold_extrusion", CategoryTemperature, SeverityCritical, "Cold extrusion", "Extrusion commanded while the nozzle is below the filament's minimum printing temperature.", "#d32f2f", "thermometer-low"},
	{"early_temp_off", CategoryTemperature, SeverityHigh, "Nozzle turned off early", "Nozzle heater disabled before the end section while further extrusion follows.", "#f57c00", "thermometer-off"},
	{"early_bed_off", CategoryTemperature, SeverityMedium, "Bed turned off early", "Bed heater disabled before the end section while further extrusion follows.", "#f57c00", "bed-off"},
	{"bed_temp_off_early", CategoryTemperature, SeverityMedium, "Bed cooled prematurely", "Bed target set to zero well before the print body ends.", "#fbc02d", "bed-off"},
	{"missing_warmup", CategoryTemperature, SeverityHigh, "Missing warmup wait", "Nozzle target set with M104 but never confirmed with M109 before the first extrusion.", "#f57c00", "thermometer-wait"},
	{"rapid_temp_change", CategoryTemperature, SeverityMedium, "Rapid temperature change", "Target temperature changed by 50°C or more within a short line window.", "#fbc02d", "thermometer-swing"},
	{"excessive_speed", CategorySpeed, SeverityMedium, "Excessive print speed", "A printing move exceeds 300 mm/s (F18000).", "#fbc02d", "speedometer"},
	{"excessive_retraction", CategoryRetraction, SeverityLow, "Excessive retraction", "A retraction exceeds the fixed empirical length threshold (10 mm).", "#0288d1", "retract"},
	{"structure_abnormal", CategoryStructure, SeverityMedium, "Abnormal structure", "The line sequence deviates from the expected start/body/end shape.", "#fbc02d", "layers-off"},
	{"missing_end", CategoryStructure, SeverityLow, "Missing end sequence", "No recognizable end-of-print sequence was found.", "#0288d1", "flag-off"},
	{"missing_setup", CategoryStructure, SeverityMedium, "Missing setup sequence", "No recognizable start-of-print setup sequence was found.", "#fbc02d", "flag-off"},
	{"vendor_extension", CategoryVendor, SeverityInfo, "Vendor extension in use", "A non-standard vendor parameter was observed (informational only).", "#9e9e9e", "info"},
}

// ByTypeCode returns the taxonomy entry for code, or false if unregistered.
func ByTypeCode(code string) (TaxonomyEntry, bool) {
	for _, e := range Taxonomy {
		if e.TypeCode == code {
			return e, true
		}
	}
	return TaxonomyEntry{}, false
}

// SyncTarget mirrors the catalog into an external registry so the
// presentation layer stays in sync with detection. The core only ever
// pushes its own authoritative copy; it never reads back.
type SyncTarget interface {
	SyncTaxonomy(entries []TaxonomyEntry) error
}

// Sync pushes the current catalog to target.
func Sync(target SyncTarget) error {
	return target.SyncTaxonomy(Taxonomy)
}
