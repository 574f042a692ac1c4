// Package detect identifies the producing slicer, firmware flavor, and
// printer equipment family from the leading window of a G-code file, plus
// Klipper START_PRINT/PRINT_START macro parameters.
package detect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/briksprint/gcode-core/gcodeparse"
)

// SlicerKind is a closed sum type over recognized slicers; a dispatch
// table of regexes maps header comments to a kind instead of an open
// class hierarchy.
type SlicerKind string

const (
	SlicerCura       SlicerKind = "cura"
	SlicerOrca       SlicerKind = "orcaslicer"
	SlicerBamboo     SlicerKind = "bambustudio"
	SlicerPrusa      SlicerKind = "prusaslicer"
	SlicerSimplify3D SlicerKind = "simplify3d"
	SlicerIdeaMaker  SlicerKind = "ideamaker"
	SlicerUnknown    SlicerKind = "unknown"
)

// FirmwareKind identifies the printer control firmware.
type FirmwareKind string

const (
	FirmwareMarlin       FirmwareKind = "marlin"
	FirmwareKlipper      FirmwareKind = "klipper"
	FirmwareRepRap       FirmwareKind = "reprapfirmware"
	FirmwareSmoothieware FirmwareKind = "smoothieware"
	FirmwareUnknown      FirmwareKind = "unknown"
)

// EquipmentKind identifies the printer/vendor family.
type EquipmentKind string

const (
	EquipmentBambuLab       EquipmentKind = "bambulab"
	EquipmentCreality       EquipmentKind = "creality"
	EquipmentPrusa          EquipmentKind = "prusa"
	EquipmentVoron          EquipmentKind = "voron"
	EquipmentRatRig         EquipmentKind = "ratrig"
	EquipmentElegoo         EquipmentKind = "elegoo"
	EquipmentAnycubic       EquipmentKind = "anycubic"
	EquipmentArtillery      EquipmentKind = "artillery"
	EquipmentSovol          EquipmentKind = "sovol"
	EquipmentKlipperGeneric EquipmentKind = "klipper_generic"
	EquipmentUnknown        EquipmentKind = "unknown"
)

// KlipperMacroTemps holds nozzle/bed targets extracted from a
// START_PRINT/PRINT_START macro invocation.
type KlipperMacroTemps struct {
	ExtruderTemp float64
	BedTemp      float64
	HasExtruder  bool
	HasBed       bool
}

// PrinterContext is the result of one detection pass over a parsed file.
type PrinterContext struct {
	Slicer        SlicerKind
	SlicerVersion string
	Firmware      FirmwareKind
	Equipment     EquipmentKind
	KlipperMacro  KlipperMacroTemps
}

// scanWindowMax bounds how many leading lines the scanners inspect.
const scanWindowMax = 2000

type slicerPattern struct {
	kind    SlicerKind
	header  *regexp.Regexp
	version *regexp.Regexp
}

var slicerPatterns = []slicerPattern{
	{SlicerOrca, regexp.MustCompile(`(?i)generated by OrcaSlicer`), regexp.MustCompile(`(?i)OrcaSlicer\s+([0-9.]+)`)},
	{SlicerBamboo, regexp.MustCompile(`(?i)generated by BambuStudio|BAMBU_STUDIO`), regexp.MustCompile(`(?i)BambuStudio\s+([0-9.]+)`)},
	{SlicerCura, regexp.MustCompile(`(?i);Generated with Cura_SteamEngine|;Cura_SteamEngine`), regexp.MustCompile(`Cura_SteamEngine\s+([0-9.]+)`)},
	{SlicerPrusa, regexp.MustCompile(`(?i)generated by PrusaSlicer`), regexp.MustCompile(`(?i)PrusaSlicer\s+([0-9.]+)`)},
	{SlicerSimplify3D, regexp.MustCompile(`(?i)Simplify3D\(R\)|Simplify3D `), regexp.MustCompile(`Simplify3D\(R\)\s+Version\s+([0-9.]+)`)},
	{SlicerIdeaMaker, regexp.MustCompile(`(?i)ideaMaker`), regexp.MustCompile(`(?i)ideaMaker\s+([0-9.]+)`)},
}

// DetectSlicer scans the leading window of lines for a known slicer
// header-comment signature.
func DetectSlicer(lines []gcodeparse.GCodeLine) (SlicerKind, string) {
	for _, l := range headWindow(lines) {
		text := l.Raw
		for _, p := range slicerPatterns {
			if p.header.MatchString(text) {
				version := ""
				if m := p.version.FindStringSubmatch(text); len(m) > 1 {
					version = m[1]
				}
				return p.kind, version
			}
		}
	}
	return SlicerUnknown, ""
}

// klipperMacros is the set of macro invocations whose presence is
// sufficient evidence of Klipper firmware; a single match classifies.
var klipperMacros = []string{
	"START_PRINT", "PRINT_START", "SET_PRESSURE_ADVANCE",
	"BED_MESH_CALIBRATE", "QUAD_GANTRY_LEVEL", "SET_HEATER_TEMPERATURE",
	"EXCLUDE_OBJECT",
}

var repRapSignature = regexp.MustCompile(`(?i)RepRapFirmware`)
var smoothieSignature = regexp.MustCompile(`(?i)Smoothieware`)
var marlinCommand = regexp.MustCompile(`(?m)^\s*(G28|M104|M109|M140|M190)\b`)

// DetectFirmware inspects the leading window of lines for firmware
// signatures, preferring explicit Klipper macro evidence.
func DetectFirmware(lines []gcodeparse.GCodeLine) FirmwareKind {
	for _, l := range headWindow(lines) {
		upper := strings.ToUpper(l.Raw)
		for _, macro := range klipperMacros {
			if strings.Contains(upper, macro) {
				return FirmwareKlipper
			}
		}
	}

	for _, l := range headWindow(lines) {
		if repRapSignature.MatchString(l.Raw) {
			return FirmwareRepRap
		}
	}
	for _, l := range headWindow(lines) {
		if smoothieSignature.MatchString(l.Raw) {
			return FirmwareSmoothieware
		}
	}
	for _, l := range headWindow(lines) {
		if marlinCommand.MatchString(l.Raw) {
			return FirmwareMarlin
		}
	}
	return FirmwareUnknown
}

type equipmentPattern struct {
	kind    EquipmentKind
	pattern *regexp.Regexp
}

var equipmentPatterns = []equipmentPattern{
	{EquipmentBambuLab, regexp.MustCompile(`(?i)G9111|bedTemp=\d|extruderTemp=\d`)},
	{EquipmentCreality, regexp.MustCompile(`(?i)\bEnder\b|\bCR-\d`)},
	{EquipmentPrusa, regexp.MustCompile(`(?i)\bMK[234]S?\b|\bMINI\b|\bXL\b`)},
	{EquipmentVoron, regexp.MustCompile(`(?i)\bVoron\b`)},
	{EquipmentRatRig, regexp.MustCompile(`(?i)\bRatRig\b`)},
	{EquipmentElegoo, regexp.MustCompile(`(?i)\bElegoo\b`)},
	{EquipmentAnycubic, regexp.MustCompile(`(?i)\bAnycubic\b`)},
	{EquipmentArtillery, regexp.MustCompile(`(?i)\bArtillery\b`)},
	{EquipmentSovol, regexp.MustCompile(`(?i)\bSovol\b`)},
}

// DetectEquipment scans the leading window of lines for vendor strings.
func DetectEquipment(lines []gcodeparse.GCodeLine) EquipmentKind {
	for _, l := range headWindow(lines) {
		for _, p := range equipmentPatterns {
			if p.pattern.MatchString(l.Raw) {
				return p.kind
			}
		}
	}
	return EquipmentUnknown
}

// Detect runs all three scanners and extracts Klipper macro temperatures
// once per parse.
func Detect(lines []gcodeparse.GCodeLine) PrinterContext {
	slicer, version := DetectSlicer(lines)
	firmware := DetectFirmware(lines)
	equipment := DetectEquipment(lines)

	if firmware == FirmwareKlipper && equipment == EquipmentUnknown {
		equipment = EquipmentKlipperGeneric
	}

	ctx := PrinterContext{
		Slicer:        slicer,
		SlicerVersion: version,
		Firmware:      firmware,
		Equipment:     equipment,
	}

	if firmware == FirmwareKlipper {
		ctx.KlipperMacro = extractKlipperMacroTemps(lines)
	}

	return ctx
}

var startPrintLine = regexp.MustCompile(`(?i)^\s*(START_PRINT|PRINT_START)\b(.*)$`)
var extruderTempParam = regexp.MustCompile(`(?i)\bEXTRUDER(?:_TEMP)?\s*=\s*([0-9.]+)`)
var bedTempParam = regexp.MustCompile(`(?i)\bBED(?:_TEMP)?\s*=\s*([0-9.]+)`)

// extractKlipperMacroTemps finds the START_PRINT/PRINT_START invocation
// within the leading window and parses its EXTRUDER(_TEMP)=N / BED(_TEMP)=N
// arguments.
func extractKlipperMacroTemps(lines []gcodeparse.GCodeLine) KlipperMacroTemps {
	var out KlipperMacroTemps
	for _, l := range headWindow(lines) {
		m := startPrintLine.FindStringSubmatch(l.Raw)
		if m == nil {
			continue
		}
		args := m[2]
		if em := extruderTempParam.FindStringSubmatch(args); len(em) > 1 {
			if v, err := strconv.ParseFloat(em[1], 64); err == nil {
				out.ExtruderTemp = v
				out.HasExtruder = true
			}
		}
		if bm := bedTempParam.FindStringSubmatch(args); len(bm) > 1 {
			if v, err := strconv.ParseFloat(bm[1], 64); err == nil {
				out.BedTemp = v
				out.HasBed = true
			}
		}
		return out
	}
	return out
}

// headWindow returns the leading lines used for detection, capped at
// scanWindowMax or the whole file if it's shorter.
func headWindow(lines []gcodeparse.GCodeLine) []gcodeparse.GCodeLine {
	limit := scanWindowMax
	if len(lines) < limit {
		limit = len(lines)
	}
	return lines[:limit]
}
