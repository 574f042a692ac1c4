package detect

import (
	"testing"

	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/stretchr/testify/require"
)

func TestDetect_Cura(t *testing.T) {
	res := gcodeparse.Parse([]byte(";Generated with Cura_SteamEngine 5.6.0\n;FLAVOR:Marlin\n;LAYER_COUNT:250\nG28\nM104 S200\n"))
	ctx := Detect(res.Lines)

	require.Equal(t, SlicerCura, ctx.Slicer)
	require.Equal(t, "5.6.0", ctx.SlicerVersion)
	require.Equal(t, FirmwareMarlin, ctx.Firmware)
}

func TestDetect_KlipperMacroTemps(t *testing.T) {
	res := gcodeparse.Parse([]byte("START_PRINT EXTRUDER_TEMP=215 BED_TEMP=60\nG28\n"))
	ctx := Detect(res.Lines)

	require.Equal(t, FirmwareKlipper, ctx.Firmware)
	require.Equal(t, EquipmentKlipperGeneric, ctx.Equipment)
	require.True(t, ctx.KlipperMacro.HasExtruder)
	require.InDelta(t, 215, ctx.KlipperMacro.ExtruderTemp, 1e-9)
	require.True(t, ctx.KlipperMacro.HasBed)
	require.InDelta(t, 60, ctx.KlipperMacro.BedTemp, 1e-9)
}

func TestDetect_BambuEquipment(t *testing.T) {
	res := gcodeparse.Parse([]byte("G9111 bedTemp=60 extruderTemp=220\n"))
	ctx := Detect(res.Lines)
	require.Equal(t, EquipmentBambuLab, ctx.Equipment)
}

func TestDetect_Unknown(t *testing.T) {
	res := gcodeparse.Parse([]byte("; nothing recognizable here\n"))
	ctx := Detect(res.Lines)
	require.Equal(t, SlicerUnknown, ctx.Slicer)
	require.Equal(t, FirmwareUnknown, ctx.Firmware)
	require.Equal(t, EquipmentUnknown, ctx.Equipment)
}
