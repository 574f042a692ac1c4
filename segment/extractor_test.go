package segment

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"testing"

	"github.com/briksprint/gcode-core/detect"
	"github.com/briksprint/gcode-core/gcodeparse"
	"github.com/stretchr/testify/require"
)

func TestExtract_BasicExtrusionAndTravel(t *testing.T) {
	src := ";Generated with Cura_SteamEngine 5.6.0\n" +
		";LAYER:0\n" +
		"G90\n" +
		"M82\n" +
		"G1 X0 Y0 Z0.2 F3000\n" +
		"G1 X10 Y0 E1.0 F1200\n" +
		"G1 X10 Y10 F6000\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	out, err := Extract(res.Lines, ctx, res.Encoding)
	require.NoError(t, err)
	require.Len(t, out.Layers, 1)

	l0 := out.Layers[0]
	require.Len(t, l0.Bins.Extrusions, 1)
	// The Z-only "G1 X0 Y0 Z0.2" move does not change XY and emits no segment.
	require.Len(t, l0.Bins.Travels, 1)
	require.InDelta(t, 10.0, out.Metadata.BoundingBox.MaxX, 1e-9)
}

func TestExtract_LayerChangeCuraMarker(t *testing.T) {
	src := ";LAYER:0\n" +
		"G1 X1 Y1 Z0.2 E1 F1200\n" +
		";LAYER:1\n" +
		"G1 X2 Y1 Z0.4 E2 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	out, err := Extract(res.Lines, ctx, res.Encoding)
	require.NoError(t, err)
	require.Equal(t, 2, out.Metadata.LayerCount)
	require.Len(t, out.Layers[0].Bins.Extrusions, 1)
	require.Len(t, out.Layers[1].Bins.Extrusions, 1)
}

func TestExtract_SupportRegionClassification(t *testing.T) {
	src := ";LAYER:0\n" +
		";TYPE:SUPPORT\n" +
		"G1 X5 Y5 Z0.2 E0.5 F1200\n" +
		";TYPE:WALL-OUTER\n" +
		"G1 X10 Y5 E1.0 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	out, err := Extract(res.Lines, ctx, res.Encoding)
	require.NoError(t, err)
	require.Len(t, out.Layers[0].Bins.Supports, 1)
	require.Len(t, out.Layers[0].Bins.Extrusions, 1)
}

func TestExtract_SupportRegionClassificationFeaturePrefix(t *testing.T) {
	src := ";LAYER:0\n" +
		"; FEATURE: Support\n" +
		"G1 X5 Y5 Z0.2 E0.5 F1200\n" +
		"; FEATURE: Support interface\n" +
		"G1 X6 Y5 E0.8 F1200\n" +
		"; FEATURE: Outer wall\n" +
		"G1 X10 Y5 E1.0 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	out, err := Extract(res.Lines, ctx, res.Encoding)
	require.NoError(t, err)
	require.Len(t, out.Layers[0].Bins.Supports, 2)
	require.Len(t, out.Layers[0].Bins.Extrusions, 1)
}

func TestExtract_RelativeExtrusionMode(t *testing.T) {
	src := "G91\nM83\n" +
		"G1 X5 Y0 E0.2 F1200\n" +
		"G1 X5 Y0 E0.2 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)

	out, err := Extract(res.Lines, ctx, res.Encoding)
	require.NoError(t, err)
	require.InDelta(t, 0.4, out.Metadata.TotalFilamentMM, 1e-9)
}

func TestExtract_EncodingErrorOnLatinFallbackAndUnknownSlicer(t *testing.T) {
	res := gcodeparse.Parse([]byte{0xFF, 0xFE, '\n'})
	ctx := detect.Detect(res.Lines)

	_, err := Extract(res.Lines, ctx, res.Encoding)
	require.Error(t, err)
}

func TestToDict_RoundTripsShape(t *testing.T) {
	src := ";LAYER:0\nG1 X1 Y1 Z0.2 E1 F1200\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)
	out, err := Extract(res.Lines, ctx, res.Encoding)
	require.NoError(t, err)

	d := out.ToDict()
	require.Contains(t, d, "layers")
	require.Contains(t, d, "metadata")

	bd := out.ToBinaryDict()
	layers := bd["layers"].([]any)
	first := layers[0].(map[string]any)
	require.IsType(t, "", first["extrusions"])
}

// decodeBinaryMoves base64-decodes an encodeMovesBinary blob and
// reinterprets it as little-endian float32 sextuples, mirroring exactly
// what encodeMovesBinary packed.
func decodeBinaryMoves(t *testing.T, blob string) [][]float64 {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	require.Zero(t, len(raw)%(6*4))

	n := len(raw) / 4
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		vals[i] = float64(math.Float32frombits(bits))
	}

	moves := make([][]float64, len(vals)/6)
	for i := range moves {
		moves[i] = vals[i*6 : i*6+6]
	}
	return moves
}

func TestToBinaryDict_Float32BlobsRoundTripMoveCoordinates(t *testing.T) {
	src := ";LAYER:0\n" +
		";TYPE:SUPPORT\n" +
		"G1 X5.125 Y5.25 Z0.2 E0.5 F1200\n" +
		";TYPE:WALL-OUTER\n" +
		"G1 X10.375 Y5.25 E1.0 F1200\n" +
		"G1 X12 Y6.5 F6000\n"
	res := gcodeparse.Parse([]byte(src))
	ctx := detect.Detect(res.Lines)
	out, err := Extract(res.Lines, ctx, res.Encoding)
	require.NoError(t, err)

	d := out.ToDict()
	bd := out.ToBinaryDict()

	dLayers := d["layers"].([]any)
	bdLayers := bd["layers"].([]any)
	require.Equal(t, len(dLayers), len(bdLayers))

	for i := range dLayers {
		dLayer := dLayers[i].(map[string]any)
		bdLayer := bdLayers[i].(map[string]any)

		for _, bin := range []string{"extrusions", "travels", "wipes", "supports"} {
			expected := dLayer[bin].([][]float64)
			got := decodeBinaryMoves(t, bdLayer[bin].(string))
			require.Len(t, got, len(expected), "bin %q", bin)

			for j, exp := range expected {
				for k, v := range exp {
					require.InDelta(t, float64(float32(v)), got[j][k], 1e-6, "bin %q move %d coord %d", bin, j, k)
				}
			}
		}
	}

	// sanity check that this test actually exercised non-empty bins.
	require.NotEmpty(t, dLayers[0].(map[string]any)["supports"].([][]float64))
	require.NotEmpty(t, dLayers[0].(map[string]any)["extrusions"].([][]float64))
}
