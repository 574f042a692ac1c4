package gcodeparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_BasicMove(t *testing.T) {
	data := []byte("G1 X10.5 Y-2 Z0.2 F1800 ; comment here\nG28\n")
	res := Parse(data)

	require.Equal(t, EncodingUTF8, res.Encoding)
	require.False(t, res.FallbackUsed)
	require.Len(t, res.Lines, 3) // trailing newline produces an empty final line

	l0 := res.Lines[0]
	require.Equal(t, 1, l0.Index)
	require.Equal(t, "G1", l0.Command)
	require.Equal(t, "comment here", l0.Comment)
	x, ok := l0.Param('X')
	require.True(t, ok)
	require.InDelta(t, 10.5, x, 1e-9)
	y, ok := l0.Param('Y')
	require.True(t, ok)
	require.InDelta(t, -2, y, 1e-9)

	l1 := res.Lines[1]
	require.Equal(t, "G28", l1.Command)
	require.Empty(t, l1.Params)
}

func TestParse_CommentOnlyLine(t *testing.T) {
	res := Parse([]byte(";LAYER:3\n"))
	l := res.Lines[0]
	require.Equal(t, "", l.Command)
	require.Equal(t, "LAYER:3", l.Comment)
}

func TestParse_MalformedParamDropped(t *testing.T) {
	res := Parse([]byte("G1 Xabc Y10\n"))
	l := res.Lines[0]
	_, ok := l.Param('X')
	require.False(t, ok, "malformed numeric suffix must be dropped silently")
	y, ok := l.Param('Y')
	require.True(t, ok)
	require.InDelta(t, 10, y, 1e-9)
}

func TestParse_CRLFAndCR(t *testing.T) {
	res := Parse([]byte("G1 X1\r\nG1 X2\rG1 X3\n"))
	require.Len(t, res.Lines, 3)
	for i, want := range []float64{1, 2, 3} {
		got, ok := res.Lines[i].Param('X')
		require.True(t, ok)
		require.InDelta(t, want, got, 1e-9)
	}
}

func TestParse_LowercaseParam(t *testing.T) {
	res := Parse([]byte("g1 x5 y6\n"))
	l := res.Lines[0]
	require.Equal(t, "G1", l.Command)
	x, ok := l.Param('X')
	require.True(t, ok)
	require.InDelta(t, 5, x, 1e-9)
}

func TestParse_LatinFallback(t *testing.T) {
	// 0xFF is not valid UTF-8, CP949, or EUC-KR leading/trailing byte
	// sequences on its own -> falls through to latin-1.
	res := Parse([]byte{0xFF, 0xFE, '\n'})
	require.Equal(t, EncodingLatin1, res.Encoding)
	require.True(t, res.FallbackUsed)
}
