package rules

import (
	"strings"

	"github.com/briksprint/gcode-core/gcodeparse"
)

// Snippet renders the ±window lines of raw G-code around line (1-based,
// inclusive of line itself) as a single block of text, for inclusion in
// an LLM validation prompt.
func Snippet(lines []gcodeparse.GCodeLine, line, window int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	start := line - window
	if start < 1 {
		start = 1
	}
	end := line + window
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		b.WriteString(lines[i-1].Raw)
		b.WriteByte('\n')
	}
	return b.String()
}
