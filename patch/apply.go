package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/briksprint/gcode-core/gcodeparse"
)

// ApplyPatches rewrites the source file at path into a "<stem>_patched<ext>"
// sibling, applying every modification (and add_before/add_after
// insertion) first, then every deletion, per §4.8. Suggestions whose
// Action is ActionReview are never applied — they are previews only.
// Returns the path written.
func ApplyPatches(path string, lines []gcodeparse.GCodeLine, suggestions []Suggestion) (string, error) {
	modifications := make(map[int]string)
	deletions := make(map[int]bool)
	before := make(map[int][]string)
	after := make(map[int][]string)

	for _, s := range suggestions {
		switch s.Action {
		case ActionModify:
			if s.Replacement != nil {
				modifications[s.Line] = *s.Replacement
			}
		case ActionDelete:
			deletions[s.Line] = true
		case ActionAddBefore:
			if s.Replacement != nil {
				before[s.Line] = append(before[s.Line], *s.Replacement)
			}
		case ActionAddAfter:
			if s.Replacement != nil {
				after[s.Line] = append(after[s.Line], *s.Replacement)
			}
		case ActionReview:
			// preview only, never applied
		}
	}

	var out []string
	for i, l := range lines {
		lineNo := i + 1
		out = append(out, before[lineNo]...)
		if deletions[lineNo] {
			continue
		}
		if repl, ok := modifications[lineNo]; ok {
			out = append(out, repl)
		} else {
			out = append(out, l.Raw)
		}
		out = append(out, after[lineNo]...)
	}

	outPath := patchedPath(path)
	content := strings.Join(out, "\n")
	if len(out) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing patched file %s: %w", outPath, err)
	}
	return outPath, nil
}

func patchedPath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + "_patched" + ext
}
