package patch

import (
	"fmt"
	"strings"
)

// PreviewTable renders suggestions as a plain-text table for operator
// review before ApplyPatches commits anything to disk.
func PreviewTable(suggestions []Suggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-22s %-10s %-6s %s\n", "LINE", "ISSUE", "ACTION", "AUTO", "REASON")
	for _, s := range suggestions {
		auto := "no"
		if s.AutofixAllowed {
			auto = "yes"
		}
		fmt.Fprintf(&b, "%-6d %-22s %-10s %-6s %s\n", s.Line, s.IssueType, s.Action, auto, s.Reason)
	}
	return b.String()
}
