// Package gcodeparse tokenizes raw G-code bytes into a structured line
// model. It never fails: unrecognized encodings fall back to latin-1 and
// malformed parameter tokens are silently dropped, matching the slicer
// ecosystem's tolerance for noisy comment lines.
package gcodeparse

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Encoding identifies which text encoding a file was decoded with.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingCP949  Encoding = "cp949"
	EncodingEUCKR  Encoding = "euc-kr"
	EncodingLatin1 Encoding = "latin-1-fallback"
)

// GCodeLine is one parsed source line. Immutable after construction.
type GCodeLine struct {
	// Index is the 1-based line number within the source file.
	Index int
	// Raw is the original, unmodified line text (no trailing newline).
	Raw string
	// Command is the uppercased first token of the code portion, e.g. "G1",
	// "M104". Empty for comment-only or blank lines.
	Command string
	// Params maps a single-letter parameter key to its parsed float value.
	Params map[byte]float64
	// Comment is the trailing comment text with the leading ';' stripped.
	// Empty if the line has no comment.
	Comment string
}

// Param returns (value, true) if key is present on the line.
func (l GCodeLine) Param(key byte) (float64, bool) {
	v, ok := l.Params[key]
	return v, ok
}

// HasComment reports whether the line carries a trailing comment.
func (l GCodeLine) HasComment() bool {
	return l.Comment != ""
}

// ParseResult is the ordered sequence of parsed lines plus the encoding
// that was actually used to decode the source bytes.
type ParseResult struct {
	Lines        []GCodeLine
	Encoding     Encoding
	FallbackUsed bool
}

// Parse decodes raw bytes and tokenizes every line. It never returns an
// error: decoding failures degrade through the fallback chain and
// parameter parsing failures are dropped per-token.
func Parse(data []byte) ParseResult {
	text, enc, fallback := decode(data)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	rawLines := strings.Split(text, "\n")

	lines := make([]GCodeLine, 0, len(rawLines))
	for i, raw := range rawLines {
		lines = append(lines, parseLine(i+1, raw))
	}

	return ParseResult{Lines: lines, Encoding: enc, FallbackUsed: fallback}
}

// decode attempts UTF-8 -> CP949 -> EUC-KR -> latin-1, in that order,
// returning the first encoding that decodes cleanly. latin-1 never fails
// (every byte maps to a rune) so it is the terminal fallback.
func decode(data []byte) (string, Encoding, bool) {
	if isValidUTF8(data) {
		return string(data), EncodingUTF8, false
	}

	if s, ok := tryDecode(data, korean.CP949.NewDecoder()); ok {
		return s, EncodingCP949, false
	}
	if s, ok := tryDecode(data, korean.EUCKR.NewDecoder()); ok {
		return s, EncodingEUCKR, false
	}

	s, _ := tryDecode(data, charmap.ISO8859_1.NewDecoder())
	return s, EncodingLatin1, true
}

func isValidUTF8(data []byte) bool {
	return utf8.Valid(data)
}

// tryDecode treats a replacement rune in the output as a failed decode:
// the x/text decoders substitute U+FFFD for invalid input rather than
// returning an error.
func tryDecode(data []byte, dec transform.Transformer) (string, bool) {
	out, _, err := transform.Bytes(dec, data)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// parseLine tokenizes a single source line.
func parseLine(index int, raw string) GCodeLine {
	line := GCodeLine{Index: index, Raw: raw}

	codePart, comment := splitComment(raw)
	line.Comment = comment

	codePart = strings.TrimSpace(codePart)
	if codePart == "" {
		return line
	}

	fields := strings.Fields(codePart)
	if len(fields) == 0 {
		return line
	}

	line.Command = strings.ToUpper(fields[0])

	if len(fields) > 1 {
		line.Params = make(map[byte]float64, len(fields)-1)
		for _, tok := range fields[1:] {
			if len(tok) < 1 {
				continue
			}
			key := tok[0]
			if key < 'A' || key > 'Z' {
				if key >= 'a' && key <= 'z' {
					key = key - 'a' + 'A'
				} else {
					continue
				}
			}
			if len(tok) < 2 {
				continue
			}
			val, err := strconv.ParseFloat(tok[1:], 64)
			if err != nil {
				continue // malformed slicer comment token, drop silently
			}
			line.Params[key] = val
		}
	}

	return line
}

// splitComment splits a raw line at the first ';' into (code, comment).
// comment has the leading ';' stripped.
func splitComment(raw string) (string, string) {
	idx := strings.IndexByte(raw, ';')
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], strings.TrimSpace(raw[idx+1:])
}

