package document

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Position is a line and a UTF-16 code unit column, the way editors count.
type Position struct {
	Line      int
	Character int
}

// Range is a span between two Positions, end exclusive.
type Range struct {
	Start Position
	End   Position
}

// Point is a row and a byte column, the way the parser counts.
type Point struct {
	Row    int
	Column int
}

// OffsetAt converts a Position to a byte offset in text. Positions past the
// end of a line clamp to the end of that line; lines past the end of the text
// clamp to len(text).
func OffsetAt(text string, pos Position) int {
	start := lineStart(text, pos.Line)
	if start < 0 {
		return len(text)
	}
	return start + utf16ToBytes(lineFrom(text, start), pos.Character)
}

// PositionAt converts a byte offset to a Position.
func PositionAt(text string, offset int) Position {
	offset = clamp(offset, len(text))
	row, start := rowOf(text, offset)
	return Position{Line: row, Character: bytesToUTF16(text[start:offset])}
}

// PointAt converts a byte offset to a Point.
func PointAt(text string, offset int) Point {
	offset = clamp(offset, len(text))
	row, start := rowOf(text, offset)
	return Point{Row: row, Column: offset - start}
}

// LineAt returns the text of the given line (0-indexed), without trailing newline.
func LineAt(text string, line int) string {
	start := lineStart(text, line)
	if start < 0 {
		return ""
	}
	return lineFrom(text, start)
}

// WordAt returns the identifier-like word around the byte offset.
func WordAt(text string, offset int) string {
	if offset < 0 || offset >= len(text) {
		return ""
	}
	start := 0
	if i := strings.LastIndexFunc(text[:offset], notWord); i >= 0 {
		_, size := utf8.DecodeRuneInString(text[i:])
		start = i + size
	}
	end := strings.IndexFunc(text[offset:], notWord)
	if end < 0 {
		return text[start:]
	}
	return text[start : offset+end]
}

func notWord(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_')
}

func clamp(offset, length int) int {
	return max(0, min(offset, length))
}

// lineStart returns the offset of the first byte of line, -1 if text has
// fewer lines.
func lineStart(text string, line int) int {
	offset := 0
	for range line {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			return -1
		}
		offset += nl + 1
	}
	return offset
}

// lineFrom returns the text between start and the next newline.
func lineFrom(text string, start int) string {
	line, _, _ := strings.Cut(text[start:], "\n")
	return line
}

// rowOf returns the row of offset and the offset its line starts at.
func rowOf(text string, offset int) (row, start int) {
	before := text[:offset]
	return strings.Count(before, "\n"), strings.LastIndexByte(before, '\n') + 1
}

// utf16Units decodes the first rune of s and returns its width in UTF-16
// code units and in bytes. An invalid byte counts as one unit.
func utf16Units(s string) (units, size int) {
	r, size := utf8.DecodeRuneInString(s)
	return max(utf16.RuneLen(r), 1), size
}

// utf16ToBytes converts a UTF-16 column within line to a byte column.
func utf16ToBytes(line string, column int) int {
	i, units := 0, 0
	for i < len(line) && units < column {
		n, size := utf16Units(line[i:])
		units += n
		i += size
	}
	return i
}

// bytesToUTF16 returns the UTF-16 length of s.
func bytesToUTF16(s string) int {
	units := 0
	for i := 0; i < len(s); {
		n, size := utf16Units(s[i:])
		units += n
		i += size
	}
	return units
}
