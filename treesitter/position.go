package treesitter

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// Offsets exposed by this package are byte offsets into the UTF-8 source, the
// same unit the grammar runtime uses. Every crossing into or out of the
// runtime goes through the helpers below so the sign and width conversion
// lives in exactly one place per direction.

// toInternal converts a public offset into a runtime byte index. Negative
// offsets clamp to zero.
func toInternal(offset int) uint {
	if offset < 0 {
		return 0
	}
	return uint(offset)
}

// fromInternal converts a runtime byte index into a public offset.
func fromInternal(offset uint) int {
	return int(offset)
}

func pointToInternal(p Point) tree_sitter.Point {
	return tree_sitter.Point{Row: toInternal(p.Row), Column: toInternal(p.Column)}
}

func pointFromInternal(p tree_sitter.Point) Point {
	return Point{Row: fromInternal(p.Row), Column: fromInternal(p.Column)}
}

func rangeFromInternal(r tree_sitter.Range) Range {
	return Range{
		StartByte:  fromInternal(r.StartByte),
		EndByte:    fromInternal(r.EndByte),
		StartPoint: pointFromInternal(r.StartPoint),
		EndPoint:   pointFromInternal(r.EndPoint),
	}
}

func rangeToInternal(r Range) tree_sitter.Range {
	return tree_sitter.Range{
		StartByte:  toInternal(r.StartByte),
		EndByte:    toInternal(r.EndByte),
		StartPoint: pointToInternal(r.StartPoint),
		EndPoint:   pointToInternal(r.EndPoint),
	}
}
