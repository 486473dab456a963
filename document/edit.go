package document

// Change is one content change. A nil Range replaces the whole text.
type Change struct {
	Range *Range
	Text  string
}

// EditRange describes one applied edit in bytes and byte-column points, the
// shape the parser needs for incremental reparsing.
type EditRange struct {
	StartByte   int
	OldEndByte  int
	NewEndByte  int
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Removed returns the number of bytes the edit removed.
func (e EditRange) Removed() int { return e.OldEndByte - e.StartByte }

// Added returns the number of bytes the edit inserted.
func (e EditRange) Added() int { return e.NewEndByte - e.StartByte }

// ApplyChanges applies a set of changes to text.
func ApplyChanges(text string, changes []Change) string {
	text, _ = ApplyChangesWithEdits(text, changes)
	return text
}

// ApplyChangesWithEdits applies changes and returns edit ranges for incremental parsing.
func ApplyChangesWithEdits(text string, changes []Change) (string, []EditRange) {
	var edits []EditRange
	for _, change := range changes {
		start, end := 0, len(text)
		if change.Range != nil {
			start = OffsetAt(text, change.Range.Start)
			end = OffsetAt(text, change.Range.End)
			if start > end {
				start = end
			}
		}
		var edit EditRange
		text, edit = replaceBytes(text, start, end, change.Text)
		edits = append(edits, edit)
	}
	return text, edits
}

// replaceBytes replaces text[start:end] by insert. Offsets must be valid.
func replaceBytes(text string, start, end int, insert string) (string, EditRange) {
	result := text[:start] + insert + text[end:]
	newEnd := start + len(insert)
	return result, EditRange{
		StartByte:   start,
		OldEndByte:  end,
		NewEndByte:  newEnd,
		StartPoint:  PointAt(text, start),
		OldEndPoint: PointAt(text, end),
		NewEndPoint: PointAt(result, newEnd),
	}
}
