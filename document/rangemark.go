package document

import (
	"fmt"
	"log/slog"
)

// RangeMark is a [start, end) byte span of a Document that follows edits:
// text inserted or removed before the span shifts it, edits inside it grow or
// shrink it. It is independent of any syntax tree.
//
// The zero value is an invalid mark. A mark also becomes invalid when its
// document is closed; invalid marks return empty text and report no
// containment.
type RangeMark struct {
	doc   *Document
	start int
	end   int
}

// CreateRangeMark registers a mark over [start, end). Offsets are clamped to
// the text and swapped, with a warning, if start > end.
func (d *Document) CreateRangeMark(start, end int) *RangeMark {
	d.mu.RLock()
	closed, length := d.closed, len(d.text)
	d.mu.RUnlock()
	if closed {
		d.logger.Warn("range mark on closed document", "uri", d.uri)
		return &RangeMark{}
	}

	if start > end {
		d.logger.Warn("range mark start after end, swapping", "start", start, "end", end)
		start, end = end, start
	}
	m := &RangeMark{doc: d, start: clamp(start, length), end: clamp(end, length)}
	d.register(m)
	return m
}

// update applies an edit notification. The document lock is held.
func (m *RangeMark) update(pos, removed, added int) {
	m.start = shiftOffset(m.start, pos, removed, added)
	m.end = shiftOffset(m.end, pos, removed, added)
	if m.start > m.end {
		m.doc.logger.Warn("range mark start after end, swapping", "start", m.start, "end", m.end)
		m.start, m.end = m.end, m.start
	}
}

// shiftOffset moves an offset at or after an edit by the edit's net delta.
// Offsets inside a removed span collapse to the edit position first.
func shiftOffset(offset, pos, removed, added int) int {
	if offset < pos {
		return offset
	}
	return max(pos, offset-removed) + added
}

func (m *RangeMark) rlock() func() {
	if m.doc == nil {
		return func() {}
	}
	m.doc.mu.RLock()
	return m.doc.mu.RUnlock
}

func (m *RangeMark) validLocked() bool {
	return m.doc != nil && !m.doc.closed
}

// IsValid reports whether the mark is bound to an open document.
func (m *RangeMark) IsValid() bool {
	defer m.rlock()()
	return m.validLocked()
}

// Document returns the owning document, nil for an unbound mark.
func (m *RangeMark) Document() *Document {
	return m.doc
}

// Start returns the start offset.
func (m *RangeMark) Start() int {
	defer m.rlock()()
	return m.start
}

// End returns the end offset, exclusive.
func (m *RangeMark) End() int {
	defer m.rlock()()
	return m.end
}

// Length returns End - Start.
func (m *RangeMark) Length() int {
	defer m.rlock()()
	return m.end - m.start
}

// Text returns the current text of the span.
func (m *RangeMark) Text() string {
	defer m.rlock()()
	if !m.validLocked() {
		return ""
	}
	return m.textIn(m.doc.text)
}

// TextIn returns the span of a snapshot of the document text, which avoids
// copying the document text when resolving many marks at once.
func (m *RangeMark) TextIn(snapshot string) string {
	defer m.rlock()()
	if !m.validLocked() {
		return ""
	}
	return m.textIn(snapshot)
}

func (m *RangeMark) textIn(text string) string {
	if m.end > len(text) || m.start > m.end {
		return ""
	}
	return text[m.start:m.end]
}

// Contains reports whether start <= pos < end.
func (m *RangeMark) Contains(pos int) bool {
	defer m.rlock()()
	return m.validLocked() && m.start <= pos && pos < m.end
}

// ContainsRange reports whether other lies inside the mark. Both must belong
// to the same document.
func (m *RangeMark) ContainsRange(other *RangeMark) bool {
	if other == nil || m.doc == nil || other.doc != m.doc {
		return false
	}
	defer m.rlock()()
	return m.validLocked() && m.start <= other.start && other.end <= m.end
}

// Join returns a new mark spanning both marks. Marks of different documents
// cannot be joined; the result is then invalid.
func (m *RangeMark) Join(other *RangeMark) *RangeMark {
	if other == nil || m.doc == nil || other.doc != m.doc {
		m.logger().Warn("joining range marks of different documents")
		return &RangeMark{}
	}
	m.doc.mu.RLock()
	start, end := min(m.start, other.start), max(m.end, other.end)
	m.doc.mu.RUnlock()
	return m.doc.CreateRangeMark(start, end)
}

// TextExcept returns the text of the mark outside other's span: the part
// before other followed by the part after it. If other does not overlap, the
// full text is returned.
func (m *RangeMark) TextExcept(other *RangeMark) string {
	if other == nil || !other.IsValid() {
		return m.Text()
	}
	if other.doc != m.doc {
		m.logger().Error("text except a range mark of another document")
		return m.Text()
	}

	defer m.rlock()()
	text := m.textIn(m.doc.text)
	if other.end <= m.start || other.start >= m.end {
		return text
	}

	var result string
	if m.start < other.start {
		result += text[:min(other.start-m.start, len(text))]
	}
	if m.end > other.end {
		result += text[len(text)-min(m.end-other.end, len(text)):]
	}
	return result
}

// Select sets the document selection to the mark.
func (m *RangeMark) Select() {
	if !m.IsValid() {
		return
	}
	m.doc.SetSelection(m.Start(), m.End())
}

// Replace replaces the marked text. The mark then spans the new text.
func (m *RangeMark) Replace(text string) error {
	if !m.IsValid() {
		return ErrDocumentClosed
	}
	start, length := m.Start(), m.Length()
	if err := m.doc.Replace(start, length, text); err != nil {
		return err
	}
	// An insertion at start pushed start along with it.
	m.doc.mu.Lock()
	m.start, m.end = start, start+len(text)
	m.doc.mu.Unlock()
	return nil
}

// Remove deletes the marked text, leaving an empty mark.
func (m *RangeMark) Remove() error {
	return m.Replace("")
}

func (m *RangeMark) String() string {
	defer m.rlock()()
	if !m.validLocked() {
		return "[invalid]"
	}
	return fmt.Sprintf("[%d, %d)", m.start, m.end)
}

func (m *RangeMark) logger() *slog.Logger {
	if m.doc == nil {
		return slog.Default()
	}
	return m.doc.logger
}
