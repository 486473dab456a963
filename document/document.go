package document

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"weak"
)

var (
	// ErrDocumentClosed is returned when editing a closed document.
	ErrDocumentClosed = errors.New("document is closed")

	// ErrOutOfRange is returned for edits outside the document text.
	ErrOutOfRange = errors.New("position out of range")
)

// ChangeFunc is called after every content change with the applied edit.
type ChangeFunc func(edit EditRange)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger used for diagnostics about the document and its
// range marks.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// WithVersion sets the initial version.
func WithVersion(v int32) Option {
	return func(d *Document) { d.version = v }
}

// Document is an editable text buffer. It notifies range marks and change
// listeners of every edit. Offsets are byte offsets into the UTF-8 text.
type Document struct {
	mu         sync.RWMutex
	uri        string
	languageID string
	version    int32
	text       string
	closed     bool
	logger     *slog.Logger

	selStart, selEnd int

	// marks are weak so a mark nobody holds stops being updated and is
	// unregistered by its cleanup.
	marks     map[uint64]weak.Pointer[RangeMark]
	nextMark  uint64
	listeners []ChangeFunc
}

// New creates a document.
func New(uri, languageID, text string, opts ...Option) *Document {
	d := &Document{
		uri:        uri,
		languageID: languageID,
		text:       text,
		marks:      make(map[uint64]weak.Pointer[RangeMark]),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// URI returns the document's URI.
func (d *Document) URI() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.uri
}

// LanguageID returns the language identifier (e.g., "cpp", "python").
func (d *Document) LanguageID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.languageID
}

// Version returns the document's current version number.
func (d *Document) Version() int32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Text returns the full text content of the document.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Len returns the text length in bytes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.text)
}

// IsClosed reports whether Close was called.
func (d *Document) IsClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// LineAt returns the text of the given zero-based line number.
func (d *Document) LineAt(line int) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return LineAt(d.text, line)
}

// WordAt returns the word around the byte offset.
func (d *Document) WordAt(offset int) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return WordAt(d.text, offset)
}

// OffsetAt converts a position to a byte offset in the document text.
func (d *Document) OffsetAt(pos Position) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return OffsetAt(d.text, pos)
}

// PositionAt converts a byte offset to a position.
func (d *Document) PositionAt(offset int) Position {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return PositionAt(d.text, offset)
}

// OnChange registers a listener for content changes. Listeners run after the
// text and all range marks are updated, outside the document lock, in
// registration order.
func (d *Document) OnChange(fn ChangeFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Replace removes `removed` bytes at pos and inserts text there.
func (d *Document) Replace(pos, removed int, text string) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDocumentClosed
	}
	if pos < 0 || removed < 0 || pos+removed > len(d.text) {
		n := len(d.text)
		d.mu.Unlock()
		return fmt.Errorf("%w: [%d, %d) in %d bytes", ErrOutOfRange, pos, pos+removed, n)
	}
	edit := d.applyLocked(pos, pos+removed, text)
	d.version++
	listeners := d.listeners
	d.mu.Unlock()

	// Called outside the lock: listeners read Text().
	for _, fn := range listeners {
		fn(edit)
	}
	return nil
}

// Insert inserts text at pos.
func (d *Document) Insert(pos int, text string) error {
	return d.Replace(pos, 0, text)
}

// Remove removes n bytes at pos.
func (d *Document) Remove(pos, n int) error {
	return d.Replace(pos, n, "")
}

// SetText replaces the whole content.
func (d *Document) SetText(text string) error {
	return d.Replace(0, d.Len(), text)
}

// ApplyChanges applies incremental changes in order and sets the document
// version. Listeners see every change on its own, right after it is applied.
func (d *Document) ApplyChanges(version int32, changes []Change) ([]EditRange, error) {
	edits := make([]EditRange, 0, len(changes))
	for _, change := range changes {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return edits, ErrDocumentClosed
		}
		start, end := 0, len(d.text)
		if change.Range != nil {
			start = OffsetAt(d.text, change.Range.Start)
			end = max(start, OffsetAt(d.text, change.Range.End))
		}
		edit := d.applyLocked(start, end, change.Text)
		listeners := d.listeners
		d.mu.Unlock()

		edits = append(edits, edit)
		for _, fn := range listeners {
			fn(edit)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return edits, ErrDocumentClosed
	}
	d.version = version
	return edits, nil
}

func (d *Document) applyLocked(start, end int, text string) EditRange {
	var edit EditRange
	d.text, edit = replaceBytes(d.text, start, end, text)

	removed, added := edit.Removed(), edit.Added()
	for id, wp := range d.marks {
		m := wp.Value()
		if m == nil {
			delete(d.marks, id)
			continue
		}
		m.update(start, removed, added)
	}
	d.selStart = shiftOffset(d.selStart, start, removed, added)
	d.selEnd = shiftOffset(d.selEnd, start, removed, added)
	return edit
}

// Selection returns the selected byte span.
func (d *Document) Selection() (start, end int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selStart, d.selEnd
}

// SetSelection selects [start, end), clamped to the text.
func (d *Document) SetSelection(start, end int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	start, end = clamp(start, len(d.text)), clamp(end, len(d.text))
	if start > end {
		start, end = end, start
	}
	d.selStart, d.selEnd = start, end
}

// SelectedText returns the text of the current selection.
func (d *Document) SelectedText() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text[d.selStart:d.selEnd]
}

// Close marks the document closed. Its range marks become invalid.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	clear(d.marks)
	d.listeners = nil
}

func (d *Document) register(m *RangeMark) {
	d.mu.Lock()
	id := d.nextMark
	d.nextMark++
	d.marks[id] = weak.Make(m)
	d.mu.Unlock()

	runtime.AddCleanup(m, d.unregister, id)
}

func (d *Document) unregister(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.marks, id)
}

// markCount returns the number of registered marks.
func (d *Document) markCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.marks)
}
