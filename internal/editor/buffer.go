// Package editor keeps the editable file's text and mirrors every edit into
// the sandbox.
package editor

import (
	"sync"

	"github.com/GriffinCanCode/devbox/internal/events"
)

// Edit is a user change to the tracked file. Content is the full new text.
type Edit struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Buffer is the text model of the single editable file.
type Buffer struct {
	path string

	mu      sync.RWMutex
	content string

	emitMu sync.Mutex
	edits  events.Source[Edit]
}

// NewBuffer creates an empty buffer for path.
func NewBuffer(path string) *Buffer {
	return &Buffer{path: path}
}

// Path returns the tracked file path.
func (b *Buffer) Path() string { return b.path }

// Content returns the current text.
func (b *Buffer) Content() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.content
}

// Seed sets the displayed text without producing an edit.
func (b *Buffer) Seed(content string) {
	b.mu.Lock()
	b.content = content
	b.mu.Unlock()
}

// Set replaces the text as a user edit. Concurrent edits are delivered in
// the order they were applied.
func (b *Buffer) Set(content string) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	b.content = content
	b.mu.Unlock()

	b.edits.Emit(Edit{Path: b.path, Content: content})
}

// Edits publishes every Set.
func (b *Buffer) Edits() *events.Source[Edit] { return &b.edits }
