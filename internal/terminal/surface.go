// Package terminal models the viewer-facing terminal on the server.
//
// A Surface owns the grid size, a scrollback ring, and the set of attached
// viewers. Output written to the surface is appended to the scrollback and
// fanned out to every viewer in write order. Keystrokes and viewport
// changes arrive from the transport as events on Input and Resizes.
package terminal

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbox/internal/events"
	"github.com/GriffinCanCode/devbox/internal/shared/id"
)

// ErrDisposed is returned by writes after Dispose.
var ErrDisposed = errors.New("terminal disposed")

// Config sizes a new surface.
type Config struct {
	Cols       int
	Rows       int
	Scrollback int // bytes
	// ConvertEOL turns a bare LF into CRLF, as xterm's convertEol does.
	// Batch processes write through plain pipes with no line discipline.
	ConvertEOL bool
}

// DefaultConfig returns an 80x24 surface with 64 KiB of scrollback and
// LF conversion on.
func DefaultConfig() Config {
	return Config{Cols: 80, Rows: 24, Scrollback: 64 * 1024, ConvertEOL: true}
}

// Surface is the terminal display shared by all viewers.
type Surface struct {
	logger     *zap.Logger
	convertEOL bool

	mu       sync.Mutex
	lastCR   bool
	size     Size
	history  *Scrollback
	viewers  map[id.ViewerID]io.Writer
	disposed bool

	input   events.Source[[]byte]
	resizes events.Source[Viewport]
}

// New creates a surface.
func New(cfg Config, logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Cols <= 0 {
		cfg.Cols = def.Cols
	}
	if cfg.Rows <= 0 {
		cfg.Rows = def.Rows
	}
	if cfg.Scrollback < 0 {
		cfg.Scrollback = def.Scrollback
	}
	return &Surface{
		logger:     logger.Named("terminal"),
		convertEOL: cfg.ConvertEOL,
		size:       Size{Cols: max(cfg.Cols, MinCols), Rows: max(cfg.Rows, MinRows)},
		history:    NewScrollback(cfg.Scrollback),
		viewers:    make(map[id.ViewerID]io.Writer),
	}
}

// Size returns the current grid size.
func (s *Surface) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Fit recomputes the grid from v. An unusable viewport leaves the size as
// it was. The resulting size is returned either way.
func (s *Surface) Fit(v Viewport) Size {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return s.size
	}
	if size, ok := v.Dimensions(); ok {
		s.size = size
	}
	return s.size
}

// Write appends p to the scrollback and sends it to every viewer. A viewer
// whose write fails is detached.
func (s *Surface) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return 0, ErrDisposed
	}
	out := p
	if s.convertEOL {
		out = s.crlf(p)
	}
	s.history.Write(out)

	for vid, w := range s.viewers {
		if _, err := w.Write(out); err != nil {
			delete(s.viewers, vid)
			s.logger.Debug("Viewer detached after write failure",
				zap.String("viewer", vid.String()),
				zap.Error(err),
			)
		}
	}
	return len(p), nil
}

// crlf expands every LF not already preceded by CR. The last byte of the
// previous write counts, so a CRLF split across writes stays intact.
func (s *Surface) crlf(p []byte) []byte {
	if len(p) == 0 {
		return p
	}
	prevCR := s.lastCR
	s.lastCR = p[len(p)-1] == '\r'

	if bytes.IndexByte(p, '\n') < 0 {
		return p
	}
	out := make([]byte, 0, len(p)+8)
	for i, c := range p {
		if c == '\n' {
			cr := prevCR
			if i > 0 {
				cr = p[i-1] == '\r'
			}
			if !cr {
				out = append(out, '\r')
			}
		}
		out = append(out, c)
	}
	return out
}

// Writeln writes line followed by CRLF.
func (s *Surface) Writeln(line string) error {
	_, err := s.Write([]byte(line + "\r\n"))
	return err
}

// Attach registers w as a viewer. It returns the scrollback as of the
// attach, which w has not been sent, and a function that detaches w.
func (s *Surface) Attach(w io.Writer) (history []byte, detach func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, func() {}
	}

	vid := id.NewViewerID()
	s.viewers[vid] = w
	history = s.history.Bytes()

	var once sync.Once
	return history, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.viewers, vid)
			s.mu.Unlock()
		})
	}
}

// Viewers returns the number of attached viewers.
func (s *Surface) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// History returns a copy of the scrollback.
func (s *Surface) History() []byte {
	return s.history.Bytes()
}

// Input carries keystrokes typed by viewers.
func (s *Surface) Input() *events.Source[[]byte] { return &s.input }

// Resizes carries viewport changes reported by viewers.
func (s *Surface) Resizes() *events.Source[Viewport] { return &s.resizes }

// Dispose detaches all viewers and rejects further writes.
func (s *Surface) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true
	s.viewers = make(map[id.ViewerID]io.Writer)
	s.logger.Debug("Terminal disposed")
}

// Disposed reports whether Dispose has been called.
func (s *Surface) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
