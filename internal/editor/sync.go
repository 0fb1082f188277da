package editor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileWriter is the part of the sandbox the editor writes through.
type FileWriter interface {
	WriteFile(ctx context.Context, path, contents string) error
}

// Recorder observes the result of every write.
type Recorder interface {
	RecordFileWrite(path string, err error)
}

// Option configures a Sync.
type Option func(*Sync)

// WithDebounce coalesces edits arriving within d into one write of the
// latest text.
func WithDebounce(d time.Duration) Option {
	return func(s *Sync) { s.debounce = d }
}

// WithRecorder reports write results to r.
func WithRecorder(r Recorder) Option {
	return func(s *Sync) { s.recorder = r }
}

// Sync writes the buffer's full text to the sandbox after every edit. Edits
// made before Activate are held, latest first, and flushed on activation.
type Sync struct {
	fs       FileWriter
	buf      *Buffer
	logger   *zap.Logger
	debounce time.Duration
	recorder Recorder

	unsubscribe func()

	mu       sync.Mutex
	ctx      context.Context
	active   bool
	closed   bool
	pending  *Edit
	timer    *time.Timer
	writes   int
	failures int
}

// NewSync subscribes to buf's edits. Nothing is written until Activate.
func NewSync(fs FileWriter, buf *Buffer, logger *zap.Logger, opts ...Option) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sync{
		fs:     fs,
		buf:    buf,
		logger: logger.Named("editor"),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	sub := buf.Edits().Subscribe(s.onEdit)
	s.unsubscribe = sub.Unsubscribe
	return s
}

// Activate starts writing. Writes use ctx; a held edit is flushed now.
func (s *Sync) Activate(ctx context.Context) {
	s.mu.Lock()
	if s.active || s.closed {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.ctx = ctx
	held := s.pending
	s.pending = nil
	s.mu.Unlock()

	if held != nil {
		s.logger.Debug("Flushing edit held before mount", zap.String("path", held.Path))
		s.write(*held)
	}
}

func (s *Sync) onEdit(e Edit) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.active {
		s.pending = &e
		s.mu.Unlock()
		return
	}
	if s.debounce > 0 {
		s.pending = &e
		if s.timer == nil {
			s.timer = time.AfterFunc(s.debounce, s.flush)
		} else {
			s.timer.Reset(s.debounce)
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.write(e)
}

func (s *Sync) flush() {
	s.mu.Lock()
	held := s.pending
	s.pending = nil
	closed := s.closed
	s.mu.Unlock()

	if held != nil && !closed {
		s.write(*held)
	}
}

// write overwrites the file with the full text. Failures are logged and
// counted only.
func (s *Sync) write(e Edit) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	err := s.fs.WriteFile(ctx, e.Path, e.Content)

	s.mu.Lock()
	if err != nil {
		s.failures++
	} else {
		s.writes++
	}
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordFileWrite(e.Path, err)
	}
	if err != nil {
		s.logger.Warn("Failed to write edit",
			zap.String("path", e.Path),
			zap.Int("bytes", len(e.Content)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Edit written", zap.String("path", e.Path), zap.Int("bytes", len(e.Content)))
}

// Stats returns the number of successful and failed writes.
func (s *Sync) Stats() (writes, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes, s.failures
}

// Active reports whether Activate has been called.
func (s *Sync) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close stops listening. A debounced edit still waiting is flushed first.
func (s *Sync) Close() {
	s.unsubscribe()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var held *Edit
	if s.timer != nil && s.timer.Stop() {
		held = s.pending
		s.pending = nil
	}
	s.closed = true
	active := s.active
	s.mu.Unlock()

	if held != nil && active {
		s.write(*held)
	}
}
