// Package preview tracks where the preview pane should point.
package preview

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbox/internal/events"
	"github.com/GriffinCanCode/devbox/internal/sandbox"
)

// Liner is the terminal the redirector announces to.
type Liner interface {
	Writeln(line string) error
}

// Redirector follows server-ready events. Every event retargets the
// preview, with the latest event winning.
type Redirector struct {
	term   Liner
	logger *zap.Logger

	mu      sync.RWMutex
	url     string
	history []string

	navigations events.Source[string]
}

// New creates a redirector announcing on term.
func New(term Liner, logger *zap.Logger) *Redirector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redirector{term: term, logger: logger.Named("preview")}
}

// Handle retargets the preview to ev.URL and announces it.
func (r *Redirector) Handle(ev sandbox.ReadyEvent) {
	r.mu.Lock()
	r.url = ev.URL
	r.history = append(r.history, ev.URL)
	r.mu.Unlock()

	r.logger.Info("Preview retargeted", zap.Int("port", ev.Port), zap.String("url", ev.URL))
	if r.term != nil {
		// A disposed terminal only loses the announcement.
		_ = r.term.Writeln("Server is ready at " + ev.URL)
	}
	r.navigations.Emit(ev.URL)
}

// ReadySource reports servers coming up. sandbox.Runtime satisfies it.
type ReadySource interface {
	OnServerReady(fn func(sandbox.ReadyEvent)) events.Subscription
}

// Follow retargets the preview on every ready event from src. observe, when
// set, sees each event before it is handled.
func (r *Redirector) Follow(src ReadySource, observe func(sandbox.ReadyEvent)) events.Subscription {
	return src.OnServerReady(func(ev sandbox.ReadyEvent) {
		if observe != nil {
			observe(ev)
		}
		r.Handle(ev)
	})
}

// URL returns the current preview target, empty until the first event.
func (r *Redirector) URL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.url
}

// History returns every target received, oldest first.
func (r *Redirector) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.history...)
}

// Navigations publishes each new target.
func (r *Redirector) Navigations() *events.Source[string] { return &r.navigations }
