package sandbox

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"
)

var announcedURL = regexp.MustCompile(`(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1?\]):(\d{2,5})`)

// sniffCarry bytes of the previous chunk are kept so an address split
// across two reads is still seen.
const sniffCarry = 32

// portWatcher probes TCP ports and reports closed→open transitions.
type portWatcher struct {
	interval time.Duration
	template string
	emit     func(ReadyEvent)
	dial     func(ctx context.Context, port int) bool

	// emitMu orders probe emits against replays to new subscribers.
	emitMu sync.Mutex

	mu    sync.Mutex
	ports map[int]bool // port → open at last probe
	tail  []byte
	kick  chan struct{}
}

func newPortWatcher(interval time.Duration, template string, emit func(ReadyEvent)) *portWatcher {
	return &portWatcher{
		interval: interval,
		template: template,
		emit:     emit,
		dial:     dialLocal,
		ports:    make(map[int]bool),
		kick:     make(chan struct{}, 1),
	}
}

func dialLocal(ctx context.Context, port int) bool {
	d := net.Dialer{Timeout: 250 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Watch adds port to the probe set.
func (w *portWatcher) Watch(port int) {
	if port <= 0 || port > 65535 {
		return
	}
	w.mu.Lock()
	_, known := w.ports[port]
	if !known {
		w.ports[port] = false
	}
	w.mu.Unlock()

	if !known {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// Ports returns the probe set, sorted.
func (w *portWatcher) Ports() []int {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]int, 0, len(w.ports))
	for p := range w.ports {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Sniff scans process output for announced local addresses.
func (w *portWatcher) Sniff(chunk []byte) {
	w.mu.Lock()
	buf := append(w.tail, chunk...)
	if len(buf) > sniffCarry {
		w.tail = append([]byte(nil), buf[len(buf)-sniffCarry:]...)
	} else {
		w.tail = append([]byte(nil), buf...)
	}
	w.mu.Unlock()

	for _, m := range announcedURL.FindAllSubmatch(buf, -1) {
		if port, err := strconv.Atoi(string(m[1])); err == nil {
			w.Watch(port)
		}
	}
}

// Run probes until ctx is done.
func (w *portWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.kick:
		}
	}
}

func (w *portWatcher) probe(ctx context.Context) {
	results := make(map[int]bool)
	for _, port := range w.Ports() {
		if ctx.Err() != nil {
			return
		}
		results[port] = w.dial(ctx, port)
	}

	w.emitMu.Lock()
	defer w.emitMu.Unlock()

	var opened []int
	w.mu.Lock()
	for port, open := range results {
		if open && !w.ports[port] {
			opened = append(opened, port)
		}
		w.ports[port] = open
	}
	w.mu.Unlock()

	sort.Ints(opened)
	for _, port := range opened {
		w.emit(w.event(port))
	}
}

func (w *portWatcher) event(port int) ReadyEvent {
	return ReadyEvent{Port: port, URL: fmt.Sprintf(w.template, port)}
}

// open returns the ports that were open at the last probe, sorted.
func (w *portWatcher) open() []int {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []int
	for port, open := range w.ports {
		if open {
			out = append(out, port)
		}
	}
	sort.Ints(out)
	return out
}

// replay runs subscribe, then hands fn one event per port already open.
// No probe emits in between, so fn sees each opening exactly once.
func (w *portWatcher) replay(subscribe func(), fn func(ReadyEvent)) {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()

	subscribe()
	for _, port := range w.open() {
		fn(w.event(port))
	}
}
