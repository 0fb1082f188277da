// Package testutil provides fakes and mocks for the sandbox runtime.
package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/devbox/internal/events"
	"github.com/GriffinCanCode/devbox/internal/project"
	"github.com/GriffinCanCode/devbox/internal/sandbox"
)

// FakeRuntime is an in-memory sandbox.Runtime that records every call.
type FakeRuntime struct {
	// BootErr and MountErr fail the respective call when set.
	BootErr  error
	MountErr error
	// SpawnErr fails Spawn for the given command line ("npm run dev").
	SpawnErr map[string]error
	// Scripts drive a spawned process by command line. Each runs in its
	// own goroutine right after Spawn returns.
	Scripts map[string]func(p *FakeProcess)

	mu     sync.Mutex
	booted bool
	calls  []string
	files  map[string]string
	procs  []*FakeProcess

	readyMu sync.Mutex
	ready   events.Source[sandbox.ReadyEvent]
	open    []sandbox.ReadyEvent
}

// NewFakeRuntime creates an empty fake.
func NewFakeRuntime(t *testing.T) *FakeRuntime {
	t.Helper()
	rt := &FakeRuntime{
		SpawnErr: map[string]error{},
		Scripts:  map[string]func(*FakeProcess){},
		files:    map[string]string{},
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func (r *FakeRuntime) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

// Calls returns the call log, oldest first.
func (r *FakeRuntime) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how many logged calls equal call.
func (r *FakeRuntime) Count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (r *FakeRuntime) Boot(ctx context.Context) error {
	r.record("boot")
	if r.BootErr != nil {
		return r.BootErr
	}
	r.mu.Lock()
	r.booted = true
	r.mu.Unlock()
	return nil
}

func (r *FakeRuntime) Mount(ctx context.Context, tree project.Tree) error {
	r.record("mount")
	if r.MountErr != nil {
		return r.MountErr
	}
	if err := tree.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tree.Walk(func(p, contents string) { r.files[p] = contents })
	return nil
}

func (r *FakeRuntime) Spawn(ctx context.Context, command string, args []string, opts sandbox.SpawnOptions) (sandbox.Process, error) {
	line := strings.Join(append([]string{command}, args...), " ")
	r.record("spawn " + line)
	if err := r.SpawnErr[line]; err != nil {
		return nil, err
	}

	r.mu.Lock()
	p := newFakeProcess(r, fmt.Sprintf("proc_%d", len(r.procs)+1), line, opts.Terminal)
	r.procs = append(r.procs, p)
	script := r.Scripts[line]
	r.mu.Unlock()

	if script != nil {
		go script(p)
	}
	return p, nil
}

func (r *FakeRuntime) WriteFile(ctx context.Context, path, contents string) error {
	r.record("write " + path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.booted {
		return sandbox.ErrNotBooted
	}
	r.files[strings.TrimPrefix(path, "/")] = contents
	return nil
}

func (r *FakeRuntime) ReadFile(ctx context.Context, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contents, ok := r.files[strings.TrimPrefix(path, "/")]
	if !ok {
		return "", fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}
	return contents, nil
}

// File returns the contents at path, empty when absent.
func (r *FakeRuntime) File(path string) string {
	s, _ := r.ReadFile(context.Background(), path)
	return s
}

// Files returns the known paths, sorted.
func (r *FakeRuntime) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.files))
	for p := range r.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// OnServerReady subscribes fn and replays every event emitted so far, the
// way sandbox.Local reports ports that are already open.
func (r *FakeRuntime) OnServerReady(fn func(sandbox.ReadyEvent)) events.Subscription {
	r.readyMu.Lock()
	defer r.readyMu.Unlock()

	sub := r.ready.Subscribe(fn)
	for _, ev := range r.open {
		fn(ev)
	}
	return sub
}

// EmitReady fires a readiness event at every listener and remembers it for
// later ones.
func (r *FakeRuntime) EmitReady(port int, url string) {
	r.readyMu.Lock()
	defer r.readyMu.Unlock()

	ev := sandbox.ReadyEvent{Port: port, URL: url}
	r.open = append(r.open, ev)
	r.ready.Emit(ev)
}

// ReadyListeners returns the number of readiness listeners.
func (r *FakeRuntime) ReadyListeners() int { return r.ready.Len() }

// Process returns the first process spawned for the command line.
func (r *FakeRuntime) Process(line string) *FakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.procs {
		if p.name == line {
			return p
		}
	}
	return nil
}

// Close ends every process stream.
func (r *FakeRuntime) Close() error {
	r.mu.Lock()
	procs := append([]*FakeProcess(nil), r.procs...)
	r.mu.Unlock()
	for _, p := range procs {
		p.out.Close()
	}
	return nil
}

// FakeProcess is a scripted sandbox.Process.
type FakeProcess struct {
	rt   *FakeRuntime
	id   string
	name string
	size *sandbox.Size

	out     *io.PipeWriter
	outRead *io.PipeReader
	exit    chan int

	mu       sync.Mutex
	input    []byte
	resizes  []sandbox.Size
	onResize func(sandbox.Size)
	code     int
	finished bool
}

func newFakeProcess(rt *FakeRuntime, pid, name string, size *sandbox.Size) *FakeProcess {
	pr, pw := io.Pipe()
	return &FakeProcess{
		rt:      rt,
		id:      pid,
		name:    name,
		size:    size,
		out:     pw,
		outRead: pr,
		exit:    make(chan int, 1),
	}
}

func (p *FakeProcess) ID() string        { return p.id }
func (p *FakeProcess) Name() string      { return p.name }
func (p *FakeProcess) Output() io.Reader { return p.outRead }
func (p *FakeProcess) Exit() <-chan int  { return p.exit }

func (p *FakeProcess) Input() io.Writer {
	if p.size == nil {
		return nil
	}
	return inputFunc(func(b []byte) (int, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.input = append(p.input, b...)
		return len(b), nil
	})
}

type inputFunc func([]byte) (int, error)

func (f inputFunc) Write(b []byte) (int, error) { return f(b) }

func (p *FakeProcess) Resize(size sandbox.Size) error {
	if p.size == nil {
		return sandbox.ErrNotInteractive
	}
	p.mu.Lock()
	hook := p.onResize
	p.mu.Unlock()
	if hook != nil {
		hook(size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, size)
	return nil
}

// OnResize runs fn at the start of every later Resize, before the size is
// recorded. A slow fn models a slow PTY.
func (p *FakeProcess) OnResize(fn func(sandbox.Size)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onResize = fn
}

func (p *FakeProcess) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.finished
}

func (p *FakeProcess) Kill() error {
	p.Finish(137)
	return nil
}

// Emit writes s to the output stream. It blocks until the bridge reads it.
func (p *FakeProcess) Emit(s string) {
	_, _ = io.WriteString(p.out, s)
}

// Finish closes the output stream and then completes with code.
func (p *FakeProcess) Finish(code int) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	p.code = code
	p.mu.Unlock()

	p.out.Close()
	p.rt.record(fmt.Sprintf("exit %s %d", p.name, code))
	p.exit <- code
	close(p.exit)
}

// InitialSize is the terminal size given at spawn, nil for batch processes.
func (p *FakeProcess) InitialSize() *sandbox.Size { return p.size }

// InputBytes returns everything written to the process's input.
func (p *FakeProcess) InputBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.input...)
}

// Resizes returns every resize request, oldest first.
func (p *FakeProcess) Resizes() []sandbox.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sandbox.Size(nil), p.resizes...)
}

// MockRuntime is a testify mock of sandbox.Runtime.
type MockRuntime struct {
	mock.Mock
}

func (m *MockRuntime) Boot(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRuntime) Mount(ctx context.Context, tree project.Tree) error {
	return m.Called(ctx, tree).Error(0)
}

func (m *MockRuntime) Spawn(ctx context.Context, command string, args []string, opts sandbox.SpawnOptions) (sandbox.Process, error) {
	a := m.Called(ctx, command, args, opts)
	if a.Get(0) == nil {
		return nil, a.Error(1)
	}
	return a.Get(0).(sandbox.Process), a.Error(1)
}

func (m *MockRuntime) WriteFile(ctx context.Context, path, contents string) error {
	return m.Called(ctx, path, contents).Error(0)
}

func (m *MockRuntime) ReadFile(ctx context.Context, path string) (string, error) {
	a := m.Called(ctx, path)
	return a.String(0), a.Error(1)
}

func (m *MockRuntime) OnServerReady(fn func(sandbox.ReadyEvent)) events.Subscription {
	a := m.Called(fn)
	if sub, ok := a.Get(0).(events.Subscription); ok {
		return sub
	}
	return events.SubscriptionFunc(func() {})
}

func (m *MockRuntime) Close() error {
	return m.Called().Error(0)
}

// NewMockRuntime creates a mock whose writes, reads, listener registration
// and Close succeed by default.
func NewMockRuntime(t *testing.T) *MockRuntime {
	t.Helper()
	m := new(MockRuntime)
	m.On("WriteFile", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("ReadFile", mock.Anything, mock.Anything).Return("", nil).Maybe()
	m.On("OnServerReady", mock.Anything).Return(nil).Maybe()
	m.On("Close").Return(nil).Maybe()
	return m
}
