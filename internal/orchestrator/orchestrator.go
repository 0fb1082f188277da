// Package orchestrator sequences the development environment.
//
// Start boots the sandbox, mounts the project, installs dependencies, starts
// the dev server and finally starts an interactive shell wired to the
// terminal surface:
//
//	Idle → Booting → Mounting → Installing → ServingStarting → ShellStarting → Running
//
// The install step is the only barrier: the dev server is spawned strictly
// after the installer exits, whatever its exit code. Boot, mount and spawn
// failures are fatal and end the sequence. The orchestrator never stops
// processes; they belong to the runtime.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbox/internal/bridge"
	"github.com/GriffinCanCode/devbox/internal/editor"
	"github.com/GriffinCanCode/devbox/internal/events"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/devbox/internal/preview"
	"github.com/GriffinCanCode/devbox/internal/project"
	"github.com/GriffinCanCode/devbox/internal/sandbox"
	"github.com/GriffinCanCode/devbox/internal/shared/id"
	"github.com/GriffinCanCode/devbox/internal/terminal"
)

// Process roles, used in logs and metrics.
const (
	RoleInstall = "install"
	RoleDev     = "dev"
	RoleShell   = "shell"
)

// Config holds the commands run by the sequence.
type Config struct {
	Install Command
	Dev     Command
	Shell   Command
	// DrainTimeout bounds how long install output may trail the exit.
	DrainTimeout time.Duration
}

// DefaultConfig runs npm and a POSIX shell.
func DefaultConfig() Config {
	return Config{
		Install:      MustParseCommand("npm install"),
		Dev:          MustParseCommand("npm run dev"),
		Shell:        MustParseCommand("/bin/sh"),
		DrainTimeout: 2 * time.Second,
	}
}

// Recorder observes the sequence. All methods must be safe for concurrent use.
type Recorder interface {
	editor.Recorder
	RecordStateChange(state string)
	RecordProcessSpawned(role string)
	RecordProcessExited(role string, code int)
	RecordBridgedBytes(role string, n int)
	RecordReadyEvent(port int)
}

type nopRecorder struct{}

func (nopRecorder) RecordFileWrite(string, error)   {}
func (nopRecorder) RecordStateChange(string)        {}
func (nopRecorder) RecordProcessSpawned(string)     {}
func (nopRecorder) RecordProcessExited(string, int) {}
func (nopRecorder) RecordBridgedBytes(string, int)  {}
func (nopRecorder) RecordReadyEvent(int)            {}

// Deps are the collaborators of one environment.
type Deps struct {
	Runtime  sandbox.Runtime
	Tree     project.Tree
	Terminal *terminal.Surface
	Buffer   *editor.Buffer
	Logger   *zap.Logger
	Recorder Recorder
	// EditorOptions configure the edit sync, e.g. debouncing.
	EditorOptions []editor.Option
}

// Orchestrator runs the startup sequence once and owns the listeners it
// installs.
type Orchestrator struct {
	id      id.EnvironmentID
	cfg     Config
	rt      sandbox.Runtime
	tree    project.Tree
	term    *terminal.Surface
	buf     *editor.Buffer
	sync    *editor.Sync
	preview *preview.Redirector
	logger  *zap.Logger
	rec     Recorder

	mu      sync.RWMutex
	state   State
	started bool
	closed  bool
	err     error
	shell   sandbox.Process

	// resizeMu keeps each fit and its shell resize together, and covers
	// reading the grid for the shell spawn.
	resizeMu sync.Mutex

	subs     events.Group
	states   events.Source[State]
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an idle orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultConfig().DrainTimeout
	}

	envID := id.NewEnvironmentID()
	logger = logging.WithEnvironment(logger.Named("orchestrator"), envID.String())

	opts := append([]editor.Option{editor.WithRecorder(rec)}, deps.EditorOptions...)
	return &Orchestrator{
		id:      envID,
		cfg:     cfg,
		rt:      deps.Runtime,
		tree:    deps.Tree,
		term:    deps.Terminal,
		buf:     deps.Buffer,
		sync:    editor.NewSync(deps.Runtime, deps.Buffer, logger, opts...),
		preview: preview.New(deps.Terminal, logger),
		logger:  logger,
		rec:     rec,
		done:    make(chan struct{}),
	}
}

// ID identifies the environment in logs.
func (o *Orchestrator) ID() id.EnvironmentID { return o.id }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Err returns the fatal error that ended Start, if any.
func (o *Orchestrator) Err() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.err
}

// States publishes every state change.
func (o *Orchestrator) States() *events.Source[State] { return &o.states }

// Preview returns the preview redirector.
func (o *Orchestrator) Preview() *preview.Redirector { return o.preview }

// Shell returns the shell process once it has been spawned.
func (o *Orchestrator) Shell() sandbox.Process {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.shell
}

// Done is closed when Start returns, or when Start is called on a closed
// orchestrator.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

func (o *Orchestrator) finish() { o.doneOnce.Do(func() { close(o.done) }) }

// Start runs the sequence. Only the first call does anything; later calls
// return nil at once.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started || o.closed {
		closed := o.closed
		o.mu.Unlock()
		if closed {
			o.finish()
		}
		return nil
	}
	o.started = true
	o.mu.Unlock()
	defer o.finish()

	// Viewers may report their viewport at any point, often during the
	// install. The grid follows from now on; the shell joins once spawned.
	o.track(o.term.Resizes().Subscribe(o.resize))

	o.logger.Info("Starting environment",
		zap.Stringer("install", o.cfg.Install),
		zap.Stringer("dev", o.cfg.Dev),
		zap.Stringer("shell", o.cfg.Shell),
	)

	err := o.run(ctx)
	if err != nil {
		o.mu.Lock()
		o.err = err
		o.mu.Unlock()

		o.logger.Error("Environment failed", zap.Error(err))
		_ = o.term.Writeln("\r\nError: " + err.Error())
	}
	return err
}

func (o *Orchestrator) run(ctx context.Context) error {
	o.setState(Booting)
	if err := o.rt.Boot(ctx); err != nil {
		return &StageError{State: Booting, Err: err}
	}

	o.setState(Mounting)
	if content, ok := o.tree.Lookup(o.buf.Path()); ok {
		o.buf.Seed(content)
	}
	if err := o.rt.Mount(ctx, o.tree); err != nil {
		return &StageError{State: Mounting, Err: err}
	}
	o.sync.Activate(ctx)

	o.setState(Installing)
	if err := o.install(ctx); err != nil {
		return &StageError{State: Installing, Err: err}
	}

	o.setState(ServingStarting)
	_ = o.term.Writeln("Starting dev server...")
	dev, err := o.spawn(ctx, RoleDev, o.cfg.Dev, nil)
	if err != nil {
		return &StageError{State: ServingStarting, Err: err}
	}
	o.pipe(ctx, RoleDev, dev)
	go o.watch(RoleDev, dev)

	o.setState(ShellStarting)
	o.track(o.preview.Follow(o.rt, func(ev sandbox.ReadyEvent) {
		o.rec.RecordReadyEvent(ev.Port)
	}))

	shell, err := o.spawnShell(ctx)
	if err != nil {
		return &StageError{State: ShellStarting, Err: err}
	}
	go o.watch(RoleShell, shell)

	o.track(bridge.PipeInput(o.term.Input(), shell.Input()))
	o.pipe(ctx, RoleShell, shell)

	o.setState(Running)
	return nil
}

// spawnShell starts the shell at the current grid. Holding resizeMu means
// a viewport reported meanwhile is applied to the shell right after.
func (o *Orchestrator) spawnShell(ctx context.Context) (sandbox.Process, error) {
	o.resizeMu.Lock()
	defer o.resizeMu.Unlock()

	size := o.term.Size()
	shell, err := o.spawn(ctx, RoleShell, o.cfg.Shell, &sandbox.Size{Cols: size.Cols, Rows: size.Rows})
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.shell = shell
	o.mu.Unlock()
	return shell, nil
}

// resize fits the terminal to v and gives the shell the fitted grid.
func (o *Orchestrator) resize(v terminal.Viewport) {
	o.resizeMu.Lock()
	defer o.resizeMu.Unlock()

	fitted := o.term.Fit(v)
	shell := o.Shell()
	if shell == nil {
		return
	}
	if err := shell.Resize(sandbox.Size{Cols: fitted.Cols, Rows: fitted.Rows}); err != nil {
		o.logger.Debug("Shell resize failed", zap.Error(err))
	}
}

// install runs the installer to completion. A non-zero exit is reported on
// the terminal and is not an error.
func (o *Orchestrator) install(ctx context.Context) error {
	_ = o.term.Writeln("Installing dependencies...")

	proc, err := o.spawn(ctx, RoleInstall, o.cfg.Install, nil)
	if err != nil {
		return err
	}
	out := o.pipe(ctx, RoleInstall, proc)

	code, err := sandbox.Wait(ctx, proc)
	if err != nil {
		return err
	}
	o.rec.RecordProcessExited(RoleInstall, code)

	// Let the output finish so the status line lands after it.
	drainCtx, cancel := context.WithTimeout(ctx, o.cfg.DrainTimeout)
	defer cancel()
	if err := out.Wait(drainCtx); err != nil {
		o.logger.Warn("Install output still open after exit", zap.Error(err))
	}

	if code != 0 {
		o.logger.Warn("Installation failed", zap.Int("exit_code", code))
		_ = o.term.Writeln(fmt.Sprintf("\r\nInstallation failed with exit code %d", code))
		return nil
	}
	o.logger.Info("Installation completed")
	_ = o.term.Writeln("\r\nInstallation completed successfully")
	return nil
}

func (o *Orchestrator) spawn(ctx context.Context, role string, cmd Command, size *sandbox.Size) (sandbox.Process, error) {
	proc, err := o.rt.Spawn(ctx, cmd.Name, cmd.Args, sandbox.SpawnOptions{Terminal: size})
	if err != nil {
		return nil, err
	}
	o.rec.RecordProcessSpawned(role)
	logging.ForProcess(o.logger, role, proc.ID()).Info("Process started", zap.Stringer("command", cmd))
	return proc, nil
}

func (o *Orchestrator) pipe(ctx context.Context, role string, proc sandbox.Process) *bridge.Pipe {
	return bridge.PipeOutput(ctx, role, proc.Output(), o.term,
		bridge.WithCounter(func(n int) { o.rec.RecordBridgedBytes(role, n) }),
	)
}

// watch records the exit of a process nobody waits for.
func (o *Orchestrator) watch(role string, proc sandbox.Process) {
	code, ok := <-proc.Exit()
	if !ok {
		code, _ = proc.ExitCode()
	}
	o.rec.RecordProcessExited(role, code)
	logging.ForProcess(o.logger, role, proc.ID()).Info("Process exited", zap.Int("exit_code", code))
}

// track keeps sub for Close, or drops it at once if Close already ran.
func (o *Orchestrator) track(sub events.Subscription) {
	o.mu.RLock()
	closed := o.closed
	o.mu.RUnlock()

	if closed {
		sub.Unsubscribe()
		return
	}
	o.subs.Add(sub)
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()

	o.rec.RecordStateChange(s.String())
	o.logger.Debug("State changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	o.states.Emit(s)
}

// Close removes the resize, input and ready listeners, stops edit syncing
// and disposes the terminal. Running processes are left to the runtime.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.subs.Unsubscribe()
	o.sync.Close()
	o.term.Dispose()
	o.logger.Info("Environment torn down")
	return nil
}
