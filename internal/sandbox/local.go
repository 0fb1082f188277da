package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbox/internal/events"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/devbox/internal/project"
	"github.com/GriffinCanCode/devbox/internal/shared/id"
)

// Config configures the local runtime.
type Config struct {
	// WorkspaceDir is the sandbox root. Empty means a fresh temp directory.
	WorkspaceDir string
	// KeepWorkspace leaves the workspace on disk after Close.
	KeepWorkspace bool
	// ReadyPorts are probed for readiness from boot onwards.
	ReadyPorts []int
	// ProbeInterval is the readiness probe period.
	ProbeInterval time.Duration
	// URLTemplate turns a port into the announced URL (one %d verb).
	URLTemplate string
	// Env is added to every spawned process.
	Env map[string]string
}

// DefaultConfig returns the local runtime defaults.
func DefaultConfig() Config {
	return Config{
		ReadyPorts:    []int{3000},
		ProbeInterval: 500 * time.Millisecond,
		URLTemplate:   "http://localhost:%d",
	}
}

// Local runs the sandbox as a private directory on the host with processes
// started through os/exec.
type Local struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	root     string
	ownsRoot bool
	booted   bool
	closed   bool
	cancel   context.CancelFunc

	procs   sync.Map // map[string]*process
	ready   events.Source[ReadyEvent]
	watcher *portWatcher
}

// NewLocal creates an unbooted local runtime.
func NewLocal(cfg Config, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultConfig().ProbeInterval
	}
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultConfig().URLTemplate
	}

	l := &Local{
		cfg:    cfg,
		logger: logger.Named("sandbox"),
	}
	l.watcher = newPortWatcher(cfg.ProbeInterval, cfg.URLTemplate, l.ready.Emit)
	for _, port := range cfg.ReadyPorts {
		l.watcher.Watch(port)
	}
	return l
}

// Root returns the workspace directory, empty before boot.
func (l *Local) Root() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.root
}

// Boot prepares the workspace and starts readiness probing.
// Booting twice is a no-op.
func (l *Local) Boot(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return newError(KindBoot, "boot", "", ErrClosed)
	}
	if l.booted {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return newError(KindBoot, "boot", "", err)
	}

	root := l.cfg.WorkspaceDir
	owns := false
	if root == "" {
		dir, err := os.MkdirTemp("", "devbox-")
		if err != nil {
			return newError(KindBoot, "boot", "", err)
		}
		root, owns = dir, true
	} else if err := os.MkdirAll(root, 0o755); err != nil {
		return newError(KindBoot, "boot", root, err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return newError(KindBoot, "boot", root, err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return errorf(KindBoot, "boot", abs, "workspace is not a directory")
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	go l.watcher.Run(watchCtx)

	l.root = abs
	l.ownsRoot = owns
	l.cancel = cancel
	l.booted = true

	l.logger.Info("Sandbox booted",
		zap.String("workspace", abs),
		zap.Ints("ready_ports", l.watcher.Ports()),
	)
	return nil
}

func (l *Local) bootedRoot(kind Kind, op string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return "", newError(kind, op, "", ErrClosed)
	}
	if !l.booted {
		return "", newError(kind, op, "", ErrNotBooted)
	}
	return l.root, nil
}

// Mount materialises tree inside the workspace.
func (l *Local) Mount(ctx context.Context, tree project.Tree) error {
	root, err := l.bootedRoot(KindMount, "mount")
	if err != nil {
		return err
	}
	if err := tree.Validate(); err != nil {
		return newError(KindMount, "mount", "", err)
	}

	files := 0
	if err := materialize(ctx, root, tree, &files); err != nil {
		return newError(KindMount, "mount", "", err)
	}

	l.logger.Info("Project mounted", zap.Int("files", files))
	return nil
}

func materialize(ctx context.Context, dir string, tree project.Tree, files *int) error {
	for name, node := range tree {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(dir, name)
		if node.IsDir() {
			if err := os.MkdirAll(p, 0o755); err != nil {
				return err
			}
			if err := materialize(ctx, p, node.Directory, files); err != nil {
				return err
			}
			continue
		}
		if err := os.WriteFile(p, []byte(node.File.Contents), 0o644); err != nil {
			return err
		}
		*files++
	}
	return nil
}

// resolve maps a sandbox path ("/pages/index.tsx" or "pages/index.tsx")
// onto the host, refusing anything outside the workspace.
func resolve(root, p string) (string, error) {
	segs := project.Split(p)
	if len(segs) == 0 {
		return "", ErrOutsideRoot
	}
	full := filepath.Join(append([]string{root}, segs...)...)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// WriteFile replaces the full contents of the file at path. The parent
// directory must already exist.
func (l *Local) WriteFile(ctx context.Context, path, contents string) error {
	root, err := l.bootedRoot(KindWrite, "write")
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return newError(KindWrite, "write", path, err)
	}

	full, err := resolve(root, path)
	if err != nil {
		return newError(KindWrite, "write", path, err)
	}
	info, err := os.Stat(filepath.Dir(full))
	if err != nil {
		return newError(KindWrite, "write", path, err)
	}
	if !info.IsDir() {
		return errorf(KindWrite, "write", path, "parent is not a directory")
	}
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		return newError(KindWrite, "write", path, err)
	}
	return nil
}

// ReadFile returns the contents of the file at path.
func (l *Local) ReadFile(ctx context.Context, path string) (string, error) {
	root, err := l.bootedRoot(KindRead, "read")
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", newError(KindRead, "read", path, err)
	}

	full, err := resolve(root, path)
	if err != nil {
		return "", newError(KindRead, "read", path, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", newError(KindRead, "read", path, err)
	}
	return string(data), nil
}

// Snapshot reads the workspace back into a tree, skipping ignore globs.
func (l *Local) Snapshot(ctx context.Context, ignore []string) (project.Tree, error) {
	root, err := l.bootedRoot(KindRead, "snapshot")
	if err != nil {
		return nil, err
	}
	tree, err := project.LoadDir(ctx, root, ignore)
	if err != nil {
		return nil, newError(KindRead, "snapshot", "", err)
	}
	return tree, nil
}

// Spawn starts command inside the workspace.
func (l *Local) Spawn(ctx context.Context, command string, args []string, opts SpawnOptions) (Process, error) {
	root, err := l.bootedRoot(KindSpawn, "spawn")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(KindSpawn, "spawn", command, err)
	}

	env := l.environ(root, opts)
	resolved, err := lookPath(command, root, envValue(env, "PATH"))
	if err != nil {
		return nil, newError(KindSpawn, "spawn", command, err)
	}

	cmd := exec.Command(resolved, args...)
	cmd.Dir = root
	cmd.Env = env

	name := strings.TrimSpace(command + " " + strings.Join(args, " "))
	pid := id.NewProcessID().String()

	var proc *process
	if opts.Terminal != nil {
		proc, err = startTerminal(pid, name, cmd, *opts.Terminal, l.watcher.Sniff)
	} else {
		proc, err = startBatch(pid, name, cmd, l.watcher.Sniff)
	}
	if err != nil {
		return nil, newError(KindSpawn, "spawn", command, err)
	}

	l.procs.Store(pid, proc)
	go l.monitor(proc)

	l.logger.Info("Process spawned",
		zap.String(logging.FieldProcess, pid),
		zap.String("command", name),
		zap.Bool("interactive", opts.Terminal != nil),
		zap.Int("pid", cmd.Process.Pid),
	)
	return proc, nil
}

func (l *Local) monitor(p *process) {
	code := p.wait()
	l.procs.Delete(p.id)
	l.logger.Info("Process exited",
		zap.String(logging.FieldProcess, p.id),
		zap.String("command", p.name),
		zap.Int("exit_code", code),
	)
}

func (l *Local) environ(root string, opts SpawnOptions) []string {
	env := os.Environ()
	path := filepath.Join(root, "node_modules", ".bin")
	if cur := envValue(env, "PATH"); cur != "" {
		path += string(os.PathListSeparator) + cur
	}
	env = setEnv(env, "PATH", path)
	if opts.Terminal != nil {
		env = setEnv(env, "TERM", "xterm-256color")
	}
	for k, v := range l.cfg.Env {
		env = setEnv(env, k, v)
	}
	for k, v := range opts.Env {
		env = setEnv(env, k, v)
	}
	return env
}

// OnServerReady registers fn for every readiness transition. Ports that
// are already open are delivered to fn before it returns.
func (l *Local) OnServerReady(fn func(ReadyEvent)) events.Subscription {
	var sub events.Subscription
	l.watcher.replay(func() { sub = l.ready.Subscribe(fn) }, fn)
	return sub
}

// Close kills remaining processes, stops probing and removes an owned
// workspace unless configured to keep it.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	root, owns, cancel := l.root, l.ownsRoot, l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs []error
	l.procs.Range(func(key, value interface{}) bool {
		if err := value.(*process).Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill %s: %w", key, err))
		}
		return true
	})

	if owns && !l.cfg.KeepWorkspace && root != "" {
		if err := os.RemoveAll(root); err != nil {
			errs = append(errs, err)
		}
	}

	l.logger.Info("Sandbox closed", zap.String("workspace", root))
	return errors.Join(errs...)
}

func lookPath(command, root, pathEnv string) (string, error) {
	if command == "" {
		return "", errors.New("empty command")
	}
	if strings.ContainsRune(command, filepath.Separator) || strings.Contains(command, "/") {
		p := command
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if isExecutable(p) {
			return p, nil
		}
		return "", fmt.Errorf("%s: %w", command, exec.ErrNotFound)
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			dir = root
		}
		p := filepath.Join(dir, command)
		if isExecutable(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", command, exec.ErrNotFound)
}

func isExecutable(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0o111 != 0
}

func envValue(env []string, key string) string {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return env[i][len(prefix):]
		}
	}
	return ""
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	out := env[:0:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, prefix+value)
}
