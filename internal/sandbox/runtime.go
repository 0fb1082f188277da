package sandbox

import (
	"context"
	"io"

	"github.com/GriffinCanCode/devbox/internal/events"
	"github.com/GriffinCanCode/devbox/internal/project"
)

// Size is a terminal grid size.
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ReadyEvent announces that a listener inside the sandbox is reachable.
type ReadyEvent struct {
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// SpawnOptions configures a spawned process.
type SpawnOptions struct {
	// Terminal, when set, runs the process on a PTY of that size and makes
	// it interactive.
	Terminal *Size
	// Env adds KEY=VALUE entries on top of the sandbox environment.
	Env map[string]string
}

// Runtime is the sandboxed environment. One Runtime exists per top-level
// session and is passed explicitly to everything that needs it.
type Runtime interface {
	Boot(ctx context.Context) error
	Mount(ctx context.Context, tree project.Tree) error
	Spawn(ctx context.Context, command string, args []string, opts SpawnOptions) (Process, error)
	WriteFile(ctx context.Context, path, contents string) error
	ReadFile(ctx context.Context, path string) (string, error)
	// OnServerReady registers fn for readiness transitions. A server that
	// came up before the call is reported to fn once, right away.
	OnServerReady(fn func(ReadyEvent)) events.Subscription
	Close() error
}

// Process is a spawned unit of execution.
type Process interface {
	ID() string
	Name() string
	// Output is the merged output stream. It is read once, sequentially.
	Output() io.Reader
	// Input is the process's input sink, nil unless spawned with a terminal.
	Input() io.Writer
	// Resize changes the PTY size of an interactive process.
	Resize(size Size) error
	// Exit delivers the exit code once and is then closed.
	Exit() <-chan int
	// ExitCode reports the exit code once the process has finished.
	ExitCode() (int, bool)
	Kill() error
}

// Wait blocks until p exits or ctx is done.
func Wait(ctx context.Context, p Process) (int, error) {
	select {
	case code, ok := <-p.Exit():
		if !ok {
			code, _ = p.ExitCode()
		}
		return code, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
