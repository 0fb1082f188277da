package sandbox

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// process is a Process backed by an os/exec command.
type process struct {
	id   string
	name string
	cmd  *exec.Cmd

	output io.Reader
	input  io.Writer
	tty    *os.File // nil for batch processes
	pipe   *os.File // read end of a batch process's output

	exit chan int

	mu       sync.Mutex
	code     int
	finished bool

	closeOnce sync.Once
}

// startBatch starts cmd with stdout and stderr merged into one pipe.
func startBatch(pid, name string, cmd *exec.Cmd, sniff func([]byte)) (*process, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	w.Close()

	p := &process{
		id:   pid,
		name: name,
		cmd:  cmd,
		pipe: r,
		exit: make(chan int, 1),
	}
	p.output = &streamReader{r: r, sniff: sniff, onErr: p.closeStreams}
	return p, nil
}

// startTerminal starts cmd on a PTY of the given size.
func startTerminal(pid, name string, cmd *exec.Cmd, size Size, sniff func([]byte)) (*process, error) {
	ptmx, err := pty.StartWithSize(cmd, winsize(size))
	if err != nil {
		return nil, err
	}

	p := &process{
		id:    pid,
		name:  name,
		cmd:   cmd,
		tty:   ptmx,
		input: ptmx,
		exit:  make(chan int, 1),
	}
	p.output = &streamReader{r: ptmx, sniff: sniff, onErr: p.closeStreams}
	return p, nil
}

func winsize(size Size) *pty.Winsize {
	cols, rows := size.Cols, size.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}
}

func (p *process) ID() string        { return p.id }
func (p *process) Name() string      { return p.name }
func (p *process) Output() io.Reader { return p.output }
func (p *process) Exit() <-chan int  { return p.exit }

// Input returns the PTY for interactive processes. The explicit nil keeps
// the interface value nil for batch processes.
func (p *process) Input() io.Writer {
	if p.input == nil {
		return nil
	}
	return p.input
}

func (p *process) Resize(size Size) error {
	if p.tty == nil {
		return ErrNotInteractive
	}
	return pty.Setsize(p.tty, winsize(size))
}

func (p *process) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.finished
}

func (p *process) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	p.closeStreams()
	return err
}

// wait reaps the process and publishes its exit code.
func (p *process) wait() int {
	err := p.cmd.Wait()
	code := exitCode(p.cmd.ProcessState, err)

	p.mu.Lock()
	p.code = code
	p.finished = true
	p.mu.Unlock()

	p.exit <- code
	close(p.exit)
	return code
}

func (p *process) closeStreams() {
	p.closeOnce.Do(func() {
		if p.tty != nil {
			p.tty.Close()
		}
		if p.pipe != nil {
			p.pipe.Close()
		}
	})
}

// exitCode follows the shell convention of 128+signal for signal deaths.
func exitCode(state *os.ProcessState, err error) int {
	if state == nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ProcessState != nil {
			state = exitErr.ProcessState
		} else {
			return -1
		}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// streamReader feeds every chunk to sniff and releases the underlying
// descriptor once the stream ends. A PTY reports EIO rather than EOF after
// the last process holding it exits; both end the stream.
type streamReader struct {
	r     io.Reader
	sniff func([]byte)
	onErr func()
}

func (s *streamReader) Read(b []byte) (int, error) {
	n, err := s.r.Read(b)
	if n > 0 && s.sniff != nil {
		s.sniff(b[:n])
	}
	if err != nil {
		if s.onErr != nil {
			s.onErr()
		}
		if !errors.Is(err, io.EOF) {
			err = io.EOF
		}
	}
	return n, err
}
