// Package bridge connects process streams to the terminal surface.
//
// PipeOutput forwards a process's output to a sink until the output ends.
// PipeInput forwards keystroke events to a process's input. Neither applies
// backpressure, and neither surfaces errors to the caller: a sink that stops
// accepting writes is treated as a broken pipe and ignored.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/devbox/internal/events"
)

const chunkSize = 4096

// Outcome records how an output pipe ended.
type Outcome int

const (
	// OutcomeRunning means the pipe has not finished.
	OutcomeRunning Outcome = iota
	// OutcomeClosed means the source reached EOF or a read error.
	OutcomeClosed
	// OutcomeIgnored means the sink failed; later chunks were discarded.
	OutcomeIgnored
	// OutcomeCancelled means the context ended before the source did.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeClosed:
		return "closed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Option configures PipeOutput.
type Option func(*Pipe)

// WithCounter calls fn with the size of every chunk delivered to the sink.
func WithCounter(fn func(n int)) Option {
	return func(p *Pipe) { p.count = fn }
}

// Pipe is a running output forward.
type Pipe struct {
	name  string
	count func(int)
	bytes atomic.Int64

	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	outcome Outcome
	err     error
}

// PipeOutput starts forwarding src to sink in the background and returns
// immediately. Chunks reach sink in the order they were read. When sink
// fails, the pipe keeps draining src so the producer never blocks, but
// writes nothing more. Cancelling ctx finishes the pipe at once; src is
// still drained in the background.
func PipeOutput(ctx context.Context, name string, src io.Reader, sink io.Writer, opts ...Option) *Pipe {
	p := &Pipe{
		name: name,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.run(ctx, src, sink)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.finish(OutcomeCancelled, ctx.Err())
			case <-p.done:
			}
		}()
	}
	return p
}

func (p *Pipe) run(ctx context.Context, src io.Reader, sink io.Writer) {
	buf := make([]byte, chunkSize)
	var sinkErr error

	for {
		n, err := src.Read(buf)
		if n > 0 && sinkErr == nil && ctx.Err() == nil {
			if _, werr := sink.Write(buf[:n]); werr != nil {
				sinkErr = werr
			} else {
				p.bytes.Add(int64(n))
				if p.count != nil {
					p.count(n)
				}
			}
		}
		if err != nil {
			if sinkErr != nil {
				p.finish(OutcomeIgnored, sinkErr)
			} else if errors.Is(err, io.EOF) {
				p.finish(OutcomeClosed, nil)
			} else {
				p.finish(OutcomeClosed, err)
			}
			return
		}
	}
}

func (p *Pipe) finish(o Outcome, err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.outcome = o
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

// Name returns the label given to PipeOutput.
func (p *Pipe) Name() string { return p.name }

// Done is closed when the pipe finishes.
func (p *Pipe) Done() <-chan struct{} { return p.done }

// Wait blocks until the pipe finishes or ctx is done.
func (p *Pipe) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome reports how the pipe ended, or OutcomeRunning.
func (p *Pipe) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

// Err returns the read, write or context error that ended the pipe, if any.
func (p *Pipe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Bytes returns the number of bytes delivered to the sink.
func (p *Pipe) Bytes() int64 { return p.bytes.Load() }

// PipeInput forwards every value emitted by source to sink, verbatim and in
// emission order. Write errors are dropped. A nil sink forwards nothing.
func PipeInput(source *events.Source[[]byte], sink io.Writer) events.Subscription {
	if sink == nil {
		return events.SubscriptionFunc(func() {})
	}
	return source.Subscribe(func(b []byte) {
		if len(b) == 0 {
			return
		}
		_, _ = sink.Write(b)
	})
}
