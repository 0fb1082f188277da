// Package id provides prefixed ULID generation for sandbox objects.
//
// IDs are lexicographically sortable and carry a short type prefix so log
// lines stay readable (proc_*, view_*, env_*, req_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ProcessID identifies a process spawned inside the sandbox
type ProcessID string

// ViewerID identifies a connected terminal/preview viewer
type ViewerID string

// EnvironmentID identifies one booted environment
type EnvironmentID string

// RequestID identifies one HTTP request
type RequestID string

const (
	ProcessPrefix     = "proc"
	ViewerPrefix      = "view"
	EnvironmentPrefix = "env"
	RequestPrefix     = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewProcessID generates a new process ID
func NewProcessID() ProcessID {
	return ProcessID(Default().GenerateWithPrefix(ProcessPrefix))
}

// NewViewerID generates a new viewer ID
func NewViewerID() ViewerID {
	return ViewerID(Default().GenerateWithPrefix(ViewerPrefix))
}

// NewEnvironmentID generates a new environment ID
func NewEnvironmentID() EnvironmentID {
	return EnvironmentID(Default().GenerateWithPrefix(EnvironmentPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id ProcessID) String() string     { return string(id) }
func (id ViewerID) String() string      { return string(id) }
func (id EnvironmentID) String() string { return string(id) }
func (id RequestID) String() string     { return string(id) }

// IsValid reports whether id is a ULID, with or without a type prefix
func IsValid(id string) bool {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the creation time from a (possibly prefixed) ID
func Timestamp(id string) (time.Time, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
