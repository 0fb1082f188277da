package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{ProcessPrefix, ViewerPrefix, EnvironmentPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, id)
		}
		if !IsValid(id) {
			t.Errorf("prefixed ID should be valid: %s", id)
		}
	}
}

func TestTypedIDs(t *testing.T) {
	if !strings.HasPrefix(NewProcessID().String(), "proc_") {
		t.Error("ProcessID should start with 'proc_'")
	}
	if !strings.HasPrefix(NewViewerID().String(), "view_") {
		t.Error("ViewerID should start with 'view_'")
	}
	if !strings.HasPrefix(NewEnvironmentID().String(), "env_") {
		t.Error("EnvironmentID should start with 'env_'")
	}
	if !strings.HasPrefix(NewRequestID().String(), "req_") {
		t.Error("RequestID should start with 'req_'")
	}
}

func TestIsValidRejectsGarbage(t *testing.T) {
	if IsValid("proc_not-a-ulid") {
		t.Error("garbage should not be valid")
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewProcessID().String())
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) {
		t.Errorf("timestamp %v should not precede %v", ts, before)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate().String()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d unique IDs, got %d", n, len(seen))
	}
}
