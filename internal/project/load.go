package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultIgnore keeps dependency and build output out of snapshots.
var DefaultIgnore = []string{
	"node_modules",
	"node_modules/**",
	".next/**",
	".git/**",
	"**/.DS_Store",
}

// LoadDir builds a Tree from the text files under root. Paths matching any
// ignore glob (slash-separated, relative to root) are skipped, as are binary
// files. Empty directories are kept.
func LoadDir(ctx context.Context, root string, ignore []string) (Tree, error) {
	for _, pattern := range ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	type entry struct {
		rel      string
		dir      bool
		contents string
	}

	var (
		mu      sync.Mutex
		entries []entry
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil
		}
		if p == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if ignored(rel, ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			mu.Lock()
			entries = append(entries, entry{rel: rel, dir: true})
			mu.Unlock()
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		data, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil
		}
		if !isText(data) {
			return nil
		}

		mu.Lock()
		entries = append(entries, entry{rel: rel, contents: string(data)})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	tree := Tree{}
	for _, e := range entries {
		segs := strings.Split(e.rel, "/")
		cur := tree
		for _, seg := range segs[:len(segs)-1] {
			node, ok := cur[seg]
			if !ok {
				node = DirNode(nil)
				cur[seg] = node
			}
			cur = node.Directory
		}
		last := segs[len(segs)-1]
		if e.dir {
			if _, ok := cur[last]; !ok {
				cur[last] = DirNode(nil)
			}
			continue
		}
		cur[last] = FileNode(e.contents)
	}
	return tree, nil
}

func ignored(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
