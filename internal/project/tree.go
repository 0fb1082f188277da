// Package project describes the initial contents of the sandbox workspace.
//
// A Tree mirrors the mount format the sandbox consumes: each entry is either
// a file node holding literal text or a directory node holding another Tree.
package project

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ErrMalformedTree is returned when a tree cannot be mounted as-is.
var ErrMalformedTree = errors.New("malformed file tree")

// Tree maps child names to nodes. Map keys keep sibling names unique.
type Tree map[string]Node

// Node is exactly one of a file or a directory.
type Node struct {
	File      *File `yaml:"file,omitempty" json:"file,omitempty"`
	Directory Tree  `yaml:"directory,omitempty" json:"directory,omitempty"`
}

// File is a file node's payload.
type File struct {
	Contents string `yaml:"contents" json:"contents"`
}

// FileNode builds a file node.
func FileNode(contents string) Node {
	return Node{File: &File{Contents: contents}}
}

// DirNode builds a directory node.
func DirNode(children Tree) Node {
	if children == nil {
		children = Tree{}
	}
	return Node{Directory: children}
}

// IsFile reports whether n is a file node.
func (n Node) IsFile() bool { return n.File != nil && n.Directory == nil }

// IsDir reports whether n is a directory node.
func (n Node) IsDir() bool { return n.File == nil && n.Directory != nil }

// Validate checks every node recursively.
func (t Tree) Validate() error {
	return t.validate("")
}

func (t Tree) validate(prefix string) error {
	for name, node := range t {
		p := path.Join(prefix, name)
		if err := validName(name); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrMalformedTree, p, err)
		}
		switch {
		case node.File != nil && node.Directory != nil:
			return fmt.Errorf("%w: %q is both a file and a directory", ErrMalformedTree, p)
		case node.File == nil && node.Directory == nil:
			return fmt.Errorf("%w: %q is neither a file nor a directory", ErrMalformedTree, p)
		case node.Directory != nil:
			if err := node.Directory.validate(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func validName(name string) error {
	switch {
	case name == "":
		return errors.New("empty name")
	case name == "." || name == "..":
		return errors.New("relative segment")
	case strings.ContainsAny(name, "/\\"):
		return errors.New("name contains a path separator")
	case strings.ContainsRune(name, 0):
		return errors.New("name contains NUL")
	}
	return nil
}

// Lookup returns the contents of the file at p ("pages/index.tsx").
func (t Tree) Lookup(p string) (string, bool) {
	node, ok := t.node(p)
	if !ok || !node.IsFile() {
		return "", false
	}
	return node.File.Contents, true
}

func (t Tree) node(p string) (Node, bool) {
	segs := Split(p)
	if len(segs) == 0 {
		return Node{}, false
	}
	cur := t
	for i, seg := range segs {
		node, ok := cur[seg]
		if !ok {
			return Node{}, false
		}
		if i == len(segs)-1 {
			return node, true
		}
		if !node.IsDir() {
			return Node{}, false
		}
		cur = node.Directory
	}
	return Node{}, false
}

// Paths returns every file path in the tree, sorted.
func (t Tree) Paths() []string {
	var out []string
	t.Walk(func(p string, _ string) {
		out = append(out, p)
	})
	sort.Strings(out)
	return out
}

// Walk calls fn for every file, depth first in name order.
func (t Tree) Walk(fn func(path, contents string)) {
	t.walk("", fn)
}

func (t Tree) walk(prefix string, fn func(string, string)) {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := t[name]
		p := path.Join(prefix, name)
		if node.File != nil {
			fn(p, node.File.Contents)
		}
		if node.Directory != nil {
			node.Directory.walk(p, fn)
		}
	}
}

// Clone deep-copies the tree.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for name, node := range t {
		var c Node
		if node.File != nil {
			f := *node.File
			c.File = &f
		}
		if node.Directory != nil {
			c.Directory = node.Directory.Clone()
		}
		out[name] = c
	}
	return out
}

// WithFile returns a copy of t with the file at p set to contents,
// creating intermediate directories as needed.
func (t Tree) WithFile(p, contents string) (Tree, error) {
	segs := Split(p)
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrMalformedTree)
	}
	out := t.Clone()
	if out == nil {
		out = Tree{}
	}
	cur := out
	for _, seg := range segs[:len(segs)-1] {
		node, ok := cur[seg]
		if !ok {
			node = DirNode(nil)
			cur[seg] = node
		}
		if !node.IsDir() {
			return nil, fmt.Errorf("%w: %q is not a directory", ErrMalformedTree, seg)
		}
		cur = node.Directory
	}
	cur[segs[len(segs)-1]] = FileNode(contents)
	return out, out.Validate()
}

// Split cleans p and returns its segments, ignoring a leading slash.
func Split(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
