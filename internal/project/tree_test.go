package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplate(t *testing.T) {
	tree, err := DefaultTemplate()
	require.NoError(t, err)

	content, ok := tree.Lookup(DefaultEditablePath)
	require.True(t, ok)
	assert.Contains(t, content, "export default function Home")

	pkg, ok := tree.Lookup("package.json")
	require.True(t, ok)
	assert.Contains(t, pkg, `"dev": "next dev"`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tree    Tree
		wantErr bool
	}{
		{
			name: "valid nested",
			tree: Tree{
				"a.txt": FileNode("a"),
				"dir":   DirNode(Tree{"b.txt": FileNode("b")}),
			},
		},
		{
			name: "empty directory",
			tree: Tree{"empty": DirNode(nil)},
		},
		{
			name:    "neither file nor directory",
			tree:    Tree{"x": Node{}},
			wantErr: true,
		},
		{
			name:    "both file and directory",
			tree:    Tree{"x": Node{File: &File{}, Directory: Tree{}}},
			wantErr: true,
		},
		{
			name:    "separator in name",
			tree:    Tree{"a/b": FileNode("")},
			wantErr: true,
		},
		{
			name:    "parent segment",
			tree:    Tree{"dir": DirNode(Tree{"..": FileNode("")})},
			wantErr: true,
		},
		{
			name:    "empty name",
			tree:    Tree{"": FileNode("")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tree.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedTree), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	tree := Tree{
		"pages": DirNode(Tree{"index.tsx": FileNode("index")}),
		"top":   FileNode("top"),
	}

	got, ok := tree.Lookup("/pages/index.tsx")
	assert.True(t, ok)
	assert.Equal(t, "index", got)

	_, ok = tree.Lookup("pages")
	assert.False(t, ok, "directories have no contents")

	_, ok = tree.Lookup("top/child")
	assert.False(t, ok)

	_, ok = tree.Lookup("")
	assert.False(t, ok)
}

func TestPathsSorted(t *testing.T) {
	tree := Tree{
		"z.txt": FileNode(""),
		"a":     DirNode(Tree{"b.txt": FileNode(""), "a.txt": FileNode("")}),
	}
	assert.Equal(t, []string{"a/a.txt", "a/b.txt", "z.txt"}, tree.Paths())
}

func TestCloneIsDeep(t *testing.T) {
	orig := Tree{"dir": DirNode(Tree{"f": FileNode("one")})}
	clone := orig.Clone()
	clone["dir"].Directory["f"].File.Contents = "two"

	got, _ := orig.Lookup("dir/f")
	assert.Equal(t, "one", got)
}

func TestWithFile(t *testing.T) {
	orig := Tree{"pages": DirNode(Tree{"index.tsx": FileNode("old")})}

	next, err := orig.WithFile("pages/index.tsx", "new")
	require.NoError(t, err)
	got, _ := next.Lookup("pages/index.tsx")
	assert.Equal(t, "new", got)

	prev, _ := orig.Lookup("pages/index.tsx")
	assert.Equal(t, "old", prev, "original must stay untouched")

	deep, err := orig.WithFile("lib/util/x.ts", "x")
	require.NoError(t, err)
	got, _ = deep.Lookup("lib/util/x.ts")
	assert.Equal(t, "x", got)

	_, err = orig.WithFile("pages/index.tsx/child", "x")
	assert.ErrorIs(t, err, ErrMalformedTree)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte("a.txt:\n  nope: true\n"))
	assert.ErrorIs(t, err, ErrMalformedTree)

	_, err = Decode([]byte(": [unbalanced"))
	assert.ErrorIs(t, err, ErrMalformedTree)
}

func TestEncodeDecodeTemplate(t *testing.T) {
	tree, err := DefaultTemplate()
	require.NoError(t, err)

	data, err := Encode(tree)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, tree.Paths(), back.Paths())
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	write := func(rel, contents string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	}
	write("package.json", `{"name":"x"}`)
	write("pages/index.tsx", "export default () => null;\n")
	write("node_modules/next/index.js", "module.exports = {};\n")
	write("public/logo.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	tree, err := LoadDir(context.Background(), root, DefaultIgnore)
	require.NoError(t, err)

	assert.Equal(t, []string{"package.json", "pages/index.tsx"}, tree.Paths())
	got, _ := tree.Lookup("pages/index.tsx")
	assert.Equal(t, "export default () => null;\n", got)
	assert.True(t, tree["empty"].IsDir())
	_, hasModules := tree["node_modules"]
	assert.False(t, hasModules)
}

func TestLoadDirInvalidPattern(t *testing.T) {
	_, err := LoadDir(context.Background(), t.TempDir(), []string{"[unclosed"})
	assert.Error(t, err)
}
