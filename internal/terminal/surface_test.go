package terminal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("gone") }

func TestViewportDimensions(t *testing.T) {
	tests := []struct {
		name string
		in   Viewport
		want Size
		ok   bool
	}{
		{"grid", Viewport{Cols: 120, Rows: 40}, Size{120, 40}, true},
		{"grid below minimum", Viewport{Cols: 1, Rows: 1}, Size{2, 1}, true},
		{"pixels", Viewport{Width: 812, Height: 410, CellWidth: 9, CellHeight: 17}, Size{90, 24}, true},
		{"tiny pixels", Viewport{Width: 5, Height: 5, CellWidth: 9, CellHeight: 17}, Size{2, 1}, true},
		{"no metrics", Viewport{Width: 800, Height: 600}, Size{}, false},
		{"empty", Viewport{}, Size{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Dimensions()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFit(t *testing.T) {
	s := New(Config{Cols: 80, Rows: 24}, nil)
	assert.Equal(t, Size{80, 24}, s.Size())

	assert.Equal(t, Size{100, 30}, s.Fit(Viewport{Cols: 100, Rows: 30}))
	assert.Equal(t, Size{100, 30}, s.Fit(Viewport{}), "unusable viewport keeps size")
	assert.Equal(t, Size{100, 30}, s.Size())
}

func TestWriteFansOutAndRecords(t *testing.T) {
	s := New(DefaultConfig(), nil)
	require.NoError(t, s.Writeln("Installing dependencies..."))

	var a, b bytes.Buffer
	histA, detachA := s.Attach(&a)
	assert.Equal(t, "Installing dependencies...\r\n", string(histA))

	_, detachB := s.Attach(&b)
	defer detachB()
	assert.Equal(t, 2, s.Viewers())

	_, err := s.Write([]byte("added 1 package"))
	require.NoError(t, err)
	detachA()
	detachA()
	_, err = s.Write([]byte("!"))
	require.NoError(t, err)

	assert.Equal(t, "added 1 package", a.String())
	assert.Equal(t, "added 1 package!", b.String())
	assert.Equal(t, "Installing dependencies...\r\nadded 1 package!", string(s.History()))
}

func TestFailingViewerIsDetached(t *testing.T) {
	s := New(DefaultConfig(), nil)
	s.Attach(failingWriter{})

	_, err := s.Write([]byte("x"))
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Viewers())
}

func TestDispose(t *testing.T) {
	s := New(DefaultConfig(), nil)
	var buf bytes.Buffer
	s.Attach(&buf)

	s.Dispose()
	s.Dispose()
	assert.True(t, s.Disposed())
	assert.Equal(t, 0, s.Viewers())

	_, err := s.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, s.Writeln("late"), ErrDisposed)
	assert.Empty(t, buf.String())

	hist, detach := s.Attach(&buf)
	assert.Nil(t, hist)
	detach()
}

func TestScrollbackKeepsNewest(t *testing.T) {
	sb := NewScrollback(8)
	sb.Write([]byte("abc"))
	assert.Equal(t, "abc", string(sb.Bytes()))

	sb.Write([]byte("defgh"))
	assert.Equal(t, "abcdefgh", string(sb.Bytes()))

	sb.Write([]byte("ij"))
	assert.Equal(t, "cdefghij", string(sb.Bytes()))
	assert.Equal(t, 8, sb.Len())

	sb.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", string(sb.Bytes()))

	sb.Write([]byte("x"))
	assert.Equal(t, "3456789x", string(sb.Bytes()))

	sb.Reset()
	assert.Empty(t, sb.Bytes())
}

func TestScrollbackDisabled(t *testing.T) {
	sb := NewScrollback(0)
	n, err := sb.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, sb.Bytes())
}

func TestConvertEOL(t *testing.T) {
	s := New(DefaultConfig(), nil)
	var buf bytes.Buffer
	s.Attach(&buf)

	s.Write([]byte("one\ntwo\r\nthree\r"))
	s.Write([]byte("\nfour\n"))

	assert.Equal(t, "one\r\ntwo\r\nthree\r\nfour\r\n", buf.String())
	assert.Equal(t, buf.String(), string(s.History()))
}

func TestConvertEOLOff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConvertEOL = false
	s := New(cfg, nil)

	s.Write([]byte("raw\n"))
	assert.Equal(t, "raw\n", string(s.History()))
}
