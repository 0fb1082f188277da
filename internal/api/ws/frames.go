package ws

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/devbox/internal/terminal"
)

// Inbound control frame types.
const (
	TypeResize = "resize"
	TypeInput  = "input"
	TypeEdit   = "edit"
	TypePing   = "ping"
)

// Outbound control frame types.
const (
	TypeHello   = "hello"
	TypePreview = "preview"
	TypeState   = "state"
	TypePong    = "pong"
	TypeError   = "error"
)

// Limits applied to viewer messages.
const (
	MaxInputMessageSize = 64 * 1024
	MaxResizeCols       = 500
	MaxResizeRows       = 200
)

// Inbound is a text frame sent by the viewer.
type Inbound struct {
	Type string `json:"type"`

	// resize: either a grid or a pixel viewport.
	Cols       int     `json:"cols,omitempty"`
	Rows       int     `json:"rows,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	CellWidth  float64 `json:"cell_width,omitempty"`
	CellHeight float64 `json:"cell_height,omitempty"`

	// input: keystrokes as text.
	Data string `json:"data,omitempty"`

	// edit: the full new editor text.
	Content *string `json:"content,omitempty"`
}

// Viewport returns the resize request clamped to the accepted range.
func (in Inbound) Viewport() terminal.Viewport {
	v := terminal.Viewport{
		Cols:       clamp(in.Cols, MaxResizeCols),
		Rows:       clamp(in.Rows, MaxResizeRows),
		Width:      in.Width,
		Height:     in.Height,
		CellWidth:  in.CellWidth,
		CellHeight: in.CellHeight,
	}
	if size, ok := v.Dimensions(); ok && (size.Cols > MaxResizeCols || size.Rows > MaxResizeRows) {
		v = terminal.Viewport{Cols: clamp(size.Cols, MaxResizeCols), Rows: clamp(size.Rows, MaxResizeRows)}
	}
	return v
}

func clamp(n, limit int) int {
	return min(max(n, 0), limit)
}

// Editor is the editor part of the hello frame.
type Editor struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Outbound is a text frame sent to the viewer.
type Outbound struct {
	Type      string         `json:"type"`
	Viewer    string         `json:"viewer,omitempty"`
	State     string         `json:"state,omitempty"`
	Error     string         `json:"error,omitempty"`
	URL       string         `json:"url,omitempty"`
	Terminal  *terminal.Size `json:"terminal,omitempty"`
	Editor    *Editor        `json:"editor,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

func encode(f Outbound) ([]byte, error) {
	if f.Timestamp == 0 {
		f.Timestamp = time.Now().Unix()
	}
	return sonic.Marshal(f)
}

func decode(data []byte) (Inbound, error) {
	var in Inbound
	err := sonic.Unmarshal(data, &in)
	return in, err
}
