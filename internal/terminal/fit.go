package terminal

import "math"

const (
	// MinCols and MinRows bound the grid from below, matching xterm.
	MinCols = 2
	MinRows = 1
)

// Size is a terminal grid size in character cells.
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Viewport describes the space a viewer has for the terminal. Either the
// viewer fitted already and sends Cols and Rows, or it sends its pixel
// area plus the rendered cell size and the surface does the division.
type Viewport struct {
	Cols int `json:"cols,omitempty"`
	Rows int `json:"rows,omitempty"`

	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	CellWidth  float64 `json:"cell_width,omitempty"`
	CellHeight float64 `json:"cell_height,omitempty"`
}

// Dimensions converts the viewport to a grid size. ok is false when the
// viewport carries neither a grid nor usable pixel metrics.
func (v Viewport) Dimensions() (size Size, ok bool) {
	if v.Cols > 0 && v.Rows > 0 {
		return Size{Cols: max(v.Cols, MinCols), Rows: max(v.Rows, MinRows)}, true
	}
	if v.Width <= 0 || v.Height <= 0 || v.CellWidth <= 0 || v.CellHeight <= 0 {
		return Size{}, false
	}
	cols := int(math.Floor(v.Width / v.CellWidth))
	rows := int(math.Floor(v.Height / v.CellHeight))
	return Size{Cols: max(cols, MinCols), Rows: max(rows, MinRows)}, true
}
