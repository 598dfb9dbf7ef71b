// Package imposition plans how rendered items are laid out on physical
// production sheets. PlanGrid is the geometry engine: a pure function that
// picks the best-yield grid for one trim size. PlanSheets groups items by
// trim size and fills sheets row-major.
//
// All dimensions are millimetres. Arithmetic runs on decimal values so that
// inputs such as 0.1 mm gaps floor exactly instead of drifting across a
// binary float boundary.
package imposition

import (
	"math"

	"github.com/shopspring/decimal"
)

// Size is a width/height pair in millimetres.
type Size struct {
	Width  float64 `json:"width"  yaml:"width"  validate:"gt=0"`
	Height float64 `json:"height" yaml:"height" validate:"gt=0"`
}

// Rotated returns the size turned by 90 degrees.
func (s Size) Rotated() Size { return Size{Width: s.Height, Height: s.Width} }

// Margins are the unprintable borders of a sheet.
type Margins struct {
	Top    float64 `json:"top"    yaml:"top"    validate:"gte=0"`
	Right  float64 `json:"right"  yaml:"right"  validate:"gte=0"`
	Bottom float64 `json:"bottom" yaml:"bottom" validate:"gte=0"`
	Left   float64 `json:"left"   yaml:"left"   validate:"gte=0"`
}

// Uniform returns margins of m on every side.
func Uniform(m float64) Margins { return Margins{Top: m, Right: m, Bottom: m, Left: m} }

// Grid is the result of PlanGrid. A zero Yield means the item does not fit
// the sheet in either orientation; callers must check it.
type Grid struct {
	Cols    int  `json:"cols"`
	Rows    int  `json:"rows"`
	Yield   int  `json:"yield"`
	Rotated bool `json:"rotated"`

	// CellWidth and CellHeight are the pitch of one cell (item plus gap) in
	// the chosen orientation.
	CellWidth  float64 `json:"cell_width"`
	CellHeight float64 `json:"cell_height"`

	// OriginX and OriginY locate the top-left corner of cell (0,0).
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
}

// CellOrigin returns the top-left corner of the cell at (row, col).
func (g Grid) CellOrigin(row, col int) (x, y float64) {
	ox := decimal.NewFromFloat(g.OriginX).Add(decimal.NewFromFloat(g.CellWidth).Mul(decimal.NewFromInt(int64(col))))
	oy := decimal.NewFromFloat(g.OriginY).Add(decimal.NewFromFloat(g.CellHeight).Mul(decimal.NewFromInt(int64(row))))
	return ox.InexactFloat64(), oy.InexactFloat64()
}

// PlanGrid computes the best-yield grid for item on sheet.
//
// The printable area is the sheet minus margins. For each orientation,
// cols = floor(printableW / (itemW + gap)) and rows = floor(printableH /
// (itemH + gap)). The rotated orientation is chosen only when its yield is
// strictly larger; ties keep the item as given. Any NaN or infinite input
// yields the zero Grid.
func PlanGrid(sheet, item Size, m Margins, gap float64) Grid {
	if !finite(sheet.Width, sheet.Height, item.Width, item.Height, m.Top, m.Right, m.Bottom, m.Left, gap) {
		return Grid{}
	}
	pw := dec(sheet.Width).Sub(dec(m.Left)).Sub(dec(m.Right))
	ph := dec(sheet.Height).Sub(dec(m.Top)).Sub(dec(m.Bottom))
	g := dec(gap)

	normal := fit(pw, ph, dec(item.Width), dec(item.Height), g)
	rotated := fit(pw, ph, dec(item.Height), dec(item.Width), g)

	best := normal
	if rotated.Yield > normal.Yield {
		best = rotated
		best.Rotated = true
	}
	if best.Yield == 0 {
		return Grid{}
	}
	best.OriginX = m.Left
	best.OriginY = m.Top
	return best
}

func fit(pw, ph, iw, ih, gap decimal.Decimal) Grid {
	if !pw.IsPositive() || !ph.IsPositive() || !iw.IsPositive() || !ih.IsPositive() || gap.IsNegative() {
		return Grid{}
	}
	cw := iw.Add(gap)
	ch := ih.Add(gap)
	cols := floorDiv(pw, cw)
	rows := floorDiv(ph, ch)
	if cols == 0 || rows == 0 {
		return Grid{}
	}
	return Grid{
		Cols:       cols,
		Rows:       rows,
		Yield:      cols * rows,
		CellWidth:  cw.InexactFloat64(),
		CellHeight: ch.InexactFloat64(),
	}
}

// floorDiv returns floor(a/b) for non-negative a and positive b.
func floorDiv(a, b decimal.Decimal) int {
	q, _ := a.QuoRem(b, 0)
	return int(q.IntPart())
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// finite reports whether every value can be converted to a decimal.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
