package imposition

import "fmt"

// Sheet is a named stock sheet definition.
type Sheet struct {
	Name    string  `json:"name"    yaml:"name"    validate:"required"`
	Width   float64 `json:"width"   yaml:"width"   validate:"gt=0"`
	Height  float64 `json:"height"  yaml:"height"  validate:"gt=0"`
	Margins Margins `json:"margins" yaml:"margins"`
	Gap     float64 `json:"gap"     yaml:"gap"     validate:"gte=0"`
}

// Size returns the sheet dimensions.
func (s Sheet) Size() Size { return Size{Width: s.Width, Height: s.Height} }

// RenderedItem is one DONE item handed to the planner. Quantity expands into
// that many copies on the plan; values below 1 count as a single copy.
type RenderedItem struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Trim     Size   `json:"trim"`
	Quantity int    `json:"quantity"`
	Output   string `json:"output,omitempty"`
}

// Placement puts one copy of an item into one grid cell.
type Placement struct {
	ItemID  string  `json:"item_id"`
	OrderID string  `json:"order_id"`
	Copy    int     `json:"copy"`
	Row     int     `json:"row"`
	Col     int     `json:"col"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Output  string  `json:"output,omitempty"`
}

// SheetPlan is one physical sheet: the grid it uses and its placements in
// row-major cell order. The last sheet of a size group may be partial.
type SheetPlan struct {
	Index      int         `json:"index"`
	Sheet      Sheet       `json:"sheet"`
	Trim       Size        `json:"trim"`
	Grid       Grid        `json:"grid"`
	Placements []Placement `json:"placements"`
}

// Unplaceable is an item the planner could not put on any sheet.
type Unplaceable struct {
	Item   RenderedItem `json:"item"`
	Reason string       `json:"reason"`
}

// Result is the output of PlanSheets. Sheets stays usable when Unplaceable
// is non-empty.
type Result struct {
	Sheets      []SheetPlan   `json:"sheets"`
	Unplaceable []Unplaceable `json:"unplaceable"`
}

// Placed returns the number of placed copies across all sheets.
func (r Result) Placed() int {
	n := 0
	for _, s := range r.Sheets {
		n += len(s.Placements)
	}
	return n
}

// PlanSheets assigns items to sheets. Items are grouped by exact trim size
// in order of first appearance and each group gets one PlanGrid call. Cells
// are filled row-major; a new sheet opens only when the current one is full.
func PlanSheets(items []RenderedItem, sheet Sheet) Result {
	res := Result{Sheets: []SheetPlan{}, Unplaceable: []Unplaceable{}}

	var order []Size
	groups := map[Size][]RenderedItem{}
	for _, it := range items {
		if it.Trim.Width <= 0 || it.Trim.Height <= 0 {
			res.Unplaceable = append(res.Unplaceable, Unplaceable{Item: it, Reason: "missing trim size"})
			continue
		}
		if !finite(it.Trim.Width, it.Trim.Height) {
			res.Unplaceable = append(res.Unplaceable, Unplaceable{Item: it, Reason: "invalid trim size"})
			continue
		}
		if _, seen := groups[it.Trim]; !seen {
			order = append(order, it.Trim)
		}
		groups[it.Trim] = append(groups[it.Trim], it)
	}

	for _, trim := range order {
		members := groups[trim]
		g := PlanGrid(sheet.Size(), trim, sheet.Margins, sheet.Gap)
		if g.Yield == 0 {
			reason := fmt.Sprintf("%gx%g mm does not fit %s in either orientation", trim.Width, trim.Height, sheet.Name)
			for _, it := range members {
				res.Unplaceable = append(res.Unplaceable, Unplaceable{Item: it, Reason: reason})
			}
			continue
		}

		var cur *SheetPlan
		cell := 0
		for _, it := range members {
			copies := it.Quantity
			if copies < 1 {
				copies = 1
			}
			for c := 1; c <= copies; c++ {
				if cur == nil || cell == g.Yield {
					res.Sheets = append(res.Sheets, SheetPlan{
						Index: len(res.Sheets),
						Sheet: sheet,
						Trim:  trim,
						Grid:  g,
					})
					cur = &res.Sheets[len(res.Sheets)-1]
					cell = 0
				}
				row, col := cell/g.Cols, cell%g.Cols
				x, y := g.CellOrigin(row, col)
				cur.Placements = append(cur.Placements, Placement{
					ItemID:  it.ID,
					OrderID: it.OrderID,
					Copy:    c,
					Row:     row,
					Col:     col,
					X:       x,
					Y:       y,
					Output:  it.Output,
				})
				cell++
			}
		}
	}
	return res
}
