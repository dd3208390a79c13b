// Package graph holds the in-memory diagram model: an arena of cells keyed
// by id, with parent, source and target relations stored as ids and resolved
// on lookup. References to unknown cells read as "no relation".
package graph

import "math"

// Point is a position in model coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in model coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Translate returns the rectangle moved by p.
func (r Rect) Translate(p Point) Rect {
	return Rect{X: r.X + p.X, Y: r.Y + p.Y, Width: r.Width, Height: r.Height}
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	x := math.Min(r.X, o.X)
	y := math.Min(r.Y, o.Y)
	return Rect{
		X:      x,
		Y:      y,
		Width:  math.Max(r.Right(), o.Right()) - x,
		Height: math.Max(r.Bottom(), o.Bottom()) - y,
	}
}

// Valid reports whether all coordinates are finite and the size is not
// negative.
func (r Rect) Valid() bool {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.Width >= 0 && r.Height >= 0
}

// Geometry is the decoded mxGeometry of a cell.
type Geometry struct {
	Rect
	Relative    bool
	Points      []Point
	SourcePoint *Point
	TargetPoint *Point
	Offset      *Point
}

// Cell is a vertex or edge of the diagram.
type Cell struct {
	ID     string
	Vertex bool
	Edge   bool
	Value  string
	// Style is the raw style string; see ParseStyle.
	Style    string
	Geometry *Geometry
	// Attributes are the extra attributes of an <object> or <UserObject>
	// wrapper, used for placeholders.
	Attributes map[string]string
	Visible    bool
	Collapsed  bool

	ParentID string
	SourceID string
	TargetID string
}

// Model is a built diagram. It is read-only once Build returns.
type Model struct {
	// Attributes are the attributes of the mxGraphModel element.
	Attributes map[string]string

	cells    map[string]*Cell
	order    []*Cell
	parents  map[string]string
	children map[string][]*Cell
	roots    []*Cell
}

// Len returns the number of cells.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Cell looks up a cell by id.
func (m *Model) Cell(id string) (*Cell, bool) {
	if m == nil || id == "" {
		return nil, false
	}
	c, ok := m.cells[id]
	return c, ok
}

// Cells returns all cells in document order.
func (m *Model) Cells() []*Cell {
	if m == nil {
		return nil
	}
	return m.order
}

// Parent returns the containing cell, or nil for roots and dangling parents.
func (m *Model) Parent(c *Cell) *Cell {
	if m == nil {
		return nil
	}
	p, _ := m.Cell(m.parents[c.ID])
	return p
}

// Source returns the source terminal of an edge, or nil.
func (m *Model) Source(c *Cell) *Cell {
	s, _ := m.Cell(c.SourceID)
	return s
}

// Target returns the target terminal of an edge, or nil.
func (m *Model) Target(c *Cell) *Cell {
	t, _ := m.Cell(c.TargetID)
	return t
}

// Children returns the cells contained in c, in document order.
func (m *Model) Children(c *Cell) []*Cell {
	if m == nil {
		return nil
	}
	return m.children[c.ID]
}

// Roots returns the cells without a resolvable parent, in document order.
func (m *Model) Roots() []*Cell {
	if m == nil {
		return nil
	}
	return m.roots
}

// Walk visits cells depth-first over the containment tree, each parent before
// its children. When fn returns false the cell's children are skipped. The
// walk uses an explicit stack, so arbitrarily deep containment is safe.
func (m *Model) Walk(fn func(c *Cell, depth int) bool) {
	type item struct {
		cell  *Cell
		depth int
	}
	roots := m.Roots()
	stack := make([]item, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, item{cell: roots[i]})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(it.cell, it.depth) {
			continue
		}
		kids := m.Children(it.cell)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, item{cell: kids[i], depth: it.depth + 1})
		}
	}
}
