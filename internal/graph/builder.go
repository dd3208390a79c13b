package graph

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ankek/terraform-provider-drawio/internal/parser"
)

// Element names inside an mxGraphModel.
const (
	rootTag       = "root"
	cellTag       = "mxCell"
	objectTag     = "object"
	userObjectTag = "UserObject"
	geometryTag   = "mxGeometry"
	pointTag      = "mxPoint"
	arrayTag      = "Array"
)

// Build converts a decoded mxGraphModel element into a Model in a single
// pass. Missing or unparsable optional attributes take their zero values;
// references to unknown cells are kept as ids and resolve to nothing.
func Build(root *parser.Element) *Model {
	m := &Model{
		Attributes: attrMap(root, nil),
		cells:      make(map[string]*Cell),
		parents:    make(map[string]string),
		children:   make(map[string][]*Cell),
	}
	if root == nil {
		return m
	}

	for _, container := range root.Children {
		if container.Name != rootTag {
			continue
		}
		for _, el := range container.Children {
			cell := decodeCell(el)
			if cell == nil {
				continue
			}
			if cell.ID == "" {
				cell.ID = fmt.Sprintf("_cell%d", len(m.order))
			}
			if _, dup := m.cells[cell.ID]; dup {
				continue
			}
			m.cells[cell.ID] = cell
			m.order = append(m.order, cell)
		}
	}

	m.linkParents()
	return m
}

// linkParents resolves parent ids, detaching cells whose parent is unknown
// or whose parent chain loops back, and indexes children.
func (m *Model) linkParents() {
	for _, c := range m.order {
		if _, ok := m.cells[c.ParentID]; ok && c.ParentID != c.ID {
			m.parents[c.ID] = c.ParentID
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(m.order))
	for _, c := range m.order {
		var path []string
		id := c.ID
		for id != "" && state[id] == unvisited {
			state[id] = visiting
			path = append(path, id)
			id = m.parents[id]
		}
		if id != "" && state[id] == visiting {
			// The last cell on the path points back into the path.
			delete(m.parents, path[len(path)-1])
		}
		for _, p := range path {
			state[p] = done
		}
	}

	for _, c := range m.order {
		if parent, ok := m.parents[c.ID]; ok {
			m.children[parent] = append(m.children[parent], c)
		} else {
			m.roots = append(m.roots, c)
		}
	}
}

// decodeCell reads an mxCell, or an object wrapper around one.
func decodeCell(el *parser.Element) *Cell {
	switch el.Name {
	case cellTag:
		return cellFromElement(el)
	case objectTag, userObjectTag:
		inner := el.Child(cellTag)
		if inner == nil {
			return nil
		}
		c := cellFromElement(inner)
		c.ID = el.AttrOr("id", c.ID)
		c.Value = el.AttrOr("label", "")
		c.Attributes = attrMap(el, map[string]bool{"id": true, "label": true})
		return c
	default:
		return nil
	}
}

func cellFromElement(el *parser.Element) *Cell {
	c := &Cell{
		ID:        el.AttrOr("id", ""),
		Vertex:    el.AttrOr("vertex", "") == "1",
		Edge:      el.AttrOr("edge", "") == "1",
		Value:     el.AttrOr("value", ""),
		Style:     el.AttrOr("style", ""),
		Visible:   el.AttrOr("visible", "1") != "0",
		Collapsed: el.AttrOr("collapsed", "") == "1",
		ParentID:  el.AttrOr("parent", ""),
		SourceID:  el.AttrOr("source", ""),
		TargetID:  el.AttrOr("target", ""),
	}
	if g := el.Child(geometryTag); g != nil {
		c.Geometry = decodeGeometry(g)
	}
	return c
}

func decodeGeometry(el *parser.Element) *Geometry {
	g := &Geometry{
		Rect: Rect{
			X:      floatAttr(el, "x"),
			Y:      floatAttr(el, "y"),
			Width:  floatAttr(el, "width"),
			Height: floatAttr(el, "height"),
		},
		Relative: el.AttrOr("relative", "") == "1",
	}
	for _, child := range el.Children {
		switch child.Name {
		case pointTag:
			p := decodePoint(child)
			switch child.AttrOr("as", "") {
			case "sourcePoint":
				g.SourcePoint = &p
			case "targetPoint":
				g.TargetPoint = &p
			case "offset":
				g.Offset = &p
			}
		case arrayTag:
			if child.AttrOr("as", "") != "points" {
				continue
			}
			for _, pt := range child.Children {
				if pt.Name == pointTag {
					g.Points = append(g.Points, decodePoint(pt))
				}
			}
		}
	}
	return g
}

func decodePoint(el *parser.Element) Point {
	return Point{X: floatAttr(el, "x"), Y: floatAttr(el, "y")}
}

func floatAttr(el *parser.Element, name string) float64 {
	v, ok := el.Attr(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func attrMap(el *parser.Element, skip map[string]bool) map[string]string {
	if el == nil || len(el.Attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(el.Attrs))
	for _, a := range el.Attrs {
		if skip[a.Name.Local] {
			continue
		}
		out[a.Name.Local] = a.Value
	}
	return out
}
