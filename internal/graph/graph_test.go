package graph

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankek/terraform-provider-drawio/internal/parser"
)

func buildFromXML(t *testing.T, xml string) *Model {
	t.Helper()
	root, err := parser.ParseXMLString(xml)
	require.NoError(t, err)
	return Build(root)
}

const flowModel = `<mxGraphModel gridSize="10" background="#fafafa"><root>
<mxCell id="0"/>
<mxCell id="1" parent="0"/>
<mxCell id="group" value="Group" style="swimlane;startSize=20;" vertex="1" parent="1">
  <mxGeometry x="100" y="50" width="300" height="200" as="geometry"/>
</mxCell>
<mxCell id="a" value="Start" style="ellipse;fillColor=#d5e8d4;" vertex="1" parent="group">
  <mxGeometry x="20" y="40" width="80" height="40" as="geometry"/>
</mxCell>
<object id="b" label="Owner: %owner%" placeholders="1" owner="ops">
  <mxCell style="rounded=1;" vertex="1" parent="group">
    <mxGeometry x="180" y="40" width="80" height="40" as="geometry"/>
  </mxCell>
</object>
<mxCell id="e1" style="edgeStyle=orthogonalEdgeStyle;" edge="1" parent="1" source="a" target="b">
  <mxGeometry relative="1" as="geometry">
    <mxPoint x="5" y="6" as="sourcePoint"/>
    <mxPoint x="7" y="8" as="targetPoint"/>
    <Array as="points"><mxPoint x="150" y="10"/><mxPoint x="160" y="20"/></Array>
  </mxGeometry>
</mxCell>
<mxCell id="e2" edge="1" parent="1" source="a" target="missing"/>
<mxCell id="hidden" vertex="1" parent="1" visible="0" collapsed="1"/>
</root></mxGraphModel>`

func TestBuild(t *testing.T) {
	m := buildFromXML(t, flowModel)

	assert.Equal(t, 8, m.Len())
	assert.Equal(t, "10", m.Attributes["gridSize"])

	group, ok := m.Cell("group")
	require.True(t, ok)
	assert.True(t, group.Vertex)
	assert.Equal(t, Rect{X: 100, Y: 50, Width: 300, Height: 200}, group.Geometry.Rect)
	assert.Equal(t, "1", m.Parent(group).ID)

	b, ok := m.Cell("b")
	require.True(t, ok)
	assert.Equal(t, "Owner: %owner%", b.Value)
	assert.Equal(t, map[string]string{"placeholders": "1", "owner": "ops"}, b.Attributes)
	assert.Equal(t, "group", m.Parent(b).ID)

	e1, _ := m.Cell("e1")
	assert.True(t, e1.Edge)
	assert.Equal(t, "a", m.Source(e1).ID)
	assert.Equal(t, "b", m.Target(e1).ID)
	require.NotNil(t, e1.Geometry)
	assert.True(t, e1.Geometry.Relative)
	assert.Equal(t, []Point{{X: 150, Y: 10}, {X: 160, Y: 20}}, e1.Geometry.Points)
	assert.Equal(t, &Point{X: 5, Y: 6}, e1.Geometry.SourcePoint)
	assert.Equal(t, &Point{X: 7, Y: 8}, e1.Geometry.TargetPoint)

	e2, _ := m.Cell("e2")
	assert.Nil(t, m.Target(e2), "dangling target reads as no relation")
	assert.Nil(t, e2.Geometry)

	hidden, _ := m.Cell("hidden")
	assert.False(t, hidden.Visible)
	assert.True(t, hidden.Collapsed)

	ids := func(cells []*Cell) []string {
		out := make([]string, 0, len(cells))
		for _, c := range cells {
			out = append(out, c.ID)
		}
		return out
	}
	assert.Equal(t, []string{"0"}, ids(m.Roots()))
	assert.Equal(t, []string{"a", "b"}, ids(m.Children(group)))
}

func TestBuild_Tolerance(t *testing.T) {
	tests := []struct {
		name      string
		xml       string
		wantCells int
		wantRoots []string
	}{
		{
			name:      "empty model",
			xml:       `<mxGraphModel/>`,
			wantCells: 0,
		},
		{
			name:      "dangling parent becomes root",
			xml:       `<mxGraphModel><root><mxCell id="a" parent="nowhere"/></root></mxGraphModel>`,
			wantCells: 1,
			wantRoots: []string{"a"},
		},
		{
			name:      "self parent",
			xml:       `<mxGraphModel><root><mxCell id="a" parent="a"/></root></mxGraphModel>`,
			wantCells: 1,
			wantRoots: []string{"a"},
		},
		{
			name:      "parent cycle is broken",
			xml:       `<mxGraphModel><root><mxCell id="a" parent="b"/><mxCell id="b" parent="c"/><mxCell id="c" parent="a"/></root></mxGraphModel>`,
			wantCells: 3,
			wantRoots: []string{"c"},
		},
		{
			name:      "duplicate ids keep the first cell",
			xml:       `<mxGraphModel><root><mxCell id="a" value="first"/><mxCell id="a" value="second"/></root></mxGraphModel>`,
			wantCells: 1,
			wantRoots: []string{"a"},
		},
		{
			name:      "cells without ids get generated ids",
			xml:       `<mxGraphModel><root><mxCell/><mxCell/></root></mxGraphModel>`,
			wantCells: 2,
			wantRoots: []string{"_cell0", "_cell1"},
		},
		{
			name:      "unknown elements are ignored",
			xml:       `<mxGraphModel><root><mxCell id="a"/><foo id="b"/><object id="c"/></root><extra/></mxGraphModel>`,
			wantCells: 1,
			wantRoots: []string{"a"},
		},
		{
			name:      "bad numbers default to zero",
			xml:       `<mxGraphModel><root><mxCell id="a" vertex="1"><mxGeometry x="NaN" y="abc" width="1e400" height="5" as="geometry"/></mxCell></root></mxGraphModel>`,
			wantCells: 1,
			wantRoots: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := buildFromXML(t, tt.xml)
			if m.Len() != tt.wantCells {
				t.Fatalf("Build() cells = %d, want %d", m.Len(), tt.wantCells)
			}
			var roots []string
			for _, c := range m.Roots() {
				roots = append(roots, c.ID)
			}
			assert.Equal(t, tt.wantRoots, roots)
		})
	}
}

func TestBuild_Geometry(t *testing.T) {
	m := buildFromXML(t, `<mxGraphModel><root><mxCell id="a" vertex="1"><mxGeometry x="NaN" y="abc" width="1e400" height="5" as="geometry"/></mxCell></root></mxGraphModel>`)
	a, _ := m.Cell("a")
	assert.Equal(t, Rect{Height: 5}, a.Geometry.Rect)
	assert.True(t, a.Geometry.Valid())
}

func TestWalk(t *testing.T) {
	m := buildFromXML(t, flowModel)

	var visited []string
	m.Walk(func(c *Cell, depth int) bool {
		visited = append(visited, fmt.Sprintf("%s@%d", c.ID, depth))
		return c.ID != "group"
	})
	assert.Equal(t, []string{"0@0", "1@1", "group@2", "e1@2", "e2@2", "hidden@2"}, visited)

	visited = visited[:0]
	m.Walk(func(c *Cell, depth int) bool {
		visited = append(visited, c.ID)
		return true
	})
	assert.Equal(t, []string{"0", "1", "group", "a", "b", "e1", "e2", "hidden"}, visited)
}

func TestWalk_DeepContainment(t *testing.T) {
	const depth = 20000
	var b strings.Builder
	b.WriteString(`<mxGraphModel><root><mxCell id="c0"/>`)
	for i := 1; i < depth; i++ {
		fmt.Fprintf(&b, `<mxCell id="c%d" parent="c%d"/>`, i, i-1)
	}
	b.WriteString(`</root></mxGraphModel>`)

	m := buildFromXML(t, b.String())
	maxDepth := 0
	m.Walk(func(c *Cell, d int) bool {
		if d > maxDepth {
			maxDepth = d
		}
		return true
	})
	assert.Equal(t, depth-1, maxDepth)
}

func TestNilModel(t *testing.T) {
	var m *Model
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Roots())
	_, ok := m.Cell("x")
	assert.False(t, ok)
	m.Walk(func(*Cell, int) bool {
		t.Fatal("walk over nil model visited a cell")
		return false
	})
}

func TestRect(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 30, Height: 40}
	assert.Equal(t, Point{X: 25, Y: 40}, r.Center())
	assert.Equal(t, 40.0, r.Right())
	assert.Equal(t, 60.0, r.Bottom())
	assert.Equal(t, Rect{X: 0, Y: 20, Width: 40, Height: 50}, r.Union(Rect{X: 0, Y: 30, Width: 5, Height: 40}))
	assert.Equal(t, Rect{X: 11, Y: 22, Width: 30, Height: 40}, r.Translate(Point{X: 1, Y: 2}))
	assert.False(t, Rect{Width: -1}.Valid())
}

func TestParseStyle(t *testing.T) {
	s := ParseStyle("ellipse;whiteSpace=wrap; fillColor = #ff0000 ;strokeWidth=2.5;dashed=1;rounded=0;opacity=abc;;html=true;fillColor=#00ff00")

	assert.Equal(t, []string{"ellipse"}, s.Names)
	assert.True(t, s.HasName("ellipse"))
	assert.False(t, s.HasName("rhombus"))
	assert.Equal(t, "#00ff00", s.Value("fillColor", ""), "later keys win")
	assert.Equal(t, "wrap", s.Value("whiteSpace", "nowrap"))
	assert.Equal(t, "none", s.Value("strokeColor", "none"))
	assert.Equal(t, 2.5, s.Float("strokeWidth", 1))
	assert.Equal(t, 100.0, s.Float("opacity", 100), "unparsable numbers use the default")
	assert.True(t, s.Bool("dashed", false))
	assert.False(t, s.Bool("rounded", true))
	assert.True(t, s.Bool("html", false))
	assert.True(t, s.Bool("shadow", true))

	v, ok := s.Get("dashed")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	empty := ParseStyle("")
	assert.Empty(t, empty.Names)
	assert.Equal(t, 3.0, empty.Float("x", 3))
}
