package renderer

import (
	"errors"
	"math"

	"github.com/ankek/terraform-provider-drawio/internal/graph"
)

// Edge styles that route with right angles.
var orthogonalStyles = map[string]bool{
	"orthogonalEdgeStyle":     true,
	"elbowEdgeStyle":          true,
	"entityRelationEdgeStyle": true,
}

var errNoTerminal = errors.New("edge has neither a terminal nor a fixed point")

// endpoint is one end of an edge: a visible vertex or a fixed point.
type endpoint struct {
	vertex *sceneVertex
	fixed  *graph.Point
}

func (p endpoint) center() graph.Point {
	if p.fixed != nil {
		return *p.fixed
	}
	return p.vertex.rect.Center()
}

// anchor is where the edge meets the terminal when heading for toward.
func (p endpoint) anchor(toward graph.Point) graph.Point {
	if p.fixed != nil {
		return *p.fixed
	}
	return perimeterPoint(p.vertex.rect, p.vertex.shape, toward)
}

// side is the midpoint of the terminal side facing toward along one axis.
func (p endpoint) side(toward graph.Point, vertical bool) graph.Point {
	if p.fixed != nil {
		return *p.fixed
	}
	r := p.vertex.rect
	c := r.Center()
	if vertical {
		if toward.Y >= c.Y {
			return graph.Point{X: c.X, Y: r.Bottom()}
		}
		return graph.Point{X: c.X, Y: r.Y}
	}
	if toward.X >= c.X {
		return graph.Point{X: r.Right(), Y: c.Y}
	}
	return graph.Point{X: r.X, Y: c.Y}
}

// edgeRouter computes edge paths in model coordinates.
type edgeRouter struct {
	scene *Scene
}

// route returns the polyline of an edge from source anchor to target anchor.
func (er *edgeRouter) route(e *sceneEdge) ([]graph.Point, error) {
	st := e.style
	g := e.cell.Geometry

	var waypoints []graph.Point
	if g != nil {
		for _, p := range g.Points {
			waypoints = append(waypoints, graph.Point{X: p.X + e.origin.X, Y: p.Y + e.origin.Y})
		}
	}

	src, err := er.endpoint(e, e.cell.SourceID, "exit", func(g *graph.Geometry) *graph.Point { return g.SourcePoint })
	if err != nil {
		return nil, err
	}
	trg, err := er.endpoint(e, e.cell.TargetID, "entry", func(g *graph.Geometry) *graph.Point { return g.TargetPoint })
	if err != nil {
		return nil, err
	}

	edgeStyle := st.Value("edgeStyle", "")
	orthogonal := orthogonalStyles[edgeStyle]
	vertical := st.Value("elbow", "") == "vertical"
	if edgeStyle == "orthogonalEdgeStyle" && st.Value("elbow", "") == "" {
		sc, tc := src.center(), trg.center()
		vertical = math.Abs(tc.Y-sc.Y) > math.Abs(tc.X-sc.X)
	}
	if edgeStyle == "entityRelationEdgeStyle" {
		vertical = false
	}

	var pts []graph.Point
	switch {
	case orthogonal && len(waypoints) == 0:
		pts = routeOrthogonal(src, trg, vertical)
	case orthogonal:
		pts = insertElbows(routeStraight(src, trg, waypoints), vertical)
	default:
		pts = routeStraight(src, trg, waypoints)
	}
	pts = dedupe(pts)
	if st.Bool("curved", false) {
		pts = curvePoints(pts, 8)
	}
	return pts, nil
}

// endpoint resolves one terminal. A visible vertex wins; otherwise the
// edge's own fixed point is used. Pinned exit/entry constraints turn a
// vertex terminal into a fixed point on its bounds.
func (er *edgeRouter) endpoint(e *sceneEdge, id, pin string, fixed func(*graph.Geometry) *graph.Point) (endpoint, error) {
	if v, ok := er.scene.terminal(id); ok {
		if p, ok := pinnedPoint(v.rect, e.style, pin); ok {
			return endpoint{fixed: &p}, nil
		}
		return endpoint{vertex: v}, nil
	}
	if g := e.cell.Geometry; g != nil {
		if p := fixed(g); p != nil {
			abs := graph.Point{X: p.X + e.origin.X, Y: p.Y + e.origin.Y}
			return endpoint{fixed: &abs}, nil
		}
	}
	return endpoint{}, errNoTerminal
}

// pinnedPoint reads exitX/exitY (or entryX/entryY) as fractions of r, plus
// the optional dx/dy offsets.
func pinnedPoint(r graph.Rect, st graph.Style, prefix string) (graph.Point, bool) {
	rawX, okX := st.Get(prefix + "X")
	rawY, okY := st.Get(prefix + "Y")
	if !okX || !okY {
		return graph.Point{}, false
	}
	fx, okX := parseFloat(rawX)
	fy, okY := parseFloat(rawY)
	if !okX || !okY {
		return graph.Point{}, false
	}
	return graph.Point{
		X: r.X + fx*r.Width + st.Float(prefix+"Dx", 0),
		Y: r.Y + fy*r.Height + st.Float(prefix+"Dy", 0),
	}, true
}

// routeStraight connects the terminals through the waypoints.
func routeStraight(src, trg endpoint, waypoints []graph.Point) []graph.Point {
	first, last := trg.center(), src.center()
	if len(waypoints) > 0 {
		first, last = waypoints[0], waypoints[len(waypoints)-1]
	}
	pts := make([]graph.Point, 0, len(waypoints)+2)
	pts = append(pts, src.anchor(first))
	pts = append(pts, waypoints...)
	return append(pts, trg.anchor(last))
}

// routeOrthogonal leaves the source from the side facing the target, turns
// in the channel halfway between both ends and enters the target from the
// facing side.
func routeOrthogonal(src, trg endpoint, vertical bool) []graph.Point {
	start := src.side(trg.center(), vertical)
	end := trg.side(src.center(), vertical)
	points := []graph.Point{start}
	if vertical {
		midY := (start.Y + end.Y) / 2
		points = append(points,
			graph.Point{X: start.X, Y: midY},
			graph.Point{X: end.X, Y: midY},
		)
	} else {
		midX := (start.X + end.X) / 2
		points = append(points,
			graph.Point{X: midX, Y: start.Y},
			graph.Point{X: midX, Y: end.Y},
		)
	}
	return append(points, end)
}

// insertElbows adds a corner between consecutive points that are not
// axis-aligned.
func insertElbows(pts []graph.Point, vertical bool) []graph.Point {
	if len(pts) < 2 {
		return pts
	}
	out := []graph.Point{pts[0]}
	for i := 1; i < len(pts); i++ {
		a, b := out[len(out)-1], pts[i]
		if a.X != b.X && a.Y != b.Y {
			if vertical {
				out = append(out, graph.Point{X: a.X, Y: b.Y})
			} else {
				out = append(out, graph.Point{X: b.X, Y: a.Y})
			}
		}
		out = append(out, b)
	}
	return out
}

// dedupe drops consecutive duplicate points.
func dedupe(pts []graph.Point) []graph.Point {
	if len(pts) < 2 {
		return pts
	}
	out := pts[:1]
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	if len(out) == 1 {
		// A zero-length edge still has two ends.
		out = append(out, out[0])
	}
	return out
}

// curvePoints smooths a polyline: each interior point becomes the control
// point of a quadratic curve between the neighbouring segment midpoints.
func curvePoints(pts []graph.Point, steps int) []graph.Point {
	if len(pts) < 3 {
		return pts
	}
	mid := func(a, b graph.Point) graph.Point {
		return graph.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	}
	out := []graph.Point{pts[0]}
	from := pts[0]
	for i := 1; i < len(pts)-1; i++ {
		to := mid(pts[i], pts[i+1])
		if i == len(pts)-2 {
			to = pts[i+1]
		}
		for s := 1; s <= steps; s++ {
			t := float64(s) / float64(steps)
			out = append(out, quadBezier(from, pts[i], to, t))
		}
		from = to
	}
	return out
}

func quadBezier(p0, p1, p2 graph.Point, t float64) graph.Point {
	u := 1 - t
	return graph.Point{
		X: u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
		Y: u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
	}
}

// perimeterPoint returns where the ray from the centre of r towards p
// leaves the shape outline.
func perimeterPoint(r graph.Rect, shape string, p graph.Point) graph.Point {
	c := r.Center()
	dx, dy := p.X-c.X, p.Y-c.Y
	a, b := r.Width/2, r.Height/2
	if (dx == 0 && dy == 0) || a <= 0 || b <= 0 {
		return c
	}
	var t float64
	switch shape {
	case shapeEllipse, shapeDoubleEllipse:
		t = 1 / math.Sqrt(dx*dx/(a*a)+dy*dy/(b*b))
	case shapeRhombus:
		t = 1 / (math.Abs(dx)/a + math.Abs(dy)/b)
	default:
		t = math.Inf(1)
		if dx != 0 {
			t = a / math.Abs(dx)
		}
		if dy != 0 {
			t = math.Min(t, b/math.Abs(dy))
		}
	}
	return graph.Point{X: c.X + dx*t, Y: c.Y + dy*t}
}

// Arrow kinds.
const (
	arrowNone    = "none"
	arrowClassic = "classic"
	arrowBlock   = "block"
	arrowOpen    = "open"
	arrowOval    = "oval"
	arrowDiamond = "diamond"
)

// marker is an arrow head in device units.
type marker struct {
	kind   string
	size   float64
	filled bool
}

func markerFor(st graph.Style, end string, def string, scale float64) marker {
	kind := st.Value(end+"Arrow", def)
	switch kind {
	case "classicThin":
		kind = arrowClassic
	case "blockThin":
		kind = arrowBlock
	case arrowClassic, arrowBlock, arrowOpen, arrowOval, arrowDiamond:
	default:
		kind = arrowNone
	}
	return marker{
		kind:   kind,
		size:   math.Max(0, st.Float(end+"Size", 6)) * scale,
		filled: kind != arrowOpen && st.Bool(end+"Fill", true),
	}
}

// path returns the outline of the marker with its tip at tip, pointing away
// from from, and how far the line must stop short of the tip.
func (m marker) path(tip, from point) (*Path, float64) {
	dx, dy := tip.X-from.X, tip.Y-from.Y
	l := math.Hypot(dx, dy)
	if m.kind == arrowNone || m.size <= 0 || l == 0 {
		return nil, 0
	}
	ux, uy := dx/l, dy/l
	nx, ny := -uy, ux
	s, w := m.size, m.size/2
	at := func(back, side float64) point {
		return point{X: tip.X - ux*back + nx*side, Y: tip.Y - uy*back + ny*side}
	}
	switch m.kind {
	case arrowClassic:
		return polygonPath(tip, at(s, w), at(s*0.75, 0), at(s, -w)), s * 0.75
	case arrowBlock:
		return polygonPath(tip, at(s, w), at(s, -w)), s
	case arrowOpen:
		return polylinePath(at(s, w), tip, at(s, -w)), 0
	case arrowOval:
		return ellipsePath(tip.X-w, tip.Y-w, s, s), w
	case arrowDiamond:
		return polygonPath(tip, at(s/2, w), at(s, 0), at(s/2, -w)), s
	}
	return nil, 0
}

// shorten moves the end of a polyline back by d along its last segment.
func shorten(pts []point, d float64) {
	n := len(pts)
	if n < 2 || d <= 0 {
		return
	}
	tip, prev := pts[n-1], pts[n-2]
	l := math.Hypot(tip.X-prev.X, tip.Y-prev.Y)
	if l == 0 {
		return
	}
	d = math.Min(d, l)
	pts[n-1] = point{X: tip.X - (tip.X-prev.X)/l*d, Y: tip.Y - (tip.Y-prev.Y)/l*d}
}

// pointAlong returns the point at fraction t of the polyline's length.
func pointAlong(pts []point, t float64) point {
	if len(pts) == 0 {
		return point{}
	}
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	target := clamp01(t) * total
	for i := 1; i < len(pts); i++ {
		seg := math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
		if seg > 0 && target <= seg {
			k := target / seg
			return point{
				X: pts[i-1].X + (pts[i].X-pts[i-1].X)*k,
				Y: pts[i-1].Y + (pts[i].Y-pts[i-1].Y)*k,
			}
		}
		target -= seg
	}
	return pts[len(pts)-1]
}

func reversed(pts []point) []point {
	out := make([]point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
