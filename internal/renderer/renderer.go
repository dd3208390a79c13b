// Package renderer draws a diagram model onto a drawing surface and encodes
// the result. Raster output goes through gg, PDF output through gofpdf; both
// share the same drawing code behind the Surface interface.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/ankek/terraform-provider-drawio/internal/graph"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

var (
	// ErrResourceExhausted is returned when an export runs out of memory or
	// would allocate a surface beyond the configured ceiling.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrUnsupportedFormat is returned when no encoder can produce the
	// requested format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

var errInvalidGeometry = errors.New("invalid geometry")

type errInvalidStyle string

func (e errInvalidStyle) Error() string { return string(e) }

// cancelCheckInterval is how many cells are drawn between context checks.
const cancelCheckInterval = 64

// RenderFailure records a cell that was skipped.
type RenderFailure struct {
	CellID string
	Reason string
}

func (f *RenderFailure) Error() string {
	return fmt.Sprintf("cell %q skipped: %s", f.CellID, f.Reason)
}

// ImageResolver looks up an image referenced by a cell style.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (image.Image, error)
}

// Options controls one render. Sizes are device units.
type Options struct {
	// Width and Height are the surface size.
	Width, Height float64
	Scale         float64
	// Border is the margin kept between the surface edge and the diagram.
	Border float64
	// Clip restricts drawing to the surface minus the border.
	Clip bool
	// Background fills the surface before drawing; nil leaves it untouched.
	Background color.Color
	// Bleed extends the background fill past the top and left edges, over
	// surface area a translation moved before the origin.
	Bleed      float64
	Extras     validation.Extras
	Images     ImageResolver
}

// Report summarizes a render.
type Report struct {
	Drawn   int
	Skipped int
	// Failures holds one *RenderFailure per skipped cell, or nil.
	Failures error
}

type sceneVertex struct {
	cell  *graph.Cell
	rect  graph.Rect
	style graph.Style
	shape string
}

type sceneEdge struct {
	cell   *graph.Cell
	style  graph.Style
	origin graph.Point
	labels []*sceneVertex
}

// Scene is a model with absolute geometry resolved, ready to draw.
type Scene struct {
	vertices  []*sceneVertex
	edges     []*sceneEdge
	byID      map[string]*sceneVertex
	bounds    graph.Rect
	hasBounds bool
}

// NewScene lays out m. Invisible cells and the children of collapsed cells
// are left out. A nil model gives an empty scene.
func NewScene(m *graph.Model) *Scene {
	sc := &Scene{byID: make(map[string]*sceneVertex)}
	origins := make(map[string]graph.Point)
	edges := make(map[string]*sceneEdge)

	m.Walk(func(c *graph.Cell, _ int) bool {
		if !c.Visible {
			return false
		}
		parent := m.Parent(c)
		var origin graph.Point
		if parent != nil {
			origin = origins[parent.ID]
		}

		switch {
		case c.Vertex && parent != nil && parent.Edge:
			if e := edges[parent.ID]; e != nil {
				e.labels = append(e.labels, &sceneVertex{cell: c, style: graph.ParseStyle(c.Style)})
			}
			return false

		case c.Vertex:
			v := &sceneVertex{cell: c, style: graph.ParseStyle(c.Style)}
			v.shape = shapeName(v.style)
			v.rect = graph.Rect{X: origin.X, Y: origin.Y}
			if g := c.Geometry; g != nil {
				v.rect = g.Rect.Translate(origin)
				if pv := sc.byID[parentID(parent)]; g.Relative && pv != nil {
					v.rect = relativeRect(g, pv.rect)
				}
				if v.rect.Valid() {
					sc.include(v.rect)
					sc.byID[c.ID] = v
				}
			}
			origins[c.ID] = origin
			if v.rect.Valid() {
				origins[c.ID] = graph.Point{X: v.rect.X, Y: v.rect.Y}
			}
			sc.vertices = append(sc.vertices, v)
			return !c.Collapsed

		case c.Edge:
			e := &sceneEdge{cell: c, style: graph.ParseStyle(c.Style), origin: origin}
			if g := c.Geometry; g != nil {
				for _, p := range g.Points {
					sc.includePoint(graph.Point{X: p.X + origin.X, Y: p.Y + origin.Y})
				}
				for _, p := range []*graph.Point{g.SourcePoint, g.TargetPoint} {
					if p != nil {
						sc.includePoint(graph.Point{X: p.X + origin.X, Y: p.Y + origin.Y})
					}
				}
			}
			edges[c.ID] = e
			sc.edges = append(sc.edges, e)
			return true

		default:
			origins[c.ID] = origin
			return !c.Collapsed
		}
	})
	return sc
}

func parentID(c *graph.Cell) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// relativeRect places a relative geometry at fractions of its parent.
func relativeRect(g *graph.Geometry, parent graph.Rect) graph.Rect {
	r := graph.Rect{
		X:      parent.X + g.X*parent.Width,
		Y:      parent.Y + g.Y*parent.Height,
		Width:  g.Width,
		Height: g.Height,
	}
	if g.Offset != nil {
		r.X += g.Offset.X
		r.Y += g.Offset.Y
	}
	return r
}

func (s *Scene) include(r graph.Rect) {
	if !s.hasBounds {
		s.bounds, s.hasBounds = r, true
		return
	}
	s.bounds = s.bounds.Union(r)
}

func (s *Scene) includePoint(p graph.Point) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return
	}
	s.include(graph.Rect{X: p.X, Y: p.Y})
}

// Bounds returns the model-space rectangle covering every drawn vertex and
// edge point.
func (s *Scene) Bounds() graph.Rect { return s.bounds }

// Empty reports whether the scene has nothing to draw.
func (s *Scene) Empty() bool {
	return len(s.vertices) == 0 && len(s.edges) == 0
}

func (s *Scene) terminal(id string) (*sceneVertex, bool) {
	v, ok := s.byID[id]
	return v, ok
}

type renderState struct {
	ctx      context.Context
	scene    *Scene
	surface  Surface
	opts     Options
	scale    float64
	offset   point
	fonts    *faceCache
	globals  map[string]string
	drawn    int
	failures *multierror.Error
}

// Render draws sc onto s. Cells that cannot be drawn are skipped and listed
// in the report. The only error returned is the context's, when it ends
// before the last cell.
func Render(ctx context.Context, sc *Scene, s Surface, opts Options) (Report, error) {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	r := &renderState{
		ctx:     ctx,
		scene:   sc,
		surface: s,
		opts:    opts,
		scale:   opts.Scale,
		fonts:   newFaceCache(),
		globals: opts.Extras.Object("globalVars").Values(),
	}
	defer r.fonts.close()
	b := sc.Bounds()
	r.offset = point{X: opts.Border - b.X*opts.Scale, Y: opts.Border - b.Y*opts.Scale}

	r.paintBackground()

	s.Push()
	defer s.Pop()
	if opts.Clip {
		s.Clip(opts.Border, opts.Border, opts.Width-2*opts.Border, opts.Height-2*opts.Border)
	}
	r.drawGrid()

	for i, v := range sc.vertices {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return r.report(), err
			}
		}
		r.guard(v.cell, func() error { return r.drawVertex(v) })
	}
	router := &edgeRouter{scene: sc}
	for i, e := range sc.edges {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return r.report(), err
			}
		}
		r.guard(e.cell, func() error { return r.drawEdge(router, e) })
	}
	return r.report(), nil
}

func (r *renderState) report() Report {
	rep := Report{Drawn: r.drawn, Failures: r.failures.ErrorOrNil()}
	if r.failures != nil {
		rep.Skipped = len(r.failures.Errors)
	}
	return rep
}

// guard draws one cell, turning errors and panics into a RenderFailure.
func (r *renderState) guard(c *graph.Cell, draw func() error) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(c, fmt.Sprintf("panic: %v", p))
		}
	}()
	if err := draw(); err != nil {
		r.fail(c, err.Error())
		return
	}
	r.drawn++
}

func (r *renderState) fail(c *graph.Cell, reason string) {
	tflog.Warn(r.ctx, "Skipping cell", map[string]interface{}{
		"cell":   c.ID,
		"reason": reason,
	})
	r.failures = multierror.Append(r.failures, &RenderFailure{CellID: c.ID, Reason: reason})
}

func (r *renderState) paintBackground() {
	b := r.opts.Bleed
	full := rectPath(-b, -b, r.opts.Width+b, r.opts.Height+b)
	if !r.surface.Transparent() {
		r.surface.FillPath(full, color.White)
	}
	r.surface.FillPath(full, r.opts.Background)
}

func (r *renderState) devicePoint(p graph.Point) point {
	return point{X: p.X*r.scale + r.offset.X, Y: p.Y*r.scale + r.offset.Y}
}

func (r *renderState) deviceRect(m graph.Rect) graph.Rect {
	p := r.devicePoint(graph.Point{X: m.X, Y: m.Y})
	return graph.Rect{X: p.X, Y: p.Y, Width: m.Width * r.scale, Height: m.Height * r.scale}
}

// drawGrid draws extras.grid lines aligned to the model origin. Every
// steps-th line is darker.
func (r *renderState) drawGrid() {
	grid := r.opts.Extras.Object("grid")
	size, ok := grid.Number("size")
	if !ok || size <= 0 {
		return
	}
	step := size * r.scale
	if step < 2 {
		return
	}
	steps := 4
	if n, ok := grid.Number("steps"); ok && n >= 1 {
		steps = int(n)
	}
	def := color.NRGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	raw, _ := grid.Text("color")
	minor, err := parseColor(raw, def)
	if err != nil || minor == nil {
		minor = def
	}
	major := darkenColor(minor, 0.12)

	minorPath, majorPath := &Path{}, &Path{}
	pick := func(k float64) *Path {
		if ((int(k)%steps)+steps)%steps == 0 {
			return majorPath
		}
		return minorPath
	}
	for k := math.Ceil(-r.offset.X / step); ; k++ {
		x := r.offset.X + k*step
		if x > r.opts.Width {
			break
		}
		p := pick(k)
		p.MoveTo(x, 0)
		p.LineTo(x, r.opts.Height)
	}
	for k := math.Ceil(-r.offset.Y / step); ; k++ {
		y := r.offset.Y + k*step
		if y > r.opts.Height {
			break
		}
		p := pick(k)
		p.MoveTo(0, y)
		p.LineTo(r.opts.Width, y)
	}
	r.surface.StrokePath(minorPath, Stroke{Color: minor, Width: 1})
	r.surface.StrokePath(majorPath, Stroke{Color: major, Width: 1})
}

func (r *renderState) drawVertex(v *sceneVertex) error {
	if v.cell.Geometry == nil {
		return nil
	}
	if !v.rect.Valid() {
		return errInvalidGeometry
	}
	st := v.style
	d := r.deviceRect(v.rect)

	var defFill, defStroke color.Color = color.White, color.Black
	if unpainted(v.shape) {
		defFill, defStroke = nil, nil
	}
	p, err := r.resolvePaint(st, defFill, defStroke)
	if err != nil {
		return err
	}

	if rot := st.Float("rotation", 0); rot != 0 {
		c := d.Center()
		r.surface.Push()
		defer r.surface.Pop()
		r.surface.Rotate(rot, c.X, c.Y)
	}
	r.drawShape(v.shape, d, st, p)

	box := d
	switch v.shape {
	case shapeImage:
		r.drawCellImage(r.ctx, d, st)
	case shapeLabel:
		icon := labelIconRect(d, st, r.scale)
		r.drawCellImage(r.ctx, icon, st)
		if st.Value("imageAlign", "left") == "left" {
			box.X = icon.Right()
			box.Width = math.Max(0, d.Right()-icon.Right())
		}
	case shapeSwimlane:
		box = swimlaneHeader(d, st, r.scale)
	}

	switch st.Value("labelPosition", "center") {
	case "left":
		box.X -= box.Width
	case "right":
		box.X += box.Width
	}
	switch st.Value("verticalLabelPosition", "middle") {
	case "top":
		box.Y -= box.Height
	case "bottom":
		box.Y += box.Height
	}
	return r.drawLabel(v.cell, st, box, nil)
}

func (r *renderState) drawEdge(router *edgeRouter, e *sceneEdge) error {
	pts, err := router.route(e)
	if err != nil {
		return err
	}
	st := e.style
	p, err := r.resolvePaint(st, nil, color.Black)
	if err != nil {
		return err
	}

	dev := make([]point, len(pts))
	for i, pt := range pts {
		dev[i] = r.devicePoint(pt)
	}
	n := len(dev)
	start := markerFor(st, "start", arrowNone, r.scale)
	end := markerFor(st, "end", arrowClassic, r.scale)
	startPath, startBack := start.path(dev[0], dev[1])
	endPath, endBack := end.path(dev[n-1], dev[n-2])

	line := append([]point(nil), dev...)
	shorten(line, endBack)
	line = reversed(line)
	shorten(line, startBack)
	line = reversed(line)

	r.surface.StrokePath(polylinePath(line...), p.stroke)
	r.drawMarker(startPath, start, p.stroke)
	r.drawMarker(endPath, end, p.stroke)

	mid := pointAlong(dev, 0.5)
	if err := r.drawLabel(e.cell, st, graph.Rect{X: mid.X, Y: mid.Y}, color.White); err != nil {
		return err
	}
	for _, lv := range e.labels {
		r.guard(lv.cell, func() error { return r.drawEdgeLabel(dev, lv) })
	}
	return nil
}

func (r *renderState) drawMarker(path *Path, m marker, st Stroke) {
	if path == nil || st.Color == nil {
		return
	}
	if m.filled {
		r.surface.FillPath(path, st.Color)
	}
	r.surface.StrokePath(path, Stroke{Color: st.Color, Width: st.Width})
}

// drawEdgeLabel draws a vertex attached to an edge. A relative x of -1..1
// positions it from source to target.
func (r *renderState) drawEdgeLabel(path []point, v *sceneVertex) error {
	t := 0.5
	var off graph.Point
	if g := v.cell.Geometry; g != nil {
		if g.Relative {
			t = (g.X + 1) / 2
		}
		if g.Offset != nil {
			off = *g.Offset
		}
	}
	at := pointAlong(path, t)
	box := graph.Rect{X: at.X + off.X*r.scale, Y: at.Y + off.Y*r.scale}
	return r.drawLabel(v.cell, v.style, box, color.White)
}

// drawLabel lays out the cell value inside box. A zero-size box centres the
// text on its origin.
func (r *renderState) drawLabel(c *graph.Cell, st graph.Style, box graph.Rect, defaultBg color.Color) error {
	text := c.Value
	if text == "" || st.Bool("noLabel", false) {
		return nil
	}
	if c.Attributes["placeholders"] == "1" {
		text = replacePlaceholders(text, c.Attributes, r.globals)
	}
	var lines []string
	if st.Value("html", "") == "1" {
		lines = htmlLines(text)
	} else {
		lines = plainLines(text)
	}
	if len(lines) == 0 {
		return nil
	}

	fontStyle := int(st.Float("fontStyle", 0))
	f := Font{
		Size:      st.Float("fontSize", 11) * r.scale,
		Bold:      fontStyle&1 != 0,
		Italic:    fontStyle&2 != 0,
		Underline: fontStyle&4 != 0,
	}
	if f.Size <= 0 {
		return nil
	}
	fc, err := parseColor(st.Value("fontColor", ""), color.Black)
	if err != nil {
		return err
	}
	opacity := clamp01(st.Float("opacity", 100)/100) * clamp01(st.Float("textOpacity", 100)/100)
	fc = withOpacity(fc, opacity)
	if fc == nil {
		return nil
	}

	spacing := st.Float("spacing", 2)
	left := (spacing + st.Float("spacingLeft", 0)) * r.scale
	right := (spacing + st.Float("spacingRight", 0)) * r.scale
	top := (spacing + st.Float("spacingTop", 0)) * r.scale
	bottom := (spacing + st.Float("spacingBottom", 0)) * r.scale
	inner := graph.Rect{
		X:      box.X + left,
		Y:      box.Y + top,
		Width:  box.Width - left - right,
		Height: box.Height - top - bottom,
	}

	measure := func(s string) float64 { return r.fonts.measure(s, f) }
	if st.Value("whiteSpace", "") == "wrap" && inner.Width > 0 {
		lines = wrapLines(lines, inner.Width, measure)
	}

	lineHeight := f.Size * lineSpacing
	total := lineHeight * float64(len(lines))
	y0 := inner.Y + (inner.Height-total)/2
	switch st.Value("verticalAlign", "middle") {
	case "top":
		y0 = inner.Y
	case "bottom":
		y0 = inner.Bottom() - total
	}
	align := st.Value("align", "center")

	xs := make([]float64, len(lines))
	widths := make([]float64, len(lines))
	minX, maxX := math.Inf(1), math.Inf(-1)
	for i, line := range lines {
		widths[i] = measure(line)
		switch align {
		case "left":
			xs[i] = inner.X
		case "right":
			xs[i] = inner.Right() - widths[i]
		default:
			xs[i] = inner.X + (inner.Width-widths[i])/2
		}
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i]+widths[i])
	}

	bg, err := parseColor(st.Value("labelBackgroundColor", ""), defaultBg)
	if err != nil {
		return err
	}
	border, err := parseColor(st.Value("labelBorderColor", ""), nil)
	if err != nil {
		return err
	}
	if bg != nil || border != nil {
		pad := r.scale
		frame := rectPath(minX-pad, y0-pad, maxX-minX+2*pad, total+2*pad)
		r.surface.FillPath(frame, withOpacity(bg, opacity))
		r.surface.StrokePath(frame, Stroke{Color: withOpacity(border, opacity), Width: r.scale})
	}

	ascent := r.fonts.ascent(f)
	for i, line := range lines {
		lineTop := y0 + float64(i)*lineHeight
		baseline := lineTop + (lineHeight-f.Size)/2 + ascent
		r.surface.DrawText(line, xs[i], baseline, f, fc)
	}
	return nil
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
