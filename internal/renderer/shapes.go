package renderer

import (
	"context"
	"image/color"
	"math"
	"strings"

	"github.com/ankek/terraform-provider-drawio/internal/graph"
)

// Shape names understood by the renderer.
const (
	shapeRect          = "rect"
	shapeRectangle     = "rectangle"
	shapeEllipse       = "ellipse"
	shapeDoubleEllipse = "doubleEllipse"
	shapeRhombus       = "rhombus"
	shapeTriangle      = "triangle"
	shapeHexagon       = "hexagon"
	shapeCylinder      = "cylinder"
	shapeSwimlane      = "swimlane"
	shapeImage         = "image"
	shapeText          = "text"
	shapeLabel         = "label"
	shapeEdgeLabel     = "edgeLabel"
)

var knownShapes = map[string]bool{
	shapeRect:          true,
	shapeRectangle:     true,
	shapeEllipse:       true,
	shapeDoubleEllipse: true,
	shapeRhombus:       true,
	shapeTriangle:      true,
	shapeHexagon:       true,
	shapeCylinder:      true,
	"cylinder3":        true,
	shapeSwimlane:      true,
	shapeImage:         true,
	shapeText:          true,
	shapeLabel:         true,
	shapeEdgeLabel:     true,
}

// shapeName picks the shape from the "shape" key, then from the first bare
// style name that is a known shape. Anything else draws as a rectangle.
func shapeName(st graph.Style) string {
	name := st.Value("shape", "")
	if name == "" {
		for _, n := range st.Names {
			if knownShapes[n] {
				name = n
				break
			}
		}
	}
	switch name {
	case shapeRectangle, "":
		return shapeRect
	case "cylinder3":
		return shapeCylinder
	case shapeEdgeLabel:
		return shapeText
	}
	if !knownShapes[name] {
		return shapeRect
	}
	return name
}

// unpainted shapes have neither fill nor stroke unless the style sets one.
func unpainted(shape string) bool {
	return shape == shapeText || shape == shapeImage
}

// paint is the resolved fill and stroke of a cell, in device units.
type paint struct {
	fill   color.Color
	stroke Stroke
	shadow color.Color
}

func (r *renderState) resolvePaint(st graph.Style, defFill, defStroke color.Color) (paint, error) {
	opacity := clamp01(st.Float("opacity", 100) / 100)

	fill, err := parseColor(st.Value("fillColor", ""), defFill)
	if err != nil {
		return paint{}, err
	}
	if fill != nil {
		gradient, err := parseColor(st.Value("gradientColor", ""), nil)
		if err != nil {
			return paint{}, err
		}
		if gradient != nil {
			fill = blendColors(fill, gradient, 0.5)
		}
	}
	fill = withOpacity(fill, opacity*clamp01(st.Float("fillOpacity", 100)/100))

	stroke, err := parseColor(st.Value("strokeColor", ""), defStroke)
	if err != nil {
		return paint{}, err
	}
	stroke = withOpacity(stroke, opacity*clamp01(st.Float("strokeOpacity", 100)/100))

	width := st.Float("strokeWidth", 1)
	if width < 0 {
		return paint{}, errInvalidStyle("strokeWidth must not be negative")
	}
	p := paint{
		fill:   fill,
		stroke: Stroke{Color: stroke, Width: width * r.scale},
	}
	if st.Bool("dashed", false) {
		p.stroke.Dash = dashPattern(st.Value("dashPattern", ""), math.Max(width, 1)*r.scale)
	}
	if st.Bool("shadow", false) && fill != nil {
		p.shadow = withOpacity(darkenColor(fill, 0.6), 0.25*opacity)
	}
	return p, nil
}

// dashPattern parses a space separated pattern given in stroke widths.
func dashPattern(raw string, unit float64) []float64 {
	var dash []float64
	for _, f := range strings.Fields(raw) {
		v, ok := parseFloat(f)
		if !ok || v < 0 {
			dash = nil
			break
		}
		dash = append(dash, v*unit)
	}
	if len(dash) == 0 || allZero(dash) {
		return []float64{3 * unit, 3 * unit}
	}
	return dash
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// outlinePath returns the closed outline of a shape in device coordinates.
func outlinePath(shape string, d graph.Rect, st graph.Style, scale float64) *Path {
	x, y, w, h := d.X, d.Y, d.Width, d.Height
	switch shape {
	case shapeEllipse, shapeDoubleEllipse:
		return ellipsePath(x, y, w, h)
	case shapeRhombus:
		return polygonPath(
			point{x + w/2, y}, point{x + w, y + h/2},
			point{x + w/2, y + h}, point{x, y + h/2},
		)
	case shapeTriangle:
		switch st.Value("direction", "east") {
		case "north":
			return polygonPath(point{x, y + h}, point{x + w/2, y}, point{x + w, y + h})
		case "south":
			return polygonPath(point{x, y}, point{x + w, y}, point{x + w/2, y + h})
		case "west":
			return polygonPath(point{x + w, y}, point{x, y + h/2}, point{x + w, y + h})
		default:
			return polygonPath(point{x, y}, point{x + w, y + h/2}, point{x, y + h})
		}
	case shapeHexagon:
		s := w * clamp01(st.Float("size", 25)/100)
		if st.Bool("fixedSize", false) {
			s = math.Min(st.Float("size", 25)*scale, w/2)
		}
		return polygonPath(
			point{x + s, y}, point{x + w - s, y}, point{x + w, y + h/2},
			point{x + w - s, y + h}, point{x + s, y + h}, point{x, y + h/2},
		)
	case shapeCylinder:
		dy := math.Min(15*scale, h/2)
		p := &Path{}
		p.MoveTo(x, y+dy)
		p.CubicTo(x, y+dy-dy*kappa*2, x+w, y+dy-dy*kappa*2, x+w, y+dy)
		p.LineTo(x+w, y+h-dy)
		p.CubicTo(x+w, y+h-dy+dy*kappa*2, x, y+h-dy+dy*kappa*2, x, y+h-dy)
		p.Close()
		return p
	default:
		if st.Bool("rounded", false) {
			arc := st.Float("arcSize", 15)
			radius := math.Min(w, h) * clamp01(arc/100)
			if st.Bool("absoluteArcSize", false) {
				radius = arc / 2 * scale
			}
			return roundRectPath(x, y, w, h, radius)
		}
		return rectPath(x, y, w, h)
	}
}

// detailPath returns strokes drawn on top of the outline: the inner ring of
// a double ellipse and the front rim of a cylinder.
func detailPath(shape string, d graph.Rect, strokeWidth, scale float64) *Path {
	x, y, w, h := d.X, d.Y, d.Width, d.Height
	switch shape {
	case shapeDoubleEllipse:
		inset := math.Min(4*scale+strokeWidth, math.Min(w/5, h/5))
		return ellipsePath(x+inset, y+inset, w-2*inset, h-2*inset)
	case shapeCylinder:
		dy := math.Min(15*scale, h/2)
		p := &Path{}
		p.MoveTo(x, y+dy)
		p.CubicTo(x, y+dy+dy*kappa*2, x+w, y+dy+dy*kappa*2, x+w, y+dy)
		return p
	}
	return nil
}

func (r *renderState) drawShape(shape string, d graph.Rect, st graph.Style, p paint) {
	if shape == shapeSwimlane {
		r.drawSwimlane(d, st, p)
		return
	}
	outline := outlinePath(shape, d, st, r.scale)
	if p.shadow != nil {
		r.surface.Push()
		r.surface.Translate(2*r.scale, 3*r.scale)
		r.surface.FillPath(outline, p.shadow)
		r.surface.Pop()
	}
	r.surface.FillPath(outline, p.fill)
	r.surface.StrokePath(outline, p.stroke)
	if detail := detailPath(shape, d, p.stroke.Width, r.scale); detail != nil {
		r.surface.StrokePath(detail, p.stroke)
	}
}

// swimlaneHeader returns the header band of a swimlane in device units.
func swimlaneHeader(d graph.Rect, st graph.Style, scale float64) graph.Rect {
	start := math.Max(0, st.Float("startSize", 23)) * scale
	if !st.Bool("horizontal", true) {
		return graph.Rect{X: d.X, Y: d.Y, Width: math.Min(start, d.Width), Height: d.Height}
	}
	return graph.Rect{X: d.X, Y: d.Y, Width: d.Width, Height: math.Min(start, d.Height)}
}

func (r *renderState) drawSwimlane(d graph.Rect, st graph.Style, p paint) {
	header := swimlaneHeader(d, st, r.scale)
	var body color.Color
	switch raw := st.Value("swimlaneFillColor", ""); raw {
	case "":
	case "default":
		body = lightenColor(p.fill, 0.35)
	default:
		body, _ = parseColor(raw, nil)
	}

	outline := rectPath(d.X, d.Y, d.Width, d.Height)
	if p.shadow != nil {
		r.surface.Push()
		r.surface.Translate(2*r.scale, 3*r.scale)
		r.surface.FillPath(outline, p.shadow)
		r.surface.Pop()
	}
	r.surface.FillPath(outline, body)
	r.surface.FillPath(rectPath(header.X, header.Y, header.Width, header.Height), p.fill)
	r.surface.StrokePath(outline, p.stroke)

	sep := &Path{}
	if st.Bool("horizontal", true) {
		sep.MoveTo(d.X, header.Bottom())
		sep.LineTo(d.Right(), header.Bottom())
	} else {
		sep.MoveTo(header.Right(), d.Y)
		sep.LineTo(header.Right(), d.Bottom())
	}
	r.surface.StrokePath(sep, p.stroke)
}

// drawCellImage draws the image referenced by the style, fitted into d.
func (r *renderState) drawCellImage(ctx context.Context, d graph.Rect, st graph.Style) {
	ref := st.Value("image", "")
	if ref == "" || r.opts.Images == nil || d.Width <= 0 || d.Height <= 0 {
		return
	}
	img, err := r.opts.Images.Resolve(ctx, ref)
	if err != nil || img == nil {
		return
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	target := d
	if st.Bool("imageAspect", true) {
		k := math.Min(d.Width/float64(b.Dx()), d.Height/float64(b.Dy()))
		w, h := float64(b.Dx())*k, float64(b.Dy())*k
		target = graph.Rect{X: d.X + (d.Width-w)/2, Y: d.Y + (d.Height-h)/2, Width: w, Height: h}
	}
	r.surface.DrawImage(img, target.X, target.Y, target.Width, target.Height)
}

// labelIconRect is where a "label" shape places its icon.
func labelIconRect(d graph.Rect, st graph.Style, scale float64) graph.Rect {
	w := st.Float("imageWidth", 24) * scale
	h := st.Float("imageHeight", 24) * scale
	pad := st.Float("spacing", 2) * scale
	x := d.X + pad
	switch st.Value("imageAlign", "left") {
	case "center":
		x = d.X + (d.Width-w)/2
	case "right":
		x = d.Right() - w - pad
	}
	y := d.Y + (d.Height-h)/2
	switch st.Value("imageVerticalAlign", "middle") {
	case "top":
		y = d.Y + pad
	case "bottom":
		y = d.Bottom() - h - pad
	}
	return graph.Rect{X: x, Y: y, Width: w, Height: h}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
