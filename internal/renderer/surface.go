package renderer

import (
	"image"
	"image/color"
	"math"
)

// Surface is a 2D drawing target. All coordinates are device units: pixels
// for raster output, points for PDF. Implementations antialias shapes and
// text.
type Surface interface {
	// Transparent reports whether untouched areas stay transparent.
	Transparent() bool

	// Push saves the transform and clip; Pop restores the last saved state.
	Push()
	Pop()
	Translate(dx, dy float64)
	// Rotate rotates clockwise by deg degrees around (cx, cy).
	Rotate(deg, cx, cy float64)
	// Clip intersects the clip region with a rectangle until the matching
	// Pop.
	Clip(x, y, w, h float64)

	FillPath(p *Path, c color.Color)
	StrokePath(p *Path, st Stroke)
	DrawImage(img image.Image, x, y, w, h float64)
	// DrawText draws a single line with its baseline starting at (x, y).
	DrawText(text string, x, y float64, f Font, c color.Color)
}

// Stroke describes how a path outline is drawn.
type Stroke struct {
	Color color.Color
	Width float64
	// Dash alternates dash and gap lengths. Empty means solid.
	Dash []float64
}

// Font selects a face of the built-in font family.
type Font struct {
	Size      float64
	Bold      bool
	Italic    bool
	Underline bool
}

type opKind int

const (
	opMove opKind = iota
	opLine
	opCubic
	opClose
)

type pathOp struct {
	kind opKind
	pts  [3]point
}

type point struct {
	X, Y float64
}

// Path is a sequence of drawing commands, replayed by each surface.
type Path struct {
	ops []pathOp
}

// MoveTo starts a new subpath.
func (p *Path) MoveTo(x, y float64) {
	p.ops = append(p.ops, pathOp{kind: opMove, pts: [3]point{{x, y}}})
}

// LineTo adds a straight segment.
func (p *Path) LineTo(x, y float64) {
	p.ops = append(p.ops, pathOp{kind: opLine, pts: [3]point{{x, y}}})
}

// CubicTo adds a cubic Bezier segment.
func (p *Path) CubicTo(x1, y1, x2, y2, x, y float64) {
	p.ops = append(p.ops, pathOp{kind: opCubic, pts: [3]point{{x1, y1}, {x2, y2}, {x, y}}})
}

// Close closes the current subpath.
func (p *Path) Close() {
	p.ops = append(p.ops, pathOp{kind: opClose})
}

// Empty reports whether the path has no commands.
func (p *Path) Empty() bool {
	return p == nil || len(p.ops) == 0
}

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522847498

func rectPath(x, y, w, h float64) *Path {
	p := &Path{}
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.Close()
	return p
}

func roundRectPath(x, y, w, h, r float64) *Path {
	r = math.Min(r, math.Min(w, h)/2)
	if r <= 0 {
		return rectPath(x, y, w, h)
	}
	k := r * (1 - kappa)
	p := &Path{}
	p.MoveTo(x+r, y)
	p.LineTo(x+w-r, y)
	p.CubicTo(x+w-k, y, x+w, y+k, x+w, y+r)
	p.LineTo(x+w, y+h-r)
	p.CubicTo(x+w, y+h-k, x+w-k, y+h, x+w-r, y+h)
	p.LineTo(x+r, y+h)
	p.CubicTo(x+k, y+h, x, y+h-k, x, y+h-r)
	p.LineTo(x, y+r)
	p.CubicTo(x, y+k, x+k, y, x+r, y)
	p.Close()
	return p
}

func ellipsePath(x, y, w, h float64) *Path {
	p := &Path{}
	appendEllipse(p, x, y, w, h)
	return p
}

func appendEllipse(p *Path, x, y, w, h float64) {
	rx, ry := w/2, h/2
	cx, cy := x+rx, y+ry
	ox, oy := rx*kappa, ry*kappa
	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+oy, cx+ox, cy+ry, cx, cy+ry)
	p.CubicTo(cx-ox, cy+ry, cx-rx, cy+oy, cx-rx, cy)
	p.CubicTo(cx-rx, cy-oy, cx-ox, cy-ry, cx, cy-ry)
	p.CubicTo(cx+ox, cy-ry, cx+rx, cy-oy, cx+rx, cy)
	p.Close()
}

func polygonPath(pts ...point) *Path {
	p := polylinePath(pts...)
	if !p.Empty() {
		p.Close()
	}
	return p
}

func polylinePath(pts ...point) *Path {
	p := &Path{}
	for i, pt := range pts {
		if i == 0 {
			p.MoveTo(pt.X, pt.Y)
		} else {
			p.LineTo(pt.X, pt.Y)
		}
	}
	return p
}
