package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// RasterSurface draws into an RGBA bitmap.
type RasterSurface struct {
	dc          *gg.Context
	transparent bool
	fonts       *faceCache
}

var _ Surface = (*RasterSurface)(nil)

// NewRasterSurface allocates a width x height bitmap. Pixels start fully
// transparent; the renderer paints the background.
func NewRasterSurface(width, height int, transparent bool) *RasterSurface {
	dc := gg.NewContext(width, height)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	return &RasterSurface{
		dc:          dc,
		transparent: transparent,
		fonts:       newFaceCache(),
	}
}

// Image returns the bitmap drawn so far.
func (s *RasterSurface) Image() image.Image {
	return s.dc.Image()
}

// Close releases cached font faces.
func (s *RasterSurface) Close() {
	s.fonts.close()
}

func (s *RasterSurface) Transparent() bool { return s.transparent }

func (s *RasterSurface) Push() { s.dc.Push() }

func (s *RasterSurface) Pop() { s.dc.Pop() }

func (s *RasterSurface) Translate(dx, dy float64) { s.dc.Translate(dx, dy) }

func (s *RasterSurface) Rotate(deg, cx, cy float64) {
	s.dc.RotateAbout(gg.Radians(deg), cx, cy)
}

func (s *RasterSurface) Clip(x, y, w, h float64) {
	s.dc.ClearPath()
	s.dc.DrawRectangle(x, y, math.Max(w, 0), math.Max(h, 0))
	s.dc.Clip()
}

func (s *RasterSurface) FillPath(p *Path, c color.Color) {
	if p.Empty() || c == nil {
		return
	}
	s.replay(p)
	s.dc.SetColor(c)
	s.dc.Fill()
}

func (s *RasterSurface) StrokePath(p *Path, st Stroke) {
	if p.Empty() || st.Color == nil || st.Width <= 0 {
		return
	}
	s.replay(p)
	s.dc.SetColor(st.Color)
	s.dc.SetLineWidth(st.Width)
	s.dc.SetDash(st.Dash...)
	s.dc.Stroke()
	s.dc.SetDash()
}

// DrawImage scales img into the target rectangle. Only the part of the
// target that can reach the bitmap is resampled, so the scratch buffer is
// bounded by the surface and not by the cell geometry.
func (s *RasterSurface) DrawImage(img image.Image, x, y, w, h float64) {
	if img == nil || img.Bounds().Empty() || !(w > 0) || !(h > 0) {
		return
	}
	vx0, vy0, vx1, vy1, ok := s.visible(x, y, x+w, y+h)
	if !ok {
		return
	}
	ox, oy := math.Floor(vx0), math.Floor(vy0)
	dw, dh := int(math.Ceil(vx1-ox)), int(math.Ceil(vy1-oy))
	if dw <= 0 || dh <= 0 {
		return
	}

	sb := img.Bounds()
	kx, ky := w/float64(sb.Dx()), h/float64(sb.Dy())
	s2d := f64.Aff3{
		kx, 0, x - ox - float64(sb.Min.X)*kx,
		0, ky, y - oy - float64(sb.Min.Y)*ky,
	}
	scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Transform(scaled, s2d, img, sb, xdraw.Src, nil)
	s.dc.DrawImage(scaled, int(ox), int(oy))
}

// visible intersects the user-space rectangle (x0,y0)-(x1,y1) with the
// bitmap mapped back through the current transform.
func (s *RasterSurface) visible(x0, y0, x1, y1 float64) (float64, float64, float64, float64, bool) {
	ox, oy := s.dc.TransformPoint(0, 0)
	ux, uy := s.dc.TransformPoint(1, 0)
	vx, vy := s.dc.TransformPoint(0, 1)
	a, b := ux-ox, uy-oy
	c, d := vx-ox, vy-oy
	det := a*d - b*c
	if det == 0 {
		return 0, 0, 0, 0, false
	}

	sw, sh := float64(s.dc.Width()), float64(s.dc.Height())
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4][2]float64{{0, 0}, {sw, 0}, {0, sh}, {sw, sh}} {
		px, py := p[0]-ox, p[1]-oy
		lx := (d*px - c*py) / det
		ly := (a*py - b*px) / det
		minX, maxX = math.Min(minX, lx), math.Max(maxX, lx)
		minY, maxY = math.Min(minY, ly), math.Max(maxY, ly)
	}

	x0, y0 = math.Max(x0, minX), math.Max(y0, minY)
	x1, y1 = math.Min(x1, maxX), math.Min(y1, maxY)
	if !(x1 > x0) || !(y1 > y0) {
		return 0, 0, 0, 0, false
	}
	return x0, y0, x1, y1, true
}

func (s *RasterSurface) DrawText(text string, x, y float64, f Font, c color.Color) {
	if text == "" || c == nil {
		return
	}
	face, err := s.fonts.face(f)
	if err != nil {
		return
	}
	s.dc.SetFontFace(face)
	s.dc.SetColor(c)
	s.dc.DrawString(text, x, y)
	if f.Underline {
		w := s.fonts.measure(text, f)
		uy := y + f.Size*0.1
		s.dc.SetLineWidth(math.Max(f.Size/14, 1))
		s.dc.DrawLine(x, uy, x+w, uy)
		s.dc.Stroke()
	}
}

func (s *RasterSurface) replay(p *Path) {
	s.dc.ClearPath()
	for _, op := range p.ops {
		switch op.kind {
		case opMove:
			s.dc.MoveTo(op.pts[0].X, op.pts[0].Y)
		case opLine:
			s.dc.LineTo(op.pts[0].X, op.pts[0].Y)
		case opCubic:
			s.dc.CubicTo(op.pts[0].X, op.pts[0].Y, op.pts[1].X, op.pts[1].Y, op.pts[2].X, op.pts[2].Y)
		case opClose:
			s.dc.ClosePath()
		}
	}
}
