package renderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/jung-kurt/gofpdf"
)

// pdfOffset shifts the page origin to compensate for the half-pixel offset
// at page edges; pages are one unit larger than requested for the same
// reason.
const pdfOffset = 1.0

// PDFSurface draws onto a single PDF page measured in points.
type PDFSurface struct {
	pdf      *gofpdf.Fpdf
	clips    []int
	images   int
	finished bool
}

var _ Surface = (*PDFSurface)(nil)

// NewPDFSurface opens a document with one page. A zero width or height
// selects an A4 page.
func NewPDFSurface(width, height float64) *PDFSurface {
	cfg := &gofpdf.InitType{UnitStr: "pt", SizeStr: "A4", OrientationStr: "P"}
	if width > 0 && height > 0 {
		cfg.Size = gofpdf.SizeType{Wd: width, Ht: height}
	}
	pdf := gofpdf.NewCustom(cfg)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)
	for style, ttf := range fontTTF {
		pdf.AddUTF8FontFromBytes(fontFamily, pdfStyle(fontStyle(style)), ttf)
	}
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")
	pdf.AddPage()

	s := &PDFSurface{pdf: pdf, clips: []int{0}}
	// The page-wide frame lets translations apply before any Push.
	pdf.TransformBegin()
	return s
}

func pdfStyle(st fontStyle) string {
	switch st {
	case styleBold:
		return "B"
	case styleItalic:
		return "I"
	case styleBoldItalic:
		return "BI"
	default:
		return ""
	}
}

// PageSize returns the page dimensions in points.
func (s *PDFSurface) PageSize() (float64, float64) {
	return s.pdf.GetPageSize()
}

// Finish closes open drawing state and writes the document.
func (s *PDFSurface) Finish() ([]byte, error) {
	if !s.finished {
		for len(s.clips) > 1 {
			s.Pop()
		}
		s.endClips()
		s.pdf.TransformEnd()
		s.finished = true
	}
	var buf bytes.Buffer
	if err := s.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *PDFSurface) Transparent() bool { return false }

func (s *PDFSurface) Push() {
	s.pdf.TransformBegin()
	s.clips = append(s.clips, 0)
}

func (s *PDFSurface) Pop() {
	if len(s.clips) <= 1 {
		return
	}
	s.endClips()
	s.clips = s.clips[:len(s.clips)-1]
	s.pdf.TransformEnd()
}

func (s *PDFSurface) endClips() {
	top := len(s.clips) - 1
	for ; s.clips[top] > 0; s.clips[top]-- {
		s.pdf.ClipEnd()
	}
}

func (s *PDFSurface) Translate(dx, dy float64) { s.pdf.TransformTranslate(dx, dy) }

func (s *PDFSurface) Rotate(deg, cx, cy float64) {
	// gofpdf angles run counter-clockwise.
	s.pdf.TransformRotate(-deg, cx, cy)
}

func (s *PDFSurface) Clip(x, y, w, h float64) {
	s.pdf.ClipRect(x, y, math.Max(w, 0), math.Max(h, 0), false)
	s.clips[len(s.clips)-1]++
}

func (s *PDFSurface) FillPath(p *Path, c color.Color) {
	if p.Empty() || c == nil {
		return
	}
	r, g, b, a := toRGB255(c)
	if a == 0 {
		return
	}
	s.pdf.SetFillColor(r, g, b)
	s.withAlpha(a, func() {
		s.replay(p)
		s.pdf.DrawPath("F")
	})
}

func (s *PDFSurface) StrokePath(p *Path, st Stroke) {
	if p.Empty() || st.Color == nil || st.Width <= 0 {
		return
	}
	r, g, b, a := toRGB255(st.Color)
	if a == 0 {
		return
	}
	s.pdf.SetDrawColor(r, g, b)
	s.pdf.SetLineWidth(st.Width)
	if len(st.Dash) > 0 {
		s.pdf.SetDashPattern(st.Dash, 0)
	}
	s.withAlpha(a, func() {
		s.replay(p)
		s.pdf.DrawPath("D")
	})
	if len(st.Dash) > 0 {
		s.pdf.SetDashPattern([]float64{}, 0)
	}
}

func (s *PDFSurface) DrawImage(img image.Image, x, y, w, h float64) {
	if img == nil || w <= 0 || h <= 0 {
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return
	}
	s.images++
	name := fmt.Sprintf("img%d", s.images)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	s.pdf.RegisterImageOptionsReader(name, opts, &buf)
	s.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
}

func (s *PDFSurface) DrawText(text string, x, y float64, f Font, c color.Color) {
	if text == "" || c == nil {
		return
	}
	r, g, b, a := toRGB255(c)
	if a == 0 {
		return
	}
	style := pdfStyle(f.style())
	if f.Underline {
		style += "U"
	}
	s.pdf.SetFont(fontFamily, style, f.Size)
	s.pdf.SetTextColor(r, g, b)
	s.withAlpha(a, func() {
		s.pdf.Text(x, y, text)
	})
}

func (s *PDFSurface) withAlpha(a uint8, draw func()) {
	if a == 255 {
		draw()
		return
	}
	s.pdf.SetAlpha(float64(a)/255, "Normal")
	draw()
	s.pdf.SetAlpha(1, "Normal")
}

func (s *PDFSurface) replay(p *Path) {
	for _, op := range p.ops {
		switch op.kind {
		case opMove:
			s.pdf.MoveTo(op.pts[0].X, op.pts[0].Y)
		case opLine:
			s.pdf.LineTo(op.pts[0].X, op.pts[0].Y)
		case opCubic:
			s.pdf.CurveBezierCubicTo(op.pts[0].X, op.pts[0].Y, op.pts[1].X, op.pts[1].Y, op.pts[2].X, op.pts[2].Y)
		case opClose:
			s.pdf.ClosePath()
		}
	}
}

func toRGB255(c color.Color) (r, g, b int, a uint8) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return int(n.R), int(n.G), int(n.B), n.A
}
