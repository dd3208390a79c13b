package renderer

import (
	"context"
	"encoding/base64"
	"fmt"
	"image/color"
	"math"
	"runtime"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/ankek/terraform-provider-drawio/internal/graph"
	"github.com/ankek/terraform-provider-drawio/internal/resources"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

// Output is an encoded export plus the metadata a sink needs to serve it.
type Output struct {
	// Data is base64 text when Base64 is set, raw bytes otherwise.
	Data        []byte
	ContentType string
	FileName    string
	Base64      bool
	// Width and Height are the surface size in pixels or points.
	Width, Height int
	Skipped       int
	// Failures lists the skipped cells, or is nil.
	Failures error
}

// Exporter renders models into encoded output. It is safe for concurrent
// use; the global image cache is the only state shared between exports.
type Exporter struct {
	Global *resources.GlobalCache
	// Fetcher loads images missing from the caches. Nil selects a loader
	// with the default options.
	Fetcher resources.Fetcher
	// MaxArea bounds the pixel area of a surface sized from the diagram.
	// Zero selects validation.DefaultMaxArea.
	MaxArea int64
}

// Export renders m as req asks. A nil model gives a background-only
// output. Memory exhaustion during rendering or encoding is reported as
// ErrResourceExhausted.
func (e *Exporter) Export(ctx context.Context, m *graph.Model, req validation.ExportRequest) (out *Output, err error) {
	start := time.Now()
	tflog.Debug(ctx, "Starting export", map[string]interface{}{
		"format": string(req.Format.Format),
		"width":  req.Width,
		"height": req.Height,
		"scale":  req.Scale,
		"cells":  m.Len(),
	})
	defer func() {
		if p := recover(); p != nil {
			logExhaustion(ctx, p)
			out, err = nil, fmt.Errorf("%w: %v", ErrResourceExhausted, p)
		}
	}()

	fetcher := e.Fetcher
	if fetcher == nil {
		fetcher = resources.NewLoader(resources.DefaultOptions())
	}
	scene := NewScene(m)
	opts := Options{
		Scale:      req.Scale,
		Border:     float64(req.Border),
		Clip:       req.HasSize(),
		Background: background(m, req),
		Extras:     req.Extras,
		Images:     resources.NewResolver(e.Global, fetcher, req.DiagramReference),
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	var (
		data          []byte
		report        Report
		width, height int
	)
	if req.Format.Vector {
		data, report, width, height, err = e.exportPDF(ctx, scene, opts, req)
	} else {
		data, report, width, height, err = e.exportRaster(ctx, scene, opts, req)
	}
	if err != nil {
		return nil, err
	}

	out = &Output{
		Data:        data,
		ContentType: req.Format.MIMEType,
		FileName:    fileName(req),
		Width:       width,
		Height:      height,
		Skipped:     report.Skipped,
		Failures:    report.Failures,
	}
	if req.Base64 && !req.Format.Vector {
		out.Data = []byte(base64.StdEncoding.EncodeToString(data))
		out.Base64 = true
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	tflog.Debug(ctx, "Finished export", map[string]interface{}{
		"duration_ms":  time.Since(start).Milliseconds(),
		"bytes":        len(out.Data),
		"drawn":        report.Drawn,
		"skipped":      report.Skipped,
		"heap_alloc":   ms.HeapAlloc,
		"sys":          ms.Sys,
		"heap_objects": ms.HeapObjects,
	})
	return out, nil
}

func (e *Exporter) maxArea() int64 {
	if e.MaxArea > 0 {
		return e.MaxArea
	}
	return validation.DefaultMaxArea
}

// rasterSize is the requested size, or the scaled diagram bounds plus the
// border on both sides.
func rasterSize(sc *Scene, req validation.ExportRequest, scale float64) (int, int) {
	if req.HasSize() {
		return req.Width, req.Height
	}
	b := sc.Bounds()
	border := float64(req.Border)
	return pixels(b.Width*scale + 2*border), pixels(b.Height*scale + 2*border)
}

// pixels rounds a surface dimension up, clamped to [1, MaxInt32] so the
// area check sees oversized diagrams instead of a wrapped conversion.
func pixels(v float64) int {
	switch {
	case !(v < math.MaxInt32):
		return math.MaxInt32
	case v < 1:
		return 1
	}
	return int(math.Ceil(v))
}

func (e *Exporter) exportRaster(ctx context.Context, sc *Scene, opts Options, req validation.ExportRequest) ([]byte, Report, int, int, error) {
	w, h := rasterSize(sc, req, opts.Scale)
	if validation.ExceedsArea(w, h, e.maxArea()) {
		return nil, Report{}, 0, 0, fmt.Errorf("%w: surface of %dx%d pixels exceeds the area limit", ErrResourceExhausted, w, h)
	}
	opts.Width, opts.Height = float64(w), float64(h)

	surface := NewRasterSurface(w, h, req.Format.Transparent)
	defer surface.Close()
	report, err := Render(ctx, sc, surface, opts)
	if err != nil {
		return nil, report, 0, 0, err
	}
	data, err := encodeRaster(surface.Image(), req)
	if err != nil {
		return nil, report, 0, 0, err
	}
	return data, report, w, h, nil
}

func (e *Exporter) exportPDF(ctx context.Context, sc *Scene, opts Options, req validation.ExportRequest) ([]byte, Report, int, int, error) {
	if req.HasSize() && validation.ExceedsArea(req.Width, req.Height, e.maxArea()) {
		return nil, Report{}, 0, 0, fmt.Errorf("%w: page of %dx%d points exceeds the area limit", ErrResourceExhausted, req.Width, req.Height)
	}
	surface, opts := pdfPage(opts, req)

	report, err := Render(ctx, sc, surface, opts)
	if err != nil {
		return nil, report, 0, 0, err
	}
	data, err := surface.Finish()
	if err != nil {
		return nil, report, 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	pw, ph := surface.PageSize()
	return data, report, int(math.Round(pw)), int(math.Round(ph)), nil
}

// pdfPage opens the page for req, shifted by pdfOffset, and the options to
// draw it with. The background bleeds back over the shifted-off band.
func pdfPage(opts Options, req validation.ExportRequest) (*PDFSurface, Options) {
	var surface *PDFSurface
	if req.HasSize() {
		surface = NewPDFSurface(float64(req.Width)+pdfOffset, float64(req.Height)+pdfOffset)
		opts.Width, opts.Height = float64(req.Width), float64(req.Height)
	} else {
		surface = NewPDFSurface(0, 0)
		opts.Width, opts.Height = surface.PageSize()
	}
	surface.Translate(pdfOffset, pdfOffset)
	opts.Bleed = pdfOffset
	return surface, opts
}

// background is the request background, or the diagram's own background
// when the request only carries the format default.
func background(m *graph.Model, req validation.ExportRequest) color.Color {
	if req.DefaultBackground && m != nil {
		if c, err := parseColor(m.Attributes["background"], nil); err == nil && c != nil {
			return c
		}
	}
	return req.Background
}

func fileName(req validation.ExportRequest) string {
	if req.FileName != "" {
		return validation.CorrectFileName(req.FileName, req.Format)
	}
	return "export." + req.Format.Extension
}

func logExhaustion(ctx context.Context, p interface{}) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	tflog.Error(ctx, "Export ran out of resources", map[string]interface{}{
		"panic":      fmt.Sprint(p),
		"heap_alloc": ms.HeapAlloc,
		"heap_sys":   ms.HeapSys,
		"heap_idle":  ms.HeapIdle,
		"sys":        ms.Sys,
	})
}
