package validation

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExportRequest(t *testing.T) {
	tests := []struct {
		name      string
		params    map[string]string
		wantErr   bool
		wantField string
	}{
		{
			name:   "minimal png",
			params: map[string]string{"format": "png"},
		},
		{
			name:      "missing format",
			params:    map[string]string{"w": "10", "h": "10"},
			wantErr:   true,
			wantField: ParamFormat,
		},
		{
			name:      "blank format",
			params:    map[string]string{"format": "  "},
			wantErr:   true,
			wantField: ParamFormat,
		},
		{
			name:      "unknown format",
			params:    map[string]string{"format": "svg"},
			wantErr:   true,
			wantField: ParamFormat,
		},
		{
			name:      "zero width",
			params:    map[string]string{"format": "png", "w": "0"},
			wantErr:   true,
			wantField: ParamWidth,
		},
		{
			name:      "negative height",
			params:    map[string]string{"format": "png", "h": "-4"},
			wantErr:   true,
			wantField: ParamHeight,
		},
		{
			name:      "non numeric width",
			params:    map[string]string{"format": "png", "w": "wide"},
			wantErr:   true,
			wantField: ParamWidth,
		},
		{
			name:      "zero scale",
			params:    map[string]string{"format": "png", "scale": "0"},
			wantErr:   true,
			wantField: ParamScale,
		},
		{
			name:      "zero dpi",
			params:    map[string]string{"format": "png", "dpi": "0"},
			wantErr:   true,
			wantField: ParamDPI,
		},
		{
			name:      "negative border",
			params:    map[string]string{"format": "png", "border": "-1"},
			wantErr:   true,
			wantField: ParamBorder,
		},
		{
			name:   "zero border",
			params: map[string]string{"format": "png", "border": "0"},
		},
		{
			name:      "malformed extras",
			params:    map[string]string{"format": "png", "extras": "{grid:"},
			wantErr:   true,
			wantField: ParamExtras,
		},
		{
			name:      "extras not an object",
			params:    map[string]string{"format": "png", "extras": "[1,2]"},
			wantErr:   true,
			wantField: ParamExtras,
		},
		{
			name:      "bad background",
			params:    map[string]string{"format": "png", "bg": "#zzzzzz"},
			wantErr:   true,
			wantField: ParamBackground,
		},
		{
			name:   "width only skips area check",
			params: map[string]string{"format": "png", "w": "100000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExportRequest(tt.params, DefaultLimits())
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExportRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected a ValidationError, got %T", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestParseExportRequest_Area(t *testing.T) {
	limits := Limits{MaxArea: 10000 * 10000}

	tests := []struct {
		name    string
		w, h    string
		wantErr bool
	}{
		{name: "well under limit", w: "5000", h: "5000"},
		{name: "just under limit", w: "9999", h: "10000"},
		{name: "exactly at limit", w: "10000", h: "10000", wantErr: true},
		{name: "over limit", w: "20000", h: "20000", wantErr: true},
		{name: "product wraps to zero", w: "4294967296", h: "4294967296", wantErr: true},
		{name: "product wraps negative", w: "3037000500", h: "3037000500", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExportRequest(map[string]string{"format": "png", "w": tt.w, "h": tt.h}, limits)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseExportRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExceedsArea(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		max  int64
		want bool
	}{
		{name: "under", w: 99, h: 1, max: 100},
		{name: "at", w: 10, h: 10, max: 100, want: true},
		{name: "unbounded", w: 1 << 40, h: 1 << 40, max: 0},
		{name: "unsized", w: 0, h: 1 << 40, max: 100},
		{name: "wraps to zero", w: 1 << 32, h: 1 << 32, max: DefaultMaxArea, want: true},
		{name: "wraps negative", w: 3037000500, h: 3037000500, max: DefaultMaxArea, want: true},
		{name: "largest int64 limit", w: 3037000499, h: 3037000499, max: math.MaxInt64},
		{name: "past largest int64 limit", w: math.MaxInt64, h: 2, max: math.MaxInt64, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExceedsArea(tt.w, tt.h, tt.max))
		})
	}
}

func TestParseExportRequest_PDFAreaOverflow(t *testing.T) {
	_, err := ParseExportRequest(map[string]string{"format": "pdf", "w": "4294967296", "h": "4294967296"}, DefaultLimits())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected a ValidationError, got %v", err)
	assert.Equal(t, ParamWidth, verr.Field)
}

func TestParseExportRequest_Defaults(t *testing.T) {
	req, err := ParseExportRequest(map[string]string{"format": "JPG"}, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, FormatJPEG, req.Format.Format)
	assert.Equal(t, 1.0, req.Scale)
	assert.Equal(t, 0, req.Border)
	assert.False(t, req.HasSize())
	assert.Equal(t, color.White, req.Background, "non-transparent formats fall back to white")
	assert.True(t, req.DefaultBackground)
	assert.True(t, req.Extras.IsEmpty())

	req, err = ParseExportRequest(map[string]string{"format": "png"}, DefaultLimits())
	require.NoError(t, err)
	assert.Nil(t, req.Background, "png keeps an unset background transparent")
	assert.False(t, req.DefaultBackground)

	req, err = ParseExportRequest(map[string]string{"format": "pdf", "bg": "none"}, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, color.White, req.Background)
}

func TestParseExportRequest_Fields(t *testing.T) {
	params := map[string]string{
		"format":           "png",
		"w":                "200",
		"h":                "100",
		"scale":            "2.5",
		"dpi":              "300",
		"border":           "10",
		"bg":               "#ff0000",
		"filename":         "Flow.xml",
		"xml":              "%3CmxGraphModel%2F%3E",
		"extras":           "%7B%22grid%22%3A%7B%22size%22%3A10%7D%7D",
		"base64":           "1",
		"embedXml":         "TRUE",
		"diagramReference": "https://example.com/wiki/Main/Flow",
	}

	req, err := ParseExportRequest(params, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, 200, req.Width)
	assert.Equal(t, 100, req.Height)
	assert.Equal(t, 2.5, req.Scale)
	assert.Equal(t, 300, req.DPI)
	assert.Equal(t, 10, req.Border)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, req.Background)
	assert.False(t, req.DefaultBackground)
	assert.Equal(t, "Flow.png", req.FileName)
	assert.Equal(t, "<mxGraphModel/>", req.SourceXML)
	assert.True(t, req.Base64)
	assert.True(t, req.EmbedSource)
	assert.Equal(t, "https://example.com/wiki/Main/Flow", req.DiagramReference)

	size, ok := req.Extras.Object("grid").Number("size")
	require.True(t, ok)
	assert.Equal(t, 10.0, size)
}

func TestParseExportRequest_SourceSize(t *testing.T) {
	limits := Limits{MaxArea: DefaultMaxArea, MaxSourceSize: 16}

	_, err := ParseExportRequest(map[string]string{"format": "png", "xml": "<mxGraphModel/>"}, limits)
	assert.NoError(t, err)

	_, err = ParseExportRequest(map[string]string{"format": "png", "xml": "<mxGraphModel></mxGraphModel>"}, limits)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ParamXML, verr.Field)
}

func TestCorrectFileName(t *testing.T) {
	png, _ := LookupFormat("png")
	pdf, _ := LookupFormat("pdf")

	tests := []struct {
		name     string
		file     string
		info     FormatInfo
		expected string
	}{
		{name: "xml suffix", file: "diagram.xml", info: png, expected: "diagram.png"},
		{name: "drawio suffix", file: "diagram.drawio", info: pdf, expected: "diagram.pdf"},
		{name: "mismatched export suffix", file: "diagram.jpg", info: png, expected: "diagram.png"},
		{name: "matching suffix", file: "diagram.PNG", info: png, expected: "diagram.PNG"},
		{name: "no suffix", file: "diagram", info: png, expected: "diagram"},
		{name: "unrelated suffix", file: "report.v2", info: pdf, expected: "report.v2"},
		{name: "empty", file: "", info: pdf, expected: ""},
		{name: "dotfile", file: ".xml", info: png, expected: ".xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CorrectFileName(tt.file, tt.info); got != tt.expected {
				t.Errorf("CorrectFileName(%q) = %q, want %q", tt.file, got, tt.expected)
			}
		})
	}
}

func TestExtras(t *testing.T) {
	extras, err := ParseExtras([]byte(`{"grid":{"size":8,"color":"#ddd"},"globalVars":{"owner":"ops","rev":3,"draft":true},"flag":false}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"flag", "globalVars", "grid"}, extras.Keys())

	gridColor, ok := extras.Object("grid").Text("color")
	assert.True(t, ok)
	assert.Equal(t, "#ddd", gridColor)

	_, ok = extras.Object("grid").Number("color")
	assert.False(t, ok, "string values are not numbers")

	flag, ok := extras.Bool("flag")
	assert.True(t, ok)
	assert.False(t, flag)

	assert.Equal(t, map[string]string{"owner": "ops", "rev": "3", "draft": "true"}, extras.Object("globalVars").Values())
	assert.True(t, extras.Object("missing").IsEmpty())

	var zero Extras
	assert.True(t, zero.IsEmpty())
	_, ok = zero.Number("anything")
	assert.False(t, ok)
}

func TestLookupFormat(t *testing.T) {
	info, ok := LookupFormat(" JPEG ")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", info.MIMEType)
	assert.False(t, info.Transparent)

	info, ok = LookupFormat("pdf")
	require.True(t, ok)
	assert.True(t, info.Vector)

	_, ok = LookupFormat("svg")
	assert.False(t, ok)

	assert.Contains(t, SupportedFormats(), "jpg")
}
