// Package validation checks export requests and the files around them
// before any decoding or rendering starts.
package validation

import (
	"image/color"
	"math"
	"math/bits"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

// Export request parameter names.
const (
	ParamDiagramReference = "diagramReference"
	ParamFormat           = "format"
	ParamWidth            = "w"
	ParamHeight           = "h"
	ParamScale            = "scale"
	ParamDPI              = "dpi"
	ParamBorder           = "border"
	ParamBackground       = "bg"
	ParamFileName         = "filename"
	ParamXML              = "xml"
	ParamExtras           = "extras"
	ParamBase64           = "base64"
	ParamEmbedXML         = "embedXml"
)

const (
	// DefaultMaxArea caps width*height of a requested export.
	DefaultMaxArea int64 = 10000 * 10000
	// DefaultMaxSourceSize caps the length of an inline diagram source.
	DefaultMaxSourceSize = 10485760
)

// Limits are the numeric ceilings a request is checked against.
type Limits struct {
	MaxArea       int64
	MaxSourceSize int
}

// DefaultLimits returns the stock export limits.
func DefaultLimits() Limits {
	return Limits{MaxArea: DefaultMaxArea, MaxSourceSize: DefaultMaxSourceSize}
}

// ExportRequest is a validated export request. It is built once by
// ParseExportRequest and only read afterwards.
type ExportRequest struct {
	DiagramReference string
	Format           FormatInfo
	// Width and Height are zero when not requested.
	Width  int
	Height int
	Scale  float64
	// DPI is zero when not requested.
	DPI    int
	Border int
	// Background is nil when the output stays transparent.
	Background color.Color
	// DefaultBackground is set when Background was not requested and was
	// filled in because the format cannot be transparent.
	DefaultBackground bool
	FileName          string
	EmbedSource       bool
	Base64            bool
	SourceXML         string
	Extras            Extras
}

// HasSize reports whether both dimensions were requested.
func (r ExportRequest) HasSize() bool {
	return r.Width > 0 && r.Height > 0
}

// ExceedsArea reports whether a width x height surface reaches maxArea. The
// product is computed in 128 bits so huge dimensions cannot wrap past the
// limit. A non-positive maxArea disables the check.
func ExceedsArea(width, height int, maxArea int64) bool {
	if maxArea <= 0 || width <= 0 || height <= 0 {
		return false
	}
	hi, lo := bits.Mul64(uint64(width), uint64(height))
	return hi != 0 || lo >= uint64(maxArea)
}

// ParseExportRequest validates raw export parameters.
func ParseExportRequest(params map[string]string, limits Limits) (ExportRequest, error) {
	req := ExportRequest{
		DiagramReference: params[ParamDiagramReference],
		Scale:            1,
	}

	name := strings.TrimSpace(params[ParamFormat])
	if name == "" {
		return ExportRequest{}, invalid(ParamFormat, "format is required", nil)
	}
	info, ok := LookupFormat(name)
	if !ok {
		return ExportRequest{}, invalid(ParamFormat, "unsupported format "+strconv.Quote(name), nil)
	}
	req.Format = info

	var err error
	if req.Width, err = positiveInt(params, ParamWidth); err != nil {
		return ExportRequest{}, err
	}
	if req.Height, err = positiveInt(params, ParamHeight); err != nil {
		return ExportRequest{}, err
	}
	if req.HasSize() && ExceedsArea(req.Width, req.Height, limits.MaxArea) {
		return ExportRequest{}, invalid(ParamWidth, "requested area exceeds the maximum of "+strconv.FormatInt(limits.MaxArea, 10)+" pixels", nil)
	}
	if raw, ok := nonEmpty(params, ParamScale); ok {
		req.Scale, err = strconv.ParseFloat(raw, 64)
		if err != nil || req.Scale <= 0 || math.IsInf(req.Scale, 0) || math.IsNaN(req.Scale) {
			return ExportRequest{}, invalid(ParamScale, "scale must be a positive number", err)
		}
	}
	if req.DPI, err = positiveInt(params, ParamDPI); err != nil {
		return ExportRequest{}, err
	}
	if raw, ok := nonEmpty(params, ParamBorder); ok {
		req.Border, err = strconv.Atoi(raw)
		if err != nil || req.Border < 0 {
			return ExportRequest{}, invalid(ParamBorder, "border must be a non-negative integer", err)
		}
	}

	if req.Background, err = parseBackground(params[ParamBackground]); err != nil {
		return ExportRequest{}, err
	}
	if req.Background == nil && !info.Transparent {
		req.Background = color.White
		req.DefaultBackground = true
	}

	if raw, ok := nonEmpty(params, ParamExtras); ok {
		if strings.HasPrefix(raw, "%7B") {
			if raw, err = url.QueryUnescape(raw); err != nil {
				return ExportRequest{}, invalid(ParamExtras, "extras are not properly encoded", err)
			}
		}
		if req.Extras, err = ParseExtras([]byte(raw)); err != nil {
			return ExportRequest{}, invalid(ParamExtras, "extras must be a JSON object", err)
		}
	}

	req.SourceXML = params[ParamXML]
	if strings.HasPrefix(req.SourceXML, "%3C") {
		if req.SourceXML, err = url.QueryUnescape(req.SourceXML); err != nil {
			return ExportRequest{}, invalid(ParamXML, "diagram source is not properly encoded", err)
		}
	}
	if limits.MaxSourceSize > 0 && len(req.SourceXML) > limits.MaxSourceSize {
		return ExportRequest{}, invalid(ParamXML, "diagram source exceeds the maximum of "+strconv.Itoa(limits.MaxSourceSize)+" bytes", nil)
	}

	req.Base64 = parseBool(params[ParamBase64])
	req.EmbedSource = parseBool(params[ParamEmbedXML])
	req.FileName = CorrectFileName(strings.TrimSpace(params[ParamFileName]), info)

	return req, nil
}

// CorrectFileName replaces a diagram or mismatched export extension with the
// extension of the chosen format. Names without an extension are kept.
func CorrectFileName(name string, info FormatInfo) string {
	ext := path.Ext(name)
	if ext == "" || len(ext) == len(name) {
		return name
	}
	suffix := strings.ToLower(ext[1:])
	if !knownExtension(suffix) {
		return name
	}
	if f, ok := LookupFormat(suffix); ok && f.Format == info.Format {
		return name
	}
	return strings.TrimSuffix(name, ext) + "." + info.Extension
}

func parseBackground(raw string) (color.Color, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "none", "transparent":
		return nil, nil
	}
	c, err := csscolorparser.Parse(raw)
	if err != nil {
		return nil, invalid(ParamBackground, "unrecognized color "+strconv.Quote(raw), err)
	}
	return color.NRGBA{
		R: uint8(math.Round(c.R * 255)),
		G: uint8(math.Round(c.G * 255)),
		B: uint8(math.Round(c.B * 255)),
		A: uint8(math.Round(c.A * 255)),
	}, nil
}

func positiveInt(params map[string]string, key string) (int, error) {
	raw, ok := nonEmpty(params, key)
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, invalid(key, "must be a positive integer", err)
	}
	return n, nil
}

func nonEmpty(params map[string]string, key string) (string, bool) {
	v := strings.TrimSpace(params[key])
	return v, v != ""
}

func parseBool(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "1" || strings.EqualFold(raw, "true")
}
