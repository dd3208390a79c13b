package validation

import (
	"sort"
	"strings"
)

// Format identifies an export output format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatPDF  Format = "pdf"
)

// FormatInfo describes how an export format is produced and served.
type FormatInfo struct {
	Format    Format
	MIMEType  string
	Extension string
	// Transparent reports whether an unset background may stay transparent.
	Transparent bool
	// Vector formats are rendered onto a page instead of a pixel surface.
	Vector bool
}

var formats = map[Format]FormatInfo{
	FormatPNG:  {Format: FormatPNG, MIMEType: "image/png", Extension: "png", Transparent: true},
	FormatJPEG: {Format: FormatJPEG, MIMEType: "image/jpeg", Extension: "jpg"},
	FormatGIF:  {Format: FormatGIF, MIMEType: "image/gif", Extension: "gif"},
	FormatBMP:  {Format: FormatBMP, MIMEType: "image/bmp", Extension: "bmp"},
	FormatTIFF: {Format: FormatTIFF, MIMEType: "image/tiff", Extension: "tiff"},
	FormatPDF:  {Format: FormatPDF, MIMEType: "application/pdf", Extension: "pdf", Vector: true},
}

var formatAliases = map[string]Format{
	"jpg": FormatJPEG,
	"tif": FormatTIFF,
}

// LookupFormat resolves a format name or alias, case-insensitively.
func LookupFormat(name string) (FormatInfo, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := formatAliases[key]; ok {
		key = string(alias)
	}
	info, ok := formats[Format(key)]
	return info, ok
}

// SupportedFormats returns every accepted format name, aliases included.
func SupportedFormats() []string {
	names := make([]string, 0, len(formats)+len(formatAliases))
	for f := range formats {
		names = append(names, string(f))
	}
	for alias := range formatAliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// knownExtension reports whether ext (without the dot) belongs to a diagram
// source or to any export format.
func knownExtension(ext string) bool {
	switch ext {
	case "xml", "drawio":
		return true
	}
	_, ok := LookupFormat(ext)
	return ok
}
