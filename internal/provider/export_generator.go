// Package provider implements the Terraform provider for draw.io diagram
// exports. The data source returns the encoded export and the resource
// writes it to a file; both go through ExportGenerator.
package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/ankek/terraform-provider-drawio/internal/config"
	"github.com/ankek/terraform-provider-drawio/internal/graph"
	"github.com/ankek/terraform-provider-drawio/internal/parser"
	"github.com/ankek/terraform-provider-drawio/internal/renderer"
	"github.com/ankek/terraform-provider-drawio/internal/resources"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

const defaultFormat = "png"

// ExportGenerator runs the decode, build and export pipeline. It is shared
// between the data source and the resource so both see the same limits and
// the same global image cache.
type ExportGenerator struct {
	settings config.Settings
	exporter *renderer.Exporter
}

// NewExportGenerator builds a generator for the given settings.
func NewExportGenerator(settings config.Settings) *ExportGenerator {
	return &ExportGenerator{
		settings: settings,
		exporter: &renderer.Exporter{
			Global:  resources.NewGlobalCache(),
			Fetcher: resources.NewLoader(settings.Images),
			MaxArea: settings.MaxArea,
		},
	}
}

// ExportConfig contains the export inputs shared by the data source and the
// resource. Zero values mean "not set".
type ExportConfig struct {
	Source           string
	DiagramReference string
	Format           string
	Width            int64
	Height           int64
	Scale            float64
	DPI              int64
	Border           int64
	Background       string
	FileName         string
	EmbedSource      bool
	Base64           bool
	Extras           string
}

// ExportResult is a finished export plus how the source decoded.
type ExportResult struct {
	Output *renderer.Output
	Status parser.Status
}

func (c ExportConfig) formatName() string {
	if c.Format == "" {
		return defaultFormat
	}
	return c.Format
}

// FormatInfo resolves the export format, applying the default.
func (c ExportConfig) FormatInfo() (validation.FormatInfo, bool) {
	return validation.LookupFormat(c.formatName())
}

// params maps the inputs onto export request parameters.
func (c ExportConfig) params() map[string]string {
	p := map[string]string{
		validation.ParamFormat: c.formatName(),
		validation.ParamXML:    c.Source,
	}
	setInt := func(key string, v int64) {
		if v != 0 {
			p[key] = strconv.FormatInt(v, 10)
		}
	}
	setInt(validation.ParamWidth, c.Width)
	setInt(validation.ParamHeight, c.Height)
	setInt(validation.ParamDPI, c.DPI)
	setInt(validation.ParamBorder, c.Border)
	if c.Scale != 0 {
		p[validation.ParamScale] = strconv.FormatFloat(c.Scale, 'g', -1, 64)
	}
	setString := func(key, v string) {
		if v != "" {
			p[key] = v
		}
	}
	setString(validation.ParamDiagramReference, c.DiagramReference)
	setString(validation.ParamBackground, c.Background)
	setString(validation.ParamFileName, c.FileName)
	setString(validation.ParamExtras, c.Extras)
	if c.EmbedSource {
		p[validation.ParamEmbedXML] = "1"
	}
	if c.Base64 {
		p[validation.ParamBase64] = "1"
	}
	return p
}

// ID is a stable digest of the inputs.
func (c ExportConfig) ID() string {
	p := c.params()
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\x00", k, p[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Generate exports cfg. A malformed source is an error; a source without
// a diagram renders the background only and reports StatusEmpty.
func (g *ExportGenerator) Generate(ctx context.Context, cfg ExportConfig) (*ExportResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	req, err := validation.ParseExportRequest(cfg.params(), g.settings.Limits())
	if err != nil {
		return nil, err
	}

	decoded := parser.Decode(req.SourceXML)
	var model *graph.Model
	switch decoded.Status {
	case parser.StatusMalformed:
		return nil, fmt.Errorf("invalid diagram source: %w", decoded.Err)
	case parser.StatusEmpty:
		tflog.Warn(ctx, "Diagram source holds no diagram, exporting background only", map[string]interface{}{
			"error": decoded.Err.Error(),
		})
	default:
		model = graph.Build(decoded.Model)
	}

	out, err := g.exporter.Export(ctx, model, req)
	if err != nil {
		return nil, fmt.Errorf("failed to export diagram: %w", err)
	}
	return &ExportResult{Output: out, Status: decoded.Status}, nil
}

// skippedSummary describes skipped cells for a warning diagnostic.
func skippedSummary(out *renderer.Output) string {
	if out.Failures == nil {
		return fmt.Sprintf("%d cells were skipped.", out.Skipped)
	}
	return strings.TrimSpace(out.Failures.Error())
}

// defaultGenerator serves data sources and resources used before the
// provider is configured, such as in unit tests.
func defaultGenerator(g *ExportGenerator) *ExportGenerator {
	if g != nil {
		return g
	}
	return NewExportGenerator(config.Defaults())
}
