package provider

import (
	"context"
	"encoding/base64"

	"github.com/hashicorp/terraform-plugin-framework-validators/float64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/ankek/terraform-provider-drawio/internal/parser"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &ExportDataSource{}
var _ datasource.DataSourceWithConfigure = &ExportDataSource{}

// ExportDataSource renders a diagram and returns the encoded result.
type ExportDataSource struct {
	generator *ExportGenerator
}

func NewExportDataSource() datasource.DataSource {
	return &ExportDataSource{}
}

// ExportDataSourceModel describes the data source data model.
type ExportDataSourceModel struct {
	ID               types.String  `tfsdk:"id"`
	Source           types.String  `tfsdk:"source"`
	DiagramReference types.String  `tfsdk:"diagram_reference"`
	Format           types.String  `tfsdk:"format"`
	Width            types.Int64   `tfsdk:"width"`
	Height           types.Int64   `tfsdk:"height"`
	Scale            types.Float64 `tfsdk:"scale"`
	DPI              types.Int64   `tfsdk:"dpi"`
	Border           types.Int64   `tfsdk:"border"`
	Background       types.String  `tfsdk:"background"`
	FileName         types.String  `tfsdk:"filename"`
	EmbedSource      types.Bool    `tfsdk:"embed_source"`
	Base64           types.Bool    `tfsdk:"base64"`
	Extras           types.String  `tfsdk:"extras"`
	ContentBase64    types.String  `tfsdk:"content_base64"`
	ContentType      types.String  `tfsdk:"content_type"`
	OutputFileName   types.String  `tfsdk:"file_name"`
	Status           types.String  `tfsdk:"status"`
	SkippedCells     types.Int64   `tfsdk:"skipped_cells"`
}

func (m ExportDataSourceModel) exportConfig() ExportConfig {
	return ExportConfig{
		Source:           m.Source.ValueString(),
		DiagramReference: m.DiagramReference.ValueString(),
		Format:           m.Format.ValueString(),
		Width:            m.Width.ValueInt64(),
		Height:           m.Height.ValueInt64(),
		Scale:            m.Scale.ValueFloat64(),
		DPI:              m.DPI.ValueInt64(),
		Border:           m.Border.ValueInt64(),
		Background:       m.Background.ValueString(),
		FileName:         m.FileName.ValueString(),
		EmbedSource:      m.EmbedSource.ValueBool(),
		Base64:           m.Base64.ValueBool(),
		Extras:           m.Extras.ValueString(),
	}
}

func (d *ExportDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_export"
}

func (d *ExportDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Renders a draw.io diagram and returns the encoded image or PDF.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed:            true,
				MarkdownDescription: "SHA-256 digest of the export inputs.",
			},
			"source": schema.StringAttribute{
				MarkdownDescription: "Diagram source: an `mxGraphModel` or `mxfile` document, plain or compressed.",
				Required:            true,
			},
			"diagram_reference": schema.StringAttribute{
				MarkdownDescription: "URL of the diagram. Relative image paths are resolved against it.",
				Optional:            true,
			},
			"format": schema.StringAttribute{
				MarkdownDescription: "Output format: `png`, `jpeg` (`jpg`), `gif`, `bmp`, `tiff` or `pdf`. Default is `png`.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.OneOfCaseInsensitive(validation.SupportedFormats()...),
				},
			},
			"width": schema.Int64Attribute{
				MarkdownDescription: "Output width in pixels, or page width in points for PDF. Takes effect together with `height`.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"height": schema.Int64Attribute{
				MarkdownDescription: "Output height in pixels, or page height in points for PDF. Takes effect together with `width`.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"scale": schema.Float64Attribute{
				MarkdownDescription: "Zoom factor applied to the diagram. Default is 1.",
				Optional:            true,
				Validators: []validator.Float64{
					float64validator.AtLeast(0.01),
				},
			},
			"dpi": schema.Int64Attribute{
				MarkdownDescription: "Pixel density recorded in PNG output.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"border": schema.Int64Attribute{
				MarkdownDescription: "Margin around the diagram in pixels. Default is 0.",
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.AtLeast(0),
				},
			},
			"background": schema.StringAttribute{
				MarkdownDescription: "Background colour as any CSS colour. `none` keeps PNG output transparent.",
				Optional:            true,
			},
			"filename": schema.StringAttribute{
				MarkdownDescription: "Suggested file name. A diagram or mismatched extension is replaced by the format's.",
				Optional:            true,
			},
			"embed_source": schema.BoolAttribute{
				MarkdownDescription: "Embed the diagram source in PNG output. Default is false.",
				Optional:            true,
			},
			"base64": schema.BoolAttribute{
				MarkdownDescription: "Request base64 transport encoding of raster output. `content_base64` is always base64.",
				Optional:            true,
			},
			"extras": schema.StringAttribute{
				MarkdownDescription: "JSON object with render extras such as `grid` and `globalVars`.",
				Optional:            true,
			},
			"content_base64": schema.StringAttribute{
				MarkdownDescription: "Base64 encoded export.",
				Computed:            true,
			},
			"content_type": schema.StringAttribute{
				MarkdownDescription: "MIME type of the export.",
				Computed:            true,
			},
			"file_name": schema.StringAttribute{
				MarkdownDescription: "Corrected file name for the export.",
				Computed:            true,
			},
			"status": schema.StringAttribute{
				MarkdownDescription: "`ok`, or `empty` when the source held no diagram.",
				Computed:            true,
			},
			"skipped_cells": schema.Int64Attribute{
				MarkdownDescription: "Number of cells that could not be drawn.",
				Computed:            true,
			},
		},
	}
}

func (d *ExportDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	g, err := generatorFrom(req.ProviderData)
	if err != nil {
		resp.Diagnostics.AddError("Unexpected Data Source Configure Type", err.Error())
		return
	}
	if g != nil {
		d.generator = g
	}
}

func (d *ExportDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data ExportDataSourceModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	cfg := data.exportConfig()
	result, err := defaultGenerator(d.generator).Generate(ctx, cfg)
	if err != nil {
		resp.Diagnostics.AddError("Failed to export diagram", err.Error())
		return
	}
	out := result.Output

	raw, err := out.Bytes()
	if err != nil {
		resp.Diagnostics.AddError("Failed to export diagram", err.Error())
		return
	}
	if result.Status == parser.StatusEmpty {
		resp.Diagnostics.AddWarning("Empty diagram", "The source holds no diagram. Only the background was exported.")
	}
	if out.Skipped > 0 {
		resp.Diagnostics.AddWarning("Some cells were not drawn", skippedSummary(out))
	}

	data.ID = types.StringValue(cfg.ID())
	data.ContentBase64 = types.StringValue(base64.StdEncoding.EncodeToString(raw))
	data.ContentType = types.StringValue(out.ContentType)
	data.OutputFileName = types.StringValue(out.FileName)
	data.Status = types.StringValue(result.Status.String())
	data.SkippedCells = types.Int64Value(int64(out.Skipped))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
