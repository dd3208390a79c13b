package provider

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/float64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/ankek/terraform-provider-drawio/internal/parser"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &ExportFileResource{}
var _ resource.ResourceWithConfigure = &ExportFileResource{}
var _ resource.ResourceWithImportState = &ExportFileResource{}

func NewExportFileResource() resource.Resource {
	return &ExportFileResource{}
}

// ExportFileResource renders a diagram into a file on disk.
type ExportFileResource struct {
	generator *ExportGenerator
}

// ExportFileResourceModel describes the resource data model.
type ExportFileResourceModel struct {
	ID               types.String  `tfsdk:"id"`
	OutputPath       types.String  `tfsdk:"output_path"`
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
	ContentType      types.String  `tfsdk:"content_type"`
	OutputFileName   types.String  `tfsdk:"file_name"`
	Status           types.String  `tfsdk:"status"`
	SkippedCells     types.Int64   `tfsdk:"skipped_cells"`
}

func (m ExportFileResourceModel) exportConfig() ExportConfig {
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

func (r *ExportFileResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_export_file"
}

func (r *ExportFileResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	computed := func(desc string) schema.StringAttribute {
		return schema.StringAttribute{
			MarkdownDescription: desc,
			Computed:            true,
		}
	}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Renders a draw.io diagram into an image or PDF file.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed:            true,
				MarkdownDescription: "Absolute path of the written file. Used as the import ID.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"output_path": schema.StringAttribute{
				MarkdownDescription: "Path where the export will be saved. The directory must exist.",
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
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
				MarkdownDescription: "Output width in pixels, or page width in points for PDF.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(1)},
			},
			"height": schema.Int64Attribute{
				MarkdownDescription: "Output height in pixels, or page height in points for PDF.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(1)},
			},
			"scale": schema.Float64Attribute{
				MarkdownDescription: "Zoom factor applied to the diagram. Default is 1.",
				Optional:            true,
				Validators:          []validator.Float64{float64validator.AtLeast(0.01)},
			},
			"dpi": schema.Int64Attribute{
				MarkdownDescription: "Pixel density recorded in PNG output.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(1)},
			},
			"border": schema.Int64Attribute{
				MarkdownDescription: "Margin around the diagram in pixels. Default is 0.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(0)},
			},
			"background": schema.StringAttribute{
				MarkdownDescription: "Background colour as any CSS colour.",
				Optional:            true,
			},
			"filename": schema.StringAttribute{
				MarkdownDescription: "Suggested file name reported in `file_name`.",
				Optional:            true,
			},
			"embed_source": schema.BoolAttribute{
				MarkdownDescription: "Embed the diagram source in PNG output. Default is false.",
				Optional:            true,
			},
			"base64": schema.BoolAttribute{
				MarkdownDescription: "Write raster output as base64 text. Default is false.",
				Optional:            true,
			},
			"extras": schema.StringAttribute{
				MarkdownDescription: "JSON object with render extras such as `grid` and `globalVars`.",
				Optional:            true,
			},
			"content_type": computed("MIME type of the export."),
			"file_name":    computed("Corrected file name for the export."),
			"status":       computed("`ok`, or `empty` when the source held no diagram."),
			"skipped_cells": schema.Int64Attribute{
				MarkdownDescription: "Number of cells that could not be drawn.",
				Computed:            true,
			},
		},
	}
}

func (r *ExportFileResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	g, err := generatorFrom(req.ProviderData)
	if err != nil {
		resp.Diagnostics.AddError("Unexpected Resource Configure Type", err.Error())
		return
	}
	if g != nil {
		r.generator = g
	}
}

func (r *ExportFileResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data ExportFileResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	r.write(ctx, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *ExportFileResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data ExportFileResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	// Imported resources only carry the ID.
	if data.OutputPath.IsNull() {
		data.OutputPath = data.ID
	}

	// Check if output file still exists
	if _, err := os.Stat(data.OutputPath.ValueString()); errors.Is(err, fs.ErrNotExist) {
		tflog.Info(ctx, "Export file is gone, removing from state", map[string]interface{}{
			"output_path": data.OutputPath.ValueString(),
		})
		resp.State.RemoveResource(ctx)
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *ExportFileResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data ExportFileResourceModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	r.write(ctx, &data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *ExportFileResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data ExportFileResourceModel

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if err := os.Remove(data.OutputPath.ValueString()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		resp.Diagnostics.AddError("Failed to remove export file", err.Error())
	}
}

func (r *ExportFileResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resource.ImportStatePassthroughID(ctx, path.Root("id"), req, resp)
}

// write exports data to its output path and fills in the computed
// attributes.
func (r *ExportFileResource) write(ctx context.Context, data *ExportFileResourceModel, diags *diag.Diagnostics) {
	outputPath := data.OutputPath.ValueString()
	cfg := data.exportConfig()
	format, ok := cfg.FormatInfo()
	if !ok {
		diags.AddAttributeError(path.Root("format"), "Unsupported format", "Supported formats: "+strings.Join(validation.SupportedFormats(), ", "))
		return
	}
	if err := validation.ValidateOutputPath(outputPath, format); err != nil {
		diags.AddAttributeError(path.Root("output_path"), "Invalid output path", err.Error())
		return
	}
	abs, err := filepath.Abs(filepath.Clean(outputPath))
	if err != nil {
		diags.AddAttributeError(path.Root("output_path"), "Invalid output path", err.Error())
		return
	}

	result, err := defaultGenerator(r.generator).Generate(ctx, cfg)
	if err != nil {
		diags.AddError("Failed to export diagram", err.Error())
		return
	}
	out := result.Output
	if err := out.WriteFile(outputPath); err != nil {
		diags.AddError("Failed to write export file", err.Error())
		return
	}
	if result.Status == parser.StatusEmpty {
		diags.AddWarning("Empty diagram", "The source holds no diagram. Only the background was exported.")
	}
	if out.Skipped > 0 {
		diags.AddWarning("Some cells were not drawn", skippedSummary(out))
	}
	tflog.Debug(ctx, "Wrote export file", map[string]interface{}{
		"output_path": abs,
		"bytes":       len(out.Data),
		"format":      out.ContentType,
	})

	data.ID = types.StringValue(abs)
	data.ContentType = types.StringValue(out.ContentType)
	data.OutputFileName = types.StringValue(out.FileName)
	data.Status = types.StringValue(result.Status.String())
	data.SkippedCells = types.Int64Value(int64(out.Skipped))
}
