package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/ankek/terraform-provider-drawio/internal/config"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

// Ensure DrawioProvider satisfies various provider interfaces.
var _ provider.Provider = &DrawioProvider{}

// DrawioProvider defines the provider implementation.
type DrawioProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string
}

// DrawioProviderModel describes the provider data model.
type DrawioProviderModel struct {
	ConfigFile    types.String `tfsdk:"config_file"`
	MaxArea       types.Int64  `tfsdk:"max_area"`
	MaxSourceSize types.Int64  `tfsdk:"max_source_size"`
	RemoteImages  types.Bool   `tfsdk:"remote_images"`
	ImageRoot     types.String `tfsdk:"image_root"`
	HTTPTimeout   types.String `tfsdk:"http_timeout"`
}

func (p *DrawioProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "drawio"
	resp.Version = p.version
}

func (p *DrawioProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "The drawio provider renders draw.io diagrams to raster images and PDF documents.",
		Attributes: map[string]schema.Attribute{
			"config_file": schema.StringAttribute{
				Description: "Path to an HCL settings file. Attributes set on the provider take precedence over the file.",
				Optional:    true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"max_area": schema.Int64Attribute{
				Description: "Maximum pixel area of an export. Default is 100000000.",
				Optional:    true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"max_source_size": schema.Int64Attribute{
				Description: "Maximum length in bytes of an inline diagram source. Default is 10485760.",
				Optional:    true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"remote_images": schema.BoolAttribute{
				Description: "Fetch images referenced by http and https URLs. Default is true.",
				Optional:    true,
			},
			"image_root": schema.StringAttribute{
				Description: "Directory that local image paths are served from. Local images are disabled when unset.",
				Optional:    true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"http_timeout": schema.StringAttribute{
				Description: "Timeout for a single image request, as a duration such as \"10s\". Default is \"10s\".",
				Optional:    true,
			},
		},
	}
}

func (p *DrawioProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data DrawioProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)

	if resp.Diagnostics.HasError() {
		return
	}

	settings, ok := data.settings(ctx, &resp.Diagnostics)
	if !ok {
		return
	}

	tflog.Debug(ctx, "Configured drawio provider", map[string]interface{}{
		"max_area":        settings.MaxArea,
		"max_source_size": settings.MaxSourceSize,
		"remote_images":   settings.Images.Remote,
		"image_root":      settings.Images.Root,
		"http_timeout":    settings.Images.Timeout.String(),
	})

	// One generator per provider instance so the global image cache is
	// shared by every data source and resource.
	generator := NewExportGenerator(settings)
	resp.DataSourceData = generator
	resp.ResourceData = generator
}

// settings layers the explicit attributes over the config file and checks
// the image root. Problems are reported against the attribute that caused
// them.
func (m DrawioProviderModel) settings(ctx context.Context, diags *diag.Diagnostics) (config.Settings, bool) {
	settings, err := config.Load(ctx, m.ConfigFile.ValueString())
	if err != nil {
		diags.AddAttributeError(path.Root("config_file"), "Failed to load configuration file", err.Error())
		return config.Settings{}, false
	}

	overrides, err := m.overrides()
	if err != nil {
		diags.AddAttributeError(path.Root("http_timeout"), "Invalid HTTP timeout", err.Error())
		return config.Settings{}, false
	}
	settings = settings.Apply(overrides)

	if root := settings.Images.Root; root != "" {
		if err := validation.ValidateImageRoot(root); err != nil {
			attr := path.Root("config_file")
			if overrides.ImageRoot != nil {
				attr = path.Root("image_root")
			}
			diags.AddAttributeError(attr, "Invalid image root", err.Error())
			return config.Settings{}, false
		}
	}
	return settings, true
}

// overrides collects the attributes that were set explicitly.
func (m DrawioProviderModel) overrides() (config.Overrides, error) {
	var o config.Overrides
	if !m.MaxArea.IsNull() && !m.MaxArea.IsUnknown() {
		v := m.MaxArea.ValueInt64()
		o.MaxArea = &v
	}
	if !m.MaxSourceSize.IsNull() && !m.MaxSourceSize.IsUnknown() {
		v := int(m.MaxSourceSize.ValueInt64())
		o.MaxSourceSize = &v
	}
	if !m.RemoteImages.IsNull() && !m.RemoteImages.IsUnknown() {
		v := m.RemoteImages.ValueBool()
		o.RemoteImages = &v
	}
	if !m.ImageRoot.IsNull() && !m.ImageRoot.IsUnknown() {
		v := m.ImageRoot.ValueString()
		o.ImageRoot = &v
	}
	if !m.HTTPTimeout.IsNull() && !m.HTTPTimeout.IsUnknown() {
		d, err := config.ParseTimeout(m.HTTPTimeout.ValueString())
		if err != nil {
			return config.Overrides{}, err
		}
		o.Timeout = &d
	}
	return o, nil
}

func (p *DrawioProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewExportFileResource,
	}
}

func (p *DrawioProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewExportDataSource,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &DrawioProvider{
			version: version,
		}
	}
}

// generatorFrom extracts the generator handed out by Configure. A nil
// provider data value, as seen before configuration, yields nil.
func generatorFrom(data any) (*ExportGenerator, error) {
	if data == nil {
		return nil, nil
	}
	g, ok := data.(*ExportGenerator)
	if !ok {
		return nil, fmt.Errorf("expected *ExportGenerator, got %T", data)
	}
	return g, nil
}
