// Package config loads the optional HCL settings file shared by the provider
// and the CLI, and merges it with explicit overrides.
package config

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/ankek/terraform-provider-drawio/internal/resources"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

// Settings are the effective export limits and image fetching options.
type Settings struct {
	MaxArea       int64
	MaxSourceSize int
	Images        resources.Options
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		MaxArea:       validation.DefaultMaxArea,
		MaxSourceSize: validation.DefaultMaxSourceSize,
		Images:        resources.DefaultOptions(),
	}
}

// Limits returns the request ceilings derived from s.
func (s Settings) Limits() validation.Limits {
	return validation.Limits{MaxArea: s.MaxArea, MaxSourceSize: s.MaxSourceSize}
}

// Overrides are explicitly set values that take precedence over the file.
// Nil fields are left alone.
type Overrides struct {
	MaxArea       *int64
	MaxSourceSize *int
	RemoteImages  *bool
	ImageRoot     *string
	Timeout       *time.Duration
}

// Apply returns s with every non-nil override set.
func (s Settings) Apply(o Overrides) Settings {
	if o.MaxArea != nil {
		s.MaxArea = *o.MaxArea
	}
	if o.MaxSourceSize != nil {
		s.MaxSourceSize = *o.MaxSourceSize
	}
	if o.RemoteImages != nil {
		s.Images.Remote = *o.RemoteImages
	}
	if o.ImageRoot != nil {
		s.Images.Root = *o.ImageRoot
	}
	if o.Timeout != nil {
		s.Images.Timeout = *o.Timeout
	}
	return s
}

type fileSchema struct {
	MaxArea       hcl.Expression `hcl:"max_area,optional"`
	MaxSourceSize hcl.Expression `hcl:"max_source_size,optional"`
	Images        *imagesBlock   `hcl:"images,block"`
}

type imagesBlock struct {
	Remote   *bool          `hcl:"remote,optional"`
	Root     *string        `hcl:"root,optional"`
	Timeout  *string        `hcl:"timeout,optional"`
	MaxBytes hcl.Expression `hcl:"max_bytes,optional"`
	RetryMax hcl.Expression `hcl:"retry_max,optional"`
}

// evalContext lets size attributes be written as products of unit
// variables, such as 10 * MiB.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"KiB": cty.NumberIntVal(1 << 10),
			"MiB": cty.NumberIntVal(1 << 20),
			"GiB": cty.NumberIntVal(1 << 30),
		},
	}
}

// Load reads the settings file at path on top of the defaults. An empty
// path returns the defaults.
func Load(ctx context.Context, path string) (Settings, error) {
	if path == "" {
		return Defaults(), nil
	}
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return Settings{}, fmt.Errorf("failed to parse %s: %s", path, diags.Error())
	}
	s, err := decode(file.Body)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	tflog.Debug(ctx, "Loaded configuration file", map[string]interface{}{
		"path":          path,
		"max_area":      s.MaxArea,
		"remote_images": s.Images.Remote,
		"image_root":    s.Images.Root,
	})
	return s, nil
}

// Parse reads settings from HCL source held in memory. filename is only
// used in diagnostics.
func Parse(src []byte, filename string) (Settings, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return Settings{}, fmt.Errorf("failed to parse %s: %s", filename, diags.Error())
	}
	return decode(file.Body)
}

func decode(body hcl.Body) (Settings, error) {
	ectx := evalContext()
	var raw fileSchema
	if diags := gohcl.DecodeBody(body, ectx, &raw); diags.HasErrors() {
		return Settings{}, fmt.Errorf("%s", diags.Error())
	}

	s := Defaults()
	if n, ok, err := wholeNumber(raw.MaxArea, ectx, "max_area", 1); err != nil {
		return Settings{}, err
	} else if ok {
		s.MaxArea = n
	}
	if n, ok, err := wholeNumber(raw.MaxSourceSize, ectx, "max_source_size", 1); err != nil {
		return Settings{}, err
	} else if ok {
		s.MaxSourceSize = int(n)
	}

	img := raw.Images
	if img == nil {
		return s, nil
	}
	if img.Remote != nil {
		s.Images.Remote = *img.Remote
	}
	if img.Root != nil {
		s.Images.Root = *img.Root
	}
	if img.Timeout != nil {
		d, err := ParseTimeout(*img.Timeout)
		if err != nil {
			return Settings{}, fmt.Errorf("images.timeout: %w", err)
		}
		s.Images.Timeout = d
	}
	if n, ok, err := wholeNumber(img.MaxBytes, ectx, "images.max_bytes", 1); err != nil {
		return Settings{}, err
	} else if ok {
		s.Images.MaxBytes = n
	}
	if n, ok, err := wholeNumber(img.RetryMax, ectx, "images.retry_max", 0); err != nil {
		return Settings{}, err
	} else if ok {
		s.Images.RetryMax = int(n)
	}
	return s, nil
}

// ParseTimeout parses a positive Go duration string such as "10s".
func ParseTimeout(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return d, nil
}

// wholeNumber evaluates expr as an integer of at least min. ok is false
// when the attribute was not set.
func wholeNumber(expr hcl.Expression, ectx *hcl.EvalContext, name string, min int64) (n int64, ok bool, err error) {
	if expr == nil {
		return 0, false, nil
	}
	val, diags := expr.Value(ectx)
	if diags.HasErrors() {
		return 0, false, fmt.Errorf("%s: %s", name, diags.Error())
	}
	if val.IsNull() {
		return 0, false, nil
	}
	if !val.IsWhollyKnown() {
		return 0, false, fmt.Errorf("%s must be known", name)
	}
	num, err := convert.Convert(val, cty.Number)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number: %w", name, err)
	}
	bf := num.AsBigFloat()
	if !bf.IsInt() {
		return 0, false, fmt.Errorf("%s must be a whole number", name)
	}
	n, acc := bf.Int64()
	if acc != big.Exact {
		return 0, false, fmt.Errorf("%s is out of range", name)
	}
	if n < min {
		return 0, false, fmt.Errorf("%s must be at least %d", name, min)
	}
	return n, true, nil
}
