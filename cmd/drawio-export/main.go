// Command drawio-export renders a draw.io diagram file to an image or PDF.
//
//	drawio-export [flags] <input.drawio> [output]
//
// When output is omitted the file is written next to the input, named after
// it with the format's extension. An output of "-" writes to stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ankek/terraform-provider-drawio/internal/config"
	"github.com/ankek/terraform-provider-drawio/internal/interfaces"
	"github.com/ankek/terraform-provider-drawio/internal/parser"
	"github.com/ankek/terraform-provider-drawio/internal/provider"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

const usageLine = "usage: drawio-export [flags] <input.drawio> [output]"

// usageError marks failures in the command line itself.
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

type options struct {
	input  string
	output string

	export provider.ExportConfig

	configFile string
	imageRoot  string
	noRemote   bool
	help       bool

	// changed records which settings flags were given explicitly.
	changed func(name string) bool
}

// newGenerator builds the pipeline for the effective settings. Tests
// replace it.
var newGenerator = func(s config.Settings) interfaces.Generator {
	return provider.NewExportGenerator(s)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "drawio-export: %v\n", err)
	var uerr usageError
	if errors.As(err, &uerr) {
		fmt.Fprintln(os.Stderr, usageLine)
		os.Exit(2)
	}
	os.Exit(1)
}

func newFlagSet(opts *options, getenv func(string) string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("drawio-export", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.Usage = func() {}
	flags.SetOutput(io.Discard)

	envOr := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	e := &opts.export
	flags.StringVarP(&e.Format, "format", "f", envOr("DRAWIO_FORMAT", "png"), "output format: png, jpeg, gif, bmp, tiff or pdf ($DRAWIO_FORMAT)")
	flags.Int64VarP(&e.Width, "width", "w", 0, "output width; needs --height")
	flags.Int64VarP(&e.Height, "height", "h", 0, "output height; needs --width")
	flags.Float64VarP(&e.Scale, "scale", "s", 1, "zoom factor")
	flags.Int64Var(&e.DPI, "dpi", 0, "pixel density recorded in PNG output")
	flags.Int64VarP(&e.Border, "border", "b", 0, "margin around the diagram in pixels")
	flags.StringVar(&e.Background, "bg", "", "background colour, any CSS colour")
	flags.BoolVar(&e.Base64, "base64", false, "write raster output as base64 text")
	flags.BoolVar(&e.EmbedSource, "embed", false, "embed the diagram source in PNG output")
	flags.StringVar(&e.Extras, "extras", "", "JSON object with render extras")
	flags.StringVar(&e.DiagramReference, "reference", "", "URL relative image paths are resolved against")
	flags.StringVarP(&opts.configFile, "config", "c", envOr("DRAWIO_CONFIG", ""), "HCL settings file ($DRAWIO_CONFIG)")
	flags.StringVar(&opts.imageRoot, "image-root", "", "directory local image paths are served from")
	flags.BoolVar(&opts.noRemote, "no-remote", false, "do not fetch http and https images")
	flags.BoolVar(&opts.help, "help", false, "print usage")

	opts.changed = flags.Changed
	return flags
}

func parseArgs(args []string, getenv func(string) string) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	flags := newFlagSet(opts, getenv)
	if err := flags.Parse(args); err != nil {
		return nil, flags, usageError{msg: err.Error()}
	}
	if opts.help {
		return opts, flags, nil
	}

	switch flags.NArg() {
	case 1:
		opts.input = flags.Arg(0)
	case 2:
		opts.input, opts.output = flags.Arg(0), flags.Arg(1)
	default:
		return nil, flags, usageError{msg: fmt.Sprintf("expected an input file and an optional output, got %d arguments", flags.NArg())}
	}

	info, ok := validation.LookupFormat(opts.export.Format)
	if !ok {
		return nil, flags, usageError{msg: fmt.Sprintf("unsupported format %q", opts.export.Format)}
	}
	if opts.output == "" {
		opts.output = defaultOutput(opts.input, info)
	}
	if opts.output != "-" {
		opts.export.FileName = filepath.Base(opts.output)
	}
	return opts, flags, nil
}

// defaultOutput names the export after the input file, in the same
// directory.
func defaultOutput(input string, info validation.FormatInfo) string {
	base := filepath.Base(input)
	name := validation.CorrectFileName(base, info)
	if name == base {
		name = strings.TrimSuffix(base, filepath.Ext(base)) + "." + info.Extension
	}
	return filepath.Join(filepath.Dir(input), name)
}

// settings loads the config file, applies the flags given explicitly and
// checks the resulting image root.
func (o *options) settings(ctx context.Context) (config.Settings, error) {
	s, err := config.Load(ctx, o.configFile)
	if err != nil {
		return config.Settings{}, err
	}
	var ov config.Overrides
	if o.changed("image-root") {
		ov.ImageRoot = &o.imageRoot
	}
	if o.changed("no-remote") {
		remote := !o.noRemote
		ov.RemoteImages = &remote
	}
	s = s.Apply(ov)

	if s.Images.Root != "" {
		if err := validation.ValidateImageRoot(s.Images.Root); err != nil {
			if ov.ImageRoot != nil {
				return config.Settings{}, usageError{msg: "--image-root: " + err.Error()}
			}
			return config.Settings{}, fmt.Errorf("%s: %w", o.configFile, err)
		}
	}
	return s, nil
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	opts, flags, err := parseArgs(args, getenv)
	if err != nil {
		return err
	}
	if opts.help {
		fmt.Fprintln(stdout, usageLine)
		flags.SetOutput(stdout)
		flags.PrintDefaults()
		return nil
	}

	settings, err := opts.settings(ctx)
	if err != nil {
		return err
	}
	if err := validation.ValidateSourcePath(opts.input, settings.MaxSourceSize); err != nil {
		return err
	}
	source, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.input, err)
	}
	opts.export.Source = string(source)
	result, err := newGenerator(settings).Generate(ctx, opts.export)
	if err != nil {
		return err
	}
	out := result.Output

	if result.Status == parser.StatusEmpty {
		fmt.Fprintf(stderr, "warning: %s holds no diagram, only the background was exported\n", opts.input)
	}
	if out.Skipped > 0 {
		fmt.Fprintf(stderr, "warning: %d cells were skipped\n", out.Skipped)
		if out.Failures != nil {
			fmt.Fprintln(stderr, out.Failures)
		}
	}

	if opts.output == "-" {
		_, err := stdout.Write(out.Data)
		return err
	}
	if err := out.WriteFile(opts.output); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "wrote %s (%s, %dx%d)\n", opts.output, out.ContentType, out.Width, out.Height)
	return nil
}
