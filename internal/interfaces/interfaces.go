// Package interfaces defines interfaces for the export pipeline stages, for
// dependency injection and testing
package interfaces

import (
	"context"
	"image"

	"github.com/ankek/terraform-provider-drawio/internal/graph"
	"github.com/ankek/terraform-provider-drawio/internal/provider"
	"github.com/ankek/terraform-provider-drawio/internal/renderer"
	"github.com/ankek/terraform-provider-drawio/internal/resources"
	"github.com/ankek/terraform-provider-drawio/internal/validation"
)

// ImageFetcher loads and decodes a single image reference
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) (image.Image, error)
}

// ImageResolver resolves image references through the request and global
// caches
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (image.Image, error)
}

// Exporter renders a built model into encoded output
type Exporter interface {
	Export(ctx context.Context, m *graph.Model, req validation.ExportRequest) (*renderer.Output, error)
}

// Generator runs the whole pipeline from diagram source to output
type Generator interface {
	Generate(ctx context.Context, cfg provider.ExportConfig) (*provider.ExportResult, error)
}

// PathValidator checks the files an export reads and writes
type PathValidator interface {
	// ValidateOutputPath checks that an export of format can be written to path
	ValidateOutputPath(path string, format validation.FormatInfo) error

	// ValidateSourcePath checks a diagram file against the source size limit
	ValidateSourcePath(path string, maxSize int) error

	// ValidateImageRoot checks the directory local images are served from
	ValidateImageRoot(root string) error
}

// FilePaths implements PathValidator with the validation package
type FilePaths struct{}

func (FilePaths) ValidateOutputPath(path string, format validation.FormatInfo) error {
	return validation.ValidateOutputPath(path, format)
}

func (FilePaths) ValidateSourcePath(path string, maxSize int) error {
	return validation.ValidateSourcePath(path, maxSize)
}

func (FilePaths) ValidateImageRoot(root string) error {
	return validation.ValidateImageRoot(root)
}

var (
	_ ImageFetcher  = (*resources.Loader)(nil)
	_ ImageResolver = (*resources.Resolver)(nil)
	_ Exporter      = (*renderer.Exporter)(nil)
	_ Generator     = (*provider.ExportGenerator)(nil)
	_ PathValidator = FilePaths{}
)
