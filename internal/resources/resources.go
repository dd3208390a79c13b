// Package resources resolves images referenced from cell styles. Lookups go
// through two cache tiers: a process-wide tier for local paths, shared by all
// exports, and a tier owned by a single export for remote URLs and inline
// data. Failed lookups are remembered in both tiers so a missing image is
// fetched at most once per tier lifetime.
package resources

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an image does not exist or cannot be
	// reached with the configured sources.
	ErrNotFound = errors.New("image not found")
	// ErrUnsupportedImage is returned for payloads that are not a raster
	// image this package can decode.
	ErrUnsupportedImage = errors.New("unsupported image")
	// ErrTooLarge is returned when an image exceeds the byte or pixel cap.
	ErrTooLarge = errors.New("image too large")
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxBytes  = 10 << 20
	DefaultMaxPixels = 8192 * 8192
	DefaultRetryMax  = 2
)

// Fetcher loads and decodes a single image reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (image.Image, error)
}

// Options configures a Loader.
type Options struct {
	// Remote enables http and https fetching.
	Remote bool
	// Root is the directory local paths are served from. Empty disables
	// local files.
	Root      string
	Timeout   time.Duration
	MaxBytes  int64
	MaxPixels int64
	RetryMax  int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Remote:    true,
		Timeout:   DefaultTimeout,
		MaxBytes:  DefaultMaxBytes,
		MaxPixels: DefaultMaxPixels,
		RetryMax:  DefaultRetryMax,
	}
}

// IsGlobalPath reports whether a resolved reference belongs in the
// process-wide tier: absolute local paths and anything without a scheme
// separator.
func IsGlobalPath(p string) bool {
	return strings.HasPrefix(p, "/") || !strings.Contains(p, "://")
}

func isDataURI(ref string) bool {
	return len(ref) >= 5 && strings.EqualFold(ref[:5], "data:")
}

// entry is a cached lookup. An entry with a non-nil err is the negative
// result for its key.
type entry struct {
	img image.Image
	err error
}

func (e entry) result() (image.Image, error) {
	return e.img, e.err
}

// transient reports whether a failure came from the caller giving up and
// must not be remembered.
func transient(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
