package resources

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	// Decoders for referenced images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
)

// Loader fetches images from http(s) URLs, a local image root and inline
// data URIs, and decodes them with size and pixel caps.
type Loader struct {
	opts   Options
	client *http.Client
	fsys   fs.FS
}

// NewLoader builds a Loader. Zero caps in opts fall back to the defaults.
func NewLoader(opts Options) *Loader {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	l := &Loader{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
	if opts.Root != "" {
		l.fsys = os.DirFS(opts.Root)
	}
	return l
}

// WithHTTPClient replaces the underlying HTTP client.
func (l *Loader) WithHTTPClient(c *http.Client) *Loader {
	l.client = c
	return l
}

// Fetch implements Fetcher.
func (l *Loader) Fetch(ctx context.Context, ref string) (image.Image, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case isDataURI(ref):
		data, err = l.decodeDataURI(ref)
	case strings.Contains(ref, "://"):
		data, err = l.fetchRemote(ctx, ref)
	default:
		data, err = l.readLocal(ref)
	}
	if err != nil {
		return nil, err
	}
	return l.decode(data)
}

func (l *Loader) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", ErrNotFound, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrNotFound, u.Scheme)
	}
	if !l.opts.Remote {
		return nil, fmt.Errorf("%w: remote images are disabled", ErrNotFound)
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = l.client
	client.RetryMax = l.opts.RetryMax
	client.Logger = leveledLogger{ctx: ctx}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s (status %d)", ErrNotFound, rawURL, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch image (status %d)", resp.StatusCode)
	}
	if resp.ContentLength > l.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}
	return l.readCapped(resp.Body)
}

func (l *Loader) readLocal(p string) ([]byte, error) {
	if l.fsys == nil {
		return nil, fmt.Errorf("%w: local images are disabled", ErrNotFound)
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if !fs.ValidPath(name) || name == "." {
		return nil, fmt.Errorf("%w: invalid path %q", ErrNotFound, p)
	}

	f, err := l.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, p)
	}
	if info.Size() > l.opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}
	return l.readCapped(f)
}

func (l *Loader) readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > l.opts.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.opts.MaxBytes)
	}
	return data, nil
}

// decodeDataURI accepts both the standard form and the one stored in cell
// styles, where ";base64" is dropped because ';' separates style entries.
func (l *Loader) decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(ref[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data uri", ErrUnsupportedImage)
	}
	if int64(len(payload))*3/4 > l.opts.MaxBytes {
		return nil, fmt.Errorf("%w: data uri of %d bytes", ErrTooLarge, len(payload))
	}

	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	data, err := base64.StdEncoding.DecodeString(compact)
	if err == nil {
		return data, nil
	}
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return nil, fmt.Errorf("%w: bad base64 payload: %v", ErrUnsupportedImage, err)
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: bad data uri payload: %v", ErrUnsupportedImage, err)
	}
	return []byte(text), nil
}

func (l *Loader) decode(data []byte) (image.Image, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") || mt.Is("image/svg+xml") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > l.opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}
