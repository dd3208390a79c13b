package resources

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoader_Local(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "icons"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "icons", "server.png"), pngBytes(t, 4, 4), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vector.svg"), []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"></svg>`), 0644))

	outside := filepath.Join(filepath.Dir(root), "outside.png")
	require.NoError(t, os.WriteFile(outside, pngBytes(t, 1, 1), 0644))
	t.Cleanup(func() { os.Remove(outside) })

	tests := []struct {
		name    string
		opts    func(*Options)
		ref     string
		wantErr error
	}{
		{name: "absolute path under root", ref: "/icons/server.png"},
		{name: "relative path under root", ref: "icons/server.png"},
		{name: "dot segments stay under root", ref: "/icons/../icons/./server.png"},
		{name: "traversal is confined to root", ref: "../outside.png", wantErr: ErrNotFound},
		{name: "missing file", ref: "/icons/missing.png", wantErr: ErrNotFound},
		{name: "directory", ref: "/icons", wantErr: ErrNotFound},
		{name: "root itself", ref: "/", wantErr: ErrNotFound},
		{name: "not an image", ref: "notes.txt", wantErr: ErrUnsupportedImage},
		{name: "svg is rejected", ref: "vector.svg", wantErr: ErrUnsupportedImage},
		{
			name:    "pixel cap",
			ref:     "icons/server.png",
			opts:    func(o *Options) { o.MaxPixels = 15 },
			wantErr: ErrTooLarge,
		},
		{
			name:    "byte cap",
			ref:     "icons/server.png",
			opts:    func(o *Options) { o.MaxBytes = 16 },
			wantErr: ErrTooLarge,
		},
		{
			name:    "local files disabled",
			ref:     "icons/server.png",
			opts:    func(o *Options) { o.Root = "" },
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Root = root
			if tt.opts != nil {
				tt.opts(&opts)
			}

			img, err := NewLoader(opts).Fetch(context.Background(), tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, img)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
		})
	}
}

func TestLoader_Remote(t *testing.T) {
	pic := pngBytes(t, 3, 2)
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/img/ok.png", "/diagrams/img/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pic)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<!doctype html><html><body>hi</body></html>"))
		case "/forbidden.png":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		opts    func(*Options)
		ref     string
		wantErr error
		wantAny bool
	}{
		{name: "image", ref: srv.URL + "/img/ok.png"},
		{name: "missing", ref: srv.URL + "/img/missing.png", wantErr: ErrNotFound},
		{name: "html page", ref: srv.URL + "/page.html", wantErr: ErrUnsupportedImage},
		{name: "unexpected status", ref: srv.URL + "/forbidden.png", wantAny: true},
		{name: "unsupported scheme", ref: "ftp://example.com/a.png", wantErr: ErrNotFound},
		{
			name:    "remote disabled",
			ref:     srv.URL + "/img/ok.png",
			opts:    func(o *Options) { o.Remote = false },
			wantErr: ErrNotFound,
		},
		{
			name:    "byte cap",
			ref:     srv.URL + "/img/ok.png",
			opts:    func(o *Options) { o.MaxBytes = 8 },
			wantErr: ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.RetryMax = 0
			if tt.opts != nil {
				tt.opts(&opts)
			}

			img, err := NewLoader(opts).Fetch(context.Background(), tt.ref)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
			}
		})
	}

	t.Run("relative to diagram reference", func(t *testing.T) {
		mu.Lock()
		paths = nil
		mu.Unlock()
		opts := DefaultOptions()
		opts.RetryMax = 0
		r := NewResolver(nil, NewLoader(opts), srv.URL+"/diagrams/page")

		img, err := r.Resolve(context.Background(), "img/ok.png")
		require.NoError(t, err)
		assert.Equal(t, 3, img.Bounds().Dx())
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"/diagrams/img/ok.png"}, paths)
	})
}

func TestLoader_DataURI(t *testing.T) {
	pic := pngBytes(t, 2, 5)
	encoded := base64.StdEncoding.EncodeToString(pic)

	tests := []struct {
		name    string
		ref     string
		wantErr error
	}{
		{name: "standard form", ref: "data:image/png;base64," + encoded},
		{name: "style form without base64 marker", ref: "data:image/png," + encoded},
		{name: "upper case scheme", ref: "DATA:image/png;base64," + encoded},
		{name: "wrapped payload", ref: "data:image/png;base64," + encoded[:10] + "\n" + encoded[10:]},
		{name: "no payload separator", ref: "data:image/png", wantErr: ErrUnsupportedImage},
		{name: "bad base64", ref: "data:image/png;base64,!!!", wantErr: ErrUnsupportedImage},
		{name: "percent encoded svg", ref: "data:image/svg+xml,%3Csvg%20xmlns%3D%22http%3A%2F%2Fwww.w3.org%2F2000%2Fsvg%22%2F%3E", wantErr: ErrUnsupportedImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewLoader(DefaultOptions()).Fetch(context.Background(), tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 2, 5), img.Bounds())
		})
	}
}

func TestNewLoader_Defaults(t *testing.T) {
	l := NewLoader(Options{RetryMax: -1})
	assert.Equal(t, DefaultTimeout, l.opts.Timeout)
	assert.Equal(t, int64(DefaultMaxBytes), l.opts.MaxBytes)
	assert.Equal(t, int64(DefaultMaxPixels), l.opts.MaxPixels)
	assert.Equal(t, 0, l.opts.RetryMax)
	assert.Nil(t, l.fsys)
	assert.Equal(t, DefaultTimeout, l.client.Timeout)
}
