package resources

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	images  map[string]image.Image
	err     error
	release chan struct{}
	panics  bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int), images: make(map[string]image.Image)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) (image.Image, error) {
	f.mu.Lock()
	f.calls[ref]++
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("decoder blew up")
	}
	if f.err != nil {
		return nil, f.err
	}
	if img, ok := f.images[ref]; ok {
		return img, nil
	}
	return nil, ErrNotFound
}

func (f *fakeFetcher) count(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ref]
}

func TestIsGlobalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/icons/server.png", true},
		{"icons/server.png", true},
		{"server.png", true},
		{"/proxy?u=https://example.com/a.png", true},
		{"https://example.com/a.png", false},
		{"http://example.com/a.png", false},
		{"ftp://example.com/a.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsGlobalPath(tt.path); got != tt.want {
				t.Errorf("IsGlobalPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolver_Tiers(t *testing.T) {
	ctx := context.Background()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))

	fetcher := newFakeFetcher()
	fetcher.images["/icons/a.png"] = img
	fetcher.images["icons/b.png"] = img
	fetcher.images["https://cdn.example.com/c.png"] = img
	fetcher.images["https://wiki.example.com/pages/img/d.png"] = img

	global := NewGlobalCache()
	r := NewResolver(global, fetcher, "https://wiki.example.com/pages/diagram")

	for _, ref := range []string{"/icons/a.png", "https://cdn.example.com/c.png", "img/d.png"} {
		got, err := r.Resolve(ctx, ref)
		require.NoError(t, err, ref)
		assert.Same(t, img, got, ref)
	}
	assert.Equal(t, 1, global.Len(), "only the local path is shared")
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, fetcher.count("https://wiki.example.com/pages/img/d.png"), "relative refs resolve against the diagram URL")

	plain := NewResolver(global, fetcher, "Main.WebHome")
	_, err := plain.Resolve(ctx, "icons/b.png")
	require.NoError(t, err)
	assert.Equal(t, 2, global.Len())
	assert.Equal(t, 0, plain.Len())

	_, err = plain.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver_NegativeResultsAreRemembered(t *testing.T) {
	ctx := context.Background()
	fetcher := newFakeFetcher()
	global := NewGlobalCache()

	r := NewResolver(global, fetcher, "")
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(ctx, "https://cdn.example.com/missing.png")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.Resolve(ctx, "/missing.png")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 1, fetcher.count("https://cdn.example.com/missing.png"))
	assert.Equal(t, 1, fetcher.count("/missing.png"))

	other := NewResolver(global, fetcher, "")
	_, _ = other.Resolve(ctx, "https://cdn.example.com/missing.png")
	_, _ = other.Resolve(ctx, "/missing.png")
	assert.Equal(t, 2, fetcher.count("https://cdn.example.com/missing.png"), "request tier is per export")
	assert.Equal(t, 1, fetcher.count("/missing.png"), "global tier outlives the export")
}

func TestGlobalCache_ConcurrentMissesShareOneFetch(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.images["/shared.png"] = image.NewNRGBA(image.Rect(0, 0, 1, 1))
	global := NewGlobalCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := NewResolver(global, fetcher, "")
			_, err := r.Resolve(context.Background(), "/shared.png")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fetcher.count("/shared.png"))
}

func TestResolver_Cancellation(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.images["/slow.png"] = image.NewNRGBA(image.Rect(0, 0, 1, 1))
	fetcher.release = make(chan struct{})
	global := NewGlobalCache()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := NewResolver(global, fetcher, "").Resolve(ctx, "/slow.png")
		done <- err
	}()

	// Wait until the shared fetch has started.
	for fetcher.count("/slow.png") == 0 {
		runtime.Gosched()
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(fetcher.release)
	img, err := NewResolver(global, fetcher, "").Resolve(context.Background(), "/slow.png")
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, 1, fetcher.count("/slow.png"), "the abandoned fetch still fills the cache")

	_, err = NewResolver(global, fetcher, "").Resolve(ctx, "/other.png")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fetcher.count("/other.png"))
}

func TestResolver_TransientErrorsAreNotRemembered(t *testing.T) {
	ctx := context.Background()
	fetcher := newFakeFetcher()
	fetcher.err = context.DeadlineExceeded
	global := NewGlobalCache()
	r := NewResolver(global, fetcher, "")

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(ctx, "https://cdn.example.com/a.png")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		_, err = r.Resolve(ctx, "/a.png")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, 2, fetcher.count("https://cdn.example.com/a.png"))
	assert.Equal(t, 2, fetcher.count("/a.png"))
	assert.Equal(t, 0, global.Len())
	assert.Equal(t, 0, r.Len())
}

func TestGlobalCache_PanicIsNotCached(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.panics = true
	global := NewGlobalCache()

	for i := 0; i < 2; i++ {
		_, err := NewResolver(global, fetcher, "").Resolve(context.Background(), "/boom.png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic")
	}
	assert.Equal(t, 2, fetcher.count("/boom.png"))
	assert.Equal(t, 0, global.Len())
}

// Two exports referencing the same missing remote image each try the network
// once and then hit the remembered failure.
func TestResolver_ConcurrentExportsMissingRemoteImage(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.RetryMax = 0
	loader := NewLoader(opts)
	global := NewGlobalCache()
	ref := srv.URL + "/missing.png"

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := NewResolver(global, loader, "")
			for j := 0; j < 3; j++ {
				_, err := r.Resolve(context.Background(), ref)
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve() error = %v, want ErrNotFound", err)
		}
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 0, global.Len())
}
