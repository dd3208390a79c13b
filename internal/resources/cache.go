package resources

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/singleflight"
)

// GlobalCache is the process-wide image tier. It is safe for concurrent use;
// concurrent misses on the same key share one fetch.
type GlobalCache struct {
	entries sync.Map
	group   singleflight.Group
}

// NewGlobalCache returns an empty cache.
func NewGlobalCache() *GlobalCache {
	return &GlobalCache{}
}

// Len returns the number of cached entries, negative ones included.
func (c *GlobalCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *GlobalCache) load(ctx context.Context, key string, fetcher Fetcher) (image.Image, error) {
	if v, ok := c.entries.Load(key); ok {
		return v.(entry).result()
	}

	// The shared fetch must outlive any single waiter, so it runs detached
	// from cancellation. Waiters still return as soon as their own context
	// is done.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (v any, err error) {
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		defer func() {
			if r := recover(); r != nil {
				v = entry{err: fmt.Errorf("loading image %q: panic: %v", key, r)}
				err = nil
			}
		}()
		img, fetchErr := fetcher.Fetch(shared, key)
		e := entry{img: img, err: fetchErr}
		if !transient(fetchErr) {
			c.entries.Store(key, e)
			logNegative(shared, key, fetchErr)
		}
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val.(entry).result()
	}
}

// Resolver serves image lookups for one export. It is not safe for
// concurrent use; the global tier it wraps is.
type Resolver struct {
	global  *GlobalCache
	fetcher Fetcher
	base    *url.URL
	request map[string]entry
}

// NewResolver returns a resolver with a fresh request tier. Relative
// references without a leading slash are resolved against diagramReference
// when it is an http or https URL.
func NewResolver(global *GlobalCache, fetcher Fetcher, diagramReference string) *Resolver {
	if global == nil {
		global = NewGlobalCache()
	}
	r := &Resolver{
		global:  global,
		fetcher: fetcher,
		request: make(map[string]entry),
	}
	if u, err := url.Parse(diagramReference); err == nil && u.Host != "" &&
		(u.Scheme == "http" || u.Scheme == "https") {
		r.base = u
	}
	return r
}

// Resolve returns the decoded image for ref, or the remembered error when it
// could not be loaded.
func (r *Resolver) Resolve(ctx context.Context, ref string) (image.Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isDataURI(ref) {
		return r.loadRequest(ctx, ref)
	}

	key := r.absolute(ref)
	if IsGlobalPath(key) {
		return r.global.load(ctx, key, r.fetcher)
	}
	return r.loadRequest(ctx, key)
}

// Len returns the number of entries in the request tier.
func (r *Resolver) Len() int {
	return len(r.request)
}

func (r *Resolver) loadRequest(ctx context.Context, key string) (image.Image, error) {
	if e, ok := r.request[key]; ok {
		return e.result()
	}
	img, err := r.fetcher.Fetch(ctx, key)
	if !transient(err) {
		r.request[key] = entry{img: img, err: err}
		logNegative(ctx, key, err)
	}
	return img, err
}

func (r *Resolver) absolute(ref string) string {
	if r.base == nil || strings.HasPrefix(ref, "/") || strings.Contains(ref, "://") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return r.base.ResolveReference(u).String()
}

func logNegative(ctx context.Context, key string, err error) {
	if err == nil {
		return
	}
	if isDataURI(key) && len(key) > 64 {
		key = key[:64] + "..."
	}
	tflog.Warn(ctx, "Image unavailable", map[string]interface{}{
		"image": key,
		"error": err.Error(),
	})
}
