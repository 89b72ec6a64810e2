package esasync

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a requested post does not exist or is not
// published.
var ErrNotFound = errors.New("post not found")

// PostCache serves the read API from a snapshot of the published mirror. A
// snapshot is retaken once it is older than ttl, or after a deploy that
// follows a write readers can see (see Store.Generation).
type PostCache struct {
	store *Store
	ttl   time.Duration

	mu   sync.RWMutex
	snap *mirrorSnapshot
}

type mirrorSnapshot struct {
	posts  []MirroredPost
	bySlug map[string]MirroredPost
	tags   []string
	gen    uint64
	taken  time.Time
}

func (sn *mirrorSnapshot) fresh(ttl time.Duration) bool {
	return sn != nil && time.Since(sn.taken) < ttl
}

// NewPostCache creates a PostCache over the published posts of s.
func NewPostCache(s *Store, ttl time.Duration) *PostCache {
	return &PostCache{store: s, ttl: ttl}
}

// Invalidate drops the snapshot unconditionally.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

// InvalidateIfChanged drops the snapshot when the mirror had a visible write
// since it was taken and reports whether it did. Deploys that follow only
// unpublished creates keep serving the same snapshot.
func (c *PostCache) InvalidateIfChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil || c.snap.gen == c.store.Generation() {
		return false
	}
	c.snap = nil
	return true
}

func (c *PostCache) snapshot(ctx context.Context) (*mirrorSnapshot, error) {
	c.mu.RLock()
	sn := c.snap
	c.mu.RUnlock()
	if sn.fresh(c.ttl) {
		return sn, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.fresh(c.ttl) {
		return c.snap, nil
	}
	sn, err := c.take(ctx)
	if err != nil {
		return nil, err
	}
	c.snap = sn
	return sn, nil
}

// take reads the generation first, so a write racing the queries leaves the
// snapshot stale rather than marked current.
func (c *PostCache) take(ctx context.Context) (*mirrorSnapshot, error) {
	gen := c.store.Generation()
	posts, err := c.store.ListPosts(ctx, "")
	if err != nil {
		return nil, err
	}
	tags, err := c.store.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	sn := &mirrorSnapshot{
		posts:  make([]MirroredPost, 0, len(posts)),
		bySlug: make(map[string]MirroredPost, len(posts)),
		tags:   tags,
		gen:    gen,
		taken:  time.Now(),
	}
	for _, p := range posts {
		sn.posts = append(sn.posts, p)
		if _, dup := sn.bySlug[p.Slug]; !dup {
			sn.bySlug[p.Slug] = p
		}
	}
	return sn, nil
}

// ListPosts returns published posts, newest first, optionally filtered by tag.
func (c *PostCache) ListPosts(ctx context.Context, tag string) ([]MirroredPost, error) {
	sn, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return sn.posts, nil
	}
	want := normalizeTag(tag)
	filtered := []MirroredPost{}
	for _, p := range sn.posts {
		if hasTag(p, want) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func hasTag(p MirroredPost, normalized string) bool {
	for _, t := range p.Tags {
		if normalizeTag(t) == normalized {
			return true
		}
	}
	return false
}

// ListTags returns the normalized tags of published posts.
func (c *PostCache) ListTags(ctx context.Context) ([]string, error) {
	sn, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sn.tags, nil
}

// GetPost returns a published post by slug.
func (c *PostCache) GetPost(ctx context.Context, slug string) (MirroredPost, error) {
	sn, err := c.snapshot(ctx)
	if err != nil {
		return MirroredPost{}, err
	}
	p, ok := sn.bySlug[slug]
	if !ok {
		return MirroredPost{}, ErrNotFound
	}
	return p, nil
}
