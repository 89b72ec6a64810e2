// Package memory provides an in-memory cms.Target. It backs the engine tests
// and the "memory" target of the CLI, which performs a dry run.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/eringen/esasync/cms"
)

// FallbackAuthorID is the id of the sentinel author seeded by NewTarget.
const FallbackAuthorID = "author-fallback"

// Post is a stored post plus its publication flag.
type Post struct {
	ID        string
	Published bool
	cms.NewPost
}

// Target keeps posts and authors in maps and records every call it receives.
type Target struct {
	mu       sync.Mutex
	posts    map[string]*Post
	authors  map[string]string // esa username -> author id
	calls    []string
	deploys  int
	newID    func() string
	failures map[string]error
}

// NewTarget returns an empty Target with only the fallback author.
func NewTarget() *Target {
	return &Target{
		posts:    make(map[string]*Post),
		authors:  make(map[string]string),
		newID:    uuid.NewString,
		failures: make(map[string]error),
	}
}

// WithSequentialIDs makes CreatePost mint "post-1", "post-2", ... instead of
// random UUIDs, for deterministic traces.
func (t *Target) WithSequentialIDs() *Target {
	n := 0
	t.newID = func() string {
		n++
		return fmt.Sprintf("post-%d", n)
	}
	return t
}

// AddAuthor registers an esa username under an author id.
func (t *Target) AddAuthor(username, id string) {
	t.mu.Lock()
	t.authors[username] = id
	t.mu.Unlock()
}

// FailOn makes the named operation ("CreatePost", "Deploy", ...) return err.
// A nil err clears the failure.
func (t *Target) FailOn(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failures, op)
		return
	}
	t.failures[op] = err
}

// Seed stores a post directly, bypassing the call log.
func (t *Target) Seed(p Post) {
	t.mu.Lock()
	cp := p
	t.posts[p.ID] = &cp
	t.mu.Unlock()
}

// Post returns a copy of the stored post with id.
func (t *Target) Post(id string) (Post, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.posts[id]
	if !ok {
		return Post{}, false
	}
	return *p, true
}

// Posts returns copies of all stored posts.
func (t *Target) Posts() []Post {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Post, 0, len(t.posts))
	for _, p := range t.posts {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Post) int {
		if a.SourceURL < b.SourceURL {
			return -1
		}
		if a.SourceURL > b.SourceURL {
			return 1
		}
		return 0
	})
	return out
}

// Calls returns the log of calls received so far, e.g. "CreatePost post-1".
func (t *Target) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.calls)
}

// CountCalls returns how many recorded calls were made to op.
func (t *Target) CountCalls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c == op || len(c) > len(op) && c[:len(op)+1] == op+" " {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (t *Target) ResetCalls() {
	t.mu.Lock()
	t.calls = nil
	t.mu.Unlock()
}

// Deploys returns how many times Deploy succeeded.
func (t *Target) Deploys() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deploys
}

func (t *Target) record(op, arg string) error {
	if arg == "" {
		t.calls = append(t.calls, op)
	} else {
		t.calls = append(t.calls, op+" "+arg)
	}
	return t.failures[op]
}

// GetPostIDBySourceURL implements cms.Target.
func (t *Target) GetPostIDBySourceURL(ctx context.Context, sourceURL string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("GetPostIDBySourceURL", sourceURL); err != nil {
		return "", false, err
	}
	for id, p := range t.posts {
		if p.SourceURL == sourceURL {
			return id, true, nil
		}
	}
	return "", false, nil
}

// GetAuthorIDByUsername implements cms.Target.
func (t *Target) GetAuthorIDByUsername(ctx context.Context, username string) (cms.Author, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("GetAuthorIDByUsername", username); err != nil {
		return cms.Author{}, err
	}
	if id, ok := t.authors[username]; ok {
		return cms.Author{Kind: cms.AuthorKnown, ID: id}, nil
	}
	return cms.Author{Kind: cms.AuthorUnknown, ID: FallbackAuthorID}, nil
}

// CreatePost implements cms.Target.
func (t *Target) CreatePost(ctx context.Context, post cms.NewPost) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("CreatePost", post.SourceURL); err != nil {
		return "", err
	}
	id := t.newID()
	post.Tags = slices.Clone(post.Tags)
	post.PathAliases = slices.Clone(post.PathAliases)
	t.posts[id] = &Post{ID: id, NewPost: post}
	return id, nil
}

// UpdatePost implements cms.Target.
func (t *Target) UpdatePost(ctx context.Context, id string, update cms.PostUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("UpdatePost", id); err != nil {
		return err
	}
	p, ok := t.posts[id]
	if !ok {
		return fmt.Errorf("%w: %s", cms.ErrPostNotFound, id)
	}
	p.Title = update.Title
	p.Author = update.Author
	p.Tags = slices.Clone(update.Tags)
	p.Category = update.Category
	p.Body = update.Body
	p.BodySource = update.BodySource
	return nil
}

// IsPostPublished implements cms.Target.
func (t *Target) IsPostPublished(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("IsPostPublished", id); err != nil {
		return false, err
	}
	p, ok := t.posts[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", cms.ErrPostNotFound, id)
	}
	return p.Published, nil
}

// PublishPost implements cms.Target.
func (t *Target) PublishPost(ctx context.Context, id string) error {
	return t.setPublished("PublishPost", id, true)
}

// UnpublishPost implements cms.Target.
func (t *Target) UnpublishPost(ctx context.Context, id string) error {
	return t.setPublished("UnpublishPost", id, false)
}

func (t *Target) setPublished(op, id string, published bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record(op, id); err != nil {
		return err
	}
	p, ok := t.posts[id]
	if !ok {
		return fmt.Errorf("%w: %s", cms.ErrPostNotFound, id)
	}
	p.Published = published
	return nil
}

// DeletePost implements cms.Target.
func (t *Target) DeletePost(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("DeletePost", id); err != nil {
		return err
	}
	if _, ok := t.posts[id]; !ok {
		return fmt.Errorf("%w: %s", cms.ErrPostNotFound, id)
	}
	delete(t.posts, id)
	return nil
}

// Deploy implements cms.Target.
func (t *Target) Deploy(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.record("Deploy", ""); err != nil {
		return err
	}
	t.deploys++
	return nil
}

var _ cms.Target = (*Target)(nil)
