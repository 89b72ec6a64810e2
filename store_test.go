package esasync

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eringen/esasync/cms"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestPost(n int, slug string, tags ...string) cms.NewPost {
	return cms.NewPost{
		Slug:        slug,
		Title:       "Post " + slug,
		Author:      FallbackAuthorID,
		Date:        time.Date(2024, 1, n, 9, 0, 0, 0, time.UTC),
		Tags:        tags,
		Category:    "Public/docs",
		Body:        "<p>" + slug + "</p>",
		BodySource:  "# " + slug,
		SourceURL:   "https://docs.esa.io/posts/" + slug,
		PathAliases: []string{},
	}
}

func createPublished(t *testing.T, s *Store, p cms.NewPost) string {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreatePost(ctx, p)
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if err := s.PublishPost(ctx, id); err != nil {
		t.Fatalf("PublishPost failed: %v", err)
	}
	return id
}

func TestNewStoreSeedsFallbackAuthor(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	author, err := s.GetAuthorIDByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetAuthorIDByUsername failed: %v", err)
	}
	if author.Kind != cms.AuthorUnknown || author.ID != FallbackAuthorID {
		t.Errorf("expected fallback author, got %+v", author)
	}
}

func TestNewStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if _, err := s.CreatePost(context.Background(), newTestPost(1, "kept")); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	s.Close()

	s, err = NewStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()
	_, found, err := s.GetPostIDBySourceURL(context.Background(), "https://docs.esa.io/posts/kept")
	if err != nil || !found {
		t.Fatalf("expected post to survive reopen, found=%v err=%v", found, err)
	}
}

func TestUpsertAuthor(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.UpsertAuthor(ctx, "Alice", "@alice")
	if err != nil {
		t.Fatalf("UpsertAuthor failed: %v", err)
	}
	if created.EsaUsername != "alice" {
		t.Errorf("expected @ to be stripped, got %q", created.EsaUsername)
	}

	renamed, err := s.UpsertAuthor(ctx, "Alice Liddell", "alice")
	if err != nil {
		t.Fatalf("UpsertAuthor failed: %v", err)
	}
	if renamed.ID != created.ID {
		t.Errorf("expected same id on rename, got %q and %q", created.ID, renamed.ID)
	}

	author, err := s.GetAuthorIDByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAuthorIDByUsername failed: %v", err)
	}
	if author.Kind != cms.AuthorKnown || author.ID != created.ID {
		t.Errorf("expected known author %q, got %+v", created.ID, author)
	}

	authors, err := s.ListAuthors(ctx)
	if err != nil {
		t.Fatalf("ListAuthors failed: %v", err)
	}
	if len(authors) != 2 {
		t.Fatalf("expected fallback and alice, got %+v", authors)
	}

	if _, err := s.UpsertAuthor(ctx, "", "bob"); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestCreateAndGetPost(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	p := newTestPost(15, "hello", "go", "testing")
	p.SEO = cms.SEO{Title: "Hello", Description: "A greeting"}
	p.PathAliases = []string{"/old/hello"}
	id := createPublished(t, s, p)

	got, err := s.GetPost(ctx, "hello")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("expected id %q, got %q", id, got.ID)
	}
	if got.Title != p.Title || got.Body != p.Body || got.BodySource != p.BodySource {
		t.Errorf("content mismatch: %+v", got)
	}
	if !got.Date.Equal(p.Date) {
		t.Errorf("expected date %v, got %v", p.Date, got.Date)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "testing" {
		t.Errorf("expected tags [go testing], got %v", got.Tags)
	}
	if got.SEO != p.SEO {
		t.Errorf("expected SEO %+v, got %+v", p.SEO, got.SEO)
	}
	if len(got.PathAliases) != 1 || got.PathAliases[0] != "/old/hello" {
		t.Errorf("expected path aliases, got %v", got.PathAliases)
	}
	if got.AuthorName != cms.FallbackAuthorName {
		t.Errorf("expected fallback author name, got %q", got.AuthorName)
	}
	if got.Link != "/posts/hello" {
		t.Errorf("expected link /posts/hello, got %q", got.Link)
	}
	if !got.Published {
		t.Error("expected post to be published")
	}
}

func TestCreatedPostStartsUnpublished(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.CreatePost(ctx, newTestPost(1, "draft"))
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	published, err := s.IsPostPublished(ctx, id)
	if err != nil {
		t.Fatalf("IsPostPublished failed: %v", err)
	}
	if published {
		t.Error("expected new post to be unpublished")
	}
	if _, err := s.GetPost(ctx, "draft"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unpublished post, got %v", err)
	}
}

func TestUpdatePostKeepsCreationFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	p := newTestPost(3, "stable")
	id := createPublished(t, s, p)
	author, err := s.UpsertAuthor(ctx, "Alice", "alice")
	if err != nil {
		t.Fatalf("UpsertAuthor failed: %v", err)
	}

	err = s.UpdatePost(ctx, id, cms.PostUpdate{
		Title:      "Renamed",
		Author:     author.ID,
		Tags:       []string{"new"},
		Category:   "Public/other",
		Body:       "<p>new</p>",
		BodySource: "new",
	})
	if err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}

	got, err := s.GetPost(ctx, "stable")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.Title != "Renamed" || got.AuthorName != "Alice" || got.Category != "Public/other" {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.Date.Equal(p.Date) || got.SourceURL != p.SourceURL {
		t.Errorf("creation fields changed: %+v", got)
	}
}

func TestMissingPostErrors(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.IsPostPublished(ctx, "missing"); !errors.Is(err, cms.ErrPostNotFound) {
		t.Errorf("IsPostPublished: expected ErrPostNotFound, got %v", err)
	}
	if err := s.PublishPost(ctx, "missing"); !errors.Is(err, cms.ErrPostNotFound) {
		t.Errorf("PublishPost: expected ErrPostNotFound, got %v", err)
	}
	if err := s.UpdatePost(ctx, "missing", cms.PostUpdate{}); !errors.Is(err, cms.ErrPostNotFound) {
		t.Errorf("UpdatePost: expected ErrPostNotFound, got %v", err)
	}
	if err := s.DeletePost(ctx, "missing"); !errors.Is(err, cms.ErrPostNotFound) {
		t.Errorf("DeletePost: expected ErrPostNotFound, got %v", err)
	}
}

func TestDeletePost(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id := createPublished(t, s, newTestPost(1, "gone"))
	if err := s.DeletePost(ctx, id); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	_, found, err := s.GetPostIDBySourceURL(ctx, "https://docs.esa.io/posts/gone")
	if err != nil {
		t.Fatalf("GetPostIDBySourceURL failed: %v", err)
	}
	if found {
		t.Error("expected post to be deleted")
	}
}

func TestListPosts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createPublished(t, s, newTestPost(1, "older", "Go"))
	createPublished(t, s, newTestPost(2, "newer", "web"))
	if _, err := s.CreatePost(ctx, newTestPost(3, "draft", "go")); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	posts, err := s.ListPosts(ctx, "")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 published posts, got %d", len(posts))
	}
	if posts[0].Slug != "newer" {
		t.Errorf("expected newest first, got %q", posts[0].Slug)
	}

	tagged, err := s.ListPosts(ctx, "GO")
	if err != nil {
		t.Fatalf("ListPosts by tag failed: %v", err)
	}
	if len(tagged) != 1 || tagged[0].Slug != "older" {
		t.Errorf("expected only older for tag go, got %+v", tagged)
	}

	all, err := s.ListAllPosts(ctx)
	if err != nil {
		t.Fatalf("ListAllPosts failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 posts in total, got %d", len(all))
	}
}

func TestListTags(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	createPublished(t, s, newTestPost(1, "a", "Go", "web"))
	createPublished(t, s, newTestPost(2, "b", "go"))
	if _, err := s.CreatePost(ctx, newTestPost(3, "c", "hidden")); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	tags, err := s.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if len(tags) != 2 || tags[0] != "go" || tags[1] != "web" {
		t.Errorf("expected [go web], got %v", tags)
	}
}

func TestDeployRunsHooks(t *testing.T) {
	s := setupTestStore(t)
	var calls []string
	s.OnDeploy(func(context.Context) error {
		calls = append(calls, "first")
		return nil
	})
	s.OnDeploy(func(context.Context) error {
		calls = append(calls, "second")
		return errors.New("boom")
	})
	s.OnDeploy(func(context.Context) error {
		calls = append(calls, "third")
		return nil
	})

	if err := s.Deploy(context.Background()); err == nil {
		t.Error("expected hook error to be returned")
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("expected hooks to stop at the failing one, got %v", calls)
	}
}

func TestPostCacheInvalidatedByDeploy(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	cache := NewPostCache(s, time.Hour)
	s.OnDeploy(func(context.Context) error {
		cache.Invalidate()
		return nil
	})

	createPublished(t, s, newTestPost(1, "first"))
	posts, err := cache.ListPosts(ctx, "")
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 cached post, got %d", len(posts))
	}

	createPublished(t, s, newTestPost(2, "second"))
	posts, _ = cache.ListPosts(ctx, "")
	if len(posts) != 1 {
		t.Errorf("expected stale cache before deploy, got %d posts", len(posts))
	}

	if err := s.Deploy(ctx); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	posts, _ = cache.ListPosts(ctx, "")
	if len(posts) != 2 {
		t.Errorf("expected 2 posts after deploy, got %d", len(posts))
	}
	if _, err := cache.GetPost(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostCacheKeepsSnapshotUntilVisibleWrite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	cache := NewPostCache(s, time.Hour)
	s.OnDeploy(func(context.Context) error {
		cache.InvalidateIfChanged()
		return nil
	})

	id := createPublished(t, s, newTestPost(1, "first"))
	if _, err := cache.GetPost(ctx, "first"); err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}

	// A write the store does not track stays invisible, as does a new draft.
	if _, err := s.db.ExecContext(ctx, `UPDATE posts SET title = 'renamed' WHERE id = ?`, id); err != nil {
		t.Fatalf("raw update failed: %v", err)
	}
	gen := s.Generation()
	draft, err := s.CreatePost(ctx, newTestPost(2, "second"))
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if s.Generation() != gen {
		t.Error("creating an unpublished post must not change the generation")
	}
	if err := s.Deploy(ctx); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if p, _ := cache.GetPost(ctx, "first"); p.Title != "Post first" {
		t.Errorf("expected the snapshot to survive a no-op deploy, got title %q", p.Title)
	}

	if err := s.PublishPost(ctx, draft); err != nil {
		t.Fatalf("PublishPost failed: %v", err)
	}
	if s.Generation() == gen {
		t.Error("publishing must change the generation")
	}
	if err := s.Deploy(ctx); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	p, err := cache.GetPost(ctx, "first")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if p.Title != "renamed" {
		t.Errorf("expected a fresh snapshot after deploy, got title %q", p.Title)
	}
	if _, err := cache.GetPost(ctx, "second"); err != nil {
		t.Errorf("expected the published draft, got %v", err)
	}
	if cache.InvalidateIfChanged() {
		t.Error("nothing changed since the last snapshot")
	}
}

func TestTagsRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tags := []string{"a,b", " padded ", "日本語"}
	id := createPublished(t, s, newTestPost(1, "tagged", tags...))
	if err := s.UpdatePost(ctx, id, cms.PostUpdate{Title: "Post tagged", Author: FallbackAuthorID, Tags: tags}); err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	createPublished(t, s, newTestPost(2, "split", "a", "b"))

	p, err := s.GetPost(ctx, "tagged")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if len(p.Tags) != 3 || p.Tags[0] != "a,b" || p.Tags[1] != " padded " || p.Tags[2] != "日本語" {
		t.Errorf("tags did not round-trip: %#v", p.Tags)
	}

	tests := []struct {
		tag  string
		want []string
	}{
		{"a,b", []string{"tagged"}},
		{"a", []string{"split"}},
		{"padded", []string{"tagged"}},
		{"日本語", []string{"tagged"}},
		{"b,", nil},
	}
	for _, tt := range tests {
		posts, err := s.ListPosts(ctx, tt.tag)
		if err != nil {
			t.Fatalf("ListPosts(%q) failed: %v", tt.tag, err)
		}
		var slugs []string
		for _, p := range posts {
			slugs = append(slugs, p.Slug)
		}
		if strings.Join(slugs, " ") != strings.Join(tt.want, " ") {
			t.Errorf("ListPosts(%q) = %v, want %v", tt.tag, slugs, tt.want)
		}
	}

	all, err := s.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags failed: %v", err)
	}
	if strings.Join(all, "|") != "a|a,b|b|padded|日本語" {
		t.Errorf("unexpected tags %q", all)
	}
}

func TestNoTagsStoredAsEmptyList(t *testing.T) {
	s := setupTestStore(t)
	createPublished(t, s, newTestPost(1, "bare"))
	p, err := s.GetPost(context.Background(), "bare")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if p.Tags == nil || len(p.Tags) != 0 {
		t.Errorf("expected empty non-nil tags, got %#v", p.Tags)
	}
}

func TestStorePragmasOnEveryConnection(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var conns []*sql.Conn
	for range 3 {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatalf("Conn failed: %v", err)
		}
		conns = append(conns, conn)
	}
	for i, conn := range conns {
		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		if timeout != 5000 || mode != "wal" {
			t.Errorf("conn %d: busy_timeout=%d journal_mode=%s", i, timeout, mode)
		}
	}
	for _, conn := range conns {
		conn.Close()
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		want     string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"posts", "hello"}, "https://example.com/posts/hello/"},
		{"https://example.com/blog/", []string{"posts", "a b"}, "https://example.com/blog/posts/a%20b/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segments...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segments, got, tt.want)
		}
	}
}
