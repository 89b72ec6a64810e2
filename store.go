package esasync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/esasync/cms"
)

// FallbackAuthorID is the id of the author seeded into every new database.
const FallbackAuthorID = "fallback"

// Store is a sqlite mirror of the synced posts. It implements cms.Target, so
// the sync engine can write to it instead of a hosted CMS, and serves the read
// API and feeds.
type Store struct {
	db *sql.DB
	// gen counts writes that change what readers of published posts see.
	gen atomic.Uint64

	mu          sync.Mutex
	deployHooks []func(context.Context) error
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", storeDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// storeDSN sets the pragmas per connection, so every pooled connection has them.
func storeDSN(path string) string {
	q := url.Values{}
	for _, p := range []string{"busy_timeout(5000)", "journal_mode(WAL)", "synchronous(NORMAL)"} {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS authors (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    esa_username TEXT UNIQUE
);
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL,
    title TEXT NOT NULL,
    author_id TEXT NOT NULL REFERENCES authors(id),
    date TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    category TEXT NOT NULL,
    body TEXT NOT NULL,
    body_source TEXT NOT NULL,
    source_url TEXT NOT NULL UNIQUE,
    seo_title TEXT NOT NULL DEFAULT '',
    seo_description TEXT NOT NULL DEFAULT '',
    path_aliases TEXT NOT NULL DEFAULT '[]',
    published INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS posts_slug ON posts(slug);
`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR IGNORE INTO authors (id, name, esa_username) VALUES (?, ?, NULL)`,
		FallbackAuthorID, cms.FallbackAuthorName)
	return err
}

// Generation changes whenever a write may alter the published posts: updates,
// publication changes, deletes and author renames. Creating a post does not,
// since new posts start unpublished.
func (s *Store) Generation() uint64 {
	return s.gen.Load()
}

// OnDeploy registers fn to run on every Deploy, in registration order.
func (s *Store) OnDeploy(fn func(context.Context) error) {
	s.mu.Lock()
	s.deployHooks = append(s.deployHooks, fn)
	s.mu.Unlock()
}

// GetPostIDBySourceURL implements cms.Target.
func (s *Store) GetPostIDBySourceURL(ctx context.Context, sourceURL string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM posts WHERE source_url = ?`, sourceURL).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// GetAuthorIDByUsername implements cms.Target.
func (s *Store) GetAuthorIDByUsername(ctx context.Context, username string) (cms.Author, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM authors WHERE esa_username = ?`, username).Scan(&id)
	if err == nil {
		return cms.Author{Kind: cms.AuthorKnown, ID: id}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return cms.Author{}, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT id FROM authors WHERE name = ? AND esa_username IS NULL`,
		cms.FallbackAuthorName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return cms.Author{}, fmt.Errorf("no author named %q to fall back to", cms.FallbackAuthorName)
	}
	if err != nil {
		return cms.Author{}, err
	}
	return cms.Author{Kind: cms.AuthorUnknown, ID: id}, nil
}

// CreatePost implements cms.Target. New posts start unpublished.
func (s *Store) CreatePost(ctx context.Context, post cms.NewPost) (string, error) {
	aliases, err := json.Marshal(nonNil(post.PathAliases))
	if err != nil {
		return "", err
	}
	tags, err := json.Marshal(nonNil(post.Tags))
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `INSERT INTO posts
		(id, slug, title, author_id, date, tags, category, body, body_source, source_url, seo_title, seo_description, path_aliases, published)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		id, post.Slug, post.Title, post.Author, post.Date.UTC().Format(time.RFC3339), string(tags),
		post.Category, post.Body, post.BodySource, post.SourceURL, post.SEO.Title, post.SEO.Description, string(aliases))
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdatePost implements cms.Target.
func (s *Store) UpdatePost(ctx context.Context, id string, update cms.PostUpdate) error {
	tags, err := json.Marshal(nonNil(update.Tags))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts
		SET title = ?, author_id = ?, tags = ?, category = ?, body = ?, body_source = ?
		WHERE id = ?`,
		update.Title, update.Author, string(tags), update.Category, update.Body, update.BodySource, id)
	if err != nil {
		return err
	}
	return s.changed(res, id)
}

// IsPostPublished implements cms.Target.
func (s *Store) IsPostPublished(ctx context.Context, id string) (bool, error) {
	var published int
	err := s.db.QueryRowContext(ctx, `SELECT published FROM posts WHERE id = ?`, id).Scan(&published)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", cms.ErrPostNotFound, id)
	}
	if err != nil {
		return false, err
	}
	return published == 1, nil
}

// PublishPost implements cms.Target.
func (s *Store) PublishPost(ctx context.Context, id string) error {
	return s.setPublished(ctx, id, true)
}

// UnpublishPost implements cms.Target.
func (s *Store) UnpublishPost(ctx context.Context, id string) error {
	return s.setPublished(ctx, id, false)
}

func (s *Store) setPublished(ctx context.Context, id string, published bool) error {
	v := 0
	if published {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET published = ? WHERE id = ?`, v, id)
	if err != nil {
		return err
	}
	return s.changed(res, id)
}

// DeletePost implements cms.Target.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return s.changed(res, id)
}

// Deploy implements cms.Target by running the OnDeploy hooks.
func (s *Store) Deploy(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]func(context.Context) error(nil), s.deployHooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// changed bumps the generation after a write to post id.
func (s *Store) changed(res sql.Result, id string) error {
	if err := expectOneRow(res, id); err != nil {
		return err
	}
	s.gen.Add(1)
	return nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", cms.ErrPostNotFound, id)
	}
	return nil
}

const postColumns = `p.id, p.slug, p.title, p.author_id, COALESCE(a.name, ''), p.date, p.tags, p.category, p.body,
	p.body_source, p.source_url, p.seo_title, p.seo_description, p.path_aliases, p.published`

const postFrom = ` FROM posts p LEFT JOIN authors a ON a.id = p.author_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (MirroredPost, error) {
	var p MirroredPost
	var date, tags, aliases string
	var published int
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.AuthorID, &p.AuthorName, &date, &tags, &p.Category,
		&p.Body, &p.BodySource, &p.SourceURL, &p.SEO.Title, &p.SEO.Description, &aliases, &published)
	if err != nil {
		return MirroredPost{}, err
	}
	if p.Date, err = time.Parse(time.RFC3339, date); err != nil {
		return MirroredPost{}, fmt.Errorf("post %s: bad date %q: %w", p.ID, date, err)
	}
	if err := json.Unmarshal([]byte(aliases), &p.PathAliases); err != nil {
		return MirroredPost{}, fmt.Errorf("post %s: bad path aliases: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return MirroredPost{}, fmt.Errorf("post %s: bad tags: %w", p.ID, err)
	}
	p.Published = published == 1
	p.Link = postLink(p.Slug)
	return p, nil
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]MirroredPost, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []MirroredPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// ListPosts returns all published posts ordered by date descending.
// If tag is non-empty, results are filtered to posts carrying that tag.
func (s *Store) ListPosts(ctx context.Context, tag string) ([]MirroredPost, error) {
	if tag == "" {
		return s.queryPosts(ctx, `SELECT `+postColumns+postFrom+` WHERE p.published = 1 ORDER BY p.date DESC`)
	}
	return s.queryPosts(ctx, `SELECT `+postColumns+postFrom+
		` WHERE p.published = 1 AND EXISTS (SELECT 1 FROM json_each(p.tags) t WHERE lower(trim(t.value)) = ?)`+
		` ORDER BY p.date DESC`, normalizeTag(tag))
}

// ListAllPosts returns every mirrored post, published or not.
func (s *Store) ListAllPosts(ctx context.Context) ([]MirroredPost, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+postFrom+` ORDER BY p.date DESC`)
}

// GetPost returns a single published post by slug.
func (s *Store) GetPost(ctx context.Context, slug string) (MirroredPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+postFrom+` WHERE p.slug = ? AND p.published = 1`, slug)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MirroredPost{}, ErrNotFound
	}
	return p, err
}

// ListTags returns a sorted, deduplicated slice of all tags from published posts.
func (s *Store) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM posts WHERE published = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, err
		}
		for _, t := range tags {
			if t = normalizeTag(t); t != "" {
				set[t] = struct{}{}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result := make([]string, 0, len(set))
	for t := range set {
		result = append(result, t)
	}
	sort.Strings(result)
	return result, nil
}

// UpsertAuthor registers esaUsername under name, renaming the author when the
// username is already known.
func (s *Store) UpsertAuthor(ctx context.Context, name, esaUsername string) (Author, error) {
	name = strings.TrimSpace(name)
	esaUsername = strings.TrimPrefix(strings.TrimSpace(esaUsername), "@")
	if name == "" || esaUsername == "" {
		return Author{}, errors.New("author name and esa username are required")
	}
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM authors WHERE esa_username = ?`, esaUsername).Scan(&id)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx, `UPDATE authors SET name = ? WHERE id = ?`, name, id); err != nil {
			return Author{}, err
		}
		s.gen.Add(1)
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		if _, err := s.db.ExecContext(ctx, `INSERT INTO authors (id, name, esa_username) VALUES (?, ?, ?)`,
			id, name, esaUsername); err != nil {
			return Author{}, err
		}
	default:
		return Author{}, err
	}
	return Author{ID: id, Name: name, EsaUsername: esaUsername}, nil
}

// ListAuthors returns every author, the fallback author included, by name.
func (s *Store) ListAuthors(ctx context.Context) ([]Author, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, COALESCE(esa_username, '') FROM authors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name, &a.EsaUsername); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

var _ cms.Target = (*Store)(nil)
