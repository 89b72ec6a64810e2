// Package cms defines the downstream side of the sync: the Target port that
// mirrors esa posts into a headless CMS, and the value types it exchanges.
package cms

import (
	"context"
	"errors"
	"time"
)

// ErrPostNotFound is returned by IsPostPublished (and adapters' other id-based
// reads) when no post has the given id.
var ErrPostNotFound = errors.New("cms: post not found")

// FallbackAuthorName is the name of the sentinel author every target keeps
// for posts whose esa user is not registered downstream.
const FallbackAuthorName = "__fallbackAuthor"

// Target is the port through which the sync engine drives the CMS.
type Target interface {
	// GetPostIDBySourceURL returns the id of the post mirroring sourceURL.
	// found is false when no such post exists; that is not an error.
	GetPostIDBySourceURL(ctx context.Context, sourceURL string) (id string, found bool, err error)

	// GetAuthorIDByUsername maps an esa screen name to a downstream author.
	// Unregistered users resolve to the fallback author with Kind AuthorUnknown.
	GetAuthorIDByUsername(ctx context.Context, username string) (Author, error)

	// CreatePost creates a post and returns its id.
	CreatePost(ctx context.Context, post NewPost) (string, error)

	// UpdatePost overwrites the mutable fields of an existing post.
	UpdatePost(ctx context.Context, id string, update PostUpdate) error

	// IsPostPublished reports the publication state of a post.
	IsPostPublished(ctx context.Context, id string) (bool, error)

	PublishPost(ctx context.Context, id string) error
	UnpublishPost(ctx context.Context, id string) error
	DeletePost(ctx context.Context, id string) error

	// Deploy triggers a rebuild of whatever is published from the CMS.
	Deploy(ctx context.Context) error
}

// AuthorKind tells whether an author was found downstream.
type AuthorKind string

const (
	AuthorKnown   AuthorKind = "known"
	AuthorUnknown AuthorKind = "unknown"
)

// Author is the result of resolving an esa username.
type Author struct {
	Kind AuthorKind
	ID   string
}

// SEO holds optional search metadata. Empty on creation.
type SEO struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewPost carries every field of a post at creation time.
type NewPost struct {
	Slug        string
	Title       string
	Author      string
	Date        time.Time
	Tags        []string
	Category    string
	Body        string
	BodySource  string
	SourceURL   string
	SEO         SEO
	PathAliases []string
}

// PostUpdate carries the fields that change on every sync. Slug, Date,
// SourceURL, SEO and PathAliases are fixed at creation.
type PostUpdate struct {
	Title      string
	Author     string
	Tags       []string
	Category   string
	Body       string
	BodySource string
}
