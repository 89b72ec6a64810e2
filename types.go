package esasync

import (
	"time"

	"github.com/eringen/esasync/cms"
)

// MirroredPost is a post of the sqlite mirror, as served by the read API and
// listed in the admin console.
type MirroredPost struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author"`
	Date        time.Time `json:"date"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category"`
	Body        string    `json:"body"`
	BodySource  string    `json:"body_source"`
	SourceURL   string    `json:"source_url"`
	SEO         cms.SEO   `json:"seo"`
	PathAliases []string  `json:"path_aliases"`
	Published   bool      `json:"published"`
	Link        string    `json:"link"`
}

// Author is a row of the mirror's authors table. EsaUsername is empty for the
// fallback author.
type Author struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	EsaUsername string `json:"esa_username,omitempty"`
}
