// Package esa holds the upstream side of the sync: the esa.io post model, the
// Source port the sync engine reads through, and an HTTP client for the esa
// API v1.
package esa

import (
	"fmt"
	"time"
)

// Post is a read-only snapshot of an esa post as returned by the esa API.
type Post struct {
	Number    int       `json:"number"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags"`
	Category  *string   `json:"category"` // nil means the root category
	BodyMD    string    `json:"body_md"`
	BodyHTML  string    `json:"body_html"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy User      `json:"created_by"`
	WIP       bool      `json:"wip"`
	URL       string    `json:"url"`
}

// User is the author block embedded in posts.
type User struct {
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// PostURL returns the canonical URL of post number in team. The sync engine
// uses it as the join key with the target CMS.
func PostURL(team string, number int) string {
	return fmt.Sprintf("https://%s.esa.io/posts/%d", team, number)
}
