package esa

import (
	"context"
	"fmt"
	"iter"
)

// DefaultPerPage is the page size used by AllPosts when none is given.
const DefaultPerPage = 100

// Source is the port through which the sync engine reads upstream posts.
type Source interface {
	// GetPost returns post number, or nil without an error when the post no
	// longer exists upstream.
	GetPost(ctx context.Context, number int) (*Post, error)

	// ListPosts returns one page of posts.
	ListPosts(ctx context.Context, params ListParams) (*PostPage, error)
}

// ListParams selects one page of the post listing.
type ListParams struct {
	Page    int
	PerPage int
	Sort    string // "number", "updated", "created", ...
	Order   string // "asc" or "desc"
}

// PostPage is one page of a post listing. NextPage is nil on the last page.
type PostPage struct {
	Posts    []Post `json:"posts"`
	NextPage *int   `json:"next_page"`
	Total    int    `json:"total_count"`
}

// AllPosts walks every page of the listing starting from page 1 and yields
// posts in order. A failed page fetch is yielded once as an error and ends the
// sequence. Each range over the sequence starts again from the first page.
func AllPosts(ctx context.Context, src Source, params ListParams) iter.Seq2[Post, error] {
	if params.PerPage <= 0 {
		params.PerPage = DefaultPerPage
	}
	if params.Sort == "" {
		params.Sort = "number"
	}
	if params.Order == "" {
		params.Order = "asc"
	}
	return func(yield func(Post, error) bool) {
		page := 1
		for {
			p := params
			p.Page = page
			res, err := src.ListPosts(ctx, p)
			if err != nil {
				yield(Post{}, err)
				return
			}
			for _, post := range res.Posts {
				if !yield(post, nil) {
					return
				}
			}
			if res.NextPage == nil {
				return
			}
			if *res.NextPage <= page {
				yield(Post{}, fmt.Errorf("esa: next_page %d does not advance past page %d", *res.NextPage, page))
				return
			}
			page = *res.NextPage
		}
	}
}
