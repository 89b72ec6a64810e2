// Package memory provides an in-memory esa.Source for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/eringen/esasync/esa"
)

// Source serves posts from a map. The zero value is not usable; call NewSource.
type Source struct {
	mu    sync.Mutex
	posts map[int]esa.Post

	// GetErr and ListErr, when set, are returned by the corresponding calls.
	GetErr  error
	ListErr error
	// ListErrOnPage limits ListErr to a single page (0 means every page).
	ListErrOnPage int

	gets  int
	lists int
}

// NewSource returns a Source holding posts.
func NewSource(posts ...esa.Post) *Source {
	s := &Source{posts: make(map[int]esa.Post)}
	for _, p := range posts {
		s.posts[p.Number] = p
	}
	return s
}

// Put inserts or replaces a post.
func (s *Source) Put(p esa.Post) {
	s.mu.Lock()
	s.posts[p.Number] = p
	s.mu.Unlock()
}

// Remove deletes a post, as if it was deleted upstream.
func (s *Source) Remove(number int) {
	s.mu.Lock()
	delete(s.posts, number)
	s.mu.Unlock()
}

// GetPost implements esa.Source.
func (s *Source) GetPost(ctx context.Context, number int) (*esa.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	p, ok := s.posts[number]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListPosts implements esa.Source. Posts are ordered by number ascending
// regardless of params.Sort.
func (s *Source) ListPosts(ctx context.Context, params esa.ListParams) (*esa.PostPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.ListErr != nil && (s.ListErrOnPage == 0 || s.ListErrOnPage == params.Page) {
		return nil, s.ListErr
	}
	numbers := make([]int, 0, len(s.posts))
	for n := range s.posts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	if params.Order == "desc" {
		sort.Sort(sort.Reverse(sort.IntSlice(numbers)))
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = esa.DefaultPerPage
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(numbers) {
		start = len(numbers)
	}
	if end > len(numbers) {
		end = len(numbers)
	}
	out := &esa.PostPage{Total: len(numbers)}
	for _, n := range numbers[start:end] {
		out.Posts = append(out.Posts, s.posts[n])
	}
	if end < len(numbers) {
		next := page + 1
		out.NextPage = &next
	}
	return out, nil
}

// Gets returns how many times GetPost was called.
func (s *Source) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// Lists returns how many pages were requested.
func (s *Source) Lists() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

var _ esa.Source = (*Source)(nil)
