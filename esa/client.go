package esa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnauthorized is wrapped by APIError for 401/403 responses.
	ErrUnauthorized = errors.New("esa: unauthorized")
	// ErrRateLimited is wrapped by APIError for 429 responses.
	ErrRateLimited = errors.New("esa: rate limited")
)

// APIError is returned for any non-2xx answer other than a 404 on GetPost.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("esa: api returned %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Team       string
	Token      string
	BaseURL    string // default "https://api.esa.io"
	HTTPClient *http.Client
	UserAgent  string
}

// Client reads posts from the esa API v1. It implements Source.
type Client struct {
	team       string
	token      string
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a Client for one esa team.
func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.esa.io"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		team:       opts.Team,
		token:      opts.Token,
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  strings.TrimSpace(opts.UserAgent),
	}
}

// GetPost fetches one post. A 404 yields (nil, nil).
func (c *Client) GetPost(ctx context.Context, number int) (*Post, error) {
	path := fmt.Sprintf("/v1/teams/%s/posts/%d", url.PathEscape(c.team), number)
	var post Post
	found, err := c.get(ctx, path, nil, &post)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &post, nil
}

// ListPosts fetches one page of the team's posts.
func (c *Client) ListPosts(ctx context.Context, params ListParams) (*PostPage, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(params.PerPage))
	}
	if params.Sort != "" {
		q.Set("sort", params.Sort)
	}
	if params.Order != "" {
		q.Set("order", params.Order)
	}
	path := fmt.Sprintf("/v1/teams/%s/posts", url.PathEscape(c.team))
	var page PostPage
	found, err := c.get(ctx, path, q, &page)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &APIError{StatusCode: http.StatusNotFound, Body: "team not found: " + c.team}
	}
	return &page, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("esa: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("esa: decode %s: %w", path, err)
	}
	return true, nil
}

var _ Source = (*Client)(nil)
