package datocms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/eringen/esasync/cms"
)

const postIDBySourceURLQuery = `query PostIDBySourceURL($sourceUrl: String) {
  post(filter: {sourceUrl: {eq: $sourceUrl}}) {
    id
  }
}`

const authorByUsernameQuery = `query AuthorByUsername($username: String, $fallback: String) {
  author: author(filter: {esaUsername: {eq: $username}}) {
    id
  }
  fallbackAuthor: author(filter: {name: {eq: $fallback}}) {
    id
  }
}`

const postStatusQuery = `query PostStatus($id: ItemId) {
  post(filter: {id: {eq: $id}}) {
    _status
  }
}`

type record struct {
	ID     string `json:"id"`
	Status string `json:"_status"`
}

// GetPostIDBySourceURL implements cms.Target.
func (c *Client) GetPostIDBySourceURL(ctx context.Context, sourceURL string) (string, bool, error) {
	var data struct {
		Post *record `json:"post"`
	}
	if err := c.query(ctx, postIDBySourceURLQuery, map[string]any{"sourceUrl": sourceURL}, &data); err != nil {
		return "", false, err
	}
	if data.Post == nil {
		return "", false, nil
	}
	return data.Post.ID, true, nil
}

// GetAuthorIDByUsername implements cms.Target. The fallback author is the
// author record named cms.FallbackAuthorName; it must exist.
func (c *Client) GetAuthorIDByUsername(ctx context.Context, username string) (cms.Author, error) {
	var data struct {
		Author         *record `json:"author"`
		FallbackAuthor *record `json:"fallbackAuthor"`
	}
	vars := map[string]any{"username": username, "fallback": cms.FallbackAuthorName}
	if err := c.query(ctx, authorByUsernameQuery, vars, &data); err != nil {
		return cms.Author{}, err
	}
	if data.Author != nil {
		return cms.Author{Kind: cms.AuthorKnown, ID: data.Author.ID}, nil
	}
	if data.FallbackAuthor == nil {
		return cms.Author{}, fmt.Errorf("datocms: no author named %q to fall back to", cms.FallbackAuthorName)
	}
	return cms.Author{Kind: cms.AuthorUnknown, ID: data.FallbackAuthor.ID}, nil
}

// IsPostPublished implements cms.Target.
func (c *Client) IsPostPublished(ctx context.Context, id string) (bool, error) {
	var data struct {
		Post *record `json:"post"`
	}
	if err := c.query(ctx, postStatusQuery, map[string]any{"id": id}, &data); err != nil {
		return false, err
	}
	if data.Post == nil {
		return false, fmt.Errorf("%w: %s", cms.ErrPostNotFound, id)
	}
	return data.Post.Status == "published", nil
}

// seo mirrors the DatoCMS SEO field.
type seo struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// itemAttributes are the fields of the post model. Tags and path aliases are
// stored as JSON-encoded strings.
type itemAttributes struct {
	Slug        string `json:"slug,omitempty"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Date        string `json:"date,omitempty"`
	Tags        string `json:"tags"`
	Category    string `json:"category"`
	Body        string `json:"body"`
	BodySource  string `json:"body_source"`
	SourceURL   string `json:"source_url,omitempty"`
	SEO         *seo   `json:"seo,omitempty"`
	PathAliases string `json:"path_aliases,omitempty"`
}

type relationship struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

type itemResource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id,omitempty"`
	Attributes    itemAttributes          `json:"attributes"`
	Relationships map[string]relationship `json:"relationships,omitempty"`
}

type itemDocument struct {
	Data itemResource `json:"data"`
}

type idDocument struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// CreatePost implements cms.Target.
func (c *Client) CreatePost(ctx context.Context, post cms.NewPost) (string, error) {
	itemType := relationship{}
	itemType.Data.Type = "item_type"
	itemType.Data.ID = c.postItemTypeID

	doc := itemDocument{Data: itemResource{
		Type: "item",
		Attributes: itemAttributes{
			Slug:        post.Slug,
			Title:       post.Title,
			Author:      post.Author,
			Date:        post.Date.UTC().Format(time.RFC3339),
			Tags:        encodeStrings(post.Tags),
			Category:    post.Category,
			Body:        post.Body,
			BodySource:  post.BodySource,
			SourceURL:   post.SourceURL,
			SEO:         &seo{Title: post.SEO.Title, Description: post.SEO.Description},
			PathAliases: encodeStrings(post.PathAliases),
		},
		Relationships: map[string]relationship{"item_type": itemType},
	}}
	var created idDocument
	if err := c.jsonAPI(ctx, http.MethodPost, "/items", doc, &created); err != nil {
		return "", err
	}
	return created.Data.ID, nil
}

// UpdatePost implements cms.Target. Only the mutable fields are sent.
func (c *Client) UpdatePost(ctx context.Context, id string, update cms.PostUpdate) error {
	doc := itemDocument{Data: itemResource{
		Type: "item",
		ID:   id,
		Attributes: itemAttributes{
			Title:      update.Title,
			Author:     update.Author,
			Tags:       encodeStrings(update.Tags),
			Category:   update.Category,
			Body:       update.Body,
			BodySource: update.BodySource,
		},
	}}
	return c.jsonAPI(ctx, http.MethodPut, "/items/"+url.PathEscape(id), doc, nil)
}

// PublishPost implements cms.Target.
func (c *Client) PublishPost(ctx context.Context, id string) error {
	return c.jsonAPI(ctx, http.MethodPut, "/items/"+url.PathEscape(id)+"/publish", nil, nil)
}

// UnpublishPost implements cms.Target.
func (c *Client) UnpublishPost(ctx context.Context, id string) error {
	return c.jsonAPI(ctx, http.MethodPut, "/items/"+url.PathEscape(id)+"/unpublish", nil, nil)
}

// DeletePost implements cms.Target.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.jsonAPI(ctx, http.MethodDelete, "/items/"+url.PathEscape(id), nil, nil)
}

// Deploy fires the configured build trigger.
func (c *Client) Deploy(ctx context.Context) error {
	if c.buildTriggerID == "" {
		return ErrNoBuildTrigger
	}
	return c.jsonAPI(ctx, http.MethodPost, "/build_triggers/"+url.PathEscape(c.buildTriggerID)+"/trigger", nil, nil)
}

var _ cms.Target = (*Client)(nil)
