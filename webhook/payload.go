// Package webhook authenticates esa webhook requests, validates their payload
// and dispatches them by kind.
package webhook

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Kind is the "kind" field of an esa webhook payload.
type Kind string

const (
	KindPostCreate  Kind = "post_create"
	KindPostUpdate  Kind = "post_update"
	KindPostArchive Kind = "post_archive"
	KindPostDelete  Kind = "post_delete"
)

// Kinds lists every kind the router understands.
var Kinds = []Kind{KindPostCreate, KindPostUpdate, KindPostArchive, KindPostDelete}

// Payload is one of *PostCreate, *PostUpdate, *PostArchive or *PostDelete.
type Payload interface {
	Kind() Kind
	TeamName() string
	PostNumber() int
	payload()
}

type Team struct {
	Name string `json:"name"`
}

type Thumb struct {
	URL string `json:"url"`
}

type Icon struct {
	URL     string `json:"url"`
	ThumbS  Thumb  `json:"thumb_s"`
	ThumbMS Thumb  `json:"thumb_ms"`
	ThumbM  Thumb  `json:"thumb_m"`
	ThumbL  Thumb  `json:"thumb_l"`
}

// User is the esa member who triggered the event.
type User struct {
	Icon       Icon   `json:"icon"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// Post is the post as sent with create and archive events.
type Post struct {
	Name     string `json:"name"`
	BodyMD   string `json:"body_md"`
	BodyHTML string `json:"body_html"`
	Message  string `json:"message"`
	WIP      bool   `json:"wip"`
	Number   int    `json:"number"`
	URL      string `json:"url"`
}

// PostWithDiff is sent with update events.
type PostWithDiff struct {
	Post
	DiffURL string `json:"diff_url"`
}

// DeletedPost is what is left of a post in a delete event.
type DeletedPost struct {
	Name   string `json:"name"`
	WIP    bool   `json:"wip"`
	Number int    `json:"number"`
}

type PostCreate struct {
	Team Team `json:"team"`
	Post Post `json:"post"`
	User User `json:"user"`
}

type PostUpdate struct {
	Team Team         `json:"team"`
	Post PostWithDiff `json:"post"`
	User User         `json:"user"`
}

type PostArchive struct {
	Team Team `json:"team"`
	Post Post `json:"post"`
	User User `json:"user"`
}

type PostDelete struct {
	Team Team        `json:"team"`
	Post DeletedPost `json:"post"`
	User User        `json:"user"`
}

func (*PostCreate) Kind() Kind  { return KindPostCreate }
func (*PostUpdate) Kind() Kind  { return KindPostUpdate }
func (*PostArchive) Kind() Kind { return KindPostArchive }
func (*PostDelete) Kind() Kind  { return KindPostDelete }

func (p *PostCreate) TeamName() string  { return p.Team.Name }
func (p *PostUpdate) TeamName() string  { return p.Team.Name }
func (p *PostArchive) TeamName() string { return p.Team.Name }
func (p *PostDelete) TeamName() string  { return p.Team.Name }

func (p *PostCreate) PostNumber() int  { return p.Post.Number }
func (p *PostUpdate) PostNumber() int  { return p.Post.Number }
func (p *PostArchive) PostNumber() int { return p.Post.Number }
func (p *PostDelete) PostNumber() int  { return p.Post.Number }

func (*PostCreate) payload()  {}
func (*PostUpdate) payload()  {}
func (*PostArchive) payload() {}
func (*PostDelete) payload()  {}

// ValidatePayload checks a decoded JSON value and narrows it to a Payload.
// On failure it returns nil and human-readable messages.
func ValidatePayload(raw any) (Payload, []string) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, []string{"The payload is not an type object."}
	}
	kindStr, ok := obj["kind"].(string)
	if !ok {
		return nil, []string{"The `kind` is not type string."}
	}
	kind := Kind(kindStr)
	if !slices.Contains(Kinds, kind) {
		return nil, []string{fmt.Sprintf("The `kind` value %s is not supported.", quoteJSON(kindStr))}
	}
	if msgs := checkSchema(kind, raw); len(msgs) > 0 {
		return nil, msgs
	}

	var p Payload
	switch kind {
	case KindPostCreate:
		p = &PostCreate{}
	case KindPostUpdate:
		p = &PostUpdate{}
	case KindPostArchive:
		p = &PostArchive{}
	case KindPostDelete:
		p = &PostDelete{}
	}
	b, err := json.Marshal(obj)
	if err == nil {
		err = json.Unmarshal(b, p)
	}
	if err != nil {
		return nil, []string{fmt.Sprintf("The %s payload could not be decoded: %v.", kind, err)}
	}
	return p, nil
}

func quoteJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return string(b)
}
