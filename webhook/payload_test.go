package webhook_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/esasync/webhook"
)

const createBody = `{
  "kind": "post_create",
  "team": {"name": "docs"},
  "post": {
    "name": "Launch",
    "body_md": "# Launch",
    "body_html": "<h1>Launch</h1>",
    "message": "Create post.",
    "wip": false,
    "number": 42,
    "url": "https://docs.esa.io/posts/42"
  },
  "user": {
    "icon": {"url": "https://img.esa.io/alice.png", "thumb_s": {"url": "https://img.esa.io/alice_s.png"}},
    "name": "Alice",
    "screen_name": "alice"
  }
}`

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestValidatePayloadCreate(t *testing.T) {
	p, errs := webhook.ValidatePayload(decode(t, createBody))
	require.Empty(t, errs)

	create, ok := p.(*webhook.PostCreate)
	require.True(t, ok, "got %T", p)
	assert.Equal(t, webhook.KindPostCreate, create.Kind())
	assert.Equal(t, "docs", create.TeamName())
	assert.Equal(t, 42, create.PostNumber())
	assert.Equal(t, "Launch", create.Post.Name)
	assert.Equal(t, "<h1>Launch</h1>", create.Post.BodyHTML)
	assert.Equal(t, "alice", create.User.ScreenName)
	assert.Equal(t, "https://img.esa.io/alice_s.png", create.User.Icon.ThumbS.URL)
}

func TestValidatePayloadKinds(t *testing.T) {
	tests := []struct {
		body string
		want webhook.Kind
	}{
		{`{"kind":"post_update","team":{"name":"docs"},"post":{"number":3,"name":"a","diff_url":"https://docs.esa.io/posts/3/revisions/2"}}`, webhook.KindPostUpdate},
		{`{"kind":"post_archive","team":{"name":"docs"},"post":{"number":3}}`, webhook.KindPostArchive},
		{`{"kind":"post_delete","team":{"name":"docs"},"post":{"number":3,"name":"a","wip":true}}`, webhook.KindPostDelete},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			p, errs := webhook.ValidatePayload(decode(t, tt.body))
			require.Empty(t, errs)
			assert.Equal(t, tt.want, p.Kind())
			assert.Equal(t, 3, p.PostNumber())
		})
	}

	p, _ := webhook.ValidatePayload(decode(t, tests[0].body))
	assert.Equal(t, "https://docs.esa.io/posts/3/revisions/2", p.(*webhook.PostUpdate).Post.DiffURL)
	p, _ = webhook.ValidatePayload(decode(t, tests[2].body))
	assert.True(t, p.(*webhook.PostDelete).Post.WIP)
}

func TestValidatePayloadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"array", `[1,2]`, "The payload is not an type object."},
		{"string", `"post_create"`, "The payload is not an type object."},
		{"null", `null`, "The payload is not an type object."},
		{"kind missing", `{"team":{"name":"docs"}}`, "The `kind` is not type string."},
		{"kind number", `{"kind":1}`, "The `kind` is not type string."},
		{"kind unknown", `{"kind":"post_star"}`, "The `kind` value \"post_star\" is not supported."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, errs := webhook.ValidatePayload(decode(t, tt.body))
			assert.Nil(t, p)
			assert.Equal(t, []string{tt.want}, errs)
		})
	}
}

func TestValidatePayloadSchema(t *testing.T) {
	tests := []struct {
		name string
		body string
		at   string
	}{
		{"post number missing", `{"kind":"post_create","team":{"name":"docs"},"post":{"name":"a"}}`, "/post"},
		{"post number not integer", `{"kind":"post_create","team":{"name":"docs"},"post":{"number":"42"}}`, "/post/number"},
		{"team name missing", `{"kind":"post_update","team":{},"post":{"number":1}}`, "/team"},
		{"post missing", `{"kind":"post_delete","team":{"name":"docs"}}`, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, errs := webhook.ValidatePayload(decode(t, tt.body))
			assert.Nil(t, p)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs[0], "payload is invalid at "+tt.at)
		})
	}
}
