package postsync

import (
	"time"

	"github.com/eringen/esasync/cms"
	"github.com/eringen/esasync/esa"
)

// Option adjusts a single SyncPost call.
type Option func(*syncOptions)

type syncOptions struct {
	post       *esa.Post
	now        func() time.Time
	skipDeploy bool
	logger     Logger
	overrides  []func(*cms.NewPost)
}

// WithPost supplies the upstream post so SyncPost does not fetch it again.
func WithPost(post *esa.Post) Option {
	return func(o *syncOptions) {
		o.post = post
	}
}

// WithClock sets the provider of the creation date of new target posts.
// It defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *syncOptions) {
		o.now = now
	}
}

// WithoutDeploy skips the deploy that normally follows a successful sync.
func WithoutDeploy() Option {
	return func(o *syncOptions) {
		o.skipDeploy = true
	}
}

// WithLogger overrides the Syncer's logger for one call.
func WithLogger(l Logger) Option {
	return func(o *syncOptions) {
		o.logger = l
	}
}

// WithCreateOverrides edits the fields of a post about to be created, after
// the engine has filled them in. It has no effect on updates.
func WithCreateOverrides(fn func(*cms.NewPost)) Option {
	return func(o *syncOptions) {
		o.overrides = append(o.overrides, fn)
	}
}
