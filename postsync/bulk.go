package postsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eringen/esasync/esa"
)

// BulkOptions configures SyncAll. The zero value continues past failed posts
// and never deploys.
type BulkOptions struct {
	// StopOnError ends the run at the first post that fails to sync.
	StopOnError bool
	// DeployEachPost lets every SyncPost call deploy on its own.
	DeployEachPost bool
	// DeployAfter deploys once at the end of the run when at least one post
	// was created, updated or deleted. Ignored with DeployEachPost.
	DeployAfter bool
	// PreserveCreatedAt dates new target posts with the esa creation time
	// instead of the time of the sync.
	PreserveCreatedAt bool
	// PerPage is the esa page size (default esa.DefaultPerPage).
	PerPage int
}

// PostFailure records a post that could not be synced.
type PostFailure struct {
	Number int
	Name   string
	Err    error
}

// BulkReport summarizes a SyncAll run.
type BulkReport struct {
	Results  []Result
	Failures []PostFailure
	Deployed bool
}

// Attempted returns the number of posts SyncAll tried to sync.
func (r *BulkReport) Attempted() int {
	return len(r.Results) + len(r.Failures)
}

// Count returns how many posts ended with action a.
func (r *BulkReport) Count(a Action) int {
	n := 0
	for _, res := range r.Results {
		if res.Action == a {
			n++
		}
	}
	return n
}

func (r *BulkReport) changed() bool {
	return r.Count(ActionCreated)+r.Count(ActionUpdated)+r.Count(ActionDeleted) > 0
}

// BulkError is returned by SyncAll when one or more posts failed.
type BulkError struct {
	Failures  []PostFailure
	Attempted int
}

func (e *BulkError) Error() string {
	msg := fmt.Sprintf("%d of %d posts failed to sync", len(e.Failures), e.Attempted)
	for _, f := range e.Failures {
		msg += fmt.Sprintf("; #%d: %v", f.Number, f.Err)
	}
	return msg
}

func (e *BulkError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// SyncAll syncs every esa post of the team, in ascending number order.
//
// A post that fails to sync is logged and recorded in the report; the run goes
// on with the next post unless StopOnError is set, and a *BulkError listing
// every failure is returned at the end. Failing to list posts ends the run
// immediately with that error.
func (s *Syncer) SyncAll(ctx context.Context, opts BulkOptions) (*BulkReport, error) {
	if s.Source == nil {
		return nil, ErrNoSource
	}
	log := s.Logger
	if log == nil {
		log = discardLogger()
	}
	report := &BulkReport{}

	params := esa.ListParams{PerPage: opts.PerPage, Sort: "number", Order: "asc"}
	for post, err := range esa.AllPosts(ctx, s.Source, params) {
		if err != nil {
			return report, fmt.Errorf("failed to list esa posts: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		scoped := withScope(log, fmt.Sprintf("#%d %s", post.Number, post.Name))
		syncOpts := []Option{WithPost(&post), WithLogger(scoped)}
		if !opts.DeployEachPost {
			syncOpts = append(syncOpts, WithoutDeploy())
		}
		if opts.PreserveCreatedAt {
			createdAt := post.CreatedAt
			syncOpts = append(syncOpts, WithClock(func() time.Time { return createdAt }))
		}

		res, err := s.SyncPost(ctx, post.Number, syncOpts...)
		if err != nil {
			scoped.Errorf("sync failed: %v", err)
			report.Failures = append(report.Failures, PostFailure{Number: post.Number, Name: post.Name, Err: err})
			if opts.StopOnError || errors.Is(err, context.Canceled) {
				return report, &BulkError{Failures: report.Failures, Attempted: report.Attempted()}
			}
			continue
		}
		scoped.Infof("%s (%s)", res.Action, res.Publication)
		report.Results = append(report.Results, res)
	}

	if opts.DeployAfter && !opts.DeployEachPost && report.changed() {
		log.Infof("triggering deploy after %d posts", report.Attempted())
		if err := s.Target.Deploy(ctx); err != nil {
			return report, fmt.Errorf("failed to deploy: %w", err)
		}
		report.Deployed = true
	}
	if len(report.Failures) > 0 {
		return report, &BulkError{Failures: report.Failures, Attempted: report.Attempted()}
	}
	return report, nil
}
