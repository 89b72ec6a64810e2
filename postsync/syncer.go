// Package postsync reconciles esa posts into a target CMS.
//
// SyncPost looks at one esa post and the mirror of it downstream, then
// creates, updates or deletes the mirror, flips its publication state when
// needed and triggers a deploy. It reads both systems afresh on every call and
// only writes what differs, so it is safe to run again with the same input.
// SyncAll does the same for every post of the team.
package postsync

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/esasync/cms"
	"github.com/eringen/esasync/esa"
)

// Syncer holds the collaborators shared by every sync call. It has no mutable
// state, so one Syncer may serve concurrent calls for different posts.
type Syncer struct {
	Source esa.Source
	Target cms.Target
	// PrivateCategory matches categories that must not be mirrored. May be nil.
	PrivateCategory *regexp.Regexp
	Team            string
	Logger          Logger
}

// Action is what happened to the target post.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	ActionSkipped Action = "skipped"
)

// Publication is the change made to the target post's publication state.
type Publication string

const (
	PublicationUnchanged Publication = "unchanged"
	PublicationPublished Publication = "published"
	PublicationRetracted Publication = "unpublished"
)

// Result describes the outcome of one SyncPost call.
type Result struct {
	Number      int
	SourceURL   string
	TargetID    string
	Action      Action
	Publication Publication
	Deployed    bool
}

// SyncPost brings the target mirror of esa post number in line with esa.
func (s *Syncer) SyncPost(ctx context.Context, number int, opts ...Option) (Result, error) {
	o := syncOptions{now: time.Now, logger: s.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = discardLogger()
	}
	log := o.logger

	sourceURL := esa.PostURL(s.Team, number)
	res := Result{Number: number, SourceURL: sourceURL, Action: ActionSkipped, Publication: PublicationUnchanged}

	log.Debugf("finding the target post of %s", sourceURL)
	targetID, found, err := s.Target.GetPostIDBySourceURL(ctx, sourceURL)
	if err != nil {
		return res, fmt.Errorf("failed to find target post of %s: %w", sourceURL, err)
	}
	if found {
		log.Debugf("target post found: %s", targetID)
		res.TargetID = targetID
	} else {
		log.Debugf("target post not created yet")
	}

	post := o.post
	if post == nil {
		log.Debugf("fetching esa post %d of team %s", number, s.Team)
		post, err = s.Source.GetPost(ctx, number)
		if err != nil {
			return res, fmt.Errorf("failed to fetch esa post %d: %w", number, err)
		}
	}

	if reason := s.exclusionReason(post); reason != "" {
		log.Infof("esa post %d is not mirrored: %s", number, reason)
		if !found {
			log.Debugf("target post was not created, nothing to delete")
			return res, nil
		}
		log.Infof("deleting target post %s", targetID)
		if err := s.Target.DeletePost(ctx, targetID); err != nil {
			return res, fmt.Errorf("failed to delete target post %s: %w", targetID, err)
		}
		res.Action = ActionDeleted
		return res, nil
	}

	username, tags := ExtractAuthor(post.Tags, post.CreatedBy.ScreenName)
	log.Debugf("finding the author for %s", username)
	author, err := s.Target.GetAuthorIDByUsername(ctx, username)
	if err != nil {
		return res, fmt.Errorf("failed to resolve author %s: %w", username, err)
	}
	log.Debugf("assigned author: %s (%s)", author.ID, author.Kind)

	category := *post.Category
	if found {
		log.Infof("updating target post %s", targetID)
		err := s.Target.UpdatePost(ctx, targetID, cms.PostUpdate{
			Title:      post.Name,
			Author:     author.ID,
			Tags:       tags,
			Category:   category,
			Body:       post.BodyHTML,
			BodySource: post.BodyMD,
		})
		if err != nil {
			return res, fmt.Errorf("failed to update target post %s: %w", targetID, err)
		}
		res.Action = ActionUpdated
	} else {
		newPost := cms.NewPost{
			Slug:        strconv.Itoa(number),
			Title:       post.Name,
			Author:      author.ID,
			Date:        o.now(),
			Tags:        tags,
			Category:    category,
			Body:        post.BodyHTML,
			BodySource:  post.BodyMD,
			SourceURL:   sourceURL,
			SEO:         cms.SEO{},
			PathAliases: []string{},
		}
		for _, fn := range o.overrides {
			fn(&newPost)
		}
		log.Infof("creating target post for %s", sourceURL)
		targetID, err = s.Target.CreatePost(ctx, newPost)
		if err != nil {
			return res, fmt.Errorf("failed to create target post: %w", err)
		}
		log.Infof("target post created: %s", targetID)
		res.TargetID = targetID
		res.Action = ActionCreated
	}

	publishes, reasons := DecidePublish(post, author)
	if !publishes {
		log.Infof("keeping target post %s unpublished: %s", targetID, strings.Join(reasons, "; "))
	}
	published, err := s.Target.IsPostPublished(ctx, targetID)
	if err != nil {
		return res, fmt.Errorf("failed to read publication state of %s: %w", targetID, err)
	}
	switch {
	case publishes && !published:
		log.Infof("publishing target post %s", targetID)
		if err := s.Target.PublishPost(ctx, targetID); err != nil {
			return res, fmt.Errorf("failed to publish target post %s: %w", targetID, err)
		}
		res.Publication = PublicationPublished
	case !publishes && published:
		log.Infof("unpublishing target post %s", targetID)
		if err := s.Target.UnpublishPost(ctx, targetID); err != nil {
			return res, fmt.Errorf("failed to unpublish target post %s: %w", targetID, err)
		}
		res.Publication = PublicationRetracted
	}

	if o.skipDeploy {
		return res, nil
	}
	log.Debugf("triggering deploy")
	if err := s.Target.Deploy(ctx); err != nil {
		return res, fmt.Errorf("failed to deploy: %w", err)
	}
	res.Deployed = true
	return res, nil
}

// exclusionReason returns why post must not have a mirror, or "" when it must.
func (s *Syncer) exclusionReason(post *esa.Post) string {
	switch {
	case post == nil:
		return "deleted in esa"
	case post.Category == nil || *post.Category == "":
		return "in the root category"
	case s.PrivateCategory != nil && s.PrivateCategory.MatchString(*post.Category):
		return fmt.Sprintf("category %q is private", *post.Category)
	}
	return ""
}

// ErrNoSource is returned by SyncAll when the Syncer has no Source.
var ErrNoSource = errors.New("postsync: no esa source configured")
