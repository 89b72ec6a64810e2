package postsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/esasync/cms"
	cmsmemory "github.com/eringen/esasync/cms/memory"
	"github.com/eringen/esasync/esa"
)

// failingTarget fails to create the mirror of one source URL.
type failingTarget struct {
	*cmsmemory.Target
	failURL string
}

func (t *failingTarget) CreatePost(ctx context.Context, post cms.NewPost) (string, error) {
	if post.SourceURL == t.failURL {
		return "", fmt.Errorf("rejected %s", post.SourceURL)
	}
	return t.Target.CreatePost(ctx, post)
}

func bulkPosts(n int) []esa.Post {
	posts := make([]esa.Post, 0, n)
	for i := 1; i <= n; i++ {
		p := testPost(i)
		p.Name = fmt.Sprintf("Post %d", i)
		posts = append(posts, p)
	}
	return posts
}

func TestSyncAllSyncsEveryPost(t *testing.T) {
	s, src, target := newTestSyncer(bulkPosts(5)...)

	report, err := s.SyncAll(context.Background(), BulkOptions{PerPage: 2, DeployAfter: true})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Attempted())
	assert.Equal(t, 5, report.Count(ActionCreated))
	assert.Empty(t, report.Failures)
	assert.True(t, report.Deployed)

	assert.Len(t, target.Posts(), 5)
	assert.Equal(t, 1, target.Deploys())
	assert.Equal(t, 0, src.Gets())
	assert.Equal(t, 3, src.Lists())

	for i, res := range report.Results {
		assert.Equal(t, i+1, res.Number)
		assert.False(t, res.Deployed)
	}
}

func TestSyncAllDeployEachPost(t *testing.T) {
	s, _, target := newTestSyncer(bulkPosts(3)...)

	report, err := s.SyncAll(context.Background(), BulkOptions{DeployEachPost: true, DeployAfter: true})
	require.NoError(t, err)
	assert.Equal(t, 3, target.Deploys())
	assert.False(t, report.Deployed)
}

func TestSyncAllNoDeployWithoutChanges(t *testing.T) {
	posts := bulkPosts(2)
	for i := range posts {
		posts[i].Category = category("Private/notes")
	}
	s, _, target := newTestSyncer(posts...)

	report, err := s.SyncAll(context.Background(), BulkOptions{DeployAfter: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(ActionSkipped))
	assert.False(t, report.Deployed)
	assert.Equal(t, 0, target.Deploys())
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	s, _, mem := newTestSyncer(bulkPosts(4)...)
	s.Target = &failingTarget{Target: mem, failURL: esa.PostURL(testTeam, 2)}

	report, err := s.SyncAll(context.Background(), BulkOptions{DeployAfter: true})
	require.Error(t, err)

	var bulkErr *BulkError
	require.ErrorAs(t, err, &bulkErr)
	assert.Equal(t, 4, bulkErr.Attempted)
	require.Len(t, bulkErr.Failures, 1)
	assert.Equal(t, 2, bulkErr.Failures[0].Number)
	assert.Equal(t, "Post 2", bulkErr.Failures[0].Name)
	assert.Contains(t, err.Error(), "1 of 4 posts failed to sync")

	assert.Equal(t, 3, report.Count(ActionCreated))
	assert.Len(t, mem.Posts(), 3)
	assert.True(t, report.Deployed)
}

func TestSyncAllStopOnError(t *testing.T) {
	s, _, mem := newTestSyncer(bulkPosts(4)...)
	s.Target = &failingTarget{Target: mem, failURL: esa.PostURL(testTeam, 2)}

	report, err := s.SyncAll(context.Background(), BulkOptions{StopOnError: true, DeployAfter: true})
	require.Error(t, err)
	assert.Equal(t, 2, report.Attempted())
	assert.Len(t, mem.Posts(), 1)
	assert.False(t, report.Deployed)
	assert.Equal(t, 0, mem.Deploys())
}

func TestSyncAllUnwrapsPostErrors(t *testing.T) {
	boom := errors.New("cms down")
	s, _, target := newTestSyncer(bulkPosts(2)...)
	target.FailOn("CreatePost", boom)

	_, err := s.SyncAll(context.Background(), BulkOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSyncAllStopsOnListingError(t *testing.T) {
	s, src, target := newTestSyncer(bulkPosts(5)...)
	src.ListErr = errors.New("esa unavailable")
	src.ListErrOnPage = 2

	report, err := s.SyncAll(context.Background(), BulkOptions{PerPage: 2, DeployAfter: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, src.ListErr)
	assert.Contains(t, err.Error(), "failed to list esa posts")

	var bulkErr *BulkError
	assert.False(t, errors.As(err, &bulkErr))
	assert.Equal(t, 2, report.Attempted())
	assert.Equal(t, 0, target.Deploys())
}

func TestSyncAllPreserveCreatedAt(t *testing.T) {
	s, _, target := newTestSyncer(bulkPosts(1)...)

	_, err := s.SyncAll(context.Background(), BulkOptions{PreserveCreatedAt: true})
	require.NoError(t, err)

	posts := target.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, testPost(1).CreatedAt, posts[0].Date)
}

func TestSyncAllCanceled(t *testing.T) {
	s, _, target := newTestSyncer(bulkPosts(3)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SyncAll(ctx, BulkOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, target.Posts())
}

func TestSyncAllWithoutSource(t *testing.T) {
	s := &Syncer{Target: cmsmemory.NewTarget()}
	_, err := s.SyncAll(context.Background(), BulkOptions{})
	assert.ErrorIs(t, err, ErrNoSource)
}
