package postsync

import (
	"strings"

	"github.com/eringen/esasync/cms"
	"github.com/eringen/esasync/esa"
)

// wipTitlePrefix marks a draft by title, independently of the wip flag.
const wipTitlePrefix = "WIP:"

// DecidePublish tells whether the mirrored post should be public. Any one of
// the returned reasons is enough to keep it unpublished.
func DecidePublish(post *esa.Post, author cms.Author) (bool, []string) {
	var reasons []string
	if post.WIP {
		reasons = append(reasons, "the esa post is wip")
	}
	if strings.HasPrefix(post.Name, wipTitlePrefix) {
		reasons = append(reasons, "the title starts with "+wipTitlePrefix)
	}
	if author.Kind == cms.AuthorUnknown {
		reasons = append(reasons, "the author is not registered in the target CMS")
	}
	return len(reasons) == 0, reasons
}
