package postsync

import "regexp"

var authorTagPattern = regexp.MustCompile(`^@([a-zA-Z0-9_-]+)$`)

// ExtractAuthor returns the esa username a post should be attributed to and
// the tags to write downstream. A tag of the form "@username" overrides the
// creator; when several are present the last one wins. Every such tag is
// dropped from the returned tags, the others keep their order.
func ExtractAuthor(tags []string, creator string) (string, []string) {
	username := creator
	rest := make([]string, 0, len(tags))
	for _, tag := range tags {
		if m := authorTagPattern.FindStringSubmatch(tag); m != nil {
			username = m[1]
			continue
		}
		rest = append(rest, tag)
	}
	return username, rest
}
