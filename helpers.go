package esasync

import (
	"net/url"
	"path"
	"strings"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// normalizeTag is the form tags are compared and listed in.
func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func postLink(slug string) string {
	return "/posts/" + url.PathEscape(slug)
}
