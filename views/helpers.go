package views

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// PathEscape wraps url.PathEscape for use in links.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// StatusClass returns the CSS class of a publication badge.
func StatusClass(published bool) string {
	if published {
		return "badge badge-published"
	}
	return "badge badge-draft"
}

// StatusLabel names the publication state of a post.
func StatusLabel(published bool) string {
	if published {
		return "published"
	}
	return "draft"
}

// page is a small writer used by the hand-written components: it escapes
// every interpolated value and remembers the first write error.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

// text writes format with every argument HTML-escaped. Arguments reach
// format as strings, so it may only use %s verbs.
func (p *page) text(format string, args ...any) {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = templ.EscapeString(fmt.Sprint(a))
	}
	p.raw(fmt.Sprintf(format, escaped...))
}

func component(fn func(p *page)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		fn(p)
		return p.err
	})
}

const styles = `body{font-family:system-ui,sans-serif;margin:2rem auto;max-width:60rem;color:#1c1917}
table{border-collapse:collapse;width:100%}td,th{border-bottom:1px solid #e7e5e4;padding:.4rem;text-align:left}
.badge{font-size:.75rem;padding:.1rem .4rem;border-radius:.25rem}.badge-published{background:#dcfce7}.badge-draft{background:#f5f5f4}
.msg{background:#fef9c3;padding:.5rem}form.inline{display:inline}`

func layout(p *page, title string, body func()) {
	p.raw("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\">")
	p.text("<title>%s</title>", title)
	p.raw("<style>" + styles + "</style></head><body>")
	body()
	p.raw("</body></html>")
}

func csrfField(p *page, token string) {
	p.text(`<input type="hidden" name="_csrf" value="%s">`, token)
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " · ")
}
