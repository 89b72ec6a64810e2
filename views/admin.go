// Package views renders the admin console of the sync service.
package views

import (
	"strconv"

	"github.com/a-h/templ"
)

// AdminLogin is the password form. showError flags a rejected attempt.
func AdminLogin(siteName string, showError bool, csrf string) templ.Component {
	return component(func(p *page) {
		layout(p, siteName+" admin", func() {
			p.text("<h1>%s admin</h1>", siteName)
			if showError {
				p.raw(`<p class="msg">Wrong password.</p>`)
			}
			p.raw(`<form method="post" action="/admin/login">`)
			csrfField(p, csrf)
			p.raw(`<label>Password <input type="password" name="password" autofocus required></label> `)
			p.raw(`<button type="submit">Sign in</button></form>`)
		})
	})
}

// AdminDashboard lists the mirror and offers the resync actions.
func AdminDashboard(d Dashboard) templ.Component {
	return component(func(p *page) {
		layout(p, d.SiteName+" admin", func() {
			p.text("<h1>%s admin</h1>", d.SiteName)
			p.text("<p>%s</p>", joinNonEmpty("esa team "+d.Team, "target "+d.Target))
			p.raw(`<form class="inline" method="post" action="/admin/logout">`)
			csrfField(p, d.CSRF)
			p.raw(`<button type="submit">Sign out</button></form>`)
			if d.Message != "" {
				p.text(`<p class="msg">%s</p>`, d.Message)
			}

			p.raw(`<h2>Resync</h2><form class="inline" method="post" action="/admin/sync">`)
			csrfField(p, d.CSRF)
			p.raw(`<label>esa post number <input type="number" name="number" min="1" required></label> `)
			p.raw(`<button type="submit">Sync post</button></form> `)
			p.raw(`<form class="inline" method="post" action="/admin/sync-all">`)
			csrfField(p, d.CSRF)
			if d.BulkRunning {
				p.raw(`<button type="submit" disabled>Sync all posts (running)</button></form>`)
			} else {
				p.raw(`<button type="submit">Sync all posts</button></form>`)
			}

			if d.Posts != nil {
				p.text("<h2>Mirrored posts (%s)</h2>", strconv.Itoa(len(d.Posts)))
				p.raw("<table><thead><tr><th>Title</th><th>Author</th><th>Category</th><th>Date</th><th>Status</th><th>Mirror</th></tr></thead><tbody>")
				for _, post := range d.Posts {
					p.text(`<tr><td><a href="%s">%s</a></td>`, post.SourceURL, post.Title)
					p.text("<td>%s</td><td>%s</td><td>%s</td>", post.Author, post.Category, post.Date.Format("2006-01-02"))
					p.text(`<td><span class="%s">%s</span></td>`, StatusClass(post.Published), StatusLabel(post.Published))
					if post.Published {
						p.text(`<td><a href="/api/posts/%s">%s</a></td></tr>`, PathEscape(post.Slug), post.Link)
					} else {
						p.text("<td>%s</td></tr>", post.Link)
					}
				}
				p.raw("</tbody></table>")
			}

			if d.Authors != nil {
				p.raw("<h2>Authors</h2><ul>")
				for _, a := range d.Authors {
					if a.EsaUsername == "" {
						p.text("<li>%s (fallback)</li>", a.Name)
						continue
					}
					p.text("<li>%s (@%s)</li>", a.Name, a.EsaUsername)
				}
				p.raw(`</ul><form method="post" action="/admin/authors">`)
				csrfField(p, d.CSRF)
				p.raw(`<label>Name <input name="name" required></label> `)
				p.raw(`<label>esa username <input name="esa_username" required></label> `)
				p.raw(`<button type="submit">Add author</button></form>`)
			}
		})
	})
}

// NotFound is the 404 page.
func NotFound() templ.Component {
	return component(func(p *page) {
		layout(p, "Not found", func() {
			p.raw("<h1>Not found</h1><p>There is nothing here.</p>")
		})
	})
}

// ServerError is the 5xx page.
func ServerError() templ.Component {
	return component(func(p *page) {
		layout(p, "Server error", func() {
			p.raw("<h1>Something went wrong</h1><p>The error was logged.</p>")
		})
	})
}
