package esasync

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/esasync/postsync"
	"github.com/eringen/esasync/views"
)

func adminRedirect(c echo.Context, msg string) error {
	target := "/admin"
	if msg != "" {
		target += "?msg=" + url.QueryEscape(msg)
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return render(c, http.StatusOK, views.AdminLogin(a.Config.SiteName, false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return adminRedirect(c, "")
	}
	return render(c, http.StatusUnauthorized, views.AdminLogin(a.Config.SiteName, true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return adminRedirect(c, "")
}

func (a *App) handleAdminSync(c echo.Context) error {
	if !IsAdmin(c) {
		return adminRedirect(c, "")
	}
	number, err := strconv.Atoi(strings.TrimSpace(c.FormValue("number")))
	if err != nil || number < 1 {
		return adminRedirect(c, "Post number must be a positive integer.")
	}
	res, err := a.SyncPost(c.Request().Context(), number)
	if err != nil {
		c.Logger().Errorf("admin sync of esa post %d: %v", number, err)
		return adminRedirect(c, fmt.Sprintf("Failed to sync post #%d: %v", number, err))
	}
	return adminRedirect(c, fmt.Sprintf("Post #%d: %s, publication %s.", number, res.Action, res.Publication))
}

// handleAdminSyncAll starts a bulk sync in the background. Only one runs at a
// time. The run stops when the App is closed.
func (a *App) handleAdminSyncAll(c echo.Context) error {
	if !IsAdmin(c) {
		return adminRedirect(c, "")
	}
	if !a.bulkRunning.CompareAndSwap(false, true) {
		return adminRedirect(c, "A full sync is already running.")
	}
	started := a.goBackground(c.Request().Context(), func(ctx context.Context) {
		defer a.bulkRunning.Store(false)
		report, err := a.SyncAll(ctx, postsync.BulkOptions{DeployAfter: true})
		if err != nil {
			a.Logger.Errorf("full sync: %v", err)
		}
		if report != nil {
			a.Logger.Infof("full sync: %d posts, %d created, %d updated, %d deleted, %d failed",
				report.Attempted(),
				report.Count(postsync.ActionCreated),
				report.Count(postsync.ActionUpdated),
				report.Count(postsync.ActionDeleted),
				len(report.Failures))
		}
	})
	if !started {
		return adminRedirect(c, "Full sync finished.")
	}
	return adminRedirect(c, "Full sync started.")
}

func (a *App) handleAdminAddAuthor(c echo.Context) error {
	if !IsAdmin(c) {
		return adminRedirect(c, "")
	}
	if a.Store == nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	author, err := a.Store.UpsertAuthor(c.Request().Context(), c.FormValue("name"), c.FormValue("esa_username"))
	if err != nil {
		return adminRedirect(c, "Failed to save author: "+err.Error())
	}
	return adminRedirect(c, fmt.Sprintf("Saved author %s (@%s).", author.Name, author.EsaUsername))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	d := views.Dashboard{
		SiteName:    a.Config.SiteName,
		Team:        a.Config.EsaTeam,
		Target:      a.Config.Target,
		Message:     msg,
		CSRF:        CsrfToken(c),
		BulkRunning: a.bulkRunning.Load(),
	}
	if a.Store != nil {
		ctx := c.Request().Context()
		posts, err := a.Store.ListAllPosts(ctx)
		if err != nil {
			return err
		}
		authors, err := a.Store.ListAuthors(ctx)
		if err != nil {
			return err
		}
		d.Posts = make([]views.PostRow, 0, len(posts))
		for _, p := range posts {
			d.Posts = append(d.Posts, views.PostRow{
				Slug:      p.Slug,
				Title:     p.Title,
				Author:    p.AuthorName,
				Category:  p.Category,
				Date:      p.Date,
				SourceURL: p.SourceURL,
				Published: p.Published,
				Link:      p.Link,
			})
		}
		d.Authors = make([]views.AuthorRow, 0, len(authors))
		for _, au := range authors {
			d.Authors = append(d.Authors, views.AuthorRow{Name: au.Name, EsaUsername: au.EsaUsername})
		}
	}
	return render(c, http.StatusOK, views.AdminDashboard(d))
}
