package esasync

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/esasync/views"
	"github.com/eringen/esasync/webhook"
)

func (a *App) setupRoutes() {
	e := a.Echo

	e.Any("/esa/webhook", a.handleWebhook,
		middleware.BodyLimit("1M"),
		a.webhookLimiter.Middleware("Too many webhook deliveries. Try again later."),
	)
	e.GET("/healthz", a.handleHealth)

	if a.Store != nil {
		e.GET("/api/posts", a.handleAPIPosts)
		e.GET("/api/posts/:slug", a.handleAPIPost)
		e.GET("/api/tags", a.handleAPITags)
		e.GET("/feed.xml", a.handleFeed)
		e.GET("/sitemap.xml", a.handleSitemap)
	}

	if a.Config.AdminEnabled() {
		e.GET("/admin", a.handleAdmin)
		e.POST("/admin/login", a.handleAdminLogin)
		e.POST("/admin/logout", handleAdminLogout)
		e.POST("/admin/sync", a.handleAdminSync)
		e.POST("/admin/sync-all", a.handleAdminSyncAll)
		e.POST("/admin/authors", a.handleAdminAddAuthor)
	}
}

// handleWebhook adapts the echo request to the webhook router. The router
// picks the status and body of every answer.
func (a *App) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	res := a.Router.Handle(c.Request().Context(), webhook.Request{
		Method: c.Request().Method,
		Header: c.Request().Header,
		Body:   body,
	})
	return c.String(res.StatusCode, res.Body)
}

func (a *App) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"team":   a.Config.EsaTeam,
		"target": a.Config.Target,
	})
}

func (a *App) handleAPIPosts(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), c.QueryParam("tag"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handleAPIPost(c echo.Context) error {
	post, err := a.Cache.GetPost(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleAPITags(c echo.Context) error {
	tags, err := a.Cache.ListTags(c.Request().Context())
	if err != nil {
		return err
	}
	if tags == nil {
		tags = []string{}
	}
	return c.JSON(http.StatusOK, tags)
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
	}
	if !isAdminPath(c) {
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}
	switch {
	case code == http.StatusNotFound:
		_ = render(c, code, views.NotFound())
	case code >= 500:
		_ = render(c, code, views.ServerError())
	default:
		a.Echo.DefaultHTTPErrorHandler(err, c)
	}
}
