// Package esasync mirrors esa posts into a headless CMS. It serves the esa
// webhook endpoint that triggers a sync per post, plus an admin console, and
// when the sqlite target is used, a read API and feeds over the mirror.
//
// The sync logic lives in package postsync; this package wires it to
// configuration, the upstream and target adapters, and the HTTP server.
package esasync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/eringen/esasync/cms"
	cmsmemory "github.com/eringen/esasync/cms/memory"
	"github.com/eringen/esasync/datocms"
	"github.com/eringen/esasync/esa"
	"github.com/eringen/esasync/postsync"
	"github.com/eringen/esasync/webhook"
)

// App is the sync service. It owns the echo server and the adapters it was
// built with.
type App struct {
	Config Config
	Echo   *echo.Echo
	Logger *log.Logger
	Syncer *postsync.Syncer
	Router *webhook.Router
	// Store and Cache are set only for the sqlite target.
	Store *Store
	Cache *PostCache

	source         esa.Source
	target         cms.Target
	loginLimiter   *Limiter
	webhookLimiter *Limiter
	customRoutes   []func(*App)
	bulkRunning    atomic.Bool
	foreground     bool

	// ctx outlives requests; Close cancels it and waits for bg.
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
}

// Option configures additional App behavior.
type Option func(*App)

// WithSource replaces the esa API client, e.g. with an esa/memory Source.
func WithSource(src esa.Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// WithTarget replaces the target selected by Config.Target.
func WithTarget(t cms.Target) Option {
	return func(a *App) {
		a.target = t
	}
}

// WithLogger sets the logger used by the server and the sync engine.
func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithForegroundJobs makes admin actions that normally run in the background,
// such as a full sync, finish before the response is written. Use it where
// the process is frozen between requests, as on AWS Lambda.
func WithForegroundJobs() Option {
	return func(a *App) {
		a.foreground = true
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// New validates cfg, builds the adapters it selects and wires the routes.
// The returned App is ready to serve through a.Echo; Start listens on
// cfg.Addr.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Echo: echo.New()}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = log.New("esasync")
		a.Logger.SetLevel(log.INFO)
	}
	a.Echo.Logger = a.Logger
	a.Echo.HideBanner = true

	if a.source == nil {
		a.source = esa.NewClient(esa.ClientOptions{
			Team:      cfg.EsaTeam,
			Token:     cfg.EsaAPIToken,
			BaseURL:   cfg.EsaBaseURL,
			UserAgent: "esasync",
		})
	}
	if a.target == nil {
		target, err := a.newTarget()
		if err != nil {
			a.cancel()
			return nil, err
		}
		a.target = target
	}
	if store, ok := a.target.(*Store); ok {
		a.Store = store
		a.Cache = NewPostCache(store, cfg.PostCacheTTL)
		store.OnDeploy(func(context.Context) error {
			if a.Cache.InvalidateIfChanged() {
				a.Logger.Debugf("deploy: read cache invalidated")
			}
			return nil
		})
	}

	a.Syncer = &postsync.Syncer{
		Source:          a.source,
		Target:          a.target,
		PrivateCategory: cfg.PrivateCategory(),
		Team:            cfg.EsaTeam,
		Logger:          a.Logger,
	}
	a.Router = webhook.NewRouter(cfg.WebhookSecret, webhook.SyncHandlers(a.syncFromWebhook), webhook.WithLogger(a.Logger))
	a.loginLimiter = NewLimiter(5, time.Minute)
	a.webhookLimiter = NewLimiter(cfg.WebhookRateLimit, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

func (a *App) newTarget() (cms.Target, error) {
	switch a.Config.Target {
	case TargetSQLite:
		store, err := NewStore(a.Config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("esasync: init store: %w", err)
		}
		return store, nil
	case TargetMemory:
		return cmsmemory.NewTarget(), nil
	default:
		return datocms.New(datocms.Options{
			Token:          a.Config.DatoCMSToken,
			PostItemTypeID: a.Config.DatoCMSPostItemTypeID,
			BuildTriggerID: a.Config.DatoCMSBuildTriggerID,
		}), nil
	}
}

// Target returns the target CMS the App syncs into.
func (a *App) Target() cms.Target {
	return a.target
}

// Start serves HTTP on Config.Addr until ctx is done, then shuts down
// gracefully.
func (a *App) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- a.Echo.Start(a.Config.Addr)
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Echo.Shutdown(shutdownCtx)
}

// Close cancels background work started by the admin console, waits for it to
// return, then releases the limiters and the store.
func (a *App) Close() error {
	a.cancel()
	a.bg.Wait()
	a.loginLimiter.Stop()
	a.webhookLimiter.Stop()
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// syncFromWebhook is the sync callback behind every webhook kind.
func (a *App) syncFromWebhook(ctx context.Context, p webhook.Payload) error {
	if p.TeamName() != a.Config.EsaTeam {
		a.Logger.Warnf("ignoring %s of esa post %d: team %q is not %q", p.Kind(), p.PostNumber(), p.TeamName(), a.Config.EsaTeam)
		return nil
	}
	res, err := a.SyncPost(ctx, p.PostNumber())
	if err != nil {
		return err
	}
	a.Logger.Infof("esa post %d: %s, publication %s, deployed %t", res.Number, res.Action, res.Publication, res.Deployed)
	return nil
}

func (a *App) syncOptions() []postsync.Option {
	if a.Config.SkipDeploy {
		return []postsync.Option{postsync.WithoutDeploy()}
	}
	return nil
}

// SyncPost syncs one esa post, honoring Config.SkipDeploy.
func (a *App) SyncPost(ctx context.Context, number int, opts ...postsync.Option) (postsync.Result, error) {
	return a.Syncer.SyncPost(ctx, number, append(a.syncOptions(), opts...)...)
}

// goBackground runs fn on the App context and reports whether it was left
// running. Close waits for it. With WithForegroundJobs fn runs before
// goBackground returns, on reqCtx.
func (a *App) goBackground(reqCtx context.Context, fn func(ctx context.Context)) bool {
	a.bg.Add(1)
	if a.foreground {
		defer a.bg.Done()
		fn(reqCtx)
		return false
	}
	go func() {
		defer a.bg.Done()
		fn(a.ctx)
	}()
	return true
}

// SyncAll runs a bulk sync of every esa post with the App's deploy setting.
func (a *App) SyncAll(ctx context.Context, opts postsync.BulkOptions) (*postsync.BulkReport, error) {
	if a.Config.SkipDeploy {
		opts.DeployEachPost = false
		opts.DeployAfter = false
	}
	return a.Syncer.SyncAll(ctx, opts)
}
