package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/gommon/log"
)

// Request is a transport-neutral inbound webhook request.
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// Response is what the router or a handler answers with.
type Response struct {
	StatusCode int
	Body       string
}

// OK is the response of a handled event.
var OK = Response{StatusCode: http.StatusOK, Body: "OK"}

// Handlers receive validated payloads. A nil handler means the kind is
// acknowledged and ignored.
type Handlers struct {
	OnPostCreate  func(context.Context, *PostCreate) Response
	OnPostUpdate  func(context.Context, *PostUpdate) Response
	OnPostArchive func(context.Context, *PostArchive) Response
	OnPostDelete  func(context.Context, *PostDelete) Response
}

// Logger is the subset of echo.Logger the router writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type RouterOption func(*Router)

// WithLogger sets where rejected requests are logged.
func WithLogger(l Logger) RouterOption {
	return func(r *Router) {
		r.log = l
	}
}

// Router authenticates, validates and dispatches esa webhook requests.
type Router struct {
	secret   string
	handlers Handlers
	log      Logger
}

func NewRouter(secret string, h Handlers, opts ...RouterOption) *Router {
	r := &Router{secret: secret, handlers: h}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		l := log.New("webhook")
		l.SetLevel(log.OFF)
		r.log = l
	}
	return r
}

// Handle runs req through the gates in order: method, body, signature, JSON,
// payload. The first failing gate answers the request.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	if req.Method != http.MethodPost {
		return r.reject(http.StatusMethodNotAllowed, "This endpoint only supports POST method.", nil)
	}
	if len(req.Body) == 0 {
		return r.reject(http.StatusBadRequest, "Body must be provided.", nil)
	}
	if err := VerifySignature(r.secret, req.Header, req.Body); err != nil {
		return r.reject(http.StatusBadRequest, "X-Esa-Signature didn't match.", err)
	}

	dec := json.NewDecoder(bytes.NewReader(req.Body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return r.reject(http.StatusBadRequest, "Invalid JSON body.", err)
	}
	if dec.More() {
		return r.reject(http.StatusBadRequest, "Invalid JSON body.", errors.New("trailing data after JSON value"))
	}

	payload, errs := ValidatePayload(raw)
	if len(errs) > 0 {
		return r.reject(http.StatusBadRequest, strings.Join(errs, " "), nil)
	}
	r.log.Infof("> %s #%d (team %s)", payload.Kind(), payload.PostNumber(), payload.TeamName())

	switch p := payload.(type) {
	case *PostCreate:
		if r.handlers.OnPostCreate != nil {
			return r.handlers.OnPostCreate(ctx, p)
		}
	case *PostUpdate:
		if r.handlers.OnPostUpdate != nil {
			return r.handlers.OnPostUpdate(ctx, p)
		}
	case *PostArchive:
		if r.handlers.OnPostArchive != nil {
			return r.handlers.OnPostArchive(ctx, p)
		}
	case *PostDelete:
		if r.handlers.OnPostDelete != nil {
			return r.handlers.OnPostDelete(ctx, p)
		}
	}
	return OK
}

func (r *Router) reject(code int, msg string, cause error) Response {
	r.log.Infof("< %d: %s", code, msg)
	if cause != nil {
		r.log.Errorf("%v", cause)
	}
	return Response{StatusCode: code, Body: msg}
}

// SyncHandlers routes every kind to sync. A nil error answers 200 "OK", any
// other a 500 carrying the error message.
func SyncHandlers(sync func(context.Context, Payload) error) Handlers {
	run := func(ctx context.Context, p Payload) Response {
		if err := sync(ctx, p); err != nil {
			return Response{
				StatusCode: http.StatusInternalServerError,
				Body:       "Failed to sync post: " + err.Error(),
			}
		}
		return OK
	}
	return Handlers{
		OnPostCreate:  func(ctx context.Context, p *PostCreate) Response { return run(ctx, p) },
		OnPostUpdate:  func(ctx context.Context, p *PostUpdate) Response { return run(ctx, p) },
		OnPostArchive: func(ctx context.Context, p *PostArchive) Response { return run(ctx, p) },
		OnPostDelete:  func(ctx context.Context, p *PostDelete) Response { return run(ctx, p) },
	}
}
