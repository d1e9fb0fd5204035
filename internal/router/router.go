// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package router is the single entry point for commands and surface reports.
// Requests that arrive before the controller has loaded its snapshot are held
// back and replayed in arrival order.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/chatdj/internal/domain/playback/controller"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/domain/playback/queue"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/metrics"
	"github.com/ManuGH/chatdj/internal/playlist"
	"github.com/ManuGH/chatdj/internal/ratelimit"
	"github.com/ManuGH/chatdj/internal/telemetry"
	"github.com/ManuGH/chatdj/internal/validate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Controller is the part of the playback controller the router drives.
type Controller interface {
	AddLinks(ctx context.Context, addresses []string) (int, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Skip(ctx context.Context) error
	ItemEnded(ctx context.Context, address string) error
	Clear(ctx context.Context) error
	Remove(ctx context.Context, index int) error
	Move(ctx context.Context, from, to int) error
	ReportMetadata(ctx context.Context, address, title string, durationSeconds int) error
	SurfaceClosed(ctx context.Context, h model.Handle) error
	Import(ctx context.Context, items []model.QueueItem) (int, error)
	Export() []model.QueueItem
	Status() controller.Status
}

// Playlists stores named queue exports.
type Playlists interface {
	Save(name string, items []model.QueueItem) error
	Load(name string) ([]model.QueueItem, error)
}

// Options are optional collaborators.
type Options struct {
	Playlists Playlists
	Limiter   *ratelimit.Limiter
}

type pending struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// Router dispatches requests to the controller.
type Router struct {
	ctrl      Controller
	playlists Playlists
	limiter   *ratelimit.Limiter
	logger    zerolog.Logger
	tracer    trace.Tracer

	mu      sync.Mutex
	loaded  bool
	backlog []*pending
}

// New creates a router in the loading phase.
func New(ctrl Controller, opts Options) *Router {
	return &Router{
		ctrl:      ctrl,
		playlists: opts.Playlists,
		limiter:   opts.Limiter,
		logger:    xglog.WithComponent("router"),
		tracer:    telemetry.Tracer("chatdj/router"),
	}
}

// Dispatch handles req and returns its response. Before MarkLoaded the call
// blocks until the request has been replayed. The caller giving up does not
// withdraw a buffered request.
func (r *Router) Dispatch(ctx context.Context, req Request) Response {
	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return r.handle(ctx, req)
	}
	p := &pending{ctx: context.WithoutCancel(ctx), req: req, reply: make(chan Response, 1)}
	r.backlog = append(r.backlog, p)
	r.mu.Unlock()

	metrics.IncRouterBuffered()
	r.logger.Debug().
		Str(xglog.FieldEvent, "router.buffered").
		Str(xglog.FieldKind, string(req.Kind)).
		Msg("state still loading, request buffered")

	select {
	case resp := <-p.reply:
		return resp
	case <-ctx.Done():
		return fail(CodeUnavailable, "request accepted but caller went away: "+ctx.Err().Error())
	}
}

// MarkLoaded replays the backlog in order and switches to direct dispatch.
// Requests that arrive during the replay join the end of the backlog, so
// ordering across the boundary stays FIFO.
func (r *Router) MarkLoaded() {
	replayed := 0
	for {
		r.mu.Lock()
		batch := r.backlog
		r.backlog = nil
		if len(batch) == 0 {
			r.loaded = true
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()

		for _, p := range batch {
			p.reply <- r.handle(p.ctx, p.req)
			replayed++
		}
	}
	r.logger.Info().
		Str(xglog.FieldEvent, "router.loaded").
		Int("replayed", replayed).
		Msg("dispatching directly")
}

// Loaded reports whether MarkLoaded has completed.
func (r *Router) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

func (r *Router) handle(ctx context.Context, req Request) (resp Response) {
	kind := string(req.Kind)
	if !req.Kind.Known() {
		kind = "unknown"
	}

	ctx, span := r.tracer.Start(ctx, "router.dispatch", trace.WithAttributes(telemetry.CommandAttributes(kind)...))
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncRouterPanic(kind)
			r.logger.Error().
				Str(xglog.FieldEvent, "router.panic").
				Str(xglog.FieldKind, kind).
				Interface("panic", rec).
				Msg("handler panicked")
			resp = fail(CodeInternal, fmt.Sprintf("internal error: %v", rec))
		}
		if !resp.OK() {
			span.SetStatus(codes.Error, resp.Code)
		}
		span.End()
		metrics.RecordRouterRequest(kind, resp.Status, time.Since(start))
	}()

	resp = r.route(ctx, req)
	if !resp.OK() {
		r.logger.Debug().
			Str(xglog.FieldEvent, "router.rejected").
			Str(xglog.FieldKind, kind).
			Str("code", resp.Code).
			Str("error", resp.Error).
			Msg("request failed")
	}
	return resp
}

func (r *Router) route(ctx context.Context, req Request) Response {
	switch req.Kind {
	case KindAddLinks:
		return r.addLinks(ctx, req)
	case KindGetState:
		st := r.ctrl.Status()
		return Response{Status: StatusOK, State: &st}
	case KindStart:
		return result(r.ctrl.Start(ctx))
	case KindStop:
		return result(r.ctrl.Stop(ctx))
	case KindSkip:
		return result(r.ctrl.Skip(ctx))
	case KindItemEnded:
		if !r.limiter.Allow(ratelimit.ClassReports, req.Source) {
			return fail(CodeRateLimited, "too many surface reports")
		}
		return result(r.ctrl.ItemEnded(ctx, strings.TrimSpace(req.Address)))
	case KindClear:
		return result(r.ctrl.Clear(ctx))
	case KindRemove:
		return result(r.ctrl.Remove(ctx, req.Index))
	case KindMove:
		return result(r.ctrl.Move(ctx, req.From, req.To))
	case KindMetadataReport:
		return r.metadataReport(ctx, req)
	case KindSurfaceClosed:
		if req.Handle == "" {
			return fail(CodeInvalid, "handle: value cannot be empty")
		}
		return result(r.ctrl.SurfaceClosed(ctx, req.Handle))
	case KindImport:
		if req.Items == nil {
			return fail(CodeFormat, playlist.ErrFormat.Error())
		}
		added, err := r.ctrl.Import(ctx, req.Items)
		resp := result(err)
		resp.Added = added
		return resp
	case KindExport:
		items := r.ctrl.Export()
		if items == nil {
			items = []model.QueueItem{}
		}
		return Response{Status: StatusOK, Items: items}
	case KindSave:
		if r.playlists == nil {
			return fail(CodeUnavailable, "playlist storage not configured")
		}
		return result(r.playlists.Save(req.Name, r.ctrl.Export()))
	case KindLoad:
		if r.playlists == nil {
			return fail(CodeUnavailable, "playlist storage not configured")
		}
		items, err := r.playlists.Load(req.Name)
		if err != nil {
			return result(err)
		}
		added, err := r.ctrl.Import(ctx, items)
		resp := result(err)
		resp.Added = added
		return resp
	default:
		return fail(CodeInvalid, fmt.Sprintf("unknown request kind %q", req.Kind))
	}
}

// addLinks accepts a batch or a single address. Anything that is not an
// absolute http(s) URL is dropped; a batch with nothing usable is still ok.
func (r *Router) addLinks(ctx context.Context, req Request) Response {
	candidates := req.Addresses
	if len(candidates) == 0 && req.Address != "" {
		candidates = []string{req.Address}
	}

	valid := make([]string, 0, len(candidates))
	for i, a := range candidates {
		v := validate.New()
		v.HTTPURL(fmt.Sprintf("addresses[%d]", i), a)
		if err := v.Err(); err != nil {
			r.logger.Debug().Err(err).Str(xglog.FieldEvent, "router.link_rejected").Msg("ignoring address")
			continue
		}
		valid = append(valid, strings.TrimSpace(a))
	}
	if len(valid) == 0 {
		r.logger.Info().
			Str(xglog.FieldEvent, "router.links_empty").
			Int("rejected", len(candidates)).
			Msg("no usable address in batch")
		return ok()
	}
	if !r.limiter.AllowN(ratelimit.ClassLinks, req.Source, len(valid)) {
		return fail(CodeRateLimited, "too many links, slow down")
	}

	added, err := r.ctrl.AddLinks(ctx, valid)
	resp := result(err)
	resp.Added = added
	return resp
}

func (r *Router) metadataReport(ctx context.Context, req Request) Response {
	v := validate.New()
	v.NotEmpty("address", req.Address)
	v.NonNegative("durationSeconds", req.DurationSeconds)
	if err := v.Err(); err != nil {
		return fail(CodeInvalid, err.Error())
	}
	if !r.limiter.Allow(ratelimit.ClassReports, req.Source) {
		return fail(CodeRateLimited, "too many surface reports")
	}
	return result(r.ctrl.ReportMetadata(ctx, strings.TrimSpace(req.Address), req.Title, req.DurationSeconds))
}

func result(err error) Response {
	if err == nil {
		return ok()
	}
	return fail(codeFor(err), err.Error())
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, queue.ErrIndexOutOfRange):
		return CodeOutOfRange
	case errors.Is(err, playlist.ErrFormat):
		return CodeFormat
	case errors.Is(err, playlist.ErrInvalidName):
		return CodeInvalid
	case errors.Is(err, playlist.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, controller.ErrPersist):
		return CodePersistFailed
	case errors.Is(err, controller.ErrClosed):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
