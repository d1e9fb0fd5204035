// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ManuGH/chatdj/internal/bus"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/router"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher records requests and answers from a per-kind table.
type fakeDispatcher struct {
	mu        sync.Mutex
	requests  []router.Request
	responses map[router.Kind]router.Response
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{responses: make(map[router.Kind]router.Response)}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, req router.Request) router.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if resp, ok := d.responses[req.Kind]; ok {
		return resp
	}
	return router.Response{Status: router.StatusOK}
}

func (d *fakeDispatcher) respond(kind router.Kind, resp router.Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses[kind] = resp
}

func (d *fakeDispatcher) last() (router.Request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.requests) == 0 {
		return router.Request{}, false
	}
	return d.requests[len(d.requests)-1], true
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

type staticViewer struct {
	view model.PlaylistView
}

func (v staticViewer) View() model.PlaylistView { return v.view }

type fakeLister struct {
	names []string
	err   error
}

func (l fakeLister) List() ([]string, error) { return l.names, l.err }

var errListing = errors.New("disk unavailable")

func newTestServer(t *testing.T, cfg Config, disp *fakeDispatcher, deps Deps) (*Server, *bus.MemoryBus) {
	t.Helper()
	b := bus.NewMemoryBus()
	deps.Router = disp
	if deps.Views == nil {
		deps.Views = staticViewer{view: model.PlaylistView{Cursor: model.NoCursor, Items: []model.ViewItem{}, Played: []string{}}}
	}
	deps.Bus = b
	s, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s, b
}

// do runs one request through the handler chain.
func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.10:5000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}
