// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ManuGH/chatdj/internal/bus"
	"github.com/ManuGH/chatdj/internal/domain/playback/controller"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes_DispatchKinds(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   router.Request
	}{
		{"start", http.MethodPost, "/api/v1/playback/start", "", router.Request{Kind: router.KindStart}},
		{"stop", http.MethodPost, "/api/v1/playback/stop", "", router.Request{Kind: router.KindStop}},
		{"skip", http.MethodPost, "/api/v1/playback/skip", "", router.Request{Kind: router.KindSkip}},
		{"clear", http.MethodPost, "/api/v1/queue/clear", "", router.Request{Kind: router.KindClear}},
		{"links", http.MethodPost, "/api/v1/links", `{"addresses":["a","b"]}`,
			router.Request{Kind: router.KindAddLinks, Addresses: []string{"a", "b"}}},
		{"single link", http.MethodPost, "/api/v1/links", `{"address":"a"}`,
			router.Request{Kind: router.KindAddLinks, Address: "a"}},
		{"ended", http.MethodPost, "/api/v1/playback/ended", `{"address":"a"}`,
			router.Request{Kind: router.KindItemEnded, Address: "a"}},
		{"metadata", http.MethodPost, "/api/v1/playback/metadata", `{"address":"a","title":"T","durationSeconds":61}`,
			router.Request{Kind: router.KindMetadataReport, Address: "a", Title: "T", DurationSeconds: 61}},
		{"remove zero", http.MethodPost, "/api/v1/queue/remove", `{"index":0}`,
			router.Request{Kind: router.KindRemove, Index: 0}},
		{"move", http.MethodPost, "/api/v1/queue/move", `{"from":2,"to":0}`,
			router.Request{Kind: router.KindMove, From: 2, To: 0}},
		{"save", http.MethodPost, "/api/v1/queue/save", `{"name":"party"}`,
			router.Request{Kind: router.KindSave, Name: "party"}},
		{"load", http.MethodPost, "/api/v1/queue/load", `{"name":"party"}`,
			router.Request{Kind: router.KindLoad, Name: "party"}},
		{"surface closed", http.MethodPost, "/api/v1/surfaces/closed", `{"handle":"s-1"}`,
			router.Request{Kind: router.KindSurfaceClosed, Handle: "s-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp := newFakeDispatcher()
			s, _ := newTestServer(t, Config{}, disp, Deps{})

			rec := do(t, s, tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			got, ok := disp.last()
			require.True(t, ok)
			assert.Equal(t, "192.0.2.10", got.Source)
			got.Source = ""
			assert.Equal(t, tt.want, got)

			var resp router.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, router.StatusOK, resp.Status)
		})
	}
}

func TestRoutes_ErrorCodesMapToStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{router.CodeInvalid, http.StatusBadRequest},
		{router.CodeFormat, http.StatusBadRequest},
		{router.CodeOutOfRange, http.StatusBadRequest},
		{router.CodeNotFound, http.StatusNotFound},
		{router.CodeRateLimited, http.StatusTooManyRequests},
		{router.CodeUnavailable, http.StatusServiceUnavailable},
		{router.CodePersistFailed, http.StatusInternalServerError},
		{router.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			disp := newFakeDispatcher()
			disp.respond(router.KindSkip, router.Response{Status: router.StatusError, Code: tt.code, Error: "nope"})
			s, _ := newTestServer(t, Config{}, disp, Deps{})

			rec := do(t, s, http.MethodPost, "/api/v1/playback/skip", "")
			assert.Equal(t, tt.want, rec.Code)

			var body apiError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, "nope", body.Error)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestRoutes_MissingFieldsRejected(t *testing.T) {
	disp := newFakeDispatcher()
	s, _ := newTestServer(t, Config{}, disp, Deps{})

	for _, tc := range []struct{ path, body string }{
		{"/api/v1/queue/remove", `{}`},
		{"/api/v1/queue/remove", ``},
		{"/api/v1/queue/move", `{"from":1}`},
		{"/api/v1/links", `{"addresses":`},
	} {
		rec := do(t, s, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %q", tc.path, tc.body)
	}
	assert.Zero(t, disp.count(), "nothing reaches the router")
}

func TestRoutes_BodyTooLarge(t *testing.T) {
	disp := newFakeDispatcher()
	s, _ := newTestServer(t, Config{}, disp, Deps{})

	body := `{"address":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := do(t, s, http.MethodPost, "/api/v1/links", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestState_WritesStatus(t *testing.T) {
	disp := newFakeDispatcher()
	title := "Song"
	disp.respond(router.KindGetState, router.Response{
		Status: router.StatusOK,
		State: &controller.Status{
			Items:  []model.QueueItem{{Address: "a", Title: &title}},
			Cursor: 0,
			Played: []string{},
			State:  model.StatePlaying,
			Handle: "s-1",
		},
	})
	s, _ := newTestServer(t, Config{}, disp, Deps{})

	rec := do(t, s, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got controller.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.StatePlaying, got.State)
	assert.Equal(t, model.Handle("s-1"), got.Handle)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Song", *got.Items[0].Title)
}

func TestExport_WritesBareArray(t *testing.T) {
	disp := newFakeDispatcher()
	disp.respond(router.KindExport, router.Response{
		Status: router.StatusOK,
		Items:  []model.QueueItem{{Address: "a"}, {Address: "b"}},
	})
	s, _ := newTestServer(t, Config{}, disp, Deps{})

	rec := do(t, s, http.MethodGet, "/api/v1/queue/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "queue.json")

	var items []model.QueueItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Equal(t, []string{"a", "b"}, []string{items[0].Address, items[1].Address})
}

func TestExport_EmptyQueueIsEmptyArray(t *testing.T) {
	s, _ := newTestServer(t, Config{}, newFakeDispatcher(), Deps{})

	rec := do(t, s, http.MethodGet, "/api/v1/queue/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestImport(t *testing.T) {
	disp := newFakeDispatcher()
	s, _ := newTestServer(t, Config{}, disp, Deps{})

	rec := do(t, s, http.MethodPost, "/api/v1/queue/import", `{"address":"a"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), router.CodeFormat)
	assert.Zero(t, disp.count())

	rec = do(t, s, http.MethodPost, "/api/v1/queue/import", `[{"address":"a"},{"address":""},{"address":"a"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ := disp.last()
	assert.Equal(t, router.KindImport, got.Kind)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "a", got.Items[0].Address)
}

func TestSaved(t *testing.T) {
	s, _ := newTestServer(t, Config{}, newFakeDispatcher(), Deps{})
	rec := do(t, s, http.MethodGet, "/api/v1/queue/saved", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	s, _ = newTestServer(t, Config{}, newFakeDispatcher(), Deps{Playlists: fakeLister{names: []string{"party", "quiet"}}})
	rec = do(t, s, http.MethodGet, "/api/v1/queue/saved", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["party","quiet"]`, rec.Body.String())

	s, _ = newTestServer(t, Config{}, newFakeDispatcher(), Deps{Playlists: fakeLister{err: errListing}})
	rec = do(t, s, http.MethodGet, "/api/v1/queue/saved", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRoutes_NotFoundAndMethod(t *testing.T) {
	s, _ := newTestServer(t, Config{}, newFakeDispatcher(), Deps{})

	rec := do(t, s, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), router.CodeNotFound)

	rec = do(t, s, http.MethodGet, "/api/v1/playback/skip", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthRoutes(t *testing.T) {
	s, _ := newTestServer(t, Config{}, newFakeDispatcher(), Deps{})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP_TrustedProxy(t *testing.T) {
	disp := newFakeDispatcher()
	s, _ := newTestServer(t, Config{TrustedProxies: []string{"192.0.2.0/24"}}, disp, Deps{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/playback/skip", nil)
	req.RemoteAddr = "192.0.2.10:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	got, _ := disp.last()
	assert.Equal(t, "198.51.100.7", got.Source)

	s2, _ := newTestServer(t, Config{}, disp, Deps{})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/playback/skip", nil)
	req.RemoteAddr = "192.0.2.10:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	s2.Handler().ServeHTTP(httptest.NewRecorder(), req)

	got, _ = disp.last()
	assert.Equal(t, "192.0.2.10", got.Source, "untrusted peers cannot spoof the source")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, Deps{})
	require.Error(t, err)

	disp := newFakeDispatcher()
	_, err = New(Config{TrustedProxies: []string{"not-a-cidr"}}, Deps{Router: disp, Views: staticViewer{}, Bus: bus.NewMemoryBus()})
	require.Error(t, err)
}
