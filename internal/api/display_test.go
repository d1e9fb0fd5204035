// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/chatdj/internal/bus"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/router"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func dialDisplay(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/display"
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return ws
}

func readView(t *testing.T, ws *websocket.Conn) model.PlaylistView {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg displayMessage
	require.NoError(t, ws.ReadJSON(&msg))
	require.Equal(t, "playlist", msg.Type)
	require.NotNil(t, msg.View)
	return *msg.View
}

func TestDisplay_PushesViewsAndForwardsCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	disp := newFakeDispatcher()
	initial := model.PlaylistView{Cursor: 3, Items: []model.ViewItem{}, Played: []string{}}
	b := bus.NewMemoryBus()
	s, err := New(Config{}, Deps{Router: disp, Views: staticViewer{view: initial}, Bus: b})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())

	ws := dialDisplay(t, srv, nil)
	assert.Equal(t, 3, readView(t, ws).Cursor, "current view on connect")

	require.NoError(t, b.Publish(context.Background(), bus.TopicPlaylist, model.PlaylistView{Cursor: 5}))
	assert.Equal(t, 5, readView(t, ws).Cursor)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "bogus"}))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "skip"}))
	require.Eventually(t, func() bool { return disp.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	got, _ := disp.last()
	assert.Equal(t, router.KindSkip, got.Kind)
	assert.True(t, strings.HasPrefix(got.Source, "display:"), got.Source)

	_ = ws.Close()
	require.Eventually(t, func() bool { return b.Subscribers(bus.TopicPlaylist) == 0 }, 2*time.Second, 5*time.Millisecond)

	s.Shutdown()
	srv.Close()
}

func TestDisplay_ShutdownDisconnects(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.NewMemoryBus()
	s, err := New(Config{}, Deps{Router: newFakeDispatcher(), Views: staticViewer{}, Bus: b})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())

	ws := dialDisplay(t, srv, nil)
	readView(t, ws)

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = ws.ReadMessage()
	require.Error(t, err)
	_ = ws.Close()
	assert.Zero(t, b.Subscribers(bus.TopicPlaylist))

	srv.Close()
}

func TestDisplay_RejectsForeignOrigin(t *testing.T) {
	s, _ := newTestServer(t, Config{AllowedOrigins: []string{"http://dj.example"}}, newFakeDispatcher(), Deps{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/display"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws := dialDisplay(t, srv, http.Header{"Origin": {"http://dj.example"}})
	_ = ws.Close()
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{cfg: Config{AllowedOrigins: []string{"http://dj.example"}}}
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "localhost:8080", true},
		{"http://dj.example", "localhost:8080", true},
		{"http://localhost:8080", "localhost:8080", true},
		{"http://evil.example", "localhost:8080", false},
		{"::bad", "localhost:8080", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws/display", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, s.checkOrigin(r), "origin %q", tt.origin)
	}

	open := &Server{cfg: Config{AllowedOrigins: []string{"*"}}}
	r := httptest.NewRequest(http.MethodGet, "/ws/display", nil)
	r.Header.Set("Origin", "http://anything.example")
	assert.True(t, open.checkOrigin(r))
}
