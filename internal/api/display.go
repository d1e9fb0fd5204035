// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/ManuGH/chatdj/internal/bus"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/router"
	"github.com/gorilla/websocket"
)

const (
	displayWriteWait = 10 * time.Second
	displayPongWait  = 60 * time.Second
	displayPing      = 30 * time.Second
	displayReadLimit = 4096
)

// displayMessage is the frame shape on /ws/display. The server pushes
// playlist views; the display may send skip, start or stop.
type displayMessage struct {
	Type string              `json:"type"`
	View *model.PlaylistView `json:"view,omitempty"`
}

// displayCommands maps display requests to router kinds.
var displayCommands = map[string]router.Kind{
	"skip":  router.KindSkip,
	"start": router.KindStart,
	"stop":  router.KindStop,
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (s *Server) trackDisplay(ws *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.displays[ws] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackDisplay(ws *websocket.Conn) {
	s.mu.Lock()
	delete(s.displays, ws)
	s.mu.Unlock()
	s.wg.Done()
}

// serveDisplay pushes every published playlist view to one display surface,
// starting with the current one.
func (s *Server) serveDisplay(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	if !s.trackDisplay(ws) {
		_ = ws.Close()
		return
	}
	defer s.untrackDisplay(ws)

	logger := log.WithComponentFromContext(r.Context(), "display")
	source := "display:" + clientIP(s.proxies, r)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sub, err := s.deps.Bus.Subscribe(ctx, bus.TopicPlaylist)
	if err != nil {
		logger.Error().Err(err).Msg("display subscribe failed")
		return
	}
	defer sub.Close()

	logger.Info().Str(log.FieldEvent, "display.connected").Msg("display surface connected")
	defer logger.Info().Str(log.FieldEvent, "display.disconnected").Msg("display surface disconnected")

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		s.readDisplay(ctx, ws, source)
	}()
	defer func() {
		_ = ws.Close()
		<-readerDone
	}()

	view := s.deps.Views.View()
	if err := writeDisplay(ws, displayMessage{Type: "playlist", View: &view}); err != nil {
		return
	}

	ticker := time.NewTicker(displayPing)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			v, isView := msg.(model.PlaylistView)
			if !isView {
				continue
			}
			if err := writeDisplay(ws, displayMessage{Type: "playlist", View: &v}); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(displayWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeDisplay(ws *websocket.Conn, msg displayMessage) error {
	_ = ws.SetWriteDeadline(time.Now().Add(displayWriteWait))
	return ws.WriteJSON(msg)
}

// readDisplay handles display commands until the connection fails.
func (s *Server) readDisplay(ctx context.Context, ws *websocket.Conn, source string) {
	ws.SetReadLimit(displayReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(displayPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(displayPongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg displayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(displayPongWait))
		kind, ok := displayCommands[msg.Type]
		if !ok {
			continue
		}
		resp := s.deps.Router.Dispatch(ctx, router.Request{Kind: kind, Source: source})
		if !resp.OK() {
			logger := log.WithComponent("display")
			logger.Warn().
				Str(log.FieldKind, string(kind)).
				Str("code", resp.Code).
				Str("error", resp.Error).
				Msg("display command failed")
		}
	}
}
