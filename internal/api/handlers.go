// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/playlist"
	"github.com/ManuGH/chatdj/internal/router"
)

// maxBodyBytes bounds command bodies. Imports are bounded by playlist.MaxSize.
const maxBodyBytes = 64 << 10

// dispatch routes req and writes the response. Failures use the error body.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req router.Request) (router.Response, bool) {
	req.Source = clientIP(s.proxies, r)
	resp := s.deps.Router.Dispatch(r.Context(), req)
	if !resp.OK() {
		writeError(w, r, statusForCode(resp.Code), resp.Code, resp.Error)
		return resp, false
	}
	return resp, true
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, router.CodeInvalid, "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, router.CodeInvalid, "malformed JSON body")
		return false
	}
	return true
}

func (s *Server) handleSimple(kind router.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp, ok := s.dispatch(w, r, router.Request{Kind: kind}); ok {
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// handleAddLinks accepts {addresses:[...]} or a single {address}.
func (s *Server) handleAddLinks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Addresses []string `json:"addresses"`
		Address   string   `json:"address"`
	}
	if !decode(w, r, &body) {
		return
	}
	resp, ok := s.dispatch(w, r, router.Request{Kind: router.KindAddLinks, Addresses: body.Addresses, Address: body.Address})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.dispatch(w, r, router.Request{Kind: router.KindGetState})
	if ok {
		writeJSON(w, http.StatusOK, resp.State)
	}
}

func (s *Server) handleEnded(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if !decode(w, r, &body) {
		return
	}
	if resp, ok := s.dispatch(w, r, router.Request{Kind: router.KindItemEnded, Address: body.Address}); ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address         string `json:"address"`
		Title           string `json:"title"`
		DurationSeconds int    `json:"durationSeconds"`
	}
	if !decode(w, r, &body) {
		return
	}
	resp, ok := s.dispatch(w, r, router.Request{
		Kind:            router.KindMetadataReport,
		Address:         body.Address,
		Title:           body.Title,
		DurationSeconds: body.DurationSeconds,
	})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index *int `json:"index"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Index == nil {
		writeError(w, r, http.StatusBadRequest, router.CodeInvalid, "index is required")
		return
	}
	if resp, ok := s.dispatch(w, r, router.Request{Kind: router.KindRemove, Index: *body.Index}); ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.From == nil || body.To == nil {
		writeError(w, r, http.StatusBadRequest, router.CodeInvalid, "from and to are required")
		return
	}
	if resp, ok := s.dispatch(w, r, router.Request{Kind: router.KindMove, From: *body.From, To: *body.To}); ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSurfaceClosed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Handle model.Handle `json:"handle"`
	}
	if !decode(w, r, &body) {
		return
	}
	if resp, ok := s.dispatch(w, r, router.Request{Kind: router.KindSurfaceClosed, Handle: body.Handle}); ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleNamed(kind router.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		if !decode(w, r, &body) {
			return
		}
		if resp, ok := s.dispatch(w, r, router.Request{Kind: kind, Name: body.Name}); ok {
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// handleExport returns the queue as a bare JSON array.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.dispatch(w, r, router.Request{Kind: router.KindExport})
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="queue.json"`)
	if err := playlist.Encode(w, resp.Items); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Msg("export write failed")
	}
}

// handleImport accepts a bare JSON array of queue items.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	items, err := playlist.Decode(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, router.CodeFormat, err.Error())
		return
	}
	if resp, ok := s.dispatch(w, r, router.Request{Kind: router.KindImport, Items: items}); ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	if s.deps.Playlists == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	names, err := s.deps.Playlists.List()
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("listing saved playlists failed")
		writeError(w, r, http.StatusInternalServerError, router.CodeInternal, "could not list saved playlists")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}
