// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surface

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/domain/playback/ports"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/metrics"
	"github.com/ManuGH/chatdj/internal/resilience"
	"github.com/google/uuid"
)

// request sends a command and waits for its ack.
func (h *Hub) request(ctx context.Context, id model.Handle, msg Message) (Message, error) {
	msg.RequestID = uuid.NewString()
	ch := make(chan Message, 1)

	h.mu.Lock()
	s, ok := h.surfaces[id]
	if !ok {
		h.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %s", ports.ErrSurfaceGone, id)
	}
	if s.conn == nil {
		h.mu.Unlock()
		return Message{}, fmt.Errorf("%w: %s", ErrDetached, id)
	}
	s.pending[msg.RequestID] = ch
	conn := s.conn
	h.mu.Unlock()

	if err := conn.enqueue(msg); err != nil {
		h.dropPending(id, msg.RequestID)
		return Message{}, fmt.Errorf("%w: %s: %v", ErrDetached, id, err)
	}

	timer := time.NewTimer(h.cfg.CommandTimeout)
	defer timer.Stop()
	select {
	case ack, ok := <-ch:
		if !ok {
			return Message{}, fmt.Errorf("%w: %s", ErrDetached, id)
		}
		if !ack.OK {
			return ack, fmt.Errorf("%w: %s: %s", ErrRejected, msg.Type, ack.Error)
		}
		return ack, nil
	case <-timer.C:
		h.dropPending(id, msg.RequestID)
		return Message{}, fmt.Errorf("%w: %s to %s after %s", ports.ErrSurfaceTimeout, msg.Type, id, h.cfg.CommandTimeout)
	case <-ctx.Done():
		h.dropPending(id, msg.RequestID)
		return Message{}, ctx.Err()
	}
}

func (h *Hub) dropPending(id model.Handle, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.surfaces[id]; ok {
		delete(s.pending, requestID)
	}
}

// FindExisting returns the first attached, ready surface of class whose
// address matches the exact pattern, else the fallback pattern.
func (h *Hub) FindExisting(_ context.Context, class string) (model.Handle, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pick := func(re *regexp.Regexp) (model.Handle, bool) {
		for _, id := range h.order {
			s := h.surfaces[id]
			if s.conn == nil || !s.ready || !model.MatchesClass(s.address, class) {
				continue
			}
			if re == nil || re.MatchString(s.address) {
				return id, true
			}
		}
		return "", false
	}

	if id, ok := pick(h.exact); ok {
		return id, true, nil
	}
	if h.fallback != nil {
		if id, ok := pick(h.fallback); ok {
			return id, true, nil
		}
	}
	return "", false, nil
}

// Create launches a new surface for address and waits until it says hello
// with the launch token. Launch failures and timeouts count against the
// launch breaker.
func (h *Hub) Create(ctx context.Context, address string) (model.Handle, error) {
	token := uuid.NewString()
	target, err := withLaunchToken(address, token)
	if err != nil {
		return "", fmt.Errorf("launch target: %w", err)
	}

	waiter := make(chan model.Handle, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrHubClosed
	}
	h.launches[token] = waiter
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.launches, token)
		h.mu.Unlock()
	}()

	var id model.Handle
	err = h.breaker.Execute(func() error {
		if err := h.launcher.Launch(ctx, target); err != nil {
			metrics.IncSurfaceLaunch("failed")
			return err
		}
		timer := time.NewTimer(h.cfg.CreateTimeout)
		defer timer.Stop()
		select {
		case id = <-waiter:
			metrics.IncSurfaceLaunch("connected")
			return nil
		case <-timer.C:
			metrics.IncSurfaceLaunch("timeout")
			return fmt.Errorf("%w: no surface connected within %s", ports.ErrSurfaceTimeout, h.cfg.CreateTimeout)
		case <-ctx.Done():
			return ctx.Err()
		case <-h.ctx.Done():
			return ErrHubClosed
		}
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		metrics.IncSurfaceLaunch("rejected")
	}
	if err != nil {
		return "", err
	}

	h.logger.Info().
		Str(xglog.FieldEvent, "surface.created").
		Str(xglog.FieldSurfaceID, string(id)).
		Str(xglog.FieldAddress, address).
		Msg("launched surface connected")
	return id, nil
}

// UpdateAddress tells the surface to load address. End detection restarts
// for the new address.
func (h *Hub) UpdateAddress(ctx context.Context, id model.Handle, address string) error {
	ack, err := h.request(ctx, id, Message{Type: CmdLoad, Address: address})
	if err != nil {
		return err
	}
	h.mu.Lock()
	if s, ok := h.surfaces[id]; ok {
		s.address = address
		s.ready = ack.Ready
		s.end.reset(address)
	}
	h.mu.Unlock()
	return nil
}

// Inspect reports a surface as alive until it is closed or its reattach
// grace runs out. A detached surface is never ready.
func (h *Hub) Inspect(_ context.Context, id model.Handle) (model.SurfaceInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.surfaces[id]
	if !ok {
		return model.SurfaceInfo{}, fmt.Errorf("%w: %s", ports.ErrSurfaceGone, id)
	}
	return model.SurfaceInfo{
		Alive:   true,
		Address: s.address,
		Ready:   s.conn != nil && s.ready,
	}, nil
}

func (h *Hub) IsReady(_ context.Context, id model.Handle) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.surfaces[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ports.ErrSurfaceGone, id)
	}
	return s.conn != nil && s.ready, nil
}

// RequestMetadata asks the page for the title and duration of address. The
// answer may be a placeholder while the page is still loading.
func (h *Hub) RequestMetadata(ctx context.Context, id model.Handle, address string) (model.Metadata, error) {
	ack, err := h.request(ctx, id, Message{Type: CmdMetadataRequest, Address: address})
	if err != nil {
		return model.Metadata{}, err
	}
	return model.Metadata{Title: ack.Title, DurationSeconds: ack.DurationSeconds}, nil
}

func (h *Hub) Play(ctx context.Context, id model.Handle) error {
	_, err := h.request(ctx, id, Message{Type: CmdPlay})
	return err
}

func (h *Hub) Pause(ctx context.Context, id model.Handle) error {
	_, err := h.request(ctx, id, Message{Type: CmdPause})
	return err
}

func (h *Hub) ShowPlaylist(ctx context.Context, id model.Handle, view model.PlaylistView) error {
	_, err := h.request(ctx, id, Message{Type: CmdPlaylist, View: &view})
	return err
}

// Close asks the page to close itself and forgets it. No surface-closed
// report is sent for surfaces closed this way.
func (h *Hub) Close(ctx context.Context, id model.Handle) error {
	_, err := h.request(ctx, id, Message{Type: CmdClose})
	if errors.Is(err, ports.ErrSurfaceGone) {
		return err
	}

	h.mu.Lock()
	s := h.removeLocked(id)
	h.mu.Unlock()
	if s != nil && s.conn != nil {
		s.conn.close()
	}

	metrics.IncSurfaceSession("closed")
	h.logger.Info().
		Str(xglog.FieldEvent, "surface.closed_by_owner").
		Str(xglog.FieldSurfaceID, string(id)).
		AnErr("ack_error", err).
		Msg("player surface closed")
	return nil
}
