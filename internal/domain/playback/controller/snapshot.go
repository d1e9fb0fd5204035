// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/domain/playback/ports"
	"github.com/ManuGH/chatdj/internal/domain/playback/queue"
)

// Snapshot keys. One JSON value per key.
const (
	KeyItems         = "items"
	KeyPlayed        = "played"
	KeyCursor        = "cursor"
	KeyPaused        = "paused"
	KeySurfaceHandle = "surfaceHandle"
)

type persisted struct {
	queue  queue.Snapshot
	paused bool
	handle model.Handle
}

func defaultPersisted() persisted {
	return persisted{
		queue:  queue.Snapshot{Items: []model.QueueItem{}, Played: []string{}, Cursor: model.NoCursor},
		paused: true,
	}
}

func encodeSnapshot(p persisted) (map[string][]byte, error) {
	items := p.queue.Items
	if items == nil {
		items = []model.QueueItem{}
	}
	played := p.queue.Played
	if played == nil {
		played = []string{}
	}
	fields := map[string]any{
		KeyItems:         items,
		KeyPlayed:        played,
		KeyCursor:        p.queue.Cursor,
		KeyPaused:        p.paused,
		KeySurfaceHandle: string(p.handle),
	}
	out := make(map[string][]byte, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}

// readSnapshot loads every key. Absent or malformed values fall back to their
// default and set repaired. A backend error aborts with defaults.
func readSnapshot(ctx context.Context, kv ports.KeyValue) (persisted, bool, error) {
	p := defaultPersisted()
	repaired := false

	decode := func(key string, dst any) error {
		raw, ok, err := kv.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			repaired = true
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			repaired = true
			return errMalformed
		}
		return nil
	}

	var items []model.QueueItem
	if err := decode(KeyItems, &items); errors.Is(err, errMalformed) {
		items = nil
	} else if err != nil {
		return defaultPersisted(), true, err
	}
	var played []string
	if err := decode(KeyPlayed, &played); errors.Is(err, errMalformed) {
		played = nil
	} else if err != nil {
		return defaultPersisted(), true, err
	}
	cursor := model.NoCursor
	if err := decode(KeyCursor, &cursor); errors.Is(err, errMalformed) {
		cursor = model.NoCursor
	} else if err != nil {
		return defaultPersisted(), true, err
	}
	paused := true
	if err := decode(KeyPaused, &paused); errors.Is(err, errMalformed) {
		paused = true
	} else if err != nil {
		return defaultPersisted(), true, err
	}
	var handle string
	if err := decode(KeySurfaceHandle, &handle); errors.Is(err, errMalformed) {
		handle = ""
	} else if err != nil {
		return defaultPersisted(), true, err
	}

	p.queue = queue.Snapshot{Items: items, Played: played, Cursor: cursor}
	p.paused = paused
	p.handle = model.Handle(handle)
	return p, repaired, nil
}
