// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playlist reads and writes queue exports: a plain JSON array of
// queue items. Named playlists are kept as files in the data directory.
package playlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
)

// MaxSize bounds a decoded export.
const MaxSize = 4 << 20

var (
	// ErrFormat is returned for payloads that are not a JSON array of items.
	ErrFormat = errors.New("playlist: expected a JSON array of queue items")

	ErrNotFound    = errors.New("playlist: not found")
	ErrInvalidName = errors.New("playlist: invalid name")
)

// Decode parses an export. Entries without an address are dropped, as are
// repeated addresses after the first.
func Decode(r io.Reader) ([]model.QueueItem, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrFormat, MaxSize)
	}
	return Parse(data)
}

// Parse is Decode for a buffered payload.
func Parse(data []byte) ([]model.QueueItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrFormat
	}

	var raw []model.QueueItem
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	items := make([]model.QueueItem, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, it := range raw {
		it.Address = strings.TrimSpace(it.Address)
		if it.Address == "" {
			continue
		}
		if _, dup := seen[it.Address]; dup {
			continue
		}
		seen[it.Address] = struct{}{}
		items = append(items, it)
	}
	return items, nil
}

// Encode writes items as an indented JSON array. A nil slice encodes as [].
func Encode(w io.Writer, items []model.QueueItem) error {
	if items == nil {
		items = []model.QueueItem{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}
