// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the playback domain types shared by the queue, the
// controller and the surface drivers.
package model

import (
	"net/url"
	"strings"
)

// NoCursor is the cursor sentinel meaning "nothing loaded".
const NoCursor = -1

// Handle identifies a bound player surface. The zero value means none.
type Handle string

// QueueItem is one requested video. Address is the unique key.
type QueueItem struct {
	Address         string  `json:"address"`
	Title           *string `json:"title"`
	DurationSeconds *int    `json:"durationSeconds"`
}

// NewItem returns an item without metadata.
func NewItem(address string) QueueItem {
	return QueueItem{Address: address}
}

// HasMetadata reports whether title and duration were both reported.
func (i QueueItem) HasMetadata() bool {
	return i.Title != nil && i.DurationSeconds != nil
}

// Metadata is what a player surface reports about the loaded item.
type Metadata struct {
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Placeholder titles a player reports before the page finished loading.
var placeholderTitles = map[string]struct{}{
	"":              {},
	"Unknown Title": {},
	"YouTube":       {},
}

// UnknownMetadata is substituted when a surface never reports usable metadata.
var UnknownMetadata = Metadata{Title: "Unknown", DurationSeconds: 0}

// Complete reports whether the metadata is worth keeping without retrying.
func (m Metadata) Complete() bool {
	if _, placeholder := placeholderTitles[strings.TrimSpace(m.Title)]; placeholder {
		return false
	}
	return m.DurationSeconds > 0
}

// SurfaceInfo describes a live surface as seen by its driver.
type SurfaceInfo struct {
	Alive   bool
	Address string
	Ready   bool
}

// MatchesClass reports whether address belongs to the destination class, a
// registrable domain such as "youtube.com". Subdomains match.
func MatchesClass(address, class string) bool {
	if class == "" {
		return true
	}
	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	class = strings.ToLower(class)
	return host == class || strings.HasSuffix(host, "."+class)
}
