// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"unicode/utf8"
)

const maxLabelLen = 50

// PlaylistView is the read model pushed to display and player surfaces.
type PlaylistView struct {
	Items  []ViewItem `json:"items"`
	Cursor int        `json:"cursor"`
	Played []string   `json:"played"`
}

// ViewItem is a QueueItem plus presentation fields.
type ViewItem struct {
	QueueItem
	Label    string `json:"label"`
	Duration string `json:"duration,omitempty"`
	Played   bool   `json:"played"`
	Current  bool   `json:"current"`
}

// NewViewItem derives the presentation fields of item.
func NewViewItem(item QueueItem, played, current bool) ViewItem {
	v := ViewItem{QueueItem: item, Played: played, Current: current}
	switch {
	case item.Title != nil && *item.Title != "":
		v.Label = *item.Title
	default:
		v.Label = truncateLabel(item.Address)
	}
	if item.DurationSeconds != nil && *item.DurationSeconds > 0 {
		v.Duration = FormatDuration(*item.DurationSeconds)
	}
	return v
}

// truncateLabel shortens s to maxLabelLen runes, ellipsis included.
func truncateLabel(s string) string {
	if utf8.RuneCountInString(s) <= maxLabelLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLabelLen-3]) + "..."
}

// FormatDuration renders seconds as m:ss, or h:mm:ss from one hour on.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
