// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMetadataComplete(t *testing.T) {
	tests := []struct {
		name string
		md   Metadata
		want bool
	}{
		{"complete", Metadata{Title: "Song A", DurationSeconds: 200}, true},
		{"empty title", Metadata{Title: "", DurationSeconds: 200}, false},
		{"placeholder title", Metadata{Title: "Unknown Title", DurationSeconds: 200}, false},
		{"site title", Metadata{Title: " YouTube ", DurationSeconds: 200}, false},
		{"zero duration", Metadata{Title: "Song A"}, false},
		{"synthetic fallback", UnknownMetadata, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.md.Complete())
		})
	}
}

func TestMatchesClass(t *testing.T) {
	assert.True(t, MatchesClass("https://www.youtube.com/watch?v=x", "youtube.com"))
	assert.True(t, MatchesClass("https://youtube.com/watch?v=x", "YouTube.com"))
	assert.True(t, MatchesClass("https://m.youtube.com/", "youtube.com"))
	assert.False(t, MatchesClass("https://notyoutube.com/watch", "youtube.com"))
	assert.False(t, MatchesClass("about:blank", "youtube.com"))
	assert.True(t, MatchesClass("anything", ""))
}

func TestDeriveState(t *testing.T) {
	assert.Equal(t, StateLoading, DeriveState(true, true, 0, false))
	assert.Equal(t, StatePaused, DeriveState(false, true, 0, false))
	assert.Equal(t, StateIdle, DeriveState(false, false, NoCursor, false))
	assert.Equal(t, StateAwaitingMetadata, DeriveState(false, false, 1, true))
	assert.Equal(t, StatePlaying, DeriveState(false, false, 1, false))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "3:20", FormatDuration(200))
	assert.Equal(t, "12:00", FormatDuration(720))
	assert.Equal(t, "1:01:05", FormatDuration(3665))
	assert.Equal(t, "0:00", FormatDuration(-5))
}

func TestNewViewItemLabel(t *testing.T) {
	title := "Song A"
	dur := 200
	v := NewViewItem(QueueItem{Address: "https://y/1", Title: &title, DurationSeconds: &dur}, false, true)
	assert.Equal(t, "Song A", v.Label)
	assert.Equal(t, "3:20", v.Duration)
	assert.True(t, v.Current)

	long := "https://www.youtube.com/watch?v=" + strings.Repeat("x", 40)
	v = NewViewItem(NewItem(long), true, false)
	assert.Len(t, v.Label, maxLabelLen)
	assert.True(t, strings.HasSuffix(v.Label, "..."))
	assert.Empty(t, v.Duration)
	assert.True(t, v.Played)
}

func TestNewViewItemLabelKeepsRunesWhole(t *testing.T) {
	long := "https://example.org/" + strings.Repeat("é", 40)
	v := NewViewItem(NewItem(long), false, false)
	assert.True(t, utf8.ValidString(v.Label), "label %q splits a rune", v.Label)
	assert.Equal(t, maxLabelLen, utf8.RuneCountInString(v.Label))
	assert.Equal(t, "https://example.org/"+strings.Repeat("é", maxLabelLen-3-20)+"...", v.Label)

	short := "https://example.org/" + strings.Repeat("é", 25)
	assert.Equal(t, short, NewViewItem(NewItem(short), false, false).Label)
}
