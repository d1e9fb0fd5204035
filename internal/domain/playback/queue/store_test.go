// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
)

func addresses(s *Store) []string {
	out := make([]string, 0, s.Len())
	for _, it := range s.Items() {
		out = append(out, it.Address)
	}
	return out
}

func filled(t *testing.T, addrs ...string) *Store {
	t.Helper()
	s := New()
	for _, a := range addrs {
		require.True(t, s.Append(a))
	}
	return s
}

func TestAppend_DedupesByAddress(t *testing.T) {
	s := New()
	assert.True(t, s.Append("A"))
	assert.True(t, s.Append("B"))
	assert.False(t, s.Append("A"))
	assert.False(t, s.Append(""))
	assert.Equal(t, []string{"A", "B"}, addresses(s))
}

func TestAppend_NeverDuplicatesUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := New()
	for i := 0; i < 2000; i++ {
		s.Append(fmt.Sprintf("addr-%d", rng.Intn(50)))
		if s.Len() > 3 && rng.Intn(10) == 0 {
			require.NoError(t, s.RemoveAt(rng.Intn(s.Len())))
		}
		if s.Len() > 3 && rng.Intn(10) == 0 {
			require.NoError(t, s.Move(rng.Intn(s.Len()), rng.Intn(s.Len())))
		}
	}
	seen := map[string]bool{}
	for _, a := range addresses(s) {
		require.False(t, seen[a], "duplicate %s", a)
		seen[a] = true
	}
}

func TestRemoveAt_CursorConsistency(t *testing.T) {
	t.Run("remove cursor item clears cursor", func(t *testing.T) {
		s := filled(t, "A", "B", "C")
		require.NoError(t, s.SetCursor(1))
		require.NoError(t, s.RemoveAt(1))
		assert.Equal(t, model.NoCursor, s.Cursor())
	})
	t.Run("remove before cursor shifts it down", func(t *testing.T) {
		s := filled(t, "A", "B", "C")
		require.NoError(t, s.SetCursor(2))
		require.NoError(t, s.RemoveAt(0))
		assert.Equal(t, 1, s.Cursor())
		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, "C", cur.Address)
	})
	t.Run("remove after cursor keeps it", func(t *testing.T) {
		s := filled(t, "A", "B", "C")
		require.NoError(t, s.SetCursor(0))
		require.NoError(t, s.RemoveAt(2))
		assert.Equal(t, 0, s.Cursor())
	})
	t.Run("out of range", func(t *testing.T) {
		s := filled(t, "A")
		err := s.RemoveAt(3)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange))
		assert.Equal(t, 1, s.Len())
	})
}

func TestMove_PreservesCursorItem(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"forward", 0, 2, []string{"B", "C", "A", "D"}},
		{"backward", 3, 0, []string{"D", "A", "B", "C"}},
		{"adjacent", 1, 2, []string{"A", "C", "B", "D"}},
		{"noop", 2, 2, []string{"A", "B", "C", "D"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := filled(t, "A", "B", "C", "D")
			require.NoError(t, s.SetCursor(1)) // B
			require.NoError(t, s.Move(tt.from, tt.to))
			if diff := cmp.Diff(tt.want, addresses(s)); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
			cur, ok := s.Current()
			require.True(t, ok)
			assert.Equal(t, "B", cur.Address)
			assert.Equal(t, s.IndexOf("B"), s.Cursor())
		})
	}
}

func TestMove_OutOfRange(t *testing.T) {
	s := filled(t, "A", "B")
	assert.ErrorIs(t, s.Move(0, 2), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Move(-1, 0), ErrIndexOutOfRange)
}

func TestFirstUnplayed_StrictFIFO(t *testing.T) {
	s := filled(t, "A", "B", "C")
	assert.Equal(t, 0, s.FirstUnplayed())

	s.MarkPlayed("A")
	s.MarkPlayed("A")
	assert.Equal(t, 1, s.FirstUnplayed())
	assert.Equal(t, []string{"A"}, s.Played())

	s.MarkPlayed("C")
	assert.Equal(t, 1, s.FirstUnplayed())
	s.MarkPlayed("B")
	assert.Equal(t, model.NoCursor, s.FirstUnplayed())
	assert.False(t, s.HasUnplayed())

	assert.Equal(t, model.NoCursor, New().FirstUnplayed())
}

func TestSetMetadata_OnlyForCursorItem(t *testing.T) {
	s := filled(t, "A", "B")
	assert.False(t, s.SetMetadata("A", "Song A", 200), "no cursor yet")

	require.NoError(t, s.SetCursor(0))
	assert.False(t, s.SetMetadata("B", "Song B", 100), "stale address")
	assert.True(t, s.SetMetadata("A", "Song A", 200))

	items := s.Items()
	require.NotNil(t, items[0].Title)
	assert.Equal(t, "Song A", *items[0].Title)
	assert.Equal(t, 200, *items[0].DurationSeconds)
	assert.Nil(t, items[1].Title)
}

func TestItemsReturnsCopy(t *testing.T) {
	s := filled(t, "A")
	items := s.Items()
	items[0].Address = "mutated"
	assert.Equal(t, []string{"A"}, addresses(s))
}

func TestView(t *testing.T) {
	s := filled(t, "A", "B")
	s.MarkPlayed("A")
	require.NoError(t, s.SetCursor(1))

	v := s.View()
	assert.Equal(t, 1, v.Cursor)
	assert.Equal(t, []string{"A"}, v.Played)
	require.Len(t, v.Items, 2)
	assert.True(t, v.Items[0].Played)
	assert.True(t, v.Items[1].Current)
}

func TestRestore(t *testing.T) {
	title := "Song A"
	dur := 200
	snap := Snapshot{
		Items:  []model.QueueItem{{Address: "A", Title: &title, DurationSeconds: &dur}, model.NewItem("B")},
		Played: []string{"A"},
		Cursor: 1,
	}

	s := New()
	assert.False(t, s.Restore(snap))
	if diff := cmp.Diff(snap, s.Snapshot()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRestore_RepairsMalformedInput(t *testing.T) {
	s := New()
	repaired := s.Restore(Snapshot{
		Items:  []model.QueueItem{model.NewItem("A"), model.NewItem("A"), model.NewItem("")},
		Played: []string{"", "A", "A"},
		Cursor: 9,
	})
	assert.True(t, repaired)
	assert.Equal(t, []string{"A"}, addresses(s))
	assert.Equal(t, []string{"A"}, s.Played())
	assert.Equal(t, model.NoCursor, s.Cursor())
}
