// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package queue is the in-memory queue model: ordered unique items, the set
// of played addresses and the playback cursor. It performs no I/O and is not
// safe for concurrent use; the controller serializes access.
package queue

import (
	"errors"
	"fmt"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
)

// ErrIndexOutOfRange is returned for remove/move/cursor indices outside the queue.
var ErrIndexOutOfRange = errors.New("queue index out of range")

// Store holds the queue state.
type Store struct {
	items  []model.QueueItem
	pos    map[string]int
	played map[string]struct{}
	order  []string // played addresses in the order they were marked
	cursor int
}

// Snapshot is the serializable form of a Store.
type Snapshot struct {
	Items  []model.QueueItem
	Played []string
	Cursor int
}

// New returns an empty store with no cursor.
func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset drops all items, the played set and the cursor.
func (s *Store) Reset() {
	s.items = nil
	s.pos = make(map[string]int)
	s.played = make(map[string]struct{})
	s.order = nil
	s.cursor = model.NoCursor
}

// Append adds address at the end unless it is empty or already queued.
func (s *Store) Append(address string) bool {
	return s.AppendItem(model.NewItem(address))
}

// AppendItem is Append for an item that may already carry metadata.
func (s *Store) AppendItem(item model.QueueItem) bool {
	if item.Address == "" {
		return false
	}
	if _, dup := s.pos[item.Address]; dup {
		return false
	}
	s.pos[item.Address] = len(s.items)
	s.items = append(s.items, item)
	return true
}

// RemoveAt deletes the item at index and keeps the cursor on the same item,
// or clears it when the cursor item itself is removed.
func (s *Store) RemoveAt(index int) error {
	if err := s.check(index); err != nil {
		return err
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	switch {
	case index == s.cursor:
		s.cursor = model.NoCursor
	case index < s.cursor:
		s.cursor--
	}
	s.reindex()
	return nil
}

// Move relocates the item at from so that it ends up at index to.
// The cursor follows its item by address.
func (s *Store) Move(from, to int) error {
	if err := s.check(from); err != nil {
		return err
	}
	if err := s.check(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	current := ""
	if s.cursor != model.NoCursor {
		current = s.items[s.cursor].Address
	}

	item := s.items[from]
	rest := append(s.items[:from:from], s.items[from+1:]...)
	moved := make([]model.QueueItem, 0, len(s.items))
	moved = append(moved, rest[:to]...)
	moved = append(moved, item)
	moved = append(moved, rest[to:]...)
	s.items = moved
	s.reindex()

	if current != "" {
		s.cursor = s.pos[current]
	}
	return nil
}

// MarkPlayed adds address to the played set. Idempotent.
func (s *Store) MarkPlayed(address string) {
	if address == "" {
		return
	}
	if _, ok := s.played[address]; ok {
		return
	}
	s.played[address] = struct{}{}
	s.order = append(s.order, address)
}

// IsPlayed reports whether address is in the played set.
func (s *Store) IsPlayed(address string) bool {
	_, ok := s.played[address]
	return ok
}

// FirstUnplayed returns the lowest index whose address has not been played,
// or model.NoCursor.
func (s *Store) FirstUnplayed() int {
	for i, it := range s.items {
		if _, ok := s.played[it.Address]; !ok {
			return i
		}
	}
	return model.NoCursor
}

// HasUnplayed reports whether FirstUnplayed would find an item.
func (s *Store) HasUnplayed() bool {
	return s.FirstUnplayed() != model.NoCursor
}

// SetCursor points the cursor at index, or clears it with model.NoCursor.
func (s *Store) SetCursor(index int) error {
	if index == model.NoCursor {
		s.cursor = model.NoCursor
		return nil
	}
	if err := s.check(index); err != nil {
		return err
	}
	s.cursor = index
	return nil
}

// Cursor returns the cursor index or model.NoCursor.
func (s *Store) Cursor() int { return s.cursor }

// Current returns the item under the cursor.
func (s *Store) Current() (model.QueueItem, bool) {
	if s.cursor == model.NoCursor {
		return model.QueueItem{}, false
	}
	return s.items[s.cursor], true
}

// IndexOf returns the position of address or model.NoCursor.
func (s *Store) IndexOf(address string) int {
	if i, ok := s.pos[address]; ok {
		return i
	}
	return model.NoCursor
}

// SetMetadata records title and duration for the cursor item. Reports for any
// other address are stale and ignored.
func (s *Store) SetMetadata(address, title string, durationSeconds int) bool {
	cur, ok := s.Current()
	if !ok || cur.Address != address {
		return false
	}
	t := title
	d := durationSeconds
	s.items[s.cursor].Title = &t
	s.items[s.cursor].DurationSeconds = &d
	return true
}

// Len returns the number of queued items.
func (s *Store) Len() int { return len(s.items) }

// Items returns a copy of the queue.
func (s *Store) Items() []model.QueueItem {
	out := make([]model.QueueItem, len(s.items))
	copy(out, s.items)
	return out
}

// Played returns the played addresses in the order they were marked.
func (s *Store) Played() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// View builds the playlist view pushed to surfaces.
func (s *Store) View() model.PlaylistView {
	v := model.PlaylistView{
		Items:  make([]model.ViewItem, len(s.items)),
		Cursor: s.cursor,
		Played: s.Played(),
	}
	for i, it := range s.items {
		_, played := s.played[it.Address]
		v.Items[i] = model.NewViewItem(it, played, i == s.cursor)
	}
	return v
}

// Snapshot returns a copy of the state for persistence.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Items: s.Items(), Played: s.Played(), Cursor: s.cursor}
}

// Restore replaces the state with snap. Duplicate or empty addresses are
// dropped and an out-of-range cursor is cleared; repaired reports whether any
// of that happened.
func (s *Store) Restore(snap Snapshot) (repaired bool) {
	s.Reset()
	for _, it := range snap.Items {
		if !s.AppendItem(it) {
			repaired = true
		}
	}
	for _, addr := range snap.Played {
		if addr == "" || s.IsPlayed(addr) {
			repaired = true
			continue
		}
		s.MarkPlayed(addr)
	}
	if err := s.SetCursor(snap.Cursor); err != nil {
		s.cursor = model.NoCursor
		repaired = true
	}
	return repaired
}

func (s *Store) check(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.items))
	}
	return nil
}

func (s *Store) reindex() {
	s.pos = make(map[string]int, len(s.items))
	for i, it := range s.items {
		s.pos[it.Address] = i
	}
}
