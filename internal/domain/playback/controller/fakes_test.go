// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/domain/playback/ports"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "https://www.youtube.com/watch?v=aaaaaaaaaaa"
	addrB = "https://www.youtube.com/watch?v=bbbbbbbbbbb"
	addrC = "https://www.youtube.com/watch?v=ccccccccccc"
)

type fakeSurface struct {
	address string
	alive   bool
}

// fakeDriver is an in-memory SurfaceDriver. Every call is appended to calls
// as "op:handle:address".
type fakeDriver struct {
	mu       sync.Mutex
	surfaces map[model.Handle]*fakeSurface
	order    []model.Handle
	calls    []string
	metadata map[string]model.Metadata

	createErr  error
	createGate chan struct{}
	creating   int
	neverReady bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		surfaces: make(map[model.Handle]*fakeSurface),
		metadata: make(map[string]model.Metadata),
	}
}

func (d *fakeDriver) record(op string, h model.Handle, address string) {
	d.calls = append(d.calls, fmt.Sprintf("%s:%s:%s", op, h, address))
}

func (d *fakeDriver) setMetadata(address, title string, seconds int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metadata[address] = model.Metadata{Title: title, DurationSeconds: seconds}
}

func (d *fakeDriver) FindExisting(_ context.Context, class string) (model.Handle, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range d.order {
		s := d.surfaces[h]
		if s.alive && model.MatchesClass(s.address, class) {
			return h, true, nil
		}
	}
	return "", false, nil
}

func (d *fakeDriver) Create(ctx context.Context, address string) (model.Handle, error) {
	d.mu.Lock()
	d.creating++
	gate := d.createGate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("create", "", address)
	if d.createErr != nil {
		return "", d.createErr
	}
	h := model.Handle(fmt.Sprintf("s-%d", len(d.order)+1))
	d.surfaces[h] = &fakeSurface{address: address, alive: true}
	d.order = append(d.order, h)
	return h, nil
}

func (d *fakeDriver) UpdateAddress(_ context.Context, h model.Handle, address string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("update", h, address)
	s, ok := d.surfaces[h]
	if !ok || !s.alive {
		return ports.ErrSurfaceGone
	}
	s.address = address
	return nil
}

func (d *fakeDriver) Inspect(_ context.Context, h model.Handle) (model.SurfaceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.surfaces[h]
	if !ok {
		return model.SurfaceInfo{}, ports.ErrSurfaceGone
	}
	return model.SurfaceInfo{Alive: s.alive, Address: s.address, Ready: s.alive && !d.neverReady}, nil
}

func (d *fakeDriver) IsReady(_ context.Context, h model.Handle) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.surfaces[h]
	if !ok || !s.alive {
		return false, ports.ErrSurfaceGone
	}
	return !d.neverReady, nil
}

func (d *fakeDriver) RequestMetadata(_ context.Context, h model.Handle, address string) (model.Metadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("metadata", h, address)
	if s, ok := d.surfaces[h]; !ok || !s.alive {
		return model.Metadata{}, ports.ErrSurfaceGone
	}
	if md, ok := d.metadata[address]; ok {
		return md, nil
	}
	return model.Metadata{Title: "YouTube"}, nil
}

func (d *fakeDriver) Play(_ context.Context, h model.Handle) error {
	return d.simple("play", h)
}

func (d *fakeDriver) Pause(_ context.Context, h model.Handle) error {
	return d.simple("pause", h)
}

func (d *fakeDriver) ShowPlaylist(context.Context, model.Handle, model.PlaylistView) error {
	return nil
}

func (d *fakeDriver) Close(_ context.Context, h model.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("close", h, "")
	if s, ok := d.surfaces[h]; ok {
		s.alive = false
	}
	return nil
}

func (d *fakeDriver) simple(op string, h model.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.surfaces[h]
	if !ok || !s.alive {
		d.record(op, h, "")
		return ports.ErrSurfaceGone
	}
	d.record(op, h, s.address)
	return nil
}

// kill simulates the user closing a surface. The close report reaches the
// controller separately, as it does through the router.
func (d *fakeDriver) kill(h model.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.surfaces[h]; ok {
		s.alive = false
	}
}

func (d *fakeDriver) callsWith(prefix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (d *fakeDriver) createsStarted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.creating
}

// memKV is a map-backed ports.KeyValue.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
	writes int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) SetMany(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.writes++
	for k, v := range values {
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *memKV) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data[key])
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func (failingKV) SetMany(context.Context, map[string][]byte) error {
	return errors.New("backend down")
}

type recordingNotifier struct {
	mu    sync.Mutex
	views []model.PlaylistView
}

func (n *recordingNotifier) Publish(view model.PlaylistView, _ model.Handle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views = append(n.views, view)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.views)
}

func fastPolicy() Policy {
	return Policy{
		MaxDurationSeconds: 720,
		DestinationClass:   "youtube.com",
		SurfaceAttempts:    3,
		SurfaceRetryDelay:  time.Millisecond,
		ReadyTimeout:       50 * time.Millisecond,
		ReadyPollInterval:  time.Millisecond,
		MetadataAttempts:   3,
		MetadataInterval:   time.Millisecond,
		RestoreCheckDelay:  time.Millisecond,
	}
}

func newTestController(t *testing.T, drv *fakeDriver, kv ports.KeyValue) (*Controller, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	c, err := New(Deps{Driver: drv, Store: kv, Notifier: n, Policy: fastPolicy()})
	require.NoError(t, err)
	require.NoError(t, c.Load(context.Background()))
	return c, n
}
