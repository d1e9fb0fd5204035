// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surface

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/chatdj/internal/router"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	watchA = "https://www.youtube.com/watch?v=aaaaaaaaaaa"
	watchB = "https://www.youtube.com/watch?v=bbbbbbbbbbb"
)

// page is a scripted player page. With autoAck set it answers every
// command: loads become ready, metadata requests get title/seconds.
type page struct {
	t  *testing.T
	ws *websocket.Conn
	id string

	wmu sync.Mutex

	mu       sync.Mutex
	received []Message
	autoAck  bool
	title    string
	seconds  int

	done chan struct{}
}

func testConfig() Config {
	return Config{
		ExactPattern:    "*://www.youtube.com/watch*",
		FallbackPattern: "*://*.youtube.com/*",
		CommandTimeout:  time.Second,
		CreateTimeout:   time.Second,
		ReattachGrace:   time.Second,
		EndThreshold:    500 * time.Millisecond,
		BreakerFailures: 5,
		BreakerReset:    time.Minute,
	}
}

func startHub(t *testing.T, cfg Config, l Launcher) (*Hub, string) {
	t.Helper()
	if l == nil {
		l = &fakeLauncher{}
	}
	h, err := NewHub(cfg, l)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, wsURL string, hello Message, autoAck bool) *page {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	p := &page{t: t, ws: ws, autoAck: autoAck, title: "Song", seconds: 200, done: make(chan struct{})}
	hello.Type = TypeHello
	p.send(hello)

	var welcome Message
	require.NoError(t, ws.ReadJSON(&welcome))
	require.Equal(t, TypeWelcome, welcome.Type)
	p.id = welcome.SurfaceID

	go p.read()
	t.Cleanup(p.close)
	return p
}

func (p *page) send(msg Message) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_ = p.ws.WriteJSON(msg)
}

func (p *page) read() {
	defer close(p.done)
	for {
		var msg Message
		if err := p.ws.ReadJSON(&msg); err != nil {
			return
		}
		p.mu.Lock()
		p.received = append(p.received, msg)
		auto, title, seconds := p.autoAck, p.title, p.seconds
		p.mu.Unlock()

		if !auto || msg.RequestID == "" {
			continue
		}
		ack := Message{Type: TypeAck, RequestID: msg.RequestID, OK: true}
		switch msg.Type {
		case CmdLoad:
			ack.Ready = true
		case CmdMetadataRequest:
			ack.Title, ack.DurationSeconds = title, seconds
		}
		p.send(ack)
	}
}

func (p *page) commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.received))
	for _, m := range p.received {
		out = append(out, m.Type)
	}
	return out
}

func (p *page) last(typ string) (Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.received) - 1; i >= 0; i-- {
		if p.received[i].Type == typ {
			return p.received[i], true
		}
	}
	return Message{}, false
}

func (p *page) close() {
	_ = p.ws.Close()
	<-p.done
}

// fakeLauncher records targets and optionally connects a page for each.
type fakeLauncher struct {
	mu       sync.Mutex
	targets  []string
	err      error
	onLaunch func(target string)
}

func (l *fakeLauncher) Launch(_ context.Context, target string) error {
	l.mu.Lock()
	l.targets = append(l.targets, target)
	err, fn := l.err, l.onLaunch
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if fn != nil {
		go fn(target)
	}
	return nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.targets)
}

var errNoBrowser = errors.New("no browser")

// recordingReporter collects forwarded reports.
type recordingReporter struct {
	mu   sync.Mutex
	reqs []router.Request
}

func (r *recordingReporter) Dispatch(_ context.Context, req router.Request) router.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return router.Response{Status: router.StatusOK}
}

func (r *recordingReporter) seen() []router.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]router.Request(nil), r.reqs...)
}
