// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surface

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	helloWait      = 10 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

var (
	errConnClosed = errors.New("connection closed")
	errSendFull   = errors.New("send buffer full")
)

// wsConn owns one websocket. All writes go through writePump.
type wsConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsConn) enqueue(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendFull
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readHello waits for the opening hello frame.
func (c *wsConn) readHello() (Message, error) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(helloWait))
	var msg Message
	if err := c.ws.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	if msg.Type != TypeHello {
		return Message{}, errors.New("expected hello, got " + msg.Type)
	}
	return msg, nil
}

// readLoop decodes frames until the connection fails. Malformed frames are
// passed to bad and skipped.
func (c *wsConn) readLoop(fn func(Message), bad func(error)) error {
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			bad(err)
			continue
		}
		fn(msg)
	}
}
