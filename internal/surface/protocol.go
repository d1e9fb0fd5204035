// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surface

import (
	"net/url"
	"strings"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
)

// Reports sent by player surfaces.
const (
	TypeHello    = "hello"
	TypeLocation = "location"
	TypeMetadata = "metadata"
	TypeTime     = "time"
	TypeEnded    = "ended"
	TypeAck      = "ack"
)

// Messages sent to player surfaces. Every command except welcome carries a
// requestId and must be acknowledged.
const (
	TypeWelcome        = "welcome"
	CmdLoad            = "load"
	CmdPlay            = "play"
	CmdPause           = "pause"
	CmdPlaylist        = "playlist"
	CmdMetadataRequest = "metadata.request"
	CmdClose           = "close"
)

// Message is the single JSON frame shape in both directions.
type Message struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`

	// hello / welcome
	SurfaceID string `json:"surfaceId,omitempty"`
	Token     string `json:"token,omitempty"`

	Address string `json:"address,omitempty"`
	Ready   bool   `json:"ready,omitempty"`

	// metadata and metadata.request acks
	Title           string `json:"title,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`

	// time reports, in seconds
	CurrentTime float64 `json:"currentTime,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Paused      bool    `json:"paused,omitempty"`

	// acks
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`

	View *model.PlaylistView `json:"view,omitempty"`
}

// launchKey is the URL fragment key carrying the launch token.
const launchKey = "chatdj="

// withLaunchToken returns address with the launch token as its fragment.
func withLaunchToken(address, token string) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	u.Fragment = launchKey + token
	return u.String(), nil
}

// normalizeAddress strips the launch fragment a freshly launched page still
// carries in its location.
func normalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	i := strings.Index(address, "#"+launchKey)
	if i < 0 {
		return address
	}
	return address[:i]
}
