// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package router

import (
	"github.com/ManuGH/chatdj/internal/domain/playback/controller"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
)

// Kind names an inbound request.
type Kind string

const (
	KindAddLinks       Kind = "add-links"
	KindGetState       Kind = "get-state"
	KindStart          Kind = "start"
	KindStop           Kind = "stop"
	KindSkip           Kind = "skip"
	KindItemEnded      Kind = "item-ended"
	KindClear          Kind = "clear"
	KindRemove         Kind = "remove"
	KindMove           Kind = "move"
	KindMetadataReport Kind = "metadata-report"
	KindSurfaceClosed  Kind = "surface-closed"
	KindImport         Kind = "import"
	KindExport         Kind = "export"
	KindSave           Kind = "save"
	KindLoad           Kind = "load"
)

var knownKinds = map[Kind]struct{}{
	KindAddLinks: {}, KindGetState: {}, KindStart: {}, KindStop: {}, KindSkip: {},
	KindItemEnded: {}, KindClear: {}, KindRemove: {}, KindMove: {}, KindMetadataReport: {},
	KindSurfaceClosed: {}, KindImport: {}, KindExport: {}, KindSave: {}, KindLoad: {},
}

// Known reports whether k is a request kind the router handles.
func (k Kind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

// Request is one inbound command or report. Only the fields relevant to
// Kind are read.
type Request struct {
	Kind Kind `json:"kind"`

	// Source identifies the sender for ingress limits: client IP for API
	// calls, surface id for surface reports.
	Source string `json:"-"`

	Addresses       []string          `json:"addresses,omitempty"`
	Address         string            `json:"address,omitempty"`
	Index           int               `json:"index,omitempty"`
	From            int               `json:"from,omitempty"`
	To              int               `json:"to,omitempty"`
	Title           string            `json:"title,omitempty"`
	DurationSeconds int               `json:"durationSeconds,omitempty"`
	Handle          model.Handle      `json:"handle,omitempty"`
	Items           []model.QueueItem `json:"items,omitempty"`
	Name            string            `json:"name,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Error codes carried in Response.Code.
const (
	CodeInvalid       = "invalid_request"
	CodeFormat        = "invalid_format"
	CodeOutOfRange    = "out_of_range"
	CodeNotFound      = "not_found"
	CodeRateLimited   = "rate_limited"
	CodePersistFailed = "persist_failed"
	CodeUnavailable   = "unavailable"
	CodeInternal      = "internal"
)

// Response is always produced, even for failures.
type Response struct {
	Status string             `json:"status"`
	Error  string             `json:"error,omitempty"`
	Code   string             `json:"code,omitempty"`
	Added  int                `json:"added,omitempty"`
	State  *controller.Status `json:"state,omitempty"`
	Items  []model.QueueItem  `json:"items,omitempty"`
}

// OK reports whether the request succeeded.
func (r Response) OK() bool { return r.Status == StatusOK }

func ok() Response { return Response{Status: StatusOK} }

func fail(code, msg string) Response {
	return Response{Status: StatusError, Code: code, Error: msg}
}
