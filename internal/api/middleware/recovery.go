// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/ManuGH/chatdj/internal/log"
)

// Recoverer turns a handler panic into a logged 500. http.ErrAbortHandler
// is re-raised so net/http can drop the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}
			logger := log.WithComponentFromContext(r.Context(), "recover")
			logger.Error().
				Str(log.FieldEvent, "panic.recovered").
				Str(log.FieldMethod, r.Method).
				Str(log.FieldPath, strings.ToValidUTF8(r.URL.Path, "")).
				Str("remote_addr", r.RemoteAddr).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			reject(w, r, http.StatusInternalServerError, "internal", "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
