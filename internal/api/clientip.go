// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// proxySet is the list of peers allowed to speak for someone else through
// X-Forwarded-For or X-Real-IP.
type proxySet []netip.Prefix

func parseTrustedProxies(cidrs []string) (proxySet, error) {
	var out proxySet
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", c, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

func (ps proxySet) trusts(peer string) bool {
	addr, err := netip.ParseAddr(hostOnly(peer))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range ps {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

// clientIP is the peer address, or the first forwarded hop when the peer is
// a trusted proxy.
func clientIP(proxies proxySet, r *http.Request) string {
	if proxies.trusts(r.RemoteAddr) {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
		if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
			return xr
		}
	}
	if h := hostOnly(r.RemoteAddr); h != "" {
		return h
	}
	return r.RemoteAddr
}
