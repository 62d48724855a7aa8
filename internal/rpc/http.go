package rpc

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/netip"
	"slices"

	"github.com/rs/zerolog"
)

// maxBodySize caps a request body at 1 MiB.
const maxBodySize = 1 << 20

// accessPolicy filters clients by address and answers CORS.
type accessPolicy struct {
	allowed []netip.Prefix // empty allows everyone
	origins []string       // empty disables CORS
}

// newAccessPolicy accepts bare IPs and CIDR prefixes. Entries that are
// neither are logged and skipped; config validation normally stops them
// earlier.
func newAccessPolicy(allowed, origins []string, logger zerolog.Logger) *accessPolicy {
	p := &accessPolicy{origins: origins}
	for _, entry := range allowed {
		if pfx, err := netip.ParsePrefix(entry); err == nil {
			p.allowed = append(p.allowed, pfx.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			logger.Warn().Str("entry", entry).Msg("Ignoring invalid RPC allowlist entry")
			continue
		}
		p.allowed = append(p.allowed, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return p
}

func (p *accessPolicy) permits(remote string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return slices.ContainsFunc(p.allowed, func(pfx netip.Prefix) bool { return pfx.Contains(addr) })
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (p *accessPolicy) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, o := range p.origins {
		switch o {
		case "*":
			return "*"
		case origin:
			return origin
		}
	}
	return ""
}

func (p *accessPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.permits(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if o := p.allowOrigin(r.Header.Get("Origin")); o != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", o)
			h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			if o != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serveRPC decodes one JSON-RPC request and writes its response. Transport
// problems are reported as JSON-RPC errors with HTTP 200, as clients expect.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	switch {
	case err != nil:
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	case len(body) > maxBodySize:
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, `jsonrpc must be "2.0"`)
		return
	}
	if req.Method == "" {
		writeError(w, req.ID, CodeInvalidRequest, "method is required")
		return
	}

	result, rpcErr := s.call(r.Context(), &req)
	resp := Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	writeJSON(w, Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: message}, ID: id})
}
