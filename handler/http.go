package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds the submission body on both transports.
const maxBodyBytes = 1 << 20

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var tooLarge bool
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge = true
		} else {
			// Treated as an unparseable body; the earlier gates still run first.
			body = []byte{'{'}
		}
	}

	correlationID := r.Header.Get(headerCorrelationID)
	if correlationID == "" {
		// Set when the router runs chi's RequestID middleware.
		correlationID = middleware.GetReqID(r.Context())
	}

	status, payload, correlationID := h.process(r.Context(), inbound{
		method:        r.Method,
		body:          body,
		forwardedFor:  strings.Join(r.Header.Values(headerForwardedFor), ", "),
		remoteAddr:    remoteHost(r.RemoteAddr),
		correlationID: correlationID,
		tooLarge:      tooLarge,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerCorrelationID, correlationID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// remoteHost strips the port from a socket address. Bare addresses, including
// IPv6 without brackets, pass through unchanged.
func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
