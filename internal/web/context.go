package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/spares/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for item
// history entries.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP returns RemoteAddr without the port. TrustedRealIP has already
// replaced it with the forwarded address when the peer is a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
