// Package proxy runs a local reverse proxy in front of the execution
// provider so that only this process ever holds the provider API key.
package proxy

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	headerKey  = "X-RapidAPI-Key"
	headerHost = "X-RapidAPI-Host"
)

// AuthProxy forwards requests to the Judge0 upstream and injects the
// RapidAPI credentials. Callers authenticate to it with a per-startup
// shared secret presented in the key header.
type AuthProxy struct {
	server *http.Server
	target *url.URL
	host   string // RapidAPI host header value
	token  string
	secret string // shared secret callers must present to use the proxy
	addr   string
}

// New creates an AuthProxy listening on 127.0.0.1:port that forwards to
// upstream. If secret is non-empty, incoming requests must present it as
// the X-RapidAPI-Key header value.
func New(port int, upstream, host, token, secret string) (*AuthProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream %q: %w", upstream, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", upstream)
	}

	ap := &AuthProxy{
		target: target,
		host:   host,
		token:  token,
		secret: secret,
		addr:   fmt.Sprintf("127.0.0.1:%d", port),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", ap.handleProxy(ap.reverseProxy()))

	ap.server = &http.Server{
		Addr:              ap.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ap, nil
}

func (ap *AuthProxy) reverseProxy() *httputil.ReverseProxy {
	rp := httputil.NewSingleHostReverseProxy(ap.target)

	origDirector := rp.Director
	rp.Director = func(r *http.Request) {
		origDirector(r)
		// Strip whatever the caller sent, including the shared secret.
		r.Header.Del(headerKey)
		r.Header.Del(headerHost)
		r.Header.Del("Authorization")
		if ap.token != "" {
			r.Header.Set(headerKey, ap.token)
		}
		if ap.host != "" {
			r.Header.Set(headerHost, ap.host)
		}
		r.Host = ap.target.Host
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("judge0 upstream request failed")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	return rp
}

// handleProxy validates the shared secret before forwarding to the reverse proxy.
func (ap *AuthProxy) handleProxy(rp http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ap.secret != "" {
			presented := r.Header.Get(headerKey)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(ap.secret)) != 1 {
				log.Warn().Str("remote", r.RemoteAddr).Msg("auth proxy rejected request without shared secret")
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("proxying to judge0")
		rp.ServeHTTP(w, r)
	}
}

// Addr returns the listen address.
func (ap *AuthProxy) Addr() string {
	return ap.addr
}

// Start begins listening. It returns an error if the bind fails.
// The server runs in a background goroutine.
func (ap *AuthProxy) Start() error {
	ln, err := net.Listen("tcp", ap.addr)
	if err != nil {
		return fmt.Errorf("auth proxy listen: %w", err)
	}
	go func() {
		_ = ap.server.Serve(ln) // returns on Close/Shutdown
	}()
	log.Info().Str("addr", ap.addr).Str("upstream", ap.target.String()).Msg("judge0 auth proxy listening")
	return nil
}

// Close gracefully shuts down the proxy.
func (ap *AuthProxy) Close(ctx context.Context) error {
	return ap.server.Shutdown(ctx)
}
