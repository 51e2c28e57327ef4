// Package network resolves development base URLs for the stock server.
package network

import (
	"errors"
	"fmt"
	"strings"
)

type Scheme string

const (
	HTTP Scheme = "http"
	WS   Scheme = "ws"
)

var ErrUnknownScheme = errors.New("unknown scheme")

func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case HTTP:
		return HTTP, nil
	case WS:
		return WS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// Platform identifies the client OS, e.g. "android", "ios", "web".
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
	Web     Platform = "web"
)

const (
	DefaultPort        = 3000
	DefaultHost        = "localhost"
	DefaultAndroidHost = "192.168.165.165"
)

// Resolver is a static platform -> host lookup with a fixed port.
type Resolver struct {
	Port        int
	Hosts       map[Platform]string
	DefaultHost string
}

func DefaultResolver() *Resolver {
	return &Resolver{
		Port:        DefaultPort,
		Hosts:       map[Platform]string{Android: DefaultAndroidHost},
		DefaultHost: DefaultHost,
	}
}

// Host returns the host for platform, falling back to DefaultHost.
func (r *Resolver) Host(p Platform) string {
	if h, ok := r.Hosts[Platform(strings.ToLower(string(p)))]; ok && strings.TrimSpace(h) != "" {
		return strings.TrimSpace(h)
	}
	if r.DefaultHost != "" {
		return r.DefaultHost
	}
	return DefaultHost
}

func (r *Resolver) BaseURL(scheme Scheme, p Platform) string {
	port := r.Port
	if port <= 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s://%s:%d", scheme, r.Host(p), port)
}

// BaseURL uses the default resolver.
func BaseURL(scheme Scheme, p Platform) string {
	return DefaultResolver().BaseURL(scheme, p)
}
