package mw

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/serverlist/internal/logger"
)

// hostMatcher holds exact host names and "*.example.com" suffix patterns,
// lowercased.
type hostMatcher struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostMatcher(patterns []string) hostMatcher {
	m := hostMatcher{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
		case strings.HasPrefix(p, "*."):
			m.suffixes = append(m.suffixes, p[1:])
		default:
			m.exact[p] = struct{}{}
		}
	}
	return m
}

func (m hostMatcher) empty() bool {
	return len(m.exact) == 0 && len(m.suffixes) == 0
}

// match compares host without its port. A pattern that names a port must
// match the Host header exactly.
func (m hostMatcher) match(host string) bool {
	host = strings.ToLower(host)
	if _, ok := m.exact[host]; ok {
		return true
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if _, ok := m.exact[host]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// EnforceHost refuses requests whose Host header is not one of allowedHosts.
// Patterns like "*.example.com" match any subdomain. An empty list disables
// the check.
func EnforceHost(allowedHosts []string, callerHeader string, log logger.Logger) func(http.Handler) http.Handler {
	m := newHostMatcher(allowedHosts)
	if m.empty() {
		log.Debug("host check disabled")
		return passthrough
	}

	log.Debug("host check enabled", logger.Any("hosts", allowedHosts))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.match(r.Host) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, r, log, callerHeader, "host not allowed", logger.String("host", r.Host))
		})
	}
}
