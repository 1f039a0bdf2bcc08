package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/utils"
)

// AllowOnlyCIDRS lets through only clients whose IP falls in one of the
// allowed addresses or CIDRs. An empty list disables the check.
//
// trustProxy makes the client IP come from X-Forwarded-For (reverse proxy,
// tunnel). callerHeader names the header holding the acting principal; it is
// only used to say who was refused.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, callerHeader string, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("client IP filter disabled")
		return passthrough
	}

	log.Debug("client IP filter enabled",
		logger.Int("rules", len(allowed)),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if m.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, r, log, callerHeader, "client IP not allowed",
				logger.String("client_ip", ip),
				logger.String("remote_addr", r.RemoteAddr))
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

// deny answers 403 and logs who was refused and why.
func deny(w http.ResponseWriter, r *http.Request, log logger.Logger, callerHeader, reason string, fields ...logger.Field) {
	fields = append(fields,
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.String("caller", callerOf(r, callerHeader)))
	log.Warn(reason, fields...)
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}
