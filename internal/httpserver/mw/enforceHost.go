package mw

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// hostRule is one compiled allowed-host entry. An empty port matches any
// port; a suffix rule ("*.example.com") matches subdomains only.
type hostRule struct {
	name   string
	suffix bool
	port   string
}

func splitHost(s string) (host, port string) {
	s = strings.ToLower(strings.TrimSpace(s))
	if h, p, err := net.SplitHostPort(s); err == nil {
		host, port = h, p
	} else {
		host = strings.Trim(s, "[]")
	}
	return strings.TrimSuffix(host, "."), port
}

func compileHostRule(pattern string) hostRule {
	host, port := splitHost(pattern)
	if rest, ok := strings.CutPrefix(host, "*."); ok {
		return hostRule{name: "." + rest, suffix: true, port: port}
	}
	return hostRule{name: host, port: port}
}

func (hr hostRule) match(host, port string) bool {
	if hr.port != "" && hr.port != port {
		return false
	}
	if hr.suffix {
		return strings.HasSuffix(host, hr.name)
	}
	return host == hr.name
}

// EnforceHost rejects requests whose Host header matches none of the
// allowed hosts. Matching ignores case, and a rule without a port accepts
// any port. An empty list disables the check.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	if len(allowedHosts) == 0 {
		log.Debug("EnforceHost: empty allowedHosts, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	rules := make([]hostRule, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		rules = append(rules, compileHostRule(h))
	}
	log.Debug("EnforceHost: initialized", logger.Strings("hosts", allowedHosts))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, port := splitHost(r.Host)
			for _, rule := range rules {
				if rule.match(host, port) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Debug("EnforceHost: rejected", logger.String("host", r.Host))
			reject(w, http.StatusForbidden)
		})
	}
}
