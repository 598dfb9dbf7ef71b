package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HeaderPluginKey carries the storefront plugin key on outbound calls and is
// masked should a client ever send it to us.
const HeaderPluginKey = "X-AutoDesign-Key"

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders adds header names whose values are replaced with "[REDACTED]".
// Matching is case-insensitive and merged with the built-in set
// (Authorization, Cookie, Set-Cookie, X-AutoDesign-Key).
type RedactOptions struct {
	MaskHeaders []string
}

var (
	uuidRE = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	// WooCommerce REST credentials look like ck_<hex> / cs_<hex>.
	wooKeyRE = regexp.MustCompile(`(?i)\b(ck|cs)_[0-9a-f]{8,}\b`)
	// consumer_key=..., consumer_secret=..., token=... in query strings.
	secretParamRE = regexp.MustCompile(`(?i)\b(consumer_key|consumer_secret|token|api_key)=[^&]*`)
	emailRE       = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE       = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// redact scrubs credentials and customer identifiers. UUIDs go first so the
// phone pattern cannot bite into their digit groups.
func redact(s string) string {
	if s == "" {
		return s
	}
	out := secretParamRE.ReplaceAllString(s, "$1=[REDACTED]")
	out = wooKeyRE.ReplaceAllString(out, "[REDACTED:credential]")
	out = uuidRE.ReplaceAllString(out, "[REDACTED:id]")
	out = emailRE.ReplaceAllString(out, "[REDACTED:email]")
	out = phoneRE.ReplaceAllString(out, "[REDACTED:phone]")
	return out
}

// RedactingLogger builds the request-scoped logger (request id, method,
// route, client ip), attaches it for handlers and services, and after the
// request emits one access log line with scrubbed query and headers. Bodies
// are never logged. Level follows the outcome: error for 5xx or gin errors,
// warn for 4xx, info otherwise.
//
// The agent id is added to the access line once BearerAuth has run.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range append([]string{HeaderPluginKey}, opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := truncate(redact(c.Request.URL.RawQuery), maxQueryLogLength)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				safeHeaders[k] = "[REDACTED]"
				continue
			}
			safeHeaders[k] = redact(strings.Join(vv, ", "))
		}

		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		attachLogger(c, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		ev.
			Str("agent_id", AgentIDFrom(c)).
			Str("query", safeQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
