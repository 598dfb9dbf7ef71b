// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements response replay for protocol calls (claim, report)
// carrying an Idempotency-Key header. The first 2xx response for a given
// (agent, scope, key) is stored; a retry with the same key gets that stored
// response back and never reaches the handler, so a worker that lost a
// response can resend without moving items twice.
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay is set to "true" on replayed responses.
const HeaderIdempotentReplay = "Idempotent-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// StoredResponse is a previously produced response.
type StoredResponse struct {
	Status int
	Body   []byte
}

// IdempotencyStore persists responses by (agentID, scope, key). Lookup
// returns nil, nil when nothing valid is stored. Save may report a
// duplicate; the middleware ignores that.
type IdempotencyStore interface {
	Lookup(ctx context.Context, agentID, scope, key string, now time.Time) (*StoredResponse, error)
	Save(ctx context.Context, agentID, scope, key string, status int, body []byte) error
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// GetIdempotencyKey returns the validated key stashed by Idempotency.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the response was served from the store.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Idempotency replays stored responses for scope. Requests without the
// header pass through untouched; an invalid key is a 400. Lookup errors
// are logged and the request proceeds normally.
func Idempotency(opts IdempotencyOptions, store IdempotencyStore, scope string) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || store == nil {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		agent := idempotencyOwner(c)
		ctx := c.Request.Context()
		prev, err := store.Lookup(ctx, agent, scope, key, time.Now().UTC())
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
		}
		if prev != nil {
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(prev.Status, "application/json; charset=utf-8", prev.Body)
			c.Abort()
			return
		}

		rec := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= 200 && status < 300 {
			if err := store.Save(ctx, agent, scope, key, status, rec.body.Bytes()); err != nil {
				LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency save failed")
			}
		}
	}
}

// idempotencyOwner scopes keys to the calling agent, falling back to the
// client IP for callers that do not identify themselves.
func idempotencyOwner(c *gin.Context) string {
	if id := AgentIDFrom(c); id != "" {
		return id
	}
	return "ip:" + c.ClientIP()
}

// captureWriter tees the response body so it can be stored.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
