package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAgentID names the calling worker. Operator clients may omit it.
const HeaderAgentID = "X-Agent-ID"

const ctxKeyAgentID = "agentID"

var agentIDRE = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,64}$`)

// Toucher records that an agent was seen. presence.Tracker satisfies it.
type Toucher interface {
	Touch(ctx context.Context, agentID string) error
}

// BearerAuth requires "Authorization: Bearer <token>" matching token. When
// the request names an agent via X-Agent-ID, the id is stored for logging,
// idempotency and rate limiting, and presence is touched. Presence failures
// are logged and never fail the request.
func BearerAuth(token string, presence Toucher) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		got := ""
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			got = strings.TrimSpace(raw[7:])
		}
		if got == "" || len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthorized",
				"message":    "missing or invalid bearer token",
			})
			return
		}

		if id := strings.TrimSpace(c.GetHeader(HeaderAgentID)); id != "" {
			if !agentIDRE.MatchString(id) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"request_id": RequestIDFrom(c),
					"code":       "bad_request",
					"message":    "invalid " + HeaderAgentID,
				})
				return
			}
			c.Set(ctxKeyAgentID, id)
			if presence != nil {
				if err := presence.Touch(c.Request.Context(), id); err != nil {
					LoggerFrom(c).Warn().Err(err).Str("agent_id", id).Msg("presence touch failed")
				}
			}
		}
		c.Next()
	}
}

// AgentIDFrom returns the agent id stored by BearerAuth, or "".
func AgentIDFrom(c *gin.Context) string {
	v, _ := c.Get(ctxKeyAgentID)
	return asString(v)
}
