package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wuwenbin0122/docchat/internal/auth"
)

const sessionUserKey = "sessionUserID"

var errMalformedAuthorization = errors.New("authorization header must be a bearer token")

type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			p.any = true
			continue
		}
		p.allowed[origin] = struct{}{}
	}
	return p
}

func (p *originPolicy) allows(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.allowed[strings.TrimRight(origin, "/")]
	return ok
}

func corsMiddleware(policy *originPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && policy.allows(origin) {
			header := c.Writer.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Add("Vary", "Origin")
			header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			header.Set("Access-Control-Max-Age", "600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// sessionMiddleware accepts anonymous requests but rejects a bad token. The
// token comes from the Authorization header or, for websocket clients that
// cannot set headers, the access_token query parameter.
func sessionMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "invalid authorization", err)
			return
		}
		if token == "" || authService == nil {
			c.Next()
			return
		}

		claims, err := authService.VerifyToken(token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "invalid or expired session", err)
			return
		}

		c.Set(sessionUserKey, claims.Subject)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return strings.TrimSpace(c.Query("access_token")), nil
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errMalformedAuthorization
	}
	return parts[1], nil
}

func sessionUserID(c *gin.Context) string {
	return c.GetString(sessionUserKey)
}
