package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

// DashboardAuth gates operator endpoints behind an HS256 bearer token.
// With no secret configured the gate is open.
type DashboardAuth struct {
	log    *logger.Logger
	secret []byte
}

func NewDashboardAuth(log *logger.Logger, secret string) *DashboardAuth {
	return &DashboardAuth{log: log.With("middleware", "DashboardAuth"), secret: []byte(strings.TrimSpace(secret))}
}

func (a *DashboardAuth) Enabled() bool { return a != nil && len(a.secret) > 0 }

func (a *DashboardAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			return a.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			a.log.Debug("dashboard auth rejected", "path", c.FullPath(), "error", err)
			abortUnauthorized(c, msg)
			return
		}
		c.Set("operator", claims.Subject)
		c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"message": msg, "code": "unauthorized"},
	})
}
