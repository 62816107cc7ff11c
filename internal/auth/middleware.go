package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubjectKey holds the authenticated subject in the gin context
const SubjectKey = "auth.subject"

// Middleware rejects requests without a valid bearer token. An empty
// secret disables authentication.
func Middleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	if secret == "" {
		logger.Warn("JWT secret not configured, API is unauthenticated")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}

		claims, err := ParseToken(secret, raw)
		if err != nil {
			logger.Debug("Rejected token", zap.Error(err), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}

// Subject returns the authenticated subject, if any
func Subject(c *gin.Context) string {
	return c.GetString(SubjectKey)
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
