package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/errors"
	"github.com/ikkim/storefront-sync/pkg/util"
)

// Context keys for the bearer identity
const (
	AccessTokenKey = "access_token"
	SubjectKey     = "subject"
	EmailKey       = "email"
)

// AuthMiddleware reads the identity provider's access token. The storefront
// API stays the authority on it; here it only names the subject.
type AuthMiddleware struct {
	secret string
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: secret}
}

// RequireBearer rejects requests without a readable access token
func (m *AuthMiddleware) RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, ok := bearerToken(c)
		if !ok {
			log.Warn("Missing or malformed authorization header", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.Unauthorized(c, "An access token is required")
			c.Abort()
			return
		}

		claims, err := util.ParseIdentityToken(token, m.secret)
		if err != nil {
			log.Warn("Token parsing failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			info := errors.ParseError(err, "auth")
			errors.RespondWithError(c, http.StatusUnauthorized, info.Code, info.Message)
			c.Abort()
			return
		}

		c.Set(AccessTokenKey, token)
		c.Set(SubjectKey, claims.Subject)
		c.Set(EmailKey, claims.Email)

		log.Debug("Access token accepted", map[string]interface{}{
			"subject": claims.Subject,
		})
		c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// token query parameter browsers use for websocket upgrades.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetAccessToken extracts the raw token from context
func GetAccessToken(c *gin.Context) (string, bool) {
	token, exists := c.Get(AccessTokenKey)
	if !exists {
		return "", false
	}
	s, ok := token.(string)
	return s, ok
}

// GetSubject extracts the token subject from context
func GetSubject(c *gin.Context) (string, bool) {
	sub, exists := c.Get(SubjectKey)
	if !exists {
		return "", false
	}
	s, ok := sub.(string)
	return s, ok
}
