package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// AccountIDKey is the context key for the authenticated account ID.
	AccountIDKey = "account_id"
	// PlanCodeKey is the context key for the account's plan code claim, if any.
	PlanCodeKey = "plan_code"
)

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	AccountID string `json:"account_id"`
	PlanCode  string `json:"plan_code,omitempty"`
	jwt.RegisteredClaims
}

// Auth returns a middleware that validates bearer tokens and injects the
// account ID into the request context.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		if claims.AccountID == "" {
			abortUnauthorized(c, "token missing account_id")
			return
		}

		c.Set(AccountIDKey, claims.AccountID)
		if claims.PlanCode != "" {
			c.Set(PlanCodeKey, claims.PlanCode)
		}
		c.Next()
	}
}

// GetAccountID returns the authenticated account ID from context.
func GetAccountID(c *gin.Context) string {
	if id, exists := c.Get(AccountIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": msg,
		},
	})
}
