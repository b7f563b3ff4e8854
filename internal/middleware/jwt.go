package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/response"
)

// ContextOperatorKey is the gin context key storing the operator's JWT claims.
const ContextOperatorKey = "operator"

type tokenValidator interface {
	ValidateToken(tokenString string) (*models.JWTClaims, error)
}

// JWT protects ops routes by requiring a valid bearer token.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextOperatorKey, claims)
		c.Next()
	}
}

// Operator returns the claims stored by JWT, or nil.
func Operator(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextOperatorKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
