package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding the verified token claims.
const ClaimsKey = "claims"

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// AnyVerifier accepts a token when any of its verifiers does, trying them
// in order.
type AnyVerifier []Verifier

func (a AnyVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	var errs []error
	for _, v := range a {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no token verifier configured")
	}
	return nil, errors.Join(errs...)
}

// AuthMiddleware verifies Bearer tokens. A missing token is 401, a token
// that fails verification is 403.
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token não fornecido"})
			return
		}
		scheme, token, ok := strings.Cut(auth, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token não fornecido"})
			return
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token inválido"})
			return
		}

		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token inválido"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// Subject returns the authenticated user of the request, if any.
func Subject(c *gin.Context) string {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return ""
	}
	cm, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	for _, k := range []string{"user", "sub"} {
		if s, ok := cm[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
