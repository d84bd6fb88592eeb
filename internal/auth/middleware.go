// Package auth guards the engagement routes with HS256 bearer tokens and
// exposes the caller identity that stored results are scoped to.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "authUserID"

var (
	errMissingHeader = errors.New("authorization header required")
	errBadScheme     = errors.New("invalid authorization header")
	errMissingToken  = errors.New("token missing")
	errNoSecret      = errors.New("missing JWT secret")
	errNoSubject     = errors.New("missing subject")
)

// ContextWithUserID records the authenticated caller on ctx.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the authenticated subject from context.
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(userIDKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// JWTMiddleware rejects requests without a valid token signed with secret and
// stores the token subject as the caller. Tokens must carry an expiry; when
// audience is set they must also name it. An empty secret rejects everything.
func JWTMiddleware(secret, audience string) gin.HandlerFunc {
	verifier := newTokenVerifier(strings.TrimSpace(secret), strings.TrimSpace(audience))

	return func(c *gin.Context) {
		subject, err := verifier.subject(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Request = c.Request.WithContext(ContextWithUserID(c.Request.Context(), subject))
		c.Set(string(userIDKey), subject)
		c.Next()
	}
}

type tokenVerifier struct {
	key    []byte
	parser *jwt.Parser
}

func newTokenVerifier(secret, audience string) *tokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	v := &tokenVerifier{parser: jwt.NewParser(opts...)}
	if secret != "" {
		v.key = []byte(secret)
	}
	return v
}

// subject validates the Authorization header value and returns the token subject.
func (v *tokenVerifier) subject(header string) (string, error) {
	raw, err := bearerToken(header)
	if err != nil {
		return "", err
	}
	if v.key == nil {
		return "", errNoSecret
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return "", errors.New("invalid audience")
		}
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errNoSubject
	}
	return claims.Subject, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
