package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/recyclepay/backend/internal/services"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	roleKey   contextKey = "role"
)

const RoleAdmin = "admin"

// Authenticator validates HS256 bearer tokens carrying user_id and role
// claims. Tokens listed under blacklist:<token> in Redis are refused.
type Authenticator struct {
	secret []byte
	redis  *redis.Client
	logger logrus.FieldLogger
}

func NewAuthenticator(secret string, redisClient *redis.Client, logger logrus.FieldLogger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		redis:  redisClient,
		logger: logger.WithField("module", "auth"),
	}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}
		token := parts[1]

		if a.revoked(r.Context(), token) {
			services.SendErrorResponse(w, "Token has been revoked", http.StatusUnauthorized, nil)
			return
		}

		userID, role, err := a.validateToken(token)
		if err != nil {
			a.logger.WithError(err).Debug("rejected bearer token")
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, roleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after Authenticator.Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) != RoleAdmin {
			services.SendErrorResponse(w, "Admin role required", http.StatusForbidden, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// WithIdentity returns ctx carrying an authenticated identity.
func WithIdentity(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

func (a *Authenticator) revoked(ctx context.Context, token string) bool {
	if a.redis == nil {
		return false
	}
	n, err := a.redis.Exists(ctx, "blacklist:"+token).Result()
	if err != nil {
		a.logger.WithError(err).Warn("token blacklist unavailable")
		return false
	}
	return n > 0
}

func (a *Authenticator) validateToken(tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", errors.New("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("unexpected claims type")
	}

	userID, ok := claims["user_id"]
	if !ok || userID == nil {
		return "", "", errors.New("token has no user_id claim")
	}
	id := fmt.Sprintf("%v", userID)
	if id == "" {
		return "", "", errors.New("token has an empty user_id claim")
	}

	role, _ := claims["role"].(string)
	return id, role, nil
}
