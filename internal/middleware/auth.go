package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/securebank/ledger/internal/services"
	"github.com/spf13/viper"
)

var redisClient *redis.Client

// InitAuthMiddleware enables the logout blacklist check. A nil client skips it.
func InitAuthMiddleware(client *redis.Client) {
	redisClient = client
}

// AuthMiddleware resolves the bearer token into a services.Identity on the
// request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			services.SendErrorResponse(w, err.Error(), http.StatusUnauthorized, nil)
			return
		}

		if isBlacklisted(r.Context(), token) {
			services.SendErrorResponse(w, "Token has been revoked", http.StatusUnauthorized, nil)
			return
		}

		identity, err := validateToken(token)
		if err != nil {
			log.Printf("[AUTH] Token rejected: %v", err)
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(services.WithIdentity(r.Context(), identity)))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("Invalid authorization header format")
	}
	return parts[1], nil
}

func isBlacklisted(ctx context.Context, token string) bool {
	if redisClient == nil {
		return false
	}
	n, err := redisClient.Exists(ctx, services.BlacklistKey(token)).Result()
	if err != nil {
		log.Printf("[AUTH] Blacklist lookup failed: %v", err)
		return false
	}
	return n > 0
}

func validateToken(tokenString string) (services.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil {
		return services.Identity{}, err
	}
	if !token.Valid {
		return services.Identity{}, errors.New("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return services.Identity{}, errors.New("unexpected claims type")
	}

	identity := services.Identity{}
	switch v := claims["nameid"].(type) {
	case string:
		identity.Subject = v
	case float64:
		identity.Subject = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if role, ok := claims["role"].(string); ok {
		identity.Role = role
	}
	return identity, nil
}
