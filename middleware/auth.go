package middleware

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"compliancedocs/internal/folder/model"
	"compliancedocs/pkg/logger"
)

type contextKey string

const ActorKey contextKey = "actor"

// ActorFrom returns the authenticated actor stored by AuthMiddleware.
func ActorFrom(ctx context.Context) model.Actor {
	actor, _ := ctx.Value(ActorKey).(model.Actor)
	return actor
}

// AuthMiddleware validates the bearer token and stores the opaque actor
// identity (subject and role claims) in the request context. The engine
// never authenticates actors itself; it only consumes the token.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// For WebSockets, tokens are passed in the query string because
		// the browser's WebSocket API doesn't support custom headers.
		tokenString := r.URL.Query().Get("token")

		if tokenString == "" {
			authHeader := r.Header.Get("Authorization")
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			jwtSecret := os.Getenv("JWT_SECRET")
			if jwtSecret == "" {
				logger.Sugar.Error("FATAL: JWT_SECRET environment variable not set.")
				return nil, fmt.Errorf("server is not configured to validate JWTs")
			}
			return []byte(jwtSecret), nil
		})

		if err != nil || !token.Valid {
			logger.Sugar.Infof("Invalid token: %v", err)
			http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "Unauthorized: Could not parse token claims", http.StatusUnauthorized)
			return
		}
		sub, ok := claims["sub"].(string)
		if !ok {
			http.Error(w, "Unauthorized: Subject claim is missing or invalid", http.StatusUnauthorized)
			return
		}
		role, _ := claims["role"].(string)

		ctx := context.WithValue(r.Context(), ActorKey, model.Actor{ID: sub, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
