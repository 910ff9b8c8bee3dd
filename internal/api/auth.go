package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Session identifies the authenticated caller for the duration of one
// request. Login and token issuance happen in the web frontend; this
// service only verifies.
type Session struct {
	UserID   string
	Name     string
	Raidlead bool
	Elevated bool
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Name     string `json:"name,omitempty"`
	Raidlead bool   `json:"raidlead,omitempty"`
	Elevated bool   `json:"elevated,omitempty"`
}

type sessionKey struct{}

// SessionFromContext returns the request's session.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// SignToken issues a session token, used by tests and by the CLI helper.
func SignToken(secret string, s Session, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Name:     s.Name,
		Raidlead: s.Raidlead,
		Elevated: s.Elevated,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret, tokenString string) (Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpiredToken
		}
		return Session{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Session{}, ErrInvalidToken
	}
	return Session{
		UserID:   claims.Subject,
		Name:     claims.Name,
		Raidlead: claims.Raidlead,
		Elevated: claims.Elevated,
	}, nil
}

// sessionMiddleware verifies the bearer token and stores the Session in
// the request context.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		session, err := parseToken(s.jwtSecret, tokenString)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
