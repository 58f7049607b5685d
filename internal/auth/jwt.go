package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/ender-blog/internal/flash"
	"github.com/isdelr/ender-blog/internal/models"
	"github.com/isdelr/ender-blog/internal/services"
	"github.com/rs/zerolog/log"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// SessionTTL is how long a login lasts.
const SessionTTL = 24 * time.Hour

// LoginPath is where unauthenticated visitors of protected pages are sent.
const LoginPath = "/users/login"

// Claims defines the JWT claims structure.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type contextKey string

// UserClaimsKey is the context key for user claims.
const UserClaimsKey = contextKey("userClaims")

// UserLookup finds the account a session belongs to.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// Sessions issues and checks the signed session cookie.
type Sessions struct {
	key    []byte
	secure bool
	users  UserLookup
}

// NewSessions creates Sessions signing tokens with secret. Cookies are marked
// Secure when secure is set. When users is not nil, a session only counts
// while its account still exists.
func NewSessions(secret string, secure bool, users UserLookup) *Sessions {
	return &Sessions{key: []byte(secret), secure: secure, users: users}
}

// GenerateJWT creates a new JWT for a given user.
func (s *Sessions) GenerateJWT(user models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// ValidateJWT parses and validates a JWT string.
func (s *Sessions) ValidateJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}

// Login starts a session for user by setting the session cookie.
func (s *Sessions) Login(w http.ResponseWriter, user models.User) error {
	token, err := s.GenerateJWT(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(SessionTTL),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	return nil
}

// Logout ends the session by expiring the session cookie.
func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
}

// Middleware loads the claims of a valid session into the request context.
// Requests without a valid session pass through anonymously.
func (s *Sessions) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string

			// 1. Try to get the token from the Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, "Bearer ")
				if len(parts) == 2 {
					tokenStr = parts[1]
				}
			}

			// 2. If not in header, fall back to the cookie
			if tokenStr == "" {
				if cookie, err := r.Cookie(CookieName); err == nil {
					tokenStr = cookie.Value
				}
			}

			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 3. Validate the token; a stale cookie is dropped
			claims, err := s.ValidateJWT(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("Ignoring invalid session token")
				s.Logout(w)
				next.ServeHTTP(w, r)
				return
			}

			// 4. Drop sessions of deleted accounts
			if s.users != nil {
				user, err := s.users.GetUserByID(r.Context(), claims.UserID)
				if errors.Is(err, services.ErrUserNotFound) {
					log.Debug().Str("user_id", claims.UserID).Msg("Ignoring session of unknown user")
					s.Logout(w)
					next.ServeHTTP(w, r)
					return
				}
				if err != nil {
					log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to load session user")
					next.ServeHTTP(w, r)
					return
				}
				claims.Username = user.Username
			}

			// 5. Pass claims down via context
			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims of the logged-in user, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

// IsAuthenticated reports whether r carries a valid session.
func IsAuthenticated(r *http.Request) bool {
	_, ok := ClaimsFromContext(r.Context())
	return ok
}

// RequireUser redirects anonymous visitors to the login page with a flash
// message. It must run after Middleware.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		if !IsAuthenticated(r) {
			flash.Add(w, r, flash.Error, "Pro přístup na tuto stránku je potřeba se nejprve přihlásit.")
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireToken rejects anonymous API requests with 401.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r) {
			http.Error(w, "Missing auth token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
