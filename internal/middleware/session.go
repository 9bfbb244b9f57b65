package middleware

import (
	"context"
	"crypto/rand"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	SessionIDKey contextKey = "session_id"

	SessionCookieName = "cryptopal_session"
	sessionIssuer     = "cryptopal"
)

// SessionManager issues and verifies the signed cookie that carries a
// browser's session id.
type SessionManager struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
	now    func() time.Time
}

// NewSessionManager returns a manager signing with secret. An empty secret
// is replaced by a random one, so sessions do not survive a restart.
func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("session: failed to generate secret: " + err.Error())
		}
		log.Warn().Msg("SESSION_SECRET not set; using a random secret, sessions will reset on restart")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SessionManager{Secret: key, TTL: ttl, Secure: secure, now: time.Now}
}

// GenerateToken signs a token whose subject is the session id.
func (m *SessionManager) GenerateToken(sessionID string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.Secret)
}

// ParseToken verifies a token and returns its session id.
func (m *SessionManager) ParseToken(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Resolve returns the request's session id. When the cookie is missing or
// invalid a fresh id is minted and the cookie to set is returned with it.
func (m *SessionManager) Resolve(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		if id, err := m.ParseToken(c.Value); err == nil {
			return id, nil
		}
	}

	id := uuid.NewString()
	token, err := m.GenerateToken(id)
	if err != nil {
		// HMAC signing does not fail with a non-empty key.
		log.Error().Err(err).Msg("failed to sign session token")
		return id, nil
	}

	return id, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Middleware resolves the session and attaches its id to the context
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, cookie := m.Resolve(r)
		if cookie != nil {
			http.SetCookie(w, cookie)
		}
		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// SessionIDFromContext extracts the session id from request context
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}
