package auth

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const SessionCookieName = "sessionid"

// DefaultSessionTTL is how long a login lasts when no TTL is configured.
const DefaultSessionTTL = 24 * time.Hour

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session has expired")
	ErrNoSession      = errors.New("no session")
	ErrRevokedSession = errors.New("session has been revoked")
)

type SessionConfig struct {
	SecretKey string
	TTL       time.Duration
	Secure    bool
	Issuer    string
}

type SessionClaims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *SessionClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSession
	}
	return id, nil
}

// SessionManager keeps the logged-in user id in a signed JWT carried by an
// HttpOnly cookie. Tokens ended by Revoke are remembered in process until
// they would have expired anyway.
type SessionManager struct {
	config SessionConfig
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewSessionManager(config SessionConfig) *SessionManager {
	if config.Issuer == "" {
		config.Issuer = "todoTracker"
	}
	if config.TTL <= 0 {
		config.TTL = DefaultSessionTTL
	}
	return &SessionManager{config: config, now: time.Now, revoked: map[string]time.Time{}}
}

func (m *SessionManager) Issue(userID int64) (string, error) {
	now := m.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

func (m *SessionManager) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return []byte(m.config.SecretKey), nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSession
		}
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidSession
	}
	if m.isRevoked(claims.ID) {
		return nil, ErrRevokedSession
	}
	return claims, nil
}

func (m *SessionManager) isRevoked(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[id]
	return ok
}

// revoke remembers id until expiresAt and forgets entries that have expired.
func (m *SessionManager) revoke(id string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for jti, exp := range m.revoked {
		if !exp.After(now) {
			delete(m.revoked, jti)
		}
	}
	m.revoked[id] = expiresAt
}

// Login issues a session for userID and sets it on w.
func (m *SessionManager) Login(w http.ResponseWriter, userID int64) error {
	token, err := m.Issue(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.config.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *SessionManager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Revoke ends the session carried by r, so the token stops working even if a
// copy of it is replayed, and clears the cookie.
func (m *SessionManager) Revoke(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if claims, err := m.Parse(cookie.Value); err == nil && claims.ExpiresAt != nil {
			m.revoke(claims.ID, claims.ExpiresAt.Time)
		}
	}
	m.Logout(w)
}

// UserID reads the session cookie from r.
func (m *SessionManager) UserID(r *http.Request) (int64, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return 0, ErrNoSession
	}
	claims, err := m.Parse(cookie.Value)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}
