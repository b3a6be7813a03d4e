package middleware

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/acumant/ai-portal/pkg/crypto"
)

const (
	csrfTokenLength = 32
	csrfCookieName  = "csrf_token"
	csrfHeaderName  = "X-CSRF-Token"
	csrfTokenExpiry = 24 * time.Hour
)

type csrfToken struct {
	value     string
	expiresAt time.Time
}

// CSRFStore maps browser sessions to their CSRF token.
type CSRFStore struct {
	tokens map[string]csrfToken
	mu     sync.Mutex
}

func NewCSRFStore() *CSRFStore {
	return &CSRFStore{tokens: make(map[string]csrfToken)}
}

// GetOrCreate returns the session's live token, minting one if needed.
func (s *CSRFStore) GetOrCreate(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if tok, ok := s.tokens[sessionID]; ok && now.Before(tok.expiresAt) {
		return tok.value, nil
	}

	value, err := crypto.GenerateToken(csrfTokenLength)
	if err != nil {
		return "", err
	}
	s.tokens[sessionID] = csrfToken{value: value, expiresAt: now.Add(csrfTokenExpiry)}
	s.evictExpired(now)
	return value, nil
}

func (s *CSRFStore) Validate(sessionID, provided string) bool {
	s.mu.Lock()
	tok, ok := s.tokens[sessionID]
	s.mu.Unlock()

	if !ok || time.Now().After(tok.expiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tok.value), []byte(provided)) == 1
}

// evictExpired runs under s.mu.
func (s *CSRFStore) evictExpired(now time.Time) {
	for id, tok := range s.tokens {
		if now.After(tok.expiresAt) {
			delete(s.tokens, id)
		}
	}
}

// CSRF guards cookie-authenticated writes. Requests that carry their token
// in a header, or carry no session cookie at all, are not exposed to CSRF
// and pass through.
func CSRF(store *CSRFStore, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := getSessionID(r)

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				if sessionID != "" {
					ensureCSRFCookie(w, r, store, sessionID, secure)
				}
				next.ServeHTTP(w, r)
				return
			}

			if sessionID == "" || r.Header.Get("Authorization") != "" || r.Header.Get("X-Auth-Token") != "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(csrfHeaderName)
			if provided == "" {
				writeError(w, http.StatusForbidden, "CSRF token missing")
				return
			}
			if !store.Validate(sessionID, provided) {
				writeError(w, http.StatusForbidden, "Invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, store *CSRFStore, sessionID string, secure bool) {
	token, err := store.GetOrCreate(sessionID)
	if err != nil {
		return
	}
	if c, err := r.Cookie(csrfCookieName); err == nil && c.Value == token {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // read by the portal's JavaScript
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(csrfTokenExpiry.Seconds()),
	})
}

// getSessionID derives a session key from the token cookie.
func getSessionID(r *http.Request) string {
	cookie, err := r.Cookie("token")
	if err != nil || cookie.Value == "" {
		return ""
	}
	// The JWT signature segment is unique per token.
	v := cookie.Value
	if len(v) > 32 {
		return v[len(v)-32:]
	}
	return v
}
