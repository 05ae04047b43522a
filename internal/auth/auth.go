package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	CookieName   = "planningpoker_admin"
	TokenExpiry  = 12 * time.Hour
	bearerPrefix = "Bearer "
)

// Card-table words for password generation
var pokerWords = []string{
	"ante", "bluff", "card", "chip", "deal",
	"deck", "flush", "fold", "river", "shuffle",
	"spade", "table", "turn", "joker", "ace",
	"king", "queen", "stack", "sprint",
}

// Auth guards the admin diagnostics API with a single shared password
type Auth struct {
	password string
	tokens   map[string]time.Time
	mu       sync.RWMutex
	now      func() time.Time
}

// New creates a new Auth instance with the given password
func New(password string) *Auth {
	return &Auth{
		password: password,
		tokens:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// GeneratePassword creates a random 3-word password
func GeneratePassword() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = pokerWords[randomInt(len(pokerWords))]
	}
	return strings.Join(words, "-")
}

// Password returns the configured admin password
func (a *Auth) Password() string {
	return a.password
}

// Login validates the password and returns a token if valid
func (a *Auth) Login(password string) (string, bool) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) != 1 {
		return "", false
	}

	token := generateToken()
	a.mu.Lock()
	a.tokens[token] = a.now().Add(TokenExpiry)
	a.mu.Unlock()

	return token, true
}

// Logout invalidates a token
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.tokens, token)
	a.mu.Unlock()
}

// ValidateToken checks if a token is known and unexpired
func (a *Auth) ValidateToken(token string) bool {
	if token == "" {
		return false
	}
	a.mu.RLock()
	expiry, exists := a.tokens[token]
	a.mu.RUnlock()

	if !exists {
		return false
	}

	if a.now().After(expiry) {
		a.mu.Lock()
		delete(a.tokens, token)
		a.mu.Unlock()
		return false
	}

	return true
}

// TokenFromRequest extracts the token from the Authorization header or,
// failing that, the admin cookie
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticated reports whether the request carries a valid token
func (a *Auth) Authenticated(r *http.Request) bool {
	return a.ValidateToken(TokenFromRequest(r))
}

// RequireAuthAPI middleware for API endpoints (returns 401)
func (a *Auth) RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Unauthorized - please log in"}`))
	})
}

// SetTokenCookie sets the admin cookie on the response
func SetTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/api/admin",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(TokenExpiry.Seconds()),
	})
}

// ClearTokenCookie removes the admin cookie
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/api/admin",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// generateToken creates a random token
func generateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// randomInt returns a random int in [0, max)
func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}
