package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"
)

const UnlockCookieName = "daybook_unlock"

// Locker tracks unlock tokens issued after a successful PIN verification.
// Tokens live in memory only; a restart locks the app again.
type Locker struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
}

func NewLocker(ttl time.Duration) *Locker {
	return &Locker{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// Issue mints a new unlock token.
func (l *Locker) Issue() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	token := hex.EncodeToString(buf)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[token] = time.Now().Add(l.ttl)
	return token
}

// Valid reports whether the token is a live unlock token. Expired tokens are
// pruned as they are seen.
func (l *Locker) Valid(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expires, ok := l.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expires) {
		delete(l.tokens, token)
		return false
	}
	return true
}

// Revoke invalidates a token, locking that client again.
func (l *Locker) Revoke(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tokens, token)
}

// RequireUnlocked gates requests behind the optional PIN lock. When no PIN is
// configured, every request passes. pinSet is consulted per request so a PIN
// added at runtime takes effect without a restart.
func RequireUnlocked(locker *Locker, pinSet func() (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			set, err := pinSet()
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !set {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(UnlockCookieName)
			if err != nil || !locker.Valid(cookie.Value) {
				http.Error(w, "Locked", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
