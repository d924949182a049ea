package server

import (
	"net/http"
	"strings"
	"sync"
)

// EStop is an emergency-stop latch modeled on the teacher's Locker
// middleware: once tripped it returns 423 Locked for every protected
// route until explicitly cleared. Unlike Locker it is safe for
// concurrent use, since HTTP handlers may trip or check it from
// multiple goroutines.
type EStop struct {
	mu     sync.Mutex
	locked bool

	// doNotProtect lists path substrings the latch never gates, so the
	// status and clear routes stay reachable while tripped.
	doNotProtect []string
}

// NewEStop returns a cleared EStop whose status/clear routes are
// always reachable regardless of latch state.
func NewEStop() *EStop {
	return &EStop{doNotProtect: []string{"status", "emergency_stop"}}
}

// Lock trips the latch.
func (e *EStop) Lock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = true
}

// Unlock clears the latch.
func (e *EStop) Unlock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = false
}

// Locked reports whether the latch is currently tripped.
func (e *EStop) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// Check is the middleware form: it returns http.StatusLocked for any
// request whose path isn't in doNotProtect while the latch is tripped,
// otherwise it passes the request down the chain.
func (e *EStop) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if e.Locked() {
			protected := true
			for _, s := range e.doNotProtect {
				if strings.Contains(r.URL.Path, s) {
					protected = false
					break
				}
			}
			if protected {
				w.WriteHeader(http.StatusLocked)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
