package stream

import (
	"net"
	"net/http"
	"strings"
	"sync"
)

// streamLimiter caps concurrent SSE connections per client IP.
type streamLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	max    int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	if maxPerIP <= 0 {
		maxPerIP = 10
	}
	return &streamLimiter{
		counts: make(map[string]int),
		max:    maxPerIP,
	}
}

// acquire reserves a connection slot for ip. It returns false when the
// per-IP limit is already reached.
func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[ip] >= l.max {
		return false
	}
	l.counts[ip]++
	return true
}

// release frees a previously acquired slot.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[ip] <= 1 {
		delete(l.counts, ip)
		return
	}
	l.counts[ip]--
}

// count returns the current connection count for ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[ip]
}

// clientIP extracts the client IP from the request. Proxy headers are only
// honored when trustProxy is set; otherwise a spoofed X-Forwarded-For would
// let a single client bypass the per-IP limit.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First hop is the original client.
			if i := strings.IndexByte(xff, ','); i >= 0 {
				xff = xff[:i]
			}
			if ip := strings.TrimSpace(xff); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
