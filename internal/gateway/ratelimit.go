package gateway

import (
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// acceptLimiter throttles new connections per source IP so a single
// misbehaving client can't exhaust connection slots or the accept loop.
type acceptLimiter struct {
	mu       sync.Mutex
	visitors map[string]*ipVisitor
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
}

type ipVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newAcceptLimiter creates a limiter allowing r new connections per second
// per IP, with burst allowance b.
func newAcceptLimiter(r float64, b int) *acceptLimiter {
	l := &acceptLimiter{
		visitors: make(map[string]*ipVisitor),
		rate:     rate.Limit(r),
		burst:    b,
		cleanup:  10 * time.Minute,
	}
	go l.cleanupLoop()
	return l
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return strings.TrimSpace(addr.String())
	}
	return host
}

// Allow reports whether a new connection from addr should be accepted.
func (l *acceptLimiter) Allow(addr net.Addr) bool {
	ip := hostOf(addr)

	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &ipVisitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	limiter := v.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

func (l *acceptLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > l.cleanup {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}
