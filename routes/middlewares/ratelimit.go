package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/metrics"
	"golang.org/x/time/rate"
)

// RateLimit allows each peer address perSecond requests on average, with the
// given burst. Limiters are dropped every hour.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiters := &ipLimiters{limit: rate.Limit(perSecond), burst: burst}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httpx.PeerIP(r)
			if !limiters.get(ip).Allow() {
				log.WithFields(log.Fields{"ip": ip, "path": r.URL.Path}).Warn("rate limit exceeded")
				metrics.Submissions.WithLabelValues(metrics.Throttled).Inc()
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ipLimiters struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limiters == nil || time.Since(l.lastCleanup) > time.Hour {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}
