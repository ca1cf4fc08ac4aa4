// SPDX-License-Identifier: AGPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/btouchard/keygate/internal/config"
	"github.com/btouchard/keygate/pkg/api"
	applog "github.com/btouchard/keygate/pkg/logger"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // Unix nano timestamp for thread-safe access
}

type bruteForceEntry struct {
	mu        sync.Mutex
	failures  int
	bannedAt  time.Time
	banExpiry time.Time
}

// RateLimiter throttles clients per IP with one token bucket per route class.
type RateLimiter struct {
	config config.RateLimitConfig
	logger *slog.Logger

	cryptoLimiters   sync.Map // IP -> limiterEntry (sign/verify/key conversion)
	generateLimiters sync.Map // IP -> limiterEntry (key generation)
	adminLimiters    sync.Map // IP -> limiterEntry (admin)
	bruteForce       sync.Map // IP -> bruteForceEntry

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop when enabled.
func NewRateLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		config:      cfg,
		logger:      logger.With(applog.ComponentKey, "RATELIMIT"),
		stopCleanup: make(chan struct{}),
	}

	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}

	return rl
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	threshold := time.Now().Add(-rl.config.CleanupInterval * 2).UnixNano()

	cleanupMap := func(m *sync.Map) int {
		count := 0
		m.Range(func(key, value interface{}) bool {
			if entry, ok := value.(*limiterEntry); ok {
				if entry.lastSeen.Load() < threshold {
					m.Delete(key)
					count++
				}
			}
			return true
		})
		return count
	}

	cryptoCount := cleanupMap(&rl.cryptoLimiters)
	generateCount := cleanupMap(&rl.generateLimiters)
	adminCount := cleanupMap(&rl.adminLimiters)

	bruteForceCount := 0
	now := time.Now()
	rl.bruteForce.Range(func(key, value interface{}) bool {
		if entry, ok := value.(*bruteForceEntry); ok {
			entry.mu.Lock()
			expired := !entry.banExpiry.IsZero() && entry.banExpiry.Before(now)
			entry.mu.Unlock()
			if expired {
				rl.bruteForce.Delete(key)
				bruteForceCount++
			}
		}
		return true
	})

	total := cryptoCount + generateCount + adminCount + bruteForceCount
	if total > 0 {
		rl.logger.Debug("cleanup removed entries",
			"total", total,
			"crypto", cryptoCount,
			"generate", generateCount,
			"admin", adminCount,
			"bruteforce", bruteForceCount,
		)
	}
}

func (rl *RateLimiter) getLimiter(store *sync.Map, key string, cfg config.RateLimitRouteConfig) *rate.Limiter {
	nowNano := time.Now().UnixNano()
	rateLimit := rate.Limit(float64(cfg.Requests) / cfg.Period.Seconds())

	if existing, ok := store.Load(key); ok {
		entry := existing.(*limiterEntry)
		entry.lastSeen.Store(nowNano)
		return entry.limiter
	}

	limiter := rate.NewLimiter(rateLimit, cfg.Burst)
	entry := &limiterEntry{
		limiter: limiter,
	}
	entry.lastSeen.Store(nowNano)

	actual, _ := store.LoadOrStore(key, entry)
	return actual.(*limiterEntry).limiter
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			xff = xff[:idx]
		}
		xff = strings.TrimSpace(xff)
		if xff != "" {
			return xff
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeRateLimitHeaders(w http.ResponseWriter, limiter *rate.Limiter, cfg config.RateLimitRouteConfig) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))

	tokens := int(limiter.Tokens())
	if tokens < 0 {
		tokens = 0
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(tokens))

	resetTime := time.Now().Add(cfg.Period).Unix()
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))
}

func writeTooManyRequests(w http.ResponseWriter, limiter *rate.Limiter, cfg config.RateLimitRouteConfig) {
	writeRateLimitHeaders(w, limiter, cfg)

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	retryAfter := int(delay.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	writeError(w, http.StatusTooManyRequests, "Too Many Requests")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.NewError(message))
}

func (rl *RateLimiter) limit(store *sync.Map, cfg config.RateLimitRouteConfig, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next(w, r)
			return
		}

		ip := getClientIP(r)
		limiter := rl.getLimiter(store, ip, cfg)

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			writeTooManyRequests(w, limiter, cfg)
			return
		}

		writeRateLimitHeaders(w, limiter, cfg)
		next(w, r)
	}
}

// CryptoMiddleware limits signing, verification and key conversion endpoints.
func (rl *RateLimiter) CryptoMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return rl.limit(&rl.cryptoLimiters, rl.config.Crypto, next)
}

// GenerateMiddleware limits key generation endpoints.
func (rl *RateLimiter) GenerateMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return rl.limit(&rl.generateLimiters, rl.config.Generate, next)
}

// AdminMiddleware limits admin endpoints and bans IPs that keep failing auth.
func (rl *RateLimiter) AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next(w, r)
			return
		}

		ip := getClientIP(r)

		if rl.isBanned(ip) {
			rl.logger.Warn("banned IP attempted admin access", "ip", ip)
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.config.BruteForceBan.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Too Many Requests - Temporarily Banned")
			return
		}

		limiter := rl.getLimiter(&rl.adminLimiters, ip, rl.config.Admin)

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			writeTooManyRequests(w, limiter, rl.config.Admin)
			return
		}

		writeRateLimitHeaders(w, limiter, rl.config.Admin)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapped, r)

		if wrapped.statusCode == http.StatusUnauthorized || wrapped.statusCode == http.StatusForbidden {
			rl.recordAuthFailure(ip)
		}
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rl *RateLimiter) isBanned(ip string) bool {
	if entry, ok := rl.bruteForce.Load(ip); ok {
		bf := entry.(*bruteForceEntry)
		bf.mu.Lock()
		defer bf.mu.Unlock()
		if !bf.banExpiry.IsZero() && time.Now().Before(bf.banExpiry) {
			return true
		}
	}
	return false
}

func (rl *RateLimiter) recordAuthFailure(ip string) {
	now := time.Now()

	entry, _ := rl.bruteForce.LoadOrStore(ip, &bruteForceEntry{})
	bf := entry.(*bruteForceEntry)

	bf.mu.Lock()
	defer bf.mu.Unlock()

	bf.failures++
	rl.logger.Debug("admin auth failure", "ip", ip, "failures", bf.failures, "threshold", rl.config.BruteForceThreshold)

	if bf.failures >= rl.config.BruteForceThreshold {
		bf.bannedAt = now
		bf.banExpiry = now.Add(rl.config.BruteForceBan)
		rl.logger.Warn("IP banned after repeated auth failures", "ip", ip, "ban", rl.config.BruteForceBan)
	}
}
