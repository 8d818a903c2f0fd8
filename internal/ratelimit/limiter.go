// Package ratelimit throttles anonymous API traffic per client with a fixed
// window counter in Redis.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"negotiate/api/internal/logger"
)

const keyPrefix = "ratelimit:"

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	client  *redis.Client
	limit   int
	window  time.Duration
	trusted map[string]bool
	now     func() time.Time
	log     *logger.Logger
}

type Options struct {
	Limit          int
	Window         time.Duration
	TrustedProxies []string
}

// New connects to redisURL and verifies it with a ping.
func New(redisURL string, opts Options, log *logger.Logger) (*Limiter, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, opts, log), nil
}

func NewWithClient(client *redis.Client, opts Options, log *logger.Logger) *Limiter {
	if opts.Limit <= 0 {
		opts.Limit = 120
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	trusted := make(map[string]bool, len(opts.TrustedProxies))
	for _, proxy := range opts.TrustedProxies {
		trusted[proxy] = true
	}
	return &Limiter{
		client:  client,
		limit:   opts.Limit,
		window:  opts.Window,
		trusted: trusted,
		now:     time.Now,
		log:     log.With("service", "ratelimit"),
	}
}

// Allow counts one hit for clientKey in the current window.
func (l *Limiter) Allow(ctx context.Context, clientKey string) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	key := keyPrefix + clientKey + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("count request: %w", err)
	}

	count := int(incr.Val())
	if count > l.limit {
		return Decision{Allowed: false, RetryAfter: windowStart.Add(l.window).Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}

// Middleware rejects requests over the limit with 429. Redis failures let
// the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := l.Allow(r.Context(), ClientKey(r, l.trusted, l.now()))
		if err != nil {
			l.log.Warn("rate limit check failed, allowing request", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			seconds := int(decision.RetryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"RATE_LIMITED","error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) Close() error {
	return l.client.Close()
}

func (l *Limiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// ClientKey hashes the day, client ip and user agent so raw addresses never
// reach Redis and keys rotate daily.
func ClientKey(r *http.Request, trusted map[string]bool, now time.Time) string {
	userAgent := r.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}
	sum := sha256.Sum256([]byte(now.Format("2006-01-02") + ":" + ClientIP(r, trusted) + ":" + userAgent))
	return hex.EncodeToString(sum[:])
}

// ClientIP returns the remote address, or the forwarded client address when
// the request came through a trusted proxy.
func ClientIP(r *http.Request, trusted map[string]bool) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !trusted[remote] {
		return remote
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(real) != nil {
		return real
	}
	forwarded := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(forwarded) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(forwarded[i])
		if candidate == "" || trusted[candidate] {
			continue
		}
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	return remote
}
