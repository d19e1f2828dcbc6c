package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pinnity/pinnity/internal/auth"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/metrics"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/service"
)

// Context keys set by the middleware.
const (
	ctxRequestID = "requestID"
	ctxUserID    = "userID"
	ctxUserRole  = "userRole"
	ctxUser      = "user"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the client's when sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Set(ctxRequestID, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one structured line per request.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(ctxRequestID),
		)
	}
}

// Metrics records request latency by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// clientLimiter hands out one token bucket per client IP.
type clientLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	return &clientLimiter{limit: rate.Limit(rps), burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// RateLimit rejects clients exceeding rps with 429. rps <= 0 disables it.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = int(rps)
	}
	limiter := newClientLimiter(rps, burst)
	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: "too many requests"})
			return
		}
		c.Next()
	}
}

// Authenticate validates the bearer token and loads the user from the
// store, so a role change applies to the next request.
func Authenticate(tokens *auth.TokenManager, users *service.AuthService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "missing authorization header"})
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "use 'Bearer <token>'"})
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "invalid token"})
			return
		}
		userID, err := id.ParseUserID(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "invalid token subject"})
			return
		}
		u, err := users.Me(c.Request.Context(), userID)
		if err != nil {
			if service.IsNotFound(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "user no longer exists"})
				return
			}
			abortWithError(c, logger, err)
			return
		}

		c.Set(ctxUserID, u.ID)
		c.Set(ctxUserRole, string(u.UserType))
		c.Set(ctxUser, u)
		c.Next()
	}
}

// RequireRole lets only the given user types through.
func RequireRole(allowed ...model.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxUserRole)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden", Message: "role missing"})
			return
		}
		for _, t := range allowed {
			if role == string(t) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden", Message: "forbidden"})
	}
}

func currentUserID(c *gin.Context) id.ID {
	v, _ := c.Get(ctxUserID)
	uid, _ := v.(id.ID)
	return uid
}
