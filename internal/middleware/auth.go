package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

const (
	ContextPrincipal = "principal"
	ContextSessionID = "session_id"
)

// SessionStore resolves the server-side session behind a token.
type SessionStore interface {
	GetUserSession(ctx context.Context, principal models.Principal, sessionID string) (*models.UserSession, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, principal models.Principal, action string, limit int, window time.Duration) (bool, error)
}

// AuthMiddleware accepts a bearer token or a token query parameter (for
// websocket clients). When sessions is non-nil the token's session must
// still exist.
func AuthMiddleware(jwtService *services.JWTService, sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if sessions != nil {
			if _, err := sessions.GetUserSession(c.Request.Context(), claims.Principal, claims.SessionID); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
				c.Abort()
				return
			}
		}

		c.Set(ContextPrincipal, claims.Principal)
		c.Set(ContextSessionID, claims.SessionID)

		c.Next()
	}
}

// Principal returns the authenticated caller.
func Principal(c *gin.Context) models.Principal {
	if v, ok := c.Get(ContextPrincipal); ok {
		if p, ok := v.(models.Principal); ok {
			return p
		}
	}
	return models.ZeroPrincipal
}

// RequireOwner rejects callers other than the ledger owner.
func RequireOwner(access *services.AccessControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Principal(c) != access.Owner() {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Owner access required",
				"code":  "Unauthorized",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func RateLimitMiddleware(limiter RateLimiter, playsPerMinute int, log *logrus.Logger) gin.HandlerFunc {
	if playsPerMinute <= 0 {
		playsPerMinute = services.DefaultRateLimitPlays
	}

	return func(c *gin.Context) {
		principal := Principal(c)
		if principal == models.ZeroPrincipal {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var action string
		var limit int
		window := time.Minute

		switch {
		case strings.HasSuffix(path, "/games/play"):
			action = "play"
			limit = playsPerMinute
		case strings.HasSuffix(path, "/rewards/claim"):
			action = "claim"
			limit = services.DefaultRateLimitClaims
		default:
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), principal, action, limit, window)
		if err != nil {
			log.WithError(err).WithField("principal", principal).Warn("rate limit check failed")
		}
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		if p := Principal(c); p != models.ZeroPrincipal {
			entry = entry.WithField("principal", p)
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request handled")
		}
	}
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Issuer-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
