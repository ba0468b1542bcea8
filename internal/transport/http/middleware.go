package http

import (
	"context"
	"strings"
	"time"

	"matrix-quest-service/internal/auth"
	"matrix-quest-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionKey = "session"

// requireSession resolves the bearer token into a domain.Session.
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			h.writeError(c, domain.ErrNotLoggedIn)
			c.Abort()
			return
		}
		session, err := h.tokens.Parse(token)
		if err != nil {
			h.writeError(c, auth.ErrInvalidToken)
			c.Abort()
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) domain.Session {
	session, _ := c.MustGet(sessionKey).(domain.Session)
	return session
}

// requestTimeout bounds every store round-trip made on behalf of the request.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
