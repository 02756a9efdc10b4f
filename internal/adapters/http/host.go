package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Venue/internal/auth"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	ctxHost        = "host"
	sessionHostKey = "host_until"
)

// HostSessionMiddleware marks the request as host when the session carries an
// unexpired host login or the Authorization header holds a valid host token.
func HostSessionMiddleware(a *auth.HostAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		if until, ok := s.Get(sessionHostKey).(int64); ok && time.Now().Unix() < until {
			c.Set(ctxHost, true)
		} else if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && a.VerifyHostToken(token) == nil {
			c.Set(ctxHost, true)
		}
		c.Next()
	}
}

// RequireHost rejects requests without a host session or bearer token.
func RequireHost() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ctxHost) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "host role required"})
			return
		}
		c.Next()
	}
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid password"})
		return
	}
	token, exp, err := h.auth.Login(req.Password)
	switch {
	case errors.Is(err, auth.ErrDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "host login disabled"})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		log.Warn().Str("module", "adapters.http").Str("ip", c.ClientIP()).Msg("host login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Msg("host login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	s := sessions.Default(c)
	s.Set(sessionHostKey, exp.Unix())
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
	}
	log.Info().Str("module", "adapters.http").Str("ip", c.ClientIP()).Msg("host logged in")
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp})
}

func (h *handlers) logout(c *gin.Context) {
	s := sessions.Default(c)
	s.Delete(sessionHostKey)
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
	}
	c.Status(http.StatusNoContent)
}
