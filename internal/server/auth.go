package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const contextSubjectKey = "auth_subject"

// APIKeyRequired authenticates requests against the configured key set. The
// bearer token is "<name>.<secret>"; the name selects the bcrypt hash so the
// comparison cost stays constant in the number of configured keys.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		name, secret, ok := strings.Cut(parts[1], ".")
		if !ok || name == "" || secret == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		hash, ok := s.cfg.Auth.APIKeys[name]
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextSubjectKey, name)
		c.Next()
	}
}

// AdminRequired checks the authenticated subject against the RBAC policy for
// the requested path and method.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString(contextSubjectKey)
		if subject == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		allowed, err := s.enforcer.Enforce(subject, c.FullPath(), c.Request.Method)
		if err != nil {
			s.log.Error("authorization check failed", zap.String("subject", subject), zap.Error(err))
			AbortWithError(c, ErrInternal)
			return
		}
		if !allowed {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}
