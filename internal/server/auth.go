package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskboard/internal/auth"
	"taskboard/internal/models"
)

// identityHeader carries the caller identity. This is a plain header contract
// inherited from the original clients, not a session or bearer scheme.
const identityHeader = "X-User"

// Context keys set by identityRequired.
const (
	ctxIdentity = "identity"
	ctxRole     = "role"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// identityRequired resolves the caller identity from the identity header. The
// invited guest is accepted by name alone; any other value must match a
// registered username.
func (s *Server) identityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := strings.TrimSpace(c.GetHeader(identityHeader))
		if username == "" {
			s.respondError(c, http.StatusUnauthorized, fmt.Errorf("missing %s header", identityHeader))
			c.Abort()
			return
		}

		role := models.RoleInvited
		if username != models.RoleInvited {
			user, ok := s.store.Lookup(username)
			if !ok {
				s.respondError(c, http.StatusUnauthorized, fmt.Errorf("unknown user"))
				c.Abort()
				return
			}
			role = user.Role
		}

		c.Set(ctxIdentity, username)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// callerRole returns the role resolved by identityRequired.
func callerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

// handleRegister creates a new account. The optional role defaults to normal.
func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("username and password are required"))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	role := models.NormalizeRole(req.Role)
	if err := s.store.Register(username, models.User{PasswordHash: hash, Role: role}); err != nil {
		s.respondStoreError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"ok": true, "user": username, "role": role})
}

// handleLogin verifies credentials. Unknown usernames and wrong passwords
// produce the identical response so the endpoint never leaks which accounts
// exist.
func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("username and password are required"))
		return
	}

	user, ok := s.store.Lookup(username)
	if err := auth.Authenticate(user, ok, password); err != nil {
		s.respondError(c, http.StatusUnauthorized, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"ok": true, "user": username, "role": user.Role})
}
