package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const currentUserContextKey = "current_user"

// bootstrapAdmin is the synthetic account behind the config-level admin
// token, used to provision real users before any exist.
var bootstrapAdmin = User{Name: "bootstrap-admin", Role: RoleAdmin, Active: true}

func (s *Server) requireUser(c *gin.Context) {
	authz := c.GetHeader("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	token := strings.TrimPrefix(authz, "Bearer ")

	if s.adminToken != "" && secureCompare(token, s.adminToken) {
		admin := bootstrapAdmin
		c.Set(currentUserContextKey, &admin)
		c.Next()
		return
	}

	var rec APIToken
	if err := s.db.Where("token_hash = ?", s.tokenHasher.HashString(token)).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token lookup failed"})
		}
		return
	}
	if rec.RevokedAt != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
		return
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
		return
	}

	var user User
	if err := s.db.First(&user, rec.UserID).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token user missing"})
		return
	}
	if !user.Active {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account deactivated"})
		return
	}

	c.Set(currentUserContextKey, &user)
	c.Next()
}

func (s *Server) requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		for _, role := range roles {
			if u.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

func currentUser(c *gin.Context) *User {
	if value, ok := c.Get(currentUserContextKey); ok {
		if u, ok := value.(*User); ok {
			return u
		}
	}
	return nil
}

// rateLimitKey feeds the limiter's identifier derivation: the user id when
// authenticated, empty otherwise so the client IP is used.
func rateLimitKey(c *gin.Context) string {
	u := currentUser(c)
	if u == nil {
		return ""
	}
	if u.ID == 0 {
		return "bootstrap-admin"
	}
	return strconv.FormatUint(uint64(u.ID), 10)
}

func generateAPIToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
