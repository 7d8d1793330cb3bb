package middleware

import (
	"net/http"
	"strings"

	"plforum/internal/models"
	"plforum/internal/rbac"
	"plforum/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const CheckUserKey = "user"
const UnreadCountKey = "unread_count"

// SessionUserKey is the session field holding the logged-in user id.
const SessionUserKey = "user_id"

// PolicyDomain is the request domain used for site-wide admin checks.
const PolicyDomain = "site"

// CurrentUser returns the user loaded by LoadUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	u, exists := c.Get(CheckUserKey)
	if !exists {
		return nil
	}
	user, _ := u.(*models.User)
	return user
}

func abortJSON(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// bearerToken extracts "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// LoadUser resolves the caller from a bearer token or the session cookie
// and puts the user on the context. Invalid credentials mean anonymous.
func LoadUser(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uint
		if tok := bearerToken(c); tok != "" {
			id, err := utils.ParseToken(jwtSecret, tok)
			if err != nil {
				abortJSON(c, http.StatusUnauthorized, "invalid token")
				return
			}
			userID = id
		} else if v, ok := sessions.Default(c).Get(SessionUserKey).(uint); ok {
			userID = v
		}

		if userID != 0 {
			var user models.User
			if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err == nil {
				c.Set(CheckUserKey, &user)

				var count int64
				db.WithContext(c.Request.Context()).Model(&models.Notification{}).
					Where("user_id = ? AND is_read = ?", user.ID, false).Count(&count)
				c.Set(UnreadCountKey, count)
			}
		}
		c.Next()
	}
}

// AuthRequired rejects anonymous callers with 401.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			abortJSON(c, http.StatusUnauthorized, "login required")
			return
		}
		c.Next()
	}
}

// RequireStaff rejects non-staff callers with 403.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			abortJSON(c, http.StatusUnauthorized, "login required")
			return
		}
		if !u.IsStaff {
			abortJSON(c, http.StatusForbidden, "permission denied")
			return
		}
		c.Next()
	}
}

// RequirePolicy gates a route on an RBAC decision for (obj, act) in the site domain.
func RequirePolicy(e *rbac.Enforcer, obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			abortJSON(c, http.StatusUnauthorized, "login required")
			return
		}
		ok, err := e.Enforce(c.Request.Context(), u, PolicyDomain, obj, act)
		if err != nil {
			zap.L().Error("rbac enforce failed", zap.String("obj", obj), zap.String("act", act), zap.Error(err))
			abortJSON(c, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			abortJSON(c, http.StatusForbidden, "permission denied")
			return
		}
		c.Next()
	}
}
