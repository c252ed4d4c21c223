package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
	"github.com/noah-isme/od-approval-api/pkg/response"
)

// RequireRoles admits only callers whose token role is listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.WithDetails(appErrors.ErrForbidden, "role not permitted for this endpoint", map[string]interface{}{
				"role": claims.Role,
			}))
			return
		}
		c.Next()
	}
}

// Reviewers admits staff and HOD callers.
func Reviewers() gin.HandlerFunc {
	return RequireRoles(models.RoleStaff, models.RoleHOD)
}
