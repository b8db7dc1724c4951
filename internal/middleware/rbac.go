package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-eapproval-api/internal/models"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
	"github.com/noah-isme/college-eapproval-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff restricts a route to the three approver roles.
func RequireStaff() gin.HandlerFunc {
	return RequireRoles(models.RoleClassTeacher, models.RoleHOD, models.RolePrincipal)
}
