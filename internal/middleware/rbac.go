package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ssn-coe/rcms-api/internal/models"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/response"
)

// RequireRoles blocks requests whose authenticated role is not in the
// allowed set.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.PermissionDeniedf("%s accounts cannot access this resource", claims.Role))
			c.Abort()
			return
		}
		c.Next()
	}
}
