package middleware

import (
	"github.com/gin-gonic/gin"

	"contactbook/internal/apperr"
	"contactbook/internal/ids"
)

// ValidID rejects requests whose path parameter is not a well-formed id
// before they reach the store.
func ValidID(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ids.Valid(c.Param(param)) {
			_ = c.Error(apperr.InvalidInput("Invalid " + param + " format"))
			c.Abort()
			return
		}
		c.Next()
	}
}
