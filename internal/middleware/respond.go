package middleware

import "github.com/gin-gonic/gin"

// AbortWithErrors stops the chain with the {success:false, errors:[...]}
// envelope every JSON route uses.
func AbortWithErrors(c *gin.Context, status int, messages ...string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"errors":  messages,
	})
}
