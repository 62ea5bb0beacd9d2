package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondError writes {"error": msg} and stops the handler chain.
func RespondError(c *gin.Context, msg string, code int) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
