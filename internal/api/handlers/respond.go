package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/sirupsen/logrus"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
	})
}

// respondError maps rejected input to 400 and everything else to 500.
func respondError(c *gin.Context, logger *logrus.Logger, operation string, err error) {
	if utils.IsValidationError(err) {
		respondBadRequest(c, err.Error())
		return
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"operation": operation,
			"path":      c.FullPath(),
			"error":     err.Error(),
		}).Error("Request failed")
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "Failed to " + operation + ": " + err.Error(),
	})
}

// bindJSON decodes the body into dst, writing a 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
