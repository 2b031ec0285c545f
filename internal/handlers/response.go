package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/middleware"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
)

// respondError writes err as the standard failure envelope.
// Internal errors are logged and reported; clients only see a generic message.
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Errorf("Request failed: %v", err)
		utils.CaptureError(err, map[string]string{"route": c.FullPath()})
	}

	body := gin.H{
		"success": false,
		"message": apperror.PublicMessage(err),
	}
	if violations := apperror.Violations(err); len(violations) > 0 {
		body["errors"] = violations
	}
	c.JSON(status, body)
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// bindJSON decodes the body into dst and checks its binding tags.
// Malformed JSON and field violations both answer 400.
func bindJSON(c *gin.Context, dst interface{}) bool {
	return bindJSONWithMessage(c, dst, "Validation failed")
}

func bindJSONWithMessage(c *gin.Context, dst interface{}, message string) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	if violations := utils.ValidationMessages(err); len(violations) > 0 {
		respondError(c, apperror.Validation(message, violations...))
		return false
	}
	respondError(c, apperror.Validation("Invalid request data", err.Error()))
	return false
}

// requireActor returns the authenticated operator or answers 401
func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		respondError(c, apperror.Unauthorized("Authentication required"))
		return models.Actor{}, false
	}
	return actor, true
}
