package response

import (
	"errors"
	"net/http"
	"todo_tracker/internal/apperror"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Error writes err as a JSON error body with the status of its kind.
// Internal failures are logged and replaced by a generic message.
func Error(c *gin.Context, err error) {
	status := apperror.StatusCode(err)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"request_id": c.GetString(RequestIDKey),
		}).Error("Request failed")
	}

	body := gin.H{"error": apperror.Message(err)}

	var vErr *apperror.ValidationError
	if errors.As(err, &vErr) {
		body["error"] = apperror.ErrValidationFailed.Error()
		body["details"] = vErr.Fields
	}

	c.JSON(status, body)
}

// BadRequest reports a body or parameter that could not be decoded.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"
