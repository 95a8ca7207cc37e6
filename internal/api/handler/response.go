package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/footfall/internal/api/middleware"
	"github.com/timmy/footfall/internal/media"
	"github.com/timmy/footfall/internal/service"
)

// statusFor maps an error to the HTTP status reported to the console.
func statusFor(err error) int {
	var apiErr *service.APIError
	switch {
	case errors.Is(err, service.ErrIncompleteInputs),
		errors.Is(err, service.ErrInvalidSubWindow),
		errors.Is(err, media.ErrUnsupportedType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrVideoMissing),
		errors.Is(err, service.ErrJobInFlight),
		errors.Is(err, service.ErrJobNotCompleted):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoActiveJob):
		return http.StatusNotFound
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": message}, using the job service's wording
// when it supplied one.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": service.UserMessage(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request: " + err.Error(),
	})
}
