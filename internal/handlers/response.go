package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError maps a service error to the envelope using the taxonomy
// carried on *apierr.Error; anything untyped is a 500.
func RespondAPIError(c *gin.Context, err error) {
	RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
