package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

// statusForError maps journey error kinds onto HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, journey.ErrValidation):
		return http.StatusBadRequest, journey.ErrValidation.Error()
	case errors.Is(err, journey.ErrNotFound):
		return http.StatusNotFound, journey.ErrNotFound.Error()
	case errors.Is(err, journey.ErrNotYetAllowed):
		return http.StatusForbidden, journey.ErrNotYetAllowed.Error()
	case errors.Is(err, journey.ErrNotInitialized):
		return http.StatusInternalServerError, journey.ErrNotInitialized.Error()
	case errors.Is(err, journey.ErrCatalogGap):
		return http.StatusInternalServerError, journey.ErrCatalogGap.Error()
	default:
		return http.StatusInternalServerError, journey.ErrInternal.Error()
	}
}

func (h *httpHandler) writeServiceError(c *gin.Context, message string, err error) {
	status, kind := statusForError(err)
	response := errorResponse{Error: kind}

	var serviceErr *journey.ServiceError
	if errors.As(err, &serviceErr) {
		response.Code = serviceErr.Code()
	}
	if status < http.StatusInternalServerError {
		response.Message = userMessage(err)
	} else {
		h.logger.Error(message, zap.String("code", response.Code), zap.Error(err))
	}
	c.JSON(status, response)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, journey.ErrNotYetAllowed):
		return "cannot rate this album yet"
	case errors.Is(err, journey.ErrNotFound):
		return "requested resource does not exist"
	default:
		return err.Error()
	}
}

func (h *httpHandler) writeBindingError(c *gin.Context, err error) {
	response := errorResponse{Error: "invalid_request"}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldErr := range validationErrors {
			response.Details = append(response.Details, describeFieldError(fieldErr))
		}
	}
	c.JSON(http.StatusBadRequest, response)
}

func describeFieldError(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldErr.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fieldErr.Field(), fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fieldErr.Field(), fieldErr.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fieldErr.Field(), fieldErr.Tag())
	}
}
