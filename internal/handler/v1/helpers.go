package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinvault/clinvault/internal/domain/document"
	"github.com/clinvault/clinvault/internal/domain/profile"
	"github.com/clinvault/clinvault/internal/domain/report"
	"github.com/clinvault/clinvault/internal/pipeline"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondServiceError maps domain errors onto HTTP statuses. Synthesis
// failures map to 502 so the UI can offer an explicit retry.
func respondServiceError(c *gin.Context, err error) {
	var validationErr *profile.ValidationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validationErr.Fields,
		})
	case errors.Is(err, profile.ErrProfileNotFound),
		errors.Is(err, document.ErrDocumentNotFound),
		errors.Is(err, report.ErrReportNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrNoDocuments):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pipeline.ErrSynthesisFailed):
		respondError(c, http.StatusBadGateway, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
