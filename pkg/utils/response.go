package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	Total     int    `json:"total,omitempty"`
	Returned  int    `json:"returned,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func SendSuccessWithMeta(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// SendAccepted acknowledges work that continues in the background
func SendAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    data,
	})
}

func SendError(c *gin.Context, statusCode int, err *AppError) {
	c.JSON(statusCode, Response{
		Success: false,
		Error:   err,
	})
}

func SendValidationError(c *gin.Context, message string, details string) {
	SendError(c, http.StatusBadRequest, NewAppError(ErrCodeValidation, message, details))
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, NewAppError(ErrCodeNotFound, message))
}

func SendInternalError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, NewAppError(ErrCodeInternal, message))
}

func SendConflict(c *gin.Context, message string) {
	SendError(c, http.StatusConflict, NewAppError(ErrCodeConflict, message))
}

func SendServiceUnavailable(c *gin.Context, message string, details ...string) {
	SendError(c, http.StatusServiceUnavailable, NewAppError(ErrCodeServiceUnavailable, message, details...))
}

// SendServiceError maps the sentinel wrapped by err to a status code. Errors
// without a known sentinel are attached to the context and reported as 500.
func SendServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMappingUnavailable):
		SendError(c, http.StatusServiceUnavailable, NewAppError(ErrCodeMappingUnavailable,
			"Player mapping not built yet", "trigger POST /api/v1/refresh"))
	case errors.Is(err, ErrInvalidInput):
		SendValidationError(c, "Invalid input", err.Error())
	case errors.Is(err, ErrNotFound):
		SendNotFound(c, err.Error())
	case errors.Is(err, ErrConflict):
		SendConflict(c, err.Error())
	case errors.Is(err, ErrServiceUnavailable):
		SendServiceUnavailable(c, err.Error())
	default:
		_ = c.Error(err)
		SendInternalError(c, ErrInternalServer.Error())
	}
}
