package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	accountdomain "github.com/gluufederation/ecommerce/internal/account/domain"
	"github.com/gluufederation/ecommerce/internal/invoice"
	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
	"github.com/gluufederation/ecommerce/internal/signup"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{Field: "request", Code: "invalid_request", Message: "invalid request"},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, signup.ErrAlreadyActive),
		errors.Is(err, paymentdomain.ErrNoPaymentMethod):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, signup.ErrEmailTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "email already registered",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, signup.ErrInvalidActivation),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrAccountMissing),
		errors.Is(err, licensedomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrCardNotFound),
		errors.Is(err, invoice.ErrNoUsage),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, licensedomain.ErrRemote):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "upstream service error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
