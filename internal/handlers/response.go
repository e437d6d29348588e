package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uplinepay/uplinepay-backend/internal/hierarchy"
	"github.com/uplinepay/uplinepay-backend/internal/ledger"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Success: false,
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondDomainError maps the ledger/hierarchy error taxonomy onto HTTP
// statuses. Validation and state errors were rejected before any mutation,
// so every one of these is safe to retry after correction.
func RespondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		RespondError(c, http.StatusBadRequest, "INVALID_AMOUNT", err)
	case errors.Is(err, ledger.ErrInvalidCommissionRange):
		RespondError(c, http.StatusBadRequest, "INVALID_COMMISSION_RANGE", err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		RespondError(c, http.StatusBadRequest, "INSUFFICIENT_BALANCE", err)
	case errors.Is(err, ledger.ErrUnauthorized):
		RespondError(c, http.StatusForbidden, "UNAUTHORIZED", err)
	case errors.Is(err, hierarchy.ErrUserNotFound):
		RespondError(c, http.StatusNotFound, "USER_NOT_FOUND", err)
	case errors.Is(err, hierarchy.ErrCycleDetected):
		RespondError(c, http.StatusConflict, "CYCLE_DETECTED", err)
	default:
		RespondError(c, http.StatusInternalServerError, "INTERNAL", err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
