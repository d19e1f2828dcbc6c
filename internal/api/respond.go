package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pinnity/pinnity/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// classify maps service errors onto an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case service.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case service.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case service.IsPrecondition(err):
		return http.StatusConflict, "precondition_failed"
	case errors.Is(err, service.ErrRedemptionLimitReached):
		return http.StatusUnprocessableEntity, "redemption_limit_reached"
	case errors.Is(err, service.ErrDealSoldOut):
		return http.StatusUnprocessableEntity, "sold_out"
	case errors.Is(err, service.ErrDealNotRedeemable):
		return http.StatusUnprocessableEntity, "not_redeemable"
	case errors.Is(err, service.ErrInvalidRedemptionCode):
		return http.StatusUnprocessableEntity, "invalid_redemption_code"
	}
	return http.StatusInternalServerError, "internal"
}

// abortWithError writes the error body and stops the handler chain.
// Internal errors are logged and their message is not sent to the client.
func abortWithError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	body := errorResponse{Error: code, Message: err.Error()}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
		body.Message = verr.Message
	}
	if status == http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(ctxRequestID),
			"error", err,
		)
		body.Message = "internal server error"
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid_input", Message: message})
}
