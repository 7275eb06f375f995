package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mileage/auth"
	dbt "mileage/db/db"
	"mileage/service"
	"mileage/settle"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusOf maps domain errors to an HTTP status and a stable error code.
func statusOf(err error) (int, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrNoActor):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, dbt.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, service.ErrDuplicateSubmission):
		return http.StatusConflict, "duplicate_submission"
	case errors.Is(err, service.ErrSettlementLocked):
		return http.StatusConflict, "settlement_locked"
	case errors.Is(err, service.ErrSubmissionPending):
		return http.StatusConflict, "submission_pending"
	case errors.Is(err, dbt.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, settle.ErrMissingRates):
		return http.StatusUnprocessableEntity, "missing_rates"
	case errors.Is(err, settle.ErrMissingFuelPrice):
		return http.StatusUnprocessableEntity, "missing_fuel_price"
	case errors.Is(err, settle.ErrMissingFuelEfficiency):
		return http.StatusUnprocessableEntity, "missing_fuel_efficiency"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *handler) fail(c *gin.Context, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "validation"})
}
