package handlers

import (
	"errors"
	"log"
	"net/http"

	"gocart/internal/domain"
	"gocart/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	resp := ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}
	reqID := middleware.GetRequestID(c)
	if reqID != "" {
		c.JSON(status, gin.H{
			"error":      resp.Error,
			"code":       resp.Code,
			"details":    resp.Details,
			"request_id": reqID,
			"message":    message,
		})
		return
	}
	c.JSON(status, resp)
}

// stepDetails tells the client which step of the booking flow to go back to.
func stepDetails(field, step string, seatIDs []int64) gin.H {
	d := gin.H{}
	if field != "" {
		d["field"] = field
	}
	if step != "" {
		d["step"] = step
	}
	if len(seatIDs) > 0 {
		d["seat_ids"] = seatIDs
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	var (
		ve domain.ValidationError
		ce domain.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), stepDetails(ve.Field, ve.Step, nil))
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &ce):
		respondError(c, http.StatusConflict, "conflict", err.Error(), stepDetails("", ce.Step, ce.SeatIDs))
	case domain.IsUnauthorized(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case domain.IsForbidden(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	default:
		log.Printf("[HTTP] request_id=%s internal error: %v", middleware.GetRequestID(c), err)
		respondError(c, http.StatusInternalServerError, "internal_error", "something went wrong", nil)
	}
}
