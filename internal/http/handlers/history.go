package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/me/history
func (h Handler) RideHistory(c *gin.Context) {
	rides, err := h.history(c).RideHistory(c.Request.Context(), caller(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": rides})
}

// GET /api/driver/schedules
func (h Handler) DriverSchedules(c *gin.Context) {
	list, err := h.history(c).DriverSchedules(c.Request.Context(), caller(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": list})
}

// GET /api/driver/trips/:id/details
func (h Handler) TripDetails(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	details, err := h.history(c).TripDetails(c.Request.Context(), caller(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// GET /api/driver/trips/:id/roster
func (h Handler) TripRoster(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	roster, err := h.history(c).TripRoster(c.Request.Context(), caller(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}
