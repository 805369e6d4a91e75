package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GET /api/stops
func (h Handler) ListStops(c *gin.Context) {
	stops, err := h.Stops.Stops(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stops": stops})
}

// GET /api/stops/nearby?lat=&lng=&radius_m=
func (h Handler) NearbyStops(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		respondError(c, http.StatusBadRequest, "validation_error", "lat and lng are required coordinates", nil)
		return
	}
	var radius float64
	if raw := c.Query("radius_m"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			respondError(c, http.StatusBadRequest, "validation_error", "radius_m must be a positive number", nil)
			return
		}
		radius = r
	}
	near, err := h.Stops.Nearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stops": near})
}
