package handlers

import (
	"fmt"
	"net/http"

	"gocart/internal/services"

	"github.com/gin-gonic/gin"
)

// POST /api/search
func (h Handler) Search(c *gin.Context) {
	var in services.SearchInput
	if !BindJSONOrError(c, &in) {
		return
	}
	res, err := h.reservations(c).Search(c.Request.Context(), caller(c), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/schedules/:id
func (h Handler) SeatMap(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	m, err := h.reservations(c).SeatMap(c.Request.Context(), caller(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GET /api/schedules/:id/track
func (h Handler) Track(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.reservations(c).Track(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type selectSeatsRequest struct {
	SeatIDs IDList `json:"seat_ids"`
}

// POST /api/schedules/:id/seats
func (h Handler) SelectSeats(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req selectSeatsRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	sel, err := h.reservations(c).SelectSeats(c.Request.Context(), caller(c), id, req.SeatIDs)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schedule_id": sel.ScheduleID,
		"seat_ids":    sel.SeatIDs,
		"confirm_url": fmt.Sprintf("/api/schedules/%d/confirm", id),
	})
}

// GET /api/schedules/:id/confirm
func (h Handler) ConfirmView(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.reservations(c).ConfirmView(c.Request.Context(), caller(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type placeBookingRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// POST /api/schedules/:id/confirm
func (h Handler) PlaceBooking(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	// the body is optional
	var req placeBookingRequest
	if c.Request.ContentLength > 0 && !BindJSONOrError(c, &req) {
		return
	}
	b, err := h.reservations(c).PlaceBooking(c.Request.Context(), caller(c), id, req.PaymentMethod)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"booking":     b,
		"payment_url": fmt.Sprintf("/api/bookings/%d/payment", b.ID),
	})
}

// GET /api/bookings/:id/payment
func (h Handler) PaymentView(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.reservations(c).PaymentView(c.Request.Context(), caller(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type confirmPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// POST /api/bookings/:id/payment
func (h Handler) ConfirmPayment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req confirmPaymentRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	b, err := h.reservations(c).ConfirmPayment(c.Request.Context(), caller(c), id, req.PaymentMethod)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking":    b,
		"ticket_url": fmt.Sprintf("/api/bookings/%d/ticket.pdf", b.ID),
	})
}

// POST /api/admin/bookings/:id/cancel
func (h Handler) CancelBooking(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	b, err := h.reservations(c).Cancel(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// GET /api/bookings/:id/ticket.pdf
func (h Handler) DownloadTicket(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	pdfBytes, filename, err := h.tickets(c).GenerateTicket(c.Request.Context(), caller(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
