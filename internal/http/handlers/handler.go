package handlers

import (
	"database/sql"

	"gocart/internal/http/middleware"
	"gocart/internal/services"

	"github.com/gin-gonic/gin"
)

// Handler holds the services behind the HTTP API. Services are copied per
// request so each call logs with its own request id.
type Handler struct {
	Reservations services.ReservationService
	History      services.HistoryService
	Tickets      services.TicketService
	Auth         services.AuthService
	Stops        *services.StopService
	// DB is nil when running on the in-memory store.
	DB *sql.DB
}

func (h Handler) reservations(c *gin.Context) services.ReservationService {
	svc := h.Reservations
	svc.RequestID = middleware.GetRequestID(c)
	return svc
}

func (h Handler) history(c *gin.Context) services.HistoryService {
	svc := h.History
	svc.RequestID = middleware.GetRequestID(c)
	return svc
}

func (h Handler) tickets(c *gin.Context) services.TicketService {
	svc := h.Tickets
	svc.RequestID = middleware.GetRequestID(c)
	return svc
}

func (h Handler) auth(c *gin.Context) services.AuthService {
	svc := h.Auth
	svc.RequestID = middleware.GetRequestID(c)
	return svc
}
