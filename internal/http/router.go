package api

import (
	"log"
	stdhttp "net/http"

	intconfig "gocart/internal/config"
	"gocart/internal/domain"
	h "gocart/internal/http/handlers"
	"gocart/internal/http/middleware"
	"gocart/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Options carries the cross-cutting collaborators of the router.
type Options struct {
	Tokens  middleware.TokenParser
	Metrics *metrics.Metrics
	// Limiter throttles booking writes; nil disables it.
	Limiter *middleware.RateLimiter
}

func NewRouter(env intconfig.Env, hd h.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.Metrics(opts.Metrics), middleware.CORS(env.CORSOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("warning: failed to set trusted proxies: %v", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	throttle := func(c *gin.Context) { c.Next() }
	if opts.Limiter != nil {
		throttle = opts.Limiter.Handler()
	}

	api := r.Group("/api")
	{
		api.GET("/health", hd.Health)
		api.GET("/db-check", hd.DBCheck)
		api.GET("/routes", hd.Routes)

		// Auth
		api.POST("/auth/login", throttle, hd.Login)

		// Stops
		api.GET("/stops", hd.ListStops)
		api.GET("/stops/nearby", hd.NearbyStops)

		authed := api.Group("", middleware.AuthRequired(opts.Tokens))

		// Booking flow
		student := authed.Group("", middleware.RequireRoles(domain.RoleStudent))
		student.POST("/search", hd.Search)
		student.GET("/schedules/:id", hd.SeatMap)
		student.GET("/schedules/:id/track", hd.Track)
		student.POST("/schedules/:id/seats", throttle, hd.SelectSeats)
		student.GET("/schedules/:id/confirm", hd.ConfirmView)
		student.POST("/schedules/:id/confirm", throttle, hd.PlaceBooking)
		student.GET("/bookings/:id/payment", hd.PaymentView)
		student.POST("/bookings/:id/payment", throttle, hd.ConfirmPayment)
		student.GET("/bookings/:id/ticket.pdf", hd.DownloadTicket)
		student.GET("/me/history", hd.RideHistory)

		// Driver
		driver := authed.Group("/driver", middleware.RequireRoles(domain.RoleDriver))
		driver.GET("/schedules", hd.DriverSchedules)
		driver.GET("/trips/:id/details", hd.TripDetails)
		driver.GET("/trips/:id/roster", hd.TripRoster)

		// Admin
		admin := authed.Group("/admin", middleware.RequireRoles(domain.RoleAdmin))
		admin.POST("/bookings/:id/cancel", hd.CancelBooking)
	}

	h.SetRouter(r)
	return r
}
