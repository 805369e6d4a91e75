package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gocart/internal/auth"
	"gocart/internal/clock"
	intconfig "gocart/internal/config"
	intdb "gocart/internal/db"
	"gocart/internal/events"
	router "gocart/internal/http"
	"gocart/internal/http/handlers"
	"gocart/internal/http/middleware"
	"gocart/internal/metrics"
	"gocart/internal/repositories"
	"gocart/internal/repositories/memory"
	"gocart/internal/seed"
	"gocart/internal/services"
	"gocart/internal/session"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("gocart: %v", err)
	}
}

// run owns every resource main opens, so deferred cleanup also happens on
// startup failures.
func run() error {
	env, err := intconfig.LoadEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	defer m.Shutdown()

	var store repositories.Store
	switch env.Store {
	case intconfig.StoreMemory:
		store = memory.New()
		log.Println("[STORE] using in-memory store")
	default:
		db, err := intconfig.ConnectDB(env.DBDSN)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer intconfig.CloseDB()
		if err := intdb.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		m.StartDBStatsCollector(db, 15*time.Second)
		store = repositories.NewMySQL(db)
	}

	if env.SeedFile != "" {
		fixtures, err := seed.Load(env.SeedFile)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if _, err := (seed.Seeder{Store: store}).Apply(ctx, fixtures); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	clk := clock.RealClock{Location: env.Location}
	sessions := session.NewMemoryStore(env.SessionTTL, time.Minute, clk)
	defer sessions.Stop()

	var publisher events.Publisher = events.Nop{}
	var nats *events.NATSPublisher
	if env.NATSURL != "" {
		nats, err = events.NewNATSPublisher(env.NATSURL, m)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer nats.Close()
		publisher = nats
	}

	reservations := services.ReservationService{
		Catalog:    store,
		Seats:      store,
		Bookings:   store,
		Sessions:   sessions,
		Clock:      clk,
		Events:     publisher,
		Metrics:    m,
		PendingTTL: env.PendingTTL,
	}
	if nats != nil {
		if _, err := nats.SubscribePayments("gocart-api", 10*time.Second, reservations.ConfirmPaymentEvent); err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
	}

	reaper := services.Reaper{Bookings: store, Clock: clk, Events: publisher, Metrics: m, Interval: env.ReaperInterval}
	go reaper.Run(ctx)

	limiter := middleware.NewRateLimiter(env.RateLimitPerMin, clk)
	defer limiter.Stop()

	signer := auth.Signer{Secret: []byte(env.JWTSecret), TTL: 24 * time.Hour}
	hd := handlers.Handler{
		Reservations: reservations,
		History:      services.HistoryService{Catalog: store, Seats: store, Bookings: store, Users: store, Location: env.Location},
		Tickets:      services.TicketService{Catalog: store, Seats: store, Bookings: store, Users: store, Location: env.Location},
		Auth:         services.AuthService{Users: store, Signer: signer},
		Stops:        &services.StopService{Catalog: store},
		DB:           intconfig.DB,
	}

	// Router (Gin engine)
	r := router.NewRouter(env, hd, router.Options{Tokens: signer, Metrics: m, Limiter: limiter})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://localhost%s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown failed: %v", err)
	}

	log.Println("Server stopped cleanly.")
	return nil
}
