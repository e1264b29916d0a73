package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"medaccess/internal/access/handler"
	"medaccess/pkg/config"
	"medaccess/pkg/contracts"
	"medaccess/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// Application owns the HTTP server and hangs a different middleware stack
// over each surface: bare probes for health, a permissive stack for the
// terminal webhook (devices send arbitrary content types and must never hit
// partner auth), and the full stack for the partner API.
type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.RateLimiter
	healthHandler    http.Handler
	eventsHandler    http.Handler
	apiHandler       http.Handler
}

func NewApplication() *Application {
	return &Application{}
}

func (a *Application) SetApp(cfg *config.Config, apiHandler, eventsHandler contracts.Handler, verifyToken func(r *http.Request, token string) error) {
	a.cfg = cfg
	a.setHealthHandler()
	a.setEventsHandler(eventsHandler)
	a.setAPIHandler(apiHandler, verifyToken)
	a.setAppServer()
}

func (a *Application) setHealthHandler() {
	healthRouter := httprouter.New()
	healthHandler := handler.NewHealthHandler(a.cfg.Client.Mongo, a.cfg.Log)
	healthHandler.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setEventsHandler(eventsHandler contracts.Handler) {
	eventsRouter := httprouter.New()
	eventsHandler.RegisterRoutes(eventsRouter)

	var eventsHTTPHandler http.Handler = eventsRouter
	eventsHTTPHandler = middleware.MaxRequestSize(a.cfg.MaxRequestSize)(eventsHTTPHandler)
	eventsHTTPHandler = middleware.RequestLogging(a.cfg.Log)(eventsHTTPHandler)
	eventsHTTPHandler = middleware.Recovery(a.cfg.Log)(eventsHTTPHandler)
	a.eventsHandler = eventsHTTPHandler
	a.cfg.Log.Info("Terminal webhook configured without content-type or token middleware")
}

func (a *Application) setAPIHandler(apiHandler contracts.Handler, verifyToken func(r *http.Request, token string) error) {
	apiRouter := httprouter.New()
	apiHandler.RegisterRoutes(apiRouter)

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.DefaultKeyExtractor,
		a.cfg.Log,
	)

	var apiHTTPHandler http.Handler = apiRouter
	apiHTTPHandler = middleware.Idempotency(a.idempotencyStore, "Idempotency-Key")(apiHTTPHandler)
	apiHTTPHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(apiHTTPHandler)
	apiHTTPHandler = middleware.RateLimit(a.rateLimiter)(apiHTTPHandler)
	apiHTTPHandler = middleware.APITokenAuth(verifyToken, a.cfg.Log)(apiHTTPHandler)
	apiHTTPHandler = middleware.ContentTypeValidation(a.cfg.Log)(apiHTTPHandler)
	apiHTTPHandler = middleware.MaxRequestSize(a.cfg.MaxRequestSize)(apiHTTPHandler)
	apiHTTPHandler = middleware.RequestLogging(a.cfg.Log)(apiHTTPHandler)
	apiHTTPHandler = middleware.Recovery(a.cfg.Log)(apiHTTPHandler)
	a.apiHandler = apiHTTPHandler
	a.cfg.Log.Info("Partner API configured with full security middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/medical_access/health", a.healthHandler)
	mux.Handle("/medical_access/hik/", a.eventsHandler)
	mux.Handle("/medical_access/api/", a.apiHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.cfg.Log.Info("Stopping background workers...")
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
