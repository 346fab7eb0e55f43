package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/immihelp/formapi/internal/adapter/utils"
	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/handlers"
	"github.com/immihelp/formapi/internal/middleware"
	"github.com/immihelp/formapi/pkg/logging"
)

var (
	server  *http.Server
	_logger *logging.Logger
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	CloseServices    context.CancelFunc
}

func CreateServer(listenAddr string, h *handlers.Handlers, chain *middleware.Chain) {
	_logger = logging.NewLogger("Server")

	r := utils.GetRouter()

	r.Router.Get("/healthz", chain.Wrap(h.HealthHandler))
	r.Router.Post("/api/chat", chain.Wrap(h.ChatHandler))
	r.Router.Post("/api/upload", chain.Wrap(h.UploadHandler))
	r.Router.Post("/api/fill-form", chain.Wrap(h.FillFormHandler))
	r.Router.Get("/api/forms", chain.Wrap(h.ListFormsHandler))

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      r.Router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		server.SetKeepAlivesEnabled(false)

		if err := server.Shutdown(ctx); err != nil {
			_logger.Error("Could not shutdown gracefully", "error", err)
		}

		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Info("Force shut down")
		os.Exit(1)
	}
}
