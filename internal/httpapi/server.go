package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sentinel-chat/internal/app"
	"github.com/suPer8Hu/sentinel-chat/internal/httpapi/handlers"
	"go.uber.org/zap"
)

// NewHandler wires the handlers to a.
func NewHandler(a *app.App) (*handlers.Handler, error) {
	states, err := handlers.NewStates(a.Cfg.StateCacheSize, a.Catalog)
	if err != nil {
		return nil, err
	}
	return &handlers.Handler{
		Cfg:     a.Cfg,
		Catalog: a.Catalog,
		States:  states,
		Turns:   a.Turns,
		Docs:    a.Docs,
		Logger:  a.Logger.Named("http"),
	}, nil
}

// Serve runs the HTTP API until ctx is done, then drains in-flight requests.
func Serve(ctx context.Context, a *app.App) error {
	gin.SetMode(gin.ReleaseMode)

	h, err := NewHandler(a)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.Cfg.HTTPAddr,
		Handler:           NewRouter(h, a.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("api listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
