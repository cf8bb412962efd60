// Package status serves the intersection's current phase over HTTP. It is
// read-only: nothing here can reach the GPIO backend.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/stoplight/intersection"
)

var srvlog zerolog.Logger

func init() {
	srvlog = log.With().Str("component", "status").Logger()
}

// Source is what the server reports on; *intersection.Controller fits.
type Source interface {
	Status() intersection.Status
	History() []intersection.Status
	Subscribe() (func(), <-chan intersection.Status)
}

/////////////////////
// Response helpers

func RespondInternalServiceError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(err.Error()))
}

func RespondJSON(w http.ResponseWriter, body any) {
	w.Header().Add("Content-Type", "application/json")
	w.Header().Add("Cache-Control", "no-cache, no-store")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		RespondInternalServiceError(w, err)
	}
}

// NewRouter builds the status API. Middlewares wrap every route.
func NewRouter(src Source, middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			RespondJSON(w, src.Status())
		})

		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			history := src.History()
			if history == nil {
				history = []intersection.Status{}
			}
			RespondJSON(w, history)
		})

		r.Get("/ws", createWebsocketHandler(src))
	})

	return r
}

// Serve listens on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srvlog.Err(err).Msg("Status server shutdown")
		}
	}()

	srvlog.Info().Str("listen", addr).Msg("Launching status server")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
