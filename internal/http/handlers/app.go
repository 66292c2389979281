package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"producer/internal/domain"
	"producer/internal/infra"
	"producer/internal/pipeline"
)

// App holds the handler dependencies.
type App struct {
	Service *pipeline.Service
	Logger  infra.Logger
}

func NewApp(service *pipeline.Service, logger infra.Logger) *App {
	return &App{Service: service, Logger: infra.ComponentLogger(logger, "http")}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// domainError maps the pipeline error taxonomy onto HTTP status codes.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrMalformedResponse):
		a.error(w, http.StatusBadGateway, "provider_failure", err.Error())
	case errors.Is(err, domain.ErrGenerationFailed):
		a.error(w, http.StatusBadGateway, "generation_failed", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("unhandled error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
