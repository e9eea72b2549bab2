package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/shiroonigami23-ui/market-intelligence/internal/alerts"
	"github.com/shiroonigami23-ui/market-intelligence/internal/alertsvc"
	"github.com/shiroonigami23-ui/market-intelligence/internal/httpx"
	"github.com/shiroonigami23-ui/market-intelligence/internal/metrics"
)

type alertHandler struct {
	svc *alertsvc.Service
	log zerolog.Logger
}

func NewAlertRouter(svc *alertsvc.Service, collectors *metrics.Collectors, log zerolog.Logger) http.Handler {
	h := &alertHandler{svc: svc, log: log}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(15 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "alert-service"})
	})
	router.Handle("/metrics", collectors.Handler())

	router.Route("/v1/rules", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.delete)
		r.Patch("/{id}/active", h.setActive)
		r.Post("/{id}/dismiss", h.dismiss)
		r.Post("/{id}/evaluate", h.evaluate)
	})

	return router
}

func (h *alertHandler) list(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": h.svc.List()})
}

func (h *alertHandler) create(w http.ResponseWriter, r *http.Request) {
	var def alerts.Definition
	if err := httpx.DecodeJSON(w, r, &def); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	rule, err := h.svc.Create(r.Context(), def)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rule)
}

func (h *alertHandler) get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rule)
}

func (h *alertHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *alertHandler) setActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsActive *bool `json:"is_active"`
	}
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if body.IsActive == nil {
		httpx.WriteError(w, http.StatusBadRequest, errors.New("is_active is required"))
		return
	}
	rule, err := h.svc.SetActive(r.Context(), chi.URLParam(r, "id"), *body.IsActive)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rule)
}

func (h *alertHandler) dismiss(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.Dismiss(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rule)
}

func (h *alertHandler) evaluate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value *float64 `json:"value"`
	}
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if body.Value == nil {
		httpx.WriteError(w, http.StatusBadRequest, errors.New("value is required"))
		return
	}
	rule, fired, err := h.svc.Evaluate(r.Context(), chi.URLParam(r, "id"), *body.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"rule": rule, "fired": fired})
}

func (h *alertHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, alerts.ErrInvalidRule):
		httpx.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, alerts.ErrRuleNotFound):
		httpx.WriteError(w, http.StatusNotFound, err)
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
		httpx.WriteError(w, http.StatusInternalServerError, err)
	}
}
