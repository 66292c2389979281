package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"producer/internal/pipeline"
)

type startBatchRequest struct {
	Count        int    `json:"count"`
	LookbackDays int    `json:"lookback_days"`
	MinViews     int    `json:"min_views"`
	Topic        string `json:"topic"`
}

type approveHeadlinesRequest struct {
	ApprovedIDs []string          `json:"approved_ids"`
	RejectedIDs []string          `json:"rejected_ids"`
	Edits       map[string]string `json:"edits"`
}

type approveScriptsRequest struct {
	ApprovedIDs []string          `json:"approved_ids"`
	RejectedIDs []string          `json:"rejected_ids"`
	Feedback    map[string]string `json:"feedback"`
}

type regenerateRequest struct {
	Feedback string `json:"feedback"`
}

func (a *App) StartBatch(w http.ResponseWriter, r *http.Request) {
	var req startBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	batch, err := a.Service.StartBatch(r.Context(), pipeline.StartRequest{
		Count:        req.Count,
		LookbackDays: req.LookbackDays,
		MinViews:     req.MinViews,
		Topic:        req.Topic,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, batch)
}

func (a *App) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := a.Service.GetBatch(r.Context(), chi.URLParam(r, "batch_id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, batch)
}

func (a *App) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	summaries, err := a.Service.ListBatches(r.Context(), limit)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": summaries})
}

func (a *App) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := a.Service.DeleteBatch(r.Context(), chi.URLParam(r, "batch_id")); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ApproveHeadlines(w http.ResponseWriter, r *http.Request) {
	var req approveHeadlinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	batch, err := a.Service.ApproveHeadlines(r.Context(), chi.URLParam(r, "batch_id"), req.ApprovedIDs, req.RejectedIDs, req.Edits)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, batch)
}

func (a *App) ApproveScripts(w http.ResponseWriter, r *http.Request) {
	var req approveScriptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	batch, err := a.Service.ApproveScripts(r.Context(), chi.URLParam(r, "batch_id"), req.ApprovedIDs, req.RejectedIDs, req.Feedback)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, batch)
}

func (a *App) StartProduction(w http.ResponseWriter, r *http.Request) {
	ticket, err := a.Service.StartProduction(r.Context(), chi.URLParam(r, "batch_id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, ticket)
}

func (a *App) RegenerateItem(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	item, err := a.Service.RegenerateItem(r.Context(), chi.URLParam(r, "batch_id"), chi.URLParam(r, "item_id"), req.Feedback)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, item)
}
