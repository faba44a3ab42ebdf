package api

import (
	"errors"
	"net/http"
	"strconv"

	"pmgmt/services/store"
)

func (a *API) handleListHosts(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.store.Hosts.Overview(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"hosts": summaries})
}

func (a *API) handleGetHost(w http.ResponseWriter, r *http.Request) {
	id, ok := hostIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, store.ErrHostNotFound)
		return
	}

	detail, err := a.store.Hosts.HostDetail(r.Context(), id)
	if err != nil {
		respondHostError(w, err)
		return
	}
	// Keys are only handed out on create and rotate.
	detail.Host.APIKey = ""
	respondJSON(w, http.StatusOK, detail)
}

func (a *API) handleCreateHost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hostname string `json:"hostname"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	host, err := a.store.Hosts.CreateHost(r.Context(), req.Hostname)
	if err != nil {
		respondHostError(w, err)
		return
	}
	a.publishHostEvent(r, hostCreatedTopic, host)

	respondJSON(w, http.StatusCreated, map[string]any{"host": host})
}

func (a *API) handleRotateHostKey(w http.ResponseWriter, r *http.Request) {
	id, ok := hostIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, store.ErrHostNotFound)
		return
	}

	host, err := a.store.Hosts.RotateAPIKey(r.Context(), id)
	if err != nil {
		respondHostError(w, err)
		return
	}
	a.publishHostEvent(r, hostKeyRotatedTopic, host)

	respondJSON(w, http.StatusOK, map[string]any{"host": host})
}

func (a *API) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	id, ok := hostIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, store.ErrHostNotFound)
		return
	}

	if err := a.store.Hosts.DeleteHost(r.Context(), id); err != nil {
		respondHostError(w, err)
		return
	}
	a.publishJSON(r.Context(), hostDeletedTopic, map[string]any{"host_id": id})

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	entries, err := a.store.Hosts.AuditLog(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
