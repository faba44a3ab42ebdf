package api

import (
	"errors"
	"net/http"

	"pmgmt/services/store"
)

const hostsPage = "/dashboard/hosts"

type pageData struct {
	Title    string
	Username string
	Hosts    any
	Detail   *store.HostDetail
}

func (a *API) handleDashboardHome(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.store.Hosts.Overview(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	a.respondHTML(w, http.StatusOK, "overview", pageData{
		Title:    "Overview",
		Username: userFromContext(r.Context()),
		Hosts:    summaries,
	})
}

func (a *API) handleDashboardHost(w http.ResponseWriter, r *http.Request) {
	id, ok := hostIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, store.ErrHostNotFound)
		return
	}

	detail, err := a.store.Hosts.HostDetail(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrHostNotFound):
		respondError(w, http.StatusNotFound, err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.respondHTML(w, http.StatusOK, "host", pageData{
		Title:    detail.Host.Hostname,
		Username: userFromContext(r.Context()),
		Detail:   &detail,
	})
}

func (a *API) handleDashboardHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := a.store.Hosts.ListHosts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	a.respondHTML(w, http.StatusOK, "hosts", pageData{
		Title:    "Hosts",
		Username: userFromContext(r.Context()),
		Hosts:    hosts,
	})
}

func (a *API) handleDashboardAddHost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	host, err := a.store.Hosts.CreateHost(r.Context(), r.PostFormValue("hostname"))
	if err != nil {
		respondHostError(w, err)
		return
	}
	a.publishHostEvent(r, hostCreatedTopic, host)

	http.Redirect(w, r, hostsPage, http.StatusSeeOther)
}

func (a *API) handleDashboardRegenerateKey(w http.ResponseWriter, r *http.Request) {
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

	http.Redirect(w, r, hostsPage, http.StatusSeeOther)
}

func (a *API) handleDashboardDeleteHost(w http.ResponseWriter, r *http.Request) {
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

	http.Redirect(w, r, hostsPage, http.StatusSeeOther)
}

func (a *API) publishHostEvent(r *http.Request, subject string, host store.Host) {
	a.publishJSON(r.Context(), subject, map[string]any{
		"host_id":  host.ID,
		"hostname": host.Hostname,
	})
}

// respondHostError maps host store failures onto status codes.
func respondHostError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidHostname):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrHostnameTaken):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrHostNotFound):
		respondError(w, http.StatusNotFound, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}
