package api

import (
	"errors"
	"net/http"
)

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.store.DB != nil {
		if err := a.store.DB.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, errors.Join(errors.New("database unavailable"), err))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
