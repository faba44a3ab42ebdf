package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"pmgmt/services/store"
)

type ctxKey int

const (
	hostCtxKey ctxKey = iota
	userCtxKey
)

const authNotConfiguredMsg = "Authentication not configured. Set PMGMT_USERNAME and PMGMT_PASSWORD environment variables."

// requireAPIKey resolves the reporting host from the Authorization header.
// Both "Bearer <key>" and the bare key are accepted.
func (a *API) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFromRequest(r)
		if key == "" {
			a.metrics.reports.WithLabelValues("unauthorized").Inc()
			unauthorizedAPIKey(w, "API key missing")
			return
		}

		host, err := a.store.Hosts.HostByAPIKey(r.Context(), key)
		switch {
		case errors.Is(err, store.ErrHostNotFound):
			a.metrics.reports.WithLabelValues("unauthorized").Inc()
			unauthorizedAPIKey(w, "Invalid API key")
			return
		case err != nil:
			a.logger.Error().Err(err).Msg("resolve api key")
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), hostCtxKey, host)))
	})
}

func apiKeyFromRequest(r *http.Request) string {
	const scheme = "Bearer"
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.EqualFold(v, scheme) {
		return ""
	}
	if len(v) > len(scheme) && strings.EqualFold(v[:len(scheme)], scheme) && v[len(scheme)] == ' ' {
		v = strings.TrimSpace(v[len(scheme)+1:])
	}
	return v
}

func unauthorizedAPIKey(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	respondError(w, http.StatusUnauthorized, errors.New(msg))
}

func hostFromContext(ctx context.Context) (store.Host, bool) {
	host, ok := ctx.Value(hostCtxKey).(store.Host)
	return host, ok
}

// requireDashboardAuth enforces HTTP Basic credentials. The response never
// reveals which half of the pair was wrong.
func (a *API) requireDashboardAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.dashboardAuthConfigured() {
			respondJSON(w, http.StatusInternalServerError, map[string]any{"error": authNotConfiguredMsg})
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !a.credentialsMatch(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="pmgmt", charset="UTF-8"`)
			respondJSON(w, http.StatusUnauthorized, map[string]any{"error": "Incorrect username or password"})
			return
		}

		ctx := store.WithActor(context.WithValue(r.Context(), userCtxKey, user), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// credentialsMatch hashes both sides first so the comparison takes the same
// time regardless of input length.
func (a *API) credentialsMatch(user, pass string) bool {
	gotUser := sha256.Sum256([]byte(user))
	gotPass := sha256.Sum256([]byte(pass))
	wantUser := sha256.Sum256([]byte(a.config.Username))
	wantPass := sha256.Sum256([]byte(a.config.Password))

	userOK := subtle.ConstantTimeCompare(gotUser[:], wantUser[:]) == 1
	passOK := subtle.ConstantTimeCompare(gotPass[:], wantPass[:]) == 1
	return userOK && passOK
}

func userFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userCtxKey).(string)
	return user
}
