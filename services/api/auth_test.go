package api

import (
	"net/http/httptest"
	"testing"
)

func TestAPIKeyFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing", header: "", want: ""},
		{name: "bare scheme", header: "Bearer", want: ""},
		{name: "scheme with trailing space", header: "Bearer   ", want: ""},
		{name: "bearer", header: "Bearer abc123", want: "abc123"},
		{name: "lowercase scheme", header: "bearer abc123", want: "abc123"},
		{name: "raw key", header: "abc123", want: "abc123"},
		{name: "padded raw key", header: "  abc123  ", want: "abc123"},
		{name: "key starting with scheme", header: "Bearerabc", want: "Bearerabc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/updates", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := apiKeyFromRequest(r); got != tt.want {
				t.Errorf("apiKeyFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCredentialsMatch(t *testing.T) {
	a := &API{config: Config{Username: "admin", Password: "s3cret"}}

	tests := []struct {
		user, pass string
		want       bool
	}{
		{"admin", "s3cret", true},
		{"admin", "wrong", false},
		{"root", "s3cret", false},
		{"", "", false},
		{"admin", "s3cret ", false},
	}
	for _, tt := range tests {
		if got := a.credentialsMatch(tt.user, tt.pass); got != tt.want {
			t.Errorf("credentialsMatch(%q, %q) = %v, want %v", tt.user, tt.pass, got, tt.want)
		}
	}
}
