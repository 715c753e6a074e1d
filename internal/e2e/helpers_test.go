package e2e

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"llmprobe/internal/config"
	"llmprobe/internal/mockapi"
	"llmprobe/internal/probe"
)

const token = "e2e-token"

func newMockServer(t *testing.T, opts mockapi.Options) *httptest.Server {
	t.Helper()
	if opts.Token == "" {
		opts.Token = token
	}
	srv := httptest.NewServer(mockapi.NewMux(opts))
	t.Cleanup(srv.Close)
	return srv
}

// newUpstream serves h behind the same bearer check a real gateway applies.
func newUpstream(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func configFor(t *testing.T, url string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.APIURL = url
	cfg.APIURLSet = true
	cfg.Token = token
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}

func runSuites(t *testing.T, ctx context.Context, cfg config.Config, names ...string) (probe.Summary, string) {
	t.Helper()
	var out bytes.Buffer
	sum, err := probe.Run(ctx, cfg, probe.RunOptions{Suites: names}, &out)
	if err != nil {
		t.Fatalf("run %v: %v", names, err)
	}
	return sum, out.String()
}

func mustContain(t *testing.T, s string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(s, w) {
			t.Fatalf("output missing %q:\n%s", w, s)
		}
	}
}
