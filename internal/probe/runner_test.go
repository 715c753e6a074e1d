package probe

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"llmprobe/internal/config"
	"llmprobe/internal/mockapi"
)

func TestRunRemoteAllPass(t *testing.T) {
	srv := startMock(t, mockapi.Options{Token: testToken})
	var out bytes.Buffer
	sum, err := Run(context.Background(), testConfig(t, srv.URL), RunOptions{Suites: []string{"remote"}}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Total() != 6 || sum.Passed() != 6 || sum.ExitCode() != 0 {
		t.Fatalf("unexpected summary %d/%d:\n%s", sum.Passed(), sum.Total(), out.String())
	}
	s := out.String()
	for _, want := range []string{
		"API Endpoint: " + srv.URL,
		"Model: gemma3:1b",
		"1. Testing authentication blocking",
		"✓ PASS - Correctly blocked (401)",
		"✓ PASS - Authentication successful (200)",
		"- gemma3:1b",
		mockapi.DefaultReply,
		"Streamed 10 chunks",
		"Total: 6/6 tests passed",
		"All tests passed! API is working.",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("transcript missing %q:\n%s", want, s)
		}
	}
}

func TestRunWrongToken(t *testing.T) {
	srv := startMock(t, mockapi.Options{Token: testToken})
	cfg := testConfig(t, srv.URL)
	cfg.Token = "wrong"
	var out bytes.Buffer
	sum, _ := Run(context.Background(), cfg, RunOptions{Suites: []string{"remote"}}, &out)
	if sum.Passed() != 1 || sum.ExitCode() != 1 {
		t.Fatalf("expected only auth-block to pass, got %d/%d", sum.Passed(), sum.Total())
	}
	if !sum.Results[0].Passed || sum.Results[0].Check != "auth-block" {
		t.Fatalf("auth-block should pass: %+v", sum.Results[0])
	}
	s := out.String()
	if !strings.Contains(s, "✗ FAIL - Expected 200, got 401") || !strings.Contains(s, "5 test(s) failed!") {
		t.Fatalf("unexpected transcript:\n%s", s)
	}
	if strings.Contains(s, "ollama pull") {
		t.Fatalf("401 must not suggest pulling the model:\n%s", s)
	}
}

func TestRunUnknownModel(t *testing.T) {
	srv := startMock(t, mockapi.Options{Token: testToken})
	cfg := testConfig(t, srv.URL)
	cfg.Model = "missing:7b"
	var out bytes.Buffer
	sum, _ := Run(context.Background(), cfg, RunOptions{Suites: []string{"quick"}}, &out)
	if sum.OK() {
		t.Fatalf("expected failure")
	}
	s := out.String()
	if !strings.Contains(s, "Status code: 404") || !strings.Contains(s, "ollama pull missing:7b") {
		t.Fatalf("missing hint:\n%s", s)
	}
}

func TestRunServerWithoutAuth(t *testing.T) {
	srv := startMock(t, mockapi.Options{})
	var out bytes.Buffer
	sum, _ := Run(context.Background(), testConfig(t, srv.URL), RunOptions{Suites: []string{"remote"}}, &out)
	if sum.Results[0].Passed {
		t.Fatalf("auth-block must fail when the server accepts anonymous requests")
	}
	if sum.Passed() != 5 {
		t.Fatalf("expected the other 5 checks to pass, got %d", sum.Passed())
	}
	if !strings.Contains(out.String(), "Expected 401, got 200") {
		t.Fatalf("transcript:\n%s", out.String())
	}
}

func TestRunUnknownSuite(t *testing.T) {
	var out bytes.Buffer
	_, err := Run(context.Background(), testConfig(t, "http://127.0.0.1:1"), RunOptions{Suites: []string{"nope"}}, &out)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected unknown suite error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should run: %q", out.String())
	}
}

func TestRunAllSuites(t *testing.T) {
	srv := startMock(t, mockapi.Options{Token: testToken})
	var out bytes.Buffer
	sum, err := Run(context.Background(), testConfig(t, srv.URL), RunOptions{Suites: []string{"all"}}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Total() != 15 || !sum.OK() {
		t.Fatalf("expected 15/15, got %d/%d\n%s", sum.Passed(), sum.Total(), out.String())
	}
	// public keeps the explicitly configured endpoint
	if strings.Contains(out.String(), PublicURL) {
		t.Fatalf("public suite ignored the configured URL")
	}
	if !strings.Contains(strings.ToLower(out.String()), "suite") {
		t.Fatalf("multi-suite summary should have a suite column")
	}
}

func TestRunPublicPreviewAndListing(t *testing.T) {
	reply := strings.Repeat("word ", 60)
	models := []string{"gemma3:1b", "a", "b", "c", "d", "e", "f"}
	srv := startMock(t, mockapi.Options{Token: testToken, Reply: reply, Models: models})
	var out bytes.Buffer
	sum, _ := Run(context.Background(), testConfig(t, srv.URL), RunOptions{Suites: []string{"public"}}, &out)
	if !sum.OK() {
		t.Fatalf("public suite failed:\n%s", out.String())
	}
	s := out.String()
	if !strings.Contains(s, "Found 7 models:") || !strings.Contains(s, "... and 2 more") {
		t.Fatalf("listing not capped:\n%s", s)
	}
	if !strings.Contains(s, "      "+preview(reply, 100)+"\n") {
		t.Fatalf("reply not previewed:\n%s", s)
	}
	if strings.Contains(s, strings.TrimSpace(reply)) {
		t.Fatalf("full reply printed in preview mode")
	}
}

func TestRunCanceledSkipsChecks(t *testing.T) {
	srv := startMock(t, mockapi.Options{Token: testToken})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	sum, _ := Run(ctx, testConfig(t, srv.URL), RunOptions{Suites: []string{"remote"}}, &out)
	if sum.Total() != 6 || sum.Passed() != 0 {
		t.Fatalf("expected 6 skipped failures, got %d/%d", sum.Passed(), sum.Total())
	}
	if strings.Count(out.String(), "Skipped") != 6 {
		t.Fatalf("transcript:\n%s", out.String())
	}
}

func TestRunConnectionRefused(t *testing.T) {
	srv := startMock(t, mockapi.Options{})
	url := srv.URL
	srv.Close()
	var out bytes.Buffer
	sum, _ := Run(context.Background(), testConfig(t, url), RunOptions{Suites: []string{"quick"}}, &out)
	if sum.OK() {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(out.String(), "Connection error") {
		t.Fatalf("transcript:\n%s", out.String())
	}
}

func TestRunStreamTimeout(t *testing.T) {
	srv := startMock(t, mockapi.Options{Token: testToken, ChunkDelay: 200 * time.Millisecond})
	cfg := testConfig(t, srv.URL)
	cfg.GenerateTimeout = 300 * time.Millisecond
	var out bytes.Buffer
	sum, _ := Run(context.Background(), cfg, RunOptions{Suites: []string{"openai"}}, &out)
	if sum.OK() {
		t.Fatalf("expected timeouts")
	}
	if !strings.Contains(out.String(), "Timed out") {
		t.Fatalf("transcript:\n%s", out.String())
	}
}

func TestRunWritesMetricsFile(t *testing.T) {
	srv := startMock(t, mockapi.Options{Token: testToken})
	cfg := testConfig(t, srv.URL)
	cfg.MetricsFile = filepath.Join(t.TempDir(), "llmprobe.prom")
	var out bytes.Buffer
	if _, err := Run(context.Background(), cfg, RunOptions{Suites: []string{"quick"}}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(b), `llmprobe_check_success{check="generate",suite="quick"} 1`) {
		t.Fatalf("metrics file:\n%s", b)
	}
}

func TestRunWaitsForAPI(t *testing.T) {
	srv := startMock(t, mockapi.Options{Token: testToken})
	var out bytes.Buffer
	sum, err := Run(context.Background(), testConfig(t, srv.URL), RunOptions{Suites: []string{"quick"}, Wait: time.Second}, &out)
	if err != nil || !sum.OK() {
		t.Fatalf("run with wait: %v\n%s", err, out.String())
	}
}

func TestSummaryEmptyIsNotOK(t *testing.T) {
	var s Summary
	if s.OK() || s.ExitCode() != 1 {
		t.Fatalf("empty summary must fail")
	}
}

func TestRunPublicEndpointSelection(t *testing.T) {
	// a canceled run prints the header without touching the network
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.Default()
	var out bytes.Buffer
	_, _ = Run(ctx, cfg, RunOptions{Suites: []string{"public"}}, &out)
	if !strings.Contains(out.String(), "API Endpoint: "+PublicURL) {
		t.Fatalf("unset url should select the public endpoint:\n%s", out.String())
	}

	cfg.APIURLSet = true
	out.Reset()
	_, _ = Run(ctx, cfg, RunOptions{Suites: []string{"public"}}, &out)
	if !strings.Contains(out.String(), "API Endpoint: "+config.DefaultAPIURL) || strings.Contains(out.String(), PublicURL) {
		t.Fatalf("explicit url equal to the default must be kept:\n%s", out.String())
	}
}
