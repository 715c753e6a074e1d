package probe

import (
	"net/http/httptest"
	"testing"

	"llmprobe/internal/config"
	"llmprobe/internal/mockapi"
)

const testToken = "s3cret"

// isolateEnv clears the variables config.Resolve reads and points HOME at
// an empty directory so no user config file is discovered.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"API_URL", "API_TOKEN", "TEST_MODEL", "LLMPROBE_LOG_LEVEL", "LLMPROBE_METRICS_FILE", "LLMPROBE_TIMEOUT", "LLMPROBE_GENERATE_TIMEOUT", "LLMPROBE_PREVIEW_CHARS", "LLMPROBE_MAX_LISTED"} {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func startMock(t *testing.T, opts mockapi.Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mockapi.NewMux(opts))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, url string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.APIURL = url
	cfg.APIURLSet = true
	cfg.Token = testToken
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}
