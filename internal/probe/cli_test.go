package probe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llmprobe/internal/config"
	"llmprobe/internal/mockapi"
)

// withCLIStubs swaps the fn* indirections and returns a restore func.
func withCLIStubs(t *testing.T, stubs func()) func() {
	t.Helper()
	oldRun := fnRun
	oldListModels := fnListModels
	oldGenerate := fnGenerate
	oldChat := fnChat
	oldServeMock := fnServeMock
	stubs()
	return func() {
		fnRun = oldRun
		fnListModels = oldListModels
		fnGenerate = oldGenerate
		fnChat = oldChat
		fnServeMock = oldServeMock
	}
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := mainWith(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestMainWith_NoArgs_ShowsUsageAndExit2(t *testing.T) {
	isolateEnv(t)
	code, _, stderr := run(t)
	if code != 2 {
		t.Fatalf("expected exit code 2 for no args, got %d", code)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Fatalf("expected usage, got %q", stderr)
	}
}

func TestMainWith_UnknownCommand_Exit1(t *testing.T) {
	isolateEnv(t)
	if code, _, _ := run(t, "wat"); code != 1 {
		t.Fatalf("expected exit code 1 for unknown command, got %d", code)
	}
}

func TestMainWith_Help_Exit0(t *testing.T) {
	isolateEnv(t)
	code, stdout, _ := run(t, "--help")
	if code != 0 || !strings.Contains(stdout, "run") {
		t.Fatalf("help: code=%d out=%q", code, stdout)
	}
}

func TestMainWith_UnknownFlag_Exit2(t *testing.T) {
	isolateEnv(t)
	if code, _, _ := run(t, "run", "--nope"); code != 2 {
		t.Fatalf("expected 2, got %d", code)
	}
}

func TestMainWith_RunExitCodes(t *testing.T) {
	isolateEnv(t)
	var result Summary
	var runErr error
	cleanup := withCLIStubs(t, func() {
		fnRun = func(ctx context.Context, cfg config.Config, opts RunOptions, out io.Writer) (Summary, error) {
			return result, runErr
		}
	})
	defer cleanup()

	result = Summary{Results: []Result{{Passed: true}}}
	if code, _, _ := run(t, "run"); code != 0 {
		t.Fatalf("all passed: expected 0, got %d", code)
	}
	result = Summary{Results: []Result{{Passed: true}, {Passed: false}}}
	if code, _, _ := run(t, "run"); code != 1 {
		t.Fatalf("one failed: expected 1, got %d", code)
	}
	runErr = errors.New(`unknown suite "x"`)
	code, _, stderr := run(t, "run", "x")
	if code != 2 || !strings.Contains(stderr, "unknown suite") {
		t.Fatalf("unknown suite: code=%d stderr=%q", code, stderr)
	}
}

func TestMainWith_FlagsOverrideEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("API_URL", "http://env.example:9100")
	t.Setenv("API_TOKEN", "from-env")
	t.Setenv("TEST_MODEL", "env-model")
	var got config.Config
	var gotOpts RunOptions
	cleanup := withCLIStubs(t, func() {
		fnRun = func(ctx context.Context, cfg config.Config, opts RunOptions, out io.Writer) (Summary, error) {
			got, gotOpts = cfg, opts
			return Summary{Results: []Result{{Passed: true}}}, nil
		}
	})
	defer cleanup()

	code, _, _ := run(t, "--api-url", "http://flag.example:1/", "--model", "flag-model", "--log-level", "debug", "run", "quick", "openai", "--wait", "5s")
	if code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if got.APIURL != "http://flag.example:1" {
		t.Fatalf("api url not from flag (or not normalized): %q", got.APIURL)
	}
	if got.Model != "flag-model" || got.Token != "from-env" || got.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", got)
	}
	if len(gotOpts.Suites) != 2 || gotOpts.Suites[0] != "quick" || gotOpts.Wait.String() != "5s" {
		t.Fatalf("unexpected options: %+v", gotOpts)
	}
	SetLogLevel("info")
}

func TestMainWith_ConfigFile(t *testing.T) {
	isolateEnv(t)
	p := filepath.Join(t.TempDir(), "probe.yaml")
	if err := os.WriteFile(p, []byte("api_url: http://file.example:9100\nmodel: file-model\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_MODEL", "env-model")
	var got config.Config
	cleanup := withCLIStubs(t, func() {
		fnListModels = func(ctx context.Context, cfg config.Config, out io.Writer) error { got = cfg; return nil }
	})
	defer cleanup()
	if code, _, _ := run(t, "--config", p, "models"); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if got.APIURL != "http://file.example:9100" || got.Model != "env-model" {
		t.Fatalf("precedence wrong: %+v", got)
	}
}

func TestMainWith_InvalidURL_Exit2(t *testing.T) {
	isolateEnv(t)
	cleanup := withCLIStubs(t, func() {
		fnRun = func(ctx context.Context, cfg config.Config, opts RunOptions, out io.Writer) (Summary, error) {
			t.Fatalf("run must not be reached")
			return Summary{}, nil
		}
	})
	defer cleanup()
	code, _, stderr := run(t, "--api-url", "ftp://x", "run")
	if code != 2 || !strings.Contains(stderr, "scheme") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
}

func TestMainWith_GenerateAndChatArgs(t *testing.T) {
	isolateEnv(t)
	var prompt, system string
	var stream bool
	cleanup := withCLIStubs(t, func() {
		fnGenerate = func(ctx context.Context, cfg config.Config, p, s string, st bool, out io.Writer) error {
			prompt, system, stream = p, s, st
			return nil
		}
		fnChat = func(ctx context.Context, cfg config.Config, p, s string, st bool, out io.Writer) error {
			prompt, system, stream = p, s, st
			return errors.New("boom")
		}
	})
	defer cleanup()

	if code, _, _ := run(t, "generate", "--stream", "why", "is", "the", "sky", "blue"); code != 0 {
		t.Fatalf("generate: expected 0, got %d", code)
	}
	if prompt != "why is the sky blue" || !stream || system != "" {
		t.Fatalf("generate args: %q %q %v", prompt, system, stream)
	}
	code, _, stderr := run(t, "chat", "--system", "be brief", "hi")
	if code != 1 || !strings.Contains(stderr, "boom") {
		t.Fatalf("chat: code=%d stderr=%q", code, stderr)
	}
	if prompt != "hi" || system != "be brief" || stream {
		t.Fatalf("chat args: %q %q %v", prompt, system, stream)
	}
	if code, _, _ := run(t, "generate"); code != 2 {
		t.Fatalf("generate without prompt: expected 2, got %d", code)
	}
}

func TestMainWith_MockOptions(t *testing.T) {
	isolateEnv(t)
	t.Setenv("API_TOKEN", "tok")
	var got mockOptions
	cleanup := withCLIStubs(t, func() {
		fnServeMock = func(ctx context.Context, o mockOptions, out io.Writer) error { got = o; return nil }
	})
	defer cleanup()

	if code, _, _ := run(t, "--model", "m1", "mock", "--addr", "127.0.0.1:0", "--quiet"); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if got.Addr != "127.0.0.1:0" || got.API.Token != "tok" || got.Verbose {
		t.Fatalf("unexpected mock options: %+v", got)
	}
	if len(got.API.Models) != 1 || got.API.Models[0] != "m1" || got.API.Reply != mockapi.DefaultReply {
		t.Fatalf("unexpected mock api options: %+v", got.API)
	}

	if code, _, _ := run(t, "mock", "--models", "a,b", "--cors-origins", "http://localhost:3000"); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if len(got.API.Models) != 2 || got.API.Models[1] != "b" || len(got.API.CORSOrigins) != 1 {
		t.Fatalf("unexpected mock api options: %+v", got.API)
	}
}

func TestMainWith_Suites(t *testing.T) {
	isolateEnv(t)
	code, stdout, _ := run(t, "suites")
	if code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	for _, want := range []string{"remote:", "public:", "quick:", "openai:", "auth-block", "chat-stream", PublicURL} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("suites output missing %q:\n%s", want, stdout)
		}
	}
}

func TestMainWith_Completion(t *testing.T) {
	isolateEnv(t)
	code, stdout, _ := run(t, "completion", "bash")
	if code != 0 || !strings.Contains(stdout, "llmprobe") {
		t.Fatalf("completion: code=%d", code)
	}
}

func TestMainWith_AgainstMock(t *testing.T) {
	isolateEnv(t)
	srv := startMock(t, mockapi.Options{Token: testToken})
	t.Setenv("API_URL", srv.URL)
	t.Setenv("API_TOKEN", testToken)

	code, stdout, _ := run(t, "run", "quick")
	if code != 0 || !strings.Contains(stdout, "Total: 1/1 tests passed") {
		t.Fatalf("run quick: code=%d\n%s", code, stdout)
	}
	code, stdout, _ = run(t, "models")
	if code != 0 || !strings.Contains(stdout, "gemma3:1b") || !strings.Contains(stdout, "815.0 MB") {
		t.Fatalf("models: code=%d\n%s", code, stdout)
	}
	code, stdout, _ = run(t, "generate", "hello")
	if code != 0 || !strings.Contains(stdout, mockapi.DefaultReply) {
		t.Fatalf("generate: code=%d\n%s", code, stdout)
	}
	code, stdout, _ = run(t, "chat", "--stream", "hello")
	if code != 0 || !strings.Contains(stdout, mockapi.DefaultReply) {
		t.Fatalf("chat: code=%d\n%s", code, stdout)
	}
	code, _, stderr := run(t, "--token", "wrong", "models")
	if code != 1 || !strings.Contains(stderr, "401") {
		t.Fatalf("models with wrong token: code=%d stderr=%q", code, stderr)
	}
	if code, _, _ := run(t, "run", "nope"); code != 2 {
		t.Fatalf("unknown suite: expected 2, got %d", code)
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{0: "", 999: "999 B", 1000: "1.0 kB", 815_000_000: "815.0 MB", 4_700_000_000: "4.7 GB"}
	for in, want := range cases {
		if got := formatSize(in); got != want {
			t.Fatalf("formatSize(%d)=%q want %q", in, got, want)
		}
	}
}

func TestMainWith_PublicKeepsExplicitDefaultURL(t *testing.T) {
	isolateEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, args := range [][]string{
		{"run", "public"},
		{"--api-url", config.DefaultAPIURL, "run", "public"},
	} {
		if len(args) == 2 {
			t.Setenv("API_URL", config.DefaultAPIURL+"/")
		} else {
			t.Setenv("API_URL", "")
		}
		var stdout, stderr bytes.Buffer
		code := mainWith(ctx, args, &stdout, &stderr)
		if code != 1 {
			t.Fatalf("%v: canceled run should fail, got %d", args, code)
		}
		if !strings.Contains(stdout.String(), "API Endpoint: "+config.DefaultAPIURL+"\n") || strings.Contains(stdout.String(), PublicURL) {
			t.Fatalf("%v: explicit url replaced:\n%s", args, stdout.String())
		}
	}

	var stdout bytes.Buffer
	t.Setenv("API_URL", "")
	mainWith(ctx, []string{"run", "public"}, &stdout, io.Discard)
	if !strings.Contains(stdout.String(), "API Endpoint: "+PublicURL) {
		t.Fatalf("unset url should select the public endpoint:\n%s", stdout.String())
	}
}

func TestMainWith_MissingConfigFile_Exit2(t *testing.T) {
	isolateEnv(t)
	code, _, stderr := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "suites")
	if code != 2 || !strings.Contains(stderr, "not found") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
}
