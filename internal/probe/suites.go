package probe

import (
	"fmt"
	"sort"
	"strings"
)

// Suite is a named, ordered list of checks.
type Suite struct {
	Name        string
	Title       string
	Description string
	// DefaultURL replaces the built-in API URL when neither a config file,
	// API_URL nor --api-url selected another endpoint.
	DefaultURL string
	// Preview truncates printed replies to Config.PreviewChars.
	Preview bool
	// MaxListed > 0 caps the printed model names.
	MaxListed int
	Checks    []Check
}

// PublicURL is the endpoint the public suite targets by default.
const PublicURL = "http://197.13.2.177:9100"

var suites = map[string]Suite{
	"remote": {
		Name:        "remote",
		Title:       "Ollama API Remote Test",
		Description: "Token auth, model listing, generation, chat and streaming from any device",
		Checks: []Check{
			AuthBlockCheck(),
			AuthSuccessCheck(),
			ListModelsCheck(),
			GenerateCheck(PromptIntroduce),
			ChatCheck("chat", "Chat Completion", "", PromptFunFact),
			GenerateStreamCheck(PromptCount),
		},
	},
	"public": {
		Name:        "public",
		Title:       "Public IP Test",
		Description: "Same checks against the public endpoint, with short previews",
		DefaultURL:  PublicURL,
		Preview:     true,
		MaxListed:   5,
		Checks: []Check{
			AuthBlockCheck(),
			AuthSuccessCheck(),
			ListModelsCheck(),
			GenerateCheck(PromptHello),
			ChatCheck("chat", "Chat Completion", "", PromptSayHi),
		},
	},
	"quick": {
		Name:        "quick",
		Title:       "Quick Test",
		Description: "A single non-streaming generation",
		Checks: []Check{
			GenerateCheck(PromptIntroduce),
		},
	},
	"openai": {
		Name:        "openai",
		Title:       "OpenAI-Compatible Examples",
		Description: "Simple chat, chat with a system message and streamed chat via /v1",
		Checks: []Check{
			ChatCheck("chat", "Simple Chat", "", PromptWhatIsAI),
			ChatCheck("chat-system", "Chat with System Message", PromptPirateSys, PromptPirateUser),
			ChatStreamCheck(PromptCountSlow),
		},
	},
}

// DefaultSuite runs when no suite is named.
const DefaultSuite = "remote"

// SuiteNames returns the registered suite names, sorted.
func SuiteNames() []string {
	names := make([]string, 0, len(suites))
	for n := range suites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupSuites resolves names in order; "all" expands to every suite.
func LookupSuites(names []string) ([]Suite, error) {
	if len(names) == 0 {
		names = []string{DefaultSuite}
	}
	var out []Suite
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "all" {
			for _, a := range SuiteNames() {
				out = append(out, suites[a])
			}
			continue
		}
		s, ok := suites[n]
		if !ok {
			return nil, fmt.Errorf("unknown suite %q (available: %s, all)", n, strings.Join(SuiteNames(), ", "))
		}
		out = append(out, s)
	}
	return out, nil
}
