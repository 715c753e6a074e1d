package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"llmprobe/internal/client"
	"llmprobe/pkg/types"
)

// Prompts used by the built-in suites.
const (
	PromptHello      = "Say hello in one sentence."
	PromptIntroduce  = "Say hello and introduce yourself in one sentence."
	PromptFunFact    = "Tell me a fun fact about AI in one sentence."
	PromptSayHi      = "Say hi!"
	PromptCount      = "Count from 1 to 5"
	PromptCountSlow  = "Count from 1 to 5 slowly."
	PromptWhatIsAI   = "What is artificial intelligence? Answer briefly."
	PromptPirateSys  = "You are a helpful assistant that speaks like a pirate."
	PromptPirateUser = "Tell me about machine learning."
)

// connFailure classifies a request error for the transcript.
func connFailure(err error) error {
	if code := client.StatusCode(err); code != 0 {
		f := &Failure{Msg: fmt.Sprintf("Status code: %d", code), Err: err}
		var se *client.StatusError
		if errors.As(err, &se) && se.Message != "" {
			f.Details = append(f.Details, se.Message)
		}
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Msg: fmt.Sprintf("Timed out: %v", err), Err: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return &Failure{Msg: fmt.Sprintf("Connection error: %v", err), Err: err}
	}
	return &Failure{Msg: fmt.Sprintf("Error: %v", err), Err: err}
}

// modelHint adds the pull hint to a failed generation request.
func modelHint(err error, model string) error {
	var f *Failure
	if errors.As(err, &f) && client.StatusCode(err) != 0 && !client.IsUnauthorized(err) {
		f.Details = append(f.Details, "Make sure to pull the model: ollama pull "+model)
	}
	return err
}

// AuthBlockCheck expects GET /api/tags without a token to return 401.
func AuthBlockCheck() Check {
	return Check{
		Name:  "auth-block",
		Title: "Authentication Block",
		Intro: func(*Env) string { return "Testing authentication blocking (no token, expecting 401)..." },
		Run: func(ctx context.Context, env *Env) error {
			_, err := env.Anon.ListModels(ctx)
			switch {
			case err == nil:
				return fail("Expected 401, got 200")
			case client.IsUnauthorized(err):
				env.Out.Pass("Correctly blocked (401)")
				return nil
			case client.StatusCode(err) != 0:
				return &Failure{Msg: fmt.Sprintf("Expected 401, got %d", client.StatusCode(err)), Err: err}
			default:
				return connFailure(err)
			}
		},
	}
}

// AuthSuccessCheck expects GET /api/tags with the token to return 200.
func AuthSuccessCheck() Check {
	return Check{
		Name:  "auth-success",
		Title: "Authentication Success",
		Intro: func(*Env) string { return "Testing authentication success (with token, expecting 200)..." },
		Run: func(ctx context.Context, env *Env) error {
			if _, err := env.Client.ListModels(ctx); err != nil {
				if code := client.StatusCode(err); code != 0 {
					return &Failure{Msg: fmt.Sprintf("Expected 200, got %d", code), Err: err}
				}
				return connFailure(err)
			}
			env.Out.Pass("Authentication successful (200)")
			return nil
		},
	}
}

// ListModelsCheck expects a non-empty model list and prints the names.
func ListModelsCheck() Check {
	return Check{
		Name:  "list-models",
		Title: "List Models",
		Intro: func(*Env) string { return "Testing list models..." },
		Run: func(ctx context.Context, env *Env) error {
			tags, err := env.Client.ListModels(ctx)
			if err != nil {
				return connFailure(err)
			}
			names := tags.Names()
			if len(names) == 0 {
				return fail("No models found")
			}
			env.Out.Pass("Found %d models:", len(names))
			shown := names
			if env.maxListed > 0 && len(names) > env.maxListed {
				shown = names[:env.maxListed]
			}
			for _, n := range shown {
				env.Out.Detail("- %s", n)
			}
			if rest := len(names) - len(shown); rest > 0 {
				env.Out.Detail("... and %d more", rest)
			}
			return nil
		},
	}
}

// GenerateCheck expects a non-streaming /api/generate call to return text.
func GenerateCheck(prompt string) Check {
	return Check{
		Name:  "generate",
		Title: "Text Generation",
		Intro: func(env *Env) string {
			return fmt.Sprintf("Testing text generation with %s...\n   Prompt: '%s'", env.Config.Model, prompt)
		},
		Run: func(ctx context.Context, env *Env) error {
			resp, err := env.Gen.Generate(ctx, &types.GenerateRequest{Model: env.Config.Model, Prompt: prompt})
			if err != nil {
				return modelHint(connFailure(err), env.Config.Model)
			}
			if strings.TrimSpace(resp.Response) == "" {
				return fail("Empty response")
			}
			env.Out.Pass("Response received:")
			env.Out.Detail("%s", env.reply(resp.Response))
			return nil
		},
	}
}

// ChatCheck expects /v1/chat/completions to return non-empty content.
// A non-empty system prompt is sent ahead of the user message.
func ChatCheck(name, title, system, prompt string) Check {
	return Check{
		Name:  name,
		Title: title,
		Intro: func(env *Env) string {
			s := fmt.Sprintf("Testing chat completion with %s...\n   Prompt: '%s'", env.Config.Model, prompt)
			if system != "" {
				s += fmt.Sprintf("\n   System: '%s'", system)
			}
			return s
		},
		Run: func(ctx context.Context, env *Env) error {
			resp, err := env.Gen.Chat(ctx, &types.ChatCompletionRequest{Model: env.Config.Model, Messages: messages(system, prompt)})
			if err != nil {
				return modelHint(connFailure(err), env.Config.Model)
			}
			content := resp.Content()
			if strings.TrimSpace(content) == "" {
				return fail("Empty response")
			}
			env.Out.Pass("Chat response received:")
			env.Out.Detail("%s", env.reply(content))
			return nil
		},
	}
}

func messages(system, prompt string) []types.ChatMessage {
	var msgs []types.ChatMessage
	if system != "" {
		msgs = append(msgs, types.ChatMessage{Role: types.RoleSystem, Content: system})
	}
	return append(msgs, types.ChatMessage{Role: types.RoleUser, Content: prompt})
}

// GenerateStreamCheck prints /api/generate fragments as they arrive and
// expects their concatenation to be non-empty.
func GenerateStreamCheck(prompt string) Check {
	return Check{
		Name:  "generate-stream",
		Title: "Streaming",
		Intro: func(env *Env) string {
			return fmt.Sprintf("Testing streaming generation with %s...\n   Prompt: '%s'", env.Config.Model, prompt)
		},
		Run: func(ctx context.Context, env *Env) error {
			var sb strings.Builder
			chunks := 0
			env.Out.Fragment("      ")
			err := env.Gen.GenerateStream(ctx, &types.GenerateRequest{Model: env.Config.Model, Prompt: prompt}, func(c types.GenerateResponse) error {
				chunks++
				if c.Response != "" {
					sb.WriteString(c.Response)
					env.Out.Fragment(c.Response)
				}
				return nil
			})
			env.Out.Blank()
			return streamOutcome(env, err, sb.String(), chunks)
		},
	}
}

// ChatStreamCheck is the OpenAI-compatible counterpart of GenerateStreamCheck.
func ChatStreamCheck(prompt string) Check {
	return Check{
		Name:  "chat-stream",
		Title: "Streaming Chat",
		Intro: func(env *Env) string {
			return fmt.Sprintf("Testing streaming chat completion with %s...\n   Prompt: '%s'", env.Config.Model, prompt)
		},
		Run: func(ctx context.Context, env *Env) error {
			var sb strings.Builder
			chunks := 0
			env.Out.Fragment("      ")
			err := env.Gen.ChatStream(ctx, &types.ChatCompletionRequest{Model: env.Config.Model, Messages: messages("", prompt)}, func(c types.ChatCompletionChunk) error {
				chunks++
				if s := c.Content(); s != "" {
					sb.WriteString(s)
					env.Out.Fragment(s)
				}
				return nil
			})
			env.Out.Blank()
			return streamOutcome(env, err, sb.String(), chunks)
		},
	}
}

func streamOutcome(env *Env, err error, text string, chunks int) error {
	if err != nil {
		var se *client.StreamError
		if errors.As(err, &se) {
			return &Failure{Msg: "Stream aborted: " + se.Message, Err: err}
		}
		return modelHint(connFailure(err), env.Config.Model)
	}
	if strings.TrimSpace(text) == "" {
		return fail("Empty streamed response (%d chunks)", chunks)
	}
	env.Out.Pass("Streamed %d chunks (%d chars)", chunks, len([]rune(text)))
	return nil
}
