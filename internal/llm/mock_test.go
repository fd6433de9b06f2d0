package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/qbot/internal/model"
)

func TestMockProvider_RepeatsLastReply(t *testing.T) {
	p := NewMockProvider("FIND: x", "ANSWER: done")
	ctx := context.Background()

	want := []string{"FIND: x", "ANSWER: done", "ANSWER: done"}
	for i, w := range want {
		resp, err := p.Complete(ctx, CompletionRequest{})
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if resp.Content != w {
			t.Errorf("call %d: expected %q, got %q", i, w, resp.Content)
		}
	}
	if p.Calls() != 3 {
		t.Errorf("Expected 3 calls, got %d", p.Calls())
	}
}

func TestMockProvider_RecordsRequests(t *testing.T) {
	p := NewMockProvider()
	msgs := []model.Message{{Role: model.RoleUser, Content: "hi"}}

	if _, err := p.Complete(context.Background(), CompletionRequest{Messages: msgs}); err != nil {
		t.Fatal(err)
	}

	reqs := p.Requests()
	if len(reqs) != 1 || reqs[0].Messages[0].Content != "hi" {
		t.Errorf("Unexpected requests: %+v", reqs)
	}
}

func TestMockProvider_Error(t *testing.T) {
	p := NewMockProvider("ANSWER: x")
	p.Err = errors.New("quota exceeded")

	if _, err := p.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("Expected error")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		config  Config
		name    string
		wantErr bool
	}{
		{Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{Config{Provider: "", APIKey: "k"}, "openai", false},
		{Config{Provider: "Claude", APIKey: "k"}, "anthropic", false},
		{Config{Provider: "ollama"}, "ollama", false},
		{Config{Provider: "mock"}, "mock", false},
		{Config{Provider: "openai"}, "", true},
		{Config{Provider: "palm"}, "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(tt.config)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.config.Provider)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.config.Provider, err)
			continue
		}
		if p.Name() != tt.name {
			t.Errorf("%s: expected name %s, got %s", tt.config.Provider, tt.name, p.Name())
		}
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{
		Provider:    "mock",
		Model:       "m",
		MaxTokens:   42,
		MockReplies: []string{"ANSWER: a"},
	}, model.HTTPConfig{HTTPSProxy: "http://proxy:8080"})

	if cfg.Provider != "mock" || cfg.Model != "m" || cfg.MaxTokens != 42 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.HTTP.HTTPSProxy != "http://proxy:8080" {
		t.Errorf("Expected proxy to carry over, got %+v", cfg.HTTP)
	}
	if len(cfg.Replies) != 1 {
		t.Errorf("Expected mock replies to carry over")
	}
}

func TestSystemPrompt(t *testing.T) {
	prompt := SystemPrompt(7)

	if !strings.Contains(prompt, "at most 7 actions") {
		t.Error("Expected loop ceiling in prompt")
	}
	for _, kind := range []string{"FIND:", "CONTEXT:", "THEME:", "THOUGHT:", "FOLLOWUP:", "ANSWER:"} {
		if !strings.Contains(prompt, kind) {
			t.Errorf("Expected prompt to describe %s", kind)
		}
	}
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]model.Message{
		{Role: model.RoleSystem, Content: "a"},
		{Role: model.RoleUser, Content: "q"},
		{Role: model.RoleSystem, Content: "b"},
	})
	if system != "a\n\nb" {
		t.Errorf("Unexpected system: %q", system)
	}
	if len(turns) != 1 || turns[0].Content != "q" {
		t.Errorf("Unexpected turns: %+v", turns)
	}
}
