package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-artifacts/internal/ai"
	"github.com/spigell/hh-artifacts/internal/ai/aitest"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/prompt"
)

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	hot := float32(3)
	ok := float32(0.7)

	tests := []struct {
		name    string
		s       Settings
		wantErr bool
	}{
		{name: "zero", s: Settings{}},
		{name: "valid temperature", s: Settings{Temperature: &ok}},
		{name: "temperature too high", s: Settings{Temperature: &hot}, wantErr: true},
		{name: "negative tokens", s: Settings{MaxOutputTokens: -1}, wantErr: true},
	}

	for _, tt := range tests {
		if err := tt.s.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("%s: unexpected error state: %v", tt.name, err)
		}
	}
}

func TestCallerCall(t *testing.T) {
	t.Parallel()

	client := aitest.New("```json\n{\"greeting\": \"Hello\"}\n```")
	temp := float32(0.2)
	core, observed := observer.New(zapcore.DebugLevel)

	c := Caller{
		Client:   client,
		Settings: Settings{Model: "m", Temperature: &temp, MaxOutputTokens: 512},
		Logger:   zap.New(core),
		Feature:  "cover_letter",
		Version:  "v1",
	}

	in, err := prompt.NewInput(&model.Resume{Summary: "x"}, &model.Vacancy{Title: "Dev"}, feature.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out struct {
		Greeting string `json:"greeting"`
	}
	schema := ai.Object([]string{"greeting"}, map[string]*ai.Schema{"greeting": ai.String("")})
	if err := c.Call(context.Background(), "system", "cover_letter_v1", in, schema, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Greeting != "Hello" {
		t.Fatalf("unexpected output: %+v", out)
	}

	req := client.LastRequest()
	if req.System != "system" || req.Model != "m" || req.MaxOutputTokens != 512 || req.Schema != schema {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.Contains(req.Prompt, "Write a cover letter") {
		t.Fatalf("unexpected prompt: %s", req.Prompt)
	}

	if observed.FilterMessage("feature prompt built").Len() != 1 {
		t.Fatalf("expected prompt log entry")
	}
}

func TestCallerErrors(t *testing.T) {
	t.Parallel()

	in := prompt.Input{}

	var pbe *feature.PromptBuildError
	err := Caller{Client: aitest.New("{}")}.Call(context.Background(), "", "missing", in, nil, &struct{}{})
	if !errors.As(err, &pbe) {
		t.Fatalf("expected PromptBuildError, got %v", err)
	}

	boom := errors.New("boom")
	err = Caller{Client: aitest.Failing(boom)}.Call(context.Background(), "", "cover_letter_v1", in, nil, &struct{}{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected client error, got %v", err)
	}

	err = Caller{Client: aitest.New("not json")}.Call(context.Background(), "", "cover_letter_v1", in, nil, &struct{}{})
	if err == nil {
		t.Fatalf("expected decode error")
	}

	if err := (Caller{}).Call(context.Background(), "", "cover_letter_v1", in, nil, &struct{}{}); err == nil {
		t.Fatalf("expected error without client")
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	if got := Position(&model.Vacancy{Title: "Dev", Company: "Acme"}); got != "Dev at Acme" {
		t.Fatalf("unexpected position %q", got)
	}
	if got := Position(&model.Vacancy{Company: "Acme"}); got != "Acme" {
		t.Fatalf("unexpected position %q", got)
	}
	if got := WordCount("one two", " three "); got != 3 {
		t.Fatalf("unexpected word count %d", got)
	}
	if got := NormaliseChoice(" HIGH ", "medium", "high", "low"); got != "high" {
		t.Fatalf("unexpected choice %q", got)
	}
	if got := NormaliseChoice("urgent", "medium", "high", "low"); got != "medium" {
		t.Fatalf("unexpected fallback %q", got)
	}
	if got := CleanList([]string{" a ", "", "  "}); len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected list %v", got)
	}

	var ve *feature.ValidationError
	if err := CheckInputs(&model.Resume{}, &model.Vacancy{Title: "x"}); !errors.As(err, &ve) || ve.Field != "resume" {
		t.Fatalf("expected resume validation error, got %v", err)
	}
	if err := CheckInputs(&model.Resume{Summary: "x"}, nil); !errors.As(err, &ve) || ve.Field != "vacancy" {
		t.Fatalf("expected vacancy validation error, got %v", err)
	}
}
