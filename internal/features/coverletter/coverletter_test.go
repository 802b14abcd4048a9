package coverletter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/hh-artifacts/internal/ai/aitest"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/model"
)

var (
	testResume  = &model.Resume{FullName: "Jane Doe", Skills: []string{"Go", "PostgreSQL"}}
	testVacancy = &model.Vacancy{Title: "Backend Engineer", Company: "Acme"}
)

func newGenerator(t *testing.T, version string, client *aitest.Client, cfg feature.Config) feature.Generator {
	t.Helper()

	gen, err := NewFactory(version, client, nil)(cfg)
	if err != nil {
		t.Fatalf("unexpected factory error: %v", err)
	}
	return gen
}

func TestGenerateV1(t *testing.T) {
	client := aitest.New(`{"greeting": "Dear hiring team,", "body": "I build Go services.", "closing": "Best regards"}`)
	gen := newGenerator(t, V1, client, feature.Config{"signature": "Jane Doe"})

	res, err := gen.Generate(context.Background(), testResume, testVacancy, feature.Options{Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	letter, ok := res.(*LetterV1)
	if !ok {
		t.Fatalf("expected *LetterV1, got %T", res)
	}
	if letter.Position != "Backend Engineer at Acme" {
		t.Fatalf("unexpected position %q", letter.Position)
	}
	if letter.Closing != "Best regards\nJane Doe" {
		t.Fatalf("expected signature to be appended, got %q", letter.Closing)
	}
	if got := letter.Format(); got != "Dear hiring team,\n\nI build Go services.\n\nBest regards\nJane Doe" {
		t.Fatalf("unexpected format:\n%s", got)
	}
	if !strings.Contains(client.LastRequest().Prompt, "Return JSON with:\n- greeting") {
		t.Fatalf("expected v1 template to be used")
	}
}

func TestGenerateV2(t *testing.T) {
	client := aitest.New(`{
		"subject": "",
		"greeting": "Dear Mr. Smith,",
		"paragraphs": ["First.", "  ", "Second."],
		"key_points": ["Go in production"],
		"closing": "Regards"
	}`)
	gen := newGenerator(t, V2, client, feature.Config{"temperature": 0.3})

	opts, err := feature.ParseOptions(map[string]any{
		"recipient_name":   "Mr. Smith",
		"highlight_skills": []any{"Go", " "},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := gen.Generate(context.Background(), testResume, testVacancy, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	letter := res.(*LetterV2)
	if len(letter.Paragraphs) != 2 {
		t.Fatalf("expected blank paragraphs to be dropped, got %v", letter.Paragraphs)
	}
	if letter.Subject != "Application: Backend Engineer at Acme" {
		t.Fatalf("expected fallback subject, got %q", letter.Subject)
	}

	req := client.LastRequest()
	if req.Temperature == nil || *req.Temperature != 0.3 {
		t.Fatalf("expected temperature from config, got %v", req.Temperature)
	}
	for _, want := range []string{"Address the letter to Mr. Smith.", "these skills are covered when the resume supports them: Go."} {
		if !strings.Contains(req.Prompt, want) {
			t.Fatalf("expected prompt to contain %q:\n%s", want, req.Prompt)
		}
	}

	doc := letter.Document()
	if doc.Title != letter.Subject || len(doc.Sections) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		response  string
		opts      map[string]any
		resume    *model.Resume
		wantField string
	}{
		{
			name:      "empty body",
			version:   V1,
			response:  `{"greeting": "Hi", "body": "  ", "closing": "Bye"}`,
			wantField: "body",
		},
		{
			name:      "empty paragraphs",
			version:   V2,
			response:  `{"subject": "s", "paragraphs": []}`,
			wantField: "paragraphs",
		},
		{
			name:      "too long",
			version:   V1,
			response:  `{"body": "` + strings.Repeat("word ", 50) + `"}`,
			opts:      map[string]any{"max_words": 10},
			wantField: "max_words",
		},
		{
			name:      "too many highlights",
			version:   V2,
			opts:      map[string]any{"highlight_skills": strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",")},
			wantField: "highlight_skills",
		},
		{
			name:      "empty resume",
			version:   V1,
			resume:    &model.Resume{},
			wantField: "resume",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newGenerator(t, tt.version, aitest.New(tt.response), nil)
			opts, err := feature.ParseOptions(tt.opts)
			if err != nil {
				t.Fatalf("unexpected options error: %v", err)
			}
			resume := testResume
			if tt.resume != nil {
				resume = tt.resume
			}

			_, err = gen.Generate(context.Background(), resume, testVacancy, opts)
			var ve *feature.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Fatalf("expected field %q, got %q", tt.wantField, ve.Field)
			}
		})
	}
}

func TestFactoryRejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(V1, aitest.New(), nil)(feature.Config{"temperature": 5}); err == nil {
		t.Fatalf("expected error for out of range temperature")
	}
	if _, err := NewFactory("v9", aitest.New(), nil)(nil); err == nil {
		t.Fatalf("expected error for unknown version")
	}
}

func TestGeneratorDescribesItself(t *testing.T) {
	gen := newGenerator(t, V2, aitest.New(), nil)
	if gen.FeatureName() != Name {
		t.Fatalf("unexpected name %q", gen.FeatureName())
	}
	if got := strings.Join(gen.SupportedVersions(), ","); got != "v1,v2" {
		t.Fatalf("unexpected versions %q", got)
	}
}
