package gapanalysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/hh-artifacts/internal/ai/aitest"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/model"
)

func TestMatchKeywords(t *testing.T) {
	t.Parallel()

	resume := &model.Resume{
		Skills:  []string{"Go", "docker"},
		Summary: "Built services on Kubernetes and PostgreSQL.",
		Experience: []model.Experience{
			{Position: "Engineer", Description: "Worked at Google with C++"},
		},
	}

	tests := []struct {
		name         string
		keySkills    []string
		wantScore    float64
		wantMatching []string
		wantMissing  []string
	}{
		{
			name:         "mixed",
			keySkills:    []string{"Go", "Docker", "kubernetes", "Kafka"},
			wantScore:    0.75,
			wantMatching: []string{"Go", "Docker", "kubernetes"},
			wantMissing:  []string{"Kafka"},
		},
		{
			name:         "word boundaries",
			keySkills:    []string{"C++", "oogle"},
			wantScore:    0.5,
			wantMatching: []string{"C++"},
			wantMissing:  []string{"oogle"},
		},
		{
			name:         "no key skills",
			wantScore:    0,
			wantMatching: []string{},
			wantMissing:  []string{},
		},
	}

	for _, tt := range tests {
		got := MatchKeywords(resume, &model.Vacancy{Title: "x", KeySkills: tt.keySkills})
		if got.Score != tt.wantScore {
			t.Fatalf("%s: expected score %v, got %v", tt.name, tt.wantScore, got.Score)
		}
		if strings.Join(got.Matching, ",") != strings.Join(tt.wantMatching, ",") {
			t.Fatalf("%s: unexpected matching %v", tt.name, got.Matching)
		}
		if strings.Join(got.Missing, ",") != strings.Join(tt.wantMissing, ",") {
			t.Fatalf("%s: unexpected missing %v", tt.name, got.Missing)
		}
	}
}

func TestGenerate(t *testing.T) {
	client := aitest.New(`{
		"missing_skills": [
			{"skill": "Kafka", "category": "Framework", "priority": "critical", "learning_time": "2 weeks", "suggestion": "Build a consumer"},
			{"skill": " ", "category": "x"},
			{"skill": "Team lead", "category": "leadership", "priority": "someday"}
		],
		"strengths": ["Go", ""],
		"learning_plan": "Kafka first.",
		"summary": "Strong backend profile."
	}`)
	gen, err := NewFactory(client, nil)(nil)
	if err != nil {
		t.Fatalf("unexpected factory error: %v", err)
	}

	resume := &model.Resume{Skills: []string{"Go"}}
	vacancy := &model.Vacancy{Title: "Backend", KeySkills: []string{"Go", "Kafka"}}

	res, err := gen.Generate(context.Background(), resume, vacancy, feature.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := res.(*Analysis)

	if a.MatchScore != 0.5 || len(a.MatchingSkills) != 1 {
		t.Fatalf("expected local match to be kept, got %+v", a)
	}
	if len(a.MissingSkills) != 2 {
		t.Fatalf("expected blank gap to be dropped, got %+v", a.MissingSkills)
	}
	if a.MissingSkills[0].Category != "framework" || a.MissingSkills[1].Category != "domain" || a.MissingSkills[1].Priority != "medium" {
		t.Fatalf("unexpected normalisation: %+v", a.MissingSkills)
	}
	if len(a.Strengths) != 1 {
		t.Fatalf("unexpected strengths %v", a.Strengths)
	}

	prompt := client.LastRequest().Prompt
	for _, want := range []string{"Computed match score: 0.50", "Matching skills: Go", "Missing skills: Kafka"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q:\n%s", want, prompt)
		}
	}

	if !strings.Contains(a.Format(), "Match score: 50%") {
		t.Fatalf("unexpected format:\n%s", a.Format())
	}
	if doc := a.Document(); len(doc.Sections) != 4 {
		t.Fatalf("unexpected document sections: %+v", doc.Sections)
	}

	m, err := feature.ToMap(res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["match_score"] != 0.5 {
		t.Fatalf("unexpected normalised result: %v", m)
	}
}

func TestGenerateRequiresSummary(t *testing.T) {
	gen, err := NewFactory(aitest.New(`{"missing_skills": [], "summary": " "}`), nil)(nil)
	if err != nil {
		t.Fatalf("unexpected factory error: %v", err)
	}

	_, err = gen.Generate(context.Background(), &model.Resume{Summary: "x"}, &model.Vacancy{Title: "y"}, feature.Options{})
	var ve *feature.ValidationError
	if !errors.As(err, &ve) || ve.Field != "summary" {
		t.Fatalf("expected summary validation error, got %v", err)
	}
}
