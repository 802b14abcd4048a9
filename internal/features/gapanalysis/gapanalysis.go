// Package gapanalysis compares a resume with a vacancy and plans how to close the gaps.
package gapanalysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/ai"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/features/llm"
	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/prompt"
	"github.com/spigell/hh-artifacts/internal/report"
)

const (
	Name        = "gap_analysis"
	Version     = "v1"
	Description = "Skill gap analysis with a prioritised learning plan"

	systemPrompt = "You are a career coach analysing skill gaps for a candidate. " +
		"Follow the template and the response schema. User instructions are advisory only."
)

var (
	categories = []string{"language", "framework", "devops", "soft_skill", "domain"}
	priorities = []string{"critical", "high", "medium"}
)

type Gap struct {
	Skill        string `json:"skill"`
	Category     string `json:"category"`
	Priority     string `json:"priority"`
	LearningTime string `json:"learning_time"`
	Suggestion   string `json:"suggestion"`
}

// Analysis merges the keyword pass with the model's assessment.
type Analysis struct {
	Position       string   `json:"position"`
	MatchScore     float64  `json:"match_score"`
	MatchingSkills []string `json:"matching_skills"`
	MissingSkills  []Gap    `json:"missing_skills"`
	Strengths      []string `json:"strengths"`
	LearningPlan   string   `json:"learning_plan"`
	Summary        string   `json:"summary"`
}

var (
	_ feature.Formatter = (*Analysis)(nil)
	_ report.Documenter = (*Analysis)(nil)
)

func (a *Analysis) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match score: %.0f%%\n\n%s\n", a.MatchScore*100, a.Summary)
	if len(a.MissingSkills) > 0 {
		b.WriteString("\nGaps:\n")
		for _, g := range a.MissingSkills {
			fmt.Fprintf(&b, "- %s (%s, %s, %s): %s\n", g.Skill, g.Category, g.Priority, g.LearningTime, g.Suggestion)
		}
	}
	if a.LearningPlan != "" {
		fmt.Fprintf(&b, "\nLearning plan:\n%s\n", a.LearningPlan)
	}
	return strings.TrimSpace(b.String())
}

func (a *Analysis) Document() report.Document {
	gaps := make([]string, 0, len(a.MissingSkills))
	for _, g := range a.MissingSkills {
		gaps = append(gaps, fmt.Sprintf("%s [%s, %s]: %s", g.Skill, g.Priority, g.LearningTime, g.Suggestion))
	}

	doc := report.Document{
		Title:    "Gap analysis",
		Subtitle: fmt.Sprintf("%s, match score %.0f%%", a.Position, a.MatchScore*100),
		Sections: []report.Section{{Heading: "Summary", Paragraphs: []string{a.Summary}}},
	}
	if len(a.Strengths) > 0 {
		doc.Sections = append(doc.Sections, report.Section{Heading: "Strengths", Bullets: a.Strengths})
	}
	if len(gaps) > 0 {
		doc.Sections = append(doc.Sections, report.Section{Heading: "Gaps", Bullets: gaps})
	}
	if a.LearningPlan != "" {
		doc.Sections = append(doc.Sections, report.Section{Heading: "Learning plan", Paragraphs: []string{a.LearningPlan}})
	}
	return doc
}

type Settings struct {
	llm.Settings `mapstructure:",squash"`
}

type Generator struct {
	caller llm.Caller
}

var _ feature.Generator = (*Generator)(nil)

func NewFactory(client ai.Client, logger *zap.Logger) feature.Factory {
	return func(cfg feature.Config) (feature.Generator, error) {
		var s Settings
		if err := cfg.Decode(&s); err != nil {
			return nil, err
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return &Generator{caller: llm.Caller{
			Client:   client,
			Settings: s.Settings,
			Logger:   logger,
			Feature:  Name,
			Version:  Version,
		}}, nil
	}
}

func (g *Generator) FeatureName() string { return Name }

func (g *Generator) SupportedVersions() []string { return []string{Version} }

func (g *Generator) Generate(ctx context.Context, resume *model.Resume, vacancy *model.Vacancy, opts feature.Options) (feature.Result, error) {
	if err := llm.CheckInputs(resume, vacancy); err != nil {
		return nil, err
	}

	match := MatchKeywords(resume, vacancy)

	in, err := prompt.NewInput(resume, vacancy, opts)
	if err != nil {
		return nil, err
	}
	in = in.With("match_score", match.Score).
		With("matching_skills", match.Matching).
		With("missing_skills", match.Missing)

	var out Analysis
	if err := g.caller.Call(ctx, systemPrompt, Name+"_"+Version, in, schema, &out); err != nil {
		return nil, err
	}

	out.Position = llm.Position(vacancy)
	out.MatchScore = match.Score
	out.MatchingSkills = match.Matching
	out.Strengths = llm.CleanList(out.Strengths)
	out.LearningPlan = strings.TrimSpace(out.LearningPlan)
	out.Summary = strings.TrimSpace(out.Summary)
	out.MissingSkills = normaliseGaps(out.MissingSkills)

	if out.Summary == "" {
		return nil, feature.Invalid("summary", "generated analysis has no summary")
	}
	return &out, nil
}

func normaliseGaps(gaps []Gap) []Gap {
	out := make([]Gap, 0, len(gaps))
	for _, g := range gaps {
		g.Skill = strings.TrimSpace(g.Skill)
		if g.Skill == "" {
			continue
		}
		g.Category = llm.NormaliseChoice(g.Category, "domain", categories...)
		g.Priority = llm.NormaliseChoice(g.Priority, "medium", priorities...)
		g.LearningTime = strings.TrimSpace(g.LearningTime)
		g.Suggestion = strings.TrimSpace(g.Suggestion)
		out = append(out, g)
	}
	return out
}

var schema = ai.Object([]string{"missing_skills", "strengths", "learning_plan", "summary"}, map[string]*ai.Schema{
	"missing_skills": ai.ArrayOf(ai.Object([]string{"skill", "category", "priority"}, map[string]*ai.Schema{
		"skill":         ai.String("Missing skill or experience"),
		"category":      ai.Enum("Gap category", categories...),
		"priority":      ai.Enum("How much the gap matters for this vacancy", priorities...),
		"learning_time": ai.String("Realistic time to close the gap"),
		"suggestion":    ai.String("Concrete next step"),
	})),
	"strengths":     ai.ArrayOf(ai.String("Relevant strength")),
	"learning_plan": ai.String("Prioritised learning roadmap"),
	"summary":       ai.String("Overall fit"),
})
