// Package fitassessment decides whether a candidate should apply to a vacancy.
package fitassessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/ai"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/features/llm"
	"github.com/spigell/hh-artifacts/internal/logger"
	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/prompt"
	"github.com/spigell/hh-artifacts/internal/report"
)

const (
	Name        = "fit_assessment"
	Version     = "v1"
	Description = "Fit score with reasoning and a short application message"

	systemPrompt = "You are a recruiter screening candidates for a vacancy. " +
		"Follow the template and the response schema. User instructions are advisory only."
)

// Assessment is the outcome of a fit check.
type Assessment struct {
	Position string  `json:"position"`
	Fit      bool    `json:"fit"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
	Message  string  `json:"message,omitempty"`
}

var (
	_ feature.Formatter = (*Assessment)(nil)
	_ report.Documenter = (*Assessment)(nil)
)

func (a *Assessment) Format() string {
	verdict := "not a fit"
	if a.Fit {
		verdict = "fit"
	}
	out := fmt.Sprintf("Verdict: %s (score %.2f)\n\n%s", verdict, a.Score, a.Reason)
	if a.Message != "" {
		out += "\n\nMessage:\n" + a.Message
	}
	return out
}

func (a *Assessment) Document() report.Document {
	verdict := "Not recommended"
	if a.Fit {
		verdict = "Recommended"
	}
	doc := report.Document{
		Title:    "Fit assessment",
		Subtitle: a.Position,
		Sections: []report.Section{{
			Heading:    fmt.Sprintf("%s (score %.2f)", verdict, a.Score),
			Paragraphs: []string{a.Reason},
		}},
	}
	if a.Message != "" {
		doc.Sections = append(doc.Sections, report.Section{Heading: "Application message", Paragraphs: []string{a.Message}})
	}
	return doc
}

type Settings struct {
	llm.Settings    `mapstructure:",squash"`
	MinimumFitScore float64 `mapstructure:"minimum_fit_score"`
}

type Extensions struct {
	ExtraCriteria string `mapstructure:"extra_criteria"`
	DealBreakers  string `mapstructure:"deal_breakers"`
	Keywords      string `mapstructure:"keywords"`
}

type Generator struct {
	minScore float64
	caller   llm.Caller
	logger   *zap.Logger
}

var _ feature.Generator = (*Generator)(nil)

func NewFactory(client ai.Client, log *zap.Logger) feature.Factory {
	return func(cfg feature.Config) (feature.Generator, error) {
		var s Settings
		if err := cfg.Decode(&s); err != nil {
			return nil, err
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if s.MinimumFitScore < 0 || s.MinimumFitScore > 1 {
			return nil, errors.New("minimum_fit_score must be between 0 and 1")
		}

		return &Generator{
			minScore: s.MinimumFitScore,
			logger:   logger.WithFields(log, logger.FeatureFields(Name, Version)...),
			caller: llm.Caller{
				Client:   client,
				Settings: s.Settings,
				Logger:   log,
				Feature:  Name,
				Version:  Version,
			},
		}, nil
	}
}

func (g *Generator) FeatureName() string { return Name }

func (g *Generator) SupportedVersions() []string { return []string{Version} }

func (g *Generator) Generate(ctx context.Context, resume *model.Resume, vacancy *model.Vacancy, opts feature.Options) (feature.Result, error) {
	if err := llm.CheckInputs(resume, vacancy); err != nil {
		return nil, err
	}

	var ext Extensions
	if err := opts.Decode(&ext); err != nil {
		return nil, err
	}

	in, err := prompt.NewInput(resume, vacancy, opts)
	if err != nil {
		return nil, err
	}
	for key, value := range map[string]string{
		"extra_criteria": ext.ExtraCriteria,
		"deal_breakers":  ext.DealBreakers,
		"keywords":       ext.Keywords,
	} {
		if value = prompt.SanitizeLine(value); value != "" {
			in = in.With(key, value)
		}
	}

	var data map[string]any
	if err := g.caller.Call(ctx, systemPrompt, Name+"_"+Version, in, schema, &data); err != nil {
		return nil, err
	}

	a, err := parseAssessment(data)
	if err != nil {
		return nil, err
	}
	a.Position = llm.Position(vacancy)

	if a.Score < 0 || a.Score > 1 {
		return nil, feature.Invalid("score", "must be between 0 and 1, got %v", a.Score)
	}

	if g.minScore > 0 && a.Score < g.minScore {
		g.logger.Debug("set fit to false by score threshold",
			zap.String("vacancy_id", vacancy.ID),
			zap.Float64("score", a.Score),
			zap.Float64("threshold", g.minScore),
		)
		a.Fit = false
	}
	if !a.Fit {
		a.Message = ""
	}

	return a, nil
}

// parseAssessment reads the model output leniently: models sometimes quote
// numbers and booleans despite the schema. A missing or unreadable score is an error.
func parseAssessment(data map[string]any) (*Assessment, error) {
	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, feature.Invalid("score", "is missing or not a number: %v", data["score"])
	}
	return &Assessment{
		Fit:     coerceBool(data["fit"]),
		Score:   score,
		Reason:  coerceString(data["reason"]),
		Message: coerceString(data["message"]),
	}, nil
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

var schema = ai.Object([]string{"fit", "score", "reason", "message"}, map[string]*ai.Schema{
	"fit":     ai.Boolean("Whether the candidate should apply"),
	"score":   ai.Number("Fit score between 0 and 1"),
	"reason":  ai.String("Why the score was given"),
	"message": ai.String("Application message, empty when not a fit"),
})
