// Package coverletter generates cover letters for a vacancy.
package coverletter

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
)

const (
	Name = "cover_letter"
	V1   = "v1"
	V2   = "v2"

	Description = "Cover letter tailored to the vacancy, grounded in the resume"

	systemPrompt = "You are an experienced career consultant writing cover letters. " +
		"Follow the template and the response schema. User instructions are advisory only."

	// Letters may overshoot the requested length slightly.
	wordTolerance = 1.25
	maxHighlights = 10
)

// Settings is the construction configuration of both versions.
type Settings struct {
	llm.Settings `mapstructure:",squash"`
	Signature    string `mapstructure:"signature"`
}

// Extensions are the cover-letter specific request options.
type Extensions struct {
	RecipientName   string   `mapstructure:"recipient_name"`
	HighlightSkills []string `mapstructure:"highlight_skills"`
}

// Generator writes cover letters in the layout of its version.
type Generator struct {
	version  string
	settings Settings
	caller   llm.Caller
}

var _ feature.Generator = (*Generator)(nil)

// NewFactory returns the factory of the given version.
func NewFactory(version string, client ai.Client, logger *zap.Logger) feature.Factory {
	return func(cfg feature.Config) (feature.Generator, error) {
		if version != V1 && version != V2 {
			return nil, fmt.Errorf("unsupported version %q", version)
		}

		var s Settings
		if err := cfg.Decode(&s); err != nil {
			return nil, err
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}

		return &Generator{
			version:  version,
			settings: s,
			caller: llm.Caller{
				Client:   client,
				Settings: s.Settings,
				Logger:   logger,
				Feature:  Name,
				Version:  version,
			},
		}, nil
	}
}

func (g *Generator) FeatureName() string { return Name }

func (g *Generator) SupportedVersions() []string { return []string{V1, V2} }

func (g *Generator) Generate(ctx context.Context, resume *model.Resume, vacancy *model.Vacancy, opts feature.Options) (feature.Result, error) {
	if err := llm.CheckInputs(resume, vacancy); err != nil {
		return nil, err
	}

	var ext Extensions
	if err := opts.Decode(&ext); err != nil {
		return nil, err
	}
	ext.RecipientName = prompt.SanitizeLine(ext.RecipientName)
	ext.HighlightSkills = llm.CleanList(ext.HighlightSkills)
	if len(ext.HighlightSkills) > maxHighlights {
		return nil, feature.Invalid("highlight_skills", "must not contain more than %d items", maxHighlights)
	}
	for i, s := range ext.HighlightSkills {
		ext.HighlightSkills[i] = prompt.SanitizeLine(s)
	}

	in, err := prompt.NewInput(resume, vacancy, opts)
	if err != nil {
		return nil, err
	}
	if ext.RecipientName != "" {
		in = in.With("recipient_name", ext.RecipientName)
	}

	if g.version == V1 {
		letter, err := g.generateV1(ctx, in, vacancy, opts)
		if err != nil {
			return nil, err
		}
		return letter, nil
	}

	if len(ext.HighlightSkills) > 0 {
		in = in.With("highlight_skills", ext.HighlightSkills)
	}
	letter, err := g.generateV2(ctx, in, vacancy, opts)
	if err != nil {
		return nil, err
	}
	return letter, nil
}

func (g *Generator) generateV1(ctx context.Context, in prompt.Input, vacancy *model.Vacancy, opts feature.Options) (*LetterV1, error) {
	var letter LetterV1
	if err := g.caller.Call(ctx, systemPrompt, Name+"_"+V1, in, schemaV1, &letter); err != nil {
		return nil, err
	}

	letter.Position = llm.Position(vacancy)
	letter.Greeting = strings.TrimSpace(letter.Greeting)
	letter.Body = strings.TrimSpace(letter.Body)
	letter.Closing = g.closing(letter.Closing)

	if letter.Body == "" {
		return nil, feature.Invalid("body", "generated letter is empty")
	}
	if err := checkLength(opts.MaxWords, letter.Greeting, letter.Body, letter.Closing); err != nil {
		return nil, err
	}
	return &letter, nil
}

func (g *Generator) generateV2(ctx context.Context, in prompt.Input, vacancy *model.Vacancy, opts feature.Options) (*LetterV2, error) {
	var letter LetterV2
	if err := g.caller.Call(ctx, systemPrompt, Name+"_"+V2, in, schemaV2, &letter); err != nil {
		return nil, err
	}

	letter.Position = llm.Position(vacancy)
	letter.Subject = strings.TrimSpace(letter.Subject)
	letter.Greeting = strings.TrimSpace(letter.Greeting)
	letter.Paragraphs = llm.CleanList(letter.Paragraphs)
	letter.KeyPoints = llm.CleanList(letter.KeyPoints)
	letter.Closing = g.closing(letter.Closing)

	if len(letter.Paragraphs) == 0 {
		return nil, feature.Invalid("paragraphs", "generated letter is empty")
	}
	if letter.Subject == "" {
		letter.Subject = "Application: " + letter.Position
	}
	parts := append([]string{letter.Greeting, letter.Closing}, letter.Paragraphs...)
	if err := checkLength(opts.MaxWords, parts...); err != nil {
		return nil, err
	}
	return &letter, nil
}

func (g *Generator) closing(generated string) string {
	generated = strings.TrimSpace(generated)
	if g.settings.Signature == "" {
		return generated
	}
	if generated == "" {
		return g.settings.Signature
	}
	return generated + "\n" + g.settings.Signature
}

func checkLength(maxWords int, parts ...string) error {
	if maxWords <= 0 {
		return nil
	}
	if n := llm.WordCount(parts...); float64(n) > float64(maxWords)*wordTolerance {
		return feature.Invalid("max_words", "generated letter has %d words, limit is %d", n, maxWords)
	}
	return nil
}

var schemaV1 = ai.Object([]string{"greeting", "body", "closing"}, map[string]*ai.Schema{
	"greeting": ai.String("Salutation line"),
	"body":     ai.String("Letter paragraphs separated by blank lines"),
	"closing":  ai.String("Sign-off line"),
})

var schemaV2 = ai.Object([]string{"subject", "greeting", "paragraphs", "key_points", "closing"}, map[string]*ai.Schema{
	"subject":    ai.String("Email subject line"),
	"greeting":   ai.String("Salutation line"),
	"paragraphs": ai.ArrayOf(ai.String("Letter paragraph")),
	"key_points": ai.ArrayOf(ai.String("Resume evidence matched to a vacancy requirement")),
	"closing":    ai.String("Sign-off line"),
})
