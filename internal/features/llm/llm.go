// Package llm holds the plumbing shared by the LLM-backed feature generators.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/ai"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/logger"
	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/prompt"
)

const maxTemperature = 2.0

// Settings is the construction configuration every generator understands.
type Settings struct {
	Model           string   `mapstructure:"model"`
	Temperature     *float32 `mapstructure:"temperature"`
	MaxOutputTokens int32    `mapstructure:"max_output_tokens"`
}

func (s Settings) Validate() error {
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > maxTemperature) {
		return fmt.Errorf("temperature must be between 0 and %.1f", maxTemperature)
	}
	if s.MaxOutputTokens < 0 {
		return errors.New("max_output_tokens must not be negative")
	}
	return nil
}

// Caller sends prompts for one feature to the LLM client.
type Caller struct {
	Client   ai.Client
	Settings Settings
	Logger   *zap.Logger
	Feature  string
	Version  string
}

// Call renders the template, asks the model for JSON matching schema and decodes it into target.
func (c Caller) Call(ctx context.Context, system, template string, in prompt.Input, schema *ai.Schema, target any) error {
	if c.Client == nil {
		return errors.New("llm client is not configured")
	}

	text, err := prompt.Build(template, in)
	if err != nil {
		return err
	}

	log := logger.WithFields(c.Logger, logger.FeatureFields(c.Feature, c.Version)...)
	log = logger.WithCommonFields(log, c.Client.Provider(), c.Settings.Model)
	log.Debug("feature prompt built",
		zap.String("template", template),
		zap.Int("prompt_length", utf8.RuneCountInString(text)),
	)

	raw, err := c.Client.GenerateJSON(ctx, ai.Request{
		System:          system,
		Prompt:          text,
		Schema:          schema,
		Model:           c.Settings.Model,
		Temperature:     c.Settings.Temperature,
		MaxOutputTokens: c.Settings.MaxOutputTokens,
	})
	if err != nil {
		return err
	}

	if err := ai.DecodeJSON(raw, target); err != nil {
		log.Warn("model returned malformed output", zap.Error(err))
		return fmt.Errorf("decode %s response: %w", c.Feature, err)
	}
	return nil
}

// CheckInputs rejects records a generator cannot work with.
func CheckInputs(resume *model.Resume, vacancy *model.Vacancy) error {
	if err := resume.Validate(); err != nil {
		return &feature.ValidationError{Field: "resume", Message: err.Error()}
	}
	if err := vacancy.Validate(); err != nil {
		return &feature.ValidationError{Field: "vacancy", Message: err.Error()}
	}
	return nil
}

// Position describes the vacancy for report titles.
func Position(v *model.Vacancy) string {
	title := strings.TrimSpace(v.Title)
	company := strings.TrimSpace(v.Company)
	switch {
	case title == "":
		return company
	case company == "":
		return title
	default:
		return title + " at " + company
	}
}

// WordCount counts whitespace-separated words.
func WordCount(parts ...string) int {
	n := 0
	for _, p := range parts {
		n += len(strings.Fields(p))
	}
	return n
}

// NormaliseChoice lowercases v and returns it when allowed, fallback otherwise.
func NormaliseChoice(v string, fallback string, allowed ...string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}

// CleanList trims items and drops empty ones.
func CleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
