package feature

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/hh-artifacts/internal/model"
)

// Result is the feature-specific output of a generator.
type Result any

// Generator produces an artifact from a resume and a vacancy.
// Generate may block on calls to the LLM provider; cancellation comes from ctx.
type Generator interface {
	Generate(ctx context.Context, resume *model.Resume, vacancy *model.Vacancy, opts Options) (Result, error)
	FeatureName() string
	SupportedVersions() []string
}

// Formatter is implemented by results that have a human-readable rendering.
type Formatter interface {
	Format() string
}

// Config is the construction configuration passed to a Factory.
type Config map[string]any

// Factory builds a fresh generator from the merged configuration.
type Factory func(cfg Config) (Generator, error)

// Merge returns a new Config with overrides applied on top of c.
func (c Config) Merge(overrides Config) Config {
	merged := make(Config, len(c)+len(overrides))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Decode decodes the configuration into a settings struct using mapstructure tags.
func (c Config) Decode(target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		Result:           target,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("create config decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(c)); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ToMap normalises a result into a plain mapping keyed by the result's json tags.
func ToMap(result Result) (map[string]any, error) {
	if result == nil {
		return map[string]any{}, nil
	}
	if m, ok := result.(map[string]any); ok {
		return m, nil
	}

	out := make(map[string]any)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, fmt.Errorf("create result decoder: %w", err)
	}
	if err := decoder.Decode(result); err != nil {
		return nil, fmt.Errorf("normalise result: %w", err)
	}
	return out, nil
}
