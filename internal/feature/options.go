package feature

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
)

const (
	MaxWordsLimit      = 5000
	maxLanguageRunes   = 32
	maxToneRunes       = 64
	maxInstructionRune = 2000
)

// Options is the validated per-request configuration of a generation.
// Keys outside the base shape are kept in Extra for feature-specific decoding.
type Options struct {
	Language         string         `mapstructure:"language" json:"language,omitempty"`
	Tone             string         `mapstructure:"tone" json:"tone,omitempty"`
	MaxWords         int            `mapstructure:"max_words" json:"max_words,omitempty"`
	UserInstructions string         `mapstructure:"user_instructions" json:"user_instructions,omitempty"`
	Extra            map[string]any `mapstructure:",remain" json:"extra,omitempty"`
}

// ParseOptions decodes and validates the raw options mapping of a request.
func ParseOptions(raw map[string]any) (Options, error) {
	var opts Options
	if len(raw) == 0 {
		return opts, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("create options decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return opts, &ValidationError{Field: "options", Message: err.Error()}
	}

	opts.Language = strings.TrimSpace(opts.Language)
	opts.Tone = strings.TrimSpace(opts.Tone)
	opts.UserInstructions = strings.TrimSpace(opts.UserInstructions)

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate checks the base option fields.
func (o Options) Validate() error {
	switch {
	case o.MaxWords < 0 || o.MaxWords > MaxWordsLimit:
		return Invalid("max_words", "must be between 0 and %d", MaxWordsLimit)
	case utf8.RuneCountInString(o.Language) > maxLanguageRunes:
		return Invalid("language", "must not exceed %d characters", maxLanguageRunes)
	case utf8.RuneCountInString(o.Tone) > maxToneRunes:
		return Invalid("tone", "must not exceed %d characters", maxToneRunes)
	case utf8.RuneCountInString(o.UserInstructions) > maxInstructionRune:
		return Invalid("user_instructions", "must not exceed %d characters", maxInstructionRune)
	}
	return nil
}

// Decode decodes the feature-specific extensions into target.
func (o Options) Decode(target any) error {
	if len(o.Extra) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("create options decoder: %w", err)
	}
	if err := decoder.Decode(o.Extra); err != nil {
		return &ValidationError{Field: "options", Message: err.Error()}
	}
	return nil
}

// LanguageOr returns the requested language or fallback.
func (o Options) LanguageOr(fallback string) string {
	if o.Language == "" {
		return fallback
	}
	return o.Language
}

func (o Options) ToneOr(fallback string) string {
	if o.Tone == "" {
		return fallback
	}
	return o.Tone
}
