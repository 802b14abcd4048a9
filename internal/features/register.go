// Package features wires the built-in generators into a registry.
package features

import (
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/ai"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/features/checklist"
	"github.com/spigell/hh-artifacts/internal/features/coverletter"
	"github.com/spigell/hh-artifacts/internal/features/fitassessment"
	"github.com/spigell/hh-artifacts/internal/features/gapanalysis"
)

// Defaults returns the built-in construction configuration per feature.
func Defaults() map[string]feature.Config {
	return map[string]feature.Config{
		coverletter.Name:   {"temperature": 0.7, "max_output_tokens": 2048},
		checklist.Name:     {"temperature": 0.4, "max_output_tokens": 4096, "default_max_items": 20},
		gapanalysis.Name:   {"temperature": 0.3, "max_output_tokens": 4096},
		fitassessment.Name: {"temperature": 0.2, "max_output_tokens": 1024, "minimum_fit_score": 0.0},
	}
}

// RegisterAll registers every built-in generator. Configuration in configs is
// merged on top of the defaults of the matching feature.
func RegisterAll(reg *feature.Registry, client ai.Client, logger *zap.Logger, configs map[string]feature.Config) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	defaults := Defaults()
	cfg := func(name string) feature.Config {
		return defaults[name].Merge(configs[name])
	}

	registrations := []struct {
		name    string
		factory feature.Factory
		opts    []feature.RegisterOption
	}{
		{
			name:    coverletter.Name,
			factory: coverletter.NewFactory(coverletter.V1, client, logger),
			opts: []feature.RegisterOption{
				feature.WithVersion(coverletter.V1),
				feature.WithDescription(coverletter.Description),
				feature.WithDefaultConfig(cfg(coverletter.Name)),
			},
		},
		{
			name:    coverletter.Name,
			factory: coverletter.NewFactory(coverletter.V2, client, logger),
			opts: []feature.RegisterOption{
				feature.WithVersion(coverletter.V2),
				feature.WithDescription(coverletter.Description),
				feature.WithDefaultConfig(cfg(coverletter.Name)),
				feature.AsDefault(),
			},
		},
		{
			name:    checklist.Name,
			factory: checklist.NewFactory(client, logger),
			opts: []feature.RegisterOption{
				feature.WithVersion(checklist.Version),
				feature.WithDescription(checklist.Description),
				feature.WithDefaultConfig(cfg(checklist.Name)),
			},
		},
		{
			name:    gapanalysis.Name,
			factory: gapanalysis.NewFactory(client, logger),
			opts: []feature.RegisterOption{
				feature.WithVersion(gapanalysis.Version),
				feature.WithDescription(gapanalysis.Description),
				feature.WithDefaultConfig(cfg(gapanalysis.Name)),
			},
		},
		{
			name:    fitassessment.Name,
			factory: fitassessment.NewFactory(client, logger),
			opts: []feature.RegisterOption{
				feature.WithVersion(fitassessment.Version),
				feature.WithDescription(fitassessment.Description),
				feature.WithDefaultConfig(cfg(fitassessment.Name)),
			},
		},
	}

	for _, r := range registrations {
		if err := reg.Register(r.name, r.factory, r.opts...); err != nil {
			return err
		}
		logger.Debug("feature registered", zap.String("feature", r.name))
	}
	return nil
}
