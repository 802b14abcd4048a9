package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/ai"
	"github.com/spigell/hh-artifacts/internal/ai/gemini"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/features"
	"github.com/spigell/hh-artifacts/internal/headhunter"
	"github.com/spigell/hh-artifacts/internal/report"
	"github.com/spigell/hh-artifacts/internal/secrets"
	"github.com/spigell/hh-artifacts/internal/session"
	"github.com/spigell/hh-artifacts/internal/store/sqlite"
)

func newAIClient(ctx context.Context, config *Config, logger *zap.Logger) (ai.Client, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.Gemini.APIKey,
		File:  config.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	return gemini.NewGenerator(ctx, gemini.Config{
		APIKey:            apiKey,
		Model:             config.Gemini.Model,
		MaxRetries:        config.Gemini.MaxRetries,
		MaxLogLength:      config.Gemini.MaxLogLength,
		RequestsPerSecond: config.Gemini.RequestsPerSecond,
	}, logger)
}

// newRegistry registers the built-in features. client may be nil when the
// registry is only listed.
func newRegistry(client ai.Client, config *Config, logger *zap.Logger) (*feature.Registry, error) {
	reg := feature.NewRegistry()
	if err := features.RegisterAll(reg, client, logger, config.FeatureConfigs()); err != nil {
		return nil, fmt.Errorf("register features: %w", err)
	}
	return reg, nil
}

// openSessions opens the store under the data dir. The returned close func
// must be called on exit.
func openSessions(config *Config, logger *zap.Logger) (*session.Manager, func(), error) {
	st, err := sqlite.New(config.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	logger.Debug("storage opened", zap.String("path", st.Path()))

	closeFn := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}

	return session.NewManager(st, session.WithTTL(config.Session.TTL), session.WithLogger(logger)), closeFn, nil
}

func newHeadhunter(config *Config, logger *zap.Logger) (*headhunter.Client, error) {
	token, err := secrets.LoadOptional(secrets.Source{
		Name:  "headhunter token",
		Value: config.HH.Token,
		File:  config.HH.TokenFile,
	})
	if err != nil {
		return nil, err
	}
	if token == "" {
		logger.Warn("headhunter token is not set, only public resources are available",
			zap.String("hint", "set HH_TOKEN_FILE environment variable or the 'hh.token-file' key in the configuration file"),
		)
	}

	hh := headhunter.New(logger, token)
	if config.HH.UserAgent != "" {
		hh.UserAgent = config.HH.UserAgent
	}
	return hh, nil
}

func newRenderer(config *Config) *report.Renderer {
	return report.NewRenderer(report.Config{
		FontPath:     config.Report.FontPath,
		BoldFontPath: config.Report.BoldFontPath,
		Author:       config.Report.Author,
	})
}
