package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/dispatch"
	"github.com/spigell/hh-artifacts/internal/metrics"
	"github.com/spigell/hh-artifacts/internal/pdftext"
	"github.com/spigell/hh-artifacts/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the artifact generation API over HTTP",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	config, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting the hh-artifacts server", zap.String("version", version))

	client, err := newAIClient(ctx, config, logger)
	if err != nil {
		logger.Error("creating the AI client", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'gemini.api-key-file' key in the configuration file"),
		)
		return err
	}

	reg, err := newRegistry(client, config, logger)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink, err := metrics.NewPromSink(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	sink.SetRegisteredFeatures(len(reg.Features()))

	sessions, closeStore, err := openSessions(config, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if interval := config.Session.CleanupInterval; interval > 0 {
		go sessions.RunCleanup(runCtx, interval)
	}

	deps := server.Deps{
		Dispatcher: dispatch.New(reg,
			dispatch.WithSessions(sessions),
			dispatch.WithMetrics(sink),
			dispatch.WithTimeout(config.GenerationTimeout),
			dispatch.WithLogger(logger),
		),
		Sessions: sessions,
		Renderer: newRenderer(config),
		Gatherer: promReg,
		Logger:   logger,
	}

	extractor := pdftext.New()
	if extractor.Available() {
		deps.Extractor = extractor
	} else {
		logger.Warn("pdftotext is not installed, resume extraction is disabled")
	}

	for _, f := range deps.Dispatcher.Features() {
		logger.Info("feature available",
			zap.String("feature", f.Name),
			zap.Strings("versions", f.Versions),
			zap.String("default_version", f.DefaultVersion),
		)
	}

	return server.New(config.Server, logger).Run(runCtx, server.NewRouter(deps))
}
