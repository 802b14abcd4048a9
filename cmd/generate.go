package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/dispatch"
	"github.com/spigell/hh-artifacts/internal/report"
	"github.com/spigell/hh-artifacts/internal/session"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var generateCmd = &cobra.Command{
	Use:   "generate [feature]",
	Short: "Generate one artifact and print it or save it as PDF",
	Long: `Generate one artifact from a resume and a vacancy.

Records come from files (--resume, --vacancy), hh.ru (--hh-resume, --hh-vacancy)
or a stored session (--session). The feature is chosen interactively when omitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: generate,
}

var generateFlags struct {
	inputs      inputFlags
	version     string
	sessionID   string
	userID      string
	orgID       string
	options     map[string]string
	optionsFile string
	output      string
	format      string
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringVar(&generateFlags.inputs.resumeFile, "resume", "", "resume file (JSON, PDF or text)")
	f.StringVar(&generateFlags.inputs.vacancyFile, "vacancy", "", "vacancy file (JSON or text, first line is the title)")
	f.StringVar(&generateFlags.inputs.hhResume, "hh-resume", "", "hh.ru resume id")
	f.StringVar(&generateFlags.inputs.hhVacancy, "hh-vacancy", "", "hh.ru vacancy id")
	f.StringVar(&generateFlags.sessionID, "session", "", "stored session id")
	addIdentityFlags(f, &generateFlags.userID, &generateFlags.orgID)
	f.StringVar(&generateFlags.version, "feature-version", "", "feature version (default is the feature's default)")
	f.StringToStringVarP(&generateFlags.options, "option", "o", nil, "generation option as key=value, repeatable")
	f.StringVar(&generateFlags.optionsFile, "options-file", "", "YAML or JSON file with generation options")
	f.StringVar(&generateFlags.output, "output", "", "write the artifact to this file; a .pdf extension renders a PDF report")
	f.StringVar(&generateFlags.format, "format", formatText, "stdout format: text or json")
}

func generate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := generateFlags

	if flags.format != formatText && flags.format != formatJSON {
		return fmt.Errorf("unknown format %q", flags.format)
	}

	config, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := newAIClient(ctx, config, logger)
	if err != nil {
		return err
	}
	reg, err := newRegistry(client, config, logger)
	if err != nil {
		return err
	}

	opts := []dispatch.Option{
		dispatch.WithTimeout(config.GenerationTimeout),
		dispatch.WithLogger(logger),
	}
	req := dispatch.Request{
		Version:   flags.version,
		SessionID: flags.sessionID,
		Identity:  session.Identity{UserID: flags.userID, OrgID: flags.orgID},
	}

	if flags.sessionID != "" {
		sessions, closeStore, err := openSessions(config, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		opts = append(opts, dispatch.WithSessions(sessions))
	} else {
		req.Resume, req.Vacancy, err = loadRecords(ctx, flags.inputs, config, logger)
		if err != nil {
			return err
		}
	}

	if req.Options, err = readOptions(flags.optionsFile, flags.options); err != nil {
		return err
	}

	svc := dispatch.New(reg, opts...)

	if len(args) > 0 {
		req.Feature = args[0]
	} else if req.Feature, err = selectFeature(svc.Features()); err != nil {
		return err
	}

	out, err := svc.Dispatch(ctx, req)
	if err != nil {
		return err
	}
	logger.Debug("artifact generated", zap.String("feature", out.FeatureName), zap.String("version", out.Version))

	if flags.output != "" {
		return writeArtifact(cmd, config, out, flags.output)
	}
	return printArtifact(cmd, out, flags.format)
}

func selectFeature(listing []dispatch.Listing) (string, error) {
	if len(listing) == 0 {
		return "", errors.New("no features registered")
	}

	items := make([]string, 0, len(listing))
	for _, f := range listing {
		items = append(items, f.Name)
	}

	prompt := promptui.Select{
		Label: "Feature",
		Items: items,
	}
	_, name, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("select feature: %w", err)
	}
	return name, nil
}

func printArtifact(cmd *cobra.Command, out *dispatch.Outcome, format string) error {
	w := cmd.OutOrStdout()
	if format == formatText && out.FormattedOutput != "" {
		_, err := fmt.Fprintln(w, out.FormattedOutput)
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Envelope)
}

func writeArtifact(cmd *cobra.Command, config *Config, out *dispatch.Outcome, path string) error {
	var data []byte

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		doc, err := report.DocumentFor(out.Raw, strings.ReplaceAll(out.FeatureName, "_", " "))
		if err != nil {
			return err
		}
		if data, err = newRenderer(config).Render(cmd.Context(), doc); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
	} else {
		var err error
		if data, err = json.MarshalIndent(out.Envelope, "", "  "); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s written to %s\n", out.FeatureName, out.Version, path)
	return nil
}
