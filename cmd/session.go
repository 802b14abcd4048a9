package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/headhunter"
	"github.com/spigell/hh-artifacts/internal/server"
	"github.com/spigell/hh-artifacts/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored sessions",
}

var sessionImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Store a resume and a vacancy as a session",
	Long: `Store a resume and a vacancy as a session.

Records come from hh.ru (--hh-resume, --hh-vacancy) or files (--resume, --vacancy).
When --hh-vacancy is set without a resume source, one of your hh.ru resumes is chosen interactively.`,
	RunE: importSession,
}

var sessionImportFlags struct {
	inputs inputFlags
	userID string
	orgID  string
	ttl    time.Duration
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionImportCmd)

	f := sessionImportCmd.Flags()
	f.StringVar(&sessionImportFlags.inputs.resumeFile, "resume", "", "resume file (JSON, PDF or text)")
	f.StringVar(&sessionImportFlags.inputs.vacancyFile, "vacancy", "", "vacancy file (JSON or text, first line is the title)")
	f.StringVar(&sessionImportFlags.inputs.hhResume, "hh-resume", "", "hh.ru resume id")
	f.StringVar(&sessionImportFlags.inputs.hhVacancy, "hh-vacancy", "", "hh.ru vacancy id")
	f.DurationVar(&sessionImportFlags.ttl, "ttl", 0, "session lifetime (default is session.ttl from the config)")
	addIdentityFlags(f, &sessionImportFlags.userID, &sessionImportFlags.orgID)
}

func addIdentityFlags(f *pflag.FlagSet, userID, orgID *string) {
	f.StringVar(userID, "user", server.DefaultUserID, "user id of the session owner")
	f.StringVar(orgID, "org", server.DefaultOrgID, "org id of the session owner")
}

func importSession(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := sessionImportFlags

	config, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if flags.inputs.hhVacancy != "" && flags.inputs.hhResume == "" && flags.inputs.resumeFile == "" {
		if flags.inputs.hhResume, err = selectResume(ctx, config, logger); err != nil {
			return err
		}
	}

	resume, vacancy, err := loadRecords(ctx, flags.inputs, config, logger)
	if err != nil {
		return err
	}
	if resume == nil || vacancy == nil {
		return errors.New("both a resume and a vacancy source are required")
	}

	sessions, closeStore, err := openSessions(config, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	id := session.Identity{UserID: flags.userID, OrgID: flags.orgID}
	sess, err := sessions.Init(ctx, id, resume, vacancy, flags.ttl)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	logger.Info("session stored",
		zap.String("session_id", sess.ID),
		zap.String("identity", id.String()),
		zap.Time("expires_at", sess.ExpiresAt),
	)
	fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
	return nil
}

func selectResume(ctx context.Context, config *Config, logger *zap.Logger) (string, error) {
	hh, err := newHeadhunter(config, logger)
	if err != nil {
		return "", err
	}

	resumes, err := hh.GetMineResumes(ctx)
	if err != nil {
		return "", fmt.Errorf("getting mine resumes: %w", err)
	}
	logger.Info("getting mine resumes", zap.Int("count", resumes.Len()))
	if resumes.Len() == 0 {
		return "", errors.New("no resumes found for the token owner")
	}

	prompt := promptui.Select{
		Label: "Resume",
		Items: resumes.Titles(),
	}
	_, title, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("select resume: %w", err)
	}

	return pickResume(resumes, title)
}

func pickResume(resumes *headhunter.Resumes, title string) (string, error) {
	selected := resumes.FindByTitle(title)
	if selected == nil {
		return "", fmt.Errorf("resume with title %q not found", title)
	}
	return selected.ID, nil
}
