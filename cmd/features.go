package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spigell/hh-artifacts/internal/dispatch"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the available features and their versions",
	RunE:  listFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)
}

func listFeatures(cmd *cobra.Command, _ []string) error {
	config, logger, err := setup()
	if err != nil {
		return err
	}

	reg, err := newRegistry(nil, config, logger)
	if err != nil {
		return err
	}
	listing := dispatch.New(reg).Features()

	out := cmd.OutOrStdout()
	if config.Log.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDEFAULT\tVERSIONS\tDESCRIPTION")
	for _, f := range listing {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, f.DefaultVersion, strings.Join(f.Versions, ","), f.Description)
	}
	return w.Flush()
}
