package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/spreadsheet"
	"github.com/sells-group/profile-sync/internal/store"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect and export stored profiles",
}

// -- profiles list --

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")

		profiles, err := st.ListProfiles(ctx, store.ProfileFilter{Query: query, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "profiles list")
		}
		if len(profiles) == 0 {
			fmt.Fprintln(os.Stderr, "No profiles found.")
			return nil
		}

		formatProfilesList(os.Stdout, profiles)
		return nil
	},
}

// -- profiles stats --

var profilesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show profile and contact coverage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.ProfileStats(ctx)
		if err != nil {
			return eris.Wrap(err, "profiles stats")
		}
		formatProfileStats(os.Stdout, stats)
		return nil
	},
}

// -- profiles export --

var profilesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all profiles to an XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("xlsx")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		profiles, err := st.ListProfiles(ctx, store.ProfileFilter{})
		if err != nil {
			return eris.Wrap(err, "profiles export")
		}
		if err := spreadsheet.SaveProfiles(path, profiles); err != nil {
			return err
		}

		zap.L().Info("export complete", zap.Int("profiles", len(profiles)), zap.String("xlsx", path))
		return nil
	},
}

func init() {
	profilesListCmd.Flags().String("query", "", "filter by name, headline or location")
	profilesListCmd.Flags().Int("limit", 50, "max number of profiles to display")

	profilesExportCmd.Flags().String("xlsx", "profiles.xlsx", "output path")

	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesStatsCmd)
	profilesCmd.AddCommand(profilesExportCmd)
	rootCmd.AddCommand(profilesCmd)
}

// formatProfilesList writes a tabular list of profiles to out.
func formatProfilesList(out io.Writer, profiles []model.Profile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tHEADLINE\tEMAIL\tVERIFIED")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t-----\t--------")

	for _, p := range profiles {
		verified := "no"
		if p.ContactVerified {
			verified = "yes"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			p.ID,
			truncate(p.FullName, 30),
			truncate(p.Headline, 40),
			p.Email,
			verified,
		)
	}
	_ = w.Flush()
}

// formatProfileStats writes profile coverage to out.
func formatProfileStats(out io.Writer, s *model.ProfileStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Profiles:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "With email:\t%d\n", s.WithEmail)
	_, _ = fmt.Fprintf(w, "Verified:\t%d\n", s.Verified)
	_, _ = fmt.Fprintf(w, "Unverified:\t%d\n", s.Unverified)
	if s.Total > 0 {
		_, _ = fmt.Fprintf(w, "Email coverage:\t%.1f%%\n", 100*float64(s.WithEmail)/float64(s.Total))
	}
	_ = w.Flush()
}
