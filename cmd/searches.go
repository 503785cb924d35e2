package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/profile-sync/internal/model"
)

var searchesCmd = &cobra.Command{
	Use:     "searches",
	Aliases: []string{"campaigns"},
	Short:   "Manage saved searches",
}

// -- searches list --

var searchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List searches with their profile counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		searches, err := st.ListCampaigns(ctx)
		if err != nil {
			return eris.Wrap(err, "searches list")
		}
		if len(searches) == 0 {
			fmt.Fprintln(os.Stderr, "No searches found.")
			return nil
		}

		formatSearchesList(os.Stdout, searches)
		return nil
	},
}

// -- searches show --

var searchesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c, err := st.GetCampaign(ctx, id)
		if err != nil {
			return eris.Wrap(err, "searches show")
		}
		if c == nil {
			return eris.Errorf("search %d not found", id)
		}
		count, err := st.CountCampaignProfiles(ctx, id)
		if err != nil {
			return eris.Wrap(err, "searches show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(model.CampaignSummary{Campaign: *c, ProfileCount: count})
	},
}

// -- searches profiles --

var searchesProfilesCmd = &cobra.Command{
	Use:   "profiles <id>",
	Short: "List the profiles found by a search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		profiles, err := st.ListCampaignProfiles(ctx, id)
		if err != nil {
			return eris.Wrap(err, "searches profiles")
		}
		if len(profiles) == 0 {
			fmt.Fprintln(os.Stderr, "No profiles found.")
			return nil
		}

		list := make([]model.Profile, len(profiles))
		for i, p := range profiles {
			list[i] = p.Profile
		}
		formatProfilesList(os.Stdout, list)
		return nil
	},
}

// -- searches update --

var searchesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename, describe or change the status of a search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		patch, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ok, err := st.UpdateCampaign(ctx, id, patch)
		if err != nil {
			return eris.Wrap(err, "searches update")
		}
		if !ok {
			return eris.Errorf("search %d not found", id)
		}
		fmt.Fprintf(os.Stderr, "Search %d updated.\n", id)
		return nil
	},
}

// patchFromFlags builds a patch from the flags the user actually set.
func patchFromFlags(cmd *cobra.Command) (model.CampaignPatch, error) {
	var patch model.CampaignPatch
	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		patch.Name = &name
	}
	if cmd.Flags().Changed("description") {
		desc, _ := cmd.Flags().GetString("description")
		patch.Description = &desc
	}
	if cmd.Flags().Changed("status") {
		raw, _ := cmd.Flags().GetString("status")
		status := model.CampaignStatus(raw)
		if !status.Valid() {
			return patch, eris.Errorf("invalid status %q (active, paused, archived)", raw)
		}
		patch.Status = &status
	}
	if patch.IsEmpty() {
		return patch, eris.New("nothing to update: set --name, --description or --status")
	}
	return patch, nil
}

// -- searches delete --

var searchesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a search. Its profiles are kept.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ok, err := st.DeleteCampaign(ctx, id)
		if err != nil {
			return eris.Wrap(err, "searches delete")
		}
		if !ok {
			return eris.Errorf("search %d not found", id)
		}
		fmt.Fprintf(os.Stderr, "Search %d deleted.\n", id)
		return nil
	},
}

// -- searches stats --

var searchesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show search statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.CampaignStats(ctx)
		if err != nil {
			return eris.Wrap(err, "searches stats")
		}
		formatSearchStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	searchesUpdateCmd.Flags().String("name", "", "new name")
	searchesUpdateCmd.Flags().String("description", "", "new description")
	searchesUpdateCmd.Flags().String("status", "", "new status (active, paused, archived)")

	searchesCmd.AddCommand(searchesListCmd)
	searchesCmd.AddCommand(searchesShowCmd)
	searchesCmd.AddCommand(searchesProfilesCmd)
	searchesCmd.AddCommand(searchesUpdateCmd)
	searchesCmd.AddCommand(searchesDeleteCmd)
	searchesCmd.AddCommand(searchesStatsCmd)
	rootCmd.AddCommand(searchesCmd)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// formatSearchesList writes a tabular list of searches to out.
func formatSearchesList(out io.Writer, searches []model.CampaignSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPROFILES\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t--------\t-------")

	for _, s := range searches {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			s.ID,
			truncate(s.Name, 40),
			s.Status,
			s.ProfileCount,
			s.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatSearchStats writes aggregate search stats to out.
func formatSearchStats(out io.Writer, s *model.CampaignStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Searches:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Active:\t%d\n", s.Active)
	_, _ = fmt.Fprintf(w, "Unique profiles:\t%d\n", s.UniqueProfiles)
	if len(s.Top) > 0 {
		_, _ = fmt.Fprintln(w, "Top searches:")
		for _, c := range s.Top {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", truncate(c.Name, 40), c.ProfileCount)
		}
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
