package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/crm"
)

var crmCmd = &cobra.Command{
	Use:   "crm",
	Short: "Send profiles to Salesforce",
}

var crmExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upsert selected profiles as Salesforce Leads",
	Long:  "Upserts Leads keyed by email for the profiles named by --ids, every profile in --campaign, or --all profiles with an email.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sel, err := selectionFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate("crm"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		exporter, err := initExporter(st)
		if err != nil {
			return err
		}

		res, err := exporter.Export(ctx, sel)
		if err != nil {
			return eris.Wrap(err, "crm export")
		}

		zap.L().Info("crm export complete",
			zap.Int("succeeded", len(res.Succeeded)),
			zap.Int("failed", len(res.Failed)),
		)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func selectionFromFlags(cmd *cobra.Command) (crm.Selection, error) {
	ids, _ := cmd.Flags().GetInt64Slice("ids")
	campaign, _ := cmd.Flags().GetInt64("campaign")
	all, _ := cmd.Flags().GetBool("all")

	sel := crm.Selection{ProfileIDs: ids, CampaignID: campaign, All: all}
	if len(ids) == 0 && campaign == 0 && !all {
		return sel, eris.New("select profiles with --ids, --campaign or --all")
	}
	return sel, nil
}

func init() {
	crmExportCmd.Flags().Int64Slice("ids", nil, "profile ids to export")
	crmExportCmd.Flags().Int64("campaign", 0, "export every profile in this search")
	crmExportCmd.Flags().Bool("all", false, "export every profile with an email")

	crmCmd.AddCommand(crmExportCmd)
	rootCmd.AddCommand(crmCmd)
}
