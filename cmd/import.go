package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/reconcile"
	"github.com/sells-group/profile-sync/internal/spreadsheet"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import profiles from an XLSX or CSV file",
	Long:  "Reads profile rows from a spreadsheet and merges them into the store the same way scraped results are merged.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("name")
		campaignID, _ := cmd.Flags().GetInt64("campaign-id")
		if name != "" && campaignID != 0 {
			return eris.New("--name and --campaign-id are mutually exclusive")
		}

		path, records, err := readImportFile(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := newEngine(st).Reconcile(ctx, reconcile.Request{
			CampaignName: name,
			CampaignID:   campaignID,
			SourceURL:    path,
		}, records)
		if err != nil {
			return eris.Wrap(err, "import reconcile")
		}

		zap.L().Info("import complete",
			zap.String("file", path),
			zap.Int("rows", len(records)),
			zap.Int("inserted", res.Inserted),
			zap.Int("matched", res.Matched),
			zap.Int("linked", res.Linked),
		)
		return writeResult(res.RunResult())
	},
}

// readImportFile reads whichever of --xlsx or --csv is set.
func readImportFile(cmd *cobra.Command) (string, []model.RawRecord, error) {
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	csvPath, _ := cmd.Flags().GetString("csv")

	switch {
	case xlsxPath != "" && csvPath != "":
		return "", nil, eris.New("--xlsx and --csv are mutually exclusive")
	case xlsxPath != "":
		sheet, _ := cmd.Flags().GetString("sheet")
		records, err := spreadsheet.ReadRecords(xlsxPath, spreadsheet.Options{SheetName: sheet})
		if err != nil {
			return "", nil, eris.Wrap(err, "import xlsx")
		}
		return xlsxPath, records, nil
	case csvPath != "":
		delim, _ := cmd.Flags().GetString("delimiter")
		opts := spreadsheet.CSVOptions{}
		if delim != "" {
			opts.Delimiter = []rune(delim)[0]
		}
		records, err := spreadsheet.ReadCSVRecords(csvPath, opts)
		if err != nil {
			return "", nil, eris.Wrap(err, "import csv")
		}
		return csvPath, records, nil
	}
	return "", nil, eris.New("set --xlsx or --csv")
}

func init() {
	importCmd.Flags().String("xlsx", "", "path to XLSX file")
	importCmd.Flags().String("sheet", "", "sheet name (default first sheet)")
	importCmd.Flags().String("csv", "", "path to CSV file")
	importCmd.Flags().String("delimiter", "", "CSV field delimiter (default ',')")
	importCmd.Flags().String("name", "", "create a search with this name for the imported profiles")
	importCmd.Flags().Int64("campaign-id", 0, "link imported profiles to an existing search")
	rootCmd.AddCommand(importCmd)
}
