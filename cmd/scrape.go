package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/runner"
)

var scrapeReq runner.ScrapeRequest

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape a people-search URL into the profile store",
	Long:  "Runs the search actor against --url, merges the results into the store and links them to a new (--name) or existing (--campaign-id) search.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc, err := initRunner(st)
		if err != nil {
			return err
		}

		res, err := svc.Scrape(ctx, scrapeReq)
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		zap.L().Info("scrape complete",
			zap.Int("scraped", res.Scraped),
			zap.Int("inserted", res.Inserted),
			zap.Int("linked", res.Linked),
		)
		return writeResult(res)
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Look up contact details for unverified profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc, err := initRunner(st)
		if err != nil {
			return err
		}

		res, err := svc.Enrich(ctx)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}
		return writeResult(res)
	},
}

func writeResult(res *model.RunResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeReq.SearchURL, "url", "", "people-search URL to scrape (required)")
	scrapeCmd.Flags().StringVar(&scrapeReq.Name, "name", "", "create a search with this name")
	scrapeCmd.Flags().StringVar(&scrapeReq.Description, "description", "", "description for a new search")
	scrapeCmd.Flags().Int64Var(&scrapeReq.CampaignID, "campaign-id", 0, "add results to an existing search")
	scrapeCmd.Flags().BoolVar(&scrapeReq.SkipEnrich, "skip-enrich", false, "skip the enrichment pass after scraping")
	_ = scrapeCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(enrichCmd)
}
