package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-sync/internal/contact"
	"github.com/sells-group/profile-sync/internal/crm"
	"github.com/sells-group/profile-sync/internal/enrich"
	"github.com/sells-group/profile-sync/internal/provider"
	"github.com/sells-group/profile-sync/internal/reconcile"
	"github.com/sells-group/profile-sync/internal/resilience"
	"github.com/sells-group/profile-sync/internal/runner"
	"github.com/sells-group/profile-sync/internal/store"
	"github.com/sells-group/profile-sync/pkg/apify"
	sfpkg "github.com/sells-group/profile-sync/pkg/salesforce"
)

const (
	apifyBreakerThreshold = 5
	apifyBreakerCooldown  = 2 * time.Minute
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "profiles.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (PROFILESYNC_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit)), nil
}

func initExporter(st store.Store) (*crm.Exporter, error) {
	sf, err := initSalesforce()
	if err != nil {
		return nil, err
	}
	return crm.New(sf, st, crm.Config{
		LeadSource:     cfg.Salesforce.LeadSource,
		DefaultCompany: cfg.Salesforce.DefaultCompany,
		Concurrency:    cfg.Salesforce.Concurrency,
	}), nil
}

func initProvider() (*provider.Apify, error) {
	input, err := provider.LoadActorInput(cfg.Apify.InputFile)
	if err != nil {
		return nil, err
	}

	client := apify.NewClient(cfg.Apify.Token, apify.WithBaseURL(cfg.Apify.BaseURL))
	return provider.NewApify(client, provider.Config{
		ScraperActor:     cfg.Apify.ScraperActor,
		ContactActor:     cfg.Apify.ContactActor,
		Input:            input,
		MinDelay:         cfg.Scrape.MinDelay,
		MaxDelay:         cfg.Scrape.MaxDelay,
		StartPage:        cfg.Scrape.StartPage,
		PollTimeout:      cfg.Apify.PollTimeout(),
		Backoff:          resilience.DefaultBackoff(),
		BreakerThreshold: apifyBreakerThreshold,
		BreakerCooldown:  apifyBreakerCooldown,
	}), nil
}

func newEngine(st store.Store) *reconcile.Engine {
	return reconcile.New(st, reconcile.WithPhoneRegion(cfg.Enrich.PhoneRegion))
}

// initRunner wires the scraper, reconciliation engine and enrichment pass
// over st.
func initRunner(st store.Store) (*runner.Service, error) {
	policy, err := contact.ParsePolicy(cfg.Enrich.MergePolicy)
	if err != nil {
		return nil, err
	}
	prov, err := initProvider()
	if err != nil {
		return nil, err
	}

	enricher := enrich.New(st, prov, enrich.Config{
		BatchSize: cfg.Enrich.BatchSize,
		Pause:     cfg.Enrich.Pause(),
		Policy:    policy,
	})
	return runner.NewService(prov, newEngine(st), enricher, st, runner.Options{
		EnrichAfterScrape: cfg.Scrape.EnrichAfter,
		Retention:         cfg.Server.RunRetention(),
	}), nil
}
