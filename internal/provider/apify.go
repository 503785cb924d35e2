// Package provider adapts the Apify actors used for profile search scraping
// and contact lookup to the interfaces consumed by the runner and the
// enricher.
package provider

import (
	"context"
	"errors"
	"maps"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/resilience"
	"github.com/sells-group/profile-sync/pkg/apify"
)

// Config controls how the actors are invoked.
type Config struct {
	ScraperActor string
	ContactActor string

	// Input is merged under every scraper run input. It carries settings
	// the actor needs but this system does not interpret, such as session
	// cookies.
	Input map[string]any

	MinDelay  int
	MaxDelay  int
	StartPage int

	PollTimeout  time.Duration
	PollInterval time.Duration

	Backoff          resilience.Backoff
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Apify runs the search and contact actors. It satisfies both
// runner.Scraper and enrich.ContactFinder.
type Apify struct {
	client  apify.Client
	cfg     Config
	breaker *resilience.Breaker
}

// NewApify creates a provider backed by client.
func NewApify(client apify.Client, cfg Config) *Apify {
	cfg.Backoff.Retryable = retryable
	return &Apify{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewBreaker("apify", cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// ScrapeProfiles runs the search actor against searchURL and returns one
// record per dataset item.
func (a *Apify) ScrapeProfiles(ctx context.Context, searchURL string) ([]model.RawRecord, error) {
	if a.cfg.ScraperActor == "" {
		return nil, model.ValidationFailure("provider: scrape", "scraper actor is not configured")
	}

	items, err := runActor[profileItem](ctx, a, a.cfg.ScraperActor, a.scrapeInput(searchURL))
	if err != nil {
		return nil, model.ExternalFailure("provider: scrape", err)
	}

	records := make([]model.RawRecord, 0, len(items))
	for _, it := range items {
		records = append(records, it.record())
	}
	zap.L().Info("provider: scrape complete",
		zap.String("actor", a.cfg.ScraperActor),
		zap.Int("items", len(records)),
	)
	return records, nil
}

// FindContacts runs the contact actor for urls.
func (a *Apify) FindContacts(ctx context.Context, urls []string) ([]model.ContactResult, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	if a.cfg.ContactActor == "" {
		return nil, model.ValidationFailure("provider: find contacts", "contact actor is not configured")
	}

	input := map[string]any{"profileUrls": urls}
	items, err := runActor[contactItem](ctx, a, a.cfg.ContactActor, input)
	if err != nil {
		return nil, model.ExternalFailure("provider: find contacts", err)
	}

	results := make([]model.ContactResult, 0, len(items))
	for _, it := range items {
		results = append(results, it.result())
	}
	return results, nil
}

func (a *Apify) scrapeInput(searchURL string) map[string]any {
	input := make(map[string]any, len(a.cfg.Input)+4)
	maps.Copy(input, a.cfg.Input)
	input["searchUrl"] = searchURL
	if a.cfg.StartPage > 0 {
		input["startPage"] = a.cfg.StartPage
	}
	if a.cfg.MinDelay > 0 {
		input["minDelay"] = a.cfg.MinDelay
	}
	if a.cfg.MaxDelay > 0 {
		input["maxDelay"] = a.cfg.MaxDelay
	}
	return input
}

func (a *Apify) pollOptions() []apify.PollOption {
	var opts []apify.PollOption
	if a.cfg.PollTimeout > 0 {
		opts = append(opts, apify.WithPollTimeout(a.cfg.PollTimeout))
	}
	if a.cfg.PollInterval > 0 {
		opts = append(opts, apify.WithPollInterval(a.cfg.PollInterval))
	}
	return opts
}

func runActor[T any](ctx context.Context, a *Apify, actorID string, input any) ([]T, error) {
	return resilience.Retry(ctx, a.cfg.Backoff, "apify "+actorID, func(ctx context.Context) ([]T, error) {
		var items []T
		err := a.breaker.Do(func() error {
			return apify.RunActor(ctx, a.client, actorID, input, &items, a.pollOptions()...)
		}, countsAsOutage)
		return items, err
	})
}

// retryable accepts transport failures and the HTTP statuses Apify uses for
// overload. A run that ended in FAILED is not retried.
func retryable(err error) bool {
	var apiErr *apify.APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func countsAsOutage(err error) bool {
	return !errors.Is(err, context.Canceled)
}
