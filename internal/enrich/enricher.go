// Package enrich runs the contact-enrichment pass over profiles that have
// not been looked up yet.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/profile-sync/internal/contact"
	"github.com/sells-group/profile-sync/internal/identity"
	"github.com/sells-group/profile-sync/internal/model"
)

// Defaults for Config fields left at zero.
const (
	DefaultBatchSize = 50
	DefaultPause     = 5 * time.Second
)

// ContactFinder looks up contact details for a batch of profile URLs. URLs
// missing from the response had no contact found.
type ContactFinder interface {
	FindContacts(ctx context.Context, urls []string) ([]model.ContactResult, error)
}

// Store is the subset of the persistence layer the pass needs.
type Store interface {
	ListUnverified(ctx context.Context) ([]model.Profile, error)
	UpdateContact(ctx context.Context, id int64, email, phone string) error
}

// Config tunes an enrichment pass.
type Config struct {
	BatchSize int
	Pause     time.Duration
	Policy    contact.Policy
}

// Enricher drives batches of unverified profiles through a ContactFinder.
type Enricher struct {
	store   Store
	finder  ContactFinder
	cfg     Config
	limiter *rate.Limiter
}

// New creates an Enricher. Zero config fields take their defaults; a
// negative Pause disables pacing.
func New(st Store, finder ContactFinder, cfg Config) *Enricher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Pause == 0 {
		cfg.Pause = DefaultPause
	}
	if cfg.Policy == "" {
		cfg.Policy = contact.Preserve
	}

	limit := rate.Inf
	if cfg.Pause > 0 {
		limit = rate.Every(cfg.Pause)
	}
	return &Enricher{
		store:   st,
		finder:  finder,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run enriches every unverified profile. A failed lookup batch is logged and
// skipped so its profiles stay unverified for the next pass. Only a failure
// to load the candidates, or a cancelled context, aborts the pass.
func (e *Enricher) Run(ctx context.Context) (*model.EnrichSummary, error) {
	candidates, err := e.store.ListUnverified(ctx)
	if err != nil {
		return nil, err
	}

	sum := &model.EnrichSummary{Candidates: len(candidates)}
	if len(candidates) == 0 {
		zap.L().Info("enrich: no unverified profiles")
		return sum, nil
	}

	for start := 0; start < len(candidates); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(candidates))
		batch := candidates[start:end]
		sum.Batches++

		if err := e.limiter.Wait(ctx); err != nil {
			return sum, eris.Wrap(err, "enrich: wait for batch slot")
		}

		log := zap.L().With(zap.Int("batch", sum.Batches), zap.Int("size", len(batch)))
		found, err := e.lookup(ctx, batch)
		if err != nil {
			sum.FailedBatches++
			log.Warn("enrich: contact lookup failed, batch skipped", zap.Error(err))
			continue
		}
		e.apply(ctx, batch, found, sum)
		log.Info("enrich: batch complete",
			zap.Int("found", len(found)),
			zap.Int("updated_total", sum.Updated),
		)
	}

	zap.L().Info("enrich: pass complete",
		zap.Int("candidates", sum.Candidates),
		zap.Int("batches", sum.Batches),
		zap.Int("failed_batches", sum.FailedBatches),
		zap.Int("updated", sum.Updated),
		zap.Int("with_email", sum.WithEmail),
	)
	return sum, nil
}

// lookup calls the finder and indexes its results by normalized URL.
func (e *Enricher) lookup(ctx context.Context, batch []model.Profile) (map[string]contact.Contact, error) {
	urls := make([]string, len(batch))
	for i, p := range batch {
		urls[i] = p.NormalizedURL
	}

	results, err := e.finder.FindContacts(ctx, urls)
	if err != nil {
		return nil, model.ExternalFailure("enrich: find contacts", err)
	}

	found := make(map[string]contact.Contact, len(results))
	for _, r := range results {
		key, err := identity.Normalize(r.URL)
		if err != nil {
			continue
		}
		incoming := contact.Contact{Email: r.Email, Phone: r.Phone}
		found[key] = contact.Preserve.Merge(found[key], incoming)
	}
	return found, nil
}

func (e *Enricher) apply(ctx context.Context, batch []model.Profile, found map[string]contact.Contact, sum *model.EnrichSummary) {
	for _, p := range batch {
		current := contact.Contact{Email: p.Email, Phone: p.Phone}
		merged := e.cfg.Policy.Merge(current, found[p.NormalizedURL])

		if contact.ClearsEmail(current, merged) {
			sum.Cleared++
			zap.L().Warn("enrich: lookup returned no email, clearing stored email",
				zap.Int64("profile_id", p.ID),
				zap.String("url", p.NormalizedURL),
				zap.String("policy", string(e.cfg.Policy)),
			)
		}

		if err := e.store.UpdateContact(ctx, p.ID, merged.Email, merged.Phone); err != nil {
			zap.L().Warn("enrich: contact update failed",
				zap.Int64("profile_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		sum.Updated++
		if merged.Email != "" {
			sum.WithEmail++
		}
	}
}
