// Package runner executes scrape and enrichment runs, either inline or on
// background goroutines whose status callers poll.
package runner

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/enrich"
	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/reconcile"
)

// Scraper fetches the profiles behind a search URL.
type Scraper interface {
	ScrapeProfiles(ctx context.Context, searchURL string) ([]model.RawRecord, error)
}

// Enricher runs one contact-enrichment pass.
type Enricher interface {
	Run(ctx context.Context) (*model.EnrichSummary, error)
}

// Reconciler merges a scraped batch into the store.
type Reconciler interface {
	Reconcile(ctx context.Context, req reconcile.Request, records []model.RawRecord) (*reconcile.Result, error)
}

// RunStore persists run records.
type RunStore interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, id string, result *model.RunResult, runErr *model.RunError) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
}

var (
	_ Enricher   = (*enrich.Enricher)(nil)
	_ Reconciler = (*reconcile.Engine)(nil)
)

// ScrapeRequest describes one scrape run.
type ScrapeRequest struct {
	SearchURL   string `json:"search_url"`
	Name        string `json:"search_name,omitempty"`
	Description string `json:"search_description,omitempty"`
	CampaignID  int64  `json:"campaign_id,omitempty"`
	SkipEnrich  bool   `json:"skip_enrich,omitempty"`
}

// Validate rejects requests that cannot start a run.
func (r ScrapeRequest) Validate() error {
	if strings.TrimSpace(r.SearchURL) == "" {
		return model.ValidationFailure("runner: scrape", "search url is required")
	}
	if r.CampaignID != 0 && strings.TrimSpace(r.Name) != "" {
		return model.ValidationFailure("runner: scrape", "search name and campaign id are mutually exclusive")
	}
	return nil
}

// Options configure a Service.
type Options struct {
	// EnrichAfterScrape runs an enrichment pass after every successful scrape
	// unless the request opts out.
	EnrichAfterScrape bool
	// Retention is how long a finished run stays in memory before Status
	// reads it from the run store. Zero uses DefaultRetention. Without a run
	// store finished runs are kept.
	Retention time.Duration
}

// DefaultRetention is how long finished runs stay in memory by default.
const DefaultRetention = 15 * time.Minute

// Service wires the scraper, reconciliation engine and enrichment pass.
type Service struct {
	scraper  Scraper
	engine   Reconciler
	enricher Enricher
	runs     RunStore
	tracker  *Tracker
	opts     Options
}

// NewService creates a Service. runs may be nil, in which case run records
// only live in memory.
func NewService(scraper Scraper, engine Reconciler, enricher Enricher, runs RunStore, opts Options) *Service {
	s := &Service{
		scraper:  scraper,
		engine:   engine,
		enricher: enricher,
		runs:     runs,
		opts:     opts,
	}
	var trackerOpts []TrackerOption
	if runs != nil {
		retention := opts.Retention
		if retention <= 0 {
			retention = DefaultRetention
		}
		trackerOpts = append(trackerOpts, WithRetention(retention))
	}
	s.tracker = NewTracker(s.finish, trackerOpts...)
	return s
}

// Scrape runs a scrape synchronously: fetch, reconcile, then optionally
// enrich. Nothing is written when the fetch fails.
func (s *Service) Scrape(ctx context.Context, req ScrapeRequest) (*model.RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("search_url", req.SearchURL))

	records, err := s.scraper.ScrapeProfiles(ctx, req.SearchURL)
	if err != nil {
		if model.KindOf(err) == "" {
			err = model.ExternalFailure("runner: scrape profiles", err)
		}
		return nil, err
	}
	log.Info("runner: scraped profiles", zap.Int("records", len(records)))

	res, err := s.engine.Reconcile(ctx, reconcile.Request{
		CampaignName: req.Name,
		Description:  req.Description,
		SourceURL:    req.SearchURL,
		CampaignID:   req.CampaignID,
	}, records)
	if err != nil {
		return nil, eris.Wrap(err, "runner: reconcile")
	}
	out := res.RunResult()

	if s.opts.EnrichAfterScrape && !req.SkipEnrich && s.enricher != nil && res.Matched > 0 {
		sum, err := s.enricher.Run(ctx)
		if err != nil {
			// The scrape itself succeeded; a failed follow-up pass is retried
			// by the next enrichment run.
			log.Warn("runner: enrichment after scrape failed", zap.Error(err))
		} else {
			out.Enrichment = sum
		}
	}
	return out, nil
}

// Enrich runs one enrichment pass synchronously.
func (s *Service) Enrich(ctx context.Context) (*model.RunResult, error) {
	if s.enricher == nil {
		return nil, model.ValidationFailure("runner: enrich", "no contact provider configured")
	}
	sum, err := s.enricher.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &model.RunResult{Enrichment: sum}, nil
}

// StartScrape validates req and starts a background scrape. It returns the
// run id to poll.
func (s *Service) StartScrape(ctx context.Context, req ScrapeRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return s.start(ctx, model.RunKindScrape, req, func(ctx context.Context) (*model.RunResult, error) {
		return s.Scrape(ctx, req)
	})
}

// StartEnrich starts a background enrichment pass.
func (s *Service) StartEnrich(ctx context.Context) (string, error) {
	if s.enricher == nil {
		return "", model.ValidationFailure("runner: enrich", "no contact provider configured")
	}
	return s.start(ctx, model.RunKindEnrich, nil, s.Enrich)
}

func (s *Service) start(ctx context.Context, kind model.RunKind, req any, work Work) (string, error) {
	run := &model.Run{ID: uuid.NewString(), Kind: kind, Status: model.RunStatusRunning}
	if req != nil {
		raw, err := json.Marshal(req)
		if err != nil {
			return "", eris.Wrap(err, "runner: marshal request")
		}
		run.Request = raw
	}
	if s.runs != nil {
		if err := s.runs.CreateRun(ctx, run); err != nil {
			return "", err
		}
	}

	if err := s.tracker.Go(ctx, run.ID, kind, work); err != nil {
		return "", err
	}
	zap.L().Info("runner: run started", zap.String("run_id", run.ID), zap.String("kind", string(kind)))
	return run.ID, nil
}

// finish records a run's outcome in the run store.
func (s *Service) finish(ctx context.Context, id string, out Outcome) {
	log := zap.L().With(zap.String("run_id", id))
	var runErr *model.RunError
	if out.Err != nil {
		runErr = &model.RunError{Message: out.Err.Error(), Kind: model.KindOf(out.Err)}
		log.Error("runner: run failed", zap.Error(out.Err))
	} else {
		log.Info("runner: run complete")
	}

	if s.runs == nil {
		return
	}
	if err := s.runs.FinishRun(ctx, id, out.Result, runErr); err != nil {
		log.Error("runner: persist run outcome", zap.Error(err))
	}
}

// Status returns the state of run id, checking in-memory runs first and the
// run store second. It returns nil for an unknown id.
func (s *Service) Status(ctx context.Context, id string) (*model.Run, error) {
	if snap, ok := s.tracker.Poll(id); ok {
		run := &model.Run{
			ID:        snap.ID,
			Kind:      snap.Kind,
			Status:    snap.Status,
			Result:    snap.Result,
			CreatedAt: snap.StartedAt,
			UpdatedAt: snap.StartedAt,
		}
		if snap.Err != nil {
			run.Error = &model.RunError{Message: snap.Err.Error(), Kind: model.KindOf(snap.Err)}
		}
		return run, nil
	}
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.GetRun(ctx, id)
}

// Wait blocks until all background runs have finished.
func (s *Service) Wait() {
	s.tracker.Wait()
}
