// Package reconcile merges scraped profile batches into the profile store
// and links every profile seen in a run to its campaign.
package reconcile

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/contact"
	"github.com/sells-group/profile-sync/internal/identity"
	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/store"
)

// Store is the subset of the persistence layer the engine writes through.
type Store interface {
	ListProfiles(ctx context.Context, filter store.ProfileFilter) ([]model.Profile, error)
	FindProfileByURL(ctx context.Context, normalizedURL string) (*model.Profile, error)
	InsertProfiles(ctx context.Context, profiles []model.Profile) (int, error)
	UpdateContact(ctx context.Context, id int64, email, phone string) error
	ProfileIDsByURL(ctx context.Context, normalizedURLs []string) (map[string]int64, error)
	CreateCampaign(ctx context.Context, c model.NewCampaign) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	LinkProfiles(ctx context.Context, campaignID int64, profileIDs []int64) (int, error)
}

// Request names the campaign a batch belongs to. CampaignName creates a new
// campaign, CampaignID reuses an existing one, and leaving both empty skips
// campaign bookkeeping.
type Request struct {
	CampaignName string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	SourceURL    string `json:"search_url,omitempty"`
	CampaignID   int64  `json:"campaign_id,omitempty"`
}

// Result describes what one reconciliation did.
type Result struct {
	Campaign *model.Campaign `json:"campaign,omitempty"`

	Scraped         int `json:"scraped"`
	Dropped         int `json:"dropped"`
	Matched         int `json:"matched"`
	Inserted        int `json:"inserted"`
	Linked          int `json:"linked"`
	ContactUpdates  int `json:"contact_updates"`
	ContactFailures int `json:"contact_failures"`

	// NewProfiles are the profiles first seen in this batch.
	NewProfiles []model.Profile `json:"-"`
	// MatchedURLs holds the distinct normalized URLs seen in this batch, in
	// encounter order.
	MatchedURLs []string `json:"-"`
}

// RunResult converts r into the persisted run summary.
func (r *Result) RunResult() *model.RunResult {
	out := &model.RunResult{
		Scraped:        r.Scraped,
		Dropped:        r.Dropped,
		Matched:        r.Matched,
		Inserted:       r.Inserted,
		Linked:         r.Linked,
		ContactUpdates: r.ContactUpdates,
	}
	if r.Campaign != nil {
		id := r.Campaign.ID
		out.CampaignID = &id
	}
	return out
}

// Option configures an Engine.
type Option func(*Engine)

// WithPhoneRegion sets the region used to parse phone numbers that carry no
// country prefix.
func WithPhoneRegion(region string) Option {
	return func(e *Engine) {
		if region != "" {
			e.region = region
		}
	}
}

// Engine reconciles scraped batches against the store.
type Engine struct {
	store  Store
	region string
}

// New creates an Engine writing through st.
func New(st Store, opts ...Option) *Engine {
	e := &Engine{store: st, region: contact.DefaultRegion}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile matches records against stored profiles by normalized URL.
// Unknown profiles are inserted, known profiles pick up any new contact
// values, and every matched profile is linked to the request's campaign.
// A batch that matches nothing writes nothing, not even the campaign.
func (e *Engine) Reconcile(ctx context.Context, req Request, records []model.RawRecord) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var existingCampaign *model.Campaign
	if req.CampaignID != 0 {
		c, err := e.store.GetCampaign(ctx, req.CampaignID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, model.ValidationFailure("reconcile", "campaign not found")
		}
		existingCampaign = c
	}

	existing, err := e.store.ListProfiles(ctx, store.ProfileFilter{})
	if err != nil {
		return nil, err
	}
	known := make(map[string]*model.Profile, len(existing))
	for i := range existing {
		known[existing[i].NormalizedURL] = &existing[i]
	}

	res := &Result{Scraped: len(records)}
	staged := make(map[string]int)
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		key, err := identity.Normalize(rec.URL)
		if err != nil {
			res.Dropped++
			continue
		}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			res.MatchedURLs = append(res.MatchedURLs, key)
		}
		incoming := contact.Contact{Email: rec.Email, Phone: rec.Phone}.Trimmed()

		if idx, ok := staged[key]; ok {
			p := &res.NewProfiles[idx]
			merged := contact.Preserve.Merge(contact.Contact{Email: p.Email, Phone: p.Phone}, incoming)
			p.Email, p.Phone = merged.Email, merged.Phone
			p.ContactVerified = p.Email != ""
			continue
		}

		if p, ok := known[key]; ok {
			e.applyIncidental(ctx, res, p, incoming)
			continue
		}

		staged[key] = len(res.NewProfiles)
		res.NewProfiles = append(res.NewProfiles, newProfile(key, rec, incoming))
	}
	res.Matched = len(res.MatchedURLs)

	if res.Matched == 0 {
		zap.L().Info("reconcile: no profiles matched, nothing written",
			zap.Int("scraped", res.Scraped),
			zap.Int("dropped", res.Dropped),
		)
		return res, nil
	}

	switch {
	case existingCampaign != nil:
		res.Campaign = existingCampaign
	case req.CampaignName != "":
		c, err := e.store.CreateCampaign(ctx, model.NewCampaign{
			Name:        strings.TrimSpace(req.CampaignName),
			Description: req.Description,
			SourceURL:   req.SourceURL,
		})
		if err != nil {
			return res, err
		}
		res.Campaign = c
	}

	res.Inserted, err = e.store.InsertProfiles(ctx, res.NewProfiles)
	if err != nil {
		zap.L().Warn("reconcile: some new profiles were not inserted",
			zap.Int("staged", len(res.NewProfiles)),
			zap.Int("inserted", res.Inserted),
			zap.Error(err),
		)
	}
	if res.Inserted < len(res.NewProfiles) {
		e.applySkipped(ctx, res)
	}

	if res.Campaign != nil {
		if err := e.link(ctx, res); err != nil {
			return res, err
		}
	}

	zap.L().Info("reconcile: batch complete",
		zap.Int("scraped", res.Scraped),
		zap.Int("dropped", res.Dropped),
		zap.Int("matched", res.Matched),
		zap.Int("inserted", res.Inserted),
		zap.Int("linked", res.Linked),
		zap.Int("contact_updates", res.ContactUpdates),
	)
	return res, nil
}

// applyIncidental writes contact values a scrape returned for an already
// stored profile. Empty incoming values never clear stored ones here.
func (e *Engine) applyIncidental(ctx context.Context, res *Result, p *model.Profile, incoming contact.Contact) {
	current := contact.Contact{Email: p.Email, Phone: p.Phone}
	if !contact.Differs(current, incoming, e.region) {
		return
	}
	merged := contact.Preserve.Merge(current, incoming)
	if err := e.store.UpdateContact(ctx, p.ID, merged.Email, merged.Phone); err != nil {
		res.ContactFailures++
		zap.L().Warn("reconcile: contact update failed",
			zap.Int64("profile_id", p.ID),
			zap.String("url", p.NormalizedURL),
			zap.Error(err),
		)
		return
	}
	p.Email, p.Phone = merged.Email, merged.Phone
	p.ContactVerified = true
	res.ContactUpdates++
}

// applySkipped carries contact values of staged profiles whose insert was
// skipped, usually because another run stored the same URL after the
// snapshot was taken, onto the stored rows.
func (e *Engine) applySkipped(ctx context.Context, res *Result) {
	for i := range res.NewProfiles {
		staged := &res.NewProfiles[i]
		if staged.Email == "" && staged.Phone == "" {
			continue
		}
		stored, err := e.store.FindProfileByURL(ctx, staged.NormalizedURL)
		if err != nil {
			res.ContactFailures++
			zap.L().Warn("reconcile: lookup of skipped profile failed",
				zap.String("url", staged.NormalizedURL),
				zap.Error(err),
			)
			continue
		}
		if stored == nil {
			continue
		}
		e.applyIncidental(ctx, res, stored, contact.Contact{Email: staged.Email, Phone: staged.Phone})
	}
}

func (e *Engine) link(ctx context.Context, res *Result) error {
	ids, err := e.store.ProfileIDsByURL(ctx, res.MatchedURLs)
	if err != nil {
		return err
	}

	ordered := make([]int64, 0, len(res.MatchedURLs))
	used := make(map[int64]struct{}, len(ids))
	for _, key := range res.MatchedURLs {
		id, ok := ids[key]
		if !ok {
			continue
		}
		if _, dup := used[id]; dup {
			continue
		}
		used[id] = struct{}{}
		ordered = append(ordered, id)
	}
	if missing := len(res.MatchedURLs) - len(ordered); missing > 0 {
		zap.L().Warn("reconcile: matched profiles missing from store, not linked",
			zap.Int64("campaign_id", res.Campaign.ID),
			zap.Int("missing", missing),
		)
	}

	res.Linked, err = e.store.LinkProfiles(ctx, res.Campaign.ID, ordered)
	return err
}

func validateRequest(req Request) error {
	if req.CampaignID != 0 && strings.TrimSpace(req.CampaignName) != "" {
		return model.ValidationFailure("reconcile", "campaign name and campaign id are mutually exclusive")
	}
	if req.CampaignID < 0 {
		return model.ValidationFailure("reconcile", "campaign id must be positive")
	}
	return nil
}

func newProfile(key string, rec model.RawRecord, c contact.Contact) model.Profile {
	return model.Profile{
		NormalizedURL:   key,
		RawURL:          strings.TrimSpace(rec.URL),
		FullName:        strings.TrimSpace(rec.FullName),
		LastName:        strings.TrimSpace(rec.LastName),
		Headline:        strings.TrimSpace(rec.Headline),
		Location:        strings.TrimSpace(rec.Location),
		Picture:         strings.TrimSpace(rec.Picture),
		ExternalID:      strings.TrimSpace(rec.ExternalID),
		Email:           c.Email,
		Phone:           c.Phone,
		ContactVerified: c.Email != "",
	}
}
