// Package crm exports stored profiles to Salesforce as Leads.
package crm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/pkg/salesforce"
)

const defaultConcurrency = 4

// Store is the subset of the store used to resolve a selection.
type Store interface {
	GetProfile(ctx context.Context, id int64) (*model.Profile, error)
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	ListCampaignProfiles(ctx context.Context, campaignID int64) ([]model.CampaignProfile, error)
	ListWithContact(ctx context.Context) ([]model.Profile, error)
}

// Selection names the profiles to export. Explicit ids and a campaign may be
// combined; All selects every profile with an email.
type Selection struct {
	ProfileIDs []int64 `json:"profile_ids,omitempty"`
	CampaignID int64   `json:"campaign_id,omitempty"`
	All        bool    `json:"all,omitempty"`
}

func (s Selection) empty() bool {
	return len(s.ProfileIDs) == 0 && s.CampaignID == 0 && !s.All
}

// Sent is a profile written to Salesforce.
type Sent struct {
	ProfileID int64  `json:"profile_id"`
	Name      string `json:"name"`
	LeadID    string `json:"lead_id"`
	Created   bool   `json:"created"`
}

// Failed is a profile that could not be written.
type Failed struct {
	ProfileID int64  `json:"profile_id"`
	Name      string `json:"name"`
	Error     string `json:"error"`
}

// Result lists the outcome per profile, in selection order.
type Result struct {
	Succeeded []Sent   `json:"successful_contacts"`
	Failed    []Failed `json:"failed_contacts"`
}

// Config holds the Lead defaults and the export fan-out.
type Config struct {
	LeadSource     string
	DefaultCompany string
	Concurrency    int
}

// Exporter upserts profiles into Salesforce Leads keyed by email.
type Exporter struct {
	sf    salesforce.Client
	store Store
	cfg   Config
}

// New creates an Exporter.
func New(sf salesforce.Client, st Store, cfg Config) *Exporter {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.DefaultCompany == "" {
		cfg.DefaultCompany = "Unknown"
	}
	return &Exporter{sf: sf, store: st, cfg: cfg}
}

// Export writes the selected profiles. A failure on one profile is reported
// in the result and does not stop the others.
func (e *Exporter) Export(ctx context.Context, sel Selection) (*Result, error) {
	if sel.empty() {
		return nil, model.ValidationFailure("crm: export", "no profiles selected")
	}

	profiles, missing, err := e.resolve(ctx, sel)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.Int("profiles", len(profiles)))
	log.Info("crm: export starting")

	outcomes := make([]outcome, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, p := range profiles {
		g.Go(func() error {
			outcomes[i] = e.exportOne(gctx, p)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "crm: export")
	}

	res := &Result{Succeeded: []Sent{}, Failed: missing}
	for i, o := range outcomes {
		p := profiles[i]
		if o.err != nil {
			res.Failed = append(res.Failed, Failed{ProfileID: p.ID, Name: p.FullName, Error: o.err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, Sent{ProfileID: p.ID, Name: p.FullName, LeadID: o.leadID, Created: o.created})
	}

	log.Info("crm: export complete",
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

type outcome struct {
	leadID  string
	created bool
	err     error
}

func (e *Exporter) exportOne(ctx context.Context, p model.Profile) outcome {
	if p.Email == "" {
		return outcome{err: eris.New("profile has no email")}
	}
	id, created, err := salesforce.UpsertLeadByEmail(ctx, e.sf, e.lead(p))
	if err != nil {
		zap.L().Warn("crm: lead upsert failed",
			zap.Int64("profile_id", p.ID),
			zap.Error(err),
		)
		return outcome{err: err}
	}
	return outcome{leadID: id, created: created}
}

// resolve loads the selected profiles, deduplicated by id in selection
// order. Ids that do not exist are returned as failures.
func (e *Exporter) resolve(ctx context.Context, sel Selection) ([]model.Profile, []Failed, error) {
	var (
		profiles []model.Profile
		missing  = []Failed{}
		seen     = make(map[int64]struct{})
	)
	add := func(p model.Profile) {
		if _, ok := seen[p.ID]; ok {
			return
		}
		seen[p.ID] = struct{}{}
		profiles = append(profiles, p)
	}

	for _, id := range sel.ProfileIDs {
		p, err := e.store.GetProfile(ctx, id)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "crm: load profile %d", id)
		}
		if p == nil {
			missing = append(missing, Failed{ProfileID: id, Error: "profile not found"})
			continue
		}
		add(*p)
	}

	if sel.CampaignID != 0 {
		c, err := e.store.GetCampaign(ctx, sel.CampaignID)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "crm: load campaign %d", sel.CampaignID)
		}
		if c == nil {
			return nil, nil, model.ValidationFailure("crm: export", "campaign not found")
		}
		linked, err := e.store.ListCampaignProfiles(ctx, sel.CampaignID)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "crm: load campaign %d profiles", sel.CampaignID)
		}
		for _, cp := range linked {
			add(cp.Profile)
		}
	}

	if sel.All {
		all, err := e.store.ListWithContact(ctx)
		if err != nil {
			return nil, nil, eris.Wrap(err, "crm: load profiles with contact")
		}
		for _, p := range all {
			add(p)
		}
	}
	return profiles, missing, nil
}

func (e *Exporter) lead(p model.Profile) salesforce.Lead {
	first, last := splitName(p.FullName, p.LastName)
	return salesforce.Lead{
		FirstName:   first,
		LastName:    last,
		Company:     e.cfg.DefaultCompany,
		Title:       p.Headline,
		Email:       p.Email,
		MobilePhone: p.Phone,
		City:        p.Location,
		LeadSource:  e.cfg.LeadSource,
		Website:     p.NormalizedURL,
	}
}

// splitName derives first and last names. A known last name that ends the
// full name wins; otherwise the first word is the first name. Salesforce
// requires a last name, so a single word is used as the last name.
func splitName(fullName, lastName string) (string, string) {
	fullName = strings.Join(strings.Fields(fullName), " ")
	lastName = strings.TrimSpace(lastName)

	if lastName != "" && strings.HasSuffix(fullName, lastName) {
		first := strings.TrimSpace(strings.TrimSuffix(fullName, lastName))
		return first, lastName
	}

	first, rest, ok := strings.Cut(fullName, " ")
	switch {
	case ok:
		return first, rest
	case first != "":
		return "", first
	case lastName != "":
		return "", lastName
	}
	return "", "Unknown"
}
