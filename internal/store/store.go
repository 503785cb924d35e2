// Package store persists profiles, campaigns, campaign links and run
// records. Two backends share one contract: SQLite for single-node use and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/profile-sync/internal/model"
)

// ProfileFilter narrows ListProfiles. A zero Limit returns every match.
type ProfileFilter struct {
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// ProfileStore holds profiles keyed by normalized URL. Lookups of missing
// rows return nil without an error.
type ProfileStore interface {
	FindProfileByURL(ctx context.Context, normalizedURL string) (*model.Profile, error)
	GetProfile(ctx context.Context, id int64) (*model.Profile, error)
	InsertProfile(ctx context.Context, p *model.Profile) (bool, error)
	InsertProfiles(ctx context.Context, profiles []model.Profile) (int, error)
	UpdateContact(ctx context.Context, id int64, email, phone string) error
	DeleteProfile(ctx context.Context, id int64) (bool, error)
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.Profile, error)
	ListUnverified(ctx context.Context) ([]model.Profile, error)
	ListWithContact(ctx context.Context) ([]model.Profile, error)
	ProfileIDsByURL(ctx context.Context, normalizedURLs []string) (map[string]int64, error)
	ProfileStats(ctx context.Context) (*model.ProfileStats, error)
}

// CampaignStore holds campaigns and their profile links.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c model.NewCampaign) (*model.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*model.Campaign, error)
	UpdateCampaign(ctx context.Context, id int64, patch model.CampaignPatch) (bool, error)
	DeleteCampaign(ctx context.Context, id int64) (bool, error)
	ListCampaigns(ctx context.Context) ([]model.CampaignSummary, error)
	LinkProfile(ctx context.Context, campaignID, profileID int64) (bool, error)
	LinkProfiles(ctx context.Context, campaignID int64, profileIDs []int64) (int, error)
	ListCampaignProfiles(ctx context.Context, campaignID int64) ([]model.CampaignProfile, error)
	CountCampaignProfiles(ctx context.Context, campaignID int64) (int, error)
	CampaignStats(ctx context.Context) (*model.CampaignStats, error)
}

// RunStore keeps the history of background runs.
type RunStore interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, id string, result *model.RunResult, runErr *model.RunError) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
}

// Store is the full persistence interface.
type Store interface {
	ProfileStore
	CampaignStore
	RunStore

	Migrate(ctx context.Context) error
	Close() error
}

// topCampaigns is the size of the leaderboard in CampaignStats.
const topCampaigns = 5

// uniqueIDs drops repeated ids, keeping the first occurrence of each.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func validateProfile(p *model.Profile) error {
	if p.NormalizedURL == "" {
		return model.ValidationFailure("store: insert profile", "normalized url is required")
	}
	return nil
}
