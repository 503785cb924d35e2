package model

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusPaused   CampaignStatus = "paused"
	CampaignStatusArchived CampaignStatus = "archived"
)

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusActive, CampaignStatusPaused, CampaignStatusArchived:
		return true
	}
	return false
}

// Campaign is a named search run against a source query.
type Campaign struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	SourceURL   string         `json:"source_url"`
	Status      CampaignStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewCampaign holds the fields required to create a campaign.
type NewCampaign struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
}

// CampaignPatch is a partial update. Nil fields are left unchanged.
type CampaignPatch struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	SourceURL   *string         `json:"source_url,omitempty"`
	Status      *CampaignStatus `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p CampaignPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.SourceURL == nil && p.Status == nil
}

// CampaignSummary is a campaign with its linked-profile count.
type CampaignSummary struct {
	Campaign
	ProfileCount int `json:"profile_count"`
}

// CampaignProfile is a profile linked to a campaign, with the time the link
// was first written.
type CampaignProfile struct {
	Profile
	FoundAt time.Time `json:"found_at"`
}

// CampaignStats aggregates campaign and link counts.
type CampaignStats struct {
	Total          int               `json:"total"`
	Active         int               `json:"active"`
	UniqueProfiles int               `json:"unique_profiles"`
	Top            []CampaignSummary `json:"top"`
}
