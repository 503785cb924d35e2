package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sells-group/profile-sync/internal/model"
)

func (s *PostgresStore) CreateCampaign(ctx context.Context, nc model.NewCampaign) (*model.Campaign, error) {
	if strings.TrimSpace(nc.Name) == "" {
		return nil, model.ValidationFailure("postgres: create campaign", "campaign name is required")
	}
	now := time.Now().UTC()
	c := &model.Campaign{
		Name:        nc.Name,
		Description: nc.Description,
		SourceURL:   nc.SourceURL,
		Status:      model.CampaignStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO campaigns (name, description, source_url, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		nc.Name, nc.Description, nc.SourceURL, string(model.CampaignStatusActive), now, now,
	).Scan(&c.ID)
	if err != nil {
		return nil, model.StoreFailure("postgres: create campaign", err)
	}
	return c, nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns c WHERE c.id = $1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, model.StoreFailure("postgres: get campaign", err)
}

func (s *PostgresStore) UpdateCampaign(ctx context.Context, id int64, patch model.CampaignPatch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}
	ph := func(n int) string { return fmt.Sprintf("$%d", n) }
	sets, args := campaignPatchSQL(patch, ph)
	args = append(args, time.Now().UTC())
	sets = append(sets, "updated_at = "+ph(len(args)))
	args = append(args, id)

	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET `+strings.Join(sets, ", ")+` WHERE id = `+ph(len(args)), args...)
	if err != nil {
		return false, model.StoreFailure("postgres: update campaign", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteCampaign relies on ON DELETE CASCADE to drop the campaign's links.
func (s *PostgresStore) DeleteCampaign(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return false, model.StoreFailure("postgres: delete campaign", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context) ([]model.CampaignSummary, error) {
	return s.queryCampaignSummaries(ctx, "postgres: list campaigns",
		`SELECT `+campaignColumns+`, COUNT(cp.profile_id)
		 FROM campaigns c LEFT JOIN campaign_profiles cp ON cp.campaign_id = c.id
		 GROUP BY c.id ORDER BY c.created_at DESC, c.id DESC`)
}

func (s *PostgresStore) LinkProfile(ctx context.Context, campaignID, profileID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO campaign_profiles (campaign_id, profile_id, found_at) VALUES ($1, $2, $3)
		 ON CONFLICT (campaign_id, profile_id) DO NOTHING`,
		campaignID, profileID, time.Now().UTC(),
	)
	if err != nil {
		return false, model.StoreFailure("postgres: link profile", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) LinkProfiles(ctx context.Context, campaignID int64, profileIDs []int64) (int, error) {
	ids := uniqueIDs(profileIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO campaign_profiles (campaign_id, profile_id, found_at)
		 SELECT $1, pid, $3 FROM unnest($2::bigint[]) AS pid
		 ON CONFLICT (campaign_id, profile_id) DO NOTHING`,
		campaignID, ids, time.Now().UTC(),
	)
	if err != nil {
		return 0, model.StoreFailure("postgres: link profiles", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListCampaignProfiles(ctx context.Context, campaignID int64) ([]model.CampaignProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.normalized_url, p.raw_url, p.full_name, p.last_name, p.headline, p.location,
		        p.picture, p.external_id, p.email, p.phone, p.contact_verified, p.created_at, p.updated_at,
		        cp.found_at
		 FROM campaign_profiles cp JOIN profiles p ON p.id = cp.profile_id
		 WHERE cp.campaign_id = $1
		 ORDER BY cp.found_at DESC, p.id`,
		campaignID,
	)
	if err != nil {
		return nil, model.StoreFailure("postgres: list campaign profiles", err)
	}
	defer rows.Close()

	var out []model.CampaignProfile
	for rows.Next() {
		var cp model.CampaignProfile
		p := &cp.Profile
		if err := rows.Scan(
			&p.ID, &p.NormalizedURL, &p.RawURL, &p.FullName, &p.LastName, &p.Headline,
			&p.Location, &p.Picture, &p.ExternalID, &p.Email, &p.Phone, &p.ContactVerified,
			&p.CreatedAt, &p.UpdatedAt, &cp.FoundAt,
		); err != nil {
			return nil, model.StoreFailure("postgres: scan campaign profile", err)
		}
		out = append(out, cp)
	}
	return out, model.StoreFailure("postgres: list campaign profiles iterate", rows.Err())
}

func (s *PostgresStore) CountCampaignProfiles(ctx context.Context, campaignID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_profiles WHERE campaign_id = $1`, campaignID,
	).Scan(&n)
	return n, model.StoreFailure("postgres: count campaign profiles", err)
}

func (s *PostgresStore) CampaignStats(ctx context.Context) (*model.CampaignStats, error) {
	var st model.CampaignStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $1),
		        (SELECT COUNT(DISTINCT profile_id) FROM campaign_profiles)
		 FROM campaigns`,
		string(model.CampaignStatusActive),
	).Scan(&st.Total, &st.Active, &st.UniqueProfiles)
	if err != nil {
		return nil, model.StoreFailure("postgres: campaign counts", err)
	}

	st.Top, err = s.queryCampaignSummaries(ctx, "postgres: top campaigns",
		`SELECT `+campaignColumns+`, COUNT(cp.profile_id) AS profile_count
		 FROM campaigns c LEFT JOIN campaign_profiles cp ON cp.campaign_id = c.id
		 GROUP BY c.id ORDER BY profile_count DESC, c.id ASC LIMIT $1`, topCampaigns)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) queryCampaignSummaries(ctx context.Context, op, query string, args ...any) ([]model.CampaignSummary, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.StoreFailure(op, err)
	}
	defer rows.Close()

	var out []model.CampaignSummary
	for rows.Next() {
		var cs model.CampaignSummary
		c := &cs.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.SourceURL, &c.Status,
			&c.CreatedAt, &c.UpdatedAt, &cs.ProfileCount); err != nil {
			return nil, model.StoreFailure(op, err)
		}
		out = append(out, cs)
	}
	return out, model.StoreFailure(op+" iterate", rows.Err())
}
