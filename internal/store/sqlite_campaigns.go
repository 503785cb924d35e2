package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sells-group/profile-sync/internal/model"
)

const campaignColumns = `c.id, c.name, c.description, c.source_url, c.status, c.created_at, c.updated_at`

func (s *SQLiteStore) CreateCampaign(ctx context.Context, nc model.NewCampaign) (*model.Campaign, error) {
	if strings.TrimSpace(nc.Name) == "" {
		return nil, model.ValidationFailure("sqlite: create campaign", "campaign name is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (name, description, source_url, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nc.Name, nc.Description, nc.SourceURL, string(model.CampaignStatusActive), now, now,
	)
	if err != nil {
		return nil, model.StoreFailure("sqlite: create campaign", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, model.StoreFailure("sqlite: create campaign id", err)
	}
	return &model.Campaign{
		ID:          id,
		Name:        nc.Name,
		Description: nc.Description,
		SourceURL:   nc.SourceURL,
		Status:      model.CampaignStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns c WHERE c.id = ?`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, model.StoreFailure("sqlite: get campaign", err)
}

func (s *SQLiteStore) UpdateCampaign(ctx context.Context, id int64, patch model.CampaignPatch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}
	sets, args := campaignPatchSQL(patch, func(int) string { return "?" })
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, model.StoreFailure("sqlite: update campaign", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) DeleteCampaign(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, model.StoreFailure("sqlite: begin delete campaign", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_profiles WHERE campaign_id = ?`, id); err != nil {
		return false, model.StoreFailure("sqlite: delete campaign links", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return false, model.StoreFailure("sqlite: delete campaign", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, model.StoreFailure("sqlite: commit delete campaign", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]model.CampaignSummary, error) {
	return s.queryCampaignSummaries(ctx, "sqlite: list campaigns",
		`SELECT `+campaignColumns+`, COUNT(cp.profile_id)
		 FROM campaigns c LEFT JOIN campaign_profiles cp ON cp.campaign_id = c.id
		 GROUP BY c.id ORDER BY c.created_at DESC, c.id DESC`)
}

func (s *SQLiteStore) LinkProfile(ctx context.Context, campaignID, profileID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO campaign_profiles (campaign_id, profile_id, found_at) VALUES (?, ?, ?)
		 ON CONFLICT (campaign_id, profile_id) DO NOTHING`,
		campaignID, profileID, time.Now().UTC(),
	)
	if err != nil {
		return false, model.StoreFailure("sqlite: link profile", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) LinkProfiles(ctx context.Context, campaignID int64, profileIDs []int64) (int, error) {
	ids := uniqueIDs(profileIDs)
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, model.StoreFailure("sqlite: begin link profiles", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO campaign_profiles (campaign_id, profile_id, found_at) VALUES (?, ?, ?)
		 ON CONFLICT (campaign_id, profile_id) DO NOTHING`)
	if err != nil {
		return 0, model.StoreFailure("sqlite: prepare link profile", err)
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	linked, failed := 0, 0
	var firstErr error
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, campaignID, id, now)
		if err != nil {
			failed++
			firstErr = cmpErr(firstErr, err)
			continue
		}
		n, _ := res.RowsAffected()
		linked += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, model.StoreFailure("sqlite: commit link profiles", err)
	}
	if failed > 0 {
		return linked, model.StoreFailure("sqlite: link profiles", firstErr)
	}
	return linked, nil
}

func (s *SQLiteStore) ListCampaignProfiles(ctx context.Context, campaignID int64) ([]model.CampaignProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.normalized_url, p.raw_url, p.full_name, p.last_name, p.headline, p.location,
		        p.picture, p.external_id, p.email, p.phone, p.contact_verified, p.created_at, p.updated_at,
		        cp.found_at
		 FROM campaign_profiles cp JOIN profiles p ON p.id = cp.profile_id
		 WHERE cp.campaign_id = ?
		 ORDER BY cp.found_at DESC, p.id`,
		campaignID,
	)
	if err != nil {
		return nil, model.StoreFailure("sqlite: list campaign profiles", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CampaignProfile
	for rows.Next() {
		var cp model.CampaignProfile
		p := &cp.Profile
		if err := rows.Scan(
			&p.ID, &p.NormalizedURL, &p.RawURL, &p.FullName, &p.LastName, &p.Headline,
			&p.Location, &p.Picture, &p.ExternalID, &p.Email, &p.Phone, &p.ContactVerified,
			&p.CreatedAt, &p.UpdatedAt, &cp.FoundAt,
		); err != nil {
			return nil, model.StoreFailure("sqlite: scan campaign profile", err)
		}
		out = append(out, cp)
	}
	return out, model.StoreFailure("sqlite: list campaign profiles iterate", rows.Err())
}

func (s *SQLiteStore) CountCampaignProfiles(ctx context.Context, campaignID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaign_profiles WHERE campaign_id = ?`, campaignID,
	).Scan(&n)
	return n, model.StoreFailure("sqlite: count campaign profiles", err)
}

func (s *SQLiteStore) CampaignStats(ctx context.Context) (*model.CampaignStats, error) {
	var st model.CampaignStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) FROM campaigns`,
		string(model.CampaignStatusActive),
	).Scan(&st.Total, &st.Active)
	if err != nil {
		return nil, model.StoreFailure("sqlite: campaign counts", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT profile_id) FROM campaign_profiles`,
	).Scan(&st.UniqueProfiles)
	if err != nil {
		return nil, model.StoreFailure("sqlite: unique linked profiles", err)
	}

	st.Top, err = s.queryCampaignSummaries(ctx, "sqlite: top campaigns",
		`SELECT `+campaignColumns+`, COUNT(cp.profile_id) AS profile_count
		 FROM campaigns c LEFT JOIN campaign_profiles cp ON cp.campaign_id = c.id
		 GROUP BY c.id ORDER BY profile_count DESC, c.id ASC LIMIT ?`, topCampaigns)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) queryCampaignSummaries(ctx context.Context, op, query string, args ...any) ([]model.CampaignSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.StoreFailure(op, err)
	}
	defer rows.Close() //nolint:errcheck

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

func scanCampaign(row scannable) (*model.Campaign, error) {
	var c model.Campaign
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.SourceURL, &c.Status,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// campaignPatchSQL renders the SET clauses for the non-nil fields of patch.
// ph returns the placeholder for the nth argument (1-based).
func campaignPatchSQL(patch model.CampaignPatch, ph func(n int) string) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = "+ph(len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.SourceURL != nil {
		add("source_url", *patch.SourceURL)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	return sets, args
}
