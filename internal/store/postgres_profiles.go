package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-sync/internal/db"
	"github.com/sells-group/profile-sync/internal/model"
)

// profileInsert describes the bulk path for InsertProfiles.
var profileInsert = db.InsertConfig{
	Table: "profiles",
	Columns: []string{
		"normalized_url", "raw_url", "full_name", "last_name", "headline", "location",
		"picture", "external_id", "email", "phone", "contact_verified", "created_at", "updated_at",
	},
	ConflictKeys: []string{"normalized_url"},
}

func (s *PostgresStore) FindProfileByURL(ctx context.Context, normalizedURL string) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE normalized_url = $1`, normalizedURL)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, model.StoreFailure("postgres: find profile", err)
}

func (s *PostgresStore) GetProfile(ctx context.Context, id int64) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, model.StoreFailure("postgres: get profile", err)
}

func (s *PostgresStore) InsertProfile(ctx context.Context, p *model.Profile) (bool, error) {
	if err := validateProfile(p); err != nil {
		return false, err
	}
	stampProfile(p, time.Now().UTC())

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO profiles (normalized_url, raw_url, full_name, last_name, headline, location,
			picture, external_id, email, phone, contact_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (normalized_url) DO NOTHING RETURNING id`,
		profileArgs(p)...,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, model.StoreFailure("postgres: insert profile", err)
	}
	p.ID = id
	return true, nil
}

func (s *PostgresStore) InsertProfiles(ctx context.Context, profiles []model.Profile) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(profiles))
	skipped := 0
	for i := range profiles {
		p := profiles[i]
		if validateProfile(&p) != nil {
			skipped++
			continue
		}
		stampProfile(&p, now)
		rows = append(rows, profileArgs(&p))
	}

	n, err := db.BulkInsertIgnore(ctx, s.pool, profileInsert, rows)
	if err != nil {
		return 0, model.StoreFailure("postgres: insert profiles", err)
	}
	if skipped > 0 {
		return int(n), model.StoreFailure("postgres: insert profiles",
			eris.Errorf("%d of %d rows failed: normalized url is required", skipped, len(profiles)))
	}
	return int(n), nil
}

func (s *PostgresStore) UpdateContact(ctx context.Context, id int64, email, phone string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE profiles SET email = $1, phone = $2, contact_verified = true, updated_at = $3 WHERE id = $4`,
		email, phone, time.Now().UTC(), id,
	)
	return model.StoreFailure(fmt.Sprintf("postgres: update contact %d", id), err)
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return false, model.StoreFailure("postgres: delete profile", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE 1=1`
	var args []any

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		query += ` AND (full_name ILIKE $1 OR headline ILIKE $1 OR location ILIKE $1)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(` OFFSET $%d`, len(args))
		}
	}
	return s.queryProfiles(ctx, "postgres: list profiles", query, args...)
}

func (s *PostgresStore) ListUnverified(ctx context.Context) ([]model.Profile, error) {
	return s.queryProfiles(ctx, "postgres: list unverified",
		`SELECT `+profileColumns+` FROM profiles
		 WHERE NOT contact_verified AND normalized_url <> '' ORDER BY id`)
}

func (s *PostgresStore) ListWithContact(ctx context.Context) ([]model.Profile, error) {
	return s.queryProfiles(ctx, "postgres: list with contact",
		`SELECT `+profileColumns+` FROM profiles WHERE email <> '' ORDER BY id`)
}

func (s *PostgresStore) ProfileIDsByURL(ctx context.Context, normalizedURLs []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(normalizedURLs))
	if len(normalizedURLs) == 0 {
		return ids, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT normalized_url, id FROM profiles WHERE normalized_url = ANY($1)`, normalizedURLs)
	if err != nil {
		return nil, model.StoreFailure("postgres: profile ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		var id int64
		if err := rows.Scan(&u, &id); err != nil {
			return nil, model.StoreFailure("postgres: scan profile id", err)
		}
		ids[u] = id
	}
	return ids, model.StoreFailure("postgres: profile ids iterate", rows.Err())
}

func (s *PostgresStore) ProfileStats(ctx context.Context) (*model.ProfileStats, error) {
	var st model.ProfileStats
	err := s.pool.QueryRow(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE email <> ''),
		COUNT(*) FILTER (WHERE contact_verified),
		COUNT(*) FILTER (WHERE NOT contact_verified),
		COUNT(*) FILTER (WHERE normalized_url <> '')
		FROM profiles`,
	).Scan(&st.Total, &st.WithEmail, &st.Verified, &st.Unverified, &st.WithURL)
	if err != nil {
		return nil, model.StoreFailure("postgres: profile stats", err)
	}
	return &st, nil
}

func (s *PostgresStore) queryProfiles(ctx context.Context, op, query string, args ...any) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.StoreFailure(op, err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, model.StoreFailure(op, err)
		}
		out = append(out, *p)
	}
	return out, model.StoreFailure(op+" iterate", rows.Err())
}
