package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-sync/internal/model"
)

const profileColumns = `id, normalized_url, raw_url, full_name, last_name, headline, location,
	picture, external_id, email, phone, contact_verified, created_at, updated_at`

const sqliteInsertProfile = `INSERT INTO profiles (normalized_url, raw_url, full_name, last_name, headline,
	location, picture, external_id, email, phone, contact_verified, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (normalized_url) DO NOTHING`

// idLookupChunk bounds the number of bound parameters per IN query.
const idLookupChunk = 500

func (s *SQLiteStore) FindProfileByURL(ctx context.Context, normalizedURL string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE normalized_url = ?`, normalizedURL)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, model.StoreFailure("sqlite: find profile", err)
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id int64) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, model.StoreFailure("sqlite: get profile", err)
}

func (s *SQLiteStore) InsertProfile(ctx context.Context, p *model.Profile) (bool, error) {
	if err := validateProfile(p); err != nil {
		return false, err
	}
	stampProfile(p, time.Now().UTC())

	res, err := s.db.ExecContext(ctx, sqliteInsertProfile, profileArgs(p)...)
	if err != nil {
		return false, model.StoreFailure("sqlite: insert profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.StoreFailure("sqlite: rows affected", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return true, model.StoreFailure("sqlite: last insert id", err)
	}
	p.ID = id
	return true, nil
}

// InsertProfiles inserts the batch in one transaction. Rows that fail are
// skipped; the returned count covers the rows that were written, and the
// error describes the rows that were not.
func (s *SQLiteStore) InsertProfiles(ctx context.Context, profiles []model.Profile) (int, error) {
	if len(profiles) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, model.StoreFailure("sqlite: begin insert profiles", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertProfile)
	if err != nil {
		return 0, model.StoreFailure("sqlite: prepare insert profile", err)
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	inserted, failed := 0, 0
	var firstErr error
	for i := range profiles {
		p := profiles[i]
		if err := validateProfile(&p); err != nil {
			failed++
			firstErr = cmpErr(firstErr, err)
			continue
		}
		stampProfile(&p, now)
		res, err := stmt.ExecContext(ctx, profileArgs(&p)...)
		if err != nil {
			failed++
			firstErr = cmpErr(firstErr, err)
			continue
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, model.StoreFailure("sqlite: commit insert profiles", err)
	}
	if failed > 0 {
		return inserted, model.StoreFailure("sqlite: insert profiles",
			eris.Wrapf(firstErr, "%d of %d rows failed", failed, len(profiles)))
	}
	return inserted, nil
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, id int64, email, phone string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET email = ?, phone = ?, contact_verified = 1, updated_at = ? WHERE id = ?`,
		email, phone, time.Now().UTC(), id,
	)
	return model.StoreFailure(fmt.Sprintf("sqlite: update contact %d", id), err)
}

func (s *SQLiteStore) DeleteProfile(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, model.StoreFailure("sqlite: begin delete profile", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_profiles WHERE profile_id = ?`, id); err != nil {
		return false, model.StoreFailure("sqlite: delete profile links", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return false, model.StoreFailure("sqlite: delete profile", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, model.StoreFailure("sqlite: commit delete profile", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE 1=1`
	var args []any

	if filter.Query != "" {
		query += ` AND (full_name LIKE ? OR headline LIKE ? OR location LIKE ?)`
		like := "%" + filter.Query + "%"
		args = append(args, like, like, like)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}
	return s.queryProfiles(ctx, "sqlite: list profiles", query, args...)
}

func (s *SQLiteStore) ListUnverified(ctx context.Context) ([]model.Profile, error) {
	return s.queryProfiles(ctx, "sqlite: list unverified",
		`SELECT `+profileColumns+` FROM profiles
		 WHERE contact_verified = 0 AND normalized_url <> '' ORDER BY id`)
}

func (s *SQLiteStore) ListWithContact(ctx context.Context) ([]model.Profile, error) {
	return s.queryProfiles(ctx, "sqlite: list with contact",
		`SELECT `+profileColumns+` FROM profiles WHERE email <> '' ORDER BY id`)
}

func (s *SQLiteStore) ProfileIDsByURL(ctx context.Context, normalizedURLs []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(normalizedURLs))
	for start := 0; start < len(normalizedURLs); start += idLookupChunk {
		end := min(start+idLookupChunk, len(normalizedURLs))
		chunk := normalizedURLs[start:end]

		args := make([]any, len(chunk))
		for i, u := range chunk {
			args[i] = u
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT normalized_url, id FROM profiles WHERE normalized_url IN (`+placeholders(len(chunk))+`)`,
			args...)
		if err != nil {
			return nil, model.StoreFailure("sqlite: profile ids", err)
		}
		for rows.Next() {
			var u string
			var id int64
			if err := rows.Scan(&u, &id); err != nil {
				rows.Close() //nolint:errcheck
				return nil, model.StoreFailure("sqlite: scan profile id", err)
			}
			ids[u] = id
		}
		err = rows.Err()
		rows.Close() //nolint:errcheck
		if err != nil {
			return nil, model.StoreFailure("sqlite: profile ids iterate", err)
		}
	}
	return ids, nil
}

func (s *SQLiteStore) ProfileStats(ctx context.Context) (*model.ProfileStats, error) {
	var st model.ProfileStats
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN email <> '' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN contact_verified = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN contact_verified = 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN normalized_url <> '' THEN 1 ELSE 0 END), 0)
		FROM profiles`,
	).Scan(&st.Total, &st.WithEmail, &st.Verified, &st.Unverified, &st.WithURL)
	if err != nil {
		return nil, model.StoreFailure("sqlite: profile stats", err)
	}
	return &st, nil
}

func (s *SQLiteStore) queryProfiles(ctx context.Context, op, query string, args ...any) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.StoreFailure(op, err)
	}
	defer rows.Close() //nolint:errcheck

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

// stampProfile fills timestamps that the caller left unset.
func stampProfile(p *model.Profile, now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
}

func profileArgs(p *model.Profile) []any {
	return []any{
		p.NormalizedURL, p.RawURL, p.FullName, p.LastName, p.Headline,
		p.Location, p.Picture, p.ExternalID, p.Email, p.Phone, p.ContactVerified,
		p.CreatedAt, p.UpdatedAt,
	}
}

func scanProfile(row scannable) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID, &p.NormalizedURL, &p.RawURL, &p.FullName, &p.LastName, &p.Headline,
		&p.Location, &p.Picture, &p.ExternalID, &p.Email, &p.Phone, &p.ContactVerified,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// cmpErr keeps the first non-nil error.
func cmpErr(first, next error) error {
	if first != nil {
		return first
	}
	return next
}
