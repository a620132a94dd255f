package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/apnisec/apiserver/internal/db"
	"github.com/apnisec/apiserver/types"
)

// ProfileRepository handles persistence for user profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int) (types.UserProfile, error) {
	return scanProfile(r.db.QueryRowContext(ctx, selectProfileQuery, userID))
}

// Upsert creates the profile on first update, otherwise merges the
// patch over the stored row. The select-then-write pair runs in a
// transaction so two first updates cannot both insert.
func (r *ProfileRepository) Upsert(ctx context.Context, userID int, patch types.ProfilePatch) (types.UserProfile, error) {
	var profile types.UserProfile
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		existing, err := scanProfile(tx.QueryRowContext(ctx, selectProfileQuery, userID))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		now := time.Now()
		if errors.Is(err, ErrNotFound) {
			const insertQuery = `
				INSERT INTO user_profiles (user_id, first_name, last_name, phone, company, position, bio, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
			if _, err := tx.ExecContext(
				ctx,
				insertQuery,
				userID,
				patch.FirstName,
				patch.LastName,
				patch.Phone,
				patch.Company,
				patch.Position,
				patch.Bio,
				now,
			); err != nil {
				return err
			}
		} else {
			merged := mergeProfile(existing, patch)
			const updateQuery = `
				UPDATE user_profiles
				SET first_name = $1,
					last_name = $2,
					phone = $3,
					company = $4,
					position = $5,
					bio = $6,
					updated_at = $7
				WHERE user_id = $8`
			if _, err := tx.ExecContext(
				ctx,
				updateQuery,
				merged.FirstName,
				merged.LastName,
				merged.Phone,
				merged.Company,
				merged.Position,
				merged.Bio,
				now,
				userID,
			); err != nil {
				return err
			}
		}

		// Re-read so callers get the canonical stored row.
		profile, err = scanProfile(tx.QueryRowContext(ctx, selectProfileQuery, userID))
		return err
	})
	if err != nil {
		return types.UserProfile{}, err
	}
	return profile, nil
}

const selectProfileQuery = `
	SELECT id, user_id, first_name, last_name, phone, company, position, bio, updated_at
	FROM user_profiles
	WHERE user_id = $1`

func scanProfile(row *sql.Row) (types.UserProfile, error) {
	var profile types.UserProfile
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.FirstName,
		&profile.LastName,
		&profile.Phone,
		&profile.Company,
		&profile.Position,
		&profile.Bio,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.UserProfile{}, ErrNotFound
		}
		return types.UserProfile{}, err
	}
	return profile, nil
}

func mergeProfile(existing types.UserProfile, patch types.ProfilePatch) types.UserProfile {
	if patch.FirstName != nil {
		existing.FirstName = patch.FirstName
	}
	if patch.LastName != nil {
		existing.LastName = patch.LastName
	}
	if patch.Phone != nil {
		existing.Phone = patch.Phone
	}
	if patch.Company != nil {
		existing.Company = patch.Company
	}
	if patch.Position != nil {
		existing.Position = patch.Position
	}
	if patch.Bio != nil {
		existing.Bio = patch.Bio
	}
	return existing
}
