package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/apnisec/apiserver/types"
)

// IssueRepository handles persistence for issues. Every query filters
// by the owning user id, so cross-tenant reads and writes are
// impossible at this layer regardless of what callers pass in.
type IssueRepository struct {
	db *sql.DB
}

func NewIssueRepository(db *sql.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

const issueColumns = `id, user_id, type, title, description, priority, status, report_object_key, created_at, updated_at`

// ListByOwner returns the user's issues newest first, optionally
// filtered by type.
func (r *IssueRepository) ListByOwner(ctx context.Context, userID int, issueType string) ([]types.Issue, error) {
	query := `
		SELECT ` + issueColumns + `
		FROM issues
		WHERE user_id = $1
		ORDER BY created_at DESC`
	args := []any{userID}
	if issueType != "" {
		query = `
		SELECT ` + issueColumns + `
		FROM issues
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at DESC`
		args = append(args, issueType)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]types.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return issues, nil
}

// GetByID fetches one issue scoped to its owner. A foreign or missing
// id both come back as ErrNotFound.
func (r *IssueRepository) GetByID(ctx context.Context, id, userID int) (types.Issue, error) {
	const query = `
		SELECT ` + issueColumns + `
		FROM issues
		WHERE id = $1 AND user_id = $2`
	issue, err := scanIssue(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Issue{}, ErrNotFound
		}
		return types.Issue{}, err
	}
	return issue, nil
}

func (r *IssueRepository) Create(ctx context.Context, issue types.Issue) (types.Issue, error) {
	now := time.Now()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	const query = `
		INSERT INTO issues (user_id, type, title, description, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		issue.UserID,
		issue.Type,
		issue.Title,
		issue.Description,
		issue.Priority,
		issue.Status,
		issue.CreatedAt,
		issue.UpdatedAt,
	).Scan(&issue.ID); err != nil {
		return types.Issue{}, err
	}
	return issue, nil
}

// Update overlays the patch on the stored row, writes it back with a
// fresh timestamp, and re-reads the canonical result. The read and
// write are not wrapped in a transaction; a concurrent writer may
// interleave, which is acceptable for this workload.
func (r *IssueRepository) Update(ctx context.Context, id, userID int, patch types.IssuePatch) (types.Issue, error) {
	existing, err := r.GetByID(ctx, id, userID)
	if err != nil {
		return types.Issue{}, err
	}

	merged := mergeIssue(existing, patch)
	const query = `
		UPDATE issues
		SET type = $1,
			title = $2,
			description = $3,
			priority = $4,
			status = $5,
			updated_at = $6
		WHERE id = $7 AND user_id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		merged.Type,
		merged.Title,
		merged.Description,
		merged.Priority,
		merged.Status,
		time.Now(),
		id,
		userID,
	)
	if err != nil {
		return types.Issue{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Issue{}, err
	}
	if affected == 0 {
		return types.Issue{}, ErrNotFound
	}

	return r.GetByID(ctx, id, userID)
}

func (r *IssueRepository) Delete(ctx context.Context, id, userID int) error {
	const query = `DELETE FROM issues WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReportKey records (or clears, when key is nil) the object storage
// key of the issue's uploaded report.
func (r *IssueRepository) SetReportKey(ctx context.Context, id, userID int, key *string) error {
	const query = `
		UPDATE issues
		SET report_object_key = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (types.Issue, error) {
	var issue types.Issue
	var reportKey sql.NullString
	err := row.Scan(
		&issue.ID,
		&issue.UserID,
		&issue.Type,
		&issue.Title,
		&issue.Description,
		&issue.Priority,
		&issue.Status,
		&reportKey,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		return types.Issue{}, err
	}
	issue.ReportObjectKey = reportKey.String
	return issue, nil
}

func mergeIssue(existing types.Issue, patch types.IssuePatch) types.Issue {
	if patch.Type != nil {
		existing.Type = *patch.Type
	}
	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.Priority != nil {
		existing.Priority = *patch.Priority
	}
	if patch.Status != nil {
		existing.Status = *patch.Status
	}
	return existing
}
