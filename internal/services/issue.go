package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/apnisec/apiserver/internal/apperr"
	"github.com/apnisec/apiserver/internal/notify"
	"github.com/apnisec/apiserver/internal/storage"
	"github.com/apnisec/apiserver/internal/store"
	"github.com/apnisec/apiserver/types"
	"github.com/google/uuid"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
)

// IssueRepository defines persistence operations for issues. All of
// them are owner-scoped.
type IssueRepository interface {
	ListByOwner(ctx context.Context, userID int, issueType string) ([]types.Issue, error)
	GetByID(ctx context.Context, id, userID int) (types.Issue, error)
	Create(ctx context.Context, issue types.Issue) (types.Issue, error)
	Update(ctx context.Context, id, userID int, patch types.IssuePatch) (types.Issue, error)
	Delete(ctx context.Context, id, userID int) error
	SetReportKey(ctx context.Context, id, userID int, key *string) error
}

// IssueService encapsulates issue use-cases.
type IssueService struct {
	repo     IssueRepository
	users    UserRepository
	notifier Notifier
	reports  *storage.Storage
}

// NewIssueService constructs an IssueService. reports may be nil when
// report uploads are disabled.
func NewIssueService(repo IssueRepository, users UserRepository, notifier Notifier, reports *storage.Storage) *IssueService {
	return &IssueService{
		repo:     repo,
		users:    users,
		notifier: notifier,
		reports:  reports,
	}
}

// GetAll lists the user's issues newest first, optionally filtered by
// type.
func (s *IssueService) GetAll(ctx context.Context, userID int, issueType string) ([]types.Issue, error) {
	if issueType != "" && !types.ValidIssueType(issueType) {
		return nil, apperr.Validation("Invalid filter type")
	}
	return s.repo.ListByOwner(ctx, userID, issueType)
}

func (s *IssueService) GetByID(ctx context.Context, id, userID int) (types.Issue, error) {
	issue, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return types.Issue{}, mapIssueErr(err)
	}
	return issue, nil
}

// Create validates and stores a new issue for the user, then fires a
// best-effort notification.
func (s *IssueService) Create(ctx context.Context, userID int, issue types.Issue) (types.Issue, error) {
	issue.Title = strings.TrimSpace(issue.Title)
	issue.Description = strings.TrimSpace(issue.Description)

	if !types.ValidIssueType(issue.Type) {
		return types.Issue{}, apperr.Validation("Invalid issue type. Must be: cloud-security, reteam-assessment, or vapt")
	}
	if issue.Title == "" {
		return types.Issue{}, apperr.Validation("Title is required")
	}
	if issue.Description == "" {
		return types.Issue{}, apperr.Validation("Description is required")
	}
	if len(issue.Title) > maxTitleLength {
		return types.Issue{}, apperr.Validation("Title is too long (max 200 characters)")
	}
	if len(issue.Description) > maxDescriptionLength {
		return types.Issue{}, apperr.Validation("Description is too long (max 5000 characters)")
	}
	if issue.Priority != "" && !types.ValidPriority(issue.Priority) {
		return types.Issue{}, apperr.Validation("Invalid priority. Must be: low, medium, high, or critical")
	}
	if issue.Status != "" && !types.ValidStatus(issue.Status) {
		return types.Issue{}, apperr.Validation("Invalid status. Must be: open, in-progress, resolved, or closed")
	}

	if issue.Priority == "" {
		issue.Priority = types.PriorityMedium
	}
	if issue.Status == "" {
		issue.Status = types.StatusOpen
	}
	issue.UserID = userID

	created, err := s.repo.Create(ctx, issue)
	if err != nil {
		return types.Issue{}, err
	}

	if user, err := s.users.GetByID(ctx, userID); err == nil {
		s.notifier.Dispatch(notify.Event{Kind: notify.KindIssueCreated, To: user.Email, Issue: &created})
	}

	return created, nil
}

// Update re-fetches the issue by (id, owner), validates the patch, and
// merges it over the stored row.
func (s *IssueService) Update(ctx context.Context, id, userID int, patch types.IssuePatch) (types.Issue, error) {
	if _, err := s.repo.GetByID(ctx, id, userID); err != nil {
		return types.Issue{}, mapIssueErr(err)
	}

	if patch.Type != nil && !types.ValidIssueType(*patch.Type) {
		return types.Issue{}, apperr.Validation("Invalid issue type")
	}
	if patch.Priority != nil && !types.ValidPriority(*patch.Priority) {
		return types.Issue{}, apperr.Validation("Invalid priority")
	}
	if patch.Status != nil && !types.ValidStatus(*patch.Status) {
		return types.Issue{}, apperr.Validation("Invalid status")
	}
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if trimmed == "" {
			return types.Issue{}, apperr.Validation("Title cannot be empty")
		}
		if len(trimmed) > maxTitleLength {
			return types.Issue{}, apperr.Validation("Title is too long")
		}
		patch.Title = &trimmed
	}
	if patch.Description != nil {
		trimmed := strings.TrimSpace(*patch.Description)
		if trimmed == "" {
			return types.Issue{}, apperr.Validation("Description cannot be empty")
		}
		if len(trimmed) > maxDescriptionLength {
			return types.Issue{}, apperr.Validation("Description is too long")
		}
		patch.Description = &trimmed
	}

	updated, err := s.repo.Update(ctx, id, userID, patch)
	if err != nil {
		return types.Issue{}, mapIssueErr(err)
	}
	return updated, nil
}

func (s *IssueService) Delete(ctx context.Context, id, userID int) error {
	if _, err := s.repo.GetByID(ctx, id, userID); err != nil {
		return mapIssueErr(err)
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return mapIssueErr(err)
	}
	return nil
}

// UploadReport stores a report file for the issue and records its
// object key. A previously uploaded report is replaced.
func (s *IssueService) UploadReport(ctx context.Context, id, userID int, filename string, data []byte, contentType string) (types.Issue, error) {
	if s.reports == nil {
		return types.Issue{}, apperr.Validation("Report uploads are not enabled")
	}

	issue, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return types.Issue{}, mapIssueErr(err)
	}

	key := fmt.Sprintf("reports/%d/%s%s", issue.ID, uuid.NewString(), path.Ext(filename))
	if err := s.reports.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Issue{}, err
	}

	if issue.ReportObjectKey != "" {
		if err := s.reports.Delete(ctx, issue.ReportObjectKey); err != nil {
			log.Printf("issues: failed to delete replaced report %s: %v", issue.ReportObjectKey, err)
		}
	}

	if err := s.repo.SetReportKey(ctx, id, userID, &key); err != nil {
		return types.Issue{}, mapIssueErr(err)
	}

	return s.GetByID(ctx, id, userID)
}

// OpenReport opens the issue's uploaded report for streaming.
func (s *IssueService) OpenReport(ctx context.Context, id, userID int) (io.ReadCloser, string, error) {
	if s.reports == nil {
		return nil, "", apperr.NotFound("Report not found")
	}

	issue, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, "", mapIssueErr(err)
	}
	if issue.ReportObjectKey == "" {
		return nil, "", apperr.NotFound("Report not found")
	}

	reader, err := s.reports.Get(ctx, issue.ReportObjectKey)
	if err != nil {
		return nil, "", err
	}
	return reader, issue.ReportObjectKey, nil
}

// DeleteReport removes the issue's uploaded report, if any.
func (s *IssueService) DeleteReport(ctx context.Context, id, userID int) error {
	if s.reports == nil {
		return apperr.NotFound("Report not found")
	}

	issue, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		return mapIssueErr(err)
	}
	if issue.ReportObjectKey == "" {
		return apperr.NotFound("Report not found")
	}

	if err := s.reports.Delete(ctx, issue.ReportObjectKey); err != nil {
		return err
	}
	return s.repo.SetReportKey(ctx, id, userID, nil)
}

// mapIssueErr translates the store's sentinel into the API fault.
// Foreign-owned issues surface as not-found, never as forbidden.
func mapIssueErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Issue not found")
	}
	return err
}
