package services

import (
	"context"
	"testing"
	"time"

	"github.com/apnisec/apiserver/internal/apperr"
	"github.com/apnisec/apiserver/internal/notify"
	"github.com/apnisec/apiserver/internal/store"
	"github.com/apnisec/apiserver/types"
)

type fakeIssueRepo struct {
	issues map[int]types.Issue
	nextID int
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{issues: make(map[int]types.Issue), nextID: 1}
}

func (r *fakeIssueRepo) ListByOwner(ctx context.Context, userID int, issueType string) ([]types.Issue, error) {
	result := []types.Issue{}
	for _, issue := range r.issues {
		if issue.UserID != userID {
			continue
		}
		if issueType != "" && issue.Type != issueType {
			continue
		}
		result = append(result, issue)
	}
	return result, nil
}

func (r *fakeIssueRepo) GetByID(ctx context.Context, id, userID int) (types.Issue, error) {
	issue, ok := r.issues[id]
	if !ok || issue.UserID != userID {
		return types.Issue{}, store.ErrNotFound
	}
	return issue, nil
}

func (r *fakeIssueRepo) Create(ctx context.Context, issue types.Issue) (types.Issue, error) {
	issue.ID = r.nextID
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = time.Now()
	r.nextID++
	r.issues[issue.ID] = issue
	return issue, nil
}

func (r *fakeIssueRepo) Update(ctx context.Context, id, userID int, patch types.IssuePatch) (types.Issue, error) {
	issue, err := r.GetByID(ctx, id, userID)
	if err != nil {
		return types.Issue{}, err
	}
	if patch.Type != nil {
		issue.Type = *patch.Type
	}
	if patch.Title != nil {
		issue.Title = *patch.Title
	}
	if patch.Description != nil {
		issue.Description = *patch.Description
	}
	if patch.Priority != nil {
		issue.Priority = *patch.Priority
	}
	if patch.Status != nil {
		issue.Status = *patch.Status
	}
	issue.UpdatedAt = time.Now()
	r.issues[id] = issue
	return issue, nil
}

func (r *fakeIssueRepo) Delete(ctx context.Context, id, userID int) error {
	if _, err := r.GetByID(ctx, id, userID); err != nil {
		return err
	}
	delete(r.issues, id)
	return nil
}

func (r *fakeIssueRepo) SetReportKey(ctx context.Context, id, userID int, key *string) error {
	issue, err := r.GetByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if key == nil {
		issue.ReportObjectKey = ""
	} else {
		issue.ReportObjectKey = *key
	}
	r.issues[id] = issue
	return nil
}

func newIssueFixture(t *testing.T) (*IssueService, *fakeIssueRepo, *recordingNotifier) {
	t.Helper()
	users := newFakeUserRepo()
	if _, err := users.Create(context.Background(), "owner@example.com", "hash"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	repo := newFakeIssueRepo()
	notifier := &recordingNotifier{}
	return NewIssueService(repo, users, notifier, nil), repo, notifier
}

func TestCreateIssueDefaults(t *testing.T) {
	svc, _, notifier := newIssueFixture(t)

	created, err := svc.Create(context.Background(), 1, types.Issue{
		Type:        types.IssueTypeVAPT,
		Title:       "  SQL injection in login  ",
		Description: "Parameter email is concatenated into the query.",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if created.Priority != types.PriorityMedium {
		t.Fatalf("expected default priority medium, got %q", created.Priority)
	}
	if created.Status != types.StatusOpen {
		t.Fatalf("expected default status open, got %q", created.Status)
	}
	if created.Title != "SQL injection in login" {
		t.Fatalf("expected trimmed title, got %q", created.Title)
	}
	if created.UserID != 1 {
		t.Fatalf("expected owner 1, got %d", created.UserID)
	}

	if len(notifier.events) != 1 || notifier.events[0].Kind != notify.KindIssueCreated {
		t.Fatalf("expected issue-created event, got %+v", notifier.events)
	}
	if notifier.events[0].To != "owner@example.com" {
		t.Fatalf("event addressed to %q", notifier.events[0].To)
	}
}

func TestCreateIssueValidation(t *testing.T) {
	svc, _, _ := newIssueFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		issue   types.Issue
		message string
	}{
		{
			"bad type",
			types.Issue{Type: "phishing", Title: "t", Description: "d"},
			"Invalid issue type. Must be: cloud-security, reteam-assessment, or vapt",
		},
		{
			"missing title",
			types.Issue{Type: types.IssueTypeVAPT, Title: "   ", Description: "d"},
			"Title is required",
		},
		{
			"missing description",
			types.Issue{Type: types.IssueTypeVAPT, Title: "t", Description: ""},
			"Description is required",
		},
		{
			"bad priority",
			types.Issue{Type: types.IssueTypeVAPT, Title: "t", Description: "d", Priority: "urgent"},
			"Invalid priority. Must be: low, medium, high, or critical",
		},
		{
			"bad status",
			types.Issue{Type: types.IssueTypeVAPT, Title: "t", Description: "d", Status: "done"},
			"Invalid status. Must be: open, in-progress, resolved, or closed",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, 1, tc.issue)
			if err == nil || err.Error() != tc.message {
				t.Fatalf("expected %q, got %v", tc.message, err)
			}
			if apperr.Status(err) != 400 {
				t.Fatalf("expected 400, got %d", apperr.Status(err))
			}
		})
	}
}

// Issues owned by another user are reported as missing, never as
// forbidden.
func TestForeignIssueLooksMissing(t *testing.T) {
	svc, repo, _ := newIssueFixture(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, types.Issue{
		UserID: 2, Type: types.IssueTypeVAPT, Title: "t", Description: "d",
		Priority: types.PriorityLow, Status: types.StatusOpen,
	})
	if err != nil {
		t.Fatalf("seed issue: %v", err)
	}

	if _, err := svc.GetByID(ctx, created.ID, 1); apperr.Status(err) != 404 {
		t.Fatalf("get: expected 404, got %v", err)
	}
	status := types.StatusClosed
	if _, err := svc.Update(ctx, created.ID, 1, types.IssuePatch{Status: &status}); apperr.Status(err) != 404 {
		t.Fatalf("update: expected 404, got %v", err)
	}
	if err := svc.Delete(ctx, created.ID, 1); apperr.Status(err) != 404 {
		t.Fatalf("delete: expected 404, got %v", err)
	}
	if _, ok := repo.issues[created.ID]; !ok {
		t.Fatal("foreign issue was deleted")
	}
}

func TestUpdateIssuePatchValidation(t *testing.T) {
	svc, repo, _ := newIssueFixture(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, types.Issue{
		UserID: 1, Type: types.IssueTypeVAPT, Title: "t", Description: "d",
		Priority: types.PriorityLow, Status: types.StatusOpen,
	})
	if err != nil {
		t.Fatalf("seed issue: %v", err)
	}

	empty := "   "
	if _, err := svc.Update(ctx, created.ID, 1, types.IssuePatch{Title: &empty}); err == nil || err.Error() != "Title cannot be empty" {
		t.Fatalf("expected empty-title fault, got %v", err)
	}

	status := types.StatusResolved
	updated, err := svc.Update(ctx, created.ID, 1, types.IssuePatch{Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != types.StatusResolved {
		t.Fatalf("status not applied: %q", updated.Status)
	}
	if updated.Title != "t" || updated.Priority != types.PriorityLow {
		t.Fatalf("unpatched fields changed: %+v", updated)
	}
}

func TestGetAllRejectsUnknownFilter(t *testing.T) {
	svc, _, _ := newIssueFixture(t)

	_, err := svc.GetAll(context.Background(), 1, "malware")
	if err == nil || err.Error() != "Invalid filter type" {
		t.Fatalf("expected filter fault, got %v", err)
	}
}

func TestReportOperationsDisabled(t *testing.T) {
	svc, repo, _ := newIssueFixture(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, types.Issue{
		UserID: 1, Type: types.IssueTypeVAPT, Title: "t", Description: "d",
		Priority: types.PriorityLow, Status: types.StatusOpen,
	})
	if err != nil {
		t.Fatalf("seed issue: %v", err)
	}

	if _, _, err := svc.OpenReport(ctx, created.ID, 1); apperr.Status(err) != 404 {
		t.Fatalf("open: expected 404, got %v", err)
	}
	if err := svc.DeleteReport(ctx, created.ID, 1); apperr.Status(err) != 404 {
		t.Fatalf("delete: expected 404, got %v", err)
	}
	if _, err := svc.UploadReport(ctx, created.ID, 1, "report.pdf", []byte("x"), "application/pdf"); apperr.Status(err) != 400 {
		t.Fatalf("upload: expected 400, got %v", err)
	}
}
