package types

import "time"

// Issue type enumeration. Matches the service catalogue exposed to
// customers.
const (
	IssueTypeCloudSecurity    = "cloud-security"
	IssueTypeReteamAssessment = "reteam-assessment"
	IssueTypeVAPT             = "vapt"
)

// Issue priority enumeration.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Issue status enumeration.
const (
	StatusOpen       = "open"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// ValidIssueType reports whether t is one of the supported issue types.
func ValidIssueType(t string) bool {
	switch t {
	case IssueTypeCloudSecurity, IssueTypeReteamAssessment, IssueTypeVAPT:
		return true
	}
	return false
}

// ValidPriority reports whether p is a supported priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ValidStatus reports whether s is a supported status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Issue represents a security issue reported by a user.
// Issues are always scoped to their owning user: every query that
// touches an issue filters by user id.
type Issue struct {
	// ID is the unique identifier of the issue.
	ID int `json:"id" db:"id"`

	// UserID is the identifier of the owning user.
	UserID int `json:"userId" db:"user_id"`

	// Type is the engagement category, one of the IssueType constants.
	Type string `json:"type" db:"type"`

	// Title is a short summary. At most 200 characters.
	Title string `json:"title" db:"title"`

	// Description is the full report body. At most 5000 characters.
	Description string `json:"description" db:"description"`

	// Priority is one of the Priority constants. Defaults to medium.
	Priority string `json:"priority" db:"priority"`

	// Status is one of the Status constants. Defaults to open.
	Status string `json:"status" db:"status"`

	// ReportObjectKey references an optional uploaded report file in
	// object storage. Empty when no report has been attached.
	ReportObjectKey string `json:"reportObjectKey,omitempty" db:"report_object_key"`

	// CreatedAt is the timestamp at which the issue was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IssuePatch is a partial issue update. Nil fields are left untouched
// by the merge.
type IssuePatch struct {
	Type        *string `json:"type"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
}
