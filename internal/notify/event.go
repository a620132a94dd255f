package notify

import "github.com/apnisec/apiserver/types"

// Event kinds.
const (
	KindWelcome        = "welcome"
	KindIssueCreated   = "issue-created"
	KindProfileUpdated = "profile-updated"
)

// Event is an outbound notification. It is either rendered to email
// directly (smtp backend) or published for the mailer worker (broker
// backend).
type Event struct {
	Kind  string       `json:"kind"`
	To    string       `json:"to"`
	Issue *types.Issue `json:"issue,omitempty"`
}
