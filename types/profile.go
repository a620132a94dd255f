package types

import "time"

// UserProfile holds the optional, user-editable fields attached to an
// account. At most one profile exists per user; a user with no profile
// row is represented by the zero value with ID == 0.
type UserProfile struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"userId" db:"user_id"`
	FirstName *string   `json:"firstName,omitempty" db:"first_name"`
	LastName  *string   `json:"lastName,omitempty" db:"last_name"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Company   *string   `json:"company,omitempty" db:"company"`
	Position  *string   `json:"position,omitempty" db:"position"`
	Bio       *string   `json:"bio,omitempty" db:"bio"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ProfilePatch is a partial profile update. Nil fields are left
// untouched by the merge.
type ProfilePatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Company   *string `json:"company"`
	Position  *string `json:"position"`
	Bio       *string `json:"bio"`
}
