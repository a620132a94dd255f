package services

import (
	"context"
	"errors"
	"time"

	"github.com/apnisec/apiserver/internal/apperr"
	"github.com/apnisec/apiserver/internal/notify"
	"github.com/apnisec/apiserver/internal/store"
	"github.com/apnisec/apiserver/types"
)

const (
	maxNameLength     = 100
	maxPhoneLength    = 20
	maxCompanyLength  = 200
	maxPositionLength = 200
	maxBioLength      = 1000
)

// ProfileRepository defines persistence operations for user profiles.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID int) (types.UserProfile, error)
	Upsert(ctx context.Context, userID int, patch types.ProfilePatch) (types.UserProfile, error)
}

// UserService encapsulates profile use-cases.
type UserService struct {
	profiles ProfileRepository
	users    UserRepository
	notifier Notifier
}

func NewUserService(profiles ProfileRepository, users UserRepository, notifier Notifier) *UserService {
	return &UserService{
		profiles: profiles,
		users:    users,
		notifier: notifier,
	}
}

// GetProfile returns the user's profile, or an empty default (id 0)
// when no profile row exists yet. Callers treat id 0 as "not created".
func (s *UserService) GetProfile(ctx context.Context, userID int) (types.UserProfile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.UserProfile{UserID: userID, UpdatedAt: time.Now()}, nil
		}
		return types.UserProfile{}, err
	}
	return profile, nil
}

// UpdateProfile validates the patch and upserts it, then fires a
// best-effort notification.
func (s *UserService) UpdateProfile(ctx context.Context, userID int, patch types.ProfilePatch) (types.UserProfile, error) {
	if tooLong(patch.FirstName, maxNameLength) {
		return types.UserProfile{}, apperr.Validation("First name is too long")
	}
	if tooLong(patch.LastName, maxNameLength) {
		return types.UserProfile{}, apperr.Validation("Last name is too long")
	}
	if tooLong(patch.Phone, maxPhoneLength) {
		return types.UserProfile{}, apperr.Validation("Phone number is too long")
	}
	if tooLong(patch.Company, maxCompanyLength) {
		return types.UserProfile{}, apperr.Validation("Company name is too long")
	}
	if tooLong(patch.Position, maxPositionLength) {
		return types.UserProfile{}, apperr.Validation("Position is too long")
	}
	if tooLong(patch.Bio, maxBioLength) {
		return types.UserProfile{}, apperr.Validation("Bio is too long")
	}

	profile, err := s.profiles.Upsert(ctx, userID, patch)
	if err != nil {
		return types.UserProfile{}, err
	}

	if user, err := s.users.GetByID(ctx, userID); err == nil {
		s.notifier.Dispatch(notify.Event{Kind: notify.KindProfileUpdated, To: user.Email})
	}

	return profile, nil
}

func tooLong(value *string, max int) bool {
	return value != nil && len(*value) > max
}
