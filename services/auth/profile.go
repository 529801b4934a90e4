package auth

import (
	"context"
	"errors"

	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/metrics"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/users"
	"gorm.io/gorm"
)

const (
	MsgUserNotExist = "User not Exist"
	MsgNotOwner     = "You do not have permission to perform this action."
)

// Profile is the owner's view of an account. Email and roles are read-only.
type Profile struct {
	Email     string       `json:"email"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Gender    users.Gender `json:"gender"`
	Roles     []uint       `json:"role"`
}

func newProfile(user *users.User) *Profile {
	roles := make([]uint, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, role.ID)
	}
	return &Profile{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Gender:    user.Gender,
		Roles:     roles,
	}
}

// ownedUser loads userID and checks actorID owns it. A missing user is
// reported before ownership.
func ownedUser(ctx context.Context, userService *users.Service, actorID, userID uint) (*users.User, error) {
	user, err := userService.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, apierror.NotFound(MsgUserNotExist)
		}
		return nil, err
	}
	if user.ID != actorID {
		return nil, apierror.Forbidden(MsgNotOwner)
	}
	return user, nil
}

func (s *Service) GetProfile(ctx context.Context, actorID, userID uint) (*Profile, error) {
	user, err := ownedUser(ctx, s.users, actorID, userID)
	if err != nil {
		return nil, err
	}
	return newProfile(user), nil
}

// UpdateProfile applies a partial update to the actor's own profile.
func (s *Service) UpdateProfile(ctx context.Context, actorID, userID uint, input users.ProfileInput) (*Profile, error) {
	var profile *Profile
	err := s.inTx(ctx, metrics.FlowProfile, func(tx *gorm.DB) error {
		userService := s.users.WithDB(tx)

		user, err := ownedUser(ctx, userService, actorID, userID)
		if err != nil {
			return err
		}
		if err := s.validator.Fields(input).Err(); err != nil {
			return err
		}
		if err := userService.UpdateProfile(ctx, user, input); err != nil {
			return err
		}
		profile = newProfile(user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", logging.UserID(userID))
	return profile, nil
}
