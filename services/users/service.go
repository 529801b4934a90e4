package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrWeakPassword          = errors.New("password does not meet policy")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
)

type Service struct {
	cfg    config.AuthConfig
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return &Service{cfg: cfg.Auth, db: db, logger: logger.Named("users")}
}

// WithDB returns a copy of the service bound to tx.
func (s *Service) WithDB(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	return &clone
}

func (s *Service) PasswordProblems(password string) []string {
	return PasswordProblems(s.cfg, password)
}

func (s *Service) ValidatePassword(password string) error {
	if problems := s.PasswordProblems(password); len(problems) > 0 {
		s.logger.Debug("password rejected by policy", zap.Strings("problems", problems))
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(problems, " "))
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost(s.cfg))
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Gender    Gender
}

// Create stores an inactive user with a fresh binding token. The password is
// hashed here; policy checks are the caller's job.
func (s *Service) Create(ctx context.Context, input CreateInput) (*User, error) {
	hash, err := s.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:     NormalizeEmail(input.Email),
		Password:  hash,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Gender:    input.Gender,
		IsActive:  false,
		Token:     uuid.NewString(),
	}

	if err := s.db.WithContext(ctx).Omit("Roles").Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", logging.UserID(user.ID), logging.Email(user.Email))
	return user, nil
}

func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", NormalizeEmail(email)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

func (s *Service) FindByID(ctx context.Context, id uint) (*User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.first(ctx, "email = ?", NormalizeEmail(email))
}

// FindByEmailAndToken resolves a user by the pair handed out at signup or login.
func (s *Service) FindByEmailAndToken(ctx context.Context, email, token string) (*User, error) {
	return s.first(ctx, "email = ? AND token = ?", NormalizeEmail(email), token)
}

func (s *Service) first(ctx context.Context, query string, args ...any) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Preload("Roles").Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// Authenticate returns the active user owning email when password matches.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.VerifyPassword(user.Password, password); err != nil {
		s.logger.Warn("password verification failed", logging.UserID(user.ID))
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logger.Warn("login attempted on inactive account", logging.UserID(user.ID))
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RotateToken replaces the binding token so codes issued for an earlier
// attempt cannot be redeemed against the new one.
func (s *Service) RotateToken(ctx context.Context, user *User) error {
	token := uuid.NewString()
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Update("token", token).Error; err != nil {
		return fmt.Errorf("failed to rotate token: %w", err)
	}
	user.Token = token
	return nil
}

func (s *Service) Activate(ctx context.Context, user *User) error {
	if user.IsActive {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Update("is_active", true).Error; err != nil {
		return fmt.Errorf("failed to activate user: %w", err)
	}
	user.IsActive = true
	s.logger.Info("user activated", logging.UserID(user.ID))
	return nil
}

// ProfileInput carries a partial update; nil fields are left untouched.
type ProfileInput struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Gender    *Gender `json:"gender" validate:"omitempty,oneof=1 2"`
}

func (s *Service) UpdateProfile(ctx context.Context, user *User, input ProfileInput) error {
	updates := map[string]any{}
	if input.FirstName != nil {
		updates["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		updates["last_name"] = *input.LastName
	}
	if input.Gender != nil {
		updates["gender"] = *input.Gender
	}
	if len(updates) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Gender != nil {
		user.Gender = *input.Gender
	}
	return nil
}

// SetPassword validates and stores a new password for the account owning email.
func (s *Service) SetPassword(ctx context.Context, email, password string) error {
	if err := s.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", NormalizeEmail(email)).Update("password", hash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) ListWithRoles(ctx context.Context) ([]User, error) {
	var list []User
	if err := s.db.WithContext(ctx).Preload("Roles").Order("id desc").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return list, nil
}
