package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/metrics"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/notification"
	"github.com/tech-arch1tect/backyard/services/otp"
	"github.com/tech-arch1tect/backyard/services/session"
	"github.com/tech-arch1tect/backyard/services/users"
	"github.com/tech-arch1tect/backyard/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MsgPasswordsMustMatch = "Passwords must match."
	MsgEmailTaken         = "user with this email already exists."
	MsgNoActiveAccount    = "No active account found with the given credentials"
	MsgTokenNotValid      = "Token not valid"
	MsgLoggedOut          = "You have been Successfully logged out"
)

var ErrDatabaseRequired = errors.New("auth service requires a database")

// Service runs the account flows. Each state-changing flow executes in one
// transaction with every collaborator bound to it.
type Service struct {
	config    *config.Config
	db        *gorm.DB
	users     *users.Service
	otp       *otp.Service
	sessions  *session.Service
	notifier  *notification.Service
	validator *validation.Validator
	metrics   *metrics.Metrics
	logger    *logging.Service
}

func NewService(
	cfg *config.Config,
	db *gorm.DB,
	userService *users.Service,
	otpService *otp.Service,
	sessions *session.Service,
	notifier *notification.Service,
	validator *validation.Validator,
	m *metrics.Metrics,
	logger *logging.Service,
) *Service {
	return &Service{
		config:    cfg,
		db:        db,
		users:     userService,
		otp:       otpService,
		sessions:  sessions,
		notifier:  notifier,
		validator: validator,
		metrics:   m,
		logger:    logger.Named("auth"),
	}
}

// inTx runs fn inside one transaction and records the flow outcome.
func (s *Service) inTx(ctx context.Context, flow string, fn func(tx *gorm.DB) error) error {
	if s.db == nil {
		return ErrDatabaseRequired
	}
	err := s.db.WithContext(ctx).Transaction(fn)
	s.metrics.Flow(flow, err)
	return err
}

// OTPChallenge is returned when a code was sent and must be verified before
// a session is issued.
type OTPChallenge struct {
	Message string `json:"message"`
	OTPTime int    `json:"otp_time"`
	Token   string `json:"token"`
}

type SignUpInput struct {
	Email     string       `json:"email" validate:"required,email,max=254"`
	Password  string       `json:"password" validate:"required"`
	Password2 string       `json:"password2" validate:"required"`
	FirstName string       `json:"first_name" validate:"required,max=150"`
	LastName  string       `json:"last_name" validate:"required,max=150"`
	Gender    users.Gender `json:"gender" validate:"required,oneof=1 2"`
}

// SignUp creates an inactive account and sends its signup code. All field
// problems are reported together.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (*OTPChallenge, error) {
	fields := s.validator.Fields(input)
	if input.Password != "" {
		for _, problem := range s.users.PasswordProblems(input.Password) {
			fields.Add("password", problem)
		}
		if input.Password2 != "" && input.Password != input.Password2 {
			fields.Add("password", MsgPasswordsMustMatch)
		}
	}
	if !fields.Has("email") {
		exists, err := s.users.EmailExists(ctx, input.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			fields.Add("email", MsgEmailTaken)
		}
	}
	if err := fields.Err(); err != nil {
		s.metrics.Flow(metrics.FlowSignUp, err)
		return nil, err
	}

	var challenge *OTPChallenge
	err := s.inTx(ctx, metrics.FlowSignUp, func(tx *gorm.DB) error {
		user, err := s.users.WithDB(tx).Create(ctx, users.CreateInput{
			Email:     input.Email,
			Password:  input.Password,
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Gender:    input.Gender,
		})
		if err != nil {
			if errors.Is(err, users.ErrEmailTaken) {
				return apierror.Field("email", MsgEmailTaken)
			}
			return err
		}

		hint, err := s.otp.WithDB(tx).Issue(ctx, user)
		if err != nil {
			return err
		}
		challenge = &OTPChallenge{Message: hint.Message, OTPTime: hint.OTPTime, Token: user.Token}
		return nil
	})
	if err != nil {
		s.logger.Warn("signup failed", zap.Error(err), logging.Email(users.NormalizeEmail(input.Email)))
		return nil, err
	}

	s.logger.Info("signup code sent", logging.Email(users.NormalizeEmail(input.Email)))
	return challenge, nil
}

type VerifyOTPInput struct {
	OTP   string `json:"otp" validate:"required"`
	Email string `json:"email" validate:"required"`
	Token string `json:"token" validate:"required,uuid"`
}

// VerifiedSession echoes the verified input alongside the minted session.
type VerifiedSession struct {
	OTP     string          `json:"otp"`
	Email   string          `json:"email"`
	Token   string          `json:"token"`
	Refresh string          `json:"refresh"`
	Session *session.Tokens `json:"-"`
}

// VerifyOTP redeems a code for the user's current stage, checks the binding
// token, activates the account and issues a session. Any failure leaves the
// code unconsumed.
func (s *Service) VerifyOTP(ctx context.Context, input VerifyOTPInput) (*VerifiedSession, error) {
	if err := s.validator.Fields(input).Err(); err != nil {
		s.metrics.Flow(metrics.FlowVerifyOTP, err)
		return nil, err
	}

	var result *VerifiedSession
	err := s.inTx(ctx, metrics.FlowVerifyOTP, func(tx *gorm.DB) error {
		userService := s.users.WithDB(tx)

		user, err := userService.FindByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return apierror.NotFound(otp.MsgIncorrect)
			}
			return err
		}

		if _, err := s.otp.WithDB(tx).Verify(ctx, input.OTP, input.Email, otp.StageFor(user)); err != nil {
			return err
		}

		if input.Token != user.Token {
			s.logger.Warn("binding token mismatch on verify", logging.UserID(user.ID))
			return apierror.InvalidToken(MsgTokenNotValid)
		}

		if err := userService.Activate(ctx, user); err != nil {
			return err
		}

		tokens, err := s.sessions.IssueSession(user)
		if err != nil {
			return err
		}

		result = &VerifiedSession{
			OTP:     input.OTP,
			Email:   input.Email,
			Token:   input.Token,
			Refresh: tokens.RefreshToken,
			Session: tokens,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionIssued()
	s.logger.Info("code verified, session issued", logging.Email(users.NormalizeEmail(input.Email)))
	return result, nil
}

type ResendOTPInput struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required,uuid"`
}

func (s *Service) ResendOTP(ctx context.Context, input ResendOTPInput) error {
	if err := s.validator.Fields(input).Err(); err != nil {
		s.metrics.Flow(metrics.FlowResendOTP, err)
		return err
	}

	return s.inTx(ctx, metrics.FlowResendOTP, func(tx *gorm.DB) error {
		_, err := s.otp.WithDB(tx).Resend(ctx, input.Email, input.Token)
		return err
	})
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries either a session or, for second-factor accounts, a
// code challenge. Never both.
type LoginResult struct {
	Session   *session.Tokens
	Challenge *OTPChallenge
}

// Login checks credentials and rotates the binding token. Accounts holding
// the second-factor role receive a LOGIN code instead of a session.
func (s *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if err := s.validator.Fields(input).Err(); err != nil {
		s.metrics.Flow(metrics.FlowLogin, err)
		return nil, err
	}

	var result *LoginResult
	err := s.inTx(ctx, metrics.FlowLogin, func(tx *gorm.DB) error {
		userService := s.users.WithDB(tx)

		user, err := userService.Authenticate(ctx, input.Email, input.Password)
		if err != nil {
			if errors.Is(err, users.ErrInvalidCredentials) {
				return apierror.Unauthorized(MsgNoActiveAccount)
			}
			return err
		}

		if err := userService.RotateToken(ctx, user); err != nil {
			return err
		}

		if user.HasRole(s.config.OTP.TwoFactorRole) {
			hint, err := s.otp.WithDB(tx).Issue(ctx, user)
			if err != nil {
				return err
			}
			result = &LoginResult{Challenge: &OTPChallenge{Message: hint.Message, OTPTime: hint.OTPTime, Token: user.Token}}
			s.logger.Info("second factor required", logging.UserID(user.ID))
			return nil
		}

		tokens, err := s.sessions.IssueSession(user)
		if err != nil {
			return err
		}
		result = &LoginResult{Session: tokens}
		s.logger.Info("user logged in", logging.UserID(user.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Challenge != nil {
		s.metrics.Flow(metrics.FlowLoginOTP, nil)
	} else {
		s.metrics.SessionIssued()
	}
	return result, nil
}

// Logout blacklists the token wrapped in cookieValue.
func (s *Service) Logout(ctx context.Context, cookieValue string) error {
	raw, err := s.sessions.Decrypt(cookieValue)
	if err != nil {
		s.metrics.Flow(metrics.FlowLogout, err)
		return err
	}

	return s.inTx(ctx, metrics.FlowLogout, func(tx *gorm.DB) error {
		if err := s.sessions.WithDB(tx).Revoke(ctx, raw); err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
		return nil
	})
}

// TokenDetails returns the verified claims of the token wrapped in cookieValue.
func (s *Service) TokenDetails(cookieValue string) (map[string]any, error) {
	return s.sessions.Inspect(cookieValue)
}

type RefreshInput struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Refresh exchanges a refresh token for a new access session.
func (s *Service) Refresh(ctx context.Context, input RefreshInput) (*session.Tokens, error) {
	if err := s.validator.Fields(input).Err(); err != nil {
		s.metrics.Flow(metrics.FlowRefresh, err)
		return nil, err
	}

	tokens, err := s.sessions.Refresh(ctx, input.Refresh)
	s.metrics.Flow(metrics.FlowRefresh, err)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionIssued()
	return tokens, nil
}
