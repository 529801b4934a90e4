// Package session issues, authenticates, inspects and revokes the JWT
// sessions carried in the encrypted access cookie.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tech-arch1tect/backyard/apierror"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/cookiecrypt"
	"github.com/tech-arch1tect/backyard/services/jwt"
	"github.com/tech-arch1tect/backyard/services/logging"
	"github.com/tech-arch1tect/backyard/services/revocation"
	"github.com/tech-arch1tect/backyard/services/users"
	"gorm.io/gorm"
)

const (
	MsgInvalidToken        = "Invalid token"
	MsgBlacklisted         = "Token is blacklisted"
	MsgInvalidOrExpired    = "Invalid or expired token"
	MsgTokenNotValid       = "Given token not valid for any token type"
	MsgUserNotFound        = "User not found"
	MsgUserInactive        = "User is inactive"
	authorizationScheme    = "Bearer"
	authorizationHeaderKey = "Authorization"
)

// Tokens is a freshly minted session. CookieValue is the encrypted access
// token; the raw tokens never leave the server except the refresh token.
type Tokens struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"refresh"`
	CookieValue  string    `json:"access"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	User   *users.User
	Claims *jwt.Claims
	Token  string
}

type Service struct {
	cookie     config.CookieConfig
	jwt        *jwt.Service
	crypt      *cookiecrypt.Service
	revocation *revocation.Service
	users      *users.Service
	logger     *logging.Service
}

func NewService(cfg *config.Config, jwtService *jwt.Service, crypt *cookiecrypt.Service, revocationService *revocation.Service, userService *users.Service, logger *logging.Service) *Service {
	return &Service{
		cookie:     cfg.Cookie,
		jwt:        jwtService,
		crypt:      crypt,
		revocation: revocationService,
		users:      userService,
		logger:     logger.Named("session"),
	}
}

func (s *Service) WithDB(tx *gorm.DB) *Service {
	clone := *s
	clone.revocation = s.revocation.WithDB(tx)
	clone.users = s.users.WithDB(tx)
	return &clone
}

func (s *Service) IssueSession(user *users.User) (*Tokens, error) {
	access, refresh, err := s.jwt.GenerateSessionTokens(user.ID)
	if err != nil {
		return nil, err
	}
	return s.wrap(access, refresh)
}

func (s *Service) wrap(access, refresh string) (*Tokens, error) {
	encrypted, err := s.crypt.Encrypt(access)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		CookieValue:  encrypted,
		ExpiresAt:    time.Now().Add(s.jwt.AccessExpiry()),
	}, nil
}

// Decrypt recovers the raw JWT from a cookie value.
func (s *Service) Decrypt(value string) (string, error) {
	raw, err := s.crypt.Decrypt(value)
	if err != nil {
		return "", apierror.InvalidToken(MsgInvalidToken)
	}
	return raw, nil
}

// TokenFromRequest returns the encrypted token carried by r. The
// Authorization header wins over the cookie when present; a header with a
// scheme other than Bearer yields no credential.
func (s *Service) TokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get(authorizationHeaderKey); header != "" {
		scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
		if !ok || !strings.EqualFold(scheme, authorizationScheme) || strings.TrimSpace(value) == "" {
			return "", false
		}
		return strings.TrimSpace(value), true
	}

	cookie, err := r.Cookie(s.cookie.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Authenticate resolves the caller of r. A request carrying no credential
// yields (nil, nil).
func (s *Service) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	value, ok := s.TokenFromRequest(r)
	if !ok {
		return nil, nil
	}

	raw, err := s.crypt.Decrypt(value)
	if err != nil {
		return nil, unauthenticated(MsgInvalidToken)
	}

	revoked, err := s.revocation.IsRevoked(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		s.logger.Warn("blacklisted token presented")
		return nil, unauthenticated(MsgBlacklisted)
	}

	claims, err := s.jwt.ValidateAccessToken(raw)
	if err != nil {
		return nil, unauthenticated(MsgTokenNotValid)
	}

	ended, err := s.revocation.IsSessionRevoked(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if ended {
		s.logger.Warn("token from an ended session presented")
		return nil, unauthenticated(MsgBlacklisted)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, unauthenticated(MsgUserNotFound)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, unauthenticated(MsgUserInactive)
	}

	return &Principal{User: user, Claims: claims, Token: raw}, nil
}

func unauthenticated(message string) *apierror.Error {
	return apierror.InvalidToken(message).WithStatus(http.StatusUnauthorized)
}

// Revoke blacklists a raw (decrypted) token and ends the session it
// belongs to, which also invalidates the paired refresh token.
func (s *Service) Revoke(ctx context.Context, rawToken string) error {
	// A token without a readable sid is still blacklisted on its own.
	sessionID, _ := s.jwt.SessionID(rawToken)
	return s.revocation.RevokeSession(ctx, rawToken, sessionID)
}

// Inspect decrypts a cookie value and returns the verified claims.
func (s *Service) Inspect(value string) (map[string]any, error) {
	raw, err := s.crypt.Decrypt(value)
	if err != nil {
		return nil, apierror.InvalidToken(MsgInvalidOrExpired)
	}
	claims, err := s.jwt.DecodeClaims(raw)
	if err != nil {
		return nil, apierror.InvalidToken(MsgInvalidOrExpired)
	}
	return claims, nil
}

// Refresh mints a new access token from a raw refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, unauthenticated(MsgTokenNotValid)
	}

	revoked, err := s.revocation.IsRevoked(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !revoked {
		revoked, err = s.revocation.IsSessionRevoked(ctx, claims.SessionID)
		if err != nil {
			return nil, err
		}
	}
	if revoked {
		return nil, unauthenticated(MsgBlacklisted)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, unauthenticated(MsgUserNotFound)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, unauthenticated(MsgUserInactive)
	}

	access, err := s.jwt.GenerateAccessToken(user.ID, claims.SessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("access token refreshed", logging.UserID(user.ID))
	return s.wrap(access, refreshToken)
}

func (s *Service) CookieName() string {
	return s.cookie.Name
}

// Cookie stores the encrypted access token for as long as the token lives.
func (s *Service) Cookie(tokens *Tokens) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie.Name,
		Value:    tokens.CookieValue,
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		Expires:  tokens.ExpiresAt,
		MaxAge:   int(time.Until(tokens.ExpiresAt).Seconds()),
		Secure:   s.cookie.Secure,
		HttpOnly: s.cookie.HTTPOnly,
		SameSite: s.cookie.SameSiteMode(),
	}
}

// ClearCookie expires the access cookie at the Unix epoch.
func (s *Service) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     s.cookie.Path,
		Domain:   s.cookie.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   s.cookie.Secure,
		HttpOnly: s.cookie.HTTPOnly,
		SameSite: s.cookie.SameSiteMode(),
	}
}
