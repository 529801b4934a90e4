package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/zap"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken     = errors.New("invalid JWT token")
	ErrExpiredToken     = errors.New("JWT token has expired")
	ErrMalformedToken   = errors.New("malformed JWT token")
	ErrInvalidSignature = errors.New("invalid JWT token signature")
	ErrWrongTokenType   = errors.New("JWT token has the wrong type")
)

type Claims struct {
	UserID    uint   `json:"user_id"`
	TokenType string `json:"token_type"`
	JTI       string `json:"jti"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	config *config.JWTConfig
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: &cfg.JWT,
		logger: logger.Named("jwt"),
	}
}

func (s *Service) AccessExpiry() time.Duration {
	return s.config.AccessExpiry
}

func (s *Service) RefreshExpiry() time.Duration {
	return s.config.RefreshExpiry
}

// GenerateToken signs an access token outside any session.
func (s *Service) GenerateToken(userID uint) (string, error) {
	return s.sign(userID, TokenTypeAccess, s.config.AccessExpiry, "")
}

// GenerateAccessToken signs an access token bound to sessionID.
func (s *Service) GenerateAccessToken(userID uint, sessionID string) (string, error) {
	return s.sign(userID, TokenTypeAccess, s.config.AccessExpiry, sessionID)
}

// GenerateRefreshToken signs a refresh token that opens a new session: its
// sid is its own jti.
func (s *Service) GenerateRefreshToken(userID uint) (string, error) {
	return s.sign(userID, TokenTypeRefresh, s.config.RefreshExpiry, "")
}

// GenerateSessionTokens signs a refresh token and an access token sharing one sid.
func (s *Service) GenerateSessionTokens(userID uint) (access, refresh string, err error) {
	sessionID := uuid.NewString()
	refresh, err = s.sign(userID, TokenTypeRefresh, s.config.RefreshExpiry, sessionID)
	if err != nil {
		return "", "", err
	}
	access, err = s.sign(userID, TokenTypeAccess, s.config.AccessExpiry, sessionID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *Service) sign(userID uint, tokenType string, lifetime time.Duration, sessionID string) (string, error) {
	now := time.Now()
	jti := uuid.NewString()
	if tokenType == TokenTypeRefresh {
		if sessionID == "" {
			sessionID = jti
		} else {
			jti = sessionID
		}
	}
	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		JTI:       jti,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.Issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  []string{s.config.Issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.SecretKey))
	if err != nil {
		s.logger.Error("failed to sign JWT token", zap.Error(err), zap.String("token_type", tokenType))
		return "", fmt.Errorf("failed to generate JWT %s token: %w", tokenType, err)
	}
	return tokenString, nil
}

func (s *Service) keyFunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() == "none" {
		return nil, errors.New("'none' algorithm is not allowed")
	}
	if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
	}
	return []byte(s.config.SecretKey), nil
}

func (s *Service) parserOptions() []jwt.ParserOption {
	if s.config.Issuer == "" {
		return nil
	}
	return []jwt.ParserOption{
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Issuer),
	}
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.keyFunc, s.parserOptions()...)
	if err != nil {
		s.logger.Warn("JWT token validation failed", zap.Error(err))
		return nil, translateError(err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ValidateAccessToken is ValidateToken restricted to access tokens.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validateType(tokenString, TokenTypeAccess)
}

func (s *Service) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validateType(tokenString, TokenTypeRefresh)
}

func (s *Service) validateType(tokenString, tokenType string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		s.logger.Warn("JWT token type mismatch",
			zap.String("expected", tokenType),
			zap.String("actual", claims.TokenType))
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// DecodeClaims verifies tokenString and returns every claim it carries.
func (s *Service) DecodeClaims(tokenString string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, s.parserOptions()...)
	if err != nil {
		return nil, translateError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SessionID returns the sid of a token signed by this service, ignoring
// expiry so that an expired cookie can still end its session.
func (s *Service) SessionID(tokenString string) (string, error) {
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, jwt.WithoutClaimsValidation()); err != nil {
		return "", translateError(err)
	}
	return claims.SessionID, nil
}

func translateError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrInvalidSignature
	default:
		return ErrInvalidToken
	}
}
