package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
)

// TokenConfig defines signing parameters shared by both token kinds.
type TokenConfig struct {
	Secret        string
	Issuer        string
	Audience      string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// TokenService mints and parses the HS512 signed JWTs used for access and
// refresh tokens. The subject claim carries the user email.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService constructs a TokenService instance.
func NewTokenService(config TokenConfig) *TokenService {
	return &TokenService{config: config, now: func() time.Time { return time.Now().UTC() }}
}

// MintAccessToken issues a signed access token for the user.
func (s *TokenService) MintAccessToken(user *models.User) (string, error) {
	return s.mint(user, models.TokenTypeAccess, user.Role, s.config.AccessExpiry)
}

// MintRefreshToken issues a signed refresh token for the user. Refresh
// tokens carry no role claim.
func (s *TokenService) MintRefreshToken(user *models.User) (string, error) {
	return s.mint(user, models.TokenTypeRefresh, "", s.config.RefreshExpiry)
}

func (s *TokenService) mint(user *models.User, tokenType string, role models.UserRole, expiry time.Duration) (string, error) {
	now := s.now()
	claims := models.JWTClaims{
		UserID:    user.ID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			Issuer:    s.config.Issuer,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ParseClaims verifies the signature and decodes the claims. Expiry is
// checked separately so callers can distinguish an expired token from a
// forged one.
func (s *TokenService) ParseClaims(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS512 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.config.Issuer), jwt.WithAudience(s.config.Audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			claims := s.parseExpired(tokenString)
			if claims != nil {
				return claims, appErrors.ErrTokenExpired
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedToken.Code, appErrors.ErrMalformedToken.Status, appErrors.ErrMalformedToken.Message)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrMalformedToken, "invalid token claims")
	}
	return claims, nil
}

// parseExpired re-parses an expired token with validation relaxed so the
// claims stay available for logging. The signature is still verified.
func (s *TokenService) parseExpired(tokenString string) *models.JWTClaims {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS512 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// Validate fully checks a token string against the expected type. Any
// failure is reported as invalid, never as valid.
func (s *TokenService) Validate(tokenString, expectedType string) (*models.JWTClaims, error) {
	claims, err := s.ParseClaims(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != expectedType {
		return nil, appErrors.ErrInvalidTokenType
	}
	return claims, nil
}

// SecondsUntilExpiry reports how long the token remains valid. Expired or
// unreadable tokens report zero.
func (s *TokenService) SecondsUntilExpiry(claims *models.JWTClaims) int64 {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

// AccessExpirySeconds reports the configured access token lifetime.
func (s *TokenService) AccessExpirySeconds() int64 {
	return int64(s.config.AccessExpiry.Seconds())
}

// RefreshExpiry reports the configured refresh token lifetime.
func (s *TokenService) RefreshExpiry() time.Duration {
	return s.config.RefreshExpiry
}
