package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/honeynil/KudosClassroom/internal/config"
	"github.com/honeynil/KudosClassroom/internal/models"
)

// TokenIssuer signs and verifies access and refresh tokens. The two kinds use
// different secrets so one can never be replayed as the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

// IssueAccess returns a signed access token for id.
func (i *TokenIssuer) IssueAccess(id models.Identity) (string, error) {
	claims := models.NewTokenClaims(id)
	now := i.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.accessTTL))
	return sign(claims, i.accessSecret)
}

// IssueRefresh returns a signed refresh token for id together with its jti.
func (i *TokenIssuer) IssueRefresh(id models.Identity) (token, jti string, err error) {
	claims := models.NewTokenClaims(id)
	now := i.now()
	jti = uuid.NewString()
	claims.ID = jti
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.refreshTTL))
	token, err = sign(claims, i.refreshSecret)
	if err != nil {
		return "", "", err
	}
	return token, jti, nil
}

func (i *TokenIssuer) ParseAccess(token string) (models.Identity, error) {
	claims, err := i.parse(token, i.accessSecret)
	if err != nil {
		return nil, err
	}
	return claims.Identity()
}

// ParseRefresh verifies a refresh token and returns its identity and jti.
func (i *TokenIssuer) ParseRefresh(token string) (models.Identity, string, error) {
	claims, err := i.parse(token, i.refreshSecret)
	if err != nil {
		return nil, "", err
	}
	if claims.ID == "" {
		return nil, "", fmt.Errorf("refresh token without jti")
	}
	id, err := claims.Identity()
	if err != nil {
		return nil, "", err
	}
	return id, claims.ID, nil
}

func (i *TokenIssuer) parse(token string, secret []byte) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func sign(claims models.TokenClaims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("JWT secret not set")
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
