// Package auth issues and verifies the bearer tokens that carry a caller's
// identity.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"postvote/app/models"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Kind tells access tokens from refresh tokens.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

const (
	claimName = "name"
	claimKind = "typ"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenPair is returned on signup, login and refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenIssuer signs HS256 JWTs with a shared secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret []byte, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive (access %s, refresh %s)", accessTTL, refreshTTL)
	}
	return &TokenIssuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// Issue signs a fresh access and refresh token for id.
func (i *TokenIssuer) Issue(id models.Identity) (TokenPair, error) {
	access, err := i.sign(id, Access, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(id, Refresh, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (i *TokenIssuer) sign(id models.Identity, kind Kind, ttl time.Duration) (string, error) {
	now := i.now()
	token, err := jwt.NewBuilder().
		Subject(strconv.Itoa(int(id.ID))).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(claimName, id.Username).
		Claim(claimKind, string(kind)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build JWT: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, i.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return string(signed), nil
}

// Verify checks signature, expiry and kind and returns the identity the
// token was issued for.
func (i *TokenIssuer) Verify(raw string, kind Kind) (models.Identity, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, i.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if got, _ := token.Get(claimKind); got != string(kind) {
		return models.Identity{}, fmt.Errorf("%w: expected %s token", ErrInvalidToken, kind)
	}

	id, err := strconv.Atoi(token.Subject())
	if err != nil || id <= 0 {
		return models.Identity{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, token.Subject())
	}

	name, _ := token.Get(claimName)
	username, _ := name.(string)
	return models.Identity{ID: models.UserID(id), Username: username}, nil
}
