// Package auth grants the host role. A shared secret is checked with bcrypt and
// exchanged for a short-lived HS256 token that the WebSocket endpoint and the
// claim-host message accept.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL = 12 * time.Hour
	issuer          = "venue"
	hostRole        = "host"
)

var (
	ErrDisabled           = errors.New("host login disabled")
	ErrInvalidCredentials = errors.New("invalid host credentials")
	ErrInvalidToken       = errors.New("invalid host token")
	ErrTokenExpired       = errors.New("host token expired")
	ErrNoSecret           = errors.New("token secret is required when host login is enabled")
)

type Config struct {
	// Password is the plaintext host secret. Ignored when PasswordHash is set.
	Password string
	// PasswordHash is a bcrypt hash of the host secret.
	PasswordHash string
	// Secret signs host tokens.
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

type hostClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type HostAuth struct {
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New builds the host authenticator. With neither Password nor PasswordHash set
// the returned HostAuth is disabled and rejects every login and token.
func New(cfg Config) (*HostAuth, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	a := &HostAuth{secret: []byte(cfg.Secret), ttl: cfg.TTL, now: cfg.Now}

	switch {
	case strings.TrimSpace(cfg.PasswordHash) != "":
		hash := []byte(strings.TrimSpace(cfg.PasswordHash))
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("host password hash: %w", err)
		}
		a.hash = hash
	case cfg.Password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash host password: %w", err)
		}
		a.hash = hash
	default:
		return a, nil
	}
	if len(a.secret) == 0 {
		return nil, ErrNoSecret
	}
	return a, nil
}

func (a *HostAuth) Enabled() bool { return a != nil && len(a.hash) > 0 }

func (a *HostAuth) TTL() time.Duration { return a.ttl }

// Login checks password and returns a signed host token with its expiry.
func (a *HostAuth) Login(password string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrDisabled
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.Issue()
}

func (a *HostAuth) Issue() (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrDisabled
	}
	now := a.now()
	exp := now.Add(a.ttl)
	claims := hostClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   hostRole,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: hostRole,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign host token: %w", err)
	}
	return token, exp, nil
}

// VerifyHostToken accepts an unexpired token signed by this server with the host role.
func (a *HostAuth) VerifyHostToken(token string) error {
	if !a.Enabled() {
		return ErrDisabled
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	var claims hostClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Issuer != issuer || claims.Role != hostRole {
		return ErrInvalidToken
	}
	if claims.ExpiresAt == nil || !a.now().Before(claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}

// HashPassword returns the bcrypt hash to put in host_password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
