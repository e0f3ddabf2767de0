// Package auth authenticates storefront customers and internal workers.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned for any missing or invalid credential.
var ErrUnauthorized = errors.New("unauthorized")

var signingMethod = jwt.SigningMethodHS256

// Identity is the signed-in customer. Its contact fields prefill checkout.
type Identity struct {
	UID   string
	Email string
	Name  string
	Phone string
}

// Claims is the customer access token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone_number,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the token settings.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Verifier mints and parses customer access tokens.
type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewVerifier returns a Verifier. The secret must not be empty.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Verifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: ttl}, nil
}

// Mint issues a token for id.
func (v *Verifier) Mint(id Identity, now time.Time) (string, error) {
	if id.UID == "" {
		return "", errors.New("identity uid is required")
	}
	claims := Claims{
		Email: id.Email,
		Name:  id.Name,
		Phone: id.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Parse validates token and returns the identity it carries.
func (v *Verifier) Parse(token string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{signingMethod.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if claims.Subject == "" {
		return Identity{}, errors.Wrap(ErrUnauthorized, "token has no subject")
	}

	return Identity{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Phone: claims.Phone,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
