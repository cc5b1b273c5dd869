// Package auth implements the credential lifecycle: a JWT codec for signed,
// time-bound claims and an Authenticator that verifies access tokens and
// silently re-mints them from a refresh token.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claim is the decoded payload of a token. ExpiresAt is always stamped by the
// codec at encode time; a value supplied by the caller is ignored.
type Claim struct {
	SubjectID   int64
	Role        string
	DisplayName string
	AvatarURL   string
	ExpiresAt   time.Time
}

// IsZero reports whether c carries no identity (anonymous caller).
func (c Claim) IsZero() bool {
	return c.SubjectID == 0 && c.Role == "" && c.DisplayName == "" && c.AvatarURL == "" && c.ExpiresAt.IsZero()
}

// identity returns a copy of c without the expiry.
func (c Claim) identity() Claim {
	return Claim{SubjectID: c.SubjectID, Role: c.Role, DisplayName: c.DisplayName, AvatarURL: c.AvatarURL}
}

// tokenClaims is the wire form of Claim.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"uid"`
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"pfp,omitempty"`
}

// Codec encodes and decodes claims signed with one HMAC secret.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewCodec returns a codec for the named algorithm. Only the HMAC family
// (HS256, HS384, HS512) is accepted since the secret is symmetric.
func NewCodec(secret []byte, algorithm string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty signing secret")
	}
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedAlgorithm, algorithm)
	}
	return &Codec{secret: secret, method: method, now: time.Now}, nil
}

// Encode signs claim with an expiry of now+ttl.
func (c *Codec) Encode(claim Claim, ttl time.Duration) (string, error) {
	token, _, err := c.issue(claim, ttl)
	return token, err
}

// issue signs claim and also returns it with the expiry actually embedded.
func (c *Codec) issue(claim Claim, ttl time.Duration) (string, Claim, error) {
	now := c.now()
	exp := jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(c.method, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(claim.SubjectID, 10),
			ExpiresAt: exp,
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:   claim.SubjectID,
		Role:     claim.Role,
		Username: claim.DisplayName,
		Avatar:   claim.AvatarURL,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", Claim{}, fmt.Errorf("sign token: %w", err)
	}

	stamped := claim.identity()
	stamped.ExpiresAt = exp.Time
	return signed, stamped, nil
}

// Decode verifies signature, algorithm and expiry of tokenString. Every
// failure wraps common.ErrInvalidCredential together with the jwt cause.
func (c *Codec) Decode(tokenString string) (Claim, error) {
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claim{}, fmt.Errorf("%w: %w", common.ErrInvalidCredential, err)
	}
	if !token.Valid {
		return Claim{}, common.ErrInvalidCredential
	}

	return Claim{
		SubjectID:   claims.UserID,
		Role:        claims.Role,
		DisplayName: claims.Username,
		AvatarURL:   claims.Avatar,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
