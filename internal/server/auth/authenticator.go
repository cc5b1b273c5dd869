package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
)

// Settings configures an Authenticator.
type Settings struct {
	AccessSecret  string
	RefreshSecret string
	Algorithm     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SecureCookies bool
}

// Result is the outcome of an authorization contract: the caller's claim
// (zero for anonymous callers) and the cookie directives the transport must
// apply to its response.
type Result struct {
	Claim   Claim
	Cookies []Directive
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithClock replaces time.Now for both codecs.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// WithRotationHook registers fn to be called after every silent access
// token re-mint.
func WithRotationHook(fn func()) Option {
	return func(a *Authenticator) {
		a.onRotate = fn
	}
}

// Authenticator verifies access tokens and re-mints them from refresh
// tokens. It holds no mutable state and is safe for concurrent use.
//
// Four contracts share one verify-then-refresh algorithm and differ only in
// how failures are reported: RequireAuth (strict), CheckAuth (permissive
// read), CheckUserStatus (never fails) and CheckBoolean (flag only).
type Authenticator struct {
	access     *Codec
	refresh    *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	secure     bool
	now        func() time.Time
	onRotate   func()
}

// NewAuthenticator validates s and returns an authenticator issuing tokens
// signed with its access and refresh secrets.
func NewAuthenticator(s Settings, opts ...Option) (*Authenticator, error) {
	if s.AccessSecret == s.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if s.AccessTTL <= 0 || s.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}

	access, err := NewCodec([]byte(s.AccessSecret), s.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("access codec: %w", err)
	}
	refresh, err := NewCodec([]byte(s.RefreshSecret), s.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("refresh codec: %w", err)
	}

	a := &Authenticator{
		access:     access,
		refresh:    refresh,
		accessTTL:  s.AccessTTL,
		refreshTTL: s.RefreshTTL,
		secure:     s.SecureCookies,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.access.now = a.now
	a.refresh.now = a.now

	return a, nil
}

// RequireAuth is the strict contract. A valid access token is returned as is
// with no cookie side effect. Otherwise a refresh token is required
// (common.ErrUnauthenticated) and must verify (common.ErrInvalidCredential,
// with directives clearing both cookies); on success a new access token is
// minted and returned as a set-cookie directive.
func (a *Authenticator) RequireAuth(accessToken, refreshToken string) (Result, error) {
	claim, set, err := a.resolve(accessToken, refreshToken)
	switch {
	case err == nil:
		return Result{Claim: claim, Cookies: set}, nil
	case errors.Is(err, common.ErrInvalidCredential):
		return Result{Cookies: a.clearCookies()}, err
	default:
		return Result{}, err
	}
}

// CheckAuth is the permissive read contract used by "am I logged in"
// probes. A missing refresh token still fails with
// common.ErrUnauthenticated, but an invalid one yields an empty claim and
// directives clearing both cookies instead of an error.
func (a *Authenticator) CheckAuth(accessToken, refreshToken string) (Result, error) {
	claim, set, err := a.resolve(accessToken, refreshToken)
	switch {
	case err == nil:
		return Result{Claim: claim, Cookies: set}, nil
	case errors.Is(err, common.ErrInvalidCredential):
		return Result{Cookies: a.clearCookies()}, nil
	default:
		return Result{}, err
	}
}

// CheckUserStatus never fails. Anonymous callers get a zero claim; callers
// holding an invalid refresh token additionally get clear directives.
func (a *Authenticator) CheckUserStatus(accessToken, refreshToken string) Result {
	claim, set, err := a.resolve(accessToken, refreshToken)
	switch {
	case err == nil:
		return Result{Claim: claim, Cookies: set}
	case errors.Is(err, common.ErrInvalidCredential):
		return Result{Cookies: a.clearCookies()}
	default:
		return Result{}
	}
}

// CheckBoolean collapses the algorithm to a flag. A successful rotation
// still returns the set-cookie directive.
func (a *Authenticator) CheckBoolean(accessToken, refreshToken string) (bool, []Directive) {
	_, set, err := a.resolve(accessToken, refreshToken)
	if err != nil {
		return false, nil
	}
	return true, set
}

// Issue mints an access and a refresh token for claim, as done at login.
// The returned claim carries the access token expiry.
func (a *Authenticator) Issue(claim Claim) (Result, error) {
	accessToken, stamped, err := a.access.issue(claim, a.accessTTL)
	if err != nil {
		return Result{}, fmt.Errorf("mint access token: %w", err)
	}
	refreshToken, err := a.refresh.Encode(claim, a.refreshTTL)
	if err != nil {
		return Result{}, fmt.Errorf("mint refresh token: %w", err)
	}

	return Result{
		Claim: stamped,
		Cookies: []Directive{
			a.setCookie(common.AccessTokenHeaderName, accessToken, int(a.accessTTL.Seconds())),
			a.setCookie(common.RefreshTokenHeaderName, refreshToken, int(a.refreshTTL.Seconds())),
		},
	}, nil
}

// Logout returns directives clearing both credential cookies.
func (a *Authenticator) Logout() []Directive {
	return a.clearCookies()
}

// resolve is the shared verify-then-refresh algorithm. Every access token
// failure is treated alike and falls through to the refresh token. The
// re-minted claim copies identity fields only, never the refresh expiry.
func (a *Authenticator) resolve(accessToken, refreshToken string) (Claim, []Directive, error) {
	if accessToken != "" {
		if claim, err := a.access.Decode(accessToken); err == nil {
			return claim, nil, nil
		}
	}

	if refreshToken == "" {
		return Claim{}, nil, common.ErrUnauthenticated
	}

	refreshClaim, err := a.refresh.Decode(refreshToken)
	if err != nil {
		return Claim{}, nil, err
	}

	token, claim, err := a.access.issue(refreshClaim.identity(), a.accessTTL)
	if err != nil {
		return Claim{}, nil, fmt.Errorf("mint access token: %w", err)
	}

	if a.onRotate != nil {
		a.onRotate()
	}

	return claim, []Directive{
		a.setCookie(common.AccessTokenHeaderName, token, int(a.accessTTL.Seconds())),
	}, nil
}
