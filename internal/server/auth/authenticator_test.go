package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSettings = Settings{
	AccessSecret:  "access-secret",
	RefreshSecret: "refresh-secret",
	Algorithm:     "HS256",
	AccessTTL:     15 * time.Minute,
	RefreshTTL:    24 * time.Hour,
}

var alice = Claim{SubjectID: 7, Role: "user", DisplayName: "alice", AvatarURL: "https://eu.ui-avatars.com/api/?name=alice"}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestAuthenticator(t *testing.T, opts ...Option) (*Authenticator, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)}
	a, err := NewAuthenticator(testSettings, append([]Option{WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	return a, clk
}

// tokens issues a login pair for alice and returns the raw cookie values.
func tokens(t *testing.T, a *Authenticator) (string, string) {
	t.Helper()
	res, err := a.Issue(alice)
	require.NoError(t, err)
	require.Len(t, res.Cookies, 2)
	return res.Cookies[0].Value, res.Cookies[1].Value
}

func TestRequireAuth_ValidAccessToken_NoSideEffect(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	access, refresh := tokens(t, a)

	res, err := a.RequireAuth(access, refresh)
	require.NoError(t, err)
	assert.Equal(t, alice, res.Claim.identity())
	assert.Empty(t, res.Cookies)
}

func TestRequireAuth_ExpiredAccess_RotatesFromRefresh(t *testing.T) {
	rotations := 0
	a, clk := newTestAuthenticator(t, WithRotationHook(func() { rotations++ }))
	access, refresh := tokens(t, a)

	clk.t = clk.t.Add(20 * time.Minute)

	res, err := a.RequireAuth(access, refresh)
	require.NoError(t, err)

	assert.Equal(t, alice, res.Claim.identity())
	assert.True(t, res.Claim.ExpiresAt.Equal(clk.t.Add(testSettings.AccessTTL)), "fresh TTL, not the refresh expiry")
	require.Len(t, res.Cookies, 1)

	d := res.Cookies[0]
	assert.Equal(t, common.AccessTokenHeaderName, d.Name)
	assert.Equal(t, int(testSettings.AccessTTL.Seconds()), d.MaxAge)
	assert.True(t, d.HTTPOnly)
	assert.Equal(t, http.SameSiteLaxMode, d.SameSite)
	assert.Equal(t, 1, rotations)

	again, err := a.RequireAuth(d.Value, "")
	require.NoError(t, err, "minted token must verify on its own")
	assert.Equal(t, alice, again.Claim.identity())
	assert.Empty(t, again.Cookies)
}

func TestRequireAuth_MissingAccess_RotatesFromRefresh(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	_, refresh := tokens(t, a)

	res, err := a.RequireAuth("", refresh)
	require.NoError(t, err)
	assert.Equal(t, alice, res.Claim.identity())
	assert.Len(t, res.Cookies, 1)
}

func TestRequireAuth_GarbageAccess_TreatedAsMissing(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	_, refresh := tokens(t, a)

	res, err := a.RequireAuth("garbage", refresh)
	require.NoError(t, err)
	assert.Len(t, res.Cookies, 1)
}

func TestRequireAuth_AccessSignedWithRefreshSecret_Rejected(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	_, refresh := tokens(t, a)

	// a refresh token presented as access token must not verify
	res, err := a.RequireAuth(refresh, "")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.True(t, res.Claim.IsZero())
}

func TestRequireAuth_NoCredentials(t *testing.T) {
	a, _ := newTestAuthenticator(t)

	res, err := a.RequireAuth("", "")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.Empty(t, res.Cookies)
}

func TestRequireAuth_ExpiredRefresh_ClearsCookies(t *testing.T) {
	a, clk := newTestAuthenticator(t)
	access, refresh := tokens(t, a)

	clk.t = clk.t.Add(25 * time.Hour)

	res, err := a.RequireAuth(access, refresh)
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
	require.Len(t, res.Cookies, 2)
	for _, d := range res.Cookies {
		assert.True(t, d.Clears())
		assert.Empty(t, d.Value)
	}
}

func TestCheckAuth(t *testing.T) {
	a, clk := newTestAuthenticator(t)
	access, refresh := tokens(t, a)

	res, err := a.CheckAuth(access, refresh)
	require.NoError(t, err)
	assert.Equal(t, alice, res.Claim.identity())

	_, err = a.CheckAuth("", "")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	clk.t = clk.t.Add(48 * time.Hour)
	res, err = a.CheckAuth(access, refresh)
	require.NoError(t, err, "invalid refresh is swallowed into cookie clearing")
	assert.True(t, res.Claim.IsZero())
	assert.Len(t, res.Cookies, 2)
}

func TestCheckUserStatus_NeverFails(t *testing.T) {
	a, clk := newTestAuthenticator(t)
	access, refresh := tokens(t, a)

	res := a.CheckUserStatus("", "")
	assert.True(t, res.Claim.IsZero())
	assert.Empty(t, res.Cookies)

	res = a.CheckUserStatus(access, "")
	assert.Equal(t, alice, res.Claim.identity())

	res = a.CheckUserStatus("bogus", "bogus")
	assert.True(t, res.Claim.IsZero())
	assert.Len(t, res.Cookies, 2)

	clk.t = clk.t.Add(time.Hour)
	res = a.CheckUserStatus(access, refresh)
	assert.Equal(t, alice, res.Claim.identity())
	assert.Len(t, res.Cookies, 1)
}

func TestCheckBoolean(t *testing.T) {
	a, clk := newTestAuthenticator(t)
	access, refresh := tokens(t, a)

	ok, cookies := a.CheckBoolean(access, refresh)
	assert.True(t, ok)
	assert.Empty(t, cookies)

	clk.t = clk.t.Add(time.Hour)
	ok, cookies = a.CheckBoolean(access, refresh)
	assert.True(t, ok)
	require.Len(t, cookies, 1)
	assert.Equal(t, common.AccessTokenHeaderName, cookies[0].Name)

	ok, cookies = a.CheckBoolean("", "")
	assert.False(t, ok)
	assert.Empty(t, cookies)

	ok, _ = a.CheckBoolean("", "broken")
	assert.False(t, ok)
}

func TestIssueAndLogout(t *testing.T) {
	a, clk := newTestAuthenticator(t)

	res, err := a.Issue(alice)
	require.NoError(t, err)
	assert.True(t, res.Claim.ExpiresAt.Equal(clk.t.Add(testSettings.AccessTTL)))

	require.Len(t, res.Cookies, 2)
	assert.Equal(t, common.AccessTokenHeaderName, res.Cookies[0].Name)
	assert.Equal(t, 15*60, res.Cookies[0].MaxAge)
	assert.Equal(t, common.RefreshTokenHeaderName, res.Cookies[1].Name)
	assert.Equal(t, 24*60*60, res.Cookies[1].MaxAge)

	out := a.Logout()
	require.Len(t, out, 2)
	assert.True(t, out[0].Clears())
	assert.True(t, out[1].Clears())
}

func TestNewAuthenticator_Validation(t *testing.T) {
	s := testSettings
	s.RefreshSecret = s.AccessSecret
	_, err := NewAuthenticator(s)
	assert.Error(t, err)

	s = testSettings
	s.Algorithm = "ES256"
	_, err = NewAuthenticator(s)
	assert.ErrorIs(t, err, common.ErrUnsupportedAlgorithm)

	s = testSettings
	s.AccessTTL = 0
	_, err = NewAuthenticator(s)
	assert.Error(t, err)
}

func TestSecureCookies(t *testing.T) {
	s := testSettings
	s.SecureCookies = true
	a, err := NewAuthenticator(s)
	require.NoError(t, err)

	res, err := a.Issue(alice)
	require.NoError(t, err)
	for _, d := range res.Cookies {
		assert.True(t, d.Secure)
	}
}

func TestDirective_HTTPCookie(t *testing.T) {
	d := Directive{Name: "access_token", Value: "v", HTTPOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: 900}
	c := d.HTTPCookie()

	assert.Equal(t, "access_token", c.Name)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 900, c.MaxAge)
	assert.Contains(t, d.String(), "HttpOnly")
	assert.Contains(t, d.String(), "SameSite=Lax")
}
