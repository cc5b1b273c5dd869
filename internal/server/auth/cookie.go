package auth

import (
	"net/http"

	"github.com/dmitrijs2005/pricewatch/internal/common"
)

// Directive instructs the transport to set or clear one credential cookie.
// A negative MaxAge means "delete the cookie".
type Directive struct {
	Name     string
	Value    string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

// Clears reports whether the directive removes the cookie.
func (d Directive) Clears() bool {
	return d.MaxAge < 0
}

// HTTPCookie converts the directive for net/http handlers.
func (d Directive) HTTPCookie() *http.Cookie {
	return &http.Cookie{
		Name:     d.Name,
		Value:    d.Value,
		Path:     "/",
		HttpOnly: d.HTTPOnly,
		Secure:   d.Secure,
		SameSite: d.SameSite,
		MaxAge:   d.MaxAge,
	}
}

// String renders the directive as a Set-Cookie header value.
func (d Directive) String() string {
	return d.HTTPCookie().String()
}

func (a *Authenticator) setCookie(name, value string, maxAge int) Directive {
	return Directive{
		Name:     name,
		Value:    value,
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func (a *Authenticator) clearCookies() []Directive {
	return []Directive{
		a.setCookie(common.AccessTokenHeaderName, "", -1),
		a.setCookie(common.RefreshTokenHeaderName, "", -1),
	}
}
