package auth

import (
	"net/http"
	"time"
)

// CookiePolicy is the one place session cookie attributes are decided, so
// every flow that sets or clears the cookie agrees on them.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

// Session returns the Set-Cookie value for a freshly issued session token.
func (p CookiePolicy) Session(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.TTL.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}

// Clear returns a cookie that deletes the session cookie in the browser.
// Attributes must match Session or some browsers keep the old cookie.
func (p CookiePolicy) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}
