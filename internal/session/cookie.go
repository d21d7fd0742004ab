package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const CookieName = "sessionId"

// Cookies signs session ids and writes the session cookie.
type Cookies struct {
	secret []byte
	secure bool
	domain string
	maxAge int
}

// NewCookies returns a cookie writer. Secure cookies also carry
// SameSite=Lax and the given domain.
func NewCookies(secret string, secure bool, domain string) *Cookies {
	return &Cookies{
		secret: []byte(secret),
		secure: secure,
		domain: domain,
		maxAge: int(DefaultTTL.Seconds()),
	}
}

func (c *Cookies) mac(id string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Sign returns the cookie value for id: "<id>.<mac>".
func (c *Cookies) Sign(id string) string {
	return id + "." + c.mac(id)
}

// Parse verifies a signed value and returns the session id.
func (c *Cookies) Parse(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(c.mac(id))) {
		return "", false
	}
	return id, true
}

// Read returns the verified session id carried by r, if any.
func (c *Cookies) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return c.Parse(cookie.Value)
}

func (c *Cookies) Set(w http.ResponseWriter, id string) {
	http.SetCookie(w, c.cookie(c.Sign(id), c.maxAge))
}

func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c *Cookies) cookie(value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	}
	if c.secure {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteLaxMode
		cookie.Domain = c.domain
	}
	return cookie
}
