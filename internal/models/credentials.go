package models

import (
	"sort"
	"time"
)

// SessionCookieName is the cookie that authenticates every usage request
const SessionCookieName = "sessionKey"

// Cookie is a single browser cookie replayed into the scripted session
type Cookie struct {
	Name   string `json:"name" validate:"required"`
	Value  string `json:"value" validate:"required"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// CredentialBundle is the persisted unit of authentication state.
// One bundle exists per installation; saving overwrites the previous one.
type CredentialBundle struct {
	OrganizationID string            `json:"orgId" validate:"required,orgid"`
	Cookies        []Cookie          `json:"cookies" validate:"required,min=1,dive"`
	Headers        map[string]string `json:"headers"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Cookie returns the first cookie with the given name
func (b *CredentialBundle) Cookie(name string) (Cookie, bool) {
	for _, c := range b.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}

// SessionKey returns the sessionKey cookie value, or "" when absent
func (b *CredentialBundle) SessionKey() string {
	c, ok := b.Cookie(SessionCookieName)
	if !ok {
		return ""
	}
	return c.Value
}

// CookieNames lists cookie names in order (safe to log)
func (b *CredentialBundle) CookieNames() []string {
	names := make([]string, 0, len(b.Cookies))
	for _, c := range b.Cookies {
		names = append(names, c.Name)
	}
	return names
}

// HeaderNames lists header names sorted (safe to log)
func (b *CredentialBundle) HeaderNames() []string {
	names := make([]string, 0, len(b.Headers))
	for name := range b.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
