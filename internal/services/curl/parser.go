// Package curl extracts a credential bundle from a browser "copy as cURL" command.
//
// Extraction is pattern matching over the raw text, not shell tokenisation. The input is a
// narrow copy-paste format, so unrecognised flags and arguments are ignored and only three
// conditions fail a parse: no organization id, no cookies, no sessionKey cookie.
package curl

import (
	"regexp"
	"strings"

	"github.com/ternarybob/usagebar/internal/models"
)

const (
	// DefaultCookieDomain scopes replayed cookies to the service apex domain
	DefaultCookieDomain = ".claude.ai"
	cookiePath          = "/"
	cookieSeparator     = "; "
)

var (
	orgIDPattern  = regexp.MustCompile(`organizations/([a-f0-9-]+)/usage`)
	cookiePattern = regexp.MustCompile(`-b\s+'([^']+)'`)
	headerPattern = regexp.MustCompile(`-H\s+'([^:]+):\s*([^']+)'`)
)

// Parser turns command text into a CredentialBundle
type Parser struct {
	cookieDomain string
}

// NewParser creates a parser that scopes cookies to cookieDomain
func NewParser(cookieDomain string) *Parser {
	if cookieDomain == "" {
		cookieDomain = DefaultCookieDomain
	}
	return &Parser{cookieDomain: cookieDomain}
}

// Parse parses with the default cookie domain
func Parse(raw string) (*models.CredentialBundle, error) {
	return NewParser(DefaultCookieDomain).Parse(raw)
}

// Parse extracts the organization id, cookies and headers from raw.
// It returns a *ParseError and no bundle when any required part is missing.
func (p *Parser) Parse(raw string) (*models.CredentialBundle, error) {
	bundle := &models.CredentialBundle{
		OrganizationID: extractOrganizationID(raw),
		Cookies:        p.extractCookies(raw),
		Headers:        extractHeaders(raw),
	}

	if bundle.OrganizationID == "" {
		return nil, &ParseError{Err: ErrOrganizationIDNotFound}
	}
	if len(bundle.Cookies) == 0 {
		return nil, &ParseError{Err: ErrNoCookies}
	}
	if _, ok := bundle.Cookie(models.SessionCookieName); !ok {
		return nil, &ParseError{Err: ErrSessionKeyMissing}
	}

	return bundle, nil
}

func extractOrganizationID(raw string) string {
	m := orgIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

func (p *Parser) extractCookies(raw string) []models.Cookie {
	m := cookiePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}

	var cookies []models.Cookie
	for _, pair := range strings.Split(m[1], cookieSeparator) {
		// values may themselves contain '='
		name, value, _ := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		cookies = append(cookies, models.Cookie{
			Name:   name,
			Value:  value,
			Domain: p.cookieDomain,
			Path:   cookiePath,
		})
	}
	return cookies
}

func extractHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, m := range headerPattern.FindAllStringSubmatch(raw, -1) {
		headers[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
	}
	return headers
}
