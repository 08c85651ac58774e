// Package domain canonicalizes hosts into stable policy keys.
package domain

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/use-agent/qrawl/models"
)

// Domain is a canonicalized host: lowercase, IDNA-to-ASCII, leading
// "www." stripped. Canonicalize(Canonicalize(h)) == Canonicalize(h).
type Domain string

func (d Domain) String() string { return string(d) }

// Canonicalize normalizes a host to its stable key form. It never
// fails; if IDNA conversion rejects the input, the lowercased input is
// used as-is.
func Canonicalize(host string) string {
	lower := strings.ToLower(host)
	ascii, err := idna.ToASCII(lower)
	if err != nil {
		ascii = lower
	}

	// Strip a single leading "www." so www and apex share one policy,
	// but only when something remains after it.
	if strings.HasPrefix(ascii, "www.") && len(ascii) > 4 {
		return ascii[4:]
	}
	return ascii
}

// FromRaw builds a Domain from raw user text (CLI args, API callers).
func FromRaw(host string) Domain {
	return Domain(Canonicalize(host))
}

// FromURL extracts the canonical domain of a parsed URL. The second
// return is false when the URL carries no host.
func FromURL(u *url.URL) (Domain, bool) {
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return Domain(Canonicalize(host)), true
}

// ParseFromURL parses a raw URL string and extracts its canonical
// domain in one step. Returns InvalidUrl when the string is not an
// absolute URL and MissingDomain when it parses but has no host.
func ParseFromURL(raw string) (*url.URL, Domain, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil, "", models.NewInvalidURL(raw)
	}
	d, ok := FromURL(u)
	if !ok {
		return nil, "", models.NewMissingDomain()
	}
	return u, d, nil
}
