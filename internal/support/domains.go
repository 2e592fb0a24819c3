package support

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// EmailDomain returns the ASCII-normalized domain part of an address.
func EmailDomain(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return NormalizeHost(email[at+1:])
}

// SendingDomain returns the registrable domain of an address, so that
// news@mail.shop.co.uk and hello@shop.co.uk share one index entry.
func SendingDomain(email string) string {
	return RegistrableDomain(EmailDomain(email))
}

// RegistrableDomain returns eTLD+1 for host, or host itself when the public
// suffix list cannot place it (IP literals, single labels).
func RegistrableDomain(host string) string {
	host = NormalizeHost(host)
	if host == "" {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}

// NormalizeHost lowercases host, strips a trailing dot and converts IDNs to punycode.
func NormalizeHost(host string) string {
	host = strings.Trim(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}

// HostFromURL extracts the normalized host from a URL or bare hostname.
func HostFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Hostname())
}
