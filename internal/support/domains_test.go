package support

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendingDomain(t *testing.T) {
	tests := map[string]string{
		"news@mail.shop.co.uk":  "shop.co.uk",
		"Hello@Example.COM":     "example.com",
		" team@sub.example.org": "example.org",
		"no-at-sign":            "",
		"trailing@":             "",
		"ops@bücher.example":    "xn--bcher-kva.example",
	}
	for in, want := range tests {
		assert.Equal(t, want, SendingDomain(in), "SendingDomain(%q)", in)
	}
}

func TestEmailDomainKeepsSubdomain(t *testing.T) {
	assert.Equal(t, "mail.shop.co.uk", EmailDomain("news@mail.shop.co.uk"))
}

func TestRegistrableDomainFallsBack(t *testing.T) {
	assert.Equal(t, "localhost", RegistrableDomain("localhost"))
	assert.Equal(t, "", RegistrableDomain("  "))
}

func TestHostFromURL(t *testing.T) {
	assert.Equal(t, "www.example.com", HostFromURL("https://WWW.Example.com/path?q=1"))
	assert.Equal(t, "example.com", HostFromURL("example.com"))
	assert.Equal(t, "127.0.0.1", HostFromURL("http://127.0.0.1:8080"))
	assert.Equal(t, "", HostFromURL(""))
}
