package inbound

import (
	"net/mail"
	"net/textproto"
	"regexp"
	"strings"
)

const verifyLocalPrefix = "verify+"

// recipientHeaders are searched in order for a verify+<id> address.
var recipientHeaders = []string{"Delivered-To", "To", "X-Original-To", "Envelope-To", "Received"}

// VerifyAddress is the address a sender mails to prove their setup for a scan.
func VerifyAddress(scanID, inboundDomain string) string {
	return verifyLocalPrefix + strings.ToLower(scanID) + "@" + strings.ToLower(inboundDomain)
}

// ExtractScanIDFromRecipient returns the scan id of a verify+<id>@<domain>
// address. Display names and angle brackets are accepted.
func ExtractScanIDFromRecipient(recipient, inboundDomain string) (string, bool) {
	addr := strings.TrimSpace(recipient)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}
	addr = strings.ToLower(strings.Trim(addr, "<> "))

	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "", false
	}
	local, host := addr[:at], addr[at+1:]
	if host != strings.ToLower(strings.TrimSpace(inboundDomain)) {
		return "", false
	}
	if !strings.HasPrefix(local, verifyLocalPrefix) {
		return "", false
	}

	id := strings.TrimPrefix(local, verifyLocalPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}

// ExtractScanToken searches the delivery headers of a message for the scan id.
func ExtractScanToken(header mail.Header, inboundDomain string) (string, bool) {
	inboundDomain = strings.TrimSpace(inboundDomain)
	if inboundDomain == "" {
		return "", false
	}
	re := regexp.MustCompile(`(?i)verify\+([a-z0-9._-]+)@` + regexp.QuoteMeta(inboundDomain) + `(?:[^a-z0-9.-]|$)`)

	for _, key := range recipientHeaders {
		for _, value := range header[textproto.CanonicalMIMEHeaderKey(key)] {
			if m := re.FindStringSubmatch(value); m != nil {
				return strings.ToLower(m[1]), true
			}
		}
	}
	return "", false
}
