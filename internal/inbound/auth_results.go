package inbound

import (
	"regexp"
	"strings"

	"campaignready/internal/domain"
)

// AuthResults holds what the receiving MTA recorded in Authentication-Results.
// A nil method means the header never mentioned it.
type AuthResults struct {
	DKIM  *DKIMResult  `json:"dkim,omitempty"`
	SPF   *SPFResult   `json:"spf,omitempty"`
	DMARC *DMARCResult `json:"dmarc,omitempty"`
}

type DKIMResult struct {
	Result   string `json:"result"`
	Domain   string `json:"domain,omitempty"`
	Selector string `json:"selector,omitempty"`
}

type SPFResult struct {
	Result   string `json:"result"`
	ClientIP string `json:"client_ip,omitempty"`
	MailFrom string `json:"mail_from,omitempty"`
}

type DMARCResult struct {
	Result string `json:"result"`
	Policy string `json:"policy,omitempty"`
}

func (r AuthResults) Empty() bool {
	return r.DKIM == nil && r.SPF == nil && r.DMARC == nil
}

var (
	dkimResultRe  = regexp.MustCompile(`(?i)\bdkim=([a-z]+)`)
	spfResultRe   = regexp.MustCompile(`(?i)\bspf=([a-z]+)`)
	dmarcResultRe = regexp.MustCompile(`(?i)\bdmarc=([a-z]+)`)

	headerDomainRe   = regexp.MustCompile(`(?i)\bheader\.d=([a-z0-9.-]+)`)
	headerSelectorRe = regexp.MustCompile(`(?i)\bheader\.s=([a-z0-9._-]+)`)
	clientIPRe       = regexp.MustCompile(`(?i)\bclient-ip=([0-9a-f.:]+)`)
	mailFromRe       = regexp.MustCompile(`(?i)\bsmtp\.mailfrom=(?:[^@\s;]*@)?([a-z0-9.-]+)`)

	policyExplicitRe = regexp.MustCompile(`(?i)\bpolicy\.p=(none|quarantine|reject)\b`)
	policyShortRe    = regexp.MustCompile(`(?i)\bp=([a-z0-9_-]+)`)
)

// ParseAuthenticationResults extracts DKIM, SPF and DMARC outcomes from one or
// more Authentication-Results values. An empty header yields an empty result.
func ParseAuthenticationResults(header string) AuthResults {
	var out AuthResults
	header = strings.TrimSpace(header)
	if header == "" {
		return out
	}

	if result, ok := pickResult(dkimResultRe, header); ok {
		out.DKIM = &DKIMResult{
			Result:   result,
			Domain:   strings.ToLower(firstGroup(headerDomainRe, header)),
			Selector: firstGroup(headerSelectorRe, header),
		}
	}

	if result, ok := pickResult(spfResultRe, header); ok {
		out.SPF = &SPFResult{
			Result:   result,
			ClientIP: firstGroup(clientIPRe, header),
			MailFrom: strings.ToLower(firstGroup(mailFromRe, header)),
		}
	}

	if result, ok := pickResult(dmarcResultRe, header); ok {
		out.DMARC = &DMARCResult{
			Result: result,
			Policy: dmarcPolicy(header),
		}
	}

	return out
}

// pickResult normalizes the method outcome; anything unrecognized becomes "none".
func pickResult(re *regexp.Regexp, header string) (string, bool) {
	m := re.FindStringSubmatch(header)
	if m == nil {
		return "", false
	}
	switch v := strings.ToLower(m[1]); v {
	case domain.ResultPass, domain.ResultFail, domain.ResultSoftfail, domain.ResultNeutral, domain.ResultPermerror:
		return v, true
	default:
		return domain.ResultNone, true
	}
}

func dmarcPolicy(header string) string {
	if v := firstGroup(policyExplicitRe, header); v != "" {
		return strings.ToLower(v)
	}
	return strings.ToLower(firstGroup(policyShortRe, header))
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}
