package domain

import "strings"

// EmailEvidence is the authentication posture of a sending domain as reported by
// the DNS/mail collaborator. Every field is optional; the accessors below supply
// the defaults the scorers rely on.
type EmailEvidence struct {
	Checks EmailChecks `json:"checks"`
}

type EmailChecks struct {
	SPF        *SPFCheck       `json:"spf,omitempty"`
	DKIM       *DKIMCheck      `json:"dkim,omitempty"`
	DMARC      *DMARCCheck     `json:"dmarc,omitempty"`
	MX         *MXCheck        `json:"mx,omitempty"`
	MTASTS     *MTASTSCheck    `json:"mta_sts,omitempty"`
	TLSRPT     *PresenceCheck  `json:"tlsrpt,omitempty"`
	BIMI       *PresenceCheck  `json:"bimi,omitempty"`
	Blacklists *BlacklistCheck `json:"blacklists,omitempty"`
}

type SPFCheck struct {
	Present        *bool  `json:"present,omitempty"`
	Result         string `json:"result,omitempty"`
	Alignment      string `json:"alignment,omitempty"`
	DNSLookupCount *int   `json:"dns_lookup_count,omitempty"`
	Domain         string `json:"domain,omitempty"`
	ClientIP       string `json:"client_ip,omitempty"`
}

type DKIMCheck struct {
	Present          *bool    `json:"present,omitempty"`
	Result           string   `json:"result,omitempty"`
	Alignment        string   `json:"alignment,omitempty"`
	SelectorsChecked []string `json:"selectors_checked,omitempty"`
	Domain           string   `json:"domain,omitempty"`
}

type DMARCCheck struct {
	Present       *bool  `json:"present,omitempty"`
	Policy        string `json:"policy,omitempty"`
	Pct           *int   `json:"pct,omitempty"`
	AlignmentMode string `json:"alignment_mode,omitempty"`
	Result        string `json:"result,omitempty"`
}

type MXCheck struct {
	TLS *TLSCheck `json:"tls,omitempty"`
}

type TLSCheck struct {
	Supported *bool `json:"supported,omitempty"`
}

type MTASTSCheck struct {
	Present    *bool  `json:"present,omitempty"`
	PolicyMode string `json:"policy_mode,omitempty"`
}

type PresenceCheck struct {
	Present *bool `json:"present,omitempty"`
}

type BlacklistCheck struct {
	Listed *bool          `json:"listed,omitempty"`
	Hits   []BlacklistHit `json:"hits,omitempty"`
}

type BlacklistHit struct {
	List     string `json:"list"`
	Evidence string `json:"evidence,omitempty"`
}

const (
	unknownValue = "unknown"

	PolicyNone       = "none"
	PolicyQuarantine = "quarantine"
	PolicyReject     = "reject"

	ResultPass      = "pass"
	ResultFail      = "fail"
	ResultSoftfail  = "softfail"
	ResultNeutral   = "neutral"
	ResultPermerror = "permerror"
	ResultNone      = "none"

	AlignmentAligned    = "aligned"
	AlignmentNotAligned = "not_aligned"
	AlignmentStrict     = "strict"
	MTASTSEnforce       = "enforce"
)

// Bool returns a pointer to v, for building optional evidence fields.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func isTrue(v *bool) bool { return v != nil && *v }

func orUnknown(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return unknownValue
	}
	return v
}

// HasAuthEvidence reports whether a DMARC or SPF finding was supplied at all.
func (e EmailEvidence) HasAuthEvidence() bool {
	return e.Checks.DMARC != nil || e.Checks.SPF != nil
}

func (e EmailEvidence) DMARCPresent() bool {
	return e.Checks.DMARC != nil && isTrue(e.Checks.DMARC.Present)
}

// DMARCPresence returns the explicit presence flag; known is false when the
// collaborator did not report on DMARC.
func (e EmailEvidence) DMARCPresence() (present bool, known bool) {
	if e.Checks.DMARC == nil || e.Checks.DMARC.Present == nil {
		return false, false
	}
	return *e.Checks.DMARC.Present, true
}

func (e EmailEvidence) DMARCPolicy() string {
	if e.Checks.DMARC == nil {
		return unknownValue
	}
	return orUnknown(e.Checks.DMARC.Policy)
}

// DMARCPolicyKnown returns the raw policy when one was reported.
func (e EmailEvidence) DMARCPolicyKnown() (string, bool) {
	if e.Checks.DMARC == nil || strings.TrimSpace(e.Checks.DMARC.Policy) == "" {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(e.Checks.DMARC.Policy)), true
}

func (e EmailEvidence) DMARCPct() int {
	if e.Checks.DMARC == nil || e.Checks.DMARC.Pct == nil {
		return 100
	}
	return *e.Checks.DMARC.Pct
}

func (e EmailEvidence) DMARCAlignmentMode() string {
	if e.Checks.DMARC == nil {
		return unknownValue
	}
	return orUnknown(e.Checks.DMARC.AlignmentMode)
}

func (e EmailEvidence) DKIMPresent() bool {
	return e.Checks.DKIM != nil && isTrue(e.Checks.DKIM.Present)
}

func (e EmailEvidence) DKIMResult() string {
	if e.Checks.DKIM == nil {
		return unknownValue
	}
	return orUnknown(e.Checks.DKIM.Result)
}

func (e EmailEvidence) DKIMAlignment() string {
	if e.Checks.DKIM == nil {
		return unknownValue
	}
	return orUnknown(e.Checks.DKIM.Alignment)
}

func (e EmailEvidence) DKIMSelectorCount() int {
	if e.Checks.DKIM == nil {
		return 0
	}
	return len(e.Checks.DKIM.SelectorsChecked)
}

func (e EmailEvidence) SPFPresent() bool {
	return e.Checks.SPF != nil && isTrue(e.Checks.SPF.Present)
}

func (e EmailEvidence) SPFResult() string {
	if e.Checks.SPF == nil {
		return unknownValue
	}
	return orUnknown(e.Checks.SPF.Result)
}

func (e EmailEvidence) SPFAlignment() string {
	if e.Checks.SPF == nil {
		return unknownValue
	}
	return orUnknown(e.Checks.SPF.Alignment)
}

func (e EmailEvidence) SPFLookups() int {
	if e.Checks.SPF == nil || e.Checks.SPF.DNSLookupCount == nil {
		return 0
	}
	return *e.Checks.SPF.DNSLookupCount
}

// MXTLSExplicitlyUnsupported is true only when the MX check reported no STARTTLS.
func (e EmailEvidence) MXTLSExplicitlyUnsupported() bool {
	mx := e.Checks.MX
	if mx == nil || mx.TLS == nil || mx.TLS.Supported == nil {
		return false
	}
	return !*mx.TLS.Supported
}

func (e EmailEvidence) MTASTSPresent() bool {
	return e.Checks.MTASTS != nil && isTrue(e.Checks.MTASTS.Present)
}

func (e EmailEvidence) MTASTSMode() string {
	if e.Checks.MTASTS == nil {
		return unknownValue
	}
	return orUnknown(e.Checks.MTASTS.PolicyMode)
}

func (e EmailEvidence) TLSRPTPresent() bool {
	return e.Checks.TLSRPT != nil && isTrue(e.Checks.TLSRPT.Present)
}

func (e EmailEvidence) BIMIPresent() bool {
	return e.Checks.BIMI != nil && isTrue(e.Checks.BIMI.Present)
}

func (e EmailEvidence) Blacklisted() bool {
	return e.Checks.Blacklists != nil && isTrue(e.Checks.Blacklists.Listed)
}

// IsSPFWeak reports a softfail or neutral SPF evaluation.
func IsSPFWeak(result string) bool {
	return result == ResultSoftfail || result == ResultNeutral
}

// IsSPFFailing reports a fail or permerror SPF evaluation.
func IsSPFFailing(result string) bool {
	return result == ResultFail || result == ResultPermerror
}
