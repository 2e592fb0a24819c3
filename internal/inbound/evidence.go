package inbound

import (
	"campaignready/internal/domain"
	"campaignready/internal/support"
)

// ToEmailEvidence turns observed authentication results into email evidence for
// the scan. Methods the receiving MTA did not report stay nil so the patch
// never overwrites DNS findings with guesses.
func ToEmailEvidence(res AuthResults, sendingDomain string) domain.EmailEvidence {
	var ev domain.EmailEvidence

	if res.DKIM != nil {
		dkim := &domain.DKIMCheck{
			Present:   domain.Bool(res.DKIM.Result != domain.ResultNone),
			Result:    res.DKIM.Result,
			Domain:    res.DKIM.Domain,
			Alignment: alignment(res.DKIM.Domain, sendingDomain),
		}
		if res.DKIM.Selector != "" {
			dkim.SelectorsChecked = []string{res.DKIM.Selector}
		}
		ev.Checks.DKIM = dkim
	}

	if res.SPF != nil {
		ev.Checks.SPF = &domain.SPFCheck{
			Present:   domain.Bool(res.SPF.Result != domain.ResultNone),
			Result:    res.SPF.Result,
			Domain:    res.SPF.MailFrom,
			ClientIP:  res.SPF.ClientIP,
			Alignment: alignment(res.SPF.MailFrom, sendingDomain),
		}
	}

	if res.DMARC != nil {
		evaluated := res.DMARC.Result == domain.ResultPass || res.DMARC.Result == domain.ResultFail
		ev.Checks.DMARC = &domain.DMARCCheck{
			Present: domain.Bool(evaluated || res.DMARC.Policy != ""),
			Result:  res.DMARC.Result,
			Policy:  res.DMARC.Policy,
		}
	}

	return ev
}

// alignment compares organizational domains (relaxed mode). Empty when either
// side is unknown.
func alignment(authDomain, sendingDomain string) string {
	if authDomain == "" || sendingDomain == "" {
		return ""
	}
	if support.RegistrableDomain(authDomain) == support.RegistrableDomain(sendingDomain) {
		return domain.AlignmentAligned
	}
	return domain.AlignmentNotAligned
}
