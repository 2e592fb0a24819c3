package browserprobe

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"campaignready/internal/support"
)

const DefaultThirdPartyThreshold = 15

// consentSelectors match the banners of common consent management platforms.
var consentSelectors = []string{
	"#onetrust-banner-sdk",
	"#onetrust-consent-sdk",
	"#CybotCookiebotDialog",
	"#usercentrics-root",
	"#didomi-host",
	"#qc-cmp2-container",
	"#truste-consent-track",
	".cc-window",
	".cky-consent-container",
	"[id*='cookie-banner']",
	"[class*='cookie-consent']",
	"[aria-label*='cookie' i]",
}

// HTMLFindings is what a static look at the rendered markup reveals.
type HTMLFindings struct {
	RenderBlockingScripts []string `json:"render_blocking_scripts"`
	ThirdPartyHosts       []string `json:"third_party_hosts"`
	ConsentOverlay        bool     `json:"consent_overlay"`
	ConsentSelector       string   `json:"consent_selector,omitempty"`
}

// AnalyzeHTML inspects page markup. pageURL decides which script hosts count
// as third party; scripts on the same registrable domain are first party.
func AnalyzeHTML(r io.Reader, pageURL string) (HTMLFindings, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return HTMLFindings{}, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)
	firstParty := ""
	if base != nil {
		firstParty = support.RegistrableDomain(base.Hostname())
	}

	findings := HTMLFindings{
		RenderBlockingScripts: []string{},
		ThirdPartyHosts:       []string{},
	}

	doc.Find("head script[src]").Each(func(_ int, s *goquery.Selection) {
		if isDeferred(s) {
			return
		}
		src, _ := s.Attr("src")
		findings.RenderBlockingScripts = append(findings.RenderBlockingScripts, resolve(base, src))
	})

	hosts := make(map[string]struct{})
	doc.Find("script[src], iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		host := support.HostFromURL(resolve(base, src))
		if host == "" || support.RegistrableDomain(host) == firstParty {
			return
		}
		hosts[host] = struct{}{}
	})
	for host := range hosts {
		findings.ThirdPartyHosts = append(findings.ThirdPartyHosts, host)
	}
	sort.Strings(findings.ThirdPartyHosts)

	for _, sel := range consentSelectors {
		if doc.Find(sel).Length() > 0 {
			findings.ConsentOverlay = true
			findings.ConsentSelector = sel
			break
		}
	}

	return findings, nil
}

// Blockers converts findings into the flags the website scorer reads.
func (f HTMLFindings) Blockers(thirdPartyThreshold int) (renderBlocking, consent, excessiveThirdParties bool) {
	if thirdPartyThreshold <= 0 {
		thirdPartyThreshold = DefaultThirdPartyThreshold
	}
	return len(f.RenderBlockingScripts) > 0, f.ConsentOverlay, len(f.ThirdPartyHosts) > thirdPartyThreshold
}

func isDeferred(s *goquery.Selection) bool {
	if _, ok := s.Attr("async"); ok {
		return true
	}
	if _, ok := s.Attr("defer"); ok {
		return true
	}
	typ, _ := s.Attr("type")
	return strings.EqualFold(strings.TrimSpace(typ), "module")
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
