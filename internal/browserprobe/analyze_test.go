package browserprobe

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignready/internal/domain"
)

const landingPage = `<!doctype html>
<html>
<head>
  <script src="/static/app.js"></script>
  <script src="https://cdn.tagmanager.example/gtm.js" async></script>
  <script src="https://widgets.chat.example/loader.js" defer></script>
  <script type="module" src="/static/module.js"></script>
  <script src="https://assets.shop.example/vendor.js"></script>
</head>
<body>
  <div id="onetrust-banner-sdk">We use cookies</div>
  <iframe src="https://www.video.example/embed/1"></iframe>
  <script src="https://pixel.ads.example/p.js"></script>
</body>
</html>`

func TestAnalyzeHTML(t *testing.T) {
	findings, err := AnalyzeHTML(strings.NewReader(landingPage), "https://www.shop.example/landing")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.shop.example/static/app.js",
		"https://assets.shop.example/vendor.js",
	}, findings.RenderBlockingScripts)

	assert.Equal(t, []string{
		"cdn.tagmanager.example",
		"pixel.ads.example",
		"widgets.chat.example",
		"www.video.example",
	}, findings.ThirdPartyHosts)

	assert.True(t, findings.ConsentOverlay)
	assert.Equal(t, "#onetrust-banner-sdk", findings.ConsentSelector)
}

func TestAnalyzeHTMLCleanPage(t *testing.T) {
	page := `<html><head><script src="/a.js" defer></script></head><body><p>hi</p></body></html>`

	findings, err := AnalyzeHTML(strings.NewReader(page), "https://example.com/")
	require.NoError(t, err)

	assert.Empty(t, findings.RenderBlockingScripts)
	assert.Empty(t, findings.ThirdPartyHosts)
	assert.False(t, findings.ConsentOverlay)

	rb, consent, third := findings.Blockers(0)
	assert.False(t, rb)
	assert.False(t, consent)
	assert.False(t, third)
}

func TestBlockersThirdPartyThreshold(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, `<script src="https://t%d.tracker.example/x.js"></script>`, i)
	}
	b.WriteString("</body></html>")

	findings, err := AnalyzeHTML(strings.NewReader(b.String()), "https://example.com/")
	require.NoError(t, err)
	require.Len(t, findings.ThirdPartyHosts, 4)

	_, _, over := findings.Blockers(3)
	assert.True(t, over)
	_, _, over = findings.Blockers(4)
	assert.False(t, over)
}

func TestMergeFillsOnlyMissingVitals(t *testing.T) {
	ttfb := 120.0
	agg := domain.WebsiteAggregates{
		Mobile:   domain.DeviceVitals{P95: domain.Vitals{TTFBMs: &ttfb}},
		Blockers: domain.BlockerFlags{ExcessiveThirdParties: true},
	}
	lcp, cls, browserTTFB := 2800.0, 0.05, 300.0

	Merge(&agg, Result{
		Vitals:   domain.Vitals{LCPMs: &lcp, CLS: &cls, TTFBMs: &browserTTFB},
		Blockers: domain.BlockerFlags{RenderBlockingJS: true},
	})

	require.NotNil(t, agg.Mobile.P95.LCPMs)
	assert.Equal(t, 2800.0, *agg.Mobile.P95.LCPMs)
	assert.Equal(t, 120.0, *agg.Mobile.P95.TTFBMs)
	assert.Equal(t, 300.0, *agg.Desktop.P95.TTFBMs)
	assert.Nil(t, agg.Mobile.P95.INPMs)
	assert.True(t, agg.Blockers.RenderBlockingJS)
	assert.True(t, agg.Blockers.ExcessiveThirdParties)
	assert.False(t, agg.Blockers.ConsentBlocksInteraction)

	lcp = 9999
	assert.Equal(t, 2800.0, *agg.Mobile.P95.LCPMs)
}

func TestMergeNilAggregates(t *testing.T) {
	assert.NotPanics(t, func() { Merge(nil, Result{}) })
}

func TestMergeMirrorsVitalsOntoBothDevices(t *testing.T) {
	var agg domain.WebsiteAggregates
	lcp, cls, inp := 2100.0, 0.12, 180.0

	Merge(&agg, Result{Vitals: domain.Vitals{LCPMs: &lcp, CLS: &cls, INPMs: &inp}})

	assert.Equal(t, agg.Mobile, agg.Desktop)
	require.NotNil(t, agg.Desktop.P95.LCPMs)
	assert.NotSame(t, agg.Mobile.P95.LCPMs, agg.Desktop.P95.LCPMs)

	*agg.Mobile.P95.LCPMs = 1
	assert.Equal(t, 2100.0, *agg.Desktop.P95.LCPMs)
}
