package report

import (
	"fmt"
	"strings"
	"time"

	"campaignready/internal/domain"
)

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r", ""))
}

// FormatMarkdown renders a report as a standalone markdown document.
func FormatMarkdown(r domain.Report) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	ready := "No"
	if r.ReadyToSend {
		ready = "Yes"
	}

	line("# Campaign Readiness Report")
	line("")
	line("- **Scan ID:** %s", clean(r.ScanID))
	line("- **Generated:** %s", r.GeneratedAt.UTC().Format(time.RFC3339))
	line("- **Verdict:** %s", strings.ToUpper(string(r.Verdict)))
	line("- **Confidence:** %s", r.Confidence)
	line("- **Ready to send:** %s", ready)
	line("")

	line("## Summary")
	line("%s", clean(r.Headline))
	line("")

	line("## Scores")
	line("- Email readiness: **%d/100** (%s)", r.Scores.Email.Score, r.Scores.Email.Status)
	line("- Website readiness: **%d/100** (%s)", r.Scores.Website.Score, r.Scores.Website.Status)
	line("- Campaign risk: **%s** (%d/100)", strings.ToUpper(string(r.Scores.Campaign.Level)), r.Scores.Campaign.Score)
	line("")

	line("## Why this verdict")
	if len(r.Why) == 0 {
		line("- No additional reasoning available.")
	}
	for _, w := range r.Why {
		line("- %s", clean(w))
	}
	line("")

	line("## Blockers")
	if len(r.Blockers) == 0 {
		line("- None")
	}
	for _, bl := range r.Blockers {
		line("- **%s** · %s _(id: %s)_", bl.Severity, clean(bl.Message), bl.ID)
	}
	line("")

	line("## Recommended actions")
	if len(r.TopActions) == 0 {
		line("- None")
		line("")
	}
	for i, a := range r.TopActions {
		line("### %d. %s", i+1, clean(a.Title))
		line("- **Impact:** %s · **Effort:** %s", a.Impact, a.Effort)
		line("- **Why:** %s", clean(a.Why))
		if len(a.Steps) > 0 {
			line("")
			line("Steps:")
			for _, s := range a.Steps {
				line("- %s", clean(s))
			}
		}
		line("")
	}

	return strings.TrimSuffix(b.String(), "\n")
}
