package approval

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/textutil"
)

const helpText = "<b>News Digest: Commands</b>\n\n" +
	"🔄 <b>/refresh</b>: check for new updates right now\n" +
	"⭐ <b>/top</b>: re-send the top 5 most credible articles\n" +
	"📜 <b>/history</b>: browse the last 7 digests\n" +
	"📊 <b>/status</b>: last run stats &amp; pending digest\n\n" +
	"📬 <b>When you get a digest preview:</b>\n" +
	"  • Reply <b>YES</b> to receive the full digest\n" +
	"  • Reply <b>NO</b> to skip it\n\n" +
	"📖 <b>After receiving a digest:</b>\n" +
	"  • <b>details 1</b>: full content of item 1\n" +
	"  • <b>feedback 2 too generic</b>: submit feedback"

const deliveryFailedText = "⚠️ <b>Digest delivery failed partway.</b> Use /top or <b>details N</b> to read the items."

var runIcon = map[domain.RunStatus]string{
	domain.RunCompleted: "✅",
	domain.RunRunning:   "⏳",
	domain.RunFailed:    "❌",
}

var digestIcon = map[domain.DigestStatus]string{
	domain.DigestSent:     "✅",
	domain.DigestPending:  "📬",
	domain.DigestRejected: "🚫",
	domain.DigestSkipped:  "⏭",
}

func statusText(run domain.RunRecord, hasRun, pending bool, items, runs int) string {
	icon, last := "❓", "Never"
	if hasRun {
		last = string(run.Status)
		if i, ok := runIcon[run.Status]; ok {
			icon = i
		}
	}
	pendingText := "None"
	if pending {
		pendingText = "Yes, reply YES to receive"
	}

	var b strings.Builder
	b.WriteString("<b>📊 Agent Status</b>\n\n")
	fmt.Fprintf(&b, "%s <b>Last run:</b> %s\n", icon, last)
	fmt.Fprintf(&b, "   Fetched: %d articles\n", run.Stats.TotalFetched)
	fmt.Fprintf(&b, "   New (after dedup): %d\n", run.Stats.AfterDedup)
	fmt.Fprintf(&b, "   Verified: %d\n", verifiedCount(run.Stats))
	fmt.Fprintf(&b, "   Actionable: %d\n\n", run.Stats.Actionable)
	fmt.Fprintf(&b, "📬 <b>Pending digest:</b> %s\n", pendingText)
	fmt.Fprintf(&b, "🗄 <b>DB:</b> %d articles stored | %d total runs\n\n", items, runs)
	b.WriteString("<i>Send /refresh to check for new updates now</i>")
	return b.String()
}

func historyText(digests []domain.Digest, loc *time.Location) string {
	lines := []string{fmt.Sprintf("<b>📜 Digest History (last %d runs)</b>\n", historyLimit)}
	for i, d := range digests {
		icon, ok := digestIcon[d.Status]
		if !ok {
			icon = "❓"
		}
		lines = append(lines, fmt.Sprintf("%d. <b>%s</b>: %d items (%d verified) %s",
			i+1, stamp(d.CreatedAt, loc), len(d.Items), verifiedCount(d.Stats), icon))
	}
	lines = append(lines, "\n<i>Send /top to get the best articles</i>")
	return strings.Join(lines, "\n")
}

func topText(d domain.Digest, limit int, loc *time.Location) string {
	items := make([]domain.ValidatedItem, len(d.Items))
	copy(items, d.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CredibilityScore > items[j].CredibilityScore
	})
	if len(items) > limit {
		items = items[:limit]
	}

	blocks := []string{fmt.Sprintf("<b>⭐ Top %d Articles: %s</b>", len(items), stamp(d.CreatedAt, loc))}
	for i, item := range items {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. <b>%s</b>\n", i+1, html.EscapeString(item.Title))
		fmt.Fprintf(&b, "   %s · %d/100", item.Status, item.CredibilityScore)
		if s := strings.TrimSpace(item.Summary); s != "" {
			fmt.Fprintf(&b, "\n   📝 <i>%s</i>", html.EscapeString(textutil.Truncate(s, 180)))
		}
		if note := strings.TrimSpace(item.RelevanceNote); note != "" {
			fmt.Fprintf(&b, "\n   📌 %s", html.EscapeString(note))
		}
		if item.URL != "" {
			fmt.Fprintf(&b, "\n   🔗 <a href=\"%s\">Read</a>", html.EscapeString(item.URL))
		}
		blocks = append(blocks, b.String())
	}
	blocks = append(blocks, "<i>Send /history to browse past digests</i>")
	return strings.Join(blocks, "\n\n")
}

func verifiedCount(s domain.Stats) int {
	if s.VerifiedAfterXref > 0 {
		return s.VerifiedAfterXref
	}
	return s.Verified
}

func stamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "Latest"
	}
	return t.In(loc).Format("Jan 02, 03:04 PM MST")
}
