package digest

import (
	"fmt"
	"html"
	"strings"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/metrics"
)

const separator = "━━━━━━━━━━━━━━━━━━━━"

var categoryIcon = map[domain.Category]string{
	domain.CategoryFinance: "💳",
	domain.CategoryTech:    "🤖",
	domain.CategoryGovt:    "🏛",
}

var statusIcon = map[domain.ValidationStatus]string{
	domain.StatusVerified:    "✅",
	domain.StatusUnverified:  "⚠️",
	domain.StatusConflicting: "❌",
}

var statusLabel = map[domain.ValidationStatus]string{
	domain.StatusVerified:    "Verified",
	domain.StatusUnverified:  "Unverified",
	domain.StatusConflicting: "Conflicting",
}

// Options controls digest assembly.
type Options struct {
	MaxItems int
	Now      time.Time
	Location *time.Location
}

// Build ranks the validated items of a run and renders the digest. An empty
// ranked list produces a digest with no body and zero actionable items.
func Build(runID string, items []domain.ValidatedItem, stats domain.Stats, opts Options) domain.Digest {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	ranked := Rank(items, opts.MaxItems)
	stats.Actionable = len(ranked)
	metrics.RecordDigest(len(ranked))

	return domain.Digest{
		RunID:     runID,
		Items:     ranked,
		Body:      Render(ranked, opts.Now.In(opts.Location)),
		Stats:     stats,
		CreatedAt: opts.Now,
		UpdatedAt: opts.Now,
	}
}

// Render formats items, already in display order, as Telegram HTML.
func Render(items []domain.ValidatedItem, now time.Time) string {
	if len(items) == 0 {
		return ""
	}

	counts := CountStatuses(items)
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📊 Daily Digest: %s</b>\n", now.Format("Jan 02, 3:04 PM MST"))
	fmt.Fprintf(&b, "<i>Found %d updates (%d verified, %d unverified)</i>\n",
		len(items), counts[domain.StatusVerified], counts[domain.StatusUnverified])

	index := 1
	for _, cat := range domain.Categories() {
		section := itemsIn(items, cat)
		if len(section) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n%s <b>%s</b> (%d updates)\n", separator, categoryIcon[cat], strings.ToUpper(string(cat)), len(section))
		entries := make([]string, len(section))
		for i, item := range section {
			entries[i] = entry(index, item)
			index++
		}
		b.WriteString(strings.Join(entries, "\n\n"))
	}

	b.WriteString("\n\n" + separator + "\n")
	b.WriteString("<i>Reply <b>details &lt;number&gt;</b> for full article (e.g., details 1)</i>\n")
	b.WriteString("<i>Reply <b>feedback &lt;number&gt; &lt;text&gt;</b> to improve filtering</i>")
	return b.String()
}

func entry(index int, item domain.ValidatedItem) string {
	var b strings.Builder
	kind := kindLabel(item.SourceKind)

	fmt.Fprintf(&b, "%d. <b>%s</b>\n", index, escape(orDefault(item.Title, "Untitled")))
	fmt.Fprintf(&b, "   %s <i>%s</i> | %s", iconFor(item.Status), labelFor(item.Status), kind)
	if summary := strings.TrimSpace(item.Summary); summary != "" {
		fmt.Fprintf(&b, "\n   📝 %s", escape(summary))
	}
	if note := strings.TrimSpace(item.RelevanceNote); note != "" {
		fmt.Fprintf(&b, "\n   📌 <i>Why it matters</i>: %s", escape(note))
	}
	fmt.Fprintf(&b, "\n   🔗 %s | Credibility: %d/100", link(item.URL), item.CredibilityScore)
	return b.String()
}

// Preview is the short approval request sent before the full digest.
func Preview(items []domain.ValidatedItem) string {
	counts := CountStatuses(items)

	var cats []string
	for _, cat := range domain.Categories() {
		if n := len(itemsIn(items, cat)); n > 0 {
			cats = append(cats, fmt.Sprintf("%s %s (%d)", categoryIcon[cat], strings.ToUpper(string(cat)), n))
		}
	}

	var b strings.Builder
	b.WriteString("🔔 <b>News Digest Ready</b>\n\n")
	fmt.Fprintf(&b, "Found <b>%d actionable updates</b>:\n", len(items))
	fmt.Fprintf(&b, "  ✅ Verified: %d\n", counts[domain.StatusVerified])
	fmt.Fprintf(&b, "  ⚠️ Unverified: %d\n\n", counts[domain.StatusUnverified])
	fmt.Fprintf(&b, "Categories: %s\n\n", strings.Join(cats, ", "))
	b.WriteString("<b>Reply YES to receive the full digest.</b>")
	return b.String()
}

// Detail renders the full view of one digest item.
func Detail(index int, item domain.ValidatedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d. %s</b>\n\n", index, escape(orDefault(item.Title, "Untitled")))
	fmt.Fprintf(&b, "%s <i>%s</i> | %s | Credibility: %d/100\n",
		iconFor(item.Status), labelFor(item.Status), kindLabel(item.SourceKind), item.CredibilityScore)
	if item.SourceDomain != "" {
		fmt.Fprintf(&b, "Source: %s\n", escape(item.SourceDomain))
	}
	if item.CrossReferenceCount > 0 {
		fmt.Fprintf(&b, "Confirmed by %d other sources\n", item.CrossReferenceCount)
	}
	if item.Reasoning != "" {
		fmt.Fprintf(&b, "\n<i>%s</i>\n", escape(item.Reasoning))
	}
	body := strings.TrimSpace(item.Summary)
	if body == "" {
		body = strings.TrimSpace(item.Body)
	}
	if body != "" {
		fmt.Fprintf(&b, "\n%s\n", escape(body))
	}
	if item.RelevanceNote != "" {
		fmt.Fprintf(&b, "\n📌 <i>Why it matters</i>: %s\n", escape(item.RelevanceNote))
	}
	fmt.Fprintf(&b, "\n🔗 %s", link(item.URL))
	return b.String()
}

// CountStatuses tallies items per validation status.
func CountStatuses(items []domain.ValidatedItem) map[domain.ValidationStatus]int {
	counts := make(map[domain.ValidationStatus]int, 3)
	for _, item := range items {
		counts[item.Status]++
	}
	return counts
}

func itemsIn(items []domain.ValidatedItem, cat domain.Category) []domain.ValidatedItem {
	var out []domain.ValidatedItem
	for _, item := range items {
		if displayCategory(item) == cat {
			out = append(out, item)
		}
	}
	return out
}

func iconFor(status domain.ValidationStatus) string {
	if icon, ok := statusIcon[status]; ok {
		return icon
	}
	return statusIcon[domain.StatusUnverified]
}

func labelFor(status domain.ValidationStatus) string {
	if label, ok := statusLabel[status]; ok {
		return label
	}
	return statusLabel[domain.StatusUnverified]
}

func kindLabel(kind domain.SourceKind) string {
	k := string(kind)
	if k == "" {
		k = string(domain.SourceNews)
	}
	return strings.ToUpper(k[:1]) + k[1:]
}

func link(url string) string {
	if url == "" {
		return "No link"
	}
	return fmt.Sprintf(`<a href="%s">Source</a>`, html.EscapeString(url))
}

func escape(s string) string {
	return html.EscapeString(s)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
