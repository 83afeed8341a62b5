package validator

import (
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/textutil"
)

const (
	officialScore  = 92
	newsScore      = 72
	communityScore = 45
	unknownScore   = 55

	summaryMaxSentences = 3
	summaryMinSentence  = 30
	summaryMinBody      = 50
	summaryMaxChars     = 400

	rewardsNote = "Relevant to your UPI/credit card rewards, check if actionable."
)

var officialDomains = []string{
	"rbi.org.in", "pib.gov.in", "arxiv.org", "huggingface.co",
	"incometax.gov.in", "hdfcbank.com", "sbi.co.in", "icicibank.com",
	"axisbank.com", "indiabudget.gov.in", "telangana.gov.in", "github.com",
}

var newsDomains = []string{
	"economictimes.com", "moneycontrol.com", "livemint.com", "thehindu.com",
	"ndtv.com", "techcrunch.com", "venturebeat.com", "indianexpress.com",
	"bankbazaar.com", "cardinsider.com", "paisabazaar.com",
}

var communityDomains = []string{
	"news.ycombinator.com", "reddit.com", "twitter.com", "x.com",
}

// RewardKeywords is the payment/rewards vocabulary that marks a finance item as high value.
var RewardKeywords = []string{
	"upi", "credit card", "cashback", "reward", "offer", "discount", "hdfc card",
	"icici card", "axis card", "amex", "sbi card", "rupay", "paytm", "amazon pay",
	"card launch", "card benefit", "milestone benefit", "lounge access", "emi offer",
	"zero fee", "surcharge waiver", "bonus points", "spend-based", "welcome bonus",
	"annual fee waiver", "gpay", "phonepe", "bhim", "credit limit",
}

// Fallback validates an item with the deterministic domain-tier rules.
func Fallback(item domain.Item) domain.ValidatedItem {
	host := strings.ToLower(strings.TrimSpace(item.SourceDomain))
	summary := ExtractSummary(item.Body)

	note := ""
	if item.Category == domain.CategoryFinance && mentionsAny(item, RewardKeywords) {
		note = rewardsNote
	}

	v := domain.Validation{
		Status:              domain.StatusUnverified,
		Summary:             summary,
		NeedsCrossReference: true,
		IsActionable:        true,
		Path:                domain.PathRules,
	}

	switch {
	case matchesDomain(host, officialDomains):
		v.Status = domain.StatusVerified
		v.CredibilityScore = officialScore
		v.Reasoning = "Official source: " + host
		v.RelevanceNote = orDefault(note, "Actionable update from official body.")
		v.NeedsCrossReference = false
	case matchesDomain(host, newsDomains):
		v.CredibilityScore = newsScore
		v.Reasoning = "Established news outlet: " + host
		v.RelevanceNote = orDefault(note, "Stay informed; verify before acting.")
	case matchesDomain(host, communityDomains):
		v.CredibilityScore = communityScore
		v.Reasoning = "Community source: " + host
		v.IsActionable = false
	default:
		v.CredibilityScore = unknownScore
		v.Reasoning = "Unknown/aggregator source: " + host
		v.RelevanceNote = orDefault(note, "Verify from primary sources.")
	}

	return domain.ValidatedItem{Item: item, Validation: v}
}

// ExtractSummary returns the first few meaningful sentences of body as plain text.
func ExtractSummary(body string) string {
	text := textutil.PlainText(body)
	if len(text) < summaryMinBody {
		return ""
	}

	good := make([]string, 0, summaryMaxSentences)
	for _, sentence := range splitSentences(text) {
		if len(sentence) <= summaryMinSentence {
			continue
		}
		good = append(good, sentence)
		if len(good) == summaryMaxSentences {
			break
		}
	}
	return textutil.Truncate(strings.Join(good, " "), summaryMaxChars)
}

// splitSentences cuts text after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// KeywordHits counts how many distinct keywords occur in the item's title or body.
func KeywordHits(item domain.Item, keywords []string) int {
	text := strings.ToLower(item.Title + " " + item.Body)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}

func mentionsAny(item domain.Item, keywords []string) bool {
	return KeywordHits(item, keywords) > 0
}

func matchesDomain(host string, list []string) bool {
	host = strings.TrimPrefix(host, "www.")
	for _, d := range list {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
