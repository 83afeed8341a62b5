// Package digest ranks actionable items and renders the Telegram digest document.
package digest

import (
	"sort"
	"strings"

	"NewsDigest/internal/domain"
)

const (
	// DefaultMaxItems caps how many items a digest carries.
	DefaultMaxItems = 15

	boostPerHit = 10
	maxBoost    = 30
)

// boostKeywords is the payment and rewards vocabulary that lifts finance items.
var boostKeywords = []string{
	"upi", "credit card", "cashback", "reward", "offer", "hdfc card",
	"icici card", "axis card", "amex", "sbi card", "rupay", "paytm",
	"amazon pay", "gpay", "phonepe", "lounge", "milestone", "emi offer",
	"zero fee", "annual fee", "welcome bonus", "card launch", "card benefit",
	"spend offer", "surcharge", "bonus points",
}

// Boost returns the 0-30 relevance bonus. Only finance items earn it.
func Boost(item domain.ValidatedItem) int {
	if item.Category != domain.CategoryFinance {
		return 0
	}
	text := strings.ToLower(item.Title + " " + item.Body)
	hits := 0
	for _, kw := range boostKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return min(hits*boostPerHit, maxBoost)
}

// Priority is the composite ranking score of an item.
func Priority(item domain.ValidatedItem) int {
	return item.CredibilityScore + Boost(item)
}

// Actionable reports whether an item survives the digest filter.
func Actionable(item domain.ValidatedItem) bool {
	return item.Status != domain.StatusConflicting && item.IsActionable
}

// Rank filters, orders, caps and groups items. The returned slice is in
// display order: finance, tech, govt, each in descending priority.
func Rank(items []domain.ValidatedItem, maxItems int) []domain.ValidatedItem {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	kept := make([]domain.ValidatedItem, 0, len(items))
	for _, item := range items {
		if Actionable(item) {
			kept = append(kept, item)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return Priority(kept[i]) > Priority(kept[j])
	})
	if len(kept) > maxItems {
		kept = kept[:maxItems]
	}

	return groupByCategory(kept)
}

func groupByCategory(items []domain.ValidatedItem) []domain.ValidatedItem {
	grouped := make([]domain.ValidatedItem, 0, len(items))
	for _, cat := range domain.Categories() {
		for _, item := range items {
			if displayCategory(item) == cat {
				grouped = append(grouped, item)
			}
		}
	}
	return grouped
}

// displayCategory maps unknown categories into tech so no item is lost when grouping.
func displayCategory(item domain.ValidatedItem) domain.Category {
	return domain.ParseCategory(string(item.Category))
}
