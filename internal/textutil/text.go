// Package textutil holds small text helpers shared by fetchers and validators.
package textutil

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from an HTML fragment. Input without tags is
// returned unchanged apart from whitespace collapsing.
func PlainText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return CollapseSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CollapseSpace(fragment)
	}
	var parts []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return CollapseSpace(strings.Join(parts, " "))
}

// CollapseSpace replaces every whitespace run with a single space and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
