package domain

import (
	"strings"
	"time"
)

// Category is the topic bucket an item is filed under.
type Category string

const (
	CategoryFinance Category = "finance"
	CategoryTech    Category = "tech"
	CategoryGovt    Category = "govt"
)

// Categories lists every category in digest display order.
func Categories() []Category {
	return []Category{CategoryFinance, CategoryTech, CategoryGovt}
}

// ParseCategory normalises a raw category; unknown values fall back to tech.
func ParseCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryFinance:
		return CategoryFinance
	case CategoryGovt:
		return CategoryGovt
	default:
		return CategoryTech
	}
}

// SourceKind describes what kind of publisher produced an item.
type SourceKind string

const (
	SourceOfficial  SourceKind = "official"
	SourceNews      SourceKind = "news"
	SourceCommunity SourceKind = "community"
	SourceResearch  SourceKind = "research"
)

// ParseSourceKind normalises a raw source kind; unknown values fall back to news.
func ParseSourceKind(raw string) (SourceKind, bool) {
	switch kind := SourceKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case SourceOfficial, SourceNews, SourceCommunity, SourceResearch:
		return kind, true
	default:
		return SourceNews, false
	}
}

// ValidationStatus is the credibility verdict attached to an item.
type ValidationStatus string

const (
	StatusVerified    ValidationStatus = "verified"
	StatusUnverified  ValidationStatus = "unverified"
	StatusConflicting ValidationStatus = "conflicting"
)

// ParseValidationStatus reports whether raw names a known status.
func ParseValidationStatus(raw string) (ValidationStatus, bool) {
	switch status := ValidationStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case StatusVerified, StatusUnverified, StatusConflicting:
		return status, true
	default:
		return "", false
	}
}

// ValidationPath records which strategy produced a validation result.
type ValidationPath string

const (
	PathClassifier ValidationPath = "classifier"
	PathRules      ValidationPath = "rules"
)

// MaxScore is the upper bound of every credibility score.
const MaxScore = 100

// Item is one fetched news unit. It is read-only input to the pipeline.
type Item struct {
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	SourceDomain string     `json:"source_domain"`
	Category     Category   `json:"category"`
	SourceKind   SourceKind `json:"source_kind"`
	PublishedAt  time.Time  `json:"published_at"`
}

// Validation is the credibility judgement produced for an item.
type Validation struct {
	Status              ValidationStatus `json:"validation_status"`
	CredibilityScore    int              `json:"credibility_score"`
	Reasoning           string           `json:"reasoning"`
	IsActionable        bool             `json:"is_actionable"`
	RelevanceNote       string           `json:"relevance_note,omitempty"`
	NeedsCrossReference bool             `json:"needs_cross_reference"`
	Summary             string           `json:"summary"`
	CrossReferenceCount int              `json:"cross_reference_count"`
	Path                ValidationPath   `json:"validated_by"`
}

// ValidatedItem is an item enriched with its validation result.
type ValidatedItem struct {
	Item
	Validation
	UserFeedback string `json:"user_feedback,omitempty"`
}

// ClampScore bounds a credibility score to [0, MaxScore].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
