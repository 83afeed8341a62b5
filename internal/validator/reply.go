package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/textutil"
)

var (
	errNoJSON        = errors.New("reply contains no JSON object")
	errMissingStatus = errors.New("reply has no valid validation_status")
	errMissingScore  = errors.New("reply has no credibility_score")
)

// classification mirrors the JSON object requested from the classifier.
// Pointer fields distinguish absent keys from zero values; unknown keys are ignored.
type classification struct {
	ValidationStatus    *string `json:"validation_status"`
	CredibilityScore    *score  `json:"credibility_score"`
	Reasoning           *string `json:"reasoning"`
	IsActionable        *bool   `json:"is_actionable"`
	WhyItMatters        *string `json:"why_it_matters"`
	NeedsCrossReference *bool   `json:"needs_cross_reference"`
	Summary             *string `json:"summary"`
}

// score accepts a JSON number or a numeric string and rounds to an int.
type score int

func (s *score) UnmarshalJSON(raw []byte) error {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("credibility_score %s: %w", raw, err)
	}
	*s = score(math.Round(value))
	return nil
}

// parseReply decodes a classifier reply in two steps: the whole reply as
// JSON, then the first balanced {...} object embedded in surrounding prose.
func parseReply(reply string) (classification, error) {
	reply = strings.TrimSpace(reply)

	var parsed classification
	if err := decodeStrict(reply, &parsed); err == nil {
		return parsed, parsed.check()
	}

	object, ok := firstObject(reply)
	if !ok {
		return classification{}, errNoJSON
	}
	parsed = classification{}
	if err := decodeStrict(object, &parsed); err != nil {
		return classification{}, fmt.Errorf("decode embedded object: %w", err)
	}
	return parsed, parsed.check()
}

func decodeStrict(text string, v *classification) error {
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

func (c classification) check() error {
	if c.ValidationStatus == nil {
		return errMissingStatus
	}
	if _, ok := domain.ParseValidationStatus(*c.ValidationStatus); !ok {
		return errMissingStatus
	}
	if c.CredibilityScore == nil {
		return errMissingScore
	}
	return nil
}

// firstObject returns the first balanced brace-delimited substring of text,
// skipping braces that appear inside JSON string literals.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// overlay builds a validated item from the source item and the recognised reply fields.
func overlay(item domain.Item, c classification) domain.ValidatedItem {
	status, _ := domain.ParseValidationStatus(*c.ValidationStatus)
	v := domain.Validation{
		Status:           status,
		CredibilityScore: domain.ClampScore(int(*c.CredibilityScore)),
		Path:             domain.PathClassifier,
	}
	if c.Reasoning != nil {
		v.Reasoning = strings.TrimSpace(*c.Reasoning)
	}
	if c.IsActionable != nil {
		v.IsActionable = *c.IsActionable
	}
	if c.WhyItMatters != nil && !isNullText(*c.WhyItMatters) {
		v.RelevanceNote = strings.TrimSpace(*c.WhyItMatters)
	}
	if c.NeedsCrossReference != nil {
		v.NeedsCrossReference = *c.NeedsCrossReference
	}
	if c.Summary != nil {
		v.Summary = textutil.Truncate(strings.TrimSpace(*c.Summary), summaryMaxChars)
	}
	if v.Summary == "" {
		v.Summary = ExtractSummary(item.Body)
	}
	return domain.ValidatedItem{Item: item, Validation: v}
}

func isNullText(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || bytes.EqualFold([]byte(s), []byte("null"))
}
