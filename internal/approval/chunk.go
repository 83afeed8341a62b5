package approval

import (
	"strings"
	"unicode/utf8"
)

// DefaultMessageLimit is the per-message byte budget of the outbound channel.
const DefaultMessageLimit = 3800

const paragraphSep = "\n\n"

// SplitMessage cuts text into chunks of at most limit bytes. Cuts happen
// after a paragraph separator; a paragraph larger than limit is split at the
// last rune boundary before the limit. Separators stay at the end of their
// paragraph, so concatenating the chunks restores the text exactly.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	paras := strings.Split(text, paragraphSep)
	var chunks []string
	cur := ""
	for i, para := range paras {
		unit := para
		if i < len(paras)-1 {
			unit += paragraphSep
		}
		if len(cur)+len(unit) <= limit {
			cur += unit
			continue
		}
		if cur != "" {
			chunks = append(chunks, cur)
			cur = ""
		}
		if len(unit) <= limit {
			cur = unit
			continue
		}
		pieces := hardSplit(unit, limit)
		chunks = append(chunks, pieces[:len(pieces)-1]...)
		cur = pieces[len(pieces)-1]
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	return chunks
}

func hardSplit(s string, limit int) []string {
	var pieces []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, size := utf8.DecodeRuneInString(s)
			cut = size
		}
		pieces = append(pieces, s[:cut])
		s = s[cut:]
	}
	return append(pieces, s)
}
