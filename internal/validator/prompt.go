package validator

import (
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/textutil"
)

const promptSnippetChars = 400

const promptTemplate = `Analyze this article for credibility, relevance, and generate a summary.

Title: {{title}}
Source domain: {{domain}}
Source type hint: {{kind}}
Content snippet: {{content}}

User profile: {{profile}}

Return ONLY valid JSON (no prose, no markdown, no code fences):
{
  "source_type": "official|news|community|research",
  "validation_status": "verified|unverified|conflicting",
  "credibility_score": <integer 0-100>,
  "reasoning": "<one concise sentence explaining credibility>",
  "is_actionable": <true|false>,
  "why_it_matters": "<one sentence tailored to this user's interests, or null>",
  "needs_cross_reference": <true|false>,
  "summary": "<2-3 sentence plain-English summary of the key facts in this article>"
}

Scoring guide:
- Official govt/bank/research (RBI, PIB, arxiv, huggingface, bank websites) -> 90-100, verified
- Established news (ET, Mint, TechCrunch, The Hindu) -> 70-85, unverified
- Community/aggregators -> 40-65, unverified
- Unverified rumour/tweet -> 10-35, unverified
Flag conflicting only if content directly contradicts a known fact.
Boost is_actionable=true for UPI offers, credit card cashback, card launches, reward program changes.`

// BuildPrompt renders the classification request for a single item.
func BuildPrompt(item domain.Item, profile string) string {
	kind := string(item.SourceKind)
	if kind == "" {
		kind = string(domain.SourceNews)
	}
	r := strings.NewReplacer(
		"{{title}}", item.Title,
		"{{domain}}", item.SourceDomain,
		"{{kind}}", kind,
		"{{content}}", textutil.Truncate(item.Body, promptSnippetChars),
		"{{profile}}", profile,
	)
	return r.Replace(promptTemplate)
}
