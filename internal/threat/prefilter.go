package threat

import (
	"regexp"
	"sort"
)

// These patterns are a cheap, deterministic first pass before the AI
// call. The AI call is always made; a signature match decides the
// verdict (through the fallback in classifier.go) only when the AI's
// confidence falls short of the configured threshold or the AI call
// fails after retries.
var (
	injectionPatterns = compileAll(
		`ignore\s+(?:all\s+)?(previous|all|above)\s+(instructions?|prompts?|rules?)`,
		`disregard\s+(your|the|all)\s+(instructions?|training|rules?)`,
		`forget\s+(everything|your|all)`,
		`you\s+are\s+now\s+(?:a|an|the)?\s*(?:new|different|DAN)`,
		`act\s+as\s+(?:if\s+you\s+(?:are|were)|a|an)`,
		`pretend\s+(?:you\s+are|to\s+be)`,
		`override\s+(?:your|all|the)`,
		`system:`,
	)

	jailbreakPatterns = compileAll(
		`\bDAN\b(?:\s*mode)?`,
		`\bAIM\b`,
		`developer\s+mode`,
		`bypass\s+(?:content|safety|ethical)\s+(?:filters?|guidelines?|restrictions?)`,
		`enable\s+(?:unrestricted|uncensored|unfiltered)\s+mode`,
		`remove\s+(?:all\s+)?(?:restrictions?|limitations?|filters?)`,
		`no\s+(?:ethical|moral|safety)\s+(?:guidelines?|constraints?)`,
	)

	toxicPatterns = compileAll(
		`\b(?:kill|murder|harm|attack|destroy)\s+(?:you|them|everyone|people)\b`,
		`\b(?:hate|despise)\s+(?:all|every)\s+(?:\w+\s+)?(?:people|humans?)\b`,
		`how\s+to\s+(?:hack|steal|fraud|scam)`,
		`instructions?\s+(?:for|to|on)\s+(?:make|build)\s+(?:a\s+)?(?:bomb|weapon|explosive)`,
	)

	piiPatterns = map[string]*regexp.Regexp{
		"ssn":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		"credit_card": regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
		"email":       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		"phone":       regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`),
	}
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// preVerdict is the pre-filter's finding: at most one suspected category,
// chosen by the precedence order injection > jailbreak > pii > toxic
// (the order the original signature bank checks them in).
type preVerdict struct {
	suspected  bool
	kind       string // record.ThreatKind string value, or "" if nothing matched
	indicators []string
}

func prefilter(text string) preVerdict {
	if m := firstMatch(injectionPatterns, text); m != "" {
		return preVerdict{suspected: true, kind: "prompt_injection", indicators: []string{m}}
	}
	if m := firstMatch(jailbreakPatterns, text); m != "" {
		return preVerdict{suspected: true, kind: "jailbreak", indicators: []string{m}}
	}
	if ind := piiIndicators(text); len(ind) > 0 {
		return preVerdict{suspected: true, kind: "pii_leak", indicators: ind}
	}
	if m := firstMatch(toxicPatterns, text); m != "" {
		return preVerdict{suspected: true, kind: "toxic_content", indicators: []string{m}}
	}
	return preVerdict{}
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

func piiIndicators(text string) []string {
	var found []string
	for name, p := range piiPatterns {
		if p.MatchString(text) {
			found = append(found, name)
		}
	}
	sort.Strings(found)
	return found
}
