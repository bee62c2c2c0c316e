package rules

import (
	"fmt"
	"strings"

	"github.com/mailsignal/mailsignal/internal/enum"
)

// Match is the outcome of a deterministic rule pass
type Match struct {
	Category   enum.Category
	Confidence float64
	Reason     string
}

type keywordRule struct {
	category   enum.Category
	confidence float64
	keywords   []string
}

// Provisional rules run at normalization time. They may use the auxiliary
// buckets and carry low confidence; the classification orchestrator
// always overwrites this tag before a message counts as classified.
var provisionalRules = []keywordRule{
	{enum.CategoryOutOfOffice, 0.8, []string{
		"out of office", "automatic reply", "auto-reply", "autoreply",
		"on vacation", "annual leave", "parental leave", "away from my desk",
	}},
	{enum.CategoryMeetingBooked, 0.7, []string{
		"meeting confirmed", "invitation accepted", "calendar invite",
		"appointment scheduled", "meeting booked",
	}},
	{enum.CategoryNewsletter, 0.7, []string{
		"newsletter", "weekly digest", "daily digest", "roundup",
		"view in browser", "unsubscribe from this list",
	}},
	{enum.CategoryPromotional, 0.6, []string{
		"% off", "discount", "limited time", "flash sale", "special offer",
		"coupon", "free shipping",
	}},
	{enum.CategoryBusiness, 0.6, []string{
		"invoice", "proposal", "contract", "purchase order", "quotation",
	}},
	{enum.CategorySupport, 0.5, []string{
		"support ticket", "ticket #", "case number", "support request",
	}},
}

// Final rules are the tightened fallback the orchestrator uses when every
// provider is disabled or failing. They only emit primary categories.
var finalRules = []keywordRule{
	{enum.CategoryOutOfOffice, 0.9, []string{
		"out of office", "automatic reply", "auto-reply", "autoreply",
		"on vacation", "annual leave", "parental leave", "currently away",
		"back in the office",
	}},
	{enum.CategoryMeetingBooked, 0.85, []string{
		"meeting confirmed", "invitation accepted", "calendar invite",
		"appointment scheduled", "meeting booked", "accepted your invitation",
		"calendly.com", "zoom.us/j/",
	}},
	{enum.CategoryNotInterested, 0.8, []string{
		"not interested", "no longer interested", "no thanks",
		"stop emailing", "remove me from", "please don't contact",
		"do not contact",
	}},
	{enum.CategorySpam, 0.75, []string{
		"click here to claim", "you have won", "lottery", "act now",
		"wire transfer", "congratulations you", "free money",
		"limited time offer", "100% free",
	}},
	{enum.CategoryInterested, 0.7, []string{
		"interested", "sounds good", "tell me more", "let's talk",
		"schedule a call", "send me the pricing", "book a demo",
		"happy to connect", "looking forward to",
	}},
}

// Provisional returns the first-pass heuristic category for a message.
// Total: unmatched input yields uncategorized at the confidence floor.
func Provisional(subject, body string) Match {
	if match, ok := scan(provisionalRules, subject, body); ok {
		return match
	}
	return Match{
		Category:   enum.CategoryUncategorized,
		Confidence: 0.5,
		Reason:     "no heuristic cue matched",
	}
}

// Final returns the deterministic fallback classification. Total, and
// only ever emits one of the five primary categories.
func Final(subject, body string) Match {
	if match, ok := scan(finalRules, subject, body); ok {
		match.Reason = "fallback: " + match.Reason
		return match
	}
	return Match{
		Category:   enum.CategoryNotInterested,
		Confidence: 0.6,
		Reason:     "fallback: no rule matched, defaulting",
	}
}

func scan(ruleSet []keywordRule, subject, body string) (Match, bool) {
	haystack := strings.ToLower(subject + "\n" + body)

	for _, rule := range ruleSet {
		for _, keyword := range rule.keywords {
			if strings.Contains(haystack, keyword) {
				return Match{
					Category:   rule.category,
					Confidence: rule.confidence,
					Reason:     fmt.Sprintf("matched %s keyword: %q", rule.category, keyword),
				}, true
			}
		}
	}

	return Match{}, false
}

// RemapTable rewrites provider categories outside the primary set onto a
// primary value. The business/support/inquiry entries deliberately land
// on interested; the table is injectable so deployments can change that
// policy without touching the orchestrator.
type RemapTable map[string]enum.Category

func DefaultRemapTable() RemapTable {
	return RemapTable{
		"promotional": enum.CategorySpam,
		"newsletter":  enum.CategorySpam,
		"marketing":   enum.CategorySpam,
		"personal":    enum.CategoryInterested,
		"business":    enum.CategoryInterested,
		"support":     enum.CategoryInterested,
		"inquiry":     enum.CategoryInterested,
	}
}

// Remap resolves a raw provider category string to a primary category.
// The bool result is false when neither normalization nor the table
// produce a primary value.
func (t RemapTable) Remap(raw string) (enum.Category, bool) {
	normalized := enum.NormalizeCategory(raw)
	if normalized.IsPrimary() {
		return normalized, true
	}

	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if mapped, ok := t[key]; ok && mapped.IsPrimary() {
		return mapped, true
	}
	if mapped, ok := t[normalized.String()]; ok && mapped.IsPrimary() {
		return mapped, true
	}

	return enum.CategoryUncategorized, false
}
