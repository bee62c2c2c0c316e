package utils

import (
	"regexp"
	"strings"
)

var subjectPrefixRe = regexp.MustCompile(`(?i)^(re|fwd|fw|aw|ant|sv|vs|r){0,1}(\s*:|\s*\[\d+\]\s*:)*\s*`)

// NormalizeSubject strips reply/forward prefixes so thread grouping and
// deduplication see the same subject for every message in a conversation
func NormalizeSubject(subject string) string {
	normalized := subjectPrefixRe.ReplaceAllString(subject, "")
	return strings.TrimSpace(normalized)
}

func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	// Handle "Name <email@domain.com>" forms
	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// CleanMessageID strips the angle brackets an RFC 5322 identifier carries on the wire
func CleanMessageID(messageID string) string {
	return strings.Trim(strings.TrimSpace(messageID), "<>")
}
