package classifier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/dto"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
)

// classifyBodyLimit bounds the body excerpt sent to providers
const classifyBodyLimit = 2000

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

const systemPrompt = `You classify sales outreach replies. Respond with a single JSON object:
{"category": "...", "confidence": 0.0-1.0, "reasoning": "..."}
The category must be exactly one of: interested, meeting_booked, not_interested, spam, out_of_office.
Do not wrap the JSON in markdown fences or add any other text.`

func buildUserPrompt(request dto.ClassificationRequest) string {
	return fmt.Sprintf("From: %s <%s>\nSubject: %s\n\n%s",
		request.FromName, request.FromAddress, request.Subject, truncateRunes(request.BodyText, classifyBodyLimit))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// parseProviderResponse extracts the JSON verdict from a raw completion.
// Reasoning-trace markup and markdown fences around the object are
// tolerated; anything without a parseable object is unparseable.
func parseProviderResponse(raw string) (*dto.ProviderResponse, error) {
	cleaned := thinkBlockRe.ReplaceAllString(raw, "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, errors.Wrapf(apperrors.ErrProviderUnparseable, "no JSON object in completion: %.120s", cleaned)
	}

	var response dto.ProviderResponse
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &response); err != nil {
		return nil, errors.Wrap(apperrors.ErrProviderUnparseable, err.Error())
	}
	if response.Category == "" {
		return nil, errors.Wrap(apperrors.ErrProviderUnparseable, "completion carries no category")
	}

	return &response, nil
}
