package classifier

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsignal/mailsignal/dto"
	apperrors "github.com/mailsignal/mailsignal/internal/errors"
)

func TestParseProviderResponse_PlainJSON(t *testing.T) {
	response, err := parseProviderResponse(`{"category":"interested","confidence":0.9,"reasoning":"asks for pricing"}`)

	require.NoError(t, err)
	assert.Equal(t, "interested", response.Category)
	assert.Equal(t, 0.9, response.Confidence)
}

func TestParseProviderResponse_MarkdownFence(t *testing.T) {
	raw := "```json\n{\"category\":\"spam\",\"confidence\":0.7}\n```"

	response, err := parseProviderResponse(raw)

	require.NoError(t, err)
	assert.Equal(t, "spam", response.Category)
}

func TestParseProviderResponse_StripsThinkBlocks(t *testing.T) {
	raw := "<think>the sender clearly {wants} a meeting</think>\n" +
		`{"category":"meeting_booked","confidence":0.8}`

	response, err := parseProviderResponse(raw)

	require.NoError(t, err)
	assert.Equal(t, "meeting_booked", response.Category)
}

func TestParseProviderResponse_Unparseable(t *testing.T) {
	for _, raw := range []string{
		"",
		"I cannot classify this email.",
		"{not valid json}",
		`{"confidence":0.5}`,
	} {
		_, err := parseProviderResponse(raw)
		assert.True(t, errors.Is(err, apperrors.ErrProviderUnparseable), "input %q", raw)
	}
}

func TestBuildUserPrompt_TruncatesBody(t *testing.T) {
	request := dto.ClassificationRequest{
		FromName:    "Jamie",
		FromAddress: "jamie@example.com",
		Subject:     "hello",
		BodyText:    strings.Repeat("x", classifyBodyLimit+500),
	}

	prompt := buildUserPrompt(request)

	assert.Contains(t, prompt, "From: Jamie <jamie@example.com>")
	assert.Contains(t, prompt, "Subject: hello")
	assert.LessOrEqual(t, len(prompt), classifyBodyLimit+100)
}
