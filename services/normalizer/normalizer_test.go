package normalizer

import (
	"testing"
	"time"

	go_imap "github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/enum"
	"github.com/mailsignal/mailsignal/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func imapAddress(name, mailbox, host string) *go_imap.Address {
	return &go_imap.Address{
		PersonalName: name,
		MailboxName:  mailbox,
		HostName:     host,
	}
}

func testRawMessage() *interfaces.RawMessage {
	return &interfaces.RawMessage{
		AccountID: "acct1",
		Folder:    "INBOX",
		UID:       42,
		SeqNum:    7,
		Flags:     []string{"\\Seen"},
		Envelope: &go_imap.Envelope{
			Date:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Subject:   "Re: Pricing question",
			MessageId: "<abc123@mail.example.com>",
			InReplyTo: "<root7@mail.example.com>",
			From:      []*go_imap.Address{imapAddress("Jamie Fox", "jamie", "Example.COM")},
			To:        []*go_imap.Address{imapAddress("", "sales", "mailsignal.io")},
		},
	}
}

func TestNormalize_Envelope(t *testing.T) {
	s := NewNormalizerService(getLogger())

	email := s.Normalize(testRawMessage(), "acct1")

	assert.Equal(t, "acct1", email.AccountID)
	assert.Equal(t, "INBOX", email.Folder)
	assert.Equal(t, uint32(42), email.ImapUID)
	assert.Equal(t, "Re: Pricing question", email.Subject)
	assert.Equal(t, "Pricing question", email.CleanSubject)
	assert.Equal(t, "abc123@mail.example.com", email.MessageID)
	assert.Equal(t, "Jamie Fox", email.From.Name)
	assert.Equal(t, "jamie@example.com", email.From.Address)
	require.Len(t, email.To, 1)
	assert.Equal(t, "sales@mailsignal.io", email.To[0].Address)
	assert.True(t, email.IsRead)
	assert.False(t, email.IsStarred)
}

func TestNormalize_DeterministicID(t *testing.T) {
	s := NewNormalizerService(getLogger())

	first := s.Normalize(testRawMessage(), "acct1")
	second := s.Normalize(testRawMessage(), "acct1")

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, second.ID)
}

func TestNormalize_IDChangesWithDate(t *testing.T) {
	s := NewNormalizerService(getLogger())

	raw := testRawMessage()
	first := s.Normalize(raw, "acct1")

	raw.Envelope.Date = raw.Envelope.Date.Add(time.Hour)
	second := s.Normalize(raw, "acct1")

	assert.NotEqual(t, first.ID, second.ID)
}

func TestNormalize_ThreadIDFromInReplyTo(t *testing.T) {
	s := NewNormalizerService(getLogger())

	email := s.Normalize(testRawMessage(), "acct1")

	assert.Equal(t, "root7@mail.example.com", email.ThreadID)
	assert.Equal(t, "root7@mail.example.com", email.InReplyTo)
}

func TestNormalize_ThreadIDFallsBackToSubjectHash(t *testing.T) {
	s := NewNormalizerService(getLogger())

	// Original and reply share no reply headers but the same cleaned
	// subject, so they must land in the same thread
	original := testRawMessage()
	original.Envelope.InReplyTo = ""
	original.Envelope.Subject = "Pricing question"
	original.Envelope.MessageId = "<root7@mail.example.com>"

	reply := testRawMessage()
	reply.Envelope.InReplyTo = ""
	reply.Envelope.Date = reply.Envelope.Date.Add(time.Hour)

	first := s.Normalize(original, "acct1")
	second := s.Normalize(reply, "acct1")

	assert.Regexp(t, "^thread_[0-9a-f]{24}$", first.ThreadID)
	assert.Equal(t, first.ThreadID, second.ThreadID)
}

func TestNormalize_ThreadIDFallsBackToMessageID(t *testing.T) {
	s := NewNormalizerService(getLogger())

	raw := testRawMessage()
	raw.Envelope.InReplyTo = ""
	raw.Envelope.Subject = ""
	email := s.Normalize(raw, "acct1")

	assert.Equal(t, "abc123@mail.example.com", email.ThreadID)
}

func TestNormalize_Body(t *testing.T) {
	s := NewNormalizerService(getLogger())

	raw := testRawMessage()
	raw.Literal = []byte("From: jamie@example.com\r\n" +
		"To: sales@mailsignal.io\r\n" +
		"Subject: Re: Pricing question\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Sounds good, send me the pricing.\r\n")

	email := s.Normalize(raw, "acct1")

	assert.Equal(t, "Sounds good, send me the pricing.", email.BodyText)
	assert.False(t, email.HasAttachment)
}

func TestNormalize_HTMLOnlyBody(t *testing.T) {
	s := NewNormalizerService(getLogger())

	raw := testRawMessage()
	raw.Literal = []byte("From: jamie@example.com\r\n" +
		"Subject: hi\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Hello there</p></body></html>\r\n")

	email := s.Normalize(raw, "acct1")

	assert.Contains(t, email.BodyText, "Hello there")
	assert.NotEmpty(t, email.BodyHTML)
}

func TestNormalize_MalformedLiteralStaysTotal(t *testing.T) {
	s := NewNormalizerService(getLogger())

	raw := testRawMessage()
	raw.Literal = []byte("\x00\x01 not a mime message at all")

	email := s.Normalize(raw, "acct1")

	// The envelope fields survive even when the body cannot be parsed
	assert.NotEmpty(t, email.ID)
	assert.Equal(t, "Re: Pricing question", email.Subject)
}

func TestNormalize_NoEnvelope(t *testing.T) {
	s := NewNormalizerService(getLogger())

	email := s.Normalize(&interfaces.RawMessage{AccountID: "acct1", Folder: "INBOX"}, "acct1")

	assert.NotEmpty(t, email.ID)
	assert.False(t, email.Date.IsZero())
	assert.Equal(t, email.ID, email.ThreadID)
}

func TestNormalize_ProvisionalCategory(t *testing.T) {
	s := NewNormalizerService(getLogger())

	raw := testRawMessage()
	raw.Envelope.Subject = "Automatic reply: out of office"
	email := s.Normalize(raw, "acct1")

	assert.Equal(t, enum.CategoryOutOfOffice, email.Category)
	assert.Greater(t, email.CategoryConfidence, 0.0)
}

func TestConvertAddresses_DropsIncomplete(t *testing.T) {
	addresses := []*go_imap.Address{
		imapAddress("Valid", "person", "example.com"),
		imapAddress("No host", "person", ""),
		imapAddress("No mailbox", "", "example.com"),
		nil,
	}

	converted := convertAddresses(addresses)

	require.Len(t, converted, 1)
	assert.Equal(t, "person@example.com", converted[0].Address)
}

func TestProcessReferences_Deduplicates(t *testing.T) {
	raw := testRawMessage()
	raw.Envelope.InReplyTo = "<a@x.com> <b@x.com> <a@x.com>"

	s := NewNormalizerService(getLogger())
	result := s.Normalize(raw, "acct1")

	assert.Equal(t, []string{"a@x.com", "b@x.com"}, result.References)
	assert.Equal(t, "a@x.com", result.InReplyTo)
}
