package normalizer

import (
	"bytes"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	go_imap "github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"

	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/utils"
	"github.com/mailsignal/mailsignal/services/rules"
)

const (
	flagSeen    = "\\Seen"
	flagFlagged = "\\Flagged"
)

// Service turns raw fetched messages into canonical Email records. It is
// total: malformed input degrades to empty fields, never to an error.
type Service struct {
	log logger.Logger
}

func NewNormalizerService(log logger.Logger) *Service {
	return &Service{log: log}
}

// Normalize builds the canonical Email for one raw message. The id is
// derived from (message-id, subject, timestamp) so re-ingesting the same
// physical message always produces the same record.
func (s *Service) Normalize(raw *interfaces.RawMessage, accountID string) *models.Email {
	now := utils.Now()
	email := &models.Email{
		AccountID: accountID,
		Folder:    raw.Folder,
		ImapUID:   raw.UID,
		Flags:     append([]string(nil), raw.Flags...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	processEnvelope(email, raw.Envelope)

	if len(raw.Literal) > 0 {
		s.processBody(email, raw.Literal)
	}

	if email.Date.IsZero() {
		email.Date = now
	}

	email.ID = utils.EmailID(email.MessageID, email.Subject, email.Date)
	email.ThreadID = resolveThreadID(email)
	email.IsRead = utils.IsStringInSlice(flagSeen, email.Flags)
	email.IsStarred = utils.IsStringInSlice(flagFlagged, email.Flags)

	// Provisional tag only; the classification orchestrator has the final say
	provisional := rules.Provisional(email.Subject, email.BodyText)
	email.Category = provisional.Category
	email.CategoryConfidence = provisional.Confidence
	email.ClassificationReason = provisional.Reason

	return email
}

func processEnvelope(email *models.Email, envelope *go_imap.Envelope) {
	if envelope == nil {
		return
	}

	if !envelope.Date.IsZero() {
		email.Date = envelope.Date
	}

	email.Subject = envelope.Subject
	email.CleanSubject = utils.NormalizeSubject(envelope.Subject)
	email.MessageID = utils.CleanMessageID(envelope.MessageId)

	processReferences(email, envelope.InReplyTo)

	if len(envelope.From) > 0 {
		email.From = convertAddress(envelope.From[0])
	}
	email.To = convertAddresses(envelope.To)
	email.Cc = convertAddresses(envelope.Cc)
	email.Bcc = convertAddresses(envelope.Bcc)
}

// processReferences cleans the In-Reply-To header, which may carry
// several space-separated identifiers
func processReferences(email *models.Email, inReplyTo string) {
	if inReplyTo == "" {
		return
	}

	var allReferences []string
	for _, ref := range strings.Split(inReplyTo, " ") {
		ref = utils.CleanMessageID(ref)
		if ref != "" && !utils.IsStringInSlice(ref, allReferences) {
			allReferences = append(allReferences, ref)
		}
	}

	if len(allReferences) > 0 {
		email.InReplyTo = allReferences[0]
	}
	email.References = allReferences
}

func convertAddress(addr *go_imap.Address) models.EmailAddress {
	if addr == nil {
		return models.EmailAddress{}
	}
	return models.EmailAddress{
		Name:    addr.PersonalName,
		Address: cleanAddress(addr.Address()),
	}
}

// convertAddresses normalizes an envelope address list to the uniform
// {name, address} shape, dropping entries without an address
func convertAddresses(addresses []*go_imap.Address) []models.EmailAddress {
	if len(addresses) == 0 {
		return nil
	}

	result := make([]models.EmailAddress, 0, len(addresses))
	for _, addr := range addresses {
		if addr == nil || addr.MailboxName == "" || addr.HostName == "" {
			continue
		}
		converted := convertAddress(addr)
		if converted.Address == "" {
			continue
		}
		result = append(result, converted)
	}
	return result
}

func cleanAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" || address == "@" {
		return ""
	}
	validation := mailvalidate.ValidateEmailSyntax(address)
	if validation.IsValid {
		return validation.CleanEmail
	}
	return strings.ToLower(address)
}

// processBody parses the RFC822 literal for text/html bodies, attachment
// metadata and address headers the envelope did not carry
func (s *Service) processBody(email *models.Email, literal []byte) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(literal))
	if err != nil {
		s.log.Warnf("[%s] failed to parse message body: %v", email.AccountID, err)
		return
	}

	email.BodyText = strings.TrimSpace(env.Text)
	email.BodyHTML = env.HTML

	if email.BodyText == "" && email.BodyHTML != "" {
		email.BodyText = extractTextFromHTML(email.BodyHTML)
	}

	// Header fallbacks for servers that return sparse envelopes
	if email.Subject == "" {
		email.Subject = env.GetHeader("Subject")
		email.CleanSubject = utils.NormalizeSubject(email.Subject)
	}
	if email.MessageID == "" {
		email.MessageID = utils.CleanMessageID(env.GetHeader("Message-Id"))
	}
	if email.From.Address == "" {
		email.From = firstAddressFromHeader(env, "From")
	}
	if len(email.To) == 0 {
		email.To = addressesFromHeader(env, "To")
	}
	if len(email.Cc) == 0 {
		email.Cc = addressesFromHeader(env, "Cc")
	}

	for _, attachment := range env.Attachments {
		email.Attachments = append(email.Attachments, models.Attachment{
			Filename:    attachment.FileName,
			ContentType: attachment.ContentType,
			Size:        len(attachment.Content),
			Disposition: attachment.Disposition,
		})
	}
	email.HasAttachment = len(email.Attachments) > 0
}

// firstAddressFromHeader accepts the string shape of an address header
func firstAddressFromHeader(env *enmime.Envelope, header string) models.EmailAddress {
	addresses := addressesFromHeader(env, header)
	if len(addresses) == 0 {
		return models.EmailAddress{}
	}
	return addresses[0]
}

func addressesFromHeader(env *enmime.Envelope, header string) []models.EmailAddress {
	parsed, err := env.AddressList(header)
	if err != nil {
		return nil
	}

	result := make([]models.EmailAddress, 0, len(parsed))
	for _, addr := range parsed {
		address := cleanAddress(addr.Address)
		if address == "" {
			continue
		}
		result = append(result, models.EmailAddress{Name: addr.Name, Address: address})
	}
	return result
}

// resolveThreadID picks the thread root: the oldest reference, then the
// replied-to id, then a normalized-subject hash so same-conversation
// messages without reply headers still group, then the message's own
// identity
func resolveThreadID(email *models.Email) string {
	if len(email.References) > 0 {
		return email.References[0]
	}
	if email.InReplyTo != "" {
		return email.InReplyTo
	}
	if email.CleanSubject != "" {
		return utils.ThreadID(email.CleanSubject)
	}
	if email.MessageID != "" {
		return email.MessageID
	}
	return email.ID
}
