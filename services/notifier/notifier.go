package notifier

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/mailsignal/mailsignal/config"
	"github.com/mailsignal/mailsignal/dto"
	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/enum"
	"github.com/mailsignal/mailsignal/internal/logger"
	"github.com/mailsignal/mailsignal/internal/models"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

const dispatchTimeout = 30 * time.Second

// notifierService pushes actionable classifications to Slack and generic
// webhook receivers. Dispatch happens off the ingestion path: a slow or
// failing receiver never blocks a sync.
type notifierService struct {
	cfg     *config.NotifierConfig
	log     logger.Logger
	senders []sender
}

type sender interface {
	name() string
	send(ctx context.Context, notification dto.EmailNotification) error
}

func NewNotifierService(cfg *config.NotifierConfig, log logger.Logger) interfaces.Notifier {
	s := &notifierService{cfg: cfg, log: log}
	if cfg.SlackWebhookURL != "" {
		s.senders = append(s.senders, newSlackSender(cfg))
	}
	if cfg.GenericWebhookURL != "" {
		s.senders = append(s.senders, newWebhookSender(cfg))
	}
	return s
}

// NotifyCategorized dispatches for interested and meeting_booked
// verdicts only; everything else is dropped silently.
func (s *notifierService) NotifyCategorized(ctx context.Context, email *models.Email) {
	span, _ := opentracing.StartSpanFromContext(ctx, "notifierService.NotifyCategorized")
	defer span.Finish()
	tracing.TagComponentNotifier(span)
	tracing.TagEmail(span, email.ID)

	event, ok := eventFor(email.Category)
	if !ok || len(s.senders) == 0 {
		return
	}

	notification := buildNotification(event, email)
	for _, target := range s.senders {
		go s.dispatch(target, notification)
	}
}

func (s *notifierService) dispatch(target sender, notification dto.EmailNotification) {
	defer tracing.RecoverAndLog(s.log)

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := target.send(ctx, notification); err != nil {
		s.log.Errorf("failed to notify %s for email %s: %v", target.name(), notification.EmailID, err)
		return
	}
	s.log.Infof("notified %s: %s email %s", target.name(), notification.Event, notification.EmailID)
}

func eventFor(category enum.Category) (enum.NotificationEvent, bool) {
	switch category {
	case enum.CategoryInterested:
		return enum.EventInterested, true
	case enum.CategoryMeetingBooked:
		return enum.EventMeetingBooked, true
	default:
		return "", false
	}
}

// buildNotification projects an email onto the bounded webhook payload
func buildNotification(event enum.NotificationEvent, email *models.Email) dto.EmailNotification {
	to := make([]string, 0, len(email.To))
	for _, addr := range email.To {
		if len(to) == dto.NotificationRecipientLimit {
			break
		}
		to = append(to, addr.Address)
	}

	body := []rune(email.BodyText)
	if len(body) > dto.NotificationBodyLimit {
		body = body[:dto.NotificationBodyLimit]
	}

	return dto.EmailNotification{
		Event:       event,
		EmailID:     email.ID,
		AccountID:   email.AccountID,
		Folder:      email.Folder,
		Subject:     email.Subject,
		FromName:    email.From.Name,
		FromAddress: email.From.Address,
		To:          to,
		BodyPreview: string(body),
		Category:    email.Category,
		Confidence:  email.CategoryConfidence,
		Date:        email.Date,
	}
}
