package enum

type NotificationEvent string

const (
	EventCategorized   NotificationEvent = "categorized"
	EventInterested    NotificationEvent = "interested"
	EventMeetingBooked NotificationEvent = "meeting_booked"
)

func (e NotificationEvent) String() string {
	return string(e)
}
