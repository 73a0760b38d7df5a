package ingest

import (
	"encoding/json"
	"errors"

	"bookclub-notify/internal/model"
)

// ErrInvalidEvent is returned when a published event is malformed.
var ErrInvalidEvent = errors.New("invalid club event")

// ClubEvent is the payload business services publish on the club_event:*
// channels. The channel suffix carries the notification type code.
type ClubEvent struct {
	Recipients []string `json:"recipients"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	LinkPath   string   `json:"linkPath,omitempty"`
}

// ParseClubEvent decodes and validates a published payload.
func ParseClubEvent(payload []byte) (ClubEvent, error) {
	var ev ClubEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ClubEvent{}, err
	}
	if len(ev.Recipients) == 0 || ev.Title == "" {
		return ClubEvent{}, ErrInvalidEvent
	}
	return ev, nil
}

// knownTypeCodes maps channel suffixes to notification type codes.
var knownTypeCodes = map[string]model.TypeCode{
	"report_approved":   model.TypeReportApproved,
	"report_rejected":   model.TypeReportRejected,
	"report_reminder":   model.TypeReportReminder,
	"round_starting":    model.TypeRoundStarting,
	"round_cancelled":   model.TypeRoundCancelled,
	"meeting_scheduled": model.TypeMeetingScheduled,
	"chat_mention":      model.TypeChatMention,
}

// TypeCodeFor resolves a channel suffix to its type code.
func TypeCodeFor(suffix string) (model.TypeCode, bool) {
	code, ok := knownTypeCodes[suffix]
	return code, ok
}
