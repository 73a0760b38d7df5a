package ingest

import (
	"errors"
	"testing"

	"bookclub-notify/internal/model"
)

func TestParseClubEvent(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		payload := []byte(`{"recipients":["member-1","member-2"],"title":"Round starting","body":"10 minutes","linkPath":"/rounds/7"}`)
		ev, err := ParseClubEvent(payload)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(ev.Recipients) != 2 || ev.Recipients[0] != "member-1" {
			t.Errorf("recipients = %v", ev.Recipients)
		}
		if ev.Title != "Round starting" || ev.Body != "10 minutes" || ev.LinkPath != "/rounds/7" {
			t.Errorf("payload = %+v", ev)
		}
	})

	t.Run("missing recipients", func(t *testing.T) {
		_, err := ParseClubEvent([]byte(`{"recipients":[],"title":"t"}`))
		if !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("error = %v, want ErrInvalidEvent", err)
		}
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := ParseClubEvent([]byte(`{"recipients":["member-1"]}`))
		if !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("error = %v, want ErrInvalidEvent", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := ParseClubEvent([]byte(`{not json`)); err == nil {
			t.Error("expected a decode error")
		}
	})
}

func TestTypeCodeFor(t *testing.T) {
	cases := []struct {
		suffix string
		code   model.TypeCode
		ok     bool
	}{
		{"report_approved", model.TypeReportApproved, true},
		{"report_rejected", model.TypeReportRejected, true},
		{"report_reminder", model.TypeReportReminder, true},
		{"round_starting", model.TypeRoundStarting, true},
		{"round_cancelled", model.TypeRoundCancelled, true},
		{"meeting_scheduled", model.TypeMeetingScheduled, true},
		{"chat_mention", model.TypeChatMention, true},
		{"unknown_event", "", false},
	}
	for _, tc := range cases {
		code, ok := TypeCodeFor(tc.suffix)
		if ok != tc.ok || code != tc.code {
			t.Errorf("TypeCodeFor(%q) = (%q, %t), want (%q, %t)", tc.suffix, code, ok, tc.code, tc.ok)
		}
	}
}
