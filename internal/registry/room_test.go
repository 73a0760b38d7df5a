package registry

import (
	"encoding/json"
	"testing"

	"bookclub-notify/internal/model"
	"bookclub-notify/pkg/log"
)

func newTestRooms(t *testing.T, capacity int) *Rooms {
	t.Helper()
	return NewRooms(log.NewNoop(), RoomsOptions{Capacity: capacity})
}

func TestRooms_SubscribeAndBroadcast(t *testing.T) {
	rs := newTestRooms(t, 10)

	conn1, err := rs.Subscribe("room-1", "member-a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	conn2, err := rs.Subscribe("room-1", "member-b")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	readFrame(t, conn1)
	readFrame(t, conn2)

	rs.Broadcast("room-1", model.LiveEvent{TypeCode: model.TypeRoundStarting, Title: "starting"})

	for i, conn := range []*Connection{conn1, conn2} {
		f := readFrame(t, conn)
		if f.Event != EventNotification {
			t.Errorf("conn %d: event = %q, want %q", i, f.Event, EventNotification)
		}
	}

	// Broadcast to an unknown room is a no-op.
	rs.Broadcast("room-unknown", model.LiveEvent{TypeCode: model.TypeRoundStarting})
}

func TestRooms_CapacityEnforced(t *testing.T) {
	rs := newTestRooms(t, 2)

	if _, err := rs.Subscribe("room-1", "a"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := rs.Subscribe("room-1", "b"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := rs.Subscribe("room-1", "c"); err != ErrRoomFull {
		t.Errorf("third subscribe error = %v, want ErrRoomFull", err)
	}
}

func TestRooms_CloseBroadcastsTerminalAndTearsDown(t *testing.T) {
	rs := newTestRooms(t, 10)

	conn1, _ := rs.Subscribe("room-1", "member-a")
	conn2, _ := rs.Subscribe("room-1", "member-b")
	readFrame(t, conn1)
	readFrame(t, conn2)

	rs.Close("room-1", model.LiveEvent{TypeCode: model.TypeRoundCancelled, Title: "cancelled"})

	for i, conn := range []*Connection{conn1, conn2} {
		f := readFrame(t, conn)
		if f.Event != EventRoomClosed {
			t.Errorf("conn %d: terminal event = %q, want %q", i, f.Event, EventRoomClosed)
		}
		var ev model.LiveEvent
		raw, _ := json.Marshal(f.Data)
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("conn %d: decode terminal payload: %v", i, err)
		}
		if ev.TypeCode != model.TypeRoundCancelled {
			t.Errorf("conn %d: terminal type = %q, want %q", i, ev.TypeCode, model.TypeRoundCancelled)
		}

		select {
		case <-conn.Done():
		default:
			t.Errorf("conn %d not completed by Close", i)
		}
	}

	// Closing again is a no-op.
	rs.Close("room-1", model.LiveEvent{TypeCode: model.TypeRoundCancelled})
}

func TestRoom_NoAdmissionAfterClose(t *testing.T) {
	room := newRoom("room-1", 10, 16, log.NewNoop())

	if _, err := room.subscribe("member-a"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	room.close(model.LiveEvent{TypeCode: model.TypeRoundCancelled})

	if _, err := room.subscribe("member-b"); err != ErrRoomClosed {
		t.Errorf("subscribe after close error = %v, want ErrRoomClosed", err)
	}
}

func TestRooms_RemoveOnTransportFailure(t *testing.T) {
	rs := newTestRooms(t, 10)

	conn, _ := rs.Subscribe("room-1", "member-a")
	readFrame(t, conn)

	rs.Remove("room-1", conn)

	select {
	case <-conn.Done():
	default:
		t.Error("removed connection was not closed")
	}

	// The removed connection no longer receives broadcasts.
	rs.Broadcast("room-1", model.LiveEvent{TypeCode: model.TypeRoundStarting})
	select {
	case <-conn.Events():
		t.Error("removed connection received a frame")
	default:
	}
}
