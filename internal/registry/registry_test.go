package registry

import (
	"encoding/json"
	"testing"

	"bookclub-notify/internal/model"
	"bookclub-notify/pkg/log"
)

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	return New(log.NewNoop(), opts, Hooks{})
}

// readFrame pops one queued frame off the connection, failing if none is buffered.
func readFrame(t *testing.T, conn *Connection) Frame {
	t.Helper()
	select {
	case data := <-conn.Events():
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return f
	default:
		t.Fatal("no frame buffered")
		return Frame{}
	}
}

func TestRegistry_SubscribeSendsHandshake(t *testing.T) {
	r := newTestRegistry(t, Options{})

	conn, err := r.Subscribe("member-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	f := readFrame(t, conn)
	if f.Event != EventConnected {
		t.Errorf("handshake event = %q, want %q", f.Event, EventConnected)
	}
	if r.ConnectionCount("member-1") != 1 {
		t.Errorf("connection count = %d, want 1", r.ConnectionCount("member-1"))
	}
}

func TestRegistry_BroadcastToAllConnectionsOfRecipient(t *testing.T) {
	r := newTestRegistry(t, Options{})

	conn1, _ := r.Subscribe("member-1")
	conn2, _ := r.Subscribe("member-1")
	readFrame(t, conn1)
	readFrame(t, conn2)

	ev := model.LiveEvent{TypeCode: model.TypeReportApproved, Title: "approved"}
	r.SendToOne("member-1", ev)

	for i, conn := range []*Connection{conn1, conn2} {
		f := readFrame(t, conn)
		if f.Event != EventNotification {
			t.Errorf("conn %d: event = %q, want %q", i, f.Event, EventNotification)
		}
	}

	// One connection dies; a repeat broadcast reaches only the survivor and
	// the dead one is removed from the registry.
	conn2.Close()
	r.SendToOne("member-1", ev)

	if f := readFrame(t, conn1); f.Event != EventNotification {
		t.Errorf("survivor event = %q, want %q", f.Event, EventNotification)
	}
	if got := r.ConnectionCount("member-1"); got != 1 {
		t.Errorf("connection count after failure = %d, want 1", got)
	}
}

func TestRegistry_SendToMany(t *testing.T) {
	r := newTestRegistry(t, Options{})

	connA, _ := r.Subscribe("member-a")
	connB, _ := r.Subscribe("member-b")
	readFrame(t, connA)
	readFrame(t, connB)

	r.SendToMany([]string{"member-a", "member-b", "member-offline"}, model.LiveEvent{
		TypeCode: model.TypeRoundStarting, Title: "round starts in 10 minutes",
	})

	for _, conn := range []*Connection{connA, connB} {
		f := readFrame(t, conn)
		if f.Event != EventNotification {
			t.Errorf("event = %q, want %q", f.Event, EventNotification)
		}
	}
}

func TestRegistry_RemoveDropsEmptyRecipientEntry(t *testing.T) {
	r := newTestRegistry(t, Options{})

	conn, _ := r.Subscribe("member-1")
	readFrame(t, conn)
	r.Remove(conn)
	r.Remove(conn) // idempotent

	if got := r.ConnectionCount("member-1"); got != 0 {
		t.Errorf("connection count = %d, want 0", got)
	}
	stats := r.Stats()
	if stats.UniqueRecipients != 0 {
		t.Errorf("unique recipients = %d, want 0 (empty entry must be dropped)", stats.UniqueRecipients)
	}

	// A removed connection is never the target of a subsequent send.
	r.SendToOne("member-1", model.LiveEvent{TypeCode: model.TypeChatMention})
	select {
	case <-conn.Events():
		t.Error("removed connection received a frame")
	default:
	}
}

func TestRegistry_BufferFullRemovesConnection(t *testing.T) {
	r := newTestRegistry(t, Options{SendBuffer: 1})

	conn, err := r.Subscribe("member-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// The handshake fills the 1-slot buffer; the next send must fail and
	// remove the connection rather than block.
	r.SendToOne("member-1", model.LiveEvent{TypeCode: model.TypeChatMention})

	if got := r.ConnectionCount("member-1"); got != 0 {
		t.Errorf("connection count = %d, want 0", got)
	}
	select {
	case <-conn.Done():
	default:
		t.Error("failed connection was not closed")
	}
}

func TestRegistry_HeartbeatRemovesDeadConnections(t *testing.T) {
	r := newTestRegistry(t, Options{})

	alive, _ := r.Subscribe("member-1")
	dead, _ := r.Subscribe("member-2")
	readFrame(t, alive)
	readFrame(t, dead)
	dead.Close()

	r.heartbeat()

	if f := readFrame(t, alive); f.Event != EventPing {
		t.Errorf("heartbeat event = %q, want %q", f.Event, EventPing)
	}
	if got := r.ConnectionCount("member-2"); got != 0 {
		t.Errorf("dead connection count = %d, want 0", got)
	}
}

func TestRegistry_MaxConnections(t *testing.T) {
	r := newTestRegistry(t, Options{MaxConnections: 1})

	if _, err := r.Subscribe("member-1"); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if _, err := r.Subscribe("member-2"); err != ErrMaxConnections {
		t.Errorf("second subscribe error = %v, want ErrMaxConnections", err)
	}
}

func TestRegistry_CloseAllRejectsNewSubscriptions(t *testing.T) {
	r := newTestRegistry(t, Options{})

	conn, _ := r.Subscribe("member-1")
	r.CloseAll()

	select {
	case <-conn.Done():
	default:
		t.Error("connection not closed by CloseAll")
	}
	if _, err := r.Subscribe("member-2"); err != ErrRegistryClosed {
		t.Errorf("subscribe after CloseAll error = %v, want ErrRegistryClosed", err)
	}
}
