package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"bookclub-notify/internal/model"
	"bookclub-notify/pkg/log"
)

var (
	// ErrRoomFull is returned when a room is at capacity.
	ErrRoomFull = errors.New("room full")
	// ErrRoomClosed is returned when subscribing to a room whose terminal
	// broadcast has already begun.
	ErrRoomClosed = errors.New("room closed")
)

// Rooms manages bounded sub-scopes of live connections — one per waiting room
// of an upcoming reading round. Same contract as the main registry, plus an
// explicit close-and-notify-all teardown when the scope itself ends.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]*Room

	capacity   int
	sendBuffer int
	heartbeat  time.Duration
	l          log.Logger
}

// RoomsOptions configures the room set.
type RoomsOptions struct {
	Capacity          int
	SendBuffer        int
	HeartbeatInterval time.Duration
}

// NewRooms creates an empty room set.
func NewRooms(l log.Logger, opts RoomsOptions) *Rooms {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 200
	}
	return &Rooms{
		rooms:      make(map[string]*Room),
		capacity:   opts.Capacity,
		sendBuffer: opts.SendBuffer,
		heartbeat:  opts.HeartbeatInterval,
		l:          l,
	}
}

// Subscribe registers a new connection in the room, creating the room on
// first use.
func (rs *Rooms) Subscribe(roomID, recipientID string) (*Connection, error) {
	rs.mu.Lock()
	room, exists := rs.rooms[roomID]
	if !exists {
		room = newRoom(roomID, rs.capacity, rs.sendBuffer, rs.l)
		rs.rooms[roomID] = room
	}
	rs.mu.Unlock()

	return room.subscribe(recipientID)
}

// Broadcast delivers the event to every connection in the room. Unknown room
// ids are a no-op.
func (rs *Rooms) Broadcast(roomID string, ev model.LiveEvent) {
	rs.mu.Lock()
	room, exists := rs.rooms[roomID]
	rs.mu.Unlock()
	if !exists {
		return
	}
	room.broadcast(NewEventFrame(ev))
}

// Close broadcasts the terminal event to every connection in the room and
// then tears the whole scope down. No subscriber is admitted once the
// terminal broadcast begins. Closing an unknown room is a no-op.
func (rs *Rooms) Close(roomID string, terminal model.LiveEvent) {
	rs.mu.Lock()
	room, exists := rs.rooms[roomID]
	delete(rs.rooms, roomID)
	rs.mu.Unlock()
	if !exists {
		return
	}
	room.close(terminal)
}

// Remove drops a connection from the room. Used by the transport layer when
// the underlying socket dies. Idempotent; unknown rooms are a no-op.
func (rs *Rooms) Remove(roomID string, conn *Connection) {
	rs.mu.Lock()
	room, exists := rs.rooms[roomID]
	rs.mu.Unlock()
	if !exists {
		conn.Close()
		return
	}
	room.remove(conn)
}

// Run drives heartbeats for every room until ctx is cancelled.
func (rs *Rooms) Run(ctx context.Context) {
	ticker := time.NewTicker(rs.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.mu.Lock()
			rooms := make([]*Room, 0, len(rs.rooms))
			for _, room := range rs.rooms {
				rooms = append(rooms, room)
			}
			rs.mu.Unlock()

			data, err := NewFrame(EventPing, nil).Marshal()
			if err != nil {
				rs.l.Errorf(ctx, "internal.registry.Rooms.Run: marshal ping: %v", err)
				continue
			}
			for _, room := range rooms {
				room.pushAll(data)
			}
		}
	}
}

// CloseAll tears down every room without a terminal event. Shutdown path.
func (rs *Rooms) CloseAll() {
	rs.mu.Lock()
	rooms := rs.rooms
	rs.rooms = make(map[string]*Room)
	rs.mu.Unlock()

	for _, room := range rooms {
		room.closeSilently()
	}
}

// Room is one bounded scope of live connections.
type Room struct {
	id         string
	capacity   int
	sendBuffer int
	l          log.Logger

	mu     sync.Mutex
	conns  []*Connection
	closed bool
}

func newRoom(id string, capacity, sendBuffer int, l log.Logger) *Room {
	return &Room{
		id:         id,
		capacity:   capacity,
		sendBuffer: sendBuffer,
		l:          l,
	}
}

func (room *Room) subscribe(recipientID string) (*Connection, error) {
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return nil, ErrRoomClosed
	}
	if len(room.conns) >= room.capacity {
		room.mu.Unlock()
		return nil, ErrRoomFull
	}
	conn := newConnection(recipientID, room.sendBuffer)
	room.conns = append(room.conns, conn)
	room.mu.Unlock()

	handshake, err := NewFrame(EventConnected, nil).Marshal()
	if err != nil {
		room.remove(conn)
		return nil, err
	}
	if err := conn.push(handshake); err != nil {
		room.remove(conn)
		return nil, err
	}
	return conn, nil
}

func (room *Room) broadcast(frame *Frame) {
	data, err := frame.Marshal()
	if err != nil {
		room.l.Errorf(context.Background(), "internal.registry.Room.broadcast: marshal: %v", err)
		return
	}
	room.pushAll(data)
}

func (room *Room) pushAll(data []byte) {
	room.mu.Lock()
	targets := append([]*Connection(nil), room.conns...)
	room.mu.Unlock()

	for _, conn := range targets {
		if err := conn.push(data); err != nil {
			room.l.Warnf(context.Background(), "internal.registry.Room.pushAll: room %s recipient %s: %v", room.id, conn.RecipientID(), err)
			room.remove(conn)
		}
	}
}

// remove drops a connection from the room. Idempotent.
func (room *Room) remove(conn *Connection) {
	room.mu.Lock()
	for i, c := range room.conns {
		if c == conn {
			room.conns = append(room.conns[:i], room.conns[i+1:]...)
			break
		}
	}
	room.mu.Unlock()
	conn.Close()
}

// close performs the terminal broadcast and then completes every connection.
// The closed flag is flipped before the broadcast so no subscriber can be
// admitted once teardown begins.
func (room *Room) close(terminal model.LiveEvent) {
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return
	}
	room.closed = true
	targets := room.conns
	room.conns = nil
	room.mu.Unlock()

	frame := NewFrame(EventRoomClosed, terminal)
	data, err := frame.Marshal()
	if err != nil {
		room.l.Errorf(context.Background(), "internal.registry.Room.close: marshal terminal frame: %v", err)
	}

	for _, conn := range targets {
		if data != nil {
			if err := conn.push(data); err != nil {
				room.l.Warnf(context.Background(), "internal.registry.Room.close: terminal send to %s: %v", conn.RecipientID(), err)
			}
		}
		conn.Close()
	}
	room.l.Infof(context.Background(), "internal.registry.Room.close: room %s closed, %d connection(s) completed", room.id, len(targets))
}

func (room *Room) closeSilently() {
	room.mu.Lock()
	room.closed = true
	targets := room.conns
	room.conns = nil
	room.mu.Unlock()

	for _, conn := range targets {
		conn.Close()
	}
}

// Len reports the number of connections currently in the room.
func (room *Room) Len() int {
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.conns)
}
