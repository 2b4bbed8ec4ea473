package session

import (
	"sync"

	"github.com/sirupsen/logrus"

	"trackme/realtime/internal/metrics"
)

// Conn is the handle the registry keeps per live connection. Send must
// never block: implementations queue the frame and report false when it
// cannot be accepted (closed connection, full buffer).
type Conn interface {
	ID() string
	Send(event string, payload interface{}) bool
}

// Registry maps room identities (user IDs) to the set of live connections
// that joined them. It is the only process-wide mutable structure the
// subsystem owns; every connection's handlers mutate it concurrently.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
	conns map[Conn]map[string]struct{}
	log   *logrus.Logger
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]map[Conn]struct{}),
		conns: make(map[Conn]map[string]struct{}),
		log:   log,
	}
}

// Join binds c into the room named room. Rejoining is a no-op; a
// connection is never registered twice in the same room.
func (r *Registry) Join(room string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[Conn]struct{})
		r.rooms[room] = members
	}
	members[c] = struct{}{}

	joined, ok := r.conns[c]
	if !ok {
		joined = make(map[string]struct{})
		r.conns[c] = joined
	}
	joined[room] = struct{}{}

	r.log.WithFields(logrus.Fields{"room": room, "connId": c.ID()}).
		Info("connection joined room")
}

// Leave removes c from every room it belongs to. Rooms left empty are
// deleted so registry memory is bounded by live connections.
func (r *Registry) Leave(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.conns[c] {
		members := r.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.conns, c)
}

// EmitToRoom delivers event/payload to every connection currently in the
// room. A room with no members is a no-op, not an error. Returns the
// number of connections the frame was queued for.
func (r *Registry) EmitToRoom(room, event string, payload interface{}) int {
	r.mu.RLock()
	members := make([]Conn, 0, len(r.rooms[room]))
	for c := range r.rooms[room] {
		members = append(members, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.Send(event, payload) {
			delivered++
		} else {
			metrics.EmitDrops.Add(1)
			r.log.WithFields(logrus.Fields{"room": room, "event": event, "connId": c.ID()}).
				Warn("emit dropped")
		}
	}
	return delivered
}

// RoomSize reports current membership, mainly for tests and diagnostics.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
