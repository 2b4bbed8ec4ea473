package session

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event   string
	payload interface{}
}

type fakeConn struct {
	id     string
	reject bool

	mu     sync.Mutex
	events []emitted
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(event string, payload interface{}) bool {
	if f.reject {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event, payload})
	return true
}

func (f *fakeConn) received() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emitted, len(f.events))
	copy(out, f.events)
	return out
}

func testRegistry() *Registry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRegistry(log)
}

func TestJoinAndEmit(t *testing.T) {
	r := testRegistry()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	r.Join("u1", a)
	r.Join("u2", b)

	delivered := r.EmitToRoom("u1", "sendcheck", "hello")
	assert.Equal(t, 1, delivered)

	require.Len(t, a.received(), 1)
	assert.Equal(t, "sendcheck", a.received()[0].event)
	assert.Empty(t, b.received(), "connection in a different room must receive nothing")
}

func TestEmitToEmptyRoomIsNoop(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, 0, r.EmitToRoom("nobody", "sendcheck", nil))
}

func TestMultipleDevicesSameRoom(t *testing.T) {
	r := testRegistry()
	phone := &fakeConn{id: "phone"}
	tablet := &fakeConn{id: "tablet"}

	r.Join("u1", phone)
	r.Join("u1", tablet)

	assert.Equal(t, 2, r.EmitToRoom("u1", "overSpeed", nil))
	assert.Len(t, phone.received(), 1)
	assert.Len(t, tablet.received(), 1)
}

func TestRejoinDoesNotDuplicateEmits(t *testing.T) {
	r := testRegistry()
	a := &fakeConn{id: "a"}

	r.Join("u1", a)
	r.Join("u1", a)

	assert.Equal(t, 1, r.EmitToRoom("u1", "sendcheck", nil))
	assert.Len(t, a.received(), 1)
}

func TestLeaveRemovesFromAllRooms(t *testing.T) {
	r := testRegistry()
	a := &fakeConn{id: "a"}

	r.Join("u1", a)
	r.Join("u2", a)
	r.Leave(a)

	assert.Equal(t, 0, r.EmitToRoom("u1", "sendcheck", nil))
	assert.Equal(t, 0, r.EmitToRoom("u2", "sendcheck", nil))
	assert.Empty(t, a.received())
	assert.Equal(t, 0, r.RoomSize("u1"))
}

func TestLeaveUnknownConnIsNoop(t *testing.T) {
	r := testRegistry()
	r.Leave(&fakeConn{id: "ghost"})
}

func TestRejectedSendCountsAsUndelivered(t *testing.T) {
	r := testRegistry()
	ok := &fakeConn{id: "ok"}
	full := &fakeConn{id: "full", reject: true}

	r.Join("u1", ok)
	r.Join("u1", full)

	assert.Equal(t, 1, r.EmitToRoom("u1", "sendcheck", nil))
}

func TestConcurrentJoinLeaveEmit(t *testing.T) {
	r := testRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &fakeConn{id: fmt.Sprintf("c%d", i)}
			room := fmt.Sprintf("u%d", i%5)
			r.Join(room, c)
			r.EmitToRoom(room, "sendcheck", nil)
			r.Leave(c)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, r.RoomSize(fmt.Sprintf("u%d", i)))
	}
}
