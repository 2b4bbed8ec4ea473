package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackme/realtime/internal/config"
	"trackme/realtime/internal/dispatch"
	"trackme/realtime/internal/domain"
	"trackme/realtime/internal/session"
)

type stubPositions struct{}

func (stubPositions) UpdatePosition(ctx context.Context, userID, lat, long string, coords [2]float64) (bool, error) {
	return true, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, vehicleType, laneType string) (*domain.SpeedLimitContext, error) {
	return &domain.SpeedLimitContext{
		SpeedLimitID: 1,
		VehicleType:  domain.DefaultVehicleType,
		LaneType:     domain.DefaultLaneType,
		SpeedLimit:   120,
	}, nil
}

type stubViolations struct{}

func (stubViolations) AppendViolation(ctx context.Context, rec *domain.ViolationRecord) (int64, error) {
	rec.ID = 1
	rec.CreatedAt = time.Now()
	return 1, nil
}

type stubIncidents struct{}

func (stubIncidents) AppendAccident(ctx context.Context, rec *domain.AccidentReport) (*domain.AccidentReport, error) {
	rec.ID = 1
	rec.CreatedAt = time.Now()
	return rec, nil
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		SendBufferSize:  16,
		ReadLimitBytes:  65536,
		PingIntervalSec: 30,
	}

	registry := session.NewRegistry(log)
	dispatcher := dispatch.New(stubPositions{}, stubResolver{}, stubViolations{}, stubIncidents{}, registry, nil, log)
	srv := httptest.NewServer(NewServer(context.Background(), cfg, dispatcher, log))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event, data string) {
	t.Helper()
	frame := []byte(`{"event":"` + event + `","data":` + data + `}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &env))
	return env.Event, env.Data
}

func TestJoinRoundTrip(t *testing.T) {
	srv := testServer(t)
	conn := dial(t, srv)

	send(t, conn, domain.EventJoin, `{"userId":"u1"}`)

	event, data := readEvent(t, conn)
	assert.Equal(t, domain.EventRoomJoined, event)

	var ack domain.RoomJoined
	require.NoError(t, json.Unmarshal(data, &ack))
	assert.Equal(t, "u1", ack.RoomID)
}

func TestLocationUpdateDeliversToOwnRoom(t *testing.T) {
	srv := testServer(t)
	conn := dial(t, srv)

	send(t, conn, domain.EventJoin, `{"userId":"u1"}`)
	event, _ := readEvent(t, conn)
	require.Equal(t, domain.EventRoomJoined, event)

	send(t, conn, domain.EventLocationUpdate,
		`{"userId":"u1","lat":"27.1","long":"76.1","speed":130,"type":"car"}`)

	// Over the 120 limit: expect both overSpeed and sendcheck, order
	// between them is not part of the contract.
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		event, _ := readEvent(t, conn)
		got[event] = true
	}
	assert.True(t, got[domain.EventOverSpeed])
	assert.True(t, got[domain.EventSendCheck])
}

func TestMalformedFrameKeepsConnectionAlive(t *testing.T) {
	srv := testServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{corrupt`)))

	// The connection survives the malformed frame and still serves joins.
	send(t, conn, domain.EventJoin, `{"userId":"u1"}`)
	event, _ := readEvent(t, conn)
	assert.Equal(t, domain.EventRoomJoined, event)
}

func TestSecondConnectionUnaffectedByFirst(t *testing.T) {
	srv := testServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{corrupt`)))

	send(t, b, domain.EventJoin, `{"userId":"u2"}`)
	event, _ := readEvent(t, b)
	assert.Equal(t, domain.EventRoomJoined, event)
}
