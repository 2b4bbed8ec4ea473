package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"trackme/realtime/internal/domain"
	"trackme/realtime/internal/metrics"
	"trackme/realtime/internal/session"
)

// PositionStore writes through a user's last known position. The bool is
// false when no such user exists.
type PositionStore interface {
	UpdatePosition(ctx context.Context, userID, lat, long string, coords [2]float64) (bool, error)
}

// SpeedLimitResolver resolves the active limit for a vehicle/lane pair.
// Empty filters resolve the default context. A miss is (nil, nil).
type SpeedLimitResolver interface {
	Resolve(ctx context.Context, vehicleType, laneType string) (*domain.SpeedLimitContext, error)
}

type ViolationStore interface {
	AppendViolation(ctx context.Context, rec *domain.ViolationRecord) (int64, error)
}

type IncidentStore interface {
	AppendAccident(ctx context.Context, rec *domain.AccidentReport) (*domain.AccidentReport, error)
}

// Emitter is the session registry surface the dispatcher drives.
type Emitter interface {
	Join(room string, c session.Conn)
	Leave(c session.Conn)
	EmitToRoom(room, event string, payload interface{}) int
}

// Mirror is the optional Redis side of the pipeline: live-state fan-out
// for dashboards. Failures here never affect handler outcomes.
type Mirror interface {
	MirrorPosition(ctx context.Context, upd domain.LocationUpdate, coords [2]float64) error
	PublishOverSpeed(ctx context.Context, rec *domain.ViolationRecord) error
	PublishSOS(ctx context.Context, upd domain.LocationUpdate) error
}

// Dispatcher routes inbound frames to their handlers. It keeps no state
// across messages; everything durable goes through the store adapters, and
// room membership lives in the registry.
type Dispatcher struct {
	positions  PositionStore
	limits     SpeedLimitResolver
	violations ViolationStore
	incidents  IncidentStore
	emitter    Emitter
	mirror     Mirror
	log        *logrus.Logger
}

func New(
	positions PositionStore,
	limits SpeedLimitResolver,
	violations ViolationStore,
	incidents IncidentStore,
	emitter Emitter,
	mirror Mirror,
	log *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{
		positions:  positions,
		limits:     limits,
		violations: violations,
		incidents:  incidents,
		emitter:    emitter,
		mirror:     mirror,
		log:        log,
	}
}

// HandleMessage processes one inbound frame. The transport calls it
// synchronously from the connection's read loop, which serializes handler
// execution per connection; frames from other connections interleave
// freely. Any failure degrades to a logged drop — never a panic, never a
// closed connection.
func (d *Dispatcher) HandleMessage(ctx context.Context, c session.Conn, frame []byte) {
	metrics.MessagesReceived.Add(1)

	var env domain.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		d.dropMalformed(c, "", err)
		return
	}

	switch env.Event {
	case domain.EventJoin:
		d.handleJoin(c, env.Data)
	case domain.EventLocationUpdate:
		d.handleLocation(ctx, c, env.Data)
	case domain.EventReportAccident:
		d.handleAccident(ctx, c, env.Data)
	case domain.EventReportSOS:
		d.handleSOS(ctx, c, env.Data)
	default:
		d.log.WithFields(logrus.Fields{"event": env.Event, "connId": c.ID()}).
			Warn("unknown event, dropped")
	}
}

// HandleDisconnect is invoked by the transport exactly once per
// connection, after the read loop exits for any reason.
func (d *Dispatcher) HandleDisconnect(c session.Conn) {
	d.emitter.Leave(c)
	d.log.WithField("connId", c.ID()).Info("user disconnected")
}

func (d *Dispatcher) handleJoin(c session.Conn, data json.RawMessage) {
	var req domain.JoinRequest
	if err := domain.DecodePayload(data, &req); err != nil {
		d.dropMalformed(c, domain.EventJoin, err)
		return
	}
	if req.UserID == "" {
		d.dropMalformed(c, domain.EventJoin, fmt.Errorf("missing userId"))
		return
	}

	d.emitter.Join(req.UserID, c)

	// Reply goes to the originating connection only, not the room.
	c.Send(domain.EventRoomJoined, domain.RoomJoined{
		Message: "room created",
		RoomID:  req.UserID,
	})
}

func (d *Dispatcher) handleLocation(ctx context.Context, c session.Conn, data json.RawMessage) {
	var upd domain.LocationUpdate
	if err := domain.DecodePayload(data, &upd); err != nil {
		d.dropMalformed(c, domain.EventLocationUpdate, err)
		return
	}
	if upd.UserID == "" {
		return
	}
	coords, err := upd.Coordinates()
	if err != nil {
		d.dropMalformed(c, domain.EventLocationUpdate, err)
		return
	}

	logger := d.log.WithFields(logrus.Fields{
		"event":  domain.EventLocationUpdate,
		"userId": upd.UserID,
		"connId": c.ID(),
	})

	// Write-through. Failure is non-fatal: the threshold check still runs,
	// only the sendcheck ack is withheld.
	updated, err := d.positions.UpdatePosition(ctx, upd.UserID, upd.Lat.String(), upd.Long.String(), coords)
	if err != nil {
		metrics.PositionWriteFailures.Add(1)
		logger.WithError(err).Error("position write failed")
		updated = false
	}
	if updated && d.mirror != nil {
		if err := d.mirror.MirrorPosition(ctx, upd, coords); err != nil {
			logger.WithError(err).Warn("live-state mirror failed")
		}
	}

	// Every update is judged against the default context; the reported
	// vehicle type is stored on the violation but does not select the limit.
	limit, err := d.limits.Resolve(ctx, "", "")
	if err != nil {
		logger.WithError(err).Error("speed limit resolve failed")
	}

	if limit != nil && float64(upd.Speed) > limit.SpeedLimit {
		d.recordViolation(ctx, logger, upd, coords, limit)
	}

	if updated {
		d.emitter.EmitToRoom(upd.UserID, domain.EventSendCheck, domain.SendCheck{
			Success: true,
			Message: "user location fetched successfully.",
			UserID:  upd.UserID,
		})
	}
}

// recordViolation persists the over-speed snapshot and, only once the row
// exists, pushes the alert. A client that receives overSpeed can rely on
// the record being durable.
func (d *Dispatcher) recordViolation(
	ctx context.Context,
	logger *logrus.Entry,
	upd domain.LocationUpdate,
	coords [2]float64,
	limit *domain.SpeedLimitContext,
) {
	vehicleType := upd.Type
	if vehicleType == "" {
		vehicleType = limit.VehicleType
	}

	rec := &domain.ViolationRecord{
		UserID:       upd.UserID,
		Speed:        float64(upd.Speed),
		VehicleType:  vehicleType,
		LaneType:     limit.LaneType,
		Coordinates:  coords,
		Latitude:     upd.Lat.String(),
		Longitude:    upd.Long.String(),
		SpeedLimit:   limit.SpeedLimit,
		SpeedLimitID: limit.SpeedLimitID,
	}
	if _, err := d.violations.AppendViolation(ctx, rec); err != nil {
		logger.WithError(err).Error("violation insert failed")
		return
	}
	metrics.ViolationsRecorded.Add(1)

	d.emitter.EmitToRoom(upd.UserID, domain.EventOverSpeed, domain.OverSpeedAlert{
		Success: true,
		Message: fmt.Sprintf("Speed limit of %v kmph exceeded: vehicle reported at %v kmph.",
			limit.SpeedLimit, float64(upd.Speed)),
		UserID: upd.UserID,
	})

	if d.mirror != nil {
		if err := d.mirror.PublishOverSpeed(ctx, rec); err != nil {
			logger.WithError(err).Warn("alert publish failed")
		}
	}
}

func (d *Dispatcher) handleAccident(ctx context.Context, c session.Conn, data json.RawMessage) {
	var upd domain.LocationUpdate
	if err := domain.DecodePayload(data, &upd); err != nil {
		d.dropMalformed(c, domain.EventReportAccident, err)
		return
	}
	if upd.UserID == "" {
		return
	}
	coords, err := upd.Coordinates()
	if err != nil {
		d.dropMalformed(c, domain.EventReportAccident, err)
		return
	}

	logger := d.log.WithFields(logrus.Fields{
		"event":  domain.EventReportAccident,
		"userId": upd.UserID,
		"connId": c.ID(),
	})

	rec := &domain.AccidentReport{
		UserID:      upd.UserID,
		Speed:       float64(upd.Speed),
		VehicleType: upd.Type,
		Coordinates: coords,
		Latitude:    upd.Lat.String(),
		Longitude:   upd.Long.String(),
	}
	stored, err := d.incidents.AppendAccident(ctx, rec)
	if err != nil {
		logger.WithError(err).Error("accident insert failed")
		return
	}
	metrics.AccidentsRecorded.Add(1)

	d.emitter.EmitToRoom(upd.UserID, domain.EventAccidentReport, domain.AccidentAck{
		Success: true,
		Message: "accident report saved successfully.",
		Data:    *stored,
	})
}

// handleSOS records the SOS for audit: structured log, counter, and a
// publish for monitoring dashboards. Deliberately no room emit and no
// database row — asymmetric with reportAccident.
func (d *Dispatcher) handleSOS(ctx context.Context, c session.Conn, data json.RawMessage) {
	var upd domain.LocationUpdate
	if err := domain.DecodePayload(data, &upd); err != nil {
		d.dropMalformed(c, domain.EventReportSOS, err)
		return
	}
	if upd.UserID == "" {
		return
	}
	metrics.SOSReceived.Add(1)

	logger := d.log.WithFields(logrus.Fields{
		"event":  domain.EventReportSOS,
		"userId": upd.UserID,
		"connId": c.ID(),
		"lat":    upd.Lat.String(),
		"long":   upd.Long.String(),
		"speed":  float64(upd.Speed),
	})
	logger.Warn("SOS received")

	if d.mirror != nil {
		if err := d.mirror.PublishSOS(ctx, upd); err != nil {
			logger.WithError(err).Warn("sos publish failed")
		}
	}
}

func (d *Dispatcher) dropMalformed(c session.Conn, event string, err error) {
	metrics.MalformedDrops.Add(1)
	d.log.WithFields(logrus.Fields{"event": event, "connId": c.ID()}).
		WithError(err).Warn("malformed payload dropped")
}
