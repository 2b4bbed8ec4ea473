package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	MessagesReceived      atomic.Int64
	MalformedDrops        atomic.Int64
	PositionWriteFailures atomic.Int64
	ViolationsRecorded    atomic.Int64
	AccidentsRecorded     atomic.Int64
	SOSReceived           atomic.Int64
	EmitDrops             atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "realtime_messages_received_total %d\n", MessagesReceived.Load())
	fmt.Fprintf(w, "realtime_malformed_drops_total %d\n", MalformedDrops.Load())
	fmt.Fprintf(w, "realtime_position_write_failures_total %d\n", PositionWriteFailures.Load())
	fmt.Fprintf(w, "realtime_violations_recorded_total %d\n", ViolationsRecorded.Load())
	fmt.Fprintf(w, "realtime_accidents_recorded_total %d\n", AccidentsRecorded.Load())
	fmt.Fprintf(w, "realtime_sos_received_total %d\n", SOSReceived.Load())
	fmt.Fprintf(w, "realtime_emit_drops_total %d\n", EmitDrops.Load())
}
