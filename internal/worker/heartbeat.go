package worker

import (
	"github.com/alicklee/mapreduce/internal/protocol"
)

// emitHeartbeats sends a UDP heartbeat to the Manager every
// protocol.HeartbeatPeriod until the shutdown flag is set. It starts
// only after register_ack arrives and terminates on its own once
// shutdown is observed, without needing to be joined from the
// dispatch loop.
func (w *Worker) emitHeartbeats() {
	for !w.shutdown.Load() {
		protocol.SendHeartbeat(w.ManagerHost, w.ManagerPort, protocol.Message{
			Type:       protocol.Heartbeat,
			WorkerHost: w.Host,
			WorkerPort: w.Port,
		})
		sleepUnlessShutdown(&w.shutdown, protocol.HeartbeatPeriod)
	}
}
