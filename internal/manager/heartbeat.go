package manager

import (
	"sync/atomic"
	"time"

	"github.com/alicklee/mapreduce/internal/protocol"
	"github.com/rs/zerolog"
)

// HeartbeatMonitor periodically ages every non-Dead worker's missed
// counter and hands expired addresses to onDead for reassignment.
type HeartbeatMonitor struct {
	registry *Registry
	onDead   func(Addr)
	logger   zerolog.Logger
	shutdown *atomic.Bool
}

// NewHeartbeatMonitor builds a monitor over registry. On each pass,
// onDead is called for every non-Dead worker whose missed counter is
// at or above protocol.MissThreshold.
func NewHeartbeatMonitor(registry *Registry, shutdown *atomic.Bool, onDead func(Addr), logger zerolog.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{registry: registry, onDead: onDead, logger: logger, shutdown: shutdown}
}

// Run loops until shutdown is set, sleeping protocol.HeartbeatPeriod
// between passes.
func (m *HeartbeatMonitor) Run() {
	ticker := time.NewTicker(protocol.HeartbeatPeriod)
	defer ticker.Stop()
	for !m.shutdown.Load() {
		<-ticker.C
		if m.shutdown.Load() {
			return
		}
		for _, addr := range m.registry.AgeHeartbeats(protocol.MissThreshold) {
			m.logger.Warn().Str("worker", addr.String()).Msg("worker missed heartbeat threshold, marking dead")
			m.onDead(addr)
		}
	}
}
