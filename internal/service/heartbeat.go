package service

import (
	"context"
	"sync"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

// DefaultHeartbeatThreshold is the staleness bound for bridge liveness.
const DefaultHeartbeatThreshold = 30 * time.Second

// IsOnline reports whether a heartbeat seen at lastSeen is still fresh at
// now. The bound is strict and a missing heartbeat is offline.
func IsOnline(lastSeen *time.Time, now time.Time, threshold time.Duration) bool {
	if lastSeen == nil {
		return false
	}
	return now.Sub(*lastSeen) < threshold
}

// HeartbeatMonitor derives bridge liveness from system_status/bridge_heartbeat.
// Liveness is evaluated when a snapshot arrives; with a recheck interval it
// is also re-evaluated between snapshots.
type HeartbeatMonitor struct {
	store     repository.DocumentStore
	clock     Clock
	threshold time.Duration
	recheck   time.Duration
	newTicker tickerFunc
	log       *logger.Logger
	metrics   *metrics.Metrics
	onChange  func()

	mu       sync.RWMutex
	online   bool
	lastSeen *time.Time
}

func NewHeartbeatMonitor(store repository.DocumentStore, clock Clock, threshold, recheck time.Duration,
	log *logger.Logger, m *metrics.Metrics) *HeartbeatMonitor {
	if threshold <= 0 {
		threshold = DefaultHeartbeatThreshold
	}
	return &HeartbeatMonitor{
		store:     store,
		clock:     clock,
		threshold: threshold,
		recheck:   recheck,
		newTicker: realTicker,
		log:       log,
		metrics:   m,
	}
}

// Run consumes the heartbeat subscription until ctx is cancelled.
func (h *HeartbeatMonitor) Run(ctx context.Context) {
	if h.recheck > 0 {
		go h.recheckLoop(ctx)
	}
	followDoc(ctx, h.store, rm.HeartbeatPath, resubscribeDelay, h.apply)
}

func (h *HeartbeatMonitor) Online() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online
}

func (h *HeartbeatMonitor) apply(snap repository.DocumentSnapshot) {
	var lastSeen *time.Time
	switch {
	case snap.Err != nil:
		h.metrics.SubscriptionError("heartbeat")
		h.log.Warnw("heartbeat subscription error", "err", snap.Err)
	case !snap.Exists:
		h.metrics.SnapshotReceived("heartbeat")
	default:
		h.metrics.SnapshotReceived("heartbeat")
		lastSeen = models.HeartbeatFromFields(snap.Fields).LastSeen
	}

	h.mu.Lock()
	h.lastSeen = lastSeen
	h.mu.Unlock()
	h.evaluate()
}

// evaluate recomputes liveness from the stored last_seen.
func (h *HeartbeatMonitor) evaluate() {
	h.mu.Lock()
	online := IsOnline(h.lastSeen, h.clock.Now(), h.threshold)
	changed := online != h.online
	h.online = online
	h.mu.Unlock()

	h.metrics.SetBridgeOnline(online)
	if changed {
		h.log.Infow("bridge liveness changed", "online", online)
	}
	if h.onChange != nil {
		h.onChange()
	}
}

func (h *HeartbeatMonitor) recheckLoop(ctx context.Context) {
	tick, stop := h.newTicker(h.recheck)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			h.evaluate()
		}
	}
}
