package service

import (
	"context"
	"sync"

	rm "rehab_monitor"
	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

// StatusSynchronizer projects system_status/status into a local view and
// drives the session timer from it.
type StatusSynchronizer struct {
	store    repository.DocumentStore
	timer    *SessionTimer
	log      *logger.Logger
	metrics  *metrics.Metrics
	onChange func()

	mu     sync.RWMutex
	status models.SystemStatus
	known  bool
}

func NewStatusSynchronizer(store repository.DocumentStore, timer *SessionTimer, log *logger.Logger, m *metrics.Metrics) *StatusSynchronizer {
	return &StatusSynchronizer{store: store, timer: timer, log: log, metrics: m}
}

// Run consumes the status subscription until ctx is cancelled.
func (s *StatusSynchronizer) Run(ctx context.Context) {
	followDoc(ctx, s.store, rm.StatusPath, resubscribeDelay, s.apply)
}

// Status returns the last-known status and whether any snapshot was seen.
func (s *StatusSynchronizer) Status() (models.SystemStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.known
}

func (s *StatusSynchronizer) apply(snap repository.DocumentSnapshot) {
	switch {
	case snap.Err != nil:
		// connectivity loss, not a remote change: keep the flags
		s.metrics.SubscriptionError("status")
		s.log.Warnw("status subscription error", "err", snap.Err)
		s.timer.Stop()

	case !snap.Exists:
		s.metrics.SnapshotReceived("status")
		s.log.Infow("status document missing")
		s.timer.Stop()

	default:
		s.metrics.SnapshotReceived("status")
		st := models.SystemStatusFromFields(snap.Fields)

		s.mu.Lock()
		s.status = st
		s.known = true
		s.mu.Unlock()

		if st.IsActive && st.SessionStartTime != nil {
			s.timer.Start(*st.SessionStartTime)
		} else {
			s.timer.Stop()
		}
	}

	if s.onChange != nil {
		s.onChange()
	}
}

