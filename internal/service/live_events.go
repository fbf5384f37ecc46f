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

// DefaultLiveWindow is the number of recent events kept for display.
const DefaultLiveWindow = 5

var descriptors = map[string]models.EventDescriptor{
	models.EventAbruptMotion:    {Icon: "warning", Label: "Abrupt movement alert", Severity: models.SeverityAlert, Emphasis: true},
	models.EventPIRMotion:       {Icon: "directions_run", Label: "PIR motion", Severity: models.SeverityNormal},
	models.EventIMUVertical:     {Icon: "portrait", Label: "IMU vertical", Severity: models.SeverityMuted},
	models.EventIMUHorizontal:   {Icon: "landscape", Label: "IMU horizontal", Severity: models.SeverityMuted},
	models.EventLedOnManual:     {Icon: "flash_on", Label: "LED on", Severity: models.SeverityManual},
	models.EventLedOffManual:    {Icon: "flash_off", Label: "LED off", Severity: models.SeverityMuted},
	models.EventBuzzerOnManual:  {Icon: "notifications_active", Label: "Buzzer on", Severity: models.SeverityManual},
	models.EventBuzzerOffManual: {Icon: "notifications_off", Label: "Buzzer off", Severity: models.SeverityMuted},
}

// Classify maps an event tag to its presentation. Unknown tags become a
// generic info row labelled with the raw tag; it never fails.
func Classify(eventType string) models.EventDescriptor {
	if d, ok := descriptors[eventType]; ok {
		return d
	}
	return models.EventDescriptor{Icon: "info", Label: eventType, Severity: models.SeverityMuted}
}

// LiveEventWindow folds system_status/live_event into a gauge reading and a
// bounded log of the most recent discrete events, oldest evicted first.
type LiveEventWindow struct {
	store    repository.DocumentStore
	size     int
	log      *logger.Logger
	metrics  *metrics.Metrics
	onChange func()

	mu      sync.RWMutex
	entries []models.LiveEntry
	gauge   models.Gauge
	// last remote event, to skip redelivered snapshots of the same sample
	lastType string
	lastAt   time.Time
}

func NewLiveEventWindow(store repository.DocumentStore, size int, log *logger.Logger, m *metrics.Metrics) *LiveEventWindow {
	if size <= 0 {
		size = DefaultLiveWindow
	}
	return &LiveEventWindow{
		store:   store,
		size:    size,
		log:     log,
		metrics: m,
		entries: make([]models.LiveEntry, 0, size),
	}
}

// Run consumes the live-event subscription until ctx is cancelled.
func (w *LiveEventWindow) Run(ctx context.Context) {
	followDoc(ctx, w.store, rm.LiveEventPath, resubscribeDelay, w.apply)
}

// Append classifies ev and adds it to the window. Manual actions use it to
// show up without waiting for a remote echo.
func (w *LiveEventWindow) Append(ev models.LiveEvent) {
	w.mu.Lock()
	d := w.appendLocked(ev)
	w.mu.Unlock()

	w.metrics.LiveEventAppended(d.Severity)
	if w.onChange != nil {
		w.onChange()
	}
}

// Entries returns a copy of the window, oldest first.
func (w *LiveEventWindow) Entries() []models.LiveEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.LiveEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

func (w *LiveEventWindow) Gauge() models.Gauge {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gauge
}

func (w *LiveEventWindow) apply(snap repository.DocumentSnapshot) {
	if snap.Err != nil {
		w.metrics.SubscriptionError("live_event")
		w.log.Warnw("live event subscription error", "err", snap.Err)
		return
	}
	w.metrics.SnapshotReceived("live_event")
	if !snap.Exists {
		return
	}

	ev := models.LiveEventFromFields(snap.Fields)
	appended := ""

	w.mu.Lock()
	w.gauge = models.Gauge{Angle: ev.Angle, Progress: ev.Progress}
	if ev.EventType != "" && !w.isRepeatLocked(ev) {
		w.lastType, w.lastAt = ev.EventType, ev.Timestamp
		appended = w.appendLocked(ev).Severity
	}
	w.mu.Unlock()

	if appended != "" {
		w.metrics.LiveEventAppended(appended)
	}
	if w.onChange != nil {
		w.onChange()
	}
}

// isRepeatLocked reports a redelivery of the last remote sample. Samples
// without a timestamp cannot be told apart and are always kept.
func (w *LiveEventWindow) isRepeatLocked(ev models.LiveEvent) bool {
	return !ev.Timestamp.IsZero() && ev.EventType == w.lastType && ev.Timestamp.Equal(w.lastAt)
}

func (w *LiveEventWindow) appendLocked(ev models.LiveEvent) models.EventDescriptor {
	d := Classify(ev.EventType)
	w.entries = append(w.entries, models.LiveEntry{Event: ev, Descriptor: d})
	if over := len(w.entries) - w.size; over > 0 {
		// shift in place so the backing array does not grow
		n := copy(w.entries, w.entries[over:])
		w.entries = w.entries[:n]
	}
	return d
}
