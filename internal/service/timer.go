package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
)

// StoppedDisplay is shown whenever no session is being timed.
const StoppedDisplay = "00:00"

const defaultTimerPeriod = time.Second

// SessionTimer renders the elapsed time of the running session. It is
// either Stopped or Running(start); at most one tick loop exists at a time.
type SessionTimer struct {
	clock     Clock
	period    time.Duration
	newTicker tickerFunc
	log       *logger.Logger
	metrics   *metrics.Metrics
	onChange  func(display string)

	mu      sync.Mutex
	running bool
	start   time.Time
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	display string
}

func NewSessionTimer(clock Clock, period time.Duration, log *logger.Logger, m *metrics.Metrics) *SessionTimer {
	if period <= 0 {
		period = defaultTimerPeriod
	}
	return &SessionTimer{
		clock:     clock,
		period:    period,
		newTicker: realTicker,
		log:       log,
		metrics:   m,
		display:   StoppedDisplay,
	}
}

// OnChange registers fn to receive every published display value. Must be
// set before the first Start.
func (t *SessionTimer) OnChange(fn func(display string)) {
	t.onChange = fn
}

// Start moves Stopped to Running(start). Calling it while already running
// is a no-op, even with a different start.
func (t *SessionTimer) Start(start time.Time) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.running = true
	t.start = start
	t.gen++
	t.cancel = cancel
	t.done = make(chan struct{})
	gen, done := t.gen, t.done
	t.mu.Unlock()

	t.metrics.SetTimerRunning(true)
	t.log.Debugw("session timer started", "start", start.UTC().Format(time.RFC3339))
	go t.loop(ctx, gen, start, done)
}

// Stop cancels the tick loop, waits for it to exit and resets the display.
func (t *SessionTimer) Stop() {
	t.mu.Lock()
	wasRunning := t.running
	changed := t.display != StoppedDisplay
	t.running = false
	t.gen++
	t.display = StoppedDisplay
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if wasRunning {
		t.metrics.SetTimerRunning(false)
		t.log.Debugw("session timer stopped")
	}
	if changed && t.onChange != nil {
		t.onChange(StoppedDisplay)
	}
}

func (t *SessionTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Display returns the last published MM:SS value.
func (t *SessionTimer) Display() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.display
}

func (t *SessionTimer) loop(ctx context.Context, gen uint64, start time.Time, done chan struct{}) {
	defer close(done)

	tick, stop := t.newTicker(t.period)
	defer stop()

	t.publish(gen, FormatElapsed(t.clock.Now().Sub(start)))
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			t.publish(gen, FormatElapsed(t.clock.Now().Sub(start)))
		}
	}
}

// publish drops values from a loop that has since been stopped.
func (t *SessionTimer) publish(gen uint64, display string) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.display = display
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(display)
	}
}

// FormatElapsed renders d as zero-padded MM:SS with unbounded minutes.
// Negative durations (clock skew between bridge and client) render as 00:00.
func FormatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
