package service

import (
	"context"
	"sync"
	"time"

	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

// DashboardOptions tunes the live state machines.
type DashboardOptions struct {
	HeartbeatThreshold time.Duration
	HeartbeatRecheck   time.Duration
	TimerPeriod        time.Duration
	LiveWindow         int
}

// Dashboard composes the live state machines behind the home view. Each
// one is fed by its own subscription goroutine while Run is active.
type Dashboard struct {
	Status    *StatusSynchronizer
	Heartbeat *HeartbeatMonitor
	Live      *LiveEventWindow
	Timer     *SessionTimer

	log      *logger.Logger
	notifier *notifier
}

func NewDashboard(store repository.DocumentStore, clock Clock, opts DashboardOptions,
	log *logger.Logger, m *metrics.Metrics) *Dashboard {
	d := &Dashboard{log: log, notifier: newNotifier()}

	d.Timer = NewSessionTimer(clock, opts.TimerPeriod, log.Named("timer"), m)
	d.Status = NewStatusSynchronizer(store, d.Timer, log.Named("status"), m)
	d.Heartbeat = NewHeartbeatMonitor(store, clock, opts.HeartbeatThreshold, opts.HeartbeatRecheck, log.Named("heartbeat"), m)
	d.Live = NewLiveEventWindow(store, opts.LiveWindow, log.Named("live"), m)

	d.Timer.OnChange(func(string) { d.notifier.notify() })
	d.Status.onChange = d.notifier.notify
	d.Heartbeat.onChange = d.notifier.notify
	d.Live.onChange = d.notifier.notify
	return d
}

// Run opens the status, heartbeat and live-event subscriptions and blocks
// until ctx is cancelled and every subscription and the timer are released.
func (d *Dashboard) Run(ctx context.Context) {
	d.log.Infow("dashboard started")

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){d.Status.Run, d.Heartbeat.Run, d.Live.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}
	wg.Wait()

	d.Timer.Stop()
	d.log.Infow("dashboard stopped")
}

// State returns the combined home view.
func (d *Dashboard) State() models.HomeState {
	st, _ := d.Status.Status()
	gauge := d.Live.Gauge()
	return models.HomeState{
		IsActive:        st.IsActive,
		IsArmed:         st.IsArmed,
		LedOn:           st.LedOn,
		BuzzerOn:        st.BuzzerOn,
		CurrentLimb:     st.CurrentLimb,
		SessionID:       st.SessionID,
		IsBridgeOnline:  d.Heartbeat.Online(),
		SessionDuration: d.Timer.Display(),
		LiveEvents:      d.Live.Entries(),
		CurrentAngle:    gauge.Angle,
		CurrentProgress: gauge.Progress,
	}
}

// Watch returns a channel signalled after any state change. Bursts of
// changes coalesce into one signal; the channel closes when ctx ends.
func (d *Dashboard) Watch(ctx context.Context) <-chan struct{} {
	return d.notifier.subscribe(ctx)
}

// notifier fans change signals out to watchers without blocking writers.
type notifier struct {
	mu       sync.Mutex
	watchers map[chan struct{}]struct{}
}

func newNotifier() *notifier {
	return &notifier{watchers: make(map[chan struct{}]struct{})}
}

func (n *notifier) subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.watchers[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.watchers, ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch
}

func (n *notifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
