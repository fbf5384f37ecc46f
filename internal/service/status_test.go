package service

import (
	"context"
	"errors"
	"testing"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

func newTestSynchronizer(store repository.DocumentStore, clock Clock) (*StatusSynchronizer, *SessionTimer) {
	tm := NewSessionTimer(clock, time.Second, logger.NewNop(), nil)
	tm.newTicker = newManualTicker().start
	return NewStatusSynchronizer(store, tm, logger.NewNop(), nil), tm
}

func statusSnap(fields models.Fields) repository.DocumentSnapshot {
	return repository.DocumentSnapshot{Document: repository.Document{Path: rm.StatusPath, Exists: true, Fields: fields}}
}

func TestStatusSynchronizer_ActiveTransitionStartsTimer(t *testing.T) {
	clock := newFakeClock(t0.Add(10 * time.Second))
	s, tm := newTestSynchronizer(nil, clock)
	defer tm.Stop()

	s.apply(statusSnap(models.Fields{models.FieldIsActive: false}))
	if tm.Running() {
		t.Fatal("timer running while inactive")
	}

	s.apply(statusSnap(models.Fields{
		models.FieldIsActive:         true,
		models.FieldSessionStartTime: t0.Format(time.RFC3339),
	}))
	if !tm.Running() {
		t.Fatal("timer not running after false->true with a start time")
	}
	eventually(t, func() bool { return tm.Display() == "00:10" }, "elapsed since remote start")

	st, known := s.Status()
	if !known || !st.IsActive {
		t.Fatalf("status = %+v known=%v", st, known)
	}
}

func TestStatusSynchronizer_ActiveWithoutStartDoesNotStart(t *testing.T) {
	s, tm := newTestSynchronizer(nil, newFakeClock(t0))

	s.apply(statusSnap(models.Fields{models.FieldIsActive: true}))
	if tm.Running() {
		t.Fatal("timer started without a session start time")
	}
	if st, _ := s.Status(); !st.IsActive {
		t.Fatal("flags must still be projected")
	}
}

func TestStatusSynchronizer_InactiveStopsTimer(t *testing.T) {
	s, tm := newTestSynchronizer(nil, newFakeClock(t0.Add(time.Minute)))

	s.apply(statusSnap(models.Fields{models.FieldIsActive: true, models.FieldSessionStartTime: t0}))
	eventually(t, func() bool { return tm.Display() == "01:00" }, "timer running")

	s.apply(statusSnap(models.Fields{models.FieldIsActive: false, models.FieldSessionStartTime: t0}))
	if tm.Running() || tm.Display() != StoppedDisplay {
		t.Fatalf("timer running=%v display=%q after deactivation", tm.Running(), tm.Display())
	}
}

func TestStatusSynchronizer_DocumentDeletedMidSession(t *testing.T) {
	s, tm := newTestSynchronizer(nil, newFakeClock(t0.Add(90*time.Second)))

	s.apply(statusSnap(models.Fields{
		models.FieldIsActive:         true,
		models.FieldLedOn:            true,
		models.FieldSessionStartTime: t0,
	}))
	eventually(t, func() bool { return tm.Display() == "01:30" }, "timer running")

	s.apply(repository.DocumentSnapshot{Document: repository.Document{Path: rm.StatusPath}})

	if tm.Running() {
		t.Fatal("timer still running after status deletion")
	}
	if got := tm.Display(); got != StoppedDisplay {
		t.Fatalf("display = %q, want %q", got, StoppedDisplay)
	}
}

func TestStatusSynchronizer_ErrorKeepsFlagsAndStopsTimer(t *testing.T) {
	s, tm := newTestSynchronizer(nil, newFakeClock(t0.Add(time.Second)))

	s.apply(statusSnap(models.Fields{
		models.FieldIsActive:         true,
		models.FieldIsArmed:          true,
		models.FieldBuzzerOn:         true,
		models.FieldSessionStartTime: t0,
	}))
	s.apply(repository.DocumentSnapshot{Err: errors.New("connection reset")})

	if tm.Running() {
		t.Fatal("timer must stop on transport error")
	}
	st, _ := s.Status()
	if !st.IsActive || !st.IsArmed || !st.BuzzerOn {
		t.Fatalf("flags reset on error: %+v", st)
	}
}

func TestStatusSynchronizer_MalformedFieldsDefault(t *testing.T) {
	s, _ := newTestSynchronizer(nil, newFakeClock(t0))

	s.apply(statusSnap(models.Fields{
		models.FieldIsActive: "yes",
		models.FieldLedOn:    true,
		models.FieldIsArmed:  nil,
	}))
	st, _ := s.Status()
	if st.IsActive || st.IsArmed || !st.LedOn || st.BuzzerOn {
		t.Fatalf("unexpected projection %+v", st)
	}
}

func TestStatusSynchronizer_RunFollowsStore(t *testing.T) {
	store := repository.NewMemoryStore()
	clock := newFakeClock(t0.Add(5 * time.Second))
	s, tm := newTestSynchronizer(store, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	if err := store.Set(ctx, rm.StatusPath, models.Fields{
		models.FieldIsActive:         true,
		models.FieldSessionStartTime: t0,
	}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	eventually(t, tm.Running, "timer started from store snapshot")

	if err := store.Delete(ctx, rm.StatusPath); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	eventually(t, func() bool { return !tm.Running() && tm.Display() == StoppedDisplay }, "timer stopped after delete")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// failingStore refuses every subscription.
type failingStore struct {
	repository.DocumentStore
	err error
}

func (f failingStore) Subscribe(context.Context, rm.DocPath) (<-chan repository.DocumentSnapshot, error) {
	return nil, f.err
}

func TestStatusSynchronizer_SubscribeFailureIsTransportError(t *testing.T) {
	s, tm := newTestSynchronizer(failingStore{err: errors.New("store unreachable")}, newFakeClock(t0))
	tm.Start(t0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	eventually(t, func() bool { return !tm.Running() }, "timer stopped on subscribe failure")
	cancel()
	<-done
}
