package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rm "rehab_monitor"
	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

var (
	ErrInvalidCommand = errors.New("invalid calibration command")
	ErrInvalidLimb    = errors.New("limb is required")
)

// Session document fields under sessions/{id}.
const (
	fieldSessionLimb  = "limb"
	fieldSessionStart = "startTime"
)

// CommandDispatcher issues fire-and-forget writes to the shared store. Nothing
// is read back: the next status snapshot is the only confirmation, and a
// write the bridge never sees is lost silently.
type CommandDispatcher struct {
	store   repository.DocumentStore
	clock   Clock
	window  *LiveEventWindow
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewCommandDispatcher(store repository.DocumentStore, clock Clock, window *LiveEventWindow,
	log *logger.Logger, m *metrics.Metrics) *CommandDispatcher {
	return &CommandDispatcher{store: store, clock: clock, window: window, log: log, metrics: m}
}

// Arm replaces the whole status document so stale fields from a previous
// session do not survive.
func (c *CommandDispatcher) Arm(ctx context.Context) error {
	err := c.store.Set(ctx, rm.StatusPath, models.Fields{
		models.FieldIsArmed:          true,
		models.FieldSessionStartTime: c.clock.Now().UTC(),
	})
	return c.done("arm", err)
}

// Disarm touches only is_armed; session_start_time stays for the recorder.
func (c *CommandDispatcher) Disarm(ctx context.Context) error {
	err := c.store.Update(ctx, rm.StatusPath, models.FieldIsArmed, false)
	return c.done("disarm", err)
}

// StartSession marks the status active for limb and creates sessions/{id}.
// It returns the new session id.
func (c *CommandDispatcher) StartSession(ctx context.Context, limb string) (string, error) {
	limb = strings.TrimSpace(limb)
	if limb == "" {
		return "", ErrInvalidLimb
	}
	id := c.store.NewID()
	now := c.clock.Now().UTC()

	err := c.store.Set(ctx, rm.StatusPath, models.Fields{
		models.FieldIsActive:         true,
		models.FieldCurrentLimb:      limb,
		models.FieldSessionID:        id,
		models.FieldSessionStartTime: now,
	})
	if err := c.done("start_session", err); err != nil {
		return "", err
	}

	err = c.store.Set(ctx, rm.SessionPath(id), models.Fields{
		fieldSessionLimb:  limb,
		fieldSessionStart: now,
	})
	if err := c.done("create_session", err); err != nil {
		return "", err
	}
	c.log.Infow("session started", "session_id", id, "limb", limb)
	return id, nil
}

func (c *CommandDispatcher) StopSession(ctx context.Context) error {
	err := c.store.Update(ctx, rm.StatusPath, models.FieldIsActive, false)
	return c.done("stop_session", err)
}

// Calibrate overwrites the single command slot; the last command wins.
func (c *CommandDispatcher) Calibrate(ctx context.Context, kind string) error {
	if !models.ValidCommand(kind) {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, kind)
	}
	cmd := models.Command{Command: kind, Timestamp: c.clock.Now().UTC()}
	err := c.store.Set(ctx, rm.CommandPath, cmd.Fields())
	return c.done(strings.ToLower(kind), err)
}

func (c *CommandDispatcher) SetLed(ctx context.Context, on bool) error {
	tag := models.EventLedOffManual
	if on {
		tag = models.EventLedOnManual
	}
	return c.toggle(ctx, "led", models.FieldLedOn, on, tag)
}

func (c *CommandDispatcher) SetBuzzer(ctx context.Context, on bool) error {
	tag := models.EventBuzzerOffManual
	if on {
		tag = models.EventBuzzerOnManual
	}
	return c.toggle(ctx, "buzzer", models.FieldBuzzerOn, on, tag)
}

// toggle writes a manual actuator flag and logs a synthetic event locally.
func (c *CommandDispatcher) toggle(ctx context.Context, name, field string, on bool, tag string) error {
	err := c.store.Update(ctx, rm.StatusPath, field, on)
	if err := c.done(name, err); err != nil {
		return err
	}
	if c.window != nil {
		c.window.Append(models.LiveEvent{EventType: tag, Timestamp: c.clock.Now().UTC()})
	}
	return nil
}

func (c *CommandDispatcher) done(command string, err error) error {
	c.metrics.CommandIssued(command, err)
	if err != nil {
		c.log.Errorw("command write failed", "command", command, "err", err)
		return fmt.Errorf("%s: %w", command, err)
	}
	c.log.Debugw("command written", "command", command)
	return nil
}
