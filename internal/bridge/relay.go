package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

// Topic suffixes under the configured prefix.
const (
	TopicHeartbeat = "heartbeat"
	TopicLiveEvent = "live_event"
	TopicStatus    = "status"
	TopicHistory   = "history"
	TopicCommand   = "command"
)

const (
	qosAtLeastOnce byte = 1
	resubscribeDelay    = 2 * time.Second

	directionIn  = "in"
	directionOut = "out"

	// fieldHistoryID names the session id inside a history payload.
	fieldHistoryID = "id"
)

var ErrUnknownTopic = errors.New("unknown topic")

// Relay copies bridge telemetry from MQTT into the document store and
// forwards calibration commands from the store back to MQTT.
type Relay struct {
	store     repository.DocumentStore
	transport Transport
	prefix    string
	now       func() time.Time
	log       *logger.Logger
	metrics   *metrics.Metrics
}

func NewRelay(store repository.DocumentStore, transport Transport, prefix string,
	log *logger.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		store:     store,
		transport: transport,
		prefix:    strings.TrimSuffix(prefix, "/"),
		now:       time.Now,
		log:       log,
		metrics:   m,
	}
}

func (r *Relay) topic(suffix string) string {
	if r.prefix == "" {
		return suffix
	}
	return r.prefix + "/" + suffix
}

func (r *Relay) inboundTopics() []string {
	return []string{
		r.topic(TopicHeartbeat),
		r.topic(TopicLiveEvent),
		r.topic(TopicStatus),
		r.topic(TopicHistory),
	}
}

// Run subscribes the inbound topics and forwards commands until ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context) error {
	topics := r.inboundTopics()
	for _, t := range topics {
		if err := r.transport.Subscribe(t, qosAtLeastOnce, r.HandleMessage); err != nil {
			return fmt.Errorf("relay: %w", err)
		}
	}
	r.log.Infow("mqtt relay started", "topics", topics, "command_topic", r.topic(TopicCommand))

	r.forwardCommands(ctx)

	if err := r.transport.Unsubscribe(topics...); err != nil {
		r.log.Warnw("mqtt unsubscribe failed", "err", err)
	}
	r.log.Infow("mqtt relay stopped")
	return nil
}

// HandleMessage writes one inbound message into the store.
func (r *Relay) HandleMessage(topic string, payload []byte) error {
	suffix := strings.TrimPrefix(topic, r.topic(""))
	fields, err := decodePayload(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}
	ctx := context.Background()

	switch suffix {
	case TopicHeartbeat:
		if _, ok := fields.Time(models.FieldLastSeen); !ok {
			fields[models.FieldLastSeen] = r.now().UTC()
		}
		err = r.store.Set(ctx, rm.HeartbeatPath, fields)
	case TopicLiveEvent:
		if _, ok := fields.Time(models.FieldTimestamp); !ok {
			fields[models.FieldTimestamp] = r.now().UTC()
		}
		err = r.store.Set(ctx, rm.LiveEventPath, fields)
	case TopicStatus:
		err = r.mergeStatus(ctx, fields)
	case TopicHistory:
		err = r.saveHistory(ctx, fields)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}

	r.metrics.RelayMessage(suffix, directionIn)
	r.log.Debugw("mqtt message stored", "topic", topic)
	return nil
}

// mergeStatus applies a partial status field by field so flags written by
// clients in the meantime survive.
func (r *Relay) mergeStatus(ctx context.Context, fields models.Fields) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		err := r.store.Update(ctx, rm.StatusPath, k, fields[k])
		if errors.Is(err, repository.ErrNotFound) {
			return r.store.Set(ctx, rm.StatusPath, fields)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Relay) saveHistory(ctx context.Context, fields models.Fields) error {
	id := fields.String(fieldHistoryID)
	path := rm.HistoryPath(id)
	if !path.Valid() {
		return fmt.Errorf("invalid history id %q", id)
	}
	delete(fields, fieldHistoryID)
	return r.store.Set(ctx, path, fields)
}

// forwardCommands publishes every command issued after the relay started.
func (r *Relay) forwardCommands(ctx context.Context) {
	last := r.now()

	for {
		ch, err := r.store.Subscribe(ctx, rm.CommandPath)
		if err != nil {
			r.metrics.SubscriptionError("relay_command")
			r.log.Warnw("command subscription failed", "err", err)
		} else {
			for snap := range ch {
				last = r.forward(snap, last)
			}
		}
		if ctx.Err() != nil {
			return
		}

		t := time.NewTimer(resubscribeDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// forward publishes snap if it carries a command newer than last and
// returns the new high-water mark.
func (r *Relay) forward(snap repository.DocumentSnapshot, last time.Time) time.Time {
	if snap.Err != nil {
		r.metrics.SubscriptionError("relay_command")
		r.log.Warnw("command subscription error", "err", snap.Err)
		return last
	}
	if !snap.Exists {
		return last
	}
	cmd := models.CommandFromFields(snap.Fields)
	if cmd.Command == "" || !cmd.Timestamp.After(last) {
		return last
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		r.log.Errorw("encode command", "err", err)
		return last
	}
	if err := r.transport.Publish(r.topic(TopicCommand), qosAtLeastOnce, false, payload); err != nil {
		r.log.Errorw("command publish failed", "command", cmd.Command, "err", err)
		return last
	}
	r.metrics.RelayMessage(TopicCommand, directionOut)
	r.log.Infow("command forwarded", "command", cmd.Command)
	return cmd.Timestamp
}

// decodePayload parses a JSON object; an empty payload is an empty object.
func decodePayload(payload []byte) (models.Fields, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return models.Fields{}, nil
	}
	var fields models.Fields
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if fields == nil {
		fields = models.Fields{}
	}
	return fields, nil
}
