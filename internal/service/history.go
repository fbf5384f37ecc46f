package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

const (
	// DayLabelLayout is dd/MM/yyyy.
	DayLabelLayout   = "02/01/2006"
	UnknownDateLabel = "Unknown date"
)

var ErrInvalidSessionID = errors.New("invalid session id")

// historyQuery lists sessions newest first.
var historyQuery = repository.Query{OrderBy: models.FieldStartTime, Descending: true}

// HistoryAggregator keeps the history collection grouped by calendar day.
type HistoryAggregator struct {
	store    repository.DocumentStore
	loc      *time.Location
	log      *logger.Logger
	metrics  *metrics.Metrics
	onChange func()

	mu     sync.RWMutex
	groups []models.GroupedSessions
	synced bool
}

func NewHistoryAggregator(store repository.DocumentStore, loc *time.Location, log *logger.Logger, m *metrics.Metrics) *HistoryAggregator {
	if loc == nil {
		loc = time.Local
	}
	return &HistoryAggregator{store: store, loc: loc, log: log, metrics: m}
}

// Run consumes the history subscription until ctx is cancelled.
func (a *HistoryAggregator) Run(ctx context.Context) {
	followCollection(ctx, a.store, rm.CollectionHistory, historyQuery, resubscribeDelay, a.apply)
}

// Groups returns the live grouping once the subscription has delivered,
// and falls back to a one-shot read before that.
func (a *HistoryAggregator) Groups(ctx context.Context) ([]models.GroupedSessions, error) {
	a.mu.RLock()
	if a.synced {
		out := cloneGroups(a.groups)
		a.mu.RUnlock()
		return out, nil
	}
	a.mu.RUnlock()

	sessions, err := a.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByDay(sessions, a.loc), nil
}

// Sessions is a one-shot read of history, newest first.
func (a *HistoryAggregator) Sessions(ctx context.Context) ([]models.HistorySession, error) {
	docs, err := a.store.Query(ctx, rm.CollectionHistory, historyQuery)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return toSessions(docs), nil
}

// Delete removes exactly history/{id}.
func (a *HistoryAggregator) Delete(ctx context.Context, id string) error {
	path := rm.HistoryPath(id)
	if !path.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	if err := a.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	a.log.Infow("history session deleted", "session_id", id)
	return nil
}

func (a *HistoryAggregator) apply(snap repository.QuerySnapshot) {
	if snap.Err != nil {
		a.metrics.SubscriptionError("history")
		a.log.Warnw("history subscription error", "err", snap.Err)
		return
	}
	a.metrics.SnapshotReceived("history")
	groups := GroupByDay(toSessions(snap.Docs), a.loc)

	a.mu.Lock()
	a.groups = groups
	a.synced = true
	a.mu.Unlock()

	if a.onChange != nil {
		a.onChange()
	}
}

// GroupByDay buckets sessions by the dd/MM/yyyy label of startTime in loc.
// Groups keep first-appearance order and sessions keep input order, so a
// newest-first input yields newest-first days. Sessions without startTime
// land in the UnknownDateLabel bucket.
func GroupByDay(sessions []models.HistorySession, loc *time.Location) []models.GroupedSessions {
	if loc == nil {
		loc = time.Local
	}
	groups := make([]models.GroupedSessions, 0)
	index := make(map[string]int)
	for _, s := range sessions {
		label := UnknownDateLabel
		if s.StartTime != nil {
			label = s.StartTime.In(loc).Format(DayLabelLayout)
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, models.GroupedSessions{Date: label})
		}
		groups[i].Sessions = append(groups[i].Sessions, s)
	}
	return groups
}

func toSessions(docs []repository.Document) []models.HistorySession {
	out := make([]models.HistorySession, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.HistorySessionFromFields(d.Path.ID, d.Fields))
	}
	return out
}

func cloneGroups(in []models.GroupedSessions) []models.GroupedSessions {
	out := make([]models.GroupedSessions, len(in))
	for i, g := range in {
		out[i] = models.GroupedSessions{
			Date:     g.Date,
			Sessions: append([]models.HistorySession(nil), g.Sessions...),
		}
	}
	return out
}
