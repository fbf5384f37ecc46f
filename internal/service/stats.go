package service

import (
	"context"
	"fmt"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

const statsDays = 7

// StatsService summarizes recorded session events for the weekly chart.
type StatsService struct {
	store repository.DocumentStore
	clock Clock
	loc   *time.Location
}

func NewStatsService(store repository.DocumentStore, clock Clock, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{store: store, clock: clock, loc: loc}
}

// Last7Days counts recorded events per local calendar day over the last
// seven days, today included. Bars run oldest to today, labelled with the
// short weekday name, and days without events are zero.
func (s *StatsService) Last7Days(ctx context.Context) ([]models.BarChartData, error) {
	docs, err := s.store.Query(ctx, rm.CollectionHistory, repository.Query{})
	if err != nil {
		return nil, fmt.Errorf("load history for stats: %w", err)
	}
	return countByDay(toSessions(docs), s.clock.Now(), s.loc), nil
}

func countByDay(sessions []models.HistorySession, now time.Time, loc *time.Location) []models.BarChartData {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	first := today.AddDate(0, 0, -(statsDays - 1))

	bars := make([]models.BarChartData, statsDays)
	for i := range bars {
		bars[i].Label = first.AddDate(0, 0, i).Format("Mon")
	}

	for _, s := range sessions {
		for _, ev := range s.Events {
			if ev.Timestamp == nil {
				continue
			}
			t := ev.Timestamp.In(loc)
			if t.Before(first) || t.After(now) {
				continue
			}
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
			i := dayIndex(first, day)
			if i >= 0 && i < statsDays {
				bars[i].Value++
			}
		}
	}
	return bars
}

// dayIndex counts calendar days from first to day, safe across DST shifts.
func dayIndex(first, day time.Time) int {
	i := 0
	for d := first; d.Before(day); d = d.AddDate(0, 0, 1) {
		i++
		if i > statsDays {
			break
		}
	}
	return i
}
