package service

import (
	"context"
	"io"
	"sync"
	"time"

	"rehab_monitor/internal/logger"
	"rehab_monitor/internal/metrics"
	"rehab_monitor/internal/models"
	"rehab_monitor/internal/repository"
)

type Authorization interface {
	SignUp(u models.User, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	CurrentUser(userID int) (*models.Profile, error)
	SignOut(accessToken string) error
}

// Home exposes the combined live view.
type Home interface {
	State() models.HomeState
	Watch(ctx context.Context) <-chan struct{}
}

// Commands exposes fire-and-forget writes to the bridge.
type Commands interface {
	Arm(ctx context.Context) error
	Disarm(ctx context.Context) error
	StartSession(ctx context.Context, limb string) (string, error)
	StopSession(ctx context.Context) error
	Calibrate(ctx context.Context, kind string) error
	SetLed(ctx context.Context, on bool) error
	SetBuzzer(ctx context.Context, on bool) error
}

// History exposes finished sessions: read, delete and export.
type History interface {
	Groups(ctx context.Context) ([]models.GroupedSessions, error)
	Delete(ctx context.Context, id string) error
	Export(ctx context.Context, w io.Writer) error
}

// Stats exposes the weekly event chart.
type Stats interface {
	Last7Days(ctx context.Context) ([]models.BarChartData, error)
}

// Options carries the tunables NewService needs from configuration.
type Options struct {
	Dashboard DashboardOptions
	Auth      AuthOptions
	Location  *time.Location
	Clock     Clock
}

// Service aggregates all sub-services.
type Service struct {
	Authorization
	Home
	Commands
	History
	Stats

	dashboard  *Dashboard
	aggregator *HistoryAggregator
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, opts Options, log *logger.Logger, m *metrics.Metrics) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	dashboard := NewDashboard(repos.Store, clock, opts.Dashboard, log, m)
	aggregator := NewHistoryAggregator(repos.Store, opts.Location, log.Named("history"), m)

	return &Service{
		Authorization: NewAuthService(repos.Auth, opts.Auth),
		Home:          dashboard,
		Commands:      NewCommandDispatcher(repos.Store, clock, dashboard.Live, log.Named("commands"), m),
		History:       aggregator,
		Stats:         NewStatsService(repos.Store, clock, opts.Location),
		dashboard:     dashboard,
		aggregator:    aggregator,
	}
}

// Run drives the live subscriptions until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.dashboard.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.aggregator.Run(ctx)
	}()
	wg.Wait()
}
