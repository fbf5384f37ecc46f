package handlers

import (
	"context"
	"io"
	"net/http"

	"rehab_monitor/internal/models"
	"rehab_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error
	profile       *models.Profile
	profileErr    error
	signOutErr    error

	lastSignUpUser     models.User
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
	lastSignOutToken   string
	lastProfileID      int
}

func (m *mockAuth) SignUp(u models.User, password string) (int, error) {
	m.lastSignUpUser = u
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) CurrentUser(userID int) (*models.Profile, error) {
	m.lastProfileID = userID
	return m.profile, m.profileErr
}
func (m *mockAuth) SignOut(token string) error {
	m.lastSignOutToken = token
	return m.signOutErr
}

type mockHome struct {
	state   models.HomeState
	changes chan struct{}
}

func (m *mockHome) State() models.HomeState { return m.state }

func (m *mockHome) Watch(ctx context.Context) <-chan struct{} {
	if m.changes != nil {
		return m.changes
	}
	ch := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

type mockCommands struct {
	err       error
	sessionID string

	calls     []string
	lastLimb  string
	lastKind  string
	lastOnOff bool
}

func (m *mockCommands) Arm(ctx context.Context) error {
	m.calls = append(m.calls, "arm")
	return m.err
}
func (m *mockCommands) Disarm(ctx context.Context) error {
	m.calls = append(m.calls, "disarm")
	return m.err
}
func (m *mockCommands) StartSession(ctx context.Context, limb string) (string, error) {
	m.calls = append(m.calls, "start_session")
	m.lastLimb = limb
	if m.err != nil {
		return "", m.err
	}
	return m.sessionID, nil
}
func (m *mockCommands) StopSession(ctx context.Context) error {
	m.calls = append(m.calls, "stop_session")
	return m.err
}
func (m *mockCommands) Calibrate(ctx context.Context, kind string) error {
	m.calls = append(m.calls, "calibrate")
	m.lastKind = kind
	return m.err
}
func (m *mockCommands) SetLed(ctx context.Context, on bool) error {
	m.calls = append(m.calls, "led")
	m.lastOnOff = on
	return m.err
}
func (m *mockCommands) SetBuzzer(ctx context.Context, on bool) error {
	m.calls = append(m.calls, "buzzer")
	m.lastOnOff = on
	return m.err
}

type mockHistory struct {
	groups    []models.GroupedSessions
	err       error
	deleteErr error
	export    []byte
	exportErr error

	lastDeleted string
}

func (m *mockHistory) Groups(ctx context.Context) ([]models.GroupedSessions, error) {
	return m.groups, m.err
}
func (m *mockHistory) Delete(ctx context.Context, id string) error {
	m.lastDeleted = id
	return m.deleteErr
}
func (m *mockHistory) Export(ctx context.Context, w io.Writer) error {
	if m.exportErr != nil {
		return m.exportErr
	}
	_, err := w.Write(m.export)
	return err
}

type mockStats struct {
	bars []models.BarChartData
	err  error
}

func (m *mockStats) Last7Days(ctx context.Context) ([]models.BarChartData, error) {
	return m.bars, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, Options{})
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
