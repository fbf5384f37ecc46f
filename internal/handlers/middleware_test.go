package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rehab_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr error
	}{
		{header: "", wantErr: errNoAuthHeader},
		{header: "Token abc", wantErr: errBadAuthHeader},
		{header: "Bearer", wantErr: errBadAuthHeader},
		{header: "Bearer   ", wantErr: errBadAuthHeader},
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "BEARER  abc ", want: "abc"},
	}

	for _, tc := range cases {
		got, err := bearerToken(tc.header)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("bearerToken(%q) error = %v, want %v", tc.header, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

// securedRouter mounts a single endpoint behind authMiddleware that echoes
// what the middleware stored in the context.
func securedRouter(auth *mockAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{Authorization: auth}, nil, Options{})

	r := gin.New()
	r.GET("/secure", h.authMiddleware, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId": c.GetInt(ctxUserID),
			"token":  c.GetString(ctxAccessToken),
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		name      string
		header    string
		parseErr  error
		wantCode  int
		wantError string
		wantUser  int
	}{
		{
			name:      "no header",
			wantCode:  http.StatusUnauthorized,
			wantError: errMissingAuth,
		},
		{
			name:      "basic scheme",
			header:    "Basic dXNlcjpwYXNz",
			wantCode:  http.StatusUnauthorized,
			wantError: errMalformedAuth,
		},
		{
			name:      "token rejected by service",
			header:    "Bearer stale",
			parseErr:  errors.New("token revoked"),
			wantCode:  http.StatusUnauthorized,
			wantError: errTokenRejected,
		},
		{
			name:     "valid token",
			header:   "Bearer good-token",
			wantCode: http.StatusOK,
			wantUser: 7,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuth{parseID: 7, parseErr: tc.parseErr}
			r := securedRouter(auth)

			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}

			var body struct {
				Error  string `json:"error"`
				UserID int    `json:"userId"`
				Token  string `json:"token"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if body.Error != tc.wantError {
				t.Fatalf("error = %q, want %q", body.Error, tc.wantError)
			}
			if tc.wantCode != http.StatusOK {
				return
			}
			if body.UserID != tc.wantUser || body.Token != "good-token" {
				t.Fatalf("context = %+v, want user %d with good-token", body, tc.wantUser)
			}
			if auth.lastParseToken != "good-token" {
				t.Fatalf("ParseToken got %q", auth.lastParseToken)
			}
		})
	}
}
