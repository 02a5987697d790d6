package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/trialapp-service/internal/config"
	"github.com/wenwu/saas-platform/trialapp-service/internal/mocks"
	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
	"github.com/wenwu/saas-platform/trialapp-service/internal/service"
	"github.com/wenwu/saas-platform/trialapp-service/internal/tree"
)

const testSecret = "test-secret-key-with-at-least-32-characters"

type testEnv struct {
	server  *Server
	fetcher *mocks.MockFetcher
	factory *mocks.MockFactory
	service *service.TrialService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Server.Port = "0"
	cfg.JWT.SecretKey = testSecret
	cfg.RateLimit.RequestsPerSecond = 100
	cfg.RateLimit.Burst = 100
	cfg.Trial.SessionIdleTTL = time.Hour

	fetcher := &mocks.MockFetcher{Metadata: mocks.Metadata("demo", 900)}
	factory := mocks.NewMockFactory()
	svc := service.NewTrialServiceWithDeps(cfg, tree.Deps{Fetcher: fetcher, Factory: factory})

	return &testEnv{
		server:  NewServer(cfg, svc),
		fetcher: fetcher,
		factory: factory,
		service: svc,
	}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"uid": user}))
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/my/trial", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/my/trial", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// sub is accepted when uid is absent
	req = httptest.NewRequest(http.MethodGet, "/api/v1/my/trial", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"sub": "u1"}))
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttachAndGetTrial(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", models.AttachTrialRequest{SessionToken: "tok"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[models.TrialAppResponse](t, w)
	assert.Equal(t, "demo", resp.SiteName)
	assert.Equal(t, models.StateActive, resp.State)
	assert.Equal(t, 15, resp.MinutesLeft)
	assert.Equal(t, "https://demo.azurewebsites.net", resp.DefaultHostURL)
	assert.Equal(t, "https://demo.scm.azurewebsites.net", resp.ManagementURL)
	assert.Equal(t, "15 min. remaining", resp.Node.Description)
	assert.Len(t, resp.Node.Children, 4)

	w = env.do(t, http.MethodGet, "/api/v1/my/trial?depth=0", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.TrialAppResponse](t, w).Node.Children)

	// other users do not see it
	w = env.do(t, http.MethodGet, "/api/v1/my/trial", "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttachTrial_Errors(t *testing.T) {
	tests := []struct {
		name string
		meta *models.TrialMetadata
		err  error
		want int
	}{
		{"provisioning incomplete", mocks.Metadata("", 900), nil, http.StatusConflict},
		{"transport", nil, fmt.Errorf("send request: %w", models.ErrTransport), http.StatusBadGateway},
		{"parse", nil, models.ErrParse, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.fetcher.Set(tt.meta, tt.err)

			w := env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", models.AttachTrialRequest{SessionToken: "tok"})
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRefreshTrial(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/my/trial/refresh", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", models.AttachTrialRequest{SessionToken: "tok"})
	require.Equal(t, http.StatusCreated, w.Code)

	env.fetcher.Set(mocks.Metadata("demo", 0), nil)
	w = env.do(t, http.MethodPost, "/api/v1/my/trial/refresh", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.TrialAppResponse](t, w)
	assert.Equal(t, models.StateExpired, resp.State)
	assert.Equal(t, "Expired", resp.Node.Description)

	env.fetcher.Set(nil, models.ErrTransport)
	w = env.do(t, http.MethodPost, "/api/v1/my/trial/refresh", "u1", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body struct {
		Error string                   `json:"error"`
		Trial *models.TrialAppResponse `json:"trial"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	require.NotNil(t, body.Trial)
	assert.Equal(t, "Expired", body.Trial.Node.Description)
	assert.NotEmpty(t, body.Trial.LastRefreshError)
}

func TestDetachAndBrowse(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", models.AttachTrialRequest{SessionToken: "tok"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/browse", "u1", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://demo.azurewebsites.net", w.Header().Get("Location"))

	w = env.do(t, http.MethodDelete, "/api/v1/my/trial", "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, "/api/v1/my/trial", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.factory.SettingsFake = mocks.NewMockSettings(map[string]string{"A": "1", "B": "2"})
	w := env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", models.AttachTrialRequest{SessionToken: "tok"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/settings", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, decode[models.SettingsResponse](t, w).Settings)

	w = env.do(t, http.MethodPut, "/api/v1/my/trial/settings", "u1", models.UpdateSettingsRequest{Settings: map[string]string{"A": "9", "C": "3"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]string{"A": "9", "C": "3"}, decode[models.SettingsResponse](t, w).Settings)
	assert.Equal(t, []string{"B"}, env.factory.SettingsFake.Deleted())
}

func TestUnsupportedPlan(t *testing.T) {
	env := newTestEnv(t)
	meta := mocks.Metadata("linux", 900)
	meta.ScmHostName = ""
	env.fetcher.Set(meta, nil)

	w := env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", models.AttachTrialRequest{SessionToken: "tok"})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[models.TrialAppResponse](t, w)
	assert.Empty(t, resp.ManagementURL)

	for _, path := range []string{"settings", "deployments", "files", "logs"} {
		w = env.do(t, http.MethodGet, "/api/v1/my/trial/"+path, "u1", nil)
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}

func TestManagementEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.factory.DeploymentsFake.Deployments = []models.Deployment{{ID: "d1", Active: true}}
	env.factory.DeploymentsFake.Logs = map[string][]models.DeploymentLogEntry{"d1": {{ID: "l1"}}}
	env.factory.FilesFake.Dirs["site/wwwroot/css"] = []models.FileEntry{{Name: "site.css", Size: 10}}
	env.factory.FilesFake.Dirs["site/wwwroot/LogFilesArchive"] = []models.FileEntry{{Name: "old.log", Size: 1}}
	env.factory.FilesFake.Files["site/wwwroot/css/site.css"] = []byte("body{}")
	env.factory.LogsFake.Entries = []models.LogEntry{{Message: "a"}, {Message: "b"}}

	w := env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", models.AttachTrialRequest{SessionToken: "tok"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/deployments", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"d1"`)

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/deployments/d1/log", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"l1"`)

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/deployments/missing/log", "u1", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/files/css", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "site.css")

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/files/css/site.css?raw=true", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{}", w.Body.String())

	// a wwwroot folder named like the logs root stays under wwwroot
	w = env.do(t, http.MethodGet, "/api/v1/my/trial/files/LogFilesArchive", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "old.log")

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/files?raw=true", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/my/trial/logs?limit=1", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Entries []models.LogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	assert.Len(t, logs.Entries, 1)
}

func TestGetRecentLogs_Limit(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/my/trial", "u1", models.AttachTrialRequest{SessionToken: "tok"})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		query string
		want  int
	}{
		{"", defaultLogLimit},
		{"?limit=5", 5},
		{"?limit=0", defaultLogLimit},
		{"?limit=-3", defaultLogLimit},
		{"?limit=abc", defaultLogLimit},
		{"?limit=1000000", maxLogLimit},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/my/trial/logs"+tt.query, "u1", nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, env.factory.LogsFake.LastLimit)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "limits are per key")
}
