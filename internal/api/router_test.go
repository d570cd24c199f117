package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper/gatekeeper/internal/api"
	"github.com/gatekeeper/gatekeeper/internal/api/models"
	"github.com/gatekeeper/gatekeeper/internal/auth"
	"github.com/gatekeeper/gatekeeper/internal/backup"
	"github.com/gatekeeper/gatekeeper/internal/gsm"
	"github.com/gatekeeper/gatekeeper/internal/storage"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// okSender accepts every message and remembers the last body.
type okSender struct {
	lastTo   string
	lastBody string
}

func (s *okSender) Send(_ context.Context, to, body string) error {
	s.lastTo = to
	s.lastBody = body
	return nil
}

// testAuthService creates an auth service for testing.
func testAuthService() *auth.Service {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.gatekeeper.local",
		Audience:   "gatekeeper-api",
	})

	return auth.NewService(auth.ServiceConfig{
		JWTService:    jwtService,
		AdminUsername: "admin",
		AdminPassword: "correct-horse",
		Logger:        zerolog.Nop(),
	})
}

// testEnv bundles the router with the objects behind it so tests can seed
// state directly.
type testEnv struct {
	router http.Handler
	store  *store.Store
	sender *okSender
	auth   *auth.Service
}

func newTestEnv() *testEnv {
	logger := zerolog.New(io.Discard)
	port := storage.NewMemory()
	s := store.New(store.Config{Port: port, Logger: logger})
	sender := &okSender{}
	dispatcher := gsm.NewDispatcher(gsm.DispatcherConfig{
		Sender: sender,
		Store:  s,
		Logger: logger,
	})
	manager := backup.NewManager(backup.Config{
		Port:   port,
		Store:  s,
		Logger: logger,
	})
	authService := testAuthService()

	router := api.NewRouter(api.RouterConfig{
		Version:       "test",
		BuildTime:     "2024-01-01T00:00:00Z",
		Logger:        logger,
		AuthService:   authService,
		Store:         s,
		Dispatcher:    dispatcher,
		BackupManager: manager,
	})

	return &testEnv{router: router, store: s, sender: sender, auth: authService}
}

// addAuthHeader adds a valid Bearer token to the request.
func (e *testEnv) addAuthHeader(t *testing.T, req *http.Request) {
	t.Helper()
	resp, err := e.auth.Login(&auth.LoginRequest{Username: "admin", Password: "correct-horse"})
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
}

// seedDevice adds a device directly through the store.
func (e *testEnv) seedDevice(t *testing.T) *store.Device {
	t.Helper()
	device, err := e.store.AddDevice(context.Background(), store.DeviceInput{
		Name:       "Front Gate",
		UnitNumber: "+61499000111",
		Password:   "1234",
	})
	require.NoError(t, err)
	return device
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.NotEmpty(t, health.Time)
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	err := json.Unmarshal(w.Body.Bytes(), &health)
	require.NoError(t, err)

	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_Login(t *testing.T) {
	env := newTestEnv()

	body, _ := json.Marshal(auth.LoginRequest{Username: "admin", Password: "correct-horse"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp auth.TokenResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
}

func TestRouter_Login_BadCredentials(t *testing.T) {
	env := newTestEnv()

	body, _ := json.Marshal(auth.LoginRequest{Username: "admin", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_Devices_RequireAuth(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/v1/devices", http.NoBody)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_CreateAndGetDevice(t *testing.T) {
	env := newTestEnv()

	input := models.CreateDeviceRequest{
		Name:       "Front Gate",
		UnitNumber: "+61499000111",
		Password:   "1234",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/devices", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("Location"))

	var device store.Device
	err := json.Unmarshal(w.Body.Bytes(), &device)
	require.NoError(t, err)

	assert.Equal(t, "Front Gate", device.Name)
	assert.NotEmpty(t, device.ID)

	// Fetch it back
	req = httptest.NewRequest(http.MethodGet, "/v1/devices/"+device.ID, http.NoBody)
	env.addAuthHeader(t, req)
	w = httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_CreateDevice_ValidationError(t *testing.T) {
	env := newTestEnv()

	// Password must be exactly 4 digits
	input := models.CreateDeviceRequest{
		Name:       "Front Gate",
		UnitNumber: "+61499000111",
		Password:   "12345",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/devices", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &problem)
	require.NoError(t, err)

	assert.Equal(t, models.ProblemTypeValidation, problem.Type)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_DeleteDevice_NotFound(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodDelete, "/v1/devices/missing", http.NoBody)
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CreateUserAndAuthorize(t *testing.T) {
	env := newTestEnv()
	device := env.seedDevice(t)

	input := models.CreateUserRequest{
		Name:         "Alice",
		PhoneNumber:  "+61412345678",
		SerialNumber: "007",
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var user store.User
	err := json.Unmarshal(w.Body.Bytes(), &user)
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)

	// Authorize on the device
	req = httptest.NewRequest(http.MethodPut, "/v1/devices/"+device.ID+"/users/"+user.ID, http.NoBody)
	env.addAuthHeader(t, req)
	w = httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)

	// The grant shows up in the device user list
	req = httptest.NewRequest(http.MethodGet, "/v1/devices/"+device.ID+"/users", http.NoBody)
	env.addAuthHeader(t, req)
	w = httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var users []store.User
	err = json.Unmarshal(w.Body.Bytes(), &users)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice", users[0].Name)
}

func TestRouter_SendCommand(t *testing.T) {
	env := newTestEnv()
	device := env.seedDevice(t)

	body, _ := json.Marshal(models.SendCommandRequest{Type: "open"})
	req := httptest.NewRequest(http.MethodPost, "/v1/devices/"+device.ID+"/commands", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+61499000111", env.sender.lastTo)
	assert.Equal(t, "1234CC", env.sender.lastBody)

	var entry store.LogEntry
	err := json.Unmarshal(w.Body.Bytes(), &entry)
	require.NoError(t, err)
	assert.True(t, entry.Success)
	assert.NotContains(t, entry.Details, "1234")
}

func TestRouter_SendCommand_UnknownType(t *testing.T) {
	env := newTestEnv()
	device := env.seedDevice(t)

	body, _ := json.Marshal(models.SendCommandRequest{Type: "explode"})
	req := httptest.NewRequest(http.MethodPost, "/v1/devices/"+device.ID+"/commands", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_DeviceLogs(t *testing.T) {
	env := newTestEnv()
	device := env.seedDevice(t)

	body, _ := json.Marshal(models.SendCommandRequest{Type: "status"})
	req := httptest.NewRequest(http.MethodPost, "/v1/devices/"+device.ID+"/commands", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/devices/"+device.ID+"/logs", http.NoBody)
	env.addAuthHeader(t, req)
	w = httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var logs []store.LogEntry
	err := json.Unmarshal(w.Body.Bytes(), &logs)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	// Clear and verify empty
	req = httptest.NewRequest(http.MethodDelete, "/v1/devices/"+device.ID+"/logs", http.NoBody)
	env.addAuthHeader(t, req)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/devices/"+device.ID+"/logs", http.NoBody)
	env.addAuthHeader(t, req)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	logs = nil
	err = json.Unmarshal(w.Body.Bytes(), &logs)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestRouter_Settings(t *testing.T) {
	env := newTestEnv()

	admin := "0412 345 678"
	body, _ := json.Marshal(models.UpdateSettingsRequest{AdminNumber: &admin})
	req := httptest.NewRequest(http.MethodPatch, "/v1/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var settings store.GlobalSettings
	err := json.Unmarshal(w.Body.Bytes(), &settings)
	require.NoError(t, err)
	assert.Equal(t, "00412345678", settings.AdminNumber)
}

func TestRouter_SetActiveDevice_NotFound(t *testing.T) {
	env := newTestEnv()

	missing := "nope"
	body, _ := json.Marshal(models.SetActiveDeviceRequest{DeviceID: &missing})
	req := httptest.NewRequest(http.MethodPut, "/v1/settings/active-device", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_BackupExportRestore(t *testing.T) {
	env := newTestEnv()
	env.seedDevice(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/backup/export", http.NoBody)
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "gatekeeper-backup-")
	exported := w.Body.Bytes()

	// Restore the export into the same deployment
	req = httptest.NewRequest(http.MethodPost, "/v1/backup/restore", bytes.NewReader(exported))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w = httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var result models.RestoreResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "strict", result.Tier)
	assert.Equal(t, 1, result.KeysWritten)
}

func TestRouter_BackupRestore_Garbage(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/v1/backup/restore", bytes.NewReader([]byte("not a backup")))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
