package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-scheduler/internal/audit"
	"github.com/nerrad567/gray-logic-scheduler/internal/automation"
	"github.com/nerrad567/gray-logic-scheduler/internal/command"
	"github.com/nerrad567/gray-logic-scheduler/internal/device"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-scheduler/internal/schedule"
	_ "github.com/nerrad567/gray-logic-scheduler/migrations"
)

// mockChecker is a HealthChecker with a fixed answer.
type mockChecker struct{ err error }

func (m mockChecker) HealthCheck(context.Context) error { return m.err }

// failingStore fails every operation.
type failingStore struct{ schedule.Store }

func (failingStore) Append(context.Context, command.Command, time.Time) (int64, error) {
	return 0, schedule.ErrPersistence
}

func (failingStore) ListPending(context.Context) ([]schedule.Entry, error) {
	return nil, schedule.ErrPersistence
}

func (failingStore) Remove(context.Context, int64) error {
	return schedule.ErrPersistence
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// testEngine wires a real engine over an in-memory database.
func testEngine(t *testing.T, store schedule.Store) *automation.Engine {
	t.Helper()
	ctx := context.Background()

	if store == nil {
		db, err := database.Open(ctx, database.Config{Path: ":memory:", BusyTimeout: 5})
		if err != nil {
			t.Fatalf("opening test db: %v", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			t.Fatalf("migrating test db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		store = schedule.NewSQLiteStore(db.DB, time.UTC)
	}

	reg, err := device.NewRegistry(device.DefaultCatalog())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return automation.NewEngine(automation.Config{
		Devices:  reg,
		Executor: command.NewExecutor(reg),
		Store:    store,
		Location: time.UTC,
	})
}

// testServer creates a Server around engine with its own hub and registry.
func testServer(t *testing.T, engine Engine, health map[string]HealthChecker) (*Server, *prometheus.Registry) {
	t.Helper()

	log := testLogger()
	reg := prometheus.NewRegistry()
	metrics.New(reg).IncSubmitted()

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   log,
		Engine:   engine,
		Health:   health,
		Gatherer: reg,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(ctx)

	return srv, reg
}

func doRequest(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Engine: testEngine(t, nil)}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without engine should fail")
	}
}

func TestListDevices(t *testing.T) {
	srv, _ := testServer(t, testEngine(t, nil), nil)

	rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/devices", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got map[string]automation.DeviceView
	decodeBody(t, rec, &got)
	if len(got) != 4 {
		t.Fatalf("got %d devices, want 4", len(got))
	}
	th := got["thermostat_1"]
	if th.Name != "Thermostat" || th.Status != device.StatusOff || th.Temperature == nil || *th.Temperature != 22 {
		t.Errorf("thermostat_1 = %+v", th)
	}
	if got["light_1"].Temperature != nil {
		t.Error("light_1 should have no temperature")
	}
}

func TestControl(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantMessage string
		wantCode    string
	}{
		{"turn on", "application/json", `{"device_id":"light_1","action":"on"}`, http.StatusOK, "Living Room Light turned ON", ""},
		{"set temp number", "application/json", `{"device_id":"thermostat_1","action":"set_temp","value":25}`, http.StatusOK, "Thermostat set to 25°C", ""},
		{"set temp string", "application/json; charset=utf-8", `{"device_id":"thermostat_1","action":"set_temp","value":"19"}`, http.StatusOK, "Thermostat set to 19°C", ""},
		{"not json", "text/plain", `device_id=light_1`, http.StatusBadRequest, "Request must be JSON", ErrCodeBadRequest},
		{"malformed json", "application/json", `{"device_id":`, http.StatusBadRequest, "Request must be JSON", ErrCodeBadRequest},
		{"missing action", "application/json", `{"device_id":"light_1"}`, http.StatusBadRequest, "Missing required fields", ErrCodeBadRequest},
		{"missing device", "application/json", `{"action":"on"}`, http.StatusBadRequest, "Missing required fields", ErrCodeBadRequest},
		{"unknown device", "application/json", `{"device_id":"garage","action":"on"}`, http.StatusBadRequest, "Device not found", ErrCodeNotFound},
		{"lock a light", "application/json", `{"device_id":"light_1","action":"locked"}`, http.StatusBadRequest, "Invalid action for this device", ErrCodeValidation},
		{"bad temp", "application/json", `{"device_id":"thermostat_1","action":"set_temp","value":"warm"}`, http.StatusBadRequest, "Invalid temperature value", ErrCodeValidation},
		{"unknown action", "application/json", `{"device_id":"light_1","action":"dance"}`, http.StatusBadRequest, "Invalid action", ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, testEngine(t, nil), nil)

			rec := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/control", tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantStatus != http.StatusOK {
				var e Error
				decodeBody(t, rec, &e)
				if e.Status != "error" || e.Message != tt.wantMessage || e.Code != tt.wantCode {
					t.Errorf("error = %+v, want message %q code %q", e, tt.wantMessage, tt.wantCode)
				}
				return
			}

			var resp controlResponse
			decodeBody(t, rec, &resp)
			if resp.Status != "success" || resp.Message != tt.wantMessage {
				t.Errorf("response = %+v", resp)
			}
			if resp.DeviceState == nil {
				t.Fatal("device_state missing")
			}
		})
	}
}

func TestControl_DeviceStateReflectsChange(t *testing.T) {
	engine := testEngine(t, nil)
	srv, _ := testServer(t, engine, nil)
	router := srv.buildRouter()

	rec := doRequest(t, router, http.MethodPost, "/api/v1/control", "application/json",
		`{"device_id":"thermostat_1","action":"set_temp","value":"25"}`)
	var resp controlResponse
	decodeBody(t, rec, &resp)
	if resp.DeviceState.Status != device.StatusOn || *resp.DeviceState.Temperature != 25 {
		t.Errorf("device_state = %+v", resp.DeviceState)
	}

	th := engine.ListDevices(context.Background())["thermostat_1"]
	if th.Status != device.StatusOn || *th.Temperature != 25 {
		t.Errorf("registry thermostat_1 = %+v", th)
	}
}

func TestCreateSchedule(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{"minute precision", `{"device_id":"light_1","action":"on","schedule_time":"2099-01-01T07:30"}`, http.StatusOK, "Task scheduled successfully!"},
		{"with seconds", `{"device_id":"thermostat_1","action":"set_temp","value":21,"schedule_time":"2099-01-01T07:30:15"}`, http.StatusOK, "Task scheduled successfully!"},
		{"unknown device still accepted", `{"device_id":"garage","action":"on","schedule_time":"2099-01-01T07:30"}`, http.StatusOK, "Task scheduled successfully!"},
		{"missing time", `{"device_id":"light_1","action":"on"}`, http.StatusBadRequest, "Missing required fields"},
		{"past", `{"device_id":"light_1","action":"on","schedule_time":"2000-01-01T07:30"}`, http.StatusBadRequest, "Schedule time must be in the future"},
		{"bad format", `{"device_id":"light_1","action":"on","schedule_time":"tomorrow"}`, http.StatusBadRequest, "Invalid schedule time format. Use YYYY-MM-DDTHH:MM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, testEngine(t, nil), nil)

			rec := doRequest(t, srv.buildRouter(), http.MethodPost, "/api/v1/schedule", "application/json", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			var resp scheduleResponse
			decodeBody(t, rec, &resp)
			if resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
			if tt.wantStatus == http.StatusOK && resp.ID <= 0 {
				t.Errorf("id = %d, want positive", resp.ID)
			}
		})
	}
}

func TestListSchedules(t *testing.T) {
	srv, _ := testServer(t, testEngine(t, nil), nil)
	router := srv.buildRouter()

	rec := doRequest(t, router, http.MethodGet, "/api/v1/schedules", "", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list = %d %q, want 200 []", rec.Code, rec.Body.String())
	}

	for _, body := range []string{
		`{"device_id":"light_1","action":"on","schedule_time":"2099-01-02T07:30"}`,
		`{"device_id":"garage","action":"on","schedule_time":"2099-01-01T07:30"}`,
	} {
		if rec := doRequest(t, router, http.MethodPost, "/api/v1/schedule", "application/json", body); rec.Code != http.StatusOK {
			t.Fatalf("schedule %s: status %d", body, rec.Code)
		}
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/schedules", "", "")
	var got []automation.PendingView
	decodeBody(t, rec, &got)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].DeviceID != "garage" || got[0].DeviceName != "Unknown Device" {
		t.Errorf("first entry = %+v, want garage with Unknown Device", got[0])
	}
	if got[1].DeviceName != "Living Room Light" || got[1].DueAt != "2099-01-02T07:30:00" {
		t.Errorf("second entry = %+v", got[1])
	}
}

func TestCancelSchedule(t *testing.T) {
	srv, _ := testServer(t, testEngine(t, nil), nil)
	router := srv.buildRouter()

	rec := doRequest(t, router, http.MethodPost, "/api/v1/schedule", "application/json",
		`{"device_id":"fan_1","action":"on","schedule_time":"2099-01-01T07:30"}`)
	var created scheduleResponse
	decodeBody(t, rec, &created)

	for i := 0; i < 2; i++ {
		rec = doRequest(t, router, http.MethodDelete, "/api/v1/schedule/"+jsonInt(created.ID), "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("cancel #%d status = %d", i+1, rec.Code)
		}
		var resp messageResponse
		decodeBody(t, rec, &resp)
		if resp.Message != "Task "+jsonInt(created.ID)+" deleted." {
			t.Errorf("message = %q", resp.Message)
		}
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/schedules", "", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("schedules after cancel = %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/schedule/abc", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("non-numeric id status = %d, want 404", rec.Code)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestPersistenceErrors(t *testing.T) {
	srv, _ := testServer(t, testEngine(t, failingStore{}), nil)
	router := srv.buildRouter()

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/v1/schedule", `{"device_id":"light_1","action":"on","schedule_time":"2099-01-01T07:30"}`},
		{http.MethodGet, "/api/v1/schedules", ""},
		{http.MethodDelete, "/api/v1/schedule/1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			ct := ""
			if tt.body != "" {
				ct = "application/json"
			}
			rec := doRequest(t, router, tt.method, tt.path, ct, tt.body)
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv, _ := testServer(t, testEngine(t, nil), map[string]HealthChecker{"database": mockChecker{}})
		rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp HealthResponse
		decodeBody(t, rec, &resp)
		if resp.Status != "ok" || resp.Version != "test" || resp.Checks["database"] != "ok" {
			t.Errorf("health = %+v", resp)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		srv, _ := testServer(t, testEngine(t, nil), map[string]HealthChecker{
			"database": mockChecker{},
			"mqtt":     mockChecker{err: errors.New("not connected")},
		})
		rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		var resp HealthResponse
		decodeBody(t, rec, &resp)
		if resp.Status != "degraded" || resp.Checks["mqtt"] != "not connected" {
			t.Errorf("health = %+v", resp)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t, testEngine(t, nil), nil)
	rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "schedules_submitted_total 1") {
		t.Errorf("metrics body missing submitted counter:\n%s", rec.Body.String())
	}
}

func TestMiddleware(t *testing.T) {
	srv, _ := testServer(t, testEngine(t, nil), nil)
	srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}
	router := srv.buildRouter()

	t.Run("request id generated", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/v1/devices", "", "")
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("X-Request-ID not set")
		}
	})

	t.Run("request id kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
		req.Header.Set("X-Request-ID", "abc")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "abc" {
			t.Errorf("X-Request-ID = %q, want abc", got)
		}
	})

	t.Run("cors allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/control", nil)
		req.Header.Set("Origin", "http://panel.local")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "http://panel.local" {
			t.Error("allowed origin not echoed")
		}
	})

	t.Run("cors denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("disallowed origin echoed")
		}
	})

	t.Run("panic recovered", func(t *testing.T) {
		h := srv.accessLog(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
		var body Error
		decodeBody(t, rec, &body)
		if body.Code != ErrCodeInternal {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("body limit", func(t *testing.T) {
		big := `{"device_id":"light_1","action":"on","value":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
		rec := doRequest(t, router, http.MethodPost, "/api/v1/control", "application/json", big)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestServer_StartClose(t *testing.T) {
	srv, _ := testServer(t, testEngine(t, nil), nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// mockAudit records the last filter.
type mockAudit struct {
	filter audit.Filter
	err    error
}

func (m *mockAudit) List(_ context.Context, f audit.Filter) (*audit.ListResult, error) {
	m.filter = f
	if m.err != nil {
		return nil, m.err
	}
	return &audit.ListResult{
		Logs:  []audit.AuditLog{{ID: "a1", Action: "executed", EntityType: audit.EntitySchedule, EntityID: "3"}},
		Total: 1,
		Limit: f.Limit,
	}, nil
}

func TestListAuditLogs(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv, _ := testServer(t, testEngine(t, nil), nil)
		rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/audit", "", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("filters passed through", func(t *testing.T) {
		srv, _ := testServer(t, testEngine(t, nil), nil)
		m := &mockAudit{}
		srv.audit = m

		rec := doRequest(t, srv.buildRouter(), http.MethodGet,
			"/api/v1/audit?action=executed&entity_type=schedule&entity_id=3&limit=10&offset=5", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		want := audit.Filter{Action: "executed", EntityType: "schedule", EntityID: "3", Limit: 10, Offset: 5}
		if m.filter != want {
			t.Errorf("filter = %+v, want %+v", m.filter, want)
		}
		var got audit.ListResult
		decodeBody(t, rec, &got)
		if got.Total != 1 || got.Logs[0].ID != "a1" {
			t.Errorf("result = %+v", got)
		}
	})

	t.Run("bad paging", func(t *testing.T) {
		srv, _ := testServer(t, testEngine(t, nil), nil)
		srv.audit = &mockAudit{}
		rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/audit?limit=-1", "", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("store error", func(t *testing.T) {
		srv, _ := testServer(t, testEngine(t, nil), nil)
		srv.audit = &mockAudit{err: errors.New("boom")}
		rec := doRequest(t, srv.buildRouter(), http.MethodGet, "/api/v1/audit", "", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}
