package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/power-analytics/internal/auth"
	"github.com/nerrad567/power-analytics/internal/infrastructure/config"
	"github.com/nerrad567/power-analytics/internal/infrastructure/database"
	"github.com/nerrad567/power-analytics/internal/infrastructure/logging"
	"github.com/nerrad567/power-analytics/internal/reading"
	_ "github.com/nerrad567/power-analytics/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

// testServerWith builds a Server around svc without starting a listener.
func testServerWith(t *testing.T, svc ReadingService, sec config.SecurityConfig, checks map[string]HealthChecker) *Server {
	t.Helper()

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security:     sec,
		Logger:       testLogger(),
		Service:      svc,
		HealthChecks: checks,
		Version:      "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

// testServer creates a Server backed by an in-memory reading repository.
func testServer(t *testing.T) (*Server, *reading.Service) {
	t.Helper()
	svc := reading.NewService(reading.NewMemoryRepository())
	return testServerWith(t, svc, config.SecurityConfig{}, nil), svc
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body is not JSON: %v (%q)", err, w.Body.String())
	}
	return e
}

func decodeReadings(t *testing.T, w *httptest.ResponseRecorder) []reading.DTO {
	t.Helper()
	var got []reading.DTO
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not a reading list: %v (%q)", err, w.Body.String())
	}
	return got
}

func seedReadings(t *testing.T, svc *reading.Service, values ...int64) []reading.DTO {
	t.Helper()
	dtos := make([]reading.DTO, 0, len(values))
	for i, v := range values {
		dtos = append(dtos, reading.DTO{
			Value:    v,
			LoggedAt: time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	created, err := svc.Create(context.Background(), dtos)
	if err != nil {
		t.Fatalf("seeding readings: %v", err)
	}
	return created
}

// stubService fails or panics on every call and counts how often it was hit.
type stubService struct {
	err    error
	panics bool
	calls  int
}

func (s *stubService) hit() error {
	s.calls++
	if s.panics {
		panic("boom")
	}
	return s.err
}

func (s *stubService) List(context.Context, reading.Filter) ([]reading.DTO, error) {
	return nil, s.hit()
}

func (s *stubService) GetByID(context.Context, int64) (*reading.DTO, error) {
	return nil, s.hit()
}

func (s *stubService) Create(context.Context, []reading.DTO) ([]reading.DTO, error) {
	return nil, s.hit()
}

func (s *stubService) Update(context.Context, reading.DTO) (*reading.DTO, error) {
	return nil, s.hit()
}

func (s *stubService) DeleteByID(context.Context, int64) (bool, error) {
	return false, s.hit()
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	svc := reading.NewService(reading.NewMemoryRepository())

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Service: svc}},
		{"no service", Deps{Logger: testLogger()}},
		{"auth without secret", Deps{
			Logger:   testLogger(),
			Service:  svc,
			Security: config.SecurityConfig{JWT: config.JWTConfig{Enabled: true}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestNew_DefaultWebSocketPath(t *testing.T) {
	srv, err := New(Deps{Logger: testLogger(), Service: &stubService{}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if srv.wsCfg.Path != "/ws" {
		t.Errorf("ws path = %q, want /ws", srv.wsCfg.Path)
	}
	if srv.Hub() == nil {
		t.Error("Hub() = nil, want hub created by New")
	}
}

// ─── Health and Metrics ────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != healthOK || resp.Version != "test" {
		t.Errorf("health = %+v, want ok/test", resp)
	}
}

func TestHealth_Checks(t *testing.T) {
	svc := reading.NewService(reading.NewMemoryRepository())
	srv := testServerWith(t, svc, config.SecurityConfig{}, map[string]HealthChecker{
		"database": checkFunc(func(context.Context) error { return nil }),
		"mqtt":     checkFunc(func(context.Context) error { return errors.New("mqtt: not connected") }),
	})

	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want 503", w.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != healthDegraded {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Checks["database"] != healthOK {
		t.Errorf("checks[database] = %q, want ok", resp.Checks["database"])
	}
	if resp.Checks["mqtt"] != "mqtt: not connected" {
		t.Errorf("checks[mqtt] = %q, want error text", resp.Checks["mqtt"])
	}
}

func TestHealth_NotShadowedByID(t *testing.T) {
	srv, _ := testServer(t)

	// /health and /metrics are static routes and must never reach /{id}.
	for _, path := range []string{"/health", "/metrics"} {
		w := do(t, srv.Handler(), http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
	}
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	srv, svc := testServer(t)
	created := seedReadings(t, svc, 10)
	h := srv.Handler()

	do(t, h, http.MethodGet, fmt.Sprintf("/%d", *created[0].ID), "")

	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "http_requests_total") {
		t.Error("metrics output missing http_requests_total")
	}
	if !strings.Contains(body, `route="/{id}"`) {
		t.Error(`metrics output missing route="/{id}" label`)
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/health", "", "X-Request-ID", "client-123")
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.Handler(), http.MethodOptions, "/", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", "POST",
	)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv, _ := testServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"https://dashboard.example"}

	w := do(t, srv.Handler(), http.MethodGet, "/", "", "Origin", "https://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want none for disallowed origin", got)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/1/children", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if e := decodeError(t, w); e.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeNotFound)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.Handler(), http.MethodPatch, "/", `{}`)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH / status = %d, want 405", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	srv := testServerWith(t, &stubService{panics: true}, config.SecurityConfig{}, nil)

	w := do(t, srv.Handler(), http.MethodGet, "/", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if e := decodeError(t, w); e.Message != msgInternalError {
		t.Errorf("message = %q, want %q", e.Message, msgInternalError)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t)

	body := `[{"value":1,"loggedAt":"2026-01-01T00:00:00Z","pad":"` + strings.Repeat("x", maxRequestBodySize) + `"}]`
	w := do(t, srv.Handler(), http.MethodPost, "/", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

// ─── Reading CRUD ──────────────────────────────────────────────────

func TestListReadings_Empty(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", w.Body.String())
	}
}

func TestCreateThenGet(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/", `[
		{"value": 1500, "loggedAt": "2026-03-01T10:00:00Z"},
		{"value": 1750, "loggedAt": "2026-03-01T10:15:00Z"}
	]`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}

	created := decodeReadings(t, w)
	if len(created) != 2 {
		t.Fatalf("created %d readings, want 2", len(created))
	}
	if created[0].ID == nil || created[1].ID == nil || *created[0].ID == *created[1].ID {
		t.Fatalf("created ids = %v, %v, want two distinct ids", created[0].ID, created[1].ID)
	}

	for _, c := range created {
		g := do(t, h, http.MethodGet, fmt.Sprintf("/%d", *c.ID), "")
		if g.Code != http.StatusOK {
			t.Fatalf("GET /%d status = %d, want 200", *c.ID, g.Code)
		}
		var got reading.DTO
		if err := json.Unmarshal(g.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if *got.ID != *c.ID || got.Value != c.Value || !got.LoggedAt.Equal(c.LoggedAt) {
			t.Errorf("GET /%d = %+v, want %+v", *c.ID, got, c)
		}
	}
}

func TestCreateReadings_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "no body", body: "", wantMsg: msgNoReadings},
		{name: "null", body: "null", wantMsg: msgNoReadings},
		{name: "empty array", body: "[]", wantMsg: msgNoReadings},
		{name: "malformed", body: `[{"value":`, wantMsg: "invalid JSON body"},
		{name: "object instead of array", body: `{"value":1}`, wantMsg: "invalid JSON body"},
		{name: "bad timestamp", body: `[{"value":1,"loggedAt":"soon"}]`, wantMsg: "invalid JSON body"},
		{name: "trailing data", body: `[] []`, wantMsg: "invalid JSON body"},
		{name: "null element", body: `[{"value":1,"loggedAt":"2026-01-01"},null]`, wantMsg: "invalid JSON body"},
		{name: "loggedAt past year 9999 UTC", body: `[{"value":2,"loggedAt":"9999-12-31T23:00:00-02:00"}]`, wantMsg: "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, svc := testServer(t)

			w := do(t, srv.Handler(), http.MethodPost, "/", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if e := decodeError(t, w); !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}

			all, err := svc.List(context.Background(), reading.Filter{})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(all) != 0 {
				t.Errorf("%d readings stored after rejected POST, want 0", len(all))
			}
		})
	}
}

func TestGetReading_NotFound(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if e := decodeError(t, w); e.Message != msgReadingNotFound {
		t.Errorf("message = %q, want %q", e.Message, msgReadingNotFound)
	}
}

func TestInvalidID(t *testing.T) {
	stub := &stubService{}
	srv := testServerWith(t, stub, config.SecurityConfig{}, nil)
	h := srv.Handler()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := do(t, h, method, "/abc", `{"id":1,"value":1}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s /abc status = %d, want 400", method, w.Code)
		}
	}
	if stub.calls != 0 {
		t.Errorf("service called %d times for invalid ids, want 0", stub.calls)
	}
}

func TestUpdateReading(t *testing.T) {
	srv, svc := testServer(t)
	created := seedReadings(t, svc, 100)
	id := *created[0].ID

	body := fmt.Sprintf(`{"id":%d,"value":250,"loggedAt":"2026-05-05T05:05:05Z"}`, id)
	w := do(t, srv.Handler(), http.MethodPut, fmt.Sprintf("/%d", id), body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	got, err := svc.GetByID(context.Background(), id)
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	want := time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC)
	if got.Value != 250 || !got.LoggedAt.Equal(want) {
		t.Errorf("stored = %+v, want value 250 at %v", got, want)
	}
}

func TestUpdateReading_IDMismatchRejectedBeforeStorage(t *testing.T) {
	stub := &stubService{}
	srv := testServerWith(t, stub, config.SecurityConfig{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"different id", `{"id":2,"value":1,"loggedAt":"2026-01-01T00:00:00Z"}`},
		{"missing id", `{"value":1,"loggedAt":"2026-01-01T00:00:00Z"}`},
		{"null body", `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv.Handler(), http.MethodPut, "/1", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if stub.calls != 0 {
		t.Errorf("service called %d times, want 0", stub.calls)
	}
}

func TestUpdateReading_NotFound(t *testing.T) {
	srv, svc := testServer(t)

	w := do(t, srv.Handler(), http.MethodPut, "/77", `{"id":77,"value":1,"loggedAt":"2026-01-01T00:00:00Z"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	all, _ := svc.List(context.Background(), reading.Filter{}) //nolint:errcheck // memory repo
	if len(all) != 0 {
		t.Errorf("update of absent reading created %d rows", len(all))
	}
}

func TestDeleteReading(t *testing.T) {
	srv, svc := testServer(t)
	created := seedReadings(t, svc, 1, 2)
	h := srv.Handler()
	path := fmt.Sprintf("/%d", *created[0].ID)

	w := do(t, h, http.MethodDelete, path, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("first DELETE status = %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("204 body = %q, want empty", w.Body.String())
	}

	w = do(t, h, http.MethodDelete, path, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", w.Code)
	}

	all, err := svc.List(context.Background(), reading.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 || *all[0].ID != *created[1].ID {
		t.Errorf("remaining = %+v, want only reading %d", all, *created[1].ID)
	}
}

func TestListReadings_Filter(t *testing.T) {
	srv, svc := testServer(t)
	// Logged on Jan 1..5 with these values.
	seedReadings(t, svc, 10, 20, 30, 40, 50)
	h := srv.Handler()

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"no filter", "", []int64{10, 20, 30, 40, 50}},
		{"value range", "?minValue=20&maxValue=40", []int64{20, 30, 40}},
		{"case-insensitive names", "?MINVALUE=40&maxvalue=45", []int64{40}},
		{"inclusive date range", "?startDate=2026-01-02T00:00:00Z&endDate=2026-01-03T00:00:00Z", []int64{20, 30}},
		{"bare dates", "?startDate=2026-01-04", []int64{40, 50}},
		{"combined", "?startDate=2026-01-02&maxValue=30", []int64{20, 30}},
		{"empty value ignored", "?minValue=&maxValue=10", []int64{10}},
		{"unknown parameter ignored", "?colour=blue", []int64{10, 20, 30, 40, 50}},
		{"repeated name with same value", "?minValue=40&MinValue=40&minvalue=", []int64{40, 50}},
		{"no match", "?minValue=100", []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, "/"+tt.query, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
			}
			got := decodeReadings(t, w)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d readings, want %d", len(got), len(tt.want))
			}
			for i, v := range tt.want {
				if got[i].Value != v {
					t.Errorf("got[%d].Value = %d, want %d", i, got[i].Value, v)
				}
			}
		})
	}
}

func TestListReadings_InvalidFilter(t *testing.T) {
	stub := &stubService{}
	srv := testServerWith(t, stub, config.SecurityConfig{}, nil)

	queries := []string{
		"?startDate=yesterday",
		"?endDate=13/01/2026",
		"?minValue=ten",
		"?maxValue=1.5",
		"?startDate=9999-12-31T23:00:00-02:00",
		"?startDate=2026-01-01&startdate=bogus",
		"?minValue=1&MINVALUE=2",
		"?maxValue=5&maxValue=6",
	}
	for _, q := range queries {
		w := do(t, srv.Handler(), http.MethodGet, "/"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET /%s status = %d, want 400", q, w.Code)
		}
	}
	if stub.calls != 0 {
		t.Errorf("service called %d times, want 0", stub.calls)
	}
}

func TestStorageFailure(t *testing.T) {
	stub := &stubService{err: errors.New("disk I/O error")}
	srv := testServerWith(t, stub, config.SecurityConfig{}, nil)
	h := srv.Handler()

	requests := []struct{ method, path, body string }{
		{http.MethodGet, "/", ""},
		{http.MethodGet, "/1", ""},
		{http.MethodPost, "/", `[{"value":1,"loggedAt":"2026-01-01T00:00:00Z"}]`},
		{http.MethodPut, "/1", `{"id":1,"value":1,"loggedAt":"2026-01-01T00:00:00Z"}`},
		{http.MethodDelete, "/1", ""},
	}
	for _, rq := range requests {
		w := do(t, h, rq.method, rq.path, rq.body)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s %s status = %d, want 500", rq.method, rq.path, w.Code)
			continue
		}
		if e := decodeError(t, w); e.Message != msgInternalError || strings.Contains(w.Body.String(), "disk") {
			t.Errorf("%s %s leaked storage detail: %q", rq.method, rq.path, w.Body.String())
		}
	}
}

func TestEndToEnd_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite3, Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	svc := reading.NewService(reading.NewSQLiteRepository(db.DB))
	srv := testServerWith(t, svc, config.SecurityConfig{}, map[string]HealthChecker{"database": db})
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/", `[{"value":42,"loggedAt":"2026-02-02T02:02:02.123456789Z"}]`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	created := decodeReadings(t, w)

	w = do(t, h, http.MethodGet, fmt.Sprintf("/%d", *created[0].ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", w.Code)
	}
	var got reading.DTO
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Date(2026, 2, 2, 2, 2, 2, 123456789, time.UTC)
	if got.Value != 42 || !got.LoggedAt.Equal(want) {
		t.Errorf("GET = %+v, want value 42 at %v", got, want)
	}

	if w := do(t, h, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestCreateReadings_OutOfRangeTimestampKeepsListWorking(t *testing.T) {
	sqliteService := func(t *testing.T, driver string) *reading.Service {
		t.Helper()
		ctx := context.Background()
		db, err := database.Open(ctx, database.Config{Driver: driver, Path: database.MemoryPath})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if err := db.Migrate(ctx); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		return reading.NewService(reading.NewSQLiteRepository(db.DB))
	}

	tests := []struct {
		name string
		svc  func(t *testing.T) *reading.Service
	}{
		{"memory", func(*testing.T) *reading.Service { return reading.NewService(reading.NewMemoryRepository()) }},
		{"sqlite", func(t *testing.T) *reading.Service { return sqliteService(t, database.DriverSQLite) }},
		{"sqlite3", func(t *testing.T) *reading.Service { return sqliteService(t, database.DriverSQLite3) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testServerWith(t, tt.svc(t), config.SecurityConfig{}, nil).Handler()

			if w := do(t, h, http.MethodPost, "/", `[{"value":1,"loggedAt":"2026-01-01T00:00:00Z"}]`); w.Code != http.StatusCreated {
				t.Fatalf("POST valid status = %d, want 201", w.Code)
			}

			w := do(t, h, http.MethodPost, "/", `[{"value":2,"loggedAt":"9999-12-31T23:00:00-02:00"}]`)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("POST year 10000 status = %d, want 400 (%s)", w.Code, w.Body.String())
			}

			w = do(t, h, http.MethodGet, "/", "")
			if w.Code != http.StatusOK {
				t.Fatalf("GET status = %d, want 200 (%s)", w.Code, w.Body.String())
			}
			if got := decodeReadings(t, w); len(got) != 1 || got[0].Value != 1 {
				t.Errorf("GET = %+v, want only the valid reading", got)
			}
		})
	}
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, []reading.DTO{{Value: 1, LoggedAt: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)}})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if e := decodeError(t, w); e.Code != ErrCodeInternal || e.Message != msgInternalError {
		t.Errorf("error = %+v, want generic internal error", e)
	}
}

// ─── Authentication ────────────────────────────────────────────────

func authServer(t *testing.T) (*Server, *reading.Service) {
	t.Helper()
	svc := reading.NewService(reading.NewMemoryRepository())
	sec := config.SecurityConfig{JWT: config.JWTConfig{Enabled: true, Secret: testSecret, Issuer: "poweranalytics"}}
	return testServerWith(t, svc, sec, nil), svc
}

func testToken(t *testing.T, opts auth.TokenOptions) string {
	t.Helper()
	token, err := auth.GenerateAccessToken("meter-42", "meter@example.com", opts)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return token
}

func TestAuth_RequiresToken(t *testing.T) {
	srv, _ := authServer(t)

	w := do(t, srv.Handler(), http.MethodGet, "/", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != challengeBearer {
		t.Errorf("WWW-Authenticate = %q, want %q", got, challengeBearer)
	}
}

func TestAuth_RejectsInvalidTokens(t *testing.T) {
	srv, _ := authServer(t)
	h := srv.Handler()

	wrongIssuer := testToken(t, auth.TokenOptions{Secret: testSecret, Issuer: "someone-else"})
	wrongSecret := testToken(t, auth.TokenOptions{Secret: "another-secret-that-is-32-characters", Issuer: "poweranalytics"})

	tests := []struct {
		name   string
		header string
	}{
		{"garbage", "Bearer not-a-jwt"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"wrong issuer", "Bearer " + wrongIssuer},
		{"wrong secret", "Bearer " + wrongSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, "/", "", "Authorization", tt.header)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
				t.Errorf("WWW-Authenticate = %q, want Bearer challenge", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAuth_ValidTokenBehavesLikeNoAuth(t *testing.T) {
	srv, svc := authServer(t)
	seedReadings(t, svc, 5)
	token := testToken(t, auth.TokenOptions{Secret: testSecret, Issuer: "poweranalytics"})

	w := do(t, srv.Handler(), http.MethodGet, "/", "", "Authorization", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if got := decodeReadings(t, w); len(got) != 1 || got[0].Value != 5 {
		t.Errorf("readings = %+v, want the seeded reading", got)
	}

	// Same request against an unauthenticated server gives the same body.
	open := testServerWith(t, svc, config.SecurityConfig{}, nil)
	w2 := do(t, open.Handler(), http.MethodGet, "/", "")
	if w.Body.String() != w2.Body.String() {
		t.Errorf("authenticated body %q differs from open body %q", w.Body.String(), w2.Body.String())
	}
}

func TestAuth_QueryTokenOnlyOnWebSocket(t *testing.T) {
	srv, _ := authServer(t)
	token := testToken(t, auth.TokenOptions{Secret: testSecret, Issuer: "poweranalytics"})

	w := do(t, srv.Handler(), http.MethodGet, "/?token="+token, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET /?token= status = %d, want 401", w.Code)
	}
}

func TestAuth_OperationalRoutesOpen(t *testing.T) {
	srv, _ := authServer(t)

	for _, path := range []string{"/health", "/metrics"} {
		w := do(t, srv.Handler(), http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200 without token", path, w.Code)
		}
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		query      string
		allowQuery bool
		want       string
		wantErr    bool
	}{
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "header wins over query", header: "Bearer abc", query: "xyz", allowQuery: true, want: "abc"},
		{name: "query allowed", query: "xyz", allowQuery: true, want: "xyz"},
		{name: "query not allowed", query: "xyz", wantErr: true},
		{name: "missing", wantErr: true},
		{name: "no scheme", header: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			r := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := tokenFromRequest(r, tt.allowQuery)
			if (err != nil) != tt.wantErr {
				t.Fatalf("tokenFromRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("tokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	addr := srv.Addr()
	if addr == "" {
		t.Fatal("Addr() empty after Start")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() after Start = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() = nil, want error")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	if _, err := http.Get("http://" + addr + "/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first, _ := testServer(t)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { first.Close() })

	_, port, _ := strings.Cut(first.Addr(), ":")
	second, _ := testServer(t)
	fmt.Sscanf(port, "%d", &second.cfg.Port) //nolint:errcheck // port from a bound listener

	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Fatal("Start() on a bound port = nil, want error")
	}
}
