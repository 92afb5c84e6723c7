package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zapponejosh/teller/internal/calendar"
	"github.com/zapponejosh/teller/internal/config"
	"github.com/zapponejosh/teller/internal/database"
)

// =============================================================================
// TEST SETUP HELPERS
// =============================================================================

const testAPIKey = "test-key-for-journal-endpoints"

// testEnv sets up a complete test environment with database, config, and router.
type testEnv struct {
	db       *database.DB
	cfg      *config.Config
	handlers *Handlers
	router   http.Handler
}

// setupTest creates a fresh test environment with base palace 巳.
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(database.DefaultConfig(":memory:"), log)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	cfg := &config.Config{
		Port:             8080,
		Env:              config.EnvProduction,
		DatabasePath:     ":memory:",
		APIKey:           testAPIKey,
		LogLevel:         "error",
		LogFormat:        "text",
		BasePalace:       "巳",
		YearBranchSource: string(calendar.YearBranchNatal),
		MaxRangeDays:     31,
	}

	engine := calendar.NewEngine(calendar.NewLibraryResolver(), calendar.MustDefaultTables(), calendar.YearBranchNatal)
	handlers := NewHandlers(db, engine, cfg, log)

	return &testEnv{
		db:       db,
		cfg:      cfg,
		handlers: handlers,
		router:   SetupRoutes(handlers, cfg, log),
	}
}

// do sends a request through the full router.
func (env *testEnv) do(t *testing.T, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, makeRequest(t, method, path, body, apiKey))
	return rr
}

// makeRequest is a helper to make HTTP requests with optional API key.
func makeRequest(t *testing.T, method, path string, body any, apiKey string) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			bodyReader = strings.NewReader(s)
		} else {
			jsonData, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal request body: %v", err)
			}
			bodyReader = bytes.NewReader(jsonData)
		}
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return req
}

// envelope mirrors Response with the data left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

// parseResponse decodes the envelope and, if v is non-nil, its data.
func parseResponse(t *testing.T, rr *httptest.ResponseRecorder, v any) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("parse response: %v\nbody: %s", err, rr.Body.String())
	}
	if v != nil {
		if err := json.Unmarshal(env.Data, v); err != nil {
			t.Fatalf("parse response data: %v\nbody: %s", err, rr.Body.String())
		}
	}
	return env
}

// expectError checks the status and error code of a failed request.
func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d\nbody: %s", rr.Code, status, rr.Body.String())
	}
	env := parseResponse(t, rr, nil)
	if env.Success || env.Error == nil {
		t.Fatalf("expected error envelope, got %s", rr.Body.String())
	}
	if env.Error.Code != code {
		t.Errorf("error code = %q, want %q (%s)", env.Error.Code, code, env.Error.Message)
	}
}

// =============================================================================
// PUBLIC ENDPOINTS
// =============================================================================

func TestHealthCheck(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var data struct {
		Status        string               `json:"status"`
		SchemaVersion int                  `json:"schema_version"`
		Records       database.RecordStats `json:"records"`
	}
	parseResponse(t, rr, &data)
	if data.Status != "healthy" || data.Records.TotalDays != 0 {
		t.Errorf("health = %+v", data)
	}
	if data.SchemaVersion != 2 {
		t.Errorf("schema_version = %d, want 2", data.SchemaVersion)
	}
}

func TestHealthCheck_UnmigratedDatabase(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.Open(database.DefaultConfig(":memory:"), log)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := setupTest(t)
	h := NewHandlers(db, env.handlers.engine, env.cfg, log)
	router := SetupRoutes(h, env.cfg, log)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, makeRequest(t, http.MethodGet, "/health", nil, ""))
	expectError(t, rr, http.StatusServiceUnavailable, "HEALTH_CHECK_FAILED")
}

func TestRequestIDHeader(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/health", nil, "")
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("response is missing X-Request-ID")
	}

	const id = "0b6c2f0e-7d0a-4c43-9a0e-0c7a1f9a6a11"
	req := makeRequest(t, http.MethodGet, "/health", nil, "")
	req.Header.Set(RequestIDHeader, id)
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}
}

func TestGetDay(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/api/v1/days/2026-01-20", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var rec calendar.DailyRecord
	parseResponse(t, rr, &rec)

	if rec.LunarLabel != "乙巳十二月初二" {
		t.Errorf("LunarLabel = %q, want 乙巳十二月初二", rec.LunarLabel)
	}
	if rec.DayStem.String() != "甲" || rec.DayBranch != calendar.Wu {
		t.Errorf("day pillar = %s%s, want 甲午", rec.DayStem, rec.DayBranch)
	}
	if rec.FlowMonthPalace != calendar.Shen || rec.FlowDayPalace != calendar.You {
		t.Errorf("palaces = %s/%s, want 申/酉", rec.FlowMonthPalace, rec.FlowDayPalace)
	}
	if rec.FourTransformations != "廉破武陽" {
		t.Errorf("FourTransformations = %q, want 廉破武陽", rec.FourTransformations)
	}
	if rec.BasePalace != calendar.Si || rec.YearBranchSource != calendar.YearBranchNatal {
		t.Errorf("base/source = %s/%s, want 巳/natal", rec.BasePalace, rec.YearBranchSource)
	}
}

func TestGetDay_QueryOverrides(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/api/v1/days/2026-01-20?base=%E6%88%8C", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	var rec calendar.DailyRecord
	parseResponse(t, rr, &rec)
	if rec.BasePalace != calendar.Xu || rec.FlowDayPalace != calendar.Yin {
		t.Errorf("base 戌: base %s palace %s, want 戌/寅", rec.BasePalace, rec.FlowDayPalace)
	}

	// On 2026-02-10 the BaZi year is already 丙午 while the lunar year is 乙巳.
	rr = env.do(t, http.MethodGet, "/api/v1/days/2026-02-10?source=bazi", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	parseResponse(t, rr, &rec)
	if rec.YearBranch != calendar.Wu || rec.YearBranchSource != calendar.YearBranchBazi {
		t.Errorf("source bazi: year branch %s source %s, want 午/bazi", rec.YearBranch, rec.YearBranchSource)
	}
}

func TestGetDay_Errors(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"bad date", "/api/v1/days/2026-13-01", http.StatusBadRequest, "BAD_REQUEST"},
		{"out of range", "/api/v1/days/1850-06-01", http.StatusBadRequest, "DATE_OUT_OF_RANGE"},
		{"bad base", "/api/v1/days/2026-01-20?base=X", http.StatusBadRequest, "INVALID_BRANCH"},
		{"bad source", "/api/v1/days/2026-01-20?source=solar", http.StatusBadRequest, "INVALID_YEAR_BRANCH_SOURCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, http.MethodGet, tt.path, nil, ""), tt.status, tt.code)
		})
	}
}

func TestGetToday(t *testing.T) {
	env := setupTest(t)
	env.handlers.now = func() time.Time {
		return time.Date(2026, time.January, 20, 21, 30, 0, 0, time.UTC)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/days/today", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	var rec calendar.DailyRecord
	parseResponse(t, rr, &rec)
	if rec.Date != "2026-01-20" {
		t.Errorf("Date = %s, want 2026-01-20", rec.Date)
	}
}

func TestGetDayRange(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/api/v1/days?start=2026-01-18&end=2026-01-22", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var data struct {
		Start   string                 `json:"start"`
		End     string                 `json:"end"`
		Records []calendar.DailyRecord `json:"records"`
	}
	parseResponse(t, rr, &data)
	if len(data.Records) != 5 {
		t.Fatalf("len(records) = %d, want 5", len(data.Records))
	}
	for i, want := range []string{"2026-01-18", "2026-01-19", "2026-01-20", "2026-01-21", "2026-01-22"} {
		if data.Records[i].Date != want {
			t.Errorf("records[%d].Date = %s, want %s", i, data.Records[i].Date, want)
		}
	}
	if data.Records[2].FlowDayPalace != calendar.You {
		t.Errorf("2026-01-20 palace = %s, want 酉", data.Records[2].FlowDayPalace)
	}
}

func TestGetDayRange_Errors(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name string
		path string
	}{
		{"missing end", "/api/v1/days?start=2026-01-01"},
		{"reversed", "/api/v1/days?start=2026-01-10&end=2026-01-01"},
		{"too long", "/api/v1/days?start=2026-01-01&end=2026-02-01"},
		{"bad start", "/api/v1/days?start=20260101&end=2026-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, http.MethodGet, tt.path, nil, ""), http.StatusBadRequest, "BAD_REQUEST")
		})
	}
}

func TestGetFlowPalace(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name      string
		query     string
		wantMonth calendar.Branch
		wantDay   calendar.Branch
	}{
		{"month and day", "year_branch=%E5%B7%B3&month=12&day=2", calendar.Shen, calendar.You},
		{"label", "year_branch=%E5%B7%B3&label=%E4%B9%99%E5%B7%B3%E5%8D%81%E4%BA%8C%E6%9C%88%E5%88%9D%E4%BA%8C", calendar.Shen, calendar.You},
		{"first day is month palace", "year_branch=%E5%AD%90&month=1&day=1", calendar.Chen, calendar.Chen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/v1/flow-palace?"+tt.query, nil, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
			}
			var got FlowPalaceResult
			parseResponse(t, rr, &got)
			if got.FlowMonthPalace != tt.wantMonth || got.FlowDayPalace != tt.wantDay {
				t.Errorf("palaces = %s/%s, want %s/%s", got.FlowMonthPalace, got.FlowDayPalace, tt.wantMonth, tt.wantDay)
			}
		})
	}
}

func TestGetFlowPalace_Errors(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"missing year branch", "month=1&day=1", "INVALID_BRANCH"},
		{"missing month", "year_branch=%E5%AD%90&day=1", "BAD_REQUEST"},
		{"month 13", "year_branch=%E5%AD%90&month=13&day=1", "LUNAR_MONTH_OUT_OF_RANGE"},
		{"day 31", "year_branch=%E5%AD%90&month=1&day=31", "LUNAR_DAY_OUT_OF_RANGE"},
		{"unparsable label", "year_branch=%E5%AD%90&label=hello", "UNPARSABLE_LUNAR_LABEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, http.MethodGet, "/api/v1/flow-palace?"+tt.query, nil, ""), http.StatusBadRequest, tt.code)
		})
	}
}

func TestGetFourTransformations(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/api/v1/four-transformations/%E7%94%B2", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	var data struct {
		Stem  string           `json:"stem"`
		Code  string           `json:"code"`
		Stars calendar.StarSet `json:"stars"`
	}
	parseResponse(t, rr, &data)
	if data.Stem != "甲" || data.Code != "廉破武陽" || data.Stars.Adversity != "太陽" {
		t.Errorf("four transformations = %+v", data)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/v1/four-transformations/X", nil, ""), http.StatusBadRequest, "INVALID_STEM")
}

func TestParseLunarLabel(t *testing.T) {
	env := setupTest(t)

	// 閏四月十五
	rr := env.do(t, http.MethodGet, "/api/v1/lunar/parse?label=%E9%96%8F%E5%9B%9B%E6%9C%88%E5%8D%81%E4%BA%94", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	var data struct {
		Month     int  `json:"month"`
		Day       int  `json:"day"`
		LeapMonth bool `json:"leap_month"`
	}
	parseResponse(t, rr, &data)
	if data.Month != 4 || data.Day != 15 || !data.LeapMonth {
		t.Errorf("parse = %+v, want month 4 day 15 leap", data)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/v1/lunar/parse", nil, ""), http.StatusBadRequest, "BAD_REQUEST")
}

func TestListSolarTerms(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/api/v1/solar-terms", nil, "")
	var terms []calendar.SolarTerm
	parseResponse(t, rr, &terms)
	if len(terms) != calendar.SolarTermCount {
		t.Errorf("len(terms) = %d, want %d", len(terms), calendar.SolarTermCount)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := setupTest(t)

	expectError(t, env.do(t, http.MethodGet, "/api/v1/nope", nil, ""), http.StatusNotFound, "NOT_FOUND")
	expectError(t, env.do(t, http.MethodPost, "/api/v1/solar-terms", nil, ""), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuthMiddleware(t *testing.T) {
	env := setupTest(t)

	expectError(t, env.do(t, http.MethodGet, "/api/v1/journal/2026-01-20", nil, ""), http.StatusUnauthorized, "UNAUTHORIZED")
	expectError(t, env.do(t, http.MethodGet, "/api/v1/journal/2026-01-20", nil, "wrong"), http.StatusUnauthorized, "UNAUTHORIZED")

	// Authenticated: passes through to the handler.
	expectError(t, env.do(t, http.MethodGet, "/api/v1/journal/2026-01-20", nil, testAPIKey), http.StatusNotFound, "NOT_FOUND")
}

func TestAuthMiddleware_DevelopmentWithoutKey(t *testing.T) {
	env := setupTest(t)
	env.cfg.Env = config.EnvDevelopment
	env.cfg.APIKey = ""

	rr := env.do(t, http.MethodGet, "/api/v1/journal?start=2026-01-01&end=2026-01-31", nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 in development without a key", rr.Code)
	}
}

// =============================================================================
// STORED RECORDS
// =============================================================================

func TestGenerateAndListRecords(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodPost, "/api/v1/records/generate",
		GenerateRequest{Start: "2026-01-18", End: "2026-01-22"}, testAPIKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body: %s", rr.Code, rr.Body.String())
	}
	var gen struct {
		Generated int `json:"generated"`
	}
	parseResponse(t, rr, &gen)
	if gen.Generated != 5 {
		t.Errorf("generated = %d, want 5", gen.Generated)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/records?start=2026-01-01&end=2026-01-31", nil, testAPIKey)
	var records []database.StoredRecord
	parseResponse(t, rr, &records)
	if len(records) != 5 || records[0].Date != "2026-01-18" {
		t.Fatalf("records = %d, first %+v", len(records), records)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/records/2026-01-20", nil, testAPIKey)
	var rec database.StoredRecord
	parseResponse(t, rr, &rec)
	if rec.FlowDayPalace != calendar.You || rec.CreatedAt.IsZero() {
		t.Errorf("stored record = %+v", rec)
	}

	expectError(t, env.do(t, http.MethodGet, "/api/v1/records/2026-03-01", nil, testAPIKey), http.StatusNotFound, "NOT_FOUND")
}

func TestGenerateRecords_Overrides(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodPost, "/api/v1/records/generate",
		GenerateRequest{Start: "2026-01-20", End: "2026-01-20", Base: "戌", Source: "natal"}, testAPIKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	rec, err := env.db.GetDailyRecord(context.Background(), "2026-01-20")
	if err != nil {
		t.Fatal(err)
	}
	if rec.BasePalace != calendar.Xu || rec.FlowDayPalace != calendar.Yin {
		t.Errorf("stored base %s palace %s, want 戌/寅", rec.BasePalace, rec.FlowDayPalace)
	}
}

func TestGenerateRecords_Errors(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"malformed body", "{", "BAD_REQUEST"},
		{"unknown field", `{"start":"2026-01-01","end":"2026-01-02","extra":1}`, "BAD_REQUEST"},
		{"range too long", GenerateRequest{Start: "2026-01-01", End: "2026-03-01"}, "BAD_REQUEST"},
		{"bad base", GenerateRequest{Start: "2026-01-01", End: "2026-01-02", Base: "X"}, "INVALID_BRANCH"},
		{"bad source", GenerateRequest{Start: "2026-01-01", End: "2026-01-02", Source: "x"}, "INVALID_YEAR_BRANCH_SOURCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/v1/records/generate", tt.body, testAPIKey)
			expectError(t, rr, http.StatusBadRequest, tt.code)
		})
	}

	n, err := env.db.CountDailyRecords(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("failed requests stored %d records", n)
	}
}

// =============================================================================
// JOURNAL
// =============================================================================

func TestJournalDraft(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/api/v1/journal/2026-01-20/draft", nil, testAPIKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}
	var draft database.JournalEntry
	parseResponse(t, rr, &draft)

	want := "廉貞祿 @官祿：\n破軍權 @遷移：\n武曲科 @財帛：\n太陽忌 @子女："
	if draft.TransformationSummary != want {
		t.Errorf("summary = %q, want %q", draft.TransformationSummary, want)
	}
	if draft.Score != database.ScoreNeutral || draft.Work != database.DefaultRating {
		t.Errorf("draft defaults = %s/%d", draft.Score, draft.Work)
	}

	// A draft is not stored.
	if _, err := env.db.GetJournalEntry(context.Background(), "2026-01-20"); !database.IsNotFound(err) {
		t.Errorf("draft was stored: %v", err)
	}

	// Once an entry exists the draft returns it.
	saved := database.NewJournalEntry("2026-01-20")
	saved.TransformationSummary = "edited"
	if err := env.db.UpsertJournalEntry(context.Background(), saved); err != nil {
		t.Fatal(err)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/journal/2026-01-20/draft", nil, testAPIKey)
	parseResponse(t, rr, &draft)
	if draft.TransformationSummary != "edited" {
		t.Errorf("summary = %q, want the stored entry", draft.TransformationSummary)
	}
}

func TestJournalLifecycle(t *testing.T) {
	env := setupTest(t)

	// Create
	rr := env.do(t, http.MethodPost, "/api/v1/journal", map[string]any{
		"date":     "2026-01-20",
		"score":    "好",
		"work":     3,
		"emotions": []string{"平靜"},
	}, testAPIKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", rr.Code, rr.Body.String())
	}
	var entry database.JournalEntry
	parseResponse(t, rr, &entry)
	if entry.Score != database.ScoreGood || entry.Work != 3 || entry.Health != database.DefaultRating {
		t.Errorf("created = %+v", entry)
	}

	// Duplicate create
	rr = env.do(t, http.MethodPost, "/api/v1/journal", map[string]any{"date": "2026-01-20"}, testAPIKey)
	expectError(t, rr, http.StatusConflict, "DUPLICATE")

	// Replace; omitted fields fall back to defaults and the path date wins.
	rr = env.do(t, http.MethodPut, "/api/v1/journal/2026-01-20", map[string]any{
		"date":  "1999-01-01",
		"score": "不好",
		"notes": "下午頭痛",
	}, testAPIKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d, body: %s", rr.Code, rr.Body.String())
	}
	parseResponse(t, rr, &entry)
	if entry.Date != "2026-01-20" || entry.Score != database.ScoreBad || entry.Work != database.DefaultRating {
		t.Errorf("replaced = %+v", entry)
	}
	if entry.Notes == nil || *entry.Notes != "下午頭痛" {
		t.Errorf("notes = %v", entry.Notes)
	}

	// List
	rr = env.do(t, http.MethodGet, "/api/v1/journal?start=2026-01-01&end=2026-01-31", nil, testAPIKey)
	var entries []database.JournalEntry
	parseResponse(t, rr, &entries)
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1", len(entries))
	}

	// Delete
	rr = env.do(t, http.MethodDelete, "/api/v1/journal/2026-01-20", nil, testAPIKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	expectError(t, env.do(t, http.MethodDelete, "/api/v1/journal/2026-01-20", nil, testAPIKey), http.StatusNotFound, "NOT_FOUND")
}

func TestPutJournal_Invalid(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"rating too high", map[string]any{"energy": 5}},
		{"unknown score", map[string]any{"score": "很好"}},
		{"too many emotions", map[string]any{"emotions": []string{"a", "b", "c", "d"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPut, "/api/v1/journal/2026-01-20", tt.body, testAPIKey)
			expectError(t, rr, http.StatusBadRequest, "INVALID_JOURNAL_ENTRY")
		})
	}
}

func TestGetHistory(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodPost, "/api/v1/records/generate",
		GenerateRequest{Start: "2026-01-19", End: "2026-01-21"}, testAPIKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("generate status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodPut, "/api/v1/journal/2026-01-20", map[string]any{"score": "好"}, testAPIKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/history?start=2026-01-01&end=2026-01-31", nil, testAPIKey)
	var history []database.HistoryEntry
	parseResponse(t, rr, &history)
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	if history[0].Journal != nil || history[1].Journal == nil || history[1].Journal.Score != database.ScoreGood {
		t.Errorf("history journals = %v %v %v", history[0].Journal, history[1].Journal, history[2].Journal)
	}
}
