package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zapponejosh/teller/internal/calendar"
	"github.com/zapponejosh/teller/internal/config"
	"github.com/zapponejosh/teller/internal/database"
	"github.com/zapponejosh/teller/internal/logger"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	db     *database.DB
	engine *calendar.Engine
	cfg    *config.Config
	logger *slog.Logger

	// now is time.Now outside tests.
	now func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *database.DB, engine *calendar.Engine, cfg *config.Config, log *slog.Logger) *Handlers {
	return &Handlers{
		db:     db,
		engine: engine,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

// log returns the handler logger tagged with the request ID.
func (h *Handlers) log(ctx context.Context) *slog.Logger {
	if id := logger.RequestID(ctx); id != "" {
		return h.logger.With(slog.String("request_id", id))
	}
	return h.logger
}

// fail writes a client error for known domain errors and a logged 500 otherwise.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if WriteDomainError(w, err) {
		return
	}
	h.log(r.Context()).Error(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	WriteInternalError(w, msg)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	schema, err := h.db.Health(ctx)
	if err != nil {
		h.log(ctx).Warn("health check failed", slog.Any("error", err))
		WriteError(w, http.StatusServiceUnavailable, "Database unhealthy", "HEALTH_CHECK_FAILED")
		return
	}

	stats, err := h.db.GetRecordStats(ctx)
	if err != nil {
		h.log(ctx).Warn("health check stats failed", slog.Any("error", err))
		WriteError(w, http.StatusServiceUnavailable, "Database unhealthy", "HEALTH_CHECK_FAILED")
		return
	}

	WriteSuccess(w, map[string]any{
		"status":             "healthy",
		"schema_version":     schema.SchemaVersion,
		"year_branch_source": h.engine.Source(),
		"records":            stats,
	})
}

// =============================================================================
// Computed days
// =============================================================================

// dayOptions reads the optional base and source query parameters, falling
// back to the configured natal palace and year branch source.
func (h *Handlers) dayOptions(r *http.Request) (*calendar.Engine, calendar.Branch, error) {
	q := r.URL.Query()

	base := h.cfg.BaseBranch()
	if s := q.Get("base"); s != "" {
		b, err := calendar.ParseBranch(s)
		if err != nil {
			return nil, 0, err
		}
		base = b
	}

	engine := h.engine
	if s := q.Get("source"); s != "" {
		src, err := calendar.ParseYearBranchSource(s)
		if err != nil {
			return nil, 0, err
		}
		engine = engine.WithSource(src)
	}

	return engine, base, nil
}

// GetToday handles GET /api/v1/days/today
func (h *Handlers) GetToday(w http.ResponseWriter, r *http.Request) {
	engine, base, err := h.dayOptions(r)
	if err != nil {
		h.fail(w, r, "Invalid query parameters", err)
		return
	}

	rec, err := engine.ComputeDailyRecord(h.now(), base)
	if err != nil {
		h.fail(w, r, "Failed to compute today's record", err)
		return
	}

	WriteSuccess(w, rec)
}

// GetDay handles GET /api/v1/days/{date}
func (h *Handlers) GetDay(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	engine, base, err := h.dayOptions(r)
	if err != nil {
		h.fail(w, r, "Invalid query parameters", err)
		return
	}

	rec, err := engine.ComputeDailyRecord(date, base)
	if err != nil {
		h.fail(w, r, "Failed to compute record", err)
		return
	}

	WriteSuccess(w, rec)
}

// GetDayRange handles GET /api/v1/days?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handlers) GetDayRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, h.cfg.MaxRangeDays)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	engine, base, err := h.dayOptions(r)
	if err != nil {
		h.fail(w, r, "Invalid query parameters", err)
		return
	}

	records, err := engine.ComputeRange(r.Context(), start, end, base)
	if err != nil {
		h.fail(w, r, "Failed to compute records", err)
		return
	}

	WriteSuccess(w, map[string]any{
		"start":   calendar.FormatDate(start),
		"end":     calendar.FormatDate(end),
		"records": records,
	})
}

// =============================================================================
// Calculators
// =============================================================================

// FlowPalaceResult is the response of the flow palace calculator.
type FlowPalaceResult struct {
	YearBranch      calendar.Branch `json:"year_branch"`
	LunarMonth      int             `json:"lunar_month"`
	LunarDay        int             `json:"lunar_day"`
	FlowMonth       string          `json:"flow_month"`
	FlowMonthPalace calendar.Branch `json:"flow_month_palace"`
	FlowDayPalace   calendar.Branch `json:"flow_day_palace"`
}

// GetFlowPalace handles GET /api/v1/flow-palace?year_branch=巳&month=12&day=2
// or ?year_branch=巳&label=乙巳十二月初二
func (h *Handlers) GetFlowPalace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	yearBranch, err := calendar.ParseBranch(q.Get("year_branch"))
	if err != nil {
		h.fail(w, r, "Invalid year branch", err)
		return
	}

	var month, day int
	if label := q.Get("label"); label != "" {
		month, day, err = calendar.ParseLunarLabel(label)
		if err != nil {
			h.fail(w, r, "Invalid lunar label", err)
			return
		}
	} else {
		month, err = strconv.Atoi(q.Get("month"))
		if err != nil {
			WriteBadRequest(w, "Either label or integer month and day parameters are required")
			return
		}
		day, err = strconv.Atoi(q.Get("day"))
		if err != nil {
			WriteBadRequest(w, "Either label or integer month and day parameters are required")
			return
		}
	}

	monthPalace, dayPalace, err := calendar.FlowPalaces(yearBranch, month, day)
	if err != nil {
		h.fail(w, r, "Failed to compute flow palace", err)
		return
	}
	flowMonth, err := calendar.FlowMonthName(month)
	if err != nil {
		h.fail(w, r, "Failed to compute flow palace", err)
		return
	}

	WriteSuccess(w, FlowPalaceResult{
		YearBranch:      yearBranch,
		LunarMonth:      month,
		LunarDay:        day,
		FlowMonth:       flowMonth,
		FlowMonthPalace: monthPalace,
		FlowDayPalace:   dayPalace,
	})
}

// GetFourTransformations handles GET /api/v1/four-transformations/{stem}
func (h *Handlers) GetFourTransformations(w http.ResponseWriter, r *http.Request) {
	stem, err := calendar.ParseStem(pathParam(r, "stem"))
	if err != nil {
		h.fail(w, r, "Invalid stem", err)
		return
	}

	tables := h.engine.Tables()
	stars, _ := tables.Transformations(stem)

	WriteSuccess(w, map[string]any{
		"stem":  stem,
		"code":  tables.FourTransformations(stem),
		"stars": stars,
	})
}

// ParseLunarLabel handles GET /api/v1/lunar/parse?label=乙巳十一月十三
func (h *Handlers) ParseLunarLabel(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	if label == "" {
		WriteBadRequest(w, "label parameter is required")
		return
	}

	month, day, err := calendar.ParseLunarLabel(label)
	if err != nil {
		h.fail(w, r, "Invalid lunar label", err)
		return
	}

	WriteSuccess(w, map[string]any{
		"label":      label,
		"month":      month,
		"day":        day,
		"leap_month": calendar.IsLeapLabel(label),
	})
}

// ListSolarTerms handles GET /api/v1/solar-terms
func (h *Handlers) ListSolarTerms(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.engine.Tables().SolarTerms())
}

// =============================================================================
// Stored records
// =============================================================================

// ListRecords handles GET /api/v1/records?start=&end=
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, 0)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	records, err := h.db.GetDailyRecordsByRange(r.Context(), calendar.FormatDate(start), calendar.FormatDate(end))
	if err != nil {
		h.fail(w, r, "Failed to retrieve records", err)
		return
	}

	WriteSuccess(w, records)
}

// GetRecord handles GET /api/v1/records/{date}
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	rec, err := h.db.GetDailyRecord(r.Context(), calendar.FormatDate(date))
	if err != nil {
		h.fail(w, r, "Failed to retrieve record", err)
		return
	}

	WriteSuccess(w, rec)
}

// GenerateRequest is the body of POST /api/v1/records/generate.
type GenerateRequest struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Base   string `json:"base,omitempty"`
	Source string `json:"source,omitempty"`
}

// GenerateRecords handles POST /api/v1/records/generate
func (h *Handlers) GenerateRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	start, end, err := checkDateRange(req.Start, req.End, h.cfg.MaxRangeDays)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	base := h.cfg.BaseBranch()
	if req.Base != "" {
		if base, err = calendar.ParseBranch(req.Base); err != nil {
			h.fail(w, r, "Invalid base palace", err)
			return
		}
	}
	engine := h.engine
	if req.Source != "" {
		src, err := calendar.ParseYearBranchSource(req.Source)
		if err != nil {
			h.fail(w, r, "Invalid year branch source", err)
			return
		}
		engine = engine.WithSource(src)
	}

	records, err := engine.ComputeRange(ctx, start, end, base)
	if err != nil {
		h.fail(w, r, "Failed to compute records", err)
		return
	}
	if err := h.db.UpsertDailyRecords(ctx, records); err != nil {
		h.fail(w, r, "Failed to store records", err)
		return
	}

	h.log(ctx).Info("records generated",
		slog.String("start", req.Start),
		slog.String("end", req.End),
		slog.Int("count", len(records)),
	)

	WriteSuccess(w, map[string]any{
		"start":     calendar.FormatDate(start),
		"end":       calendar.FormatDate(end),
		"generated": len(records),
	})
}

// =============================================================================
// Journal
// =============================================================================

// ListJournal handles GET /api/v1/journal?start=&end=
func (h *Handlers) ListJournal(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, 0)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	entries, err := h.db.ListJournalEntries(r.Context(), calendar.FormatDate(start), calendar.FormatDate(end))
	if err != nil {
		h.fail(w, r, "Failed to retrieve journal entries", err)
		return
	}

	WriteSuccess(w, entries)
}

// GetJournal handles GET /api/v1/journal/{date}
func (h *Handlers) GetJournal(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	entry, err := h.db.GetJournalEntry(r.Context(), calendar.FormatDate(date))
	if err != nil {
		h.fail(w, r, "Failed to retrieve journal entry", err)
		return
	}

	WriteSuccess(w, entry)
}

// GetJournalDraft handles GET /api/v1/journal/{date}/draft
//
// Returns the stored entry if there is one, else a new entry with default
// ratings and a four-transformation summary for the day.
func (h *Handlers) GetJournalDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	dateStr := calendar.FormatDate(date)

	entry, err := h.db.GetJournalEntry(ctx, dateStr)
	if err == nil {
		WriteSuccess(w, entry)
		return
	}
	if !database.IsNotFound(err) {
		h.fail(w, r, "Failed to retrieve journal entry", err)
		return
	}

	rec, err := h.engine.ComputeDailyRecord(date, h.cfg.BaseBranch())
	if err != nil {
		h.fail(w, r, "Failed to compute record", err)
		return
	}

	draft := database.NewJournalEntry(dateStr)
	draft.TransformationSummary = h.engine.Tables().TransformationSummary(rec.DayStem, rec.FlowDayPalace)

	WriteSuccess(w, draft)
}

// CreateJournal handles POST /api/v1/journal
func (h *Handlers) CreateJournal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entry := database.NewJournalEntry("")
	if err := decodeJSON(r, entry); err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if err := h.db.CreateJournalEntry(ctx, entry); err != nil {
		h.fail(w, r, "Failed to create journal entry", err)
		return
	}

	saved, err := h.db.GetJournalEntry(ctx, entry.Date)
	if err != nil {
		h.fail(w, r, "Failed to retrieve journal entry", err)
		return
	}

	WriteCreated(w, saved)
}

// PutJournal handles PUT /api/v1/journal/{date}
//
// Fields missing from the body take their defaults.
func (h *Handlers) PutJournal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	dateStr := calendar.FormatDate(date)

	entry := database.NewJournalEntry(dateStr)
	if err := decodeJSON(r, entry); err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	entry.Date = dateStr

	if err := h.db.UpsertJournalEntry(ctx, entry); err != nil {
		h.fail(w, r, "Failed to save journal entry", err)
		return
	}

	saved, err := h.db.GetJournalEntry(ctx, dateStr)
	if err != nil {
		h.fail(w, r, "Failed to retrieve journal entry", err)
		return
	}

	WriteSuccess(w, saved)
}

// DeleteJournal handles DELETE /api/v1/journal/{date}
func (h *Handlers) DeleteJournal(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	if err := h.db.DeleteJournalEntry(r.Context(), calendar.FormatDate(date)); err != nil {
		h.fail(w, r, "Failed to delete journal entry", err)
		return
	}

	WriteSuccess(w, map[string]string{"message": "Journal entry deleted"})
}

// GetHistory handles GET /api/v1/history?start=&end=
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, 0)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	history, err := h.db.GetHistory(r.Context(), calendar.FormatDate(start), calendar.FormatDate(end))
	if err != nil {
		h.fail(w, r, "Failed to retrieve history", err)
		return
	}

	WriteSuccess(w, history)
}

// =============================================================================
// Request helpers
// =============================================================================

// pathParam returns an unescaped chi URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// pathDate parses the {date} path parameter, writing a 400 on failure.
func pathDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	dateStr := pathParam(r, "date")
	if dateStr == "" {
		WriteBadRequest(w, "Date parameter is required")
		return time.Time{}, false
	}

	date, err := calendar.ParseDateString(dateStr)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid date format: %s. Use YYYY-MM-DD", dateStr))
		return time.Time{}, false
	}
	return date, true
}

// parseDateRange reads the start and end query parameters.
func parseDateRange(r *http.Request, maxDays int) (time.Time, time.Time, error) {
	q := r.URL.Query()
	return checkDateRange(q.Get("start"), q.Get("end"), maxDays)
}

// checkDateRange validates an inclusive date range. maxDays <= 0 means no limit.
func checkDateRange(startStr, endStr string, maxDays int) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, errors.New("Both start and end date parameters are required")
	}

	start, err := calendar.ParseDateString(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("Invalid start date format: %s. Use YYYY-MM-DD", startStr)
	}
	end, err := calendar.ParseDateString(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("Invalid end date format: %s. Use YYYY-MM-DD", endStr)
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("Start date must be before or equal to end date")
	}
	if maxDays > 0 && calendar.DaysBetween(start, end) >= maxDays {
		return time.Time{}, time.Time{}, fmt.Errorf("Date range cannot exceed %d days", maxDays)
	}

	return start, end, nil
}

// decodeJSON decodes JSON request body.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
