package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/zapponejosh/teller/internal/calendar"
)

var (
	// ErrNotFound is returned when no record or journal entry exists for a date.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when creating a journal entry for a date that has one.
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidJournalEntry wraps every JournalEntry.Validate failure.
	ErrInvalidJournalEntry = errors.New("invalid journal entry")

	// ErrSchemaMismatch means the database is not at this build's schema version.
	ErrSchemaMismatch = errors.New("database schema mismatch")
)

// IsNotFound reports whether err means the date has nothing stored.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

// StoredRecord is a computed daily record as persisted in daily_records.
type StoredRecord struct {
	calendar.DailyRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Score is the overall rating of a day.
type Score string

const (
	ScoreGood    Score = "好"
	ScoreNeutral Score = "普通"
	ScoreBad     Score = "不好"
)

// ValidScores returns all valid scores, worst first.
func ValidScores() []Score {
	return []Score{ScoreBad, ScoreNeutral, ScoreGood}
}

// IsValid checks if a score is valid.
func (s Score) IsValid() bool {
	for _, valid := range ValidScores() {
		if s == valid {
			return true
		}
	}
	return false
}

// Rating bounds for the Zi Wei ratings.
const (
	MinRating     = 1
	MaxRating     = 3
	DefaultRating = 2

	// MaxEmotions is how many emotion words one entry may carry.
	MaxEmotions = 3
)

// JournalEntry is the user's assessment of one day.
type JournalEntry struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Score Score  `json:"score"`

	// Zi Wei ratings, MinRating..MaxRating
	Work   int `json:"work"`
	Health int `json:"health"`
	Wealth int `json:"wealth"`
	Energy int `json:"energy"`

	BodyFeeling           string   `json:"body_feeling"`         // 八字 體感
	Experience            *string  `json:"experience,omitempty"` // 八字 體驗
	TransformationSummary string   `json:"transformation_summary"`
	Emotions              []string `json:"emotions"`
	Notes                 *string  `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJournalEntry returns an entry for date with the default score and ratings.
func NewJournalEntry(date string) *JournalEntry {
	return &JournalEntry{
		Date:     date,
		Score:    ScoreNeutral,
		Work:     DefaultRating,
		Health:   DefaultRating,
		Wealth:   DefaultRating,
		Energy:   DefaultRating,
		Emotions: []string{},
	}
}

// Validate checks the entry before it is written. Every problem is reported.
func (e *JournalEntry) Validate() error {
	var errs []error

	if _, err := calendar.ParseDateString(e.Date); err != nil {
		errs = append(errs, fmt.Errorf("date must be YYYY-MM-DD, got %q", e.Date))
	}
	if !e.Score.IsValid() {
		errs = append(errs, fmt.Errorf("score must be one of 好, 普通, 不好; got %q", e.Score))
	}

	ratings := []struct {
		name  string
		value int
	}{
		{"work", e.Work},
		{"health", e.Health},
		{"wealth", e.Wealth},
		{"energy", e.Energy},
	}
	for _, r := range ratings {
		if r.value < MinRating || r.value > MaxRating {
			errs = append(errs, fmt.Errorf("%s must be between %d and %d, got %d", r.name, MinRating, MaxRating, r.value))
		}
	}

	if len(e.Emotions) > MaxEmotions {
		errs = append(errs, fmt.Errorf("at most %d emotions, got %d", MaxEmotions, len(e.Emotions)))
	}
	for _, emotion := range e.Emotions {
		if emotion == "" || !utf8.ValidString(emotion) {
			errs = append(errs, fmt.Errorf("invalid emotion %q", emotion))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidJournalEntry, errors.Join(errs...))
	}
	return nil
}

// HistoryEntry pairs a stored record with the journal entry for the same date,
// if one exists.
type HistoryEntry struct {
	Record  StoredRecord  `json:"record"`
	Journal *JournalEntry `json:"journal,omitempty"`
}

// RecordStats summarizes the daily_records table.
type RecordStats struct {
	TotalDays      int        `json:"total_days"`
	EarliestDate   string     `json:"earliest_date,omitempty"`
	LatestDate     string     `json:"latest_date,omitempty"`
	JournalEntries int        `json:"journal_entries"`
	LastUpdatedAt  *time.Time `json:"last_updated_at,omitempty"`
}
