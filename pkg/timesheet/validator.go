package timesheet

import (
	"sort"
	"strings"
	"time"

	"github.com/hourline/hourline/internal/utils"
	"github.com/hourline/hourline/pkg/apperror"
	"github.com/shopspring/decimal"
)

const DefaultMaxDailyHours = 10

// Validator holds the business rules guarding what hours can be recorded. It has no side effects.
type Validator struct {
	MaxDailyHours decimal.Decimal
}

func NewValidator(maxDailyHours int) Validator {
	if maxDailyHours <= 0 {
		maxDailyHours = DefaultMaxDailyHours
	}
	return Validator{MaxDailyHours: decimal.NewFromInt(int64(maxDailyHours))}
}

// ValidateEntry checks a single candidate against the existing entries of the timesheet and returns
// it with the weekend billability override applied. Non-positive hours are reported before any other
// problem with the entry. An existing entry with the candidate's id is
// ignored, so the same call validates updates.
func (v Validator) ValidateEntry(ts Timesheet, candidate TimeEntry, existing []TimeEntry) (TimeEntry, error) {
	candidate = normalize(candidate)
	if !candidate.Hours.IsPositive() {
		return TimeEntry{}, apperror.Validation("hours must be greater than zero")
	}
	if err := checkStructure(ts, candidate); err != nil {
		return TimeEntry{}, err
	}

	sameDay := entriesOn(existing, candidate.Date, candidate.Id)
	for _, e := range sameDay {
		if err := duplicateOf(candidate, e); err != nil {
			return TimeEntry{}, err
		}
	}
	if err := v.checkCeiling(candidate.Date, sumHours(sameDay), candidate.Hours); err != nil {
		return TimeEntry{}, err
	}

	return applyWeekendPolicy(candidate), nil
}

// ValidateBatch checks an incoming batch as a whole before anything is persisted: every entry on its
// own, duplicates inside the batch, duplicates against existing, and the daily ceiling over existing
// plus batch hours per date.
func (v Validator) ValidateBatch(ts Timesheet, batch []TimeEntry, existing []TimeEntry) ([]TimeEntry, error) {
	if len(batch) == 0 {
		return nil, apperror.Validation("at least one time entry is required")
	}

	result := make([]TimeEntry, 0, len(batch))
	for _, candidate := range batch {
		candidate = normalize(candidate)
		if !candidate.Hours.IsPositive() {
			return nil, apperror.Validation("hours must be greater than zero")
		}
		if err := checkStructure(ts, candidate); err != nil {
			return nil, err
		}
		result = append(result, candidate)
	}

	for i, candidate := range result {
		for _, other := range result[:i] {
			if candidate.Date.Equal(other.Date) && sameTask(candidate, other) {
				return nil, batchDuplicateError(candidate)
			}
		}
		for _, e := range entriesOn(existing, candidate.Date, 0) {
			if err := duplicateOf(candidate, e); err != nil {
				return nil, err
			}
		}
	}

	adding := make(map[string]decimal.Decimal)
	dates := make(map[string]time.Time)
	for _, candidate := range result {
		key := dateKey(candidate.Date)
		adding[key] = adding[key].Add(candidate.Hours)
		dates[key] = candidate.Date
	}
	keys := make([]string, 0, len(adding))
	for key := range adding {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		current := sumHours(entriesOn(existing, dates[key], 0))
		if err := v.checkCeiling(dates[key], current, adding[key]); err != nil {
			return nil, err
		}
	}

	for i := range result {
		result[i] = applyWeekendPolicy(result[i])
	}
	return result, nil
}

func (v Validator) checkCeiling(date time.Time, current decimal.Decimal, adding decimal.Decimal) error {
	total := current.Add(adding)
	if total.GreaterThan(v.MaxDailyHours) {
		return apperror.Validation("Total hours for %s would exceed the maximum limit of %s hours (current: %s, adding: %s, total: %s)",
			dateKey(date), v.MaxDailyHours, current, adding, total)
	}
	return nil
}

func normalize(e TimeEntry) TimeEntry {
	e.Date = utils.DateOnly(e.Date)
	e.CustomTask = strings.TrimSpace(e.CustomTask)
	if e.EntryType == EntryCustomTask {
		e.ProjectId = nil
		e.TaskId = nil
	} else {
		e.CustomTask = ""
	}
	return e
}

func checkStructure(ts Timesheet, e TimeEntry) error {
	switch e.EntryType {
	case EntryProjectTask:
		if e.ProjectId == nil {
			return apperror.Validation("a project is required for project task entries")
		}
	case EntryCustomTask:
		if e.CustomTask == "" {
			return apperror.Validation("a custom task description is required for custom task entries")
		}
	default:
		return apperror.Validation("unknown entry type %q", e.EntryType)
	}
	if !ts.Covers(e.Date) {
		return apperror.Validation("date %s is outside the timesheet week %s to %s",
			dateKey(e.Date), dateKey(ts.WeekStart), dateKey(ts.WeekEnd))
	}
	if e.Hours.Exponent() < -2 && !e.Hours.Equal(e.Hours.Round(2)) {
		return apperror.Validation("hours can have at most two decimal places")
	}
	return nil
}

// entriesOn returns the live entries on date, leaving out the entry with skipId.
func entriesOn(entries []TimeEntry, date time.Time, skipId int) []TimeEntry {
	var result []TimeEntry
	for _, e := range entries {
		if e.DeletedAt != nil || (skipId != 0 && e.Id == skipId) {
			continue
		}
		if utils.DateOnly(e.Date).Equal(date) {
			result = append(result, e)
		}
	}
	return result
}

func sameTask(a TimeEntry, b TimeEntry) bool {
	if a.EntryType != b.EntryType {
		return false
	}
	if a.EntryType == EntryCustomTask {
		return a.CustomTask == strings.TrimSpace(b.CustomTask)
	}
	return intValue(a.ProjectId) == intValue(b.ProjectId) && intValue(a.TaskId) == intValue(b.TaskId)
}

func duplicateOf(candidate TimeEntry, existing TimeEntry) error {
	if !sameTask(candidate, existing) {
		return nil
	}
	if candidate.EntryType == EntryCustomTask {
		return apperror.Validation("a custom task entry %q already exists on %s; edit the existing entry instead",
			candidate.CustomTask, dateKey(candidate.Date))
	}
	return apperror.Validation("a time entry for this project and task already exists on %s; edit the existing entry instead",
		dateKey(candidate.Date))
}

func batchDuplicateError(candidate TimeEntry) error {
	if candidate.EntryType == EntryCustomTask {
		return apperror.Validation("the submitted entries contain the custom task %q twice on %s", candidate.CustomTask, dateKey(candidate.Date))
	}
	return apperror.Validation("the submitted entries contain the same project and task twice on %s", dateKey(candidate.Date))
}

func applyWeekendPolicy(e TimeEntry) TimeEntry {
	if isWeekend(e.Date) {
		e.IsBillable = false
	}
	return e
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
