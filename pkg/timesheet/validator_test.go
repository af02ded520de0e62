package timesheet

import (
	"testing"
	"time"

	"github.com/hourline/hourline/pkg/apperror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func hours(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(i int) *int {
	return &i
}

func weekOf(s string) Timesheet {
	start := WeekStartOf(day(s))
	return Timesheet{Id: 1, OwnerId: 10, WeekStart: start, WeekEnd: WeekEndOf(start), Status: StatusDraft}
}

func projectEntry(date string, projectId int, taskId int, h string) TimeEntry {
	return TimeEntry{
		EntryType:  EntryProjectTask,
		ProjectId:  intPtr(projectId),
		TaskId:     intPtr(taskId),
		Date:       day(date),
		Hours:      hours(h),
		IsBillable: true,
	}
}

func customEntry(date string, task string, h string) TimeEntry {
	return TimeEntry{EntryType: EntryCustomTask, CustomTask: task, Date: day(date), Hours: hours(h), IsBillable: true}
}

func withId(e TimeEntry, id int) TimeEntry {
	e.Id = id
	return e
}

func TestWeekStartOf(t *testing.T) {
	tests := []struct {
		date     string
		expected string
	}{
		{"2024-05-06", "2024-05-06"},
		{"2024-05-08", "2024-05-06"},
		{"2024-05-12", "2024-05-06"},
		{"2024-05-13", "2024-05-13"},
		{"2024-01-01", "2024-01-01"},
		{"2023-12-31", "2023-12-25"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, day(tt.expected), WeekStartOf(day(tt.date)))
		})
	}
}

func TestValidator_ValidateEntry(t *testing.T) {
	v := NewValidator(10)
	ts := weekOf("2024-05-06")

	tests := []struct {
		name      string
		candidate TimeEntry
		existing  []TimeEntry
		expectErr string
	}{
		{
			name:      "accepts a valid project entry",
			candidate: projectEntry("2024-05-06", 1, 1, "8"),
		},
		{
			name:      "rejects zero hours",
			candidate: projectEntry("2024-05-06", 1, 1, "0"),
			expectErr: "hours must be greater than zero",
		},
		{
			name:      "rejects negative hours",
			candidate: projectEntry("2024-05-06", 1, 1, "-2"),
			expectErr: "hours must be greater than zero",
		},
		{
			name:      "rejects duplicate project and task on the same date",
			candidate: projectEntry("2024-05-06", 1, 1, "1"),
			existing:  []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "2"), 7)},
			expectErr: "a time entry for this project and task already exists on 2024-05-06; edit the existing entry instead",
		},
		{
			name:      "accepts same project with a different task",
			candidate: projectEntry("2024-05-06", 1, 2, "1"),
			existing:  []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "2"), 7)},
		},
		{
			name:      "accepts same project and task on another date",
			candidate: projectEntry("2024-05-07", 1, 1, "1"),
			existing:  []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "2"), 7)},
		},
		{
			name:      "rejects duplicate custom task",
			candidate: customEntry("2024-05-06", "Team offsite", "1"),
			existing:  []TimeEntry{withId(customEntry("2024-05-06", "Team offsite", "2"), 7)},
			expectErr: `a custom task entry "Team offsite" already exists on 2024-05-06; edit the existing entry instead`,
		},
		{
			name:      "custom task match is exact",
			candidate: customEntry("2024-05-06", "team offsite", "1"),
			existing:  []TimeEntry{withId(customEntry("2024-05-06", "Team offsite", "2"), 7)},
		},
		{
			name:      "rejects exceeding the daily ceiling",
			candidate: projectEntry("2024-05-06", 2, 1, "7"),
			existing:  []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "6"), 7)},
			expectErr: "Total hours for 2024-05-06 would exceed the maximum limit of 10 hours (current: 6, adding: 7, total: 13)",
		},
		{
			name:      "accepts exactly the daily ceiling",
			candidate: projectEntry("2024-05-06", 2, 1, "4"),
			existing:  []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "6"), 7)},
		},
		{
			name:      "ignores deleted entries",
			candidate: projectEntry("2024-05-06", 1, 1, "8"),
			existing: []TimeEntry{func() TimeEntry {
				e := withId(projectEntry("2024-05-06", 1, 1, "8"), 7)
				deletedAt := day("2024-05-06")
				e.DeletedAt = &deletedAt
				return e
			}()},
		},
		{
			name:      "ignores the entry being updated",
			candidate: withId(projectEntry("2024-05-06", 1, 1, "9"), 7),
			existing:  []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "8"), 7)},
		},
		{
			name:      "rejects a project entry without a project",
			candidate: TimeEntry{EntryType: EntryProjectTask, Date: day("2024-05-06"), Hours: hours("1")},
			expectErr: "a project is required for project task entries",
		},
		{
			name:      "rejects a custom entry without description",
			candidate: customEntry("2024-05-06", "  ", "1"),
			expectErr: "a custom task description is required for custom task entries",
		},
		{
			name:      "rejects unknown entry type",
			candidate: TimeEntry{EntryType: "meeting", Date: day("2024-05-06"), Hours: hours("1")},
			expectErr: `unknown entry type "meeting"`,
		},
		{
			name:      "rejects a date outside the week",
			candidate: projectEntry("2024-05-13", 1, 1, "1"),
			expectErr: "date 2024-05-13 is outside the timesheet week 2024-05-06 to 2024-05-12",
		},
		{
			name:      "rejects more than two decimals",
			candidate: projectEntry("2024-05-06", 1, 1, "1.125"),
			expectErr: "hours can have at most two decimal places",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, err := v.ValidateEntry(ts, tt.candidate, tt.existing)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperror.ErrValidation)
				assert.EqualError(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.candidate.Hours.Equal(accepted.Hours))
		})
	}
}

func TestValidator_CeilingMessage(t *testing.T) {
	v := NewValidator(10)
	ts := weekOf("2024-05-03")

	_, err := v.ValidateEntry(ts, projectEntry("2024-05-03", 2, 1, "6"), []TimeEntry{withId(projectEntry("2024-05-03", 1, 1, "6"), 1)})

	assert.EqualError(t, err, "Total hours for 2024-05-03 would exceed the maximum limit of 10 hours (current: 6, adding: 6, total: 12)")
}

func TestValidator_PositiveHoursCheckedBeforeDuplicates(t *testing.T) {
	v := NewValidator(10)
	ts := weekOf("2024-05-06")

	_, err := v.ValidateEntry(ts, projectEntry("2024-05-06", 1, 1, "0"), []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "2"), 7)})

	assert.EqualError(t, err, "hours must be greater than zero")
}

func TestValidator_PositiveHoursCheckedBeforeStructure(t *testing.T) {
	v := NewValidator(10)
	ts := weekOf("2024-05-06")
	missingProject := TimeEntry{EntryType: EntryProjectTask, Date: day("2024-05-06"), Hours: hours("0")}
	outsideWeek := projectEntry("2024-05-20", 1, 1, "-1")

	_, err := v.ValidateEntry(ts, missingProject, nil)
	assert.EqualError(t, err, "hours must be greater than zero")

	_, err = v.ValidateEntry(ts, outsideWeek, nil)
	assert.EqualError(t, err, "hours must be greater than zero")

	_, err = v.ValidateBatch(ts, []TimeEntry{missingProject}, nil)
	assert.EqualError(t, err, "hours must be greater than zero")
}

func TestValidator_WeekendOverride(t *testing.T) {
	v := NewValidator(10)
	ts := weekOf("2024-05-06")

	for _, date := range []string{"2024-05-11", "2024-05-12"} {
		t.Run(date, func(t *testing.T) {
			accepted, err := v.ValidateEntry(ts, projectEntry(date, 1, 1, "3"), nil)
			require.NoError(t, err)
			assert.False(t, accepted.IsBillable)
		})
	}

	t.Run("weekday keeps caller intent", func(t *testing.T) {
		accepted, err := v.ValidateEntry(ts, projectEntry("2024-05-10", 1, 1, "3"), nil)
		require.NoError(t, err)
		assert.True(t, accepted.IsBillable)
	})
}

func TestValidator_ConfiguredCeiling(t *testing.T) {
	v := NewValidator(12)
	ts := weekOf("2024-05-06")

	_, err := v.ValidateEntry(ts, projectEntry("2024-05-06", 1, 1, "11"), nil)
	assert.NoError(t, err)

	assert.True(t, decimal.NewFromInt(10).Equal(NewValidator(0).MaxDailyHours))
}

func TestValidator_ValidateBatch(t *testing.T) {
	v := NewValidator(10)
	ts := weekOf("2024-05-06")

	t.Run("accepts a batch spread over several days", func(t *testing.T) {
		batch := []TimeEntry{
			projectEntry("2024-05-06", 1, 1, "8"),
			projectEntry("2024-05-07", 1, 1, "8"),
			customEntry("2024-05-11", "Release support", "2"),
		}

		accepted, err := v.ValidateBatch(ts, batch, nil)

		require.NoError(t, err)
		require.Len(t, accepted, 3)
		assert.False(t, accepted[2].IsBillable)
	})

	t.Run("rejects duplicates inside the batch", func(t *testing.T) {
		batch := []TimeEntry{
			projectEntry("2024-05-06", 1, 1, "2"),
			projectEntry("2024-05-06", 1, 1, "3"),
		}

		_, err := v.ValidateBatch(ts, batch, nil)

		assert.ErrorIs(t, err, apperror.ErrValidation)
		assert.EqualError(t, err, "the submitted entries contain the same project and task twice on 2024-05-06")
	})

	t.Run("rejects duplicate custom tasks inside the batch", func(t *testing.T) {
		batch := []TimeEntry{
			customEntry("2024-05-06", "Hiring", "1"),
			customEntry("2024-05-06", "Hiring", "1"),
		}

		_, err := v.ValidateBatch(ts, batch, nil)

		assert.EqualError(t, err, `the submitted entries contain the custom task "Hiring" twice on 2024-05-06`)
	})

	t.Run("rejects duplicates against existing entries", func(t *testing.T) {
		_, err := v.ValidateBatch(ts, []TimeEntry{projectEntry("2024-05-06", 1, 1, "2")}, []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "1"), 3)})

		assert.EqualError(t, err, "a time entry for this project and task already exists on 2024-05-06; edit the existing entry instead")
	})

	t.Run("enforces the ceiling over the whole batch", func(t *testing.T) {
		batch := []TimeEntry{
			projectEntry("2024-05-06", 1, 1, "6"),
			projectEntry("2024-05-06", 2, 1, "5"),
		}

		_, err := v.ValidateBatch(ts, batch, nil)

		assert.EqualError(t, err, "Total hours for 2024-05-06 would exceed the maximum limit of 10 hours (current: 0, adding: 11, total: 11)")
	})

	t.Run("enforces the ceiling over existing plus batch", func(t *testing.T) {
		batch := []TimeEntry{
			projectEntry("2024-05-06", 2, 1, "2.5"),
			projectEntry("2024-05-06", 3, 1, "2"),
		}

		_, err := v.ValidateBatch(ts, batch, []TimeEntry{withId(projectEntry("2024-05-06", 1, 1, "6"), 1)})

		assert.EqualError(t, err, "Total hours for 2024-05-06 would exceed the maximum limit of 10 hours (current: 6, adding: 4.5, total: 10.5)")
	})

	t.Run("rejects a non-positive entry in the batch", func(t *testing.T) {
		_, err := v.ValidateBatch(ts, []TimeEntry{projectEntry("2024-05-06", 1, 1, "1"), projectEntry("2024-05-07", 1, 1, "0")}, nil)

		assert.EqualError(t, err, "hours must be greater than zero")
	})

	t.Run("rejects an empty batch", func(t *testing.T) {
		_, err := v.ValidateBatch(ts, nil, nil)

		assert.ErrorIs(t, err, apperror.ErrValidation)
	})
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusSubmitted))
	assert.True(t, CanTransition(StatusDraft, StatusManagementPending))
	assert.True(t, CanTransition(StatusManagerRejected, StatusSubmitted))
	assert.True(t, CanTransition(StatusManagementPending, StatusFrozen))
	assert.True(t, CanTransition(StatusFrozen, StatusBilled))
	assert.False(t, CanTransition(StatusManagerApproved, StatusDraft))
	assert.False(t, CanTransition(StatusDraft, StatusFrozen))
	assert.False(t, CanTransition(StatusBilled, StatusDraft))
	assert.False(t, CanTransition(StatusSubmitted, StatusFrozen))
}

func TestBlockingDependencies(t *testing.T) {
	assert.Empty(t, BlockingDependencies(Timesheet{Status: StatusDraft}))
	assert.Empty(t, BlockingDependencies(Timesheet{Status: StatusManagerApproved}))
	assert.Equal(t, []DependencyReason{DependencyFrozen}, BlockingDependencies(Timesheet{Status: StatusFrozen, IsFrozen: true}))
	assert.Equal(t, []DependencyReason{DependencyBilled, DependencyFrozen}, BlockingDependencies(Timesheet{Status: StatusBilled, IsBilled: true, IsFrozen: true}))
	assert.Equal(t, []DependencyReason{DependencyPendingBilling}, BlockingDependencies(Timesheet{Status: StatusFrozen}))
}
