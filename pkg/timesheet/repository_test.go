package timesheet

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hourline/hourline/internal/test_utils"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	defer func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			log.Errorf("failed to terminate container: %s", err)
		}
	}()
	code := m.Run()
	os.Exit(code)
}

var repoNow = time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC)

func setupTestRepository(t *testing.T) (context.Context, Repository) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(ctx)
		require.NoError(t, err)
	})
	return ctx, NewRepository(db)
}

func draft(ownerId int, week string) Timesheet {
	start := day(week)
	return Timesheet{
		OwnerId:    ownerId,
		WeekStart:  start,
		WeekEnd:    WeekEndOf(start),
		TotalHours: hours("0"),
		Status:     StatusDraft,
		CreatedAt:  repoNow,
		UpdatedAt:  repoNow,
	}
}

func stored(timesheetId int, e TimeEntry) TimeEntry {
	e.TimesheetId = timesheetId
	e.CreatedAt = repoNow
	e.UpdatedAt = repoNow
	return e
}

func TestRepositoryImpl_Create(t *testing.T) {
	t.Run("should create and read back a draft", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)

		// when
		created, err := repo.Create(ctx, draft(10, "2024-05-06"))

		// then
		require.NoError(t, err)
		require.NotZero(t, created.Id)
		got, err := repo.Get(ctx, created.Id)
		require.NoError(t, err)
		assert.Equal(t, StatusDraft, got.Status)
		assert.True(t, day("2024-05-06").Equal(got.WeekStart))
		assert.True(t, day("2024-05-12").Equal(got.WeekEnd))
		assert.True(t, got.TotalHours.IsZero())
	})

	t.Run("should reject a second live timesheet for the same week", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		first, err := repo.Create(ctx, draft(10, "2024-05-06"))
		require.NoError(t, err)

		// when
		_, err = repo.Create(ctx, draft(10, "2024-05-06"))

		// then
		assert.ErrorIs(t, err, ErrDuplicateWeek)

		// and a soft-deleted week frees the slot
		_, err = repo.SoftDelete(ctx, first.Id, 40, "mistake", repoNow)
		require.NoError(t, err)
		_, err = repo.Create(ctx, draft(10, "2024-05-06"))
		assert.NoError(t, err)
	})
}

func TestRepositoryImpl_TransitionStatus(t *testing.T) {
	t.Run("should write the status columns when the expected status matches", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		ts, err := repo.Create(ctx, draft(10, "2024-05-06"))
		require.NoError(t, err)
		submittedBy := 10
		next := ts
		next.Status = StatusSubmitted
		next.SubmittedAt = &repoNow
		next.SubmittedBy = &submittedBy

		// when
		updated, err := repo.TransitionStatus(ctx, StatusDraft, next)

		// then
		require.NoError(t, err)
		assert.Equal(t, StatusSubmitted, updated.Status)
		require.NotNil(t, updated.SubmittedBy)
		assert.Equal(t, 10, *updated.SubmittedBy)
	})

	t.Run("should let exactly one concurrent writer win", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		ts, err := repo.Create(ctx, draft(10, "2024-05-06"))
		require.NoError(t, err)
		next := ts
		next.Status = StatusSubmitted

		// when
		const writers = 8
		results := make([]error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = repo.TransitionStatus(ctx, StatusDraft, next)
			}(i)
		}
		wg.Wait()

		// then
		successes := 0
		for _, err := range results {
			if err == nil {
				successes++
			} else {
				assert.ErrorIs(t, err, ErrStatusChanged)
			}
		}
		assert.Equal(t, 1, successes)
	})
}

func TestRepositoryImpl_Entries(t *testing.T) {
	t.Run("should insert, total and soft delete entries", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		ts, err := repo.Create(ctx, draft(10, "2024-05-06"))
		require.NoError(t, err)

		// when
		inserted, err := repo.InsertEntries(ctx, []TimeEntry{
			stored(ts.Id, projectEntry("2024-05-06", 1, 1, "7.25")),
			stored(ts.Id, customEntry("2024-05-07", "Training", "1.5")),
		})
		require.NoError(t, err)
		require.Len(t, inserted, 2)
		total, err := repo.RecomputeTotalHours(ctx, ts.Id, repoNow)

		// then
		require.NoError(t, err)
		assert.True(t, hours("8.75").Equal(total))

		deleted, err := repo.SoftDeleteEntries(ctx, ts.Id, []int{inserted[0].Id}, repoNow)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
		total, err = repo.RecomputeTotalHours(ctx, ts.Id, repoNow)
		require.NoError(t, err)
		assert.True(t, hours("1.5").Equal(total))

		live, err := repo.ListEntries(ctx, ts.Id)
		require.NoError(t, err)
		require.Len(t, live, 1)
		assert.Equal(t, "Training", live[0].CustomTask)
		_, err = repo.GetEntry(ctx, ts.Id, inserted[0].Id)
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})

	t.Run("should roll back a failed transaction", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		ts, err := repo.Create(ctx, draft(10, "2024-05-06"))
		require.NoError(t, err)
		failure := errors.New("validation failed")

		// when
		err = repo.WithTransaction(ctx, func(tx Repository) error {
			if _, err := tx.GetForUpdate(ctx, ts.Id); err != nil {
				return err
			}
			if _, err := tx.InsertEntries(ctx, []TimeEntry{stored(ts.Id, projectEntry("2024-05-06", 1, 1, "3"))}); err != nil {
				return err
			}
			return failure
		})

		// then
		assert.ErrorIs(t, err, failure)
		live, err := repo.ListEntries(ctx, ts.Id)
		require.NoError(t, err)
		assert.Empty(t, live)
	})
}

func TestRepositoryImpl_Delete(t *testing.T) {
	t.Run("should not soft delete a frozen timesheet", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		ts, err := repo.Create(ctx, draft(10, "2024-05-06"))
		require.NoError(t, err)
		next := ts
		next.Status = StatusManagementPending
		_, err = repo.TransitionStatus(ctx, StatusDraft, next)
		require.NoError(t, err)
		next.Status = StatusFrozen
		next.IsFrozen = true
		_, err = repo.TransitionStatus(ctx, StatusManagementPending, next)
		require.NoError(t, err)

		// when
		_, err = repo.SoftDelete(ctx, ts.Id, 40, "cleanup", repoNow)

		// then
		assert.ErrorIs(t, err, ErrStatusChanged)
	})

	t.Run("should hard delete only soft-deleted timesheets", func(t *testing.T) {
		// given
		ctx, repo := setupTestRepository(t)
		ts, err := repo.Create(ctx, draft(10, "2024-05-06"))
		require.NoError(t, err)
		_, err = repo.InsertEntries(ctx, []TimeEntry{stored(ts.Id, projectEntry("2024-05-06", 1, 1, "3"))})
		require.NoError(t, err)

		// when
		errLive := repo.HardDelete(ctx, ts.Id)
		_, err = repo.SoftDelete(ctx, ts.Id, 40, "cleanup", repoNow)
		require.NoError(t, err)
		errDeleted := repo.HardDelete(ctx, ts.Id)

		// then
		assert.ErrorIs(t, errLive, ErrStatusChanged)
		assert.NoError(t, errDeleted)
		_, err = repo.Get(ctx, ts.Id)
		assert.ErrorIs(t, err, ErrTimesheetNotFound)
	})
}
