package timesheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrTimesheetNotFound = errors.New("timesheet not found")
var ErrEntryNotFound = errors.New("time entry not found")

// ErrDuplicateWeek is returned when the owner already has a live timesheet for the week.
var ErrDuplicateWeek = errors.New("timesheet already exists for this week")

// ErrStatusChanged is returned by conditional writes whose expected state no longer matches the stored one.
var ErrStatusChanged = errors.New("timesheet status changed concurrently")

const uniqueViolation = "23505"

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	Create(ctx context.Context, ts Timesheet) (Timesheet, error)
	// Get returns the timesheet including soft-deleted ones.
	Get(ctx context.Context, id int) (Timesheet, error)
	// GetForUpdate is Get that also locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int) (Timesheet, error)
	ListForOwner(ctx context.Context, ownerId int) ([]Timesheet, error)
	// TransitionStatus writes the status columns of next only if the stored status still equals from.
	TransitionStatus(ctx context.Context, from Status, next Timesheet) (Timesheet, error)
	SoftDelete(ctx context.Context, id int, deletedBy int, reason string, at time.Time) (Timesheet, error)
	HardDelete(ctx context.Context, id int) error

	ListEntries(ctx context.Context, timesheetId int) ([]TimeEntry, error)
	GetEntry(ctx context.Context, timesheetId int, entryId int) (TimeEntry, error)
	InsertEntries(ctx context.Context, entries []TimeEntry) ([]TimeEntry, error)
	UpdateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	// SoftDeleteEntries marks the given entries deleted; with no ids every live entry of the timesheet is deleted.
	SoftDeleteEntries(ctx context.Context, timesheetId int, entryIds []int, at time.Time) (int, error)
	// RecomputeTotalHours stores and returns the sum of the live entries of the timesheet.
	RecomputeTotalHours(ctx context.Context, timesheetId int, at time.Time) (decimal.Decimal, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *repositoryImpl) getQueryer() interface {
	Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *repositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &repositoryImpl{db: r.db, tx: tx}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const timesheetColumns = `id, owner_id, week_start, week_end, total_hours, status,
       submitted_at, submitted_by, approved_at, approved_by, rejected_at, rejected_by, COALESCE(rejection_reason, ''),
       verified_at, verified_by, is_frozen, is_verified, is_billed, billed_at,
       deleted_at, deleted_by, COALESCE(deleted_reason, ''), created_at, updated_at`

func scanTimesheet(row pgx.Row) (Timesheet, error) {
	var ts Timesheet
	var status string
	err := row.Scan(
		&ts.Id,
		&ts.OwnerId,
		&ts.WeekStart,
		&ts.WeekEnd,
		&ts.TotalHours,
		&status,
		&ts.SubmittedAt,
		&ts.SubmittedBy,
		&ts.ApprovedAt,
		&ts.ApprovedBy,
		&ts.RejectedAt,
		&ts.RejectedBy,
		&ts.RejectionReason,
		&ts.VerifiedAt,
		&ts.VerifiedBy,
		&ts.IsFrozen,
		&ts.IsVerified,
		&ts.IsBilled,
		&ts.BilledAt,
		&ts.DeletedAt,
		&ts.DeletedBy,
		&ts.DeletedReason,
		&ts.CreatedAt,
		&ts.UpdatedAt,
	)
	ts.Status = Status(status)
	return ts, err
}

func (r *repositoryImpl) Create(ctx context.Context, ts Timesheet) (Timesheet, error) {
	query := `INSERT INTO timesheet (owner_id, week_start, week_end, total_hours, status, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + timesheetColumns

	created, err := scanTimesheet(r.getQueryer().QueryRow(ctx, query,
		ts.OwnerId,
		ts.WeekStart,
		ts.WeekEnd,
		ts.TotalHours,
		string(ts.Status),
		ts.CreatedAt,
		ts.UpdatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Timesheet{}, ErrDuplicateWeek
		}
		err := fmt.Errorf("could not create timesheet: %w", err)
		log.Error(err)
		return Timesheet{}, err
	}
	return created, nil
}

func (r *repositoryImpl) Get(ctx context.Context, id int) (Timesheet, error) {
	return r.get(ctx, `SELECT `+timesheetColumns+` FROM timesheet WHERE id = $1`, id)
}

// GetForUpdate locks the row with NO KEY UPDATE: writers of the same timesheet queue behind it while
// foreign key checks from project_approval inserts on other connections still pass.
func (r *repositoryImpl) GetForUpdate(ctx context.Context, id int) (Timesheet, error) {
	return r.get(ctx, `SELECT `+timesheetColumns+` FROM timesheet WHERE id = $1 FOR NO KEY UPDATE`, id)
}

func (r *repositoryImpl) get(ctx context.Context, query string, id int) (Timesheet, error) {
	ts, err := scanTimesheet(r.getQueryer().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Timesheet{}, ErrTimesheetNotFound
		}
		return Timesheet{}, fmt.Errorf("could not get timesheet %d: %w", id, err)
	}
	return ts, nil
}

func (r *repositoryImpl) ListForOwner(ctx context.Context, ownerId int) ([]Timesheet, error) {
	query := `SELECT ` + timesheetColumns + ` FROM timesheet
			  WHERE owner_id = $1 AND deleted_at IS NULL
			  ORDER BY week_start DESC`
	rows, err := r.getQueryer().Query(ctx, query, ownerId)
	if err != nil {
		return nil, fmt.Errorf("could not query timesheets: %w", err)
	}
	defer rows.Close()

	var result []Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning timesheet: %w", err)
		}
		result = append(result, ts)
	}
	return result, rows.Err()
}

func (r *repositoryImpl) TransitionStatus(ctx context.Context, from Status, next Timesheet) (Timesheet, error) {
	query := `UPDATE timesheet SET
                status = $1,
                submitted_at = $2,
                submitted_by = $3,
                approved_at = $4,
                approved_by = $5,
                rejected_at = $6,
                rejected_by = $7,
                rejection_reason = $8,
                verified_at = $9,
                verified_by = $10,
                is_frozen = $11,
                is_verified = $12,
                is_billed = $13,
                billed_at = $14,
                updated_at = $15
			  WHERE id = $16 AND status = $17 AND deleted_at IS NULL
			  RETURNING ` + timesheetColumns

	updated, err := scanTimesheet(r.getQueryer().QueryRow(ctx, query,
		string(next.Status),
		next.SubmittedAt,
		next.SubmittedBy,
		next.ApprovedAt,
		next.ApprovedBy,
		next.RejectedAt,
		next.RejectedBy,
		next.RejectionReason,
		next.VerifiedAt,
		next.VerifiedBy,
		next.IsFrozen,
		next.IsVerified,
		next.IsBilled,
		next.BilledAt,
		next.UpdatedAt,
		next.Id,
		string(from),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Timesheet{}, ErrStatusChanged
		}
		return Timesheet{}, fmt.Errorf("could not update timesheet status: %w", err)
	}
	return updated, nil
}

func (r *repositoryImpl) SoftDelete(ctx context.Context, id int, deletedBy int, reason string, at time.Time) (Timesheet, error) {
	query := `UPDATE timesheet SET deleted_at = $1, deleted_by = $2, deleted_reason = $3, updated_at = $1
			  WHERE id = $4 AND deleted_at IS NULL AND NOT is_billed AND NOT is_frozen
			  RETURNING ` + timesheetColumns

	deleted, err := scanTimesheet(r.getQueryer().QueryRow(ctx, query, at, deletedBy, reason, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Timesheet{}, ErrStatusChanged
		}
		return Timesheet{}, fmt.Errorf("could not soft delete timesheet: %w", err)
	}
	return deleted, nil
}

func (r *repositoryImpl) HardDelete(ctx context.Context, id int) error {
	tag, err := r.getQueryer().Exec(ctx, `DELETE FROM timesheet WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	if err != nil {
		return fmt.Errorf("could not delete timesheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

const entryColumns = `id, timesheet_id, project_id, task_id, custom_task, entry_type, entry_date, hours, is_billable,
       description, deleted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (TimeEntry, error) {
	var e TimeEntry
	var entryType string
	err := row.Scan(
		&e.Id,
		&e.TimesheetId,
		&e.ProjectId,
		&e.TaskId,
		&e.CustomTask,
		&entryType,
		&e.Date,
		&e.Hours,
		&e.IsBillable,
		&e.Description,
		&e.DeletedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	e.EntryType = EntryType(entryType)
	return e, err
}

func (r *repositoryImpl) ListEntries(ctx context.Context, timesheetId int) ([]TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entry
			  WHERE timesheet_id = $1 AND deleted_at IS NULL
			  ORDER BY entry_date, id`
	rows, err := r.getQueryer().Query(ctx, query, timesheetId)
	if err != nil {
		return nil, fmt.Errorf("could not query time entries: %w", err)
	}
	defer rows.Close()

	var entries []TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning time entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repositoryImpl) GetEntry(ctx context.Context, timesheetId int, entryId int) (TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entry WHERE id = $1 AND timesheet_id = $2 AND deleted_at IS NULL`
	e, err := scanEntry(r.getQueryer().QueryRow(ctx, query, entryId, timesheetId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TimeEntry{}, ErrEntryNotFound
		}
		return TimeEntry{}, fmt.Errorf("could not get time entry: %w", err)
	}
	return e, nil
}

func (r *repositoryImpl) InsertEntries(ctx context.Context, entries []TimeEntry) ([]TimeEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	query := `INSERT INTO time_entry (
                    timesheet_id,
                    project_id,
                    task_id,
                    custom_task,
                    entry_type,
                    entry_date,
                    hours,
                    is_billable,
                    description,
                    created_at,
                    updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				RETURNING ` + entryColumns

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query,
			e.TimesheetId,
			e.ProjectId,
			e.TaskId,
			e.CustomTask,
			string(e.EntryType),
			e.Date,
			e.Hours,
			e.IsBillable,
			e.Description,
			e.CreatedAt,
			e.UpdatedAt,
		)
	}

	results := r.getQueryer().SendBatch(ctx, batch)
	defer results.Close()

	created := make([]TimeEntry, 0, len(entries))
	for range entries {
		e, err := scanEntry(results.QueryRow())
		if err != nil {
			err := fmt.Errorf("could not insert time entry: %w", err)
			log.Error(err)
			return nil, err
		}
		created = append(created, e)
	}
	return created, nil
}

func (r *repositoryImpl) UpdateEntry(ctx context.Context, e TimeEntry) (TimeEntry, error) {
	query := `UPDATE time_entry SET
                project_id = $1,
                task_id = $2,
                custom_task = $3,
                entry_type = $4,
                entry_date = $5,
                hours = $6,
                is_billable = $7,
                description = $8,
                updated_at = $9
			  WHERE id = $10 AND timesheet_id = $11 AND deleted_at IS NULL
			  RETURNING ` + entryColumns

	updated, err := scanEntry(r.getQueryer().QueryRow(ctx, query,
		e.ProjectId,
		e.TaskId,
		e.CustomTask,
		string(e.EntryType),
		e.Date,
		e.Hours,
		e.IsBillable,
		e.Description,
		e.UpdatedAt,
		e.Id,
		e.TimesheetId,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TimeEntry{}, ErrEntryNotFound
		}
		return TimeEntry{}, fmt.Errorf("could not update time entry: %w", err)
	}
	return updated, nil
}

func (r *repositoryImpl) SoftDeleteEntries(ctx context.Context, timesheetId int, entryIds []int, at time.Time) (int, error) {
	var tag pgconn.CommandTag
	var err error
	if len(entryIds) == 0 {
		tag, err = r.getQueryer().Exec(ctx,
			`UPDATE time_entry SET deleted_at = $1, updated_at = $1 WHERE timesheet_id = $2 AND deleted_at IS NULL`,
			at, timesheetId)
	} else {
		tag, err = r.getQueryer().Exec(ctx,
			`UPDATE time_entry SET deleted_at = $1, updated_at = $1 WHERE timesheet_id = $2 AND id = ANY($3) AND deleted_at IS NULL`,
			at, timesheetId, entryIds)
	}
	if err != nil {
		return 0, fmt.Errorf("could not delete time entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *repositoryImpl) RecomputeTotalHours(ctx context.Context, timesheetId int, at time.Time) (decimal.Decimal, error) {
	query := `UPDATE timesheet SET
                total_hours = (SELECT COALESCE(SUM(hours), 0) FROM time_entry WHERE timesheet_id = $1 AND deleted_at IS NULL),
                updated_at = $2
			  WHERE id = $1
			  RETURNING total_hours`

	var total decimal.Decimal
	if err := r.getQueryer().QueryRow(ctx, query, timesheetId, at).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrTimesheetNotFound
		}
		return decimal.Zero, fmt.Errorf("could not recompute total hours: %w", err)
	}
	return total, nil
}
