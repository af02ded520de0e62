package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrApprovalNotFound = errors.New("project approval not found")

// ErrAlreadyDecided is returned when the targeted sign-off column is no longer pending.
var ErrAlreadyDecided = errors.New("project approval already decided")

type Repository interface {
	Get(ctx context.Context, id int) (ProjectApproval, error)
	ListForTimesheet(ctx context.Context, timesheetId int) ([]ProjectApproval, error)
	// Create stores the approval unless one already exists for its (timesheet, project) pair.
	// The returned flag is false when the pair already existed.
	Create(ctx context.Context, approval ProjectApproval) (ProjectApproval, bool, error)
	// Decide moves the tier's status from pending to status.
	Decide(ctx context.Context, id int, tier Tier, status Status, reason string, decidedAt time.Time) error
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

const selectColumns = `id, timesheet_id, project_id, owner_id, lead_id, manager_id, lead_status, manager_status,
       lead_reason, manager_reason, lead_decided_at, manager_decided_at, entry_count, total_hours,
       owner_is_active_member, created_at`

func scanApproval(row pgx.Row) (ProjectApproval, error) {
	var a ProjectApproval
	var leadStatus, managerStatus string
	err := row.Scan(
		&a.Id,
		&a.TimesheetId,
		&a.ProjectId,
		&a.OwnerId,
		&a.LeadId,
		&a.ManagerId,
		&leadStatus,
		&managerStatus,
		&a.LeadReason,
		&a.ManagerReason,
		&a.LeadDecidedAt,
		&a.ManagerDecidedAt,
		&a.EntryCount,
		&a.TotalHours,
		&a.OwnerIsActiveMember,
		&a.CreatedAt,
	)
	a.LeadStatus = Status(leadStatus)
	a.ManagerStatus = Status(managerStatus)
	return a, err
}

func (r *repositoryImpl) Get(ctx context.Context, id int) (ProjectApproval, error) {
	query := `SELECT ` + selectColumns + ` FROM project_approval WHERE id = $1`
	a, err := scanApproval(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProjectApproval{}, ErrApprovalNotFound
		}
		return ProjectApproval{}, fmt.Errorf("could not get project approval: %w", err)
	}
	return a, nil
}

func (r *repositoryImpl) ListForTimesheet(ctx context.Context, timesheetId int) ([]ProjectApproval, error) {
	query := `SELECT ` + selectColumns + ` FROM project_approval WHERE timesheet_id = $1 ORDER BY project_id`
	rows, err := r.db.Query(ctx, query, timesheetId)
	if err != nil {
		return nil, fmt.Errorf("could not query project approvals: %w", err)
	}
	defer rows.Close()

	var approvals []ProjectApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning project approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

func (r *repositoryImpl) Create(ctx context.Context, a ProjectApproval) (ProjectApproval, bool, error) {
	query := `INSERT INTO project_approval (
                    timesheet_id,
                    project_id,
                    owner_id,
                    lead_id,
                    manager_id,
                    lead_status,
                    manager_status,
                    entry_count,
                    total_hours,
                    owner_is_active_member,
                    created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				ON CONFLICT (timesheet_id, project_id) DO NOTHING
				RETURNING id`

	err := r.db.QueryRow(ctx, query,
		a.TimesheetId,
		a.ProjectId,
		a.OwnerId,
		a.LeadId,
		a.ManagerId,
		string(a.LeadStatus),
		string(a.ManagerStatus),
		a.EntryCount,
		a.TotalHours,
		a.OwnerIsActiveMember,
		a.CreatedAt,
	).Scan(&a.Id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProjectApproval{}, false, nil
		}
		err := fmt.Errorf("could not create project approval: %w", err)
		log.Error(err)
		return ProjectApproval{}, false, err
	}
	return a, true, nil
}

func (r *repositoryImpl) Decide(ctx context.Context, id int, tier Tier, status Status, reason string, decidedAt time.Time) error {
	var query string
	switch tier {
	case TierLead:
		query = `UPDATE project_approval SET lead_status = $1, lead_reason = $2, lead_decided_at = $3
                 WHERE id = $4 AND lead_status = 'pending'`
	case TierManager:
		query = `UPDATE project_approval SET manager_status = $1, manager_reason = $2, manager_decided_at = $3
                 WHERE id = $4 AND manager_status = 'pending'`
	default:
		return fmt.Errorf("unknown approval tier %q", tier)
	}

	tag, err := r.db.Exec(ctx, query, string(status), reason, decidedAt, id)
	if err != nil {
		return fmt.Errorf("could not update project approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyDecided
	}
	return nil
}
