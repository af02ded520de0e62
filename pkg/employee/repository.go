package employee

import (
	"context"
	"errors"
	"fmt"

	"github.com/hourline/hourline/pkg/actor"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEmployeeNotFound = errors.New("employee not found")

// Directory answers the organisational questions the timesheet workflow needs.
type Directory interface {
	Get(ctx context.Context, id int) (Employee, error)
	// Manages reports whether managerId is the direct manager of employeeId.
	Manages(ctx context.Context, managerId int, employeeId int) (bool, error)
	ListByRole(ctx context.Context, role actor.Role) ([]Employee, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Directory {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Get(ctx context.Context, id int) (Employee, error) {
	query := `SELECT id, display_name, role, manager_id, active FROM employee WHERE id = $1`
	var e Employee
	var role string
	err := r.db.QueryRow(ctx, query, id).Scan(&e.Id, &e.DisplayName, &role, &e.ManagerId, &e.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrEmployeeNotFound
		}
		return Employee{}, fmt.Errorf("could not get employee: %w", err)
	}
	e.Role = actor.Role(role)
	return e, nil
}

func (r *repositoryImpl) Manages(ctx context.Context, managerId int, employeeId int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM employee WHERE id = $1 AND manager_id = $2)`
	var manages bool
	if err := r.db.QueryRow(ctx, query, employeeId, managerId).Scan(&manages); err != nil {
		return false, fmt.Errorf("could not check manager relation: %w", err)
	}
	return manages, nil
}

func (r *repositoryImpl) ListByRole(ctx context.Context, role actor.Role) ([]Employee, error) {
	query := `SELECT id, display_name, role, manager_id, active FROM employee WHERE role = $1 AND active ORDER BY id`
	rows, err := r.db.Query(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var e Employee
		var roleString string
		if err := rows.Scan(&e.Id, &e.DisplayName, &roleString, &e.ManagerId, &e.Active); err != nil {
			return nil, err
		}
		e.Role = actor.Role(roleString)
		employees = append(employees, e)
	}
	return employees, rows.Err()
}
