package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProjectNotFound = errors.New("project not found")

type Directory interface {
	Get(ctx context.Context, id int) (Project, error)
	// IsActiveMember reports whether userId is an active member of the project.
	IsActiveMember(ctx context.Context, projectId int, userId int) (bool, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Directory {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Get(ctx context.Context, id int) (Project, error) {
	query := `SELECT id, name, lead_id, manager_id FROM project WHERE id = $1`
	var p Project
	err := r.db.QueryRow(ctx, query, id).Scan(&p.Id, &p.Name, &p.LeadId, &p.ManagerId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		return Project{}, fmt.Errorf("could not get project: %w", err)
	}
	return p, nil
}

func (r *repositoryImpl) IsActiveMember(ctx context.Context, projectId int, userId int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM project_member WHERE project_id = $1 AND user_id = $2 AND active)`
	var member bool
	if err := r.db.QueryRow(ctx, query, projectId, userId).Scan(&member); err != nil {
		return false, fmt.Errorf("could not check project membership: %w", err)
	}
	return member, nil
}
