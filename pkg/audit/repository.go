package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is append-only: there is deliberately no update or delete.
type Repository interface {
	Insert(ctx context.Context, record Record) error
	Find(ctx context.Context, filter Filter) ([]Record, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Insert(ctx context.Context, record Record) error {
	contextJson, err := json.Marshal(record.Context)
	if err != nil {
		return fmt.Errorf("could not encode audit context: %w", err)
	}
	sideEffectsJson, err := json.Marshal(record.SideEffects)
	if err != nil {
		return fmt.Errorf("could not encode audit side effects: %w", err)
	}

	query := `INSERT INTO audit_record (
                          id,
                          entity_type,
                          entity_id,
                          action,
                          actor_id,
                          actor_name,
                          context,
                          side_effects,
                          before_state,
                          after_state,
                          created_at
              ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.Exec(ctx, query,
		record.Id,
		string(record.EntityType),
		record.EntityId,
		string(record.Action),
		record.ActorId,
		record.ActorName,
		contextJson,
		sideEffectsJson,
		nullableJson(record.Before),
		nullableJson(record.After),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("could not insert audit record: %w", err)
	}
	return nil
}

func (r *repositoryImpl) Find(ctx context.Context, filter Filter) ([]Record, error) {
	var conditions []string
	var args []any
	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.EntityType != "" {
		addCondition("entity_type = $%d", string(filter.EntityType))
	}
	if filter.EntityId != 0 {
		addCondition("entity_id = $%d", filter.EntityId)
	}
	if filter.ActorId != 0 {
		addCondition("actor_id = $%d", filter.ActorId)
	}
	if !filter.From.IsZero() {
		addCondition("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		addCondition("created_at < $%d", filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.limit())
	query := fmt.Sprintf(`SELECT id, entity_type, entity_id, action, actor_id, actor_name,
       			context, side_effects, before_state, after_state, created_at
			  FROM audit_record %s
			  ORDER BY created_at, id
			  LIMIT $%d`, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var entityType, action string
		var contextJson, sideEffectsJson, before, after []byte
		if err := rows.Scan(
			&rec.Id,
			&entityType,
			&rec.EntityId,
			&action,
			&rec.ActorId,
			&rec.ActorName,
			&contextJson,
			&sideEffectsJson,
			&before,
			&after,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.EntityType = EntityType(entityType)
		rec.Action = Action(action)
		if len(contextJson) > 0 {
			if err := json.Unmarshal(contextJson, &rec.Context); err != nil {
				return nil, fmt.Errorf("could not decode audit context: %w", err)
			}
		}
		if len(sideEffectsJson) > 0 {
			if err := json.Unmarshal(sideEffectsJson, &rec.SideEffects); err != nil {
				return nil, fmt.Errorf("could not decode audit side effects: %w", err)
			}
		}
		rec.Before = before
		rec.After = after
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableJson(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
