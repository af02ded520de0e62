package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hourline/hourline/internal/rest"
	log "github.com/sirupsen/logrus"
)

type RecordDTO struct {
	Id          string          `json:"id"`
	EntityType  string          `json:"entityType"`
	EntityId    int             `json:"entityId"`
	Action      string          `json:"action"`
	ActorId     int             `json:"actorId"`
	ActorName   string          `json:"actorName"`
	Context     map[string]any  `json:"context,omitempty"`
	SideEffects []string        `json:"sideEffects,omitempty"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Query godoc
// @Summary Query the audit trail
// @Description Read-only access to audit records by entity, actor or time range
// @Tags Audit
// @Produce json
// @Param entityType query string false "Entity type (timesheet, time_entry, project_approval)"
// @Param entityId query int false "Entity ID"
// @Param actorId query int false "Actor ID"
// @Param from query string false "RFC3339 lower bound (inclusive)"
// @Param to query string false "RFC3339 upper bound (exclusive)"
// @Param limit query int false "Maximum number of records"
// @Success 200 {array} RecordDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 {object} rest.ErrorResponse
// @Router /api/audit [get]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	log.Debug("Querying audit trail")
	filter, err := filterFromQuery(r)
	if err != nil {
		rest.WriteBadRequest(w, "Invalid query parameter", err.Error())
		return
	}

	records, err := h.service.Query(r.Context(), filter)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, RecordToDTO(rec))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{EntityType: EntityType(q.Get("entityType"))}

	intParams := map[string]*int{
		"entityId": &filter.EntityId,
		"actorId":  &filter.ActorId,
		"limit":    &filter.Limit,
	}
	for name, dst := range intParams {
		if raw := q.Get(name); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil {
				return Filter{}, err
			}
			*dst = value
		}
	}

	timeParams := map[string]*time.Time{
		"from": &filter.From,
		"to":   &filter.To,
	}
	for name, dst := range timeParams {
		if raw := q.Get(name); raw != "" {
			value, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return Filter{}, err
			}
			*dst = value
		}
	}
	return filter, nil
}

func RecordToDTO(rec Record) RecordDTO {
	return RecordDTO{
		Id:          rec.Id.String(),
		EntityType:  string(rec.EntityType),
		EntityId:    rec.EntityId,
		Action:      string(rec.Action),
		ActorId:     rec.ActorId,
		ActorName:   rec.ActorName,
		Context:     rec.Context,
		SideEffects: rec.SideEffects,
		Before:      rec.Before,
		After:       rec.After,
		CreatedAt:   rec.CreatedAt,
	}
}
