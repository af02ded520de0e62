package timesheet

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hourline/hourline/internal/rest"
	"github.com/hourline/hourline/pkg/apperror"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type TimesheetDTO struct {
	Id              int             `json:"id"`
	OwnerId         int             `json:"ownerId"`
	WeekStart       string          `json:"weekStart"`
	WeekEnd         string          `json:"weekEnd"`
	TotalHours      decimal.Decimal `json:"totalHours"`
	Status          string          `json:"status"`
	SubmittedAt     *time.Time      `json:"submittedAt,omitempty"`
	SubmittedBy     *int            `json:"submittedBy,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	ApprovedBy      *int            `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time      `json:"rejectedAt,omitempty"`
	RejectedBy      *int            `json:"rejectedBy,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	VerifiedAt      *time.Time      `json:"verifiedAt,omitempty"`
	VerifiedBy      *int            `json:"verifiedBy,omitempty"`
	IsFrozen        bool            `json:"isFrozen"`
	IsVerified      bool            `json:"isVerified"`
	IsBilled        bool            `json:"isBilled"`
	BilledAt        *time.Time      `json:"billedAt,omitempty"`
	DeletedAt       *time.Time      `json:"deletedAt,omitempty"`
	DeletedReason   string          `json:"deletedReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type EntryDTO struct {
	Id          int             `json:"id"`
	ProjectId   *int            `json:"projectId,omitempty"`
	TaskId      *int            `json:"taskId,omitempty"`
	CustomTask  string          `json:"customTask,omitempty"`
	EntryType   string          `json:"entryType" validate:"required,oneof=project_task custom_task"`
	Date        string          `json:"date" validate:"required,datetime=2006-01-02"`
	Hours       decimal.Decimal `json:"hours"`
	IsBillable  bool            `json:"isBillable"`
	Description string          `json:"description,omitempty"`
}

type CreateTimesheetRequest struct {
	OwnerId   int    `json:"ownerId" validate:"required,gt=0"`
	WeekStart string `json:"weekStart" validate:"required,datetime=2006-01-02"`
}

type EntriesRequest struct {
	Entries []EntryDTO `json:"entries" validate:"dive"`
}

type DecisionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason"`
}

type DeleteRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type TotalHoursDTO struct {
	TotalHours decimal.Decimal `json:"totalHours"`
}

type Handler struct {
	lifecycle LifecycleService
	entries   EntryService
}

func NewHandler(lifecycle LifecycleService, entries EntryService) *Handler {
	return &Handler{lifecycle: lifecycle, entries: entries}
}

// Create godoc
// @Summary Create a draft timesheet
// @Description Creates the timesheet of an employee for the ISO week containing weekStart
// @Tags Timesheet
// @Accept json
// @Produce json
// @Param timesheet body CreateTimesheetRequest true "Owner and week"
// @Success 201 {object} TimesheetDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 {object} rest.ErrorResponse
// @Failure 409 {object} rest.ErrorResponse
// @Router /api/timesheet [post]
// @Security XUserId
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating timesheet")
	var req CreateTimesheetRequest
	if err := rest.DecodeAndValidate(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}
	weekStart, _ := time.Parse(time.DateOnly, req.WeekStart)

	ts, err := h.lifecycle.Create(r.Context(), req.OwnerId, weekStart)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, TimesheetToDTO(ts))
}

// Get godoc
// @Summary Get a timesheet
// @Tags Timesheet
// @Produce json
// @Param id path int true "Timesheet ID"
// @Success 200 {object} TimesheetDTO
// @Failure 403 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/timesheet/{id} [get]
// @Security XUserId
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	ts, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TimesheetToDTO(ts))
}

// ListForOwner godoc
// @Summary List the timesheets of an employee
// @Tags Timesheet
// @Produce json
// @Param ownerId query int true "Owner ID"
// @Success 200 {array} TimesheetDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 {object} rest.ErrorResponse
// @Router /api/timesheet [get]
// @Security XUserId
func (h *Handler) ListForOwner(w http.ResponseWriter, r *http.Request) {
	ownerId, err := strconv.Atoi(r.URL.Query().Get("ownerId"))
	if err != nil {
		rest.WriteBadRequest(w, "Invalid owner ID", err.Error())
		return
	}
	timesheets, err := h.lifecycle.ListForOwner(r.Context(), ownerId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	dtos := make([]TimesheetDTO, 0, len(timesheets))
	for _, ts := range timesheets {
		dtos = append(dtos, TimesheetToDTO(ts))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// Submit godoc
// @Summary Submit a timesheet for approval
// @Tags Timesheet
// @Produce json
// @Param id path int true "Timesheet ID"
// @Success 200 {object} TimesheetDTO
// @Failure 403 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/submit [post]
// @Security XUserId
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	log.Debug("Submitting timesheet")
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	ts, err := h.lifecycle.Submit(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TimesheetToDTO(ts))
}

// ManagerDecision godoc
// @Summary Manager approval or rejection
// @Tags Timesheet
// @Accept json
// @Produce json
// @Param id path int true "Timesheet ID"
// @Param decision body DecisionRequest true "Decision"
// @Success 200 {object} TimesheetDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/manager-decision [post]
// @Security XUserId
func (h *Handler) ManagerDecision(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.lifecycle.ManagerDecision)
}

// ManagementDecision godoc
// @Summary Management approval or rejection
// @Tags Timesheet
// @Accept json
// @Produce json
// @Param id path int true "Timesheet ID"
// @Param decision body DecisionRequest true "Decision"
// @Success 200 {object} TimesheetDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/management-decision [post]
// @Security XUserId
func (h *Handler) ManagementDecision(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.lifecycle.ManagementDecision)
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, id int, action DecisionAction, reason string) (Timesheet, error)) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if err := rest.DecodeAndValidate(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}
	ts, err := decide(r.Context(), id, DecisionAction(req.Action), req.Reason)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TimesheetToDTO(ts))
}

// MarkBilled godoc
// @Summary Mark a frozen timesheet as billed
// @Tags Timesheet
// @Produce json
// @Param id path int true "Timesheet ID"
// @Success 200 {object} TimesheetDTO
// @Failure 403 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/billed [post]
// @Security XUserId
func (h *Handler) MarkBilled(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	ts, err := h.lifecycle.MarkBilled(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TimesheetToDTO(ts))
}

// SoftDelete godoc
// @Summary Soft delete a timesheet
// @Tags Timesheet
// @Accept json
// @Produce json
// @Param id path int true "Timesheet ID"
// @Param request body DeleteRequest true "Deletion reason"
// @Success 200 {object} TimesheetDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id} [delete]
// @Security XUserId
func (h *Handler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	var req DeleteRequest
	if err := rest.DecodeAndValidate(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}
	ts, err := h.lifecycle.SoftDelete(r.Context(), id, req.Reason)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TimesheetToDTO(ts))
}

// HardDelete godoc
// @Summary Permanently delete a soft-deleted timesheet
// @Tags Timesheet
// @Param id path int true "Timesheet ID"
// @Success 204
// @Failure 403 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/purge [delete]
// @Security XUserId
func (h *Handler) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	if err := h.lifecycle.HardDelete(r.Context(), id); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEntries godoc
// @Summary List the live entries of a timesheet
// @Tags TimeEntry
// @Produce json
// @Param id path int true "Timesheet ID"
// @Success 200 {array} EntryDTO
// @Router /api/timesheet/{id}/entries [get]
// @Security XUserId
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.entries.ListEntries(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, entriesToDTO(entries))
}

// AddEntry godoc
// @Summary Add a single time entry
// @Tags TimeEntry
// @Accept json
// @Produce json
// @Param id path int true "Timesheet ID"
// @Param entry body EntryDTO true "Entry"
// @Success 201 {object} EntryDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/entries/single [post]
// @Security XUserId
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	var dto EntryDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, err)
		return
	}
	created, err := h.entries.AddEntry(r.Context(), id, DTOToEntry(dto))
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, EntryToDTO(created))
}

// AddEntries godoc
// @Summary Add several time entries
// @Tags TimeEntry
// @Accept json
// @Produce json
// @Param id path int true "Timesheet ID"
// @Param entries body EntriesRequest true "Entries"
// @Success 201 {array} EntryDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/entries [post]
// @Security XUserId
func (h *Handler) AddEntries(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, http.StatusCreated, h.entries.AddEntries)
}

// ReplaceEntries godoc
// @Summary Replace every entry of a timesheet
// @Tags TimeEntry
// @Accept json
// @Produce json
// @Param id path int true "Timesheet ID"
// @Param entries body EntriesRequest true "Entries"
// @Success 200 {array} EntryDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/entries [put]
// @Security XUserId
func (h *Handler) ReplaceEntries(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, http.StatusOK, h.entries.ReplaceEntries)
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request, status int, apply func(ctx context.Context, timesheetId int, entries []TimeEntry) ([]TimeEntry, error)) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	var req EntriesRequest
	if err := rest.DecodeAndValidate(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}
	entries := make([]TimeEntry, 0, len(req.Entries))
	for _, dto := range req.Entries {
		entries = append(entries, DTOToEntry(dto))
	}
	saved, err := apply(r.Context(), id, entries)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, status, entriesToDTO(saved))
}

// UpdateEntry godoc
// @Summary Update a time entry
// @Tags TimeEntry
// @Accept json
// @Produce json
// @Param id path int true "Timesheet ID"
// @Param entryId path int true "Entry ID"
// @Param entry body EntryDTO true "Entry"
// @Success 200 {object} EntryDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/entries/{entryId} [put]
// @Security XUserId
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	entryId, ok := pathId(w, r, "entryId")
	if !ok {
		return
	}
	var dto EntryDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, err)
		return
	}
	entry := DTOToEntry(dto)
	entry.Id = entryId
	updated, err := h.entries.UpdateEntry(r.Context(), id, entry)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, EntryToDTO(updated))
}

// DeleteEntry godoc
// @Summary Delete a time entry
// @Tags TimeEntry
// @Param id path int true "Timesheet ID"
// @Param entryId path int true "Entry ID"
// @Success 204
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/entries/{entryId} [delete]
// @Security XUserId
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	entryId, ok := pathId(w, r, "entryId")
	if !ok {
		return
	}
	if err := h.entries.DeleteEntry(r.Context(), id, entryId); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recompute godoc
// @Summary Recompute total hours from the live entries
// @Tags TimeEntry
// @Produce json
// @Param id path int true "Timesheet ID"
// @Success 200 {object} TotalHoursDTO
// @Router /api/timesheet/{id}/recompute [post]
// @Security XUserId
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r, "id")
	if !ok {
		return
	}
	total, err := h.entries.RecomputeTotalHours(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, TotalHoursDTO{TotalHours: total})
}

func pathId(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		rest.WriteError(w, apperror.Validation("invalid %s: %q", name, mux.Vars(r)[name]))
		return 0, false
	}
	return id, true
}

func TimesheetToDTO(ts Timesheet) TimesheetDTO {
	return TimesheetDTO{
		Id:              ts.Id,
		OwnerId:         ts.OwnerId,
		WeekStart:       dateKey(ts.WeekStart),
		WeekEnd:         dateKey(ts.WeekEnd),
		TotalHours:      ts.TotalHours,
		Status:          string(ts.Status),
		SubmittedAt:     ts.SubmittedAt,
		SubmittedBy:     ts.SubmittedBy,
		ApprovedAt:      ts.ApprovedAt,
		ApprovedBy:      ts.ApprovedBy,
		RejectedAt:      ts.RejectedAt,
		RejectedBy:      ts.RejectedBy,
		RejectionReason: ts.RejectionReason,
		VerifiedAt:      ts.VerifiedAt,
		VerifiedBy:      ts.VerifiedBy,
		IsFrozen:        ts.IsFrozen,
		IsVerified:      ts.IsVerified,
		IsBilled:        ts.IsBilled,
		BilledAt:        ts.BilledAt,
		DeletedAt:       ts.DeletedAt,
		DeletedReason:   ts.DeletedReason,
		CreatedAt:       ts.CreatedAt,
		UpdatedAt:       ts.UpdatedAt,
	}
}

func EntryToDTO(e TimeEntry) EntryDTO {
	return EntryDTO{
		Id:          e.Id,
		ProjectId:   e.ProjectId,
		TaskId:      e.TaskId,
		CustomTask:  e.CustomTask,
		EntryType:   string(e.EntryType),
		Date:        dateKey(e.Date),
		Hours:       e.Hours,
		IsBillable:  e.IsBillable,
		Description: e.Description,
	}
}

// DTOToEntry expects a DTO that already passed struct validation, so the date parses.
func DTOToEntry(dto EntryDTO) TimeEntry {
	date, _ := time.Parse(time.DateOnly, dto.Date)
	return TimeEntry{
		Id:          dto.Id,
		ProjectId:   dto.ProjectId,
		TaskId:      dto.TaskId,
		CustomTask:  dto.CustomTask,
		EntryType:   EntryType(dto.EntryType),
		Date:        date,
		Hours:       dto.Hours,
		IsBillable:  dto.IsBillable,
		Description: dto.Description,
	}
}

func entriesToDTO(entries []TimeEntry) []EntryDTO {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryToDTO(e))
	}
	return dtos
}
