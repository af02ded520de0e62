package approval

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hourline/hourline/internal/rest"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ProjectApprovalDTO struct {
	Id                  int             `json:"id"`
	TimesheetId         int             `json:"timesheetId"`
	ProjectId           int             `json:"projectId"`
	LeadId              *int            `json:"leadId,omitempty"`
	ManagerId           *int            `json:"managerId,omitempty"`
	LeadStatus          string          `json:"leadStatus"`
	ManagerStatus       string          `json:"managerStatus"`
	LeadReason          string          `json:"leadReason,omitempty"`
	ManagerReason       string          `json:"managerReason,omitempty"`
	LeadDecidedAt       *time.Time      `json:"leadDecidedAt,omitempty"`
	ManagerDecidedAt    *time.Time      `json:"managerDecidedAt,omitempty"`
	EntryCount          int             `json:"entryCount"`
	TotalHours          decimal.Decimal `json:"totalHours"`
	OwnerIsActiveMember bool            `json:"ownerIsActiveMember"`
	CreatedAt           time.Time       `json:"createdAt"`
}

type DecisionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListForTimesheet godoc
// @Summary List project approvals of a timesheet
// @Tags ProjectApproval
// @Produce json
// @Param id path int true "Timesheet ID"
// @Success 200 {array} ProjectApprovalDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/timesheet/{id}/approvals [get]
// @Security XUserId
func (h *Handler) ListForTimesheet(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing project approvals")
	timesheetId, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		rest.WriteBadRequest(w, "Invalid timesheet ID", err.Error())
		return
	}

	approvals, err := h.service.ListForTimesheet(r.Context(), timesheetId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	dtos := make([]ProjectApprovalDTO, 0, len(approvals))
	for _, a := range approvals {
		dtos = append(dtos, ApprovalToDTO(a))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// Decide godoc
// @Summary Approve or reject a project slice
// @Description The project's lead or manager signs off the hours booked on their project
// @Tags ProjectApproval
// @Accept json
// @Produce json
// @Param approvalId path int true "Project approval ID"
// @Param decision body DecisionRequest true "Decision"
// @Success 200 {object} ProjectApprovalDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 403 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Failure 422 {object} rest.ErrorResponse
// @Router /api/approval/{approvalId}/decision [post]
// @Security XUserId
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	log.Debug("Deciding project approval")
	approvalId, err := strconv.Atoi(mux.Vars(r)["approvalId"])
	if err != nil {
		rest.WriteBadRequest(w, "Invalid approval ID", err.Error())
		return
	}

	var req DecisionRequest
	if err := rest.DecodeAndValidate(r, &req); err != nil {
		rest.WriteError(w, err)
		return
	}

	updated, err := h.service.Decide(r.Context(), approvalId, DecisionAction(req.Action), req.Reason)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ApprovalToDTO(updated))
}

func ApprovalToDTO(a ProjectApproval) ProjectApprovalDTO {
	return ProjectApprovalDTO{
		Id:                  a.Id,
		TimesheetId:         a.TimesheetId,
		ProjectId:           a.ProjectId,
		LeadId:              a.LeadId,
		ManagerId:           a.ManagerId,
		LeadStatus:          string(a.LeadStatus),
		ManagerStatus:       string(a.ManagerStatus),
		LeadReason:          a.LeadReason,
		ManagerReason:       a.ManagerReason,
		LeadDecidedAt:       a.LeadDecidedAt,
		ManagerDecidedAt:    a.ManagerDecidedAt,
		EntryCount:          a.EntryCount,
		TotalHours:          a.TotalHours,
		OwnerIsActiveMember: a.OwnerIsActiveMember,
		CreatedAt:           a.CreatedAt,
	}
}
