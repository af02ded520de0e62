package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Timesheet lifecycle
	r.HandleFunc("/api/timesheet", deps.TimesheetHandler.Create).Methods("POST")
	r.HandleFunc("/api/timesheet", deps.TimesheetHandler.ListForOwner).Queries("ownerId", "{ownerId}").Methods("GET")
	r.HandleFunc("/api/timesheet/{id}", deps.TimesheetHandler.Get).Methods("GET")
	r.HandleFunc("/api/timesheet/{id}", deps.TimesheetHandler.SoftDelete).Methods("DELETE")
	r.HandleFunc("/api/timesheet/{id}/purge", deps.TimesheetHandler.HardDelete).Methods("DELETE")
	r.HandleFunc("/api/timesheet/{id}/submit", deps.TimesheetHandler.Submit).Methods("POST")
	r.HandleFunc("/api/timesheet/{id}/manager-decision", deps.TimesheetHandler.ManagerDecision).Methods("POST")
	r.HandleFunc("/api/timesheet/{id}/management-decision", deps.TimesheetHandler.ManagementDecision).Methods("POST")
	r.HandleFunc("/api/timesheet/{id}/billed", deps.TimesheetHandler.MarkBilled).Methods("POST")
	r.HandleFunc("/api/timesheet/{id}/recompute", deps.TimesheetHandler.Recompute).Methods("POST")

	// Time entries
	r.HandleFunc("/api/timesheet/{id}/entries", deps.TimesheetHandler.ListEntries).Methods("GET")
	r.HandleFunc("/api/timesheet/{id}/entries", deps.TimesheetHandler.AddEntries).Methods("POST")
	r.HandleFunc("/api/timesheet/{id}/entries", deps.TimesheetHandler.ReplaceEntries).Methods("PUT")
	r.HandleFunc("/api/timesheet/{id}/entries/single", deps.TimesheetHandler.AddEntry).Methods("POST")
	r.HandleFunc("/api/timesheet/{id}/entries/{entryId}", deps.TimesheetHandler.UpdateEntry).Methods("PUT")
	r.HandleFunc("/api/timesheet/{id}/entries/{entryId}", deps.TimesheetHandler.DeleteEntry).Methods("DELETE")

	// Project approvals
	r.HandleFunc("/api/timesheet/{id}/approvals", deps.ApprovalHandler.ListForTimesheet).Methods("GET")
	r.HandleFunc("/api/approval/{approvalId}/decision", deps.ApprovalHandler.Decide).Methods("POST")

	// Audit trail
	r.HandleFunc("/api/audit", deps.AuditHandler.Query).Methods("GET")
}
