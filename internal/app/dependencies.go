package app

import (
	"github.com/hourline/hourline/internal/config"
	"github.com/hourline/hourline/internal/event_bus"
	"github.com/hourline/hourline/internal/utils"
	"github.com/hourline/hourline/pkg/approval"
	"github.com/hourline/hourline/pkg/audit"
	"github.com/hourline/hourline/pkg/employee"
	"github.com/hourline/hourline/pkg/notification"
	"github.com/hourline/hourline/pkg/project"
	"github.com/hourline/hourline/pkg/timesheet"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus

	Employees employee.Directory
	Projects  project.Directory

	AuditRecorder *audit.RecorderImpl
	AuditService  *audit.ServiceImpl
	AuditHandler  *audit.Handler

	ApprovalService *approval.ServiceImpl
	ApprovalHandler *approval.Handler

	TimesheetRepo    timesheet.Repository
	LifecycleService *timesheet.LifecycleServiceImpl
	EntryService     *timesheet.EntryServiceImpl
	TimesheetHandler *timesheet.Handler

	Notifications *notification.Dispatcher
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()

	deps.Employees = employee.NewRepository(db)
	deps.Projects = project.NewRepository(db)

	auditRepo := audit.NewRepository(db)
	deps.AuditRecorder = audit.NewRecorder(auditRepo, deps.Clock)
	deps.AuditService = audit.NewService(auditRepo)
	deps.AuditHandler = audit.NewHandler(deps.AuditService)

	deps.ApprovalService = approval.NewService(approval.NewRepository(db), deps.Projects, deps.AuditRecorder, deps.Clock)
	deps.ApprovalHandler = approval.NewHandler(deps.ApprovalService)

	deps.TimesheetRepo = timesheet.NewRepository(db)
	deps.LifecycleService = timesheet.NewLifecycleService(deps.TimesheetRepo, deps.ApprovalService, deps.Employees, deps.AuditRecorder, deps.EventBus, deps.Clock)
	deps.EntryService = timesheet.NewEntryService(deps.TimesheetRepo, timesheet.NewValidator(cfg.Timesheet.MaxDailyHours), deps.Employees, deps.AuditRecorder, deps.Clock)
	deps.TimesheetHandler = timesheet.NewHandler(deps.LifecycleService, deps.EntryService)

	deps.Notifications = notification.NewDispatcher(notification.LogSender{}, deps.Employees, deps.Clock, cfg.Notification.QueueSize)
	deps.Notifications.Subscribe(deps.EventBus)

	return deps
}
