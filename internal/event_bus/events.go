package event_bus

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TimesheetSubmittedEvent EventType = "timesheet.submitted"
	TimesheetDecidedEvent   EventType = "timesheet.decided"
)

// TimesheetSubmitted is handed to the notification dispatcher after a successful submission.
type TimesheetSubmitted struct {
	RecipientIds []int
	TimesheetId  int
	SubmittedBy  int
	WeekStart    time.Time
	TotalHours   decimal.Decimal
	// Status is either submitted or management_pending.
	Status string
}

// TimesheetDecided is published after a manager or management approval or rejection.
type TimesheetDecided struct {
	RecipientIds []int
	TimesheetId  int
	DecidedBy    int
	Status       string
	Reason       string
}
