package notification

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

type Kind string

const (
	KindSubmitted Kind = "timesheet_submitted"
	KindDecided   Kind = "timesheet_decided"
)

// Message is one notification for one recipient.
type Message struct {
	Id          string
	Kind        Kind
	RecipientId int
	TimesheetId int
	Subject     string
	Body        string
	CreatedAt   time.Time
}

// Sender delivers messages. Delivery itself (mail, chat, push) lives outside this service.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes every message to the log.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.WithFields(log.Fields{
		"messageId":   msg.Id,
		"kind":        msg.Kind,
		"recipientId": msg.RecipientId,
		"timesheetId": msg.TimesheetId,
	}).Infof("notification: %s", msg.Subject)
	return nil
}
