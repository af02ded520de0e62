package notification

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hourline/hourline/internal/event_bus"
	"github.com/hourline/hourline/internal/utils"
	"github.com/hourline/hourline/pkg/employee"
	log "github.com/sirupsen/logrus"
)

const defaultQueueSize = 256

const sendTimeout = 10 * time.Second

// Dispatcher turns workflow events into messages. Events are queued and returned from immediately so
// a slow Sender never delays a submission or a decision. When the queue is full the message is dropped.
type Dispatcher struct {
	sender    Sender
	employees employee.Directory
	clock     utils.Clock

	queue   chan Message
	wg      sync.WaitGroup
	dropped atomic.Int64

	mu      sync.Mutex
	stopped bool
	unsubs  []func()
}

func NewDispatcher(sender Sender, employees employee.Directory, clock utils.Clock, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	d := &Dispatcher{
		sender:    sender,
		employees: employees,
		clock:     clock,
		queue:     make(chan Message, queueSize),
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

// Subscribe attaches the dispatcher to the workflow events of bus.
func (d *Dispatcher) Subscribe(bus *event_bus.EventBus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unsubs = append(d.unsubs,
		event_bus.SubscribeTyped(bus, event_bus.TimesheetSubmittedEvent, func(e event_bus.EventT[event_bus.TimesheetSubmitted]) error {
			d.onSubmitted(e.Context(), e.Data)
			return nil
		}),
		event_bus.SubscribeTyped(bus, event_bus.TimesheetDecidedEvent, func(e event_bus.EventT[event_bus.TimesheetDecided]) error {
			d.onDecided(e.Context(), e.Data)
			return nil
		}),
	)
}

func (d *Dispatcher) onSubmitted(ctx context.Context, data event_bus.TimesheetSubmitted) {
	subject := fmt.Sprintf("%s submitted the timesheet for the week of %s (%s hours)",
		d.displayName(ctx, data.SubmittedBy), data.WeekStart.Format(time.DateOnly), data.TotalHours.String())
	body := fmt.Sprintf("Timesheet %d is waiting for review (%s).", data.TimesheetId, data.Status)
	for _, recipient := range data.RecipientIds {
		d.enqueue(d.message(KindSubmitted, recipient, data.TimesheetId, subject, body))
	}
}

func (d *Dispatcher) onDecided(ctx context.Context, data event_bus.TimesheetDecided) {
	subject := fmt.Sprintf("Your timesheet %d is now %s", data.TimesheetId, data.Status)
	body := fmt.Sprintf("Decision by %s.", d.displayName(ctx, data.DecidedBy))
	if data.Reason != "" {
		body += " Reason: " + data.Reason
	}
	for _, recipient := range data.RecipientIds {
		d.enqueue(d.message(KindDecided, recipient, data.TimesheetId, subject, body))
	}
}

func (d *Dispatcher) message(kind Kind, recipient int, timesheetId int, subject string, body string) Message {
	return Message{
		Id:          uuid.NewString(),
		Kind:        kind,
		RecipientId: recipient,
		TimesheetId: timesheetId,
		Subject:     subject,
		Body:        body,
		CreatedAt:   d.clock.Now(),
	}
}

func (d *Dispatcher) displayName(ctx context.Context, id int) string {
	e, err := d.employees.Get(ctx, id)
	if err != nil {
		log.Debugf("could not resolve employee %d for notification: %v", id, err)
		return fmt.Sprintf("employee %d", id)
	}
	return e.DisplayName
}

func (d *Dispatcher) enqueue(msg Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.dropped.Add(1)
		log.Warnf("notification dispatcher stopped, dropping %s message for %d", msg.Kind, msg.RecipientId)
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.dropped.Add(1)
		log.Warnf("notification queue full, dropping %s message for %d", msg.Kind, msg.RecipientId)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := d.sender.Send(ctx, msg); err != nil {
			log.Errorf("failed to send notification %s to %d: %v", msg.Id, msg.RecipientId, err)
		}
		cancel()
	}
}

// Dropped returns how many messages were discarded because the queue was full or closed.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Stop unsubscribes from the bus and waits until queued messages are sent or ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	for _, unsubscribe := range d.unsubs {
		unsubscribe()
	}
	d.unsubs = nil
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification queue not drained: %w", ctx.Err())
	}
}
