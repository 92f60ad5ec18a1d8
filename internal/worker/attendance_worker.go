package worker

// attendance_worker.go
// Consumes QueueAttendance. Every committed transition is logged as an
// audit line; a checkout that had to auto-end a running break also notifies
// NOTIFY_EMAIL so a supervisor can review the shift.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shototoy/qr-attendance-api/internal/dto"

	"github.com/rs/zerolog/log"
)

// EmailEnqueuer is satisfied by *Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type AttendanceWorker struct {
	emails   EmailEnqueuer
	notifyTo string
}

func NewAttendanceWorker(emails EmailEnqueuer, notifyTo string) *AttendanceWorker {
	return &AttendanceWorker{emails: emails, notifyTo: notifyTo}
}

func (w *AttendanceWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var ev dto.AttendanceEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	log.Info().
		Str("event", ev.Type).
		Str("staff_id", ev.StaffID).
		Str("attendance_id", ev.AttendanceID).
		Time("at", ev.At).
		Msg("attendance_worker: event")

	if ev.Type != dto.EventCheckOut || !ev.BreaksAutoEnded || w.notifyTo == "" {
		return nil
	}

	who := ev.StaffName
	if who == "" {
		who = ev.StaffID
	}
	job := EmailJobPayload{
		ToEmail: w.notifyTo,
		Subject: "Break auto-ended at checkout: " + who,
		Body: fmt.Sprintf(
			"%s checked out at %s while still on break.\nThe break was closed at checkout time.\nAttendance record: %s\n",
			who, ev.At.Format("2006-01-02 15:04 MST"), ev.AttendanceID),
	}
	if err := w.emails.EnqueueEmail(ctx, job); err != nil {
		return fmt.Errorf("enqueue auto-ended break notification: %w", err)
	}
	log.Info().Str("staff_id", ev.StaffID).Msg("attendance_worker: supervisor notification enqueued")
	return nil
}
