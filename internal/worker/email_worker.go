package worker

// email_worker.go
// Sends supervisor notifications from QueueEmail through the SMTP circuit
// breaker, retrying with exponential backoff before giving up.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/infra"

	"github.com/rs/zerolog/log"
)

const emailMaxAttempts = 3

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail string `json:"to_email"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender is satisfied by *infra.Mailer.
type Sender interface {
	SendNotification(to, subject, body string) error
}

type EmailWorker struct {
	sender  Sender
	cb      *infra.CircuitBreaker
	backoff time.Duration
}

func NewEmailWorker(sender Sender, cb *infra.CircuitBreaker) *EmailWorker {
	return &EmailWorker{sender: sender, cb: cb, backoff: time.Second}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	err := withRetry(ctx, emailMaxAttempts, w.backoff, func(attempt int) error {
		disabled := false
		err := w.cb.Do(func() error {
			err := w.sender.SendNotification(payload.ToEmail, payload.Subject, payload.Body)
			// a missing SMTP config says nothing about the server's health
			if errors.Is(err, infra.ErrMailerDisabled) {
				disabled = true
				return nil
			}
			return err
		})
		if disabled {
			return infra.ErrMailerDisabled
		}
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Str("to", payload.ToEmail).Msg("email_worker: send failed")
		}
		return err
	})
	if errors.Is(err, infra.ErrMailerDisabled) {
		log.Warn().Str("to", payload.ToEmail).Str("subject", payload.Subject).Msg("email_worker: SMTP not configured, notification dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: notification sent")
	return nil
}

// withRetry calls fn up to maxAttempts times, waiting base, 2*base, ...
// between attempts. A disabled mailer or an open breaker is not retried.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, infra.ErrMailerDisabled) || errors.Is(err, infra.ErrCircuitOpen) {
			return err
		}
	}
	return lastErr
}
