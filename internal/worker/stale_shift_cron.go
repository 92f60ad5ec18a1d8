package worker

// stale_shift_cron.go
// Background goroutine that reports shifts still open long after check-in,
// usually a forgotten checkout. It only logs; closing shifts stays a
// deliberate staff or admin action.

import (
	"context"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/dto"

	"github.com/rs/zerolog/log"
)

const staleShiftTickInterval = 15 * time.Minute

// StaleShiftSource is satisfied by service.AttendanceService.
type StaleShiftSource interface {
	StaleShifts(ctx context.Context, olderThan time.Duration) ([]dto.AttendanceResponse, error)
}

type StaleShiftConfig struct {
	Source    StaleShiftSource
	OlderThan time.Duration
	Interval  time.Duration
}

// StartStaleShiftMonitor ticks until ctx is cancelled.
func StartStaleShiftMonitor(ctx context.Context, cfg StaleShiftConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = staleShiftTickInterval
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("older_than", cfg.OlderThan).Msg("stale_shift_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stale_shift_cron: shutting down")
				return
			case <-ticker.C:
				reportStaleShifts(ctx, cfg)
			}
		}
	}()
}

func reportStaleShifts(ctx context.Context, cfg StaleShiftConfig) int {
	shifts, err := cfg.Source.StaleShifts(ctx, cfg.OlderThan)
	if err != nil {
		log.Error().Err(err).Msg("stale_shift_cron: query failed")
		return 0
	}
	for _, s := range shifts {
		log.Warn().
			Str("staff_id", s.StaffID).
			Str("staff_name", s.StaffName).
			Str("date", s.Date).
			Time("check_in", s.CheckIn).
			Bool("on_break", s.OnBreak).
			Msg("stale_shift_cron: shift still open")
	}
	return len(shifts)
}
