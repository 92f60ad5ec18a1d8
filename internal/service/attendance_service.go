package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/dto"
	"github.com/shototoy/qr-attendance-api/internal/model"
	"github.com/shototoy/qr-attendance-api/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	staleShiftBatchSize = 100
	// storePrecision is the coarsest timestamp column resolution across the
	// supported drivers (mysql datetime(3)). Breaks live in a JSON column and
	// must carry the same instants as check_in and check_out.
	storePrecision = time.Millisecond
)

// AttendanceService owns the shift lifecycle (check-in / check-out) and the
// break tracker. Mutations for one staff member are linearizable; different
// staff members never wait on each other.
type AttendanceService interface {
	CheckIn(ctx context.Context, staffID uuid.UUID) (*dto.CheckInResponse, error)
	CheckOut(ctx context.Context, staffID uuid.UUID) (*dto.CheckOutResponse, error)
	StartBreak(ctx context.Context, staffID uuid.UUID) (*dto.BreakStartResponse, error)
	EndBreak(ctx context.Context, staffID uuid.UUID) (*dto.BreakEndResponse, error)
	// Current returns the open shift of the staff member, or nil.
	Current(ctx context.Context, staffID uuid.UUID) (*dto.AttendanceResponse, error)
	Today(ctx context.Context) ([]dto.AttendanceResponse, error)
	History(ctx context.Context, staffID *uuid.UUID, limit int) ([]dto.AttendanceResponse, error)
	// StaleShifts lists shifts still open after olderThan.
	StaleShifts(ctx context.Context, olderThan time.Duration) ([]dto.AttendanceResponse, error)
}

// EventPublisher receives committed transitions. Publishing is best effort.
type EventPublisher interface {
	PublishAttendance(ctx context.Context, ev dto.AttendanceEvent) error
}

// AttendanceOptions tunes the service. Zero values fall back to defaults.
type AttendanceOptions struct {
	// Location defines the calendar day for the once-per-day check-in rule.
	Location            *time.Location
	Clock               func() time.Time
	HistoryDefaultLimit int
}

type attendanceService struct {
	repo         repository.AttendanceRepository
	directory    StaffDirectory
	events       EventPublisher
	locks        *keyedMutex
	loc          *time.Location
	now          func() time.Time
	historyLimit int
}

func NewAttendanceService(repo repository.AttendanceRepository, directory StaffDirectory, events EventPublisher, opts AttendanceOptions) AttendanceService {
	s := &attendanceService{
		repo:         repo,
		directory:    directory,
		events:       events,
		locks:        newKeyedMutex(),
		loc:          opts.Location,
		now:          opts.Clock,
		historyLimit: opts.HistoryDefaultLimit,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.historyLimit <= 0 || s.historyLimit > maxHistoryLimit {
		s.historyLimit = defaultHistoryLimit
	}
	return s
}

// ── CheckIn ───────────────────────────────────────────────────────────────────
// Once per calendar day: any record for today, open or closed, rejects.

func (s *attendanceService) CheckIn(ctx context.Context, staffID uuid.UUID) (*dto.CheckInResponse, error) {
	var rec *model.AttendanceRecord
	err := s.mutate(ctx, staffID, func(repo repository.AttendanceRepository, now time.Time) error {
		today := s.workDate(now)
		_, err := repo.FindByStaffAndDate(ctx, staffID, today)
		switch {
		case err == nil:
			return ErrAlreadyCheckedIn
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("check-in lookup: %w", err)
		}

		rec = &model.AttendanceRecord{
			StaffID:  staffID,
			WorkDate: today,
			CheckIn:  now,
			Breaks:   model.BreakList{},
		}
		if err := repo.Create(ctx, rec); err != nil {
			// lost a race against another instance on the unique index
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyCheckedIn
			}
			return fmt.Errorf("check-in create: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logRejected("check_in", staffID, err)
		return nil, err
	}

	name := s.directory.DisplayName(ctx, staffID)
	s.publish(ctx, dto.AttendanceEvent{
		Type: dto.EventCheckIn, StaffID: staffID.String(), StaffName: name,
		AttendanceID: rec.ID.String(), At: rec.CheckIn,
	})
	log.Info().Str("staff_id", staffID.String()).Str("date", rec.WorkDate).Msg("attendance: checked in")

	return &dto.CheckInResponse{
		Message:    withName("Checked in", name),
		Attendance: toAttendanceResponse(rec, name),
	}, nil
}

// ── CheckOut ──────────────────────────────────────────────────────────────────
// Closes the most recent open shift, whatever its date. A break still running
// is ended at checkout time and flagged autoEnded; breaks and check-out are
// written together.

func (s *attendanceService) CheckOut(ctx context.Context, staffID uuid.UUID) (*dto.CheckOutResponse, error) {
	var (
		rec       *model.AttendanceRecord
		autoEnded bool
	)
	err := s.mutate(ctx, staffID, func(repo repository.AttendanceRepository, now time.Time) error {
		var err error
		if rec, err = s.openShift(ctx, repo, staffID); err != nil {
			return err
		}

		autoEnded = rec.Breaks.CloseAll(now)
		checkOut := now
		rec.CheckOut = &checkOut

		if err := repo.SaveShift(ctx, rec); err != nil {
			return fmt.Errorf("check-out save: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logRejected("check_out", staffID, err)
		return nil, err
	}

	name := s.directory.DisplayName(ctx, staffID)
	s.publish(ctx, dto.AttendanceEvent{
		Type: dto.EventCheckOut, StaffID: staffID.String(), StaffName: name,
		AttendanceID: rec.ID.String(), At: *rec.CheckOut, BreaksAutoEnded: autoEnded,
	})
	log.Info().
		Str("staff_id", staffID.String()).
		Bool("breaks_auto_ended", autoEnded).
		Msg("attendance: checked out")

	msg := withName("Checked out", name)
	if autoEnded {
		msg += " (active break was ended automatically)"
	}
	return &dto.CheckOutResponse{
		Message:         msg,
		BreaksAutoEnded: autoEnded,
		Attendance:      toAttendanceResponse(rec, name),
	}, nil
}

// ── StartBreak ────────────────────────────────────────────────────────────────

func (s *attendanceService) StartBreak(ctx context.Context, staffID uuid.UUID) (*dto.BreakStartResponse, error) {
	var (
		rec   *model.AttendanceRecord
		start time.Time
	)
	err := s.mutate(ctx, staffID, func(repo repository.AttendanceRepository, now time.Time) error {
		var err error
		if rec, err = s.openShift(ctx, repo, staffID); err != nil {
			return err
		}
		if rec.Breaks.Active() >= 0 {
			return ErrAlreadyOnBreak
		}

		start = now
		rec.Breaks = append(rec.Breaks, model.Break{Start: start})
		if err := repo.SaveShift(ctx, rec); err != nil {
			return fmt.Errorf("break start save: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logRejected("break_start", staffID, err)
		return nil, err
	}

	name := s.directory.DisplayName(ctx, staffID)
	s.publish(ctx, dto.AttendanceEvent{
		Type: dto.EventBreakStart, StaffID: staffID.String(), StaffName: name,
		AttendanceID: rec.ID.String(), At: start,
	})
	log.Info().Str("staff_id", staffID.String()).Msg("attendance: break started")

	return &dto.BreakStartResponse{
		Message:    withName("Break started", name),
		StaffID:    staffID.String(),
		BreakStart: start,
	}, nil
}

// ── EndBreak ──────────────────────────────────────────────────────────────────

func (s *attendanceService) EndBreak(ctx context.Context, staffID uuid.UUID) (*dto.BreakEndResponse, error) {
	var (
		rec *model.AttendanceRecord
		brk model.Break
	)
	err := s.mutate(ctx, staffID, func(repo repository.AttendanceRepository, now time.Time) error {
		var err error
		if rec, err = s.openShift(ctx, repo, staffID); err != nil {
			return err
		}
		idx := rec.Breaks.Active()
		if idx < 0 {
			return ErrNoActiveBreak
		}

		end := now
		rec.Breaks[idx].End = &end
		brk = rec.Breaks[idx]
		if err := repo.SaveShift(ctx, rec); err != nil {
			return fmt.Errorf("break end save: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logRejected("break_end", staffID, err)
		return nil, err
	}

	if brk.End.Before(brk.Start) {
		log.Warn().
			Str("staff_id", staffID.String()).
			Time("start", brk.Start).
			Time("end", *brk.End).
			Msg("attendance: break ends before it starts, duration clamped to zero")
	}

	name := s.directory.DisplayName(ctx, staffID)
	s.publish(ctx, dto.AttendanceEvent{
		Type: dto.EventBreakEnd, StaffID: staffID.String(), StaffName: name,
		AttendanceID: rec.ID.String(), At: *brk.End,
	})
	log.Info().Str("staff_id", staffID.String()).Int("minutes", brk.Minutes()).Msg("attendance: break ended")

	return &dto.BreakEndResponse{
		Message:         withName("Break ended", name),
		StaffID:         staffID.String(),
		BreakEnd:        *brk.End,
		DurationMinutes: brk.Minutes(),
	}, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *attendanceService) Current(ctx context.Context, staffID uuid.UUID) (*dto.AttendanceResponse, error) {
	rec, err := s.repo.FindOpenByStaff(ctx, staffID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current shift: %w", err)
	}
	resp := toAttendanceResponse(rec, s.directory.DisplayName(ctx, staffID))
	return &resp, nil
}

func (s *attendanceService) Today(ctx context.Context) ([]dto.AttendanceResponse, error) {
	recs, err := s.repo.ListByDate(ctx, s.workDate(s.now()))
	if err != nil {
		return nil, fmt.Errorf("today's records: %w", err)
	}
	return toAttendanceResponses(recs), nil
}

func (s *attendanceService) History(ctx context.Context, staffID *uuid.UUID, limit int) ([]dto.AttendanceResponse, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	recs, err := s.repo.ListHistory(ctx, repository.HistoryFilter{StaffID: staffID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return toAttendanceResponses(recs), nil
}

func (s *attendanceService) StaleShifts(ctx context.Context, olderThan time.Duration) ([]dto.AttendanceResponse, error) {
	recs, err := s.repo.ListOpenBefore(ctx, s.now().Add(-olderThan), staleShiftBatchSize)
	if err != nil {
		return nil, fmt.Errorf("stale shifts: %w", err)
	}
	return toAttendanceResponses(recs), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// mutate serializes fn per staff id: first on the in-process lock, then on the
// store's row lock. The clock is read once both are held and truncated to
// storePrecision.
func (s *attendanceService) mutate(ctx context.Context, staffID uuid.UUID, fn func(repo repository.AttendanceRepository, now time.Time) error) error {
	release := s.locks.Lock(staffID)
	defer release()

	err := s.repo.WithStaffLock(ctx, staffID, func(repo repository.AttendanceRepository) error {
		return fn(repo, s.now().Truncate(storePrecision))
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrStaffNotFound
	}
	return err
}

func (s *attendanceService) openShift(ctx context.Context, repo repository.AttendanceRepository, staffID uuid.UUID) (*model.AttendanceRecord, error) {
	rec, err := repo.FindOpenByStaff(ctx, staffID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoOpenShift
	}
	if err != nil {
		return nil, fmt.Errorf("open shift lookup: %w", err)
	}
	return rec, nil
}

func (s *attendanceService) workDate(t time.Time) string {
	return t.In(s.loc).Format(model.WorkDateLayout)
}

func (s *attendanceService) publish(ctx context.Context, ev dto.AttendanceEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishAttendance(ctx, ev); err != nil {
		log.Warn().Err(err).Str("type", ev.Type).Str("staff_id", ev.StaffID).Msg("attendance: event not published")
	}
}

func (s *attendanceService) logRejected(op string, staffID uuid.UUID, err error) {
	ev := log.Error()
	if IsAttendanceConflict(err) || errors.Is(err, ErrStaffNotFound) {
		ev = log.Info()
	}
	ev.Err(err).Str("op", op).Str("staff_id", staffID.String()).Msg("attendance: operation rejected")
}

func withName(msg, name string) string {
	if name == "" {
		return msg
	}
	return msg + ": " + name
}
