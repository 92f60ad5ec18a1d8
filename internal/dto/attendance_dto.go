package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// BreakRequest names the staff member whose break an admin starts or ends.
type BreakRequest struct {
	StaffID string `json:"staff_id" validate:"required,uuid"`
}

type HistoryFilter struct {
	StaffID string `form:"staff_id" validate:"omitempty,uuid"`
	Limit   int    `form:"limit"    validate:"omitempty,min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type BreakResponse struct {
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end"`
	AutoEnded bool       `json:"auto_ended,omitempty"`
	Minutes   int        `json:"minutes"`
}

type AttendanceResponse struct {
	ID           string          `json:"id"`
	StaffID      string          `json:"staff_id"`
	StaffName    string          `json:"staff_name,omitempty"`
	Date         string          `json:"date"`
	CheckIn      time.Time       `json:"check_in"`
	CheckOut     *time.Time      `json:"check_out"`
	Open         bool            `json:"open"`
	OnBreak      bool            `json:"on_break"`
	Breaks       []BreakResponse `json:"breaks"`
	BreakMinutes int             `json:"break_minutes"`
	// WorkedHours is shift length minus breaks, nil while the shift is open
	WorkedHours *decimal.Decimal `json:"worked_hours"`
}

type CheckInResponse struct {
	Message    string             `json:"message"`
	Attendance AttendanceResponse `json:"attendance"`
}

type CheckOutResponse struct {
	Message         string             `json:"message"`
	BreaksAutoEnded bool               `json:"breaks_auto_ended"`
	Attendance      AttendanceResponse `json:"attendance"`
}

type BreakStartResponse struct {
	Message    string    `json:"message"`
	StaffID    string    `json:"staff_id"`
	BreakStart time.Time `json:"break_start"`
}

type BreakEndResponse struct {
	Message         string    `json:"message"`
	StaffID         string    `json:"staff_id"`
	BreakEnd        time.Time `json:"break_end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// ─── Events ──────────────────────────────────────────────────────────────────

const (
	EventCheckIn    = "check_in"
	EventCheckOut   = "check_out"
	EventBreakStart = "break_start"
	EventBreakEnd   = "break_end"
)

// AttendanceEvent is published after every committed transition.
type AttendanceEvent struct {
	Type            string    `json:"type"`
	StaffID         string    `json:"staff_id"`
	StaffName       string    `json:"staff_name,omitempty"`
	AttendanceID    string    `json:"attendance_id"`
	At              time.Time `json:"at"`
	BreaksAutoEnded bool      `json:"breaks_auto_ended,omitempty"`
}
