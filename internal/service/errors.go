package service

import "errors"

// Precondition violations of the attendance state machine. They reflect real
// state conflicts and are never retried.
var (
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	ErrNoOpenShift      = errors.New("no open shift")
	ErrAlreadyOnBreak   = errors.New("already on break")
	ErrNoActiveBreak    = errors.New("no active break")
)

var (
	ErrStaffNotFound      = errors.New("staff member not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
)

// IsAttendanceConflict reports whether err is one of the state machine
// precondition errors rather than an infrastructure failure.
func IsAttendanceConflict(err error) bool {
	return errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrNoOpenShift) ||
		errors.Is(err, ErrAlreadyOnBreak) ||
		errors.Is(err, ErrNoActiveBreak)
}
