package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkDateLayout is the format of AttendanceRecord.WorkDate.
const WorkDateLayout = "2006-01-02"

// AttendanceRecord is the daily shift of one staff member.
// There is at most one record per (StaffID, WorkDate). The record is open
// while CheckOut is nil and becomes immutable once it is set.
type AttendanceRecord struct {
	ID        uuid.UUID  `gorm:"type:char(36);primaryKey"`
	StaffID   uuid.UUID  `gorm:"type:char(36);not null;uniqueIndex:idx_attendance_staff_date,priority:1"`
	WorkDate  string     `gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_staff_date,priority:2;index"`
	CheckIn   time.Time  `gorm:"not null;index"`
	CheckOut  *time.Time
	Breaks    BreakList `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Staff *StaffMember `gorm:"foreignKey:StaffID"`
}

func (AttendanceRecord) TableName() string { return "attendance_records" }

func (r *AttendanceRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsOpen reports whether the shift has not been checked out yet.
func (r *AttendanceRecord) IsOpen() bool { return r.CheckOut == nil }

// Break is one interval inside a shift. End is nil while the break is active.
// AutoEnded marks breaks closed by checkout instead of an explicit end.
type Break struct {
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	AutoEnded bool       `json:"autoEnded,omitempty"`
}

// Minutes returns the whole minutes between Start and End, never negative.
// An active break has no duration yet.
func (b Break) Minutes() int {
	if b.End == nil {
		return 0
	}
	d := b.End.Sub(b.Start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// BreakList is persisted as a JSON array in a single text column.
// Reads are lenient: a NULL, empty or malformed value decodes to an empty list.
type BreakList []Break

// ParseBreaks decodes a serialized break list, falling back to an empty list.
func ParseBreaks(raw []byte) BreakList {
	if len(raw) == 0 {
		return BreakList{}
	}
	var list BreakList
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return BreakList{}
	}
	return list
}

// Scan implements sql.Scanner and never fails.
func (l *BreakList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*l = ParseBreaks(v)
	case string:
		*l = ParseBreaks([]byte(v))
	default:
		*l = BreakList{}
	}
	return nil
}

// Value implements driver.Valuer. A nil list is stored as "[]".
func (l BreakList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Active returns the index of the break without an end, or -1.
// The newest entry wins if the list somehow holds more than one.
func (l BreakList) Active() int {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].End == nil {
			return i
		}
	}
	return -1
}

// CloseAll ends every active break at t and flags it as auto-ended.
// It reports whether any break was closed.
func (l BreakList) CloseAll(t time.Time) bool {
	closed := false
	for i := range l {
		if l[i].End == nil {
			end := t
			l[i].End = &end
			l[i].AutoEnded = true
			closed = true
		}
	}
	return closed
}

// TotalMinutes sums the duration of all finished breaks.
func (l BreakList) TotalMinutes() int {
	total := 0
	for _, b := range l {
		total += b.Minutes()
	}
	return total
}
