package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// StaffContact holds the free-form contact attributes of a staff member.
// Stored as a single JSON column.
type StaffContact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// StaffMember stores people who can log in and record attendance.
// Role: "admin" | "staff". Staff members are deactivated, never deleted.
type StaffMember struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null"`
	Name         string    `gorm:"type:varchar(100);not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"type:varchar(20);not null"`
	Department   string    `gorm:"type:varchar(100)"`
	Position     string    `gorm:"type:varchar(100)"`
	Contact      datatypes.JSONType[StaffContact]
	// PhotoURL is the public path of the normalised photo, nil until uploaded
	PhotoURL  *string `gorm:"type:varchar(255)"`
	Active    bool    `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StaffMember) TableName() string { return "staff_members" }

func (s *StaffMember) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *StaffMember) IsAdmin() bool { return s.Role == RoleAdmin }
