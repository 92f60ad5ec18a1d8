package repository

import (
	"context"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryFilter narrows ListHistory. A nil StaffID lists every staff member.
type HistoryFilter struct {
	StaffID *uuid.UUID
	Limit   int
}

type AttendanceRepository interface {
	// WithStaffLock runs fn inside a transaction that holds a row lock on the
	// staff member, so concurrent writers for the same staff id serialize.
	// fn receives a repository bound to that transaction. Inactive staff
	// yield ErrNotFound.
	WithStaffLock(ctx context.Context, staffID uuid.UUID, fn func(repo AttendanceRepository) error) error
	FindByStaffAndDate(ctx context.Context, staffID uuid.UUID, workDate string) (*model.AttendanceRecord, error)
	// FindOpenByStaff returns the most recent record by check-in time whose
	// check-out is still empty, regardless of its work date.
	FindOpenByStaff(ctx context.Context, staffID uuid.UUID) (*model.AttendanceRecord, error)
	Create(ctx context.Context, r *model.AttendanceRecord) error
	// SaveShift persists the mutable part of a record: breaks and check-out.
	SaveShift(ctx context.Context, r *model.AttendanceRecord) error
	ListByDate(ctx context.Context, workDate string) ([]model.AttendanceRecord, error)
	ListHistory(ctx context.Context, f HistoryFilter) ([]model.AttendanceRecord, error)
	ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.AttendanceRecord, error)
}

type attendanceRepo struct{ db *gorm.DB }

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository { return &attendanceRepo{db: db} }

func (r *attendanceRepo) WithStaffLock(ctx context.Context, staffID uuid.UUID, fn func(repo AttendanceRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var staff model.StaffMember
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ? AND active = ?", staffID, true).
			First(&staff).Error
		if err != nil {
			return translate(err)
		}
		return fn(&attendanceRepo{db: tx})
	})
}

func (r *attendanceRepo) FindByStaffAndDate(ctx context.Context, staffID uuid.UUID, workDate string) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("staff_id = ? AND work_date = ?", staffID, workDate).
		First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *attendanceRepo) FindOpenByStaff(ctx context.Context, staffID uuid.UUID) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("staff_id = ? AND check_out IS NULL", staffID).
		Order("check_in DESC").
		First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

func (r *attendanceRepo) Create(ctx context.Context, rec *model.AttendanceRecord) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error)
}

func (r *attendanceRepo) SaveShift(ctx context.Context, rec *model.AttendanceRecord) error {
	return translate(r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{ID: rec.ID}).
		Updates(map[string]interface{}{
			"breaks":     rec.Breaks,
			"check_out":  rec.CheckOut,
			"updated_at": time.Now(),
		}).Error)
}

func (r *attendanceRepo) ListByDate(ctx context.Context, workDate string) ([]model.AttendanceRecord, error) {
	var recs []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Where("work_date = ?", workDate).
		Order("check_in ASC").
		Find(&recs).Error
	return recs, err
}

func (r *attendanceRepo) ListHistory(ctx context.Context, f HistoryFilter) ([]model.AttendanceRecord, error) {
	var recs []model.AttendanceRecord
	q := r.db.WithContext(ctx).Preload("Staff")
	if f.StaffID != nil {
		q = q.Where("staff_id = ?", *f.StaffID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	err := q.Order("check_in DESC").Find(&recs).Error
	return recs, err
}

func (r *attendanceRepo) ListOpenBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.AttendanceRecord, error) {
	var recs []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Where("check_out IS NULL AND check_in < ?", cutoff).
		Order("check_in ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
