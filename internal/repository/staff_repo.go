package repository

import (
	"context"

	"github.com/shototoy/qr-attendance-api/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StaffRepository interface {
	Create(ctx context.Context, s *model.StaffMember) error
	FindByUsername(ctx context.Context, username string) (*model.StaffMember, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.StaffMember, error)
	List(ctx context.Context) ([]model.StaffMember, error)
	Update(ctx context.Context, s *model.StaffMember) error
	UpdatePhoto(ctx context.Context, id uuid.UUID, photoURL string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type staffRepo struct{ db *gorm.DB }

func NewStaffRepository(db *gorm.DB) StaffRepository { return &staffRepo{db: db} }

func (r *staffRepo) Create(ctx context.Context, s *model.StaffMember) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *staffRepo) FindByUsername(ctx context.Context, username string) (*model.StaffMember, error) {
	var s model.StaffMember
	err := r.db.WithContext(ctx).
		Where("username = ? AND active = ?", username, true).
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *staffRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.StaffMember, error) {
	var s model.StaffMember
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *staffRepo) List(ctx context.Context) ([]model.StaffMember, error) {
	var staff []model.StaffMember
	err := r.db.WithContext(ctx).Order("name ASC").Find(&staff).Error
	return staff, err
}

func (r *staffRepo) Update(ctx context.Context, s *model.StaffMember) error {
	return translate(r.db.WithContext(ctx).Save(s).Error)
}

func (r *staffRepo) UpdatePhoto(ctx context.Context, id uuid.UUID, photoURL string) error {
	return r.updateColumn(ctx, id, "photo_url", photoURL)
}

// Deactivate keeps the row and its attendance history; inactive staff cannot log in.
func (r *staffRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.updateColumn(ctx, id, "active", false)
}

func (r *staffRepo) updateColumn(ctx context.Context, id uuid.UUID, column string, value interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&model.StaffMember{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
