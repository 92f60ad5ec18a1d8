package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shototoy/qr-attendance-api/internal/dto"
	"github.com/shototoy/qr-attendance-api/internal/model"
	"github.com/shototoy/qr-attendance-api/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// PhotoStore persists one normalised photo per staff member and returns the
// public path it is served from.
type PhotoStore interface {
	Save(ctx context.Context, staffID uuid.UUID, src io.Reader) (string, error)
}

type StaffService interface {
	Create(ctx context.Context, req dto.CreateStaffRequest) (*dto.StaffResponse, error)
	List(ctx context.Context) ([]dto.StaffResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.StaffResponse, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req dto.UpdateProfileRequest) (*dto.StaffResponse, error)
	UploadPhoto(ctx context.Context, id uuid.UUID, src io.Reader) (*dto.StaffResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type staffService struct {
	repo      repository.StaffRepository
	directory StaffDirectory
	photos    PhotoStore
}

func NewStaffService(repo repository.StaffRepository, directory StaffDirectory, photos PhotoStore) StaffService {
	return &staffService{repo: repo, directory: directory, photos: photos}
}

func (s *staffService) Create(ctx context.Context, req dto.CreateStaffRequest) (*dto.StaffResponse, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	staff := &model.StaffMember{
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		Department:   req.Department,
		Position:     req.Position,
		Contact:      datatypes.NewJSONType(contactFromDTO(req.Contact)),
		Active:       true,
	}
	if err := s.repo.Create(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create staff: %w", err)
	}
	log.Info().Str("staff_id", staff.ID.String()).Str("role", staff.Role).Msg("staff: created")

	resp := toStaffResponse(staff)
	return &resp, nil
}

func (s *staffService) List(ctx context.Context) ([]dto.StaffResponse, error) {
	staff, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.StaffResponse, len(staff))
	for i := range staff {
		resp[i] = toStaffResponse(&staff[i])
	}
	return resp, nil
}

func (s *staffService) Get(ctx context.Context, id uuid.UUID) (*dto.StaffResponse, error) {
	staff, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toStaffResponse(staff)
	return &resp, nil
}

func (s *staffService) UpdateProfile(ctx context.Context, id uuid.UUID, req dto.UpdateProfileRequest) (*dto.StaffResponse, error) {
	staff, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		staff.Name = req.Name
	}
	if req.Department != "" {
		staff.Department = req.Department
	}
	if req.Position != "" {
		staff.Position = req.Position
	}
	if req.Contact != nil {
		staff.Contact = datatypes.NewJSONType(contactFromDTO(*req.Contact))
	}
	if req.Password != "" {
		hash, err := HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		staff.PasswordHash = hash
	}
	if err := s.repo.Update(ctx, staff); err != nil {
		return nil, fmt.Errorf("update staff: %w", err)
	}
	s.directory.Invalidate(ctx, id)

	resp := toStaffResponse(staff)
	return &resp, nil
}

// UploadPhoto replaces the staff member's photo. The blob is written before
// the reference is stored, so a failed write leaves the old photo in place.
func (s *staffService) UploadPhoto(ctx context.Context, id uuid.UUID, src io.Reader) (*dto.StaffResponse, error) {
	staff, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.photos.Save(ctx, id, src)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePhoto(ctx, id, url); err != nil {
		return nil, fmt.Errorf("store photo reference: %w", err)
	}
	staff.PhotoURL = &url
	log.Info().Str("staff_id", id.String()).Str("photo", url).Msg("staff: photo updated")

	resp := toStaffResponse(staff)
	return &resp, nil
}

func (s *staffService) Deactivate(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Deactivate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrStaffNotFound
	}
	if err != nil {
		return err
	}
	log.Info().Str("staff_id", id.String()).Msg("staff: deactivated")
	return nil
}

func (s *staffService) find(ctx context.Context, id uuid.UUID) (*model.StaffMember, error) {
	staff, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func contactFromDTO(c dto.ContactFields) model.StaffContact {
	return model.StaffContact{Phone: c.Phone, Email: c.Email, Address: c.Address}
}
