package handler

import (
	"errors"
	"net/http"

	"github.com/shototoy/qr-attendance-api/internal/apierror"
	"github.com/shototoy/qr-attendance-api/internal/dto"
	"github.com/shototoy/qr-attendance-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StaffHandler struct {
	svc            service.StaffService
	maxUploadBytes int64
}

func NewStaffHandler(svc service.StaffService, maxUploadMB int) *StaffHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 5
	}
	return &StaffHandler{svc: svc, maxUploadBytes: int64(maxUploadMB) << 20}
}

// Create godoc
// @Summary Create a staff member
// @Tags staff
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateStaffRequest true "Staff member"
// @Success 201 {object} dto.StaffResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/staff [post]
func (h *StaffHandler) Create(c *gin.Context) {
	var req dto.CreateStaffRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary List staff members
// @Tags staff
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.StaffResponse
// @Router /v1/staff [get]
func (h *StaffHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Get a staff member
// @Tags staff
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 200 {object} dto.StaffResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/staff/{id} [get]
func (h *StaffHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.get(c, id)
}

// Deactivate godoc
// @Summary Deactivate a staff member
// @Description The account can no longer log in; attendance history is kept.
// @Tags staff
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Router /v1/staff/{id} [delete]
func (h *StaffHandler) Deactivate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if self, _, _ := principal(c); self == id {
		c.JSON(http.StatusBadRequest, apierror.New("You cannot deactivate your own account"))
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadPhotoFor godoc
// @Summary Upload a photo on behalf of a staff member
// @Tags staff
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Staff ID"
// @Param photo formData file true "Photo"
// @Success 200 {object} dto.StaffResponse
// @Router /v1/staff/{id}/photo [post]
func (h *StaffHandler) UploadPhotoFor(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.uploadPhoto(c, id)
}

// Me godoc
// @Summary Own profile
// @Tags me
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.StaffResponse
// @Router /v1/me [get]
func (h *StaffHandler) Me(c *gin.Context) {
	id, _, ok := principal(c)
	if !ok {
		return
	}
	h.get(c, id)
}

// UpdateMe godoc
// @Summary Update own profile
// @Description Empty fields are left unchanged.
// @Tags me
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} dto.StaffResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/me [put]
func (h *StaffHandler) UpdateMe(c *gin.Context) {
	id, _, ok := principal(c)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateProfile(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UploadMyPhoto godoc
// @Summary Upload own profile photo
// @Description Multipart field "photo" (jpeg, png or webp). Stored as a resized WebP.
// @Tags me
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param photo formData file true "Photo"
// @Success 200 {object} dto.StaffResponse
// @Failure 413 {object} apierror.APIError
// @Failure 415 {object} apierror.APIError
// @Router /v1/me/photo [post]
func (h *StaffHandler) UploadMyPhoto(c *gin.Context) {
	id, _, ok := principal(c)
	if !ok {
		return
	}
	h.uploadPhoto(c, id)
}

func (h *StaffHandler) get(c *gin.Context, id uuid.UUID) {
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StaffHandler) uploadPhoto(c *gin.Context, id uuid.UUID) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fh, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, apierror.New("Photo is too large"))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New("Multipart field \"photo\" is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	resp, err := h.svc.UploadPhoto(c.Request.Context(), id, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
