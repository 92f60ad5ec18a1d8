package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/apierror"
	"github.com/shototoy/qr-attendance-api/internal/dto"
	"github.com/shototoy/qr-attendance-api/internal/infra"
	"github.com/shototoy/qr-attendance-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AttendanceHandler struct {
	svc service.AttendanceService
	loc *time.Location
}

// NewAttendanceHandler wires the attendance endpoints. loc is used to print
// times in PDF reports.
func NewAttendanceHandler(svc service.AttendanceService, loc *time.Location) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, loc: loc}
}

// CheckIn godoc
// @Summary Check in the authenticated staff member
// @Description Once per calendar day; a second check-in on the same day is rejected even after check-out.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Success 201 {object} dto.CheckInResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	staffID, _, ok := principal(c)
	if !ok {
		return
	}
	resp, err := h.svc.CheckIn(c.Request.Context(), staffID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CheckOut godoc
// @Summary Check out the authenticated staff member
// @Description Closes the most recent open shift. A running break is ended at check-out time and reported in breaks_auto_ended.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.CheckOutResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/attendance/check-out [post]
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	staffID, _, ok := principal(c)
	if !ok {
		return
	}
	resp, err := h.svc.CheckOut(c.Request.Context(), staffID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StartBreak godoc
// @Summary Start a break for a staff member
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.BreakRequest true "Staff member"
// @Success 200 {object} dto.BreakStartResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/attendance/break/start [post]
func (h *AttendanceHandler) StartBreak(c *gin.Context) {
	var req dto.BreakRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.StartBreak(c.Request.Context(), uuid.MustParse(req.StaffID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// EndBreak godoc
// @Summary End the active break of a staff member
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.BreakRequest true "Staff member"
// @Success 200 {object} dto.BreakEndResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/attendance/break/end [post]
func (h *AttendanceHandler) EndBreak(c *gin.Context) {
	var req dto.BreakRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.EndBreak(c.Request.Context(), uuid.MustParse(req.StaffID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Current godoc
// @Summary Open shift of the authenticated staff member
// @Description Returns null when there is no open shift.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.AttendanceResponse
// @Router /v1/attendance/me/current [get]
func (h *AttendanceHandler) Current(c *gin.Context) {
	staffID, _, ok := principal(c)
	if !ok {
		return
	}
	resp, err := h.svc.Current(c.Request.Context(), staffID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Today godoc
// @Summary Attendance records for today
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.AttendanceResponse
// @Router /v1/attendance/today [get]
func (h *AttendanceHandler) Today(c *gin.Context) {
	resp, err := h.svc.Today(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary Attendance history, most recent first
// @Description Admins may filter by staff_id; other callers always see their own history.
// @Tags attendance
// @Produce json
// @Security BearerAuth
// @Param staff_id query string false "Staff member"
// @Param limit query int false "Max rows (1-500)"
// @Success 200 {array} dto.AttendanceResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/attendance/history [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	rows, ok := h.history(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rows)
}

// HistoryPDF godoc
// @Summary Attendance history as a PDF report
// @Tags attendance
// @Produce application/pdf
// @Security BearerAuth
// @Param staff_id query string false "Staff member"
// @Param limit query int false "Max rows (1-500)"
// @Success 200 {file} file
// @Router /v1/attendance/history.pdf [get]
func (h *AttendanceHandler) HistoryPDF(c *gin.Context) {
	rows, ok := h.history(c)
	if !ok {
		return
	}

	title := "Attendance history"
	if len(rows) > 0 && c.Query("staff_id") != "" && rows[0].StaffName != "" {
		title += ": " + rows[0].StaffName
	}

	var buf bytes.Buffer
	if err := infra.GenerateAttendancePDF(&buf, title, h.loc, rows); err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("attendance_%s.pdf", time.Now().In(h.loc).Format("20060102_1504"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *AttendanceHandler) history(c *gin.Context) ([]dto.AttendanceResponse, bool) {
	self, isAdmin, ok := principal(c)
	if !ok {
		return nil, false
	}
	var q dto.HistoryFilter
	if !bindQuery(c, &q) {
		return nil, false
	}

	var staffID *uuid.UUID
	switch {
	case !isAdmin:
		staffID = &self
	case q.StaffID != "":
		id, err := uuid.Parse(q.StaffID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("Invalid staff_id"))
			return nil, false
		}
		staffID = &id
	}

	rows, err := h.svc.History(c.Request.Context(), staffID, q.Limit)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return rows, true
}
