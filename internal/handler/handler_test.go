package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/dto"
	"github.com/shototoy/qr-attendance-api/internal/infra"
	"github.com/shototoy/qr-attendance-api/internal/middleware"
	"github.com/shototoy/qr-attendance-api/internal/model"
	"github.com/shototoy/qr-attendance-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Service stubs ────────────────────────────────────────────────────────────

type stubAttendance struct {
	err         error
	gotStaff    uuid.UUID
	gotFilter   *uuid.UUID
	gotLimit    int
	historyRows []dto.AttendanceResponse
}

func (s *stubAttendance) CheckIn(_ context.Context, id uuid.UUID) (*dto.CheckInResponse, error) {
	s.gotStaff = id
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CheckInResponse{Message: "Checked in", Attendance: dto.AttendanceResponse{StaffID: id.String(), Open: true}}, nil
}

func (s *stubAttendance) CheckOut(_ context.Context, id uuid.UUID) (*dto.CheckOutResponse, error) {
	s.gotStaff = id
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CheckOutResponse{Message: "Checked out", BreaksAutoEnded: true}, nil
}

func (s *stubAttendance) StartBreak(_ context.Context, id uuid.UUID) (*dto.BreakStartResponse, error) {
	s.gotStaff = id
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BreakStartResponse{StaffID: id.String()}, nil
}

func (s *stubAttendance) EndBreak(_ context.Context, id uuid.UUID) (*dto.BreakEndResponse, error) {
	s.gotStaff = id
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BreakEndResponse{StaffID: id.String(), DurationMinutes: 5}, nil
}

func (s *stubAttendance) Current(_ context.Context, id uuid.UUID) (*dto.AttendanceResponse, error) {
	s.gotStaff = id
	return nil, s.err
}

func (s *stubAttendance) Today(context.Context) ([]dto.AttendanceResponse, error) {
	return s.historyRows, s.err
}

func (s *stubAttendance) History(_ context.Context, staffID *uuid.UUID, limit int) ([]dto.AttendanceResponse, error) {
	s.gotFilter = staffID
	s.gotLimit = limit
	return s.historyRows, s.err
}

func (s *stubAttendance) StaleShifts(context.Context, time.Duration) ([]dto.AttendanceResponse, error) {
	return nil, nil
}

type stubStaff struct {
	service.StaffService
	err          error
	deactivated  uuid.UUID
	uploadedFor  uuid.UUID
	uploadedSize int
}

func (s *stubStaff) Get(_ context.Context, id uuid.UUID) (*dto.StaffResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.StaffResponse{ID: id.String(), Name: "Ana"}, nil
}

func (s *stubStaff) Deactivate(_ context.Context, id uuid.UUID) error {
	s.deactivated = id
	return s.err
}

func (s *stubStaff) UploadPhoto(_ context.Context, id uuid.UUID, src io.Reader) (*dto.StaffResponse, error) {
	b, _ := io.ReadAll(src)
	s.uploadedFor, s.uploadedSize = id, len(b)
	if s.err != nil {
		return nil, s.err
	}
	return &dto.StaffResponse{ID: id.String()}, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// withClaims stands in for JWTAuth.
func withClaims(id uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{UserID: id.String(), Role: role})
		c.Next()
	}
}

func newEngine(id uuid.UUID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(), withClaims(id, role))
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

// ── Attendance ───────────────────────────────────────────────────────────────

func TestCheckIn_UsesTokenSubject(t *testing.T) {
	self := uuid.New()
	svc := &stubAttendance{}
	r := newEngine(self, model.RoleStaff)
	r.POST("/check-in", NewAttendanceHandler(svc, time.UTC).CheckIn)

	w := doJSON(r, http.MethodPost, "/check-in", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, self, svc.gotStaff)
}

func TestAttendance_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrAlreadyCheckedIn, http.StatusConflict},
		{service.ErrAlreadyOnBreak, http.StatusConflict},
		{service.ErrNoOpenShift, http.StatusNotFound},
		{service.ErrNoActiveBreak, http.StatusNotFound},
		{service.ErrStaffNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			svc := &stubAttendance{err: tc.err}
			r := newEngine(uuid.New(), model.RoleAdmin)
			r.POST("/break/start", NewAttendanceHandler(svc, time.UTC).StartBreak)

			w := doJSON(r, http.MethodPost, "/break/start", dto.BreakRequest{StaffID: uuid.NewString()})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.err.Error(), detail(t, w))
		})
	}
}

func TestAttendance_InfrastructureErrorIsHidden(t *testing.T) {
	svc := &stubAttendance{err: errors.New("pq: connection reset by peer")}
	r := newEngine(uuid.New(), model.RoleStaff)
	r.POST("/check-out", NewAttendanceHandler(svc, time.UTC).CheckOut)

	w := doJSON(r, http.MethodPost, "/check-out", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestBreak_ValidatesStaffID(t *testing.T) {
	svc := &stubAttendance{}
	r := newEngine(uuid.New(), model.RoleAdmin)
	r.POST("/break/end", NewAttendanceHandler(svc, time.UTC).EndBreak)

	w := doJSON(r, http.MethodPost, "/break/end", map[string]string{"staff_id": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "StaffID")

	target := uuid.New()
	w = doJSON(r, http.MethodPost, "/break/end", dto.BreakRequest{StaffID: target.String()})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, target, svc.gotStaff)
}

func TestCurrent_NoOpenShiftIsNull(t *testing.T) {
	r := newEngine(uuid.New(), model.RoleStaff)
	r.GET("/current", NewAttendanceHandler(&stubAttendance{}, time.UTC).Current)

	w := doJSON(r, http.MethodGet, "/current", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
}

func TestHistory_NonAdminSeesOwnRecordsOnly(t *testing.T) {
	self := uuid.New()
	svc := &stubAttendance{}
	r := newEngine(self, model.RoleStaff)
	r.GET("/history", NewAttendanceHandler(svc, time.UTC).History)

	w := doJSON(r, http.MethodGet, "/history?staff_id="+uuid.NewString()+"&limit=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.gotFilter)
	assert.Equal(t, self, *svc.gotFilter)
	assert.Equal(t, 10, svc.gotLimit)
}

func TestHistory_AdminFilter(t *testing.T) {
	svc := &stubAttendance{}
	r := newEngine(uuid.New(), model.RoleAdmin)
	r.GET("/history", NewAttendanceHandler(svc, time.UTC).History)

	w := doJSON(r, http.MethodGet, "/history", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.gotFilter, "admin without filter sees everyone")

	target := uuid.New()
	doJSON(r, http.MethodGet, "/history?staff_id="+target.String(), nil)
	require.NotNil(t, svc.gotFilter)
	assert.Equal(t, target, *svc.gotFilter)

	w = doJSON(r, http.MethodGet, "/history?limit=9999", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHistoryPDF(t *testing.T) {
	out := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	svc := &stubAttendance{historyRows: []dto.AttendanceResponse{{
		StaffID: uuid.NewString(), StaffName: "Ana", Date: "2024-03-04",
		CheckIn: out.Add(-8 * time.Hour), CheckOut: &out, BreakMinutes: 30,
	}}}
	r := newEngine(uuid.New(), model.RoleAdmin)
	r.GET("/history.pdf", NewAttendanceHandler(svc, time.UTC).HistoryPDF)

	w := doJSON(r, http.MethodGet, "/history.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance_")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

// ── Staff ────────────────────────────────────────────────────────────────────

func TestDeactivate_CannotTargetSelf(t *testing.T) {
	self := uuid.New()
	svc := &stubStaff{}
	r := newEngine(self, model.RoleAdmin)
	r.DELETE("/staff/:id", NewStaffHandler(svc, 1).Deactivate)

	w := doJSON(r, http.MethodDelete, "/staff/"+self.String(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, uuid.Nil, svc.deactivated)

	other := uuid.New()
	w = doJSON(r, http.MethodDelete, "/staff/"+other.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, other, svc.deactivated)

	w = doJSON(r, http.MethodDelete, "/staff/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe_UnknownStaff(t *testing.T) {
	r := newEngine(uuid.New(), model.RoleStaff)
	r.GET("/me", NewStaffHandler(&stubStaff{err: service.ErrStaffNotFound}, 1).Me)

	w := doJSON(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func multipartPhoto(t *testing.T, field string, size int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "face.jpg")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte{0xff}, size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postPhoto(r http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/me/photo", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadMyPhoto(t *testing.T) {
	self := uuid.New()
	svc := &stubStaff{}
	r := newEngine(self, model.RoleStaff)
	r.POST("/me/photo", NewStaffHandler(svc, 1).UploadMyPhoto)

	body, ct := multipartPhoto(t, "photo", 2048)
	w := postPhoto(r, body, ct)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, self, svc.uploadedFor)
	assert.Equal(t, 2048, svc.uploadedSize)

	body, ct = multipartPhoto(t, "avatar", 16)
	assert.Equal(t, http.StatusBadRequest, postPhoto(r, body, ct).Code)

	body, ct = multipartPhoto(t, "photo", 2<<20)
	assert.Equal(t, http.StatusRequestEntityTooLarge, postPhoto(r, body, ct).Code)
}

func TestUploadMyPhoto_UnsupportedImage(t *testing.T) {
	r := newEngine(uuid.New(), model.RoleStaff)
	r.POST("/me/photo", NewStaffHandler(&stubStaff{err: infra.ErrUnsupportedImage}, 1).UploadMyPhoto)

	body, ct := multipartPhoto(t, "photo", 64)
	assert.Equal(t, http.StatusUnsupportedMediaType, postPhoto(r, body, ct).Code)
}

// ── Auth ─────────────────────────────────────────────────────────────────────

type stubAuth struct{ err error }

func (s *stubAuth) Login(_ context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.LoginResponse{AccessToken: "a", RefreshToken: "r", TokenType: "bearer", User: dto.StaffResponse{Username: req.Username}}, nil
}

func (s *stubAuth) Refresh(context.Context, string) (*dto.LoginResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.LoginResponse{AccessToken: "a2"}, nil
}

func TestLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", NewAuthHandler(&stubAuth{}).Login)

	w := doJSON(r, http.MethodPost, "/login", dto.LoginRequest{Username: "ana", Password: "secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token_type":"bearer"`)

	w = doJSON(r, http.MethodPost, "/login", map[string]string{"username": "ana"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLogin_FailureDoesNotLeakReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", NewAuthHandler(&stubAuth{err: errors.New("staff inactive")}).Login)
	r.POST("/refresh", NewAuthHandler(&stubAuth{err: service.ErrInvalidToken}).Refresh)

	w := doJSON(r, http.MethodPost, "/login", dto.LoginRequest{Username: "ana", Password: "secret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, service.ErrInvalidCredentials.Error(), detail(t, w))

	w = doJSON(r, http.MethodPost, "/refresh", dto.RefreshRequest{RefreshToken: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
