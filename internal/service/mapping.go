package service

import (
	"github.com/shototoy/qr-attendance-api/internal/dto"
	"github.com/shototoy/qr-attendance-api/internal/model"

	"github.com/shopspring/decimal"
)

var sixty = decimal.NewFromInt(60)

func toAttendanceResponse(rec *model.AttendanceRecord, name string) dto.AttendanceResponse {
	if name == "" && rec.Staff != nil {
		name = rec.Staff.Name
	}

	breaks := make([]dto.BreakResponse, len(rec.Breaks))
	for i, b := range rec.Breaks {
		breaks[i] = dto.BreakResponse{
			Start:     b.Start,
			End:       b.End,
			AutoEnded: b.AutoEnded,
			Minutes:   b.Minutes(),
		}
	}

	resp := dto.AttendanceResponse{
		ID:           rec.ID.String(),
		StaffID:      rec.StaffID.String(),
		StaffName:    name,
		Date:         rec.WorkDate,
		CheckIn:      rec.CheckIn,
		CheckOut:     rec.CheckOut,
		Open:         rec.IsOpen(),
		OnBreak:      rec.IsOpen() && rec.Breaks.Active() >= 0,
		Breaks:       breaks,
		BreakMinutes: rec.Breaks.TotalMinutes(),
	}

	if rec.CheckOut != nil {
		worked := int64(rec.CheckOut.Sub(rec.CheckIn).Minutes()) - int64(resp.BreakMinutes)
		if worked < 0 {
			worked = 0
		}
		hours := decimal.NewFromInt(worked).Div(sixty).Round(2)
		resp.WorkedHours = &hours
	}
	return resp
}

func toAttendanceResponses(recs []model.AttendanceRecord) []dto.AttendanceResponse {
	out := make([]dto.AttendanceResponse, len(recs))
	for i := range recs {
		out[i] = toAttendanceResponse(&recs[i], "")
	}
	return out
}

func toStaffResponse(s *model.StaffMember) dto.StaffResponse {
	c := s.Contact.Data()
	return dto.StaffResponse{
		ID:         s.ID.String(),
		Username:   s.Username,
		Name:       s.Name,
		Role:       s.Role,
		Department: s.Department,
		Position:   s.Position,
		Contact:    dto.ContactFields{Phone: c.Phone, Email: c.Email, Address: c.Address},
		PhotoURL:   s.PhotoURL,
		Active:     s.Active,
	}
}
