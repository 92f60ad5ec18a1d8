package infra

// pdf.go renders attendance reports with go-pdf/fpdf: an A4 landscape table
// with one row per shift (staff, date, check-in, check-out, break minutes,
// worked hours) followed by a totals line.

import (
	"fmt"
	"io"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/dto"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

type pdfColumn struct {
	title string
	width float64
	align string
}

var attendanceColumns = []pdfColumn{
	{"Staff", 70, "L"},
	{"Date", 28, "C"},
	{"Check-in", 32, "C"},
	{"Check-out", 32, "C"},
	{"Break (min)", 28, "R"},
	{"Hours", 24, "R"},
	{"Notes", 43, "L"},
}

// GenerateAttendancePDF writes the report for rows to w. Timestamps are
// printed in loc.
func GenerateAttendancePDF(w io.Writer, title string, loc *time.Location, rows []dto.AttendanceResponse) error {
	if loc == nil {
		loc = time.Local
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "Generated "+time.Now().In(loc).Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	writeHeaderRow := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range attendanceColumns {
			pdf.CellFormat(c.width, 6, c.title, "1", 0, c.align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	writeHeaderRow()

	// ── Rows ─────────────────────────────────────────────────────────────────
	total := decimal.Zero
	breakMinutes := 0
	_, pageH := pdf.GetPageSize()
	for _, r := range rows {
		if pdf.GetY() > pageH-20 {
			pdf.AddPage()
			writeHeaderRow()
		}

		checkOut, hours, notes := "-", "-", ""
		if r.CheckOut != nil {
			checkOut = r.CheckOut.In(loc).Format("15:04")
		} else {
			notes = "open"
		}
		if r.WorkedHours != nil {
			hours = r.WorkedHours.StringFixed(2)
			total = total.Add(*r.WorkedHours)
		}
		for _, b := range r.Breaks {
			if b.AutoEnded {
				notes = "break auto-ended"
				break
			}
		}
		breakMinutes += r.BreakMinutes

		cells := []string{
			truncate(r.StaffName, 40),
			r.Date,
			r.CheckIn.In(loc).Format("15:04"),
			checkOut,
			fmt.Sprintf("%d", r.BreakMinutes),
			hours,
			notes,
		}
		for i, c := range attendanceColumns {
			pdf.CellFormat(c.width, 6, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	// ── Totals ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 8)
	lead := 0.0
	for _, c := range attendanceColumns[:4] {
		lead += c.width
	}
	pdf.CellFormat(lead, 6, fmt.Sprintf("%d shifts", len(rows)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(attendanceColumns[4].width, 6, fmt.Sprintf("%d", breakMinutes), "1", 0, "R", false, 0, "")
	pdf.CellFormat(attendanceColumns[5].width, 6, total.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(attendanceColumns[6].width, 6, "", "1", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: render: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
