package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/dto"
	"github.com/shototoy/qr-attendance-api/internal/model"
	"github.com/shototoy/qr-attendance-api/internal/repository"

	"github.com/google/uuid"
)

// ── In-memory StaffRepository ────────────────────────────────────────────────

type memStaffRepo struct {
	mu    sync.Mutex
	staff map[uuid.UUID]model.StaffMember
}

func newMemStaffRepo() *memStaffRepo {
	return &memStaffRepo{staff: make(map[uuid.UUID]model.StaffMember)}
}

func (r *memStaffRepo) add(name string) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	r.staff[id] = model.StaffMember{ID: id, Username: name, Name: name, Role: model.RoleStaff, Active: true}
	r.mu.Unlock()
	return id
}

func (r *memStaffRepo) active(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	return ok && s.Active
}

func (r *memStaffRepo) Create(_ context.Context, s *model.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.staff {
		if existing.Username == s.Username {
			return repository.ErrDuplicate
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.staff[s.ID] = *s
	return nil
}

func (r *memStaffRepo) FindByUsername(_ context.Context, username string) (*model.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.staff {
		if s.Username == username && s.Active {
			c := s
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memStaffRepo) FindByID(_ context.Context, id uuid.UUID) (*model.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *memStaffRepo) List(_ context.Context) ([]model.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.StaffMember, 0, len(r.staff))
	for _, s := range r.staff {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memStaffRepo) Update(_ context.Context, s *model.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[s.ID] = *s
	return nil
}

func (r *memStaffRepo) UpdatePhoto(_ context.Context, id uuid.UUID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.PhotoURL = &url
	r.staff[id] = s
	return nil
}

func (r *memStaffRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.staff[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Active = false
	r.staff[id] = s
	return nil
}

// ── In-memory AttendanceRepository ───────────────────────────────────────────
// Records are copied on every read and write so a caller that mutates a record
// without calling SaveShift does not change stored state.

type memAttendanceRepo struct {
	staff *memStaffRepo

	// rowLock stands in for the staff row lock taken by the real store.
	rowLock sync.Mutex

	mu      sync.Mutex
	records map[uuid.UUID]model.AttendanceRecord

	// failSave makes SaveShift return this error when set.
	failSave error
}

func newMemAttendanceRepo(staff *memStaffRepo) *memAttendanceRepo {
	return &memAttendanceRepo{staff: staff, records: make(map[uuid.UUID]model.AttendanceRecord)}
}

func copyRecord(r model.AttendanceRecord) model.AttendanceRecord {
	c := r
	if r.Breaks != nil {
		c.Breaks = make(model.BreakList, len(r.Breaks))
		for i, b := range r.Breaks {
			c.Breaks[i] = b
			if b.End != nil {
				end := *b.End
				c.Breaks[i].End = &end
			}
		}
	}
	if r.CheckOut != nil {
		out := *r.CheckOut
		c.CheckOut = &out
	}
	return c
}

func (r *memAttendanceRepo) all(staffID uuid.UUID) []model.AttendanceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AttendanceRecord
	for _, rec := range r.records {
		if rec.StaffID == staffID {
			out = append(out, copyRecord(rec))
		}
	}
	return out
}

func (r *memAttendanceRepo) WithStaffLock(_ context.Context, staffID uuid.UUID, fn func(repo repository.AttendanceRepository) error) error {
	r.rowLock.Lock()
	defer r.rowLock.Unlock()
	if !r.staff.active(staffID) {
		return repository.ErrNotFound
	}
	return fn(r)
}

func (r *memAttendanceRepo) FindByStaffAndDate(_ context.Context, staffID uuid.UUID, workDate string) (*model.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.StaffID == staffID && rec.WorkDate == workDate {
			c := copyRecord(rec)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAttendanceRepo) FindOpenByStaff(_ context.Context, staffID uuid.UUID) (*model.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *model.AttendanceRecord
	for _, rec := range r.records {
		if rec.StaffID != staffID || rec.CheckOut != nil {
			continue
		}
		if found == nil || rec.CheckIn.After(found.CheckIn) {
			c := copyRecord(rec)
			found = &c
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *memAttendanceRepo) Create(_ context.Context, rec *model.AttendanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.StaffID == rec.StaffID && existing.WorkDate == rec.WorkDate {
			return repository.ErrDuplicate
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	r.records[rec.ID] = copyRecord(*rec)
	return nil
}

func (r *memAttendanceRepo) SaveShift(_ context.Context, rec *model.AttendanceRecord) error {
	if r.failSave != nil {
		return r.failSave
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.records[rec.ID]
	if !ok {
		return repository.ErrNotFound
	}
	upd := copyRecord(*rec)
	stored.Breaks = upd.Breaks
	stored.CheckOut = upd.CheckOut
	r.records[rec.ID] = stored
	return nil
}

func (r *memAttendanceRepo) ListByDate(_ context.Context, workDate string) ([]model.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AttendanceRecord
	for _, rec := range r.records {
		if rec.WorkDate == workDate {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out, nil
}

func (r *memAttendanceRepo) ListHistory(_ context.Context, f repository.HistoryFilter) ([]model.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AttendanceRecord
	for _, rec := range r.records {
		if f.StaffID != nil && rec.StaffID != *f.StaffID {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.After(out[j].CheckIn) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memAttendanceRepo) ListOpenBefore(_ context.Context, cutoff time.Time, limit int) ([]model.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AttendanceRecord
	for _, rec := range r.records {
		if rec.CheckOut == nil && rec.CheckIn.Before(cutoff) {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Clock / events / photos ──────────────────────────────────────────────────

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.AttendanceEvent
	err    error
}

func (p *recordingPublisher) PublishAttendance(_ context.Context, ev dto.AttendanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
