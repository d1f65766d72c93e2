package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
)

// memRepo is an in-memory Repository. With enforceUnique unset it behaves like
// a table without the nurse slot index.
type memRepo struct {
	mu            sync.Mutex
	appts         map[uuid.UUID]Appointment
	events        []EventLog
	enforceUnique bool
	failWith      error
	afterFind     func()
	inserts       int
}

func newMemRepo(enforceUnique bool) *memRepo {
	return &memRepo{
		appts:         make(map[uuid.UUID]Appointment),
		enforceUnique: enforceUnique,
	}
}

func (r *memRepo) seed(a Appointment) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusConfirmed
	}
	if a.Priority == "" {
		a.Priority = PriorityNormal
	}
	r.appts[a.ID] = a
	return a
}

func (r *memRepo) all() []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Appointment, 0, len(r.appts))
	for _, a := range r.appts {
		out = append(out, a)
	}
	return out
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appts)
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

func occupies(a Appointment, nurseID uuid.UUID, slot Slot) bool {
	return a.Status != StatusCancelled && a.NurseID == nurseID && a.Slot() == slot
}

func (r *memRepo) takenLocked(nurseID uuid.UUID, slot Slot, excludeID uuid.UUID) bool {
	for id, a := range r.appts {
		if id != excludeID && occupies(a, nurseID, slot) {
			return true
		}
	}
	return false
}

func (r *memRepo) FindBookedNurses(ctx context.Context, slot Slot) ([]uuid.UUID, error) {
	r.mu.Lock()
	if r.failWith != nil {
		r.mu.Unlock()
		return nil, r.failWith
	}
	var ids []uuid.UUID
	for _, a := range r.appts {
		if a.Status != StatusCancelled && a.Slot() == slot {
			ids = append(ids, a.NurseID)
		}
	}
	hook := r.afterFind
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return ids, nil
}

func (r *memRepo) FindAppointment(ctx context.Context, nurseID uuid.UUID, slot Slot, excludeID uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for id, a := range r.appts {
		if id != excludeID && occupies(a, nurseID, slot) {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) CountBookingsByNurse(ctx context.Context, date string) (map[uuid.UUID]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	counts := make(map[uuid.UUID]int)
	for _, a := range r.appts {
		if a.Status != StatusCancelled && a.Date == date {
			counts[a.NurseID]++
		}
	}
	return counts, nil
}

func (r *memRepo) InsertAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	if r.enforceUnique && a.Status != StatusCancelled && r.takenLocked(a.NurseID, a.Slot(), uuid.Nil) {
		return nil, ErrSlotConflict
	}

	created := *a
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	r.appts[created.ID] = created
	r.inserts++
	return &created, nil
}

func (r *memRepo) UpdateAppointment(ctx context.Context, a *Appointment, expected Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	stored, ok := r.appts[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if stored.Status != expected {
		return nil, ErrStaleAppointment
	}
	if r.enforceUnique && a.Status != StatusCancelled && r.takenLocked(a.NurseID, a.Slot(), a.ID) {
		return nil, ErrSlotConflict
	}

	updated := *a
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	r.appts[a.ID] = updated
	return &updated, nil
}

func (r *memRepo) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	delete(r.appts, id)
	return &a, nil
}

func (r *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}

	var out []Appointment
	for _, a := range r.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.NurseID != nil && a.NurseID != *f.NurseID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		if f.Date != nil && a.Date != *f.Date {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Time > out[j].Time
	})

	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}

	var out []Appointment
	for _, a := range r.appts {
		if a.Status != StatusPending && a.Status != StatusConfirmed {
			continue
		}
		end, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.EndTime, cutoff.Location())
		if err != nil {
			continue
		}
		if end.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type memDirectory struct {
	nurses []directory.Nurse
}

func (d *memDirectory) ListNurses(ctx context.Context) ([]directory.Nurse, error) {
	return d.nurses, nil
}

func (d *memDirectory) GetNurse(ctx context.Context, id uuid.UUID) (*directory.Nurse, error) {
	for _, n := range d.nurses {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, directory.ErrNurseNotFound
}

// passthroughLocker runs fn with no mutual exclusion, reproducing a plain
// check-then-insert.
type passthroughLocker struct{}

func (passthroughLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type failingLocker struct {
	err error
}

func (l failingLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return l.err
}

type staticCatalog map[string]bool

func (c staticCatalog) HasType(ctx context.Context, value string) (bool, error) {
	return c[value], nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Appointment
}

func (n *recordingNotifier) BookingConfirmed(ctx context.Context, a Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, a)
	return nil
}

// barrier holds the first n callers until all n have arrived; later callers pass.
type barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, release: make(chan struct{})}
}

func (b *barrier) wait() {
	b.mu.Lock()
	b.arrived++
	if b.arrived > b.n {
		b.mu.Unlock()
		return
	}
	if b.arrived == b.n {
		close(b.release)
	}
	b.mu.Unlock()
	<-b.release
}
