package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/hackgods/campus-clinic-scheduling/internal/config"
	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
	"github.com/hackgods/campus-clinic-scheduling/internal/slotlock"
)

var (
	n1 = directory.Nurse{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "Nurse One"}
	n2 = directory.Nurse{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Name: "Nurse Two"}
	n3 = directory.Nurse{ID: uuid.MustParse("00000000-0000-0000-0000-000000000003"), Name: "Nurse Three"}
	n4 = directory.Nurse{ID: uuid.MustParse("00000000-0000-0000-0000-000000000004"), Name: "Nurse Four"}
)

func testConfig() config.Config {
	return config.Config{
		DefaultStatus: "pending",
		StrictStatus:  true,
		NoShowGrace:   30 * time.Minute,
	}
}

func newTestService(t *testing.T, repo *memRepo, nurses []directory.Nurse, locker slotlock.Locker) *Service {
	t.Helper()
	sel, err := NewSelector(PolicyLeastLoaded, repo)
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	return NewService(repo, &memDirectory{nurses: nurses}, locker, sel, testConfig())
}

func bookingRequest(date, start string, nurseID *uuid.UUID) BookingRequest {
	end, _ := time.Parse("15:04", start)
	return BookingRequest{
		PatientID:    uuid.New(),
		PatientName:  gofakeit.Name(),
		PatientEmail: gofakeit.Email(),
		NurseID:      nurseID,
		Date:         date,
		Time:         start,
		EndTime:      end.Add(30 * time.Minute).Format("15:04"),
		Type:         "general-checkup",
	}
}

func seeded(nurse directory.Nurse, date, start string) Appointment {
	end, _ := time.Parse("15:04", start)
	return Appointment{
		PatientID:    uuid.New(),
		PatientName:  "Seeded Patient",
		PatientEmail: "seeded@campus.edu",
		NurseID:      nurse.ID,
		NurseName:    nurse.Name,
		Date:         date,
		Time:         start,
		EndTime:      end.Add(30 * time.Minute).Format("15:04"),
		Type:         "general-checkup",
	}
}

func TestBookAutoAssignSkipsBusyNurse(t *testing.T) {
	repo := newMemRepo(true)
	repo.seed(seeded(n1, "2025-03-10", "10:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))

	booked, err := repo.FindBookedNurses(context.Background(), Slot{Date: "2025-03-10", Time: "10:00"})
	if err != nil {
		t.Fatal(err)
	}

	appt, err := svc.BookAppointment(context.Background(), bookingRequest("2025-03-10", "10:00", nil))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.NurseID != n2.ID || appt.NurseName != n2.Name {
		t.Fatalf("assigned %s (%s), want %s", appt.NurseID, appt.NurseName, n2.ID)
	}
	for _, id := range booked {
		if id == appt.NurseID {
			t.Fatalf("auto-assignment picked busy nurse %s", id)
		}
	}
	if appt.ID == uuid.Nil {
		t.Error("created appointment has no id")
	}
	if appt.Status != StatusPending || appt.Priority != PriorityNormal {
		t.Errorf("defaults: status=%s priority=%s", appt.Status, appt.Priority)
	}
}

func TestBookAutoAssignNoAvailableNurse(t *testing.T) {
	repo := newMemRepo(true)
	repo.seed(seeded(n1, "2025-03-10", "10:00"))
	repo.seed(seeded(n2, "2025-03-10", "10:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))

	_, err := svc.BookAppointment(context.Background(), bookingRequest("2025-03-10", "10:00", nil))
	if !errors.Is(err, ErrNoAvailableProvider) {
		t.Fatalf("err = %v, want ErrNoAvailableProvider", err)
	}
	if repo.count() != 2 || repo.inserts != 0 {
		t.Errorf("store changed on failure: rows=%d inserts=%d", repo.count(), repo.inserts)
	}
}

func TestBookExplicitNurseConflict(t *testing.T) {
	repo := newMemRepo(true)
	repo.seed(seeded(n1, "2025-03-10", "10:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))

	_, err := svc.BookAppointment(context.Background(), bookingRequest("2025-03-10", "10:00", &n1.ID))
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}
	if repo.count() != 1 {
		t.Errorf("rows = %d, want 1", repo.count())
	}
}

func TestBookExplicitNurseFree(t *testing.T) {
	repo := newMemRepo(true)
	repo.seed(seeded(n1, "2025-03-10", "10:00"))
	notifier := &recordingNotifier{}
	svc := newTestService(t, repo, []directory.Nurse{n1, n2, n3}, slotlock.NewLocal(time.Second))
	svc.SetNotifier(notifier)

	req := bookingRequest("2025-03-10", "10:00", &n3.ID)
	req.Status = StatusConfirmed
	appt, err := svc.BookAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.NurseID != n3.ID || appt.NurseName != n3.Name {
		t.Fatalf("nurse = %s, want %s", appt.NurseID, n3.ID)
	}
	if appt.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", appt.Status)
	}

	stored, err := repo.GetAppointmentByID(context.Background(), appt.ID)
	if err != nil || stored.NurseID != n3.ID {
		t.Fatalf("row not persisted with nurse N3: %+v %v", stored, err)
	}

	svc.Wait()
	if len(notifier.sent) != 1 || notifier.sent[0].ID != appt.ID {
		t.Errorf("notifications = %+v", notifier.sent)
	}
	if got := repo.eventTypes(); len(got) != 1 || got[0] != EventAppointmentCreated {
		t.Errorf("events = %v", got)
	}
}

func TestBookCancelledAppointmentFreesSlot(t *testing.T) {
	repo := newMemRepo(true)
	a := seeded(n1, "2025-03-10", "10:00")
	a.Status = StatusCancelled
	repo.seed(a)
	svc := newTestService(t, repo, []directory.Nurse{n1}, slotlock.NewLocal(time.Second))

	if _, err := svc.BookAppointment(context.Background(), bookingRequest("2025-03-10", "10:00", &n1.ID)); err != nil {
		t.Fatalf("book over cancelled appointment: %v", err)
	}
}

func TestBookUnknownNurse(t *testing.T) {
	repo := newMemRepo(true)
	svc := newTestService(t, repo, []directory.Nurse{n1}, slotlock.NewLocal(time.Second))

	unknown := uuid.New()
	_, err := svc.BookAppointment(context.Background(), bookingRequest("2025-03-10", "10:00", &unknown))
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "nurseId" {
		t.Fatalf("err = %v, want nurseId validation error", err)
	}
}

func TestBookValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BookingRequest)
		field  string
	}{
		{"missing patient id", func(r *BookingRequest) { r.PatientID = uuid.Nil }, "patientId"},
		{"missing patient name", func(r *BookingRequest) { r.PatientName = " " }, "patientName"},
		{"missing email", func(r *BookingRequest) { r.PatientEmail = "" }, "patientEmail"},
		{"bad email", func(r *BookingRequest) { r.PatientEmail = "not-an-email" }, "patientEmail"},
		{"missing type", func(r *BookingRequest) { r.Type = "" }, "type"},
		{"unknown type", func(r *BookingRequest) { r.Type = "surgery" }, "type"},
		{"bad date", func(r *BookingRequest) { r.Date = "10/03/2025" }, "date"},
		{"missing time", func(r *BookingRequest) { r.Time = "" }, "time"},
		{"end before start", func(r *BookingRequest) { r.EndTime = "09:30" }, "endTime"},
		{"bad priority", func(r *BookingRequest) { r.Priority = "urgent" }, "priority"},
		{"completed on create", func(r *BookingRequest) { r.Status = StatusCompleted }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo(true)
			svc := newTestService(t, repo, []directory.Nurse{n1}, slotlock.NewLocal(time.Second))
			svc.SetTypeCatalog(staticCatalog{"general-checkup": true})

			req := bookingRequest("2025-03-10", "10:00", nil)
			tt.mutate(&req)

			_, err := svc.BookAppointment(context.Background(), req)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("field = %s, want %s", vErr.Field, tt.field)
			}
			if repo.count() != 0 {
				t.Errorf("rows = %d after validation failure", repo.count())
			}
		})
	}
}

func TestBookStoreUnavailable(t *testing.T) {
	repo := newMemRepo(true)
	repo.failWith = errors.New("connection refused")
	svc := newTestService(t, repo, []directory.Nurse{n1}, slotlock.NewLocal(time.Second))

	_, err := svc.BookAppointment(context.Background(), bookingRequest("2025-03-10", "10:00", nil))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestBookLockNotAcquired(t *testing.T) {
	repo := newMemRepo(true)
	svc := newTestService(t, repo, []directory.Nurse{n1}, failingLocker{err: slotlock.ErrLockNotAcquired})

	_, err := svc.BookAppointment(context.Background(), bookingRequest("2025-03-10", "10:00", nil))
	if !errors.Is(err, ErrSlotBeingBooked) {
		t.Fatalf("err = %v, want ErrSlotBeingBooked", err)
	}
	if repo.count() != 0 {
		t.Errorf("rows = %d", repo.count())
	}
}

// Unguarded: no slot lock and no unique index. Both requests read the
// slot before either inserts, so the only free nurse is booked twice.
func TestConcurrentBookingUnguardedDoubleBooks(t *testing.T) {
	repo := newMemRepo(false)
	b := newBarrier(2)
	repo.afterFind = b.wait
	svc := newTestService(t, repo, []directory.Nurse{n4}, passthroughLocker{})

	errs := bookConcurrently(svc, 2, "2025-03-10", "10:00")
	for _, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	rows := repo.all()
	if len(rows) != 2 || rows[0].NurseID != n4.ID || rows[1].NurseID != n4.ID {
		t.Fatalf("expected N4 double-booked, got %+v", rows)
	}
}

// Hardened: the per-slot lock alone serialises check and insert.
func TestConcurrentBookingSlotLockPreventsDoubleBooking(t *testing.T) {
	repo := newMemRepo(false)
	svc := newTestService(t, repo, []directory.Nurse{n4}, slotlock.NewLocal(5*time.Second))

	errs := bookConcurrently(svc, 10, "2025-03-10", "10:00")
	assertSingleWinner(t, errs)
	assertNoDoubleBooking(t, repo.all())
}

// Hardened: without a shared lock (separate instances), the unique index decides
// and the loser falls through to NoAvailableProvider.
func TestConcurrentBookingUniqueIndexPreventsDoubleBooking(t *testing.T) {
	repo := newMemRepo(true)
	b := newBarrier(2)
	repo.afterFind = b.wait
	svc := newTestService(t, repo, []directory.Nurse{n4}, passthroughLocker{})

	errs := bookConcurrently(svc, 2, "2025-03-10", "10:00")
	assertSingleWinner(t, errs)
	assertNoDoubleBooking(t, repo.all())
}

func TestAutoAssignRetriesAfterLostRace(t *testing.T) {
	repo := newMemRepo(true)
	b := newBarrier(2)
	repo.afterFind = b.wait
	// both callers pick N1, so the loser has to move on to N2
	svc := NewService(repo, &memDirectory{nurses: []directory.Nurse{n1, n2}}, passthroughLocker{}, fixedFirstSelector{}, testConfig())

	errs := bookConcurrently(svc, 2, "2025-03-10", "10:00")
	for _, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assertNoDoubleBooking(t, repo.all())
	if repo.count() != 2 {
		t.Fatalf("rows = %d, want 2", repo.count())
	}
}

// fixedFirstSelector always picks the lowest id.
type fixedFirstSelector struct{}

func (fixedFirstSelector) Pick(ctx context.Context, slot Slot, candidates []directory.Nurse) (directory.Nurse, error) {
	return sortedByID(candidates)[0], nil
}

func bookConcurrently(svc *Service, n int, date, start string) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.BookAppointment(context.Background(), bookingRequest(date, start, nil))
		}(i)
	}
	wg.Wait()
	return errs
}

func assertSingleWinner(t *testing.T, errs []error) {
	t.Helper()
	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNoAvailableProvider), errors.Is(err, ErrSlotConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful bookings = %d, want 1", wins)
	}
}

func assertNoDoubleBooking(t *testing.T, rows []Appointment) {
	t.Helper()
	type key struct {
		nurse uuid.UUID
		slot  Slot
	}
	seen := make(map[key]uuid.UUID)
	for _, a := range rows {
		if a.Status == StatusCancelled {
			continue
		}
		k := key{a.NurseID, a.Slot()}
		if other, ok := seen[k]; ok {
			t.Fatalf("appointments %s and %s share nurse %s at %s", other, a.ID, a.NurseID, a.Slot().Key())
		}
		seen[k] = a.ID
	}
}

func TestRescheduleOntoOwnSlot(t *testing.T) {
	repo := newMemRepo(true)
	x := repo.seed(seeded(n1, "2025-03-10", "14:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))

	updated, err := svc.Reschedule(context.Background(), x.ID, Slot{Date: "2025-03-10", Time: "14:00"}, &n1.ID)
	if err != nil {
		t.Fatalf("reschedule onto own slot: %v", err)
	}
	if updated.NurseID != n1.ID || updated.Time != "14:00" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestRescheduleLaterKeepsDuration(t *testing.T) {
	repo := newMemRepo(true)
	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))
	ctx := context.Background()

	booked, err := svc.BookAppointment(ctx, bookingRequest("2025-03-10", "10:00", &n1.ID))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.EndTime != "10:30" {
		t.Fatalf("booked end = %s, want 10:30", booked.EndTime)
	}

	moved, err := svc.Reschedule(ctx, booked.ID, Slot{Date: "2025-03-10", Time: "14:00"}, nil)
	if err != nil {
		t.Fatalf("reschedule to free 14:00 slot: %v", err)
	}
	if moved.Time != "14:00" || moved.EndTime != "14:30" || moved.NurseID != n1.ID {
		t.Errorf("moved = %s-%s nurse %s, want 14:00-14:30 with %s", moved.Time, moved.EndTime, moved.NurseID, n1.ID)
	}

	earlier, err := svc.Reschedule(ctx, booked.ID, Slot{Date: "2025-03-11", Time: "08:00"}, nil)
	if err != nil {
		t.Fatalf("reschedule earlier: %v", err)
	}
	if earlier.Date != "2025-03-11" || earlier.EndTime != "08:30" {
		t.Errorf("earlier = %s %s-%s", earlier.Date, earlier.Time, earlier.EndTime)
	}
}

func TestRescheduleEndTime(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     *string
		wantEnd string
		wantErr bool
	}{
		{"explicit end honoured", "14:00", strPtr("15:00"), "15:00", false},
		{"explicit end before start", "14:00", strPtr("13:45"), "", true},
		{"explicit end equal to start", "14:00", strPtr("14:00"), "", true},
		{"shifted past midnight", "23:45", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo(true)
			x := repo.seed(seeded(n1, "2025-03-10", "10:00"))
			svc := newTestService(t, repo, []directory.Nurse{n1}, slotlock.NewLocal(time.Second))

			date, start := "2025-03-10", tt.start
			updated, err := svc.UpdateAppointment(context.Background(), x.ID, Changes{Date: &date, Time: &start, EndTime: tt.end})
			if tt.wantErr {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("err = %v, want ValidationError", err)
				}
				stored, _ := repo.GetAppointmentByID(context.Background(), x.ID)
				if stored.Time != "10:00" || stored.EndTime != "10:30" {
					t.Errorf("appointment modified on failure: %+v", stored)
				}
				return
			}
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.EndTime != tt.wantEnd {
				t.Errorf("end = %s, want %s", updated.EndTime, tt.wantEnd)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func TestRescheduleConflict(t *testing.T) {
	repo := newMemRepo(true)
	x := repo.seed(seeded(n1, "2025-03-10", "14:00"))
	repo.seed(seeded(n1, "2025-03-10", "15:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))

	_, err := svc.Reschedule(context.Background(), x.ID, Slot{Date: "2025-03-10", Time: "15:00"}, nil)
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want ErrSlotConflict", err)
	}

	stored, _ := repo.GetAppointmentByID(context.Background(), x.ID)
	if stored.Time != "14:00" {
		t.Errorf("appointment modified on failure: %+v", stored)
	}
}

func TestUpdateAutoAssignKeepsSelfEligible(t *testing.T) {
	repo := newMemRepo(true)
	x := repo.seed(seeded(n1, "2025-03-10", "14:00"))
	repo.seed(seeded(n2, "2025-03-10", "14:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))

	updated, err := svc.UpdateAppointment(context.Background(), x.ID, Changes{AutoAssign: true})
	if err != nil {
		t.Fatalf("auto reassign: %v", err)
	}
	if updated.NurseID != n1.ID {
		t.Errorf("nurse = %s, want the appointment's own nurse", updated.NurseID)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		strict  bool
		wantErr error
	}{
		{"confirm pending", StatusPending, StatusConfirmed, true, nil},
		{"complete confirmed", StatusConfirmed, StatusCompleted, true, nil},
		{"cancel pending", StatusPending, StatusCancelled, true, nil},
		{"reopen completed", StatusCompleted, StatusPending, true, ErrInvalidStatusTransition},
		{"skip confirmation", StatusPending, StatusCompleted, true, ErrInvalidStatusTransition},
		{"reopen completed permissive", StatusCompleted, StatusPending, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo(true)
			a := seeded(n1, "2025-03-10", "14:00")
			a.Status = tt.from
			x := repo.seed(a)

			cfg := testConfig()
			cfg.StrictStatus = tt.strict
			sel, _ := NewSelector(PolicyLeastLoaded, repo)
			svc := NewService(repo, &memDirectory{nurses: []directory.Nurse{n1}}, slotlock.NewLocal(time.Second), sel, cfg)

			to := tt.to
			updated, err := svc.UpdateAppointment(context.Background(), x.ID, Changes{Status: &to})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.Status != tt.to {
				t.Errorf("status = %s, want %s", updated.Status, tt.to)
			}
			if got := repo.eventTypes(); len(got) != 1 || got[0] != EventAppointmentStatusChanged {
				t.Errorf("events = %v", got)
			}
		})
	}
}

func TestUpdateFields(t *testing.T) {
	repo := newMemRepo(true)
	x := repo.seed(seeded(n1, "2025-03-10", "14:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1}, slotlock.NewLocal(time.Second))

	notes := "bring vaccination card"
	high := PriorityHigh
	end := "15:15"
	updated, err := svc.UpdateAppointment(context.Background(), x.ID, Changes{Notes: &notes, Priority: &high, EndTime: &end})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Notes == nil || *updated.Notes != notes || updated.Priority != PriorityHigh || updated.EndTime != end {
		t.Errorf("updated = %+v", updated)
	}

	bad := "13:00"
	if _, err := svc.UpdateAppointment(context.Background(), x.ID, Changes{EndTime: &bad}); err == nil {
		t.Error("expected error for end time before start")
	}
}

func TestUpdateMissingAppointment(t *testing.T) {
	svc := newTestService(t, newMemRepo(true), []directory.Nurse{n1}, slotlock.NewLocal(time.Second))

	s := StatusConfirmed
	_, err := svc.UpdateAppointment(context.Background(), uuid.New(), Changes{Status: &s})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestDeleteAppointment(t *testing.T) {
	repo := newMemRepo(true)
	x := repo.seed(seeded(n1, "2025-03-10", "14:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1}, slotlock.NewLocal(time.Second))

	deleted, err := svc.DeleteAppointment(context.Background(), x.ID)
	if err != nil || deleted.ID != x.ID {
		t.Fatalf("delete: %+v %v", deleted, err)
	}
	if _, err := svc.GetAppointment(context.Background(), x.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("get after delete: %v", err)
	}
	if _, err := svc.DeleteAppointment(context.Background(), x.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestListAppointmentsClampsLimit(t *testing.T) {
	repo := newMemRepo(true)
	for i := 0; i < 3; i++ {
		repo.seed(seeded(n1, "2025-03-1"+string(rune('0'+i)), "09:00"))
	}
	svc := newTestService(t, repo, []directory.Nurse{n1}, slotlock.NewLocal(time.Second))

	got, err := svc.ListAppointments(context.Background(), ListFilter{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].Date != "2025-03-12" {
		t.Errorf("list = %+v", got)
	}
}

func TestAvailableNursesAndSchedule(t *testing.T) {
	repo := newMemRepo(true)
	repo.seed(seeded(n1, "2025-03-10", "14:00"))
	repo.seed(seeded(n1, "2025-03-10", "09:00"))
	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))

	free, err := svc.AvailableNurses(context.Background(), Slot{Date: "2025-03-10", Time: "14:00"})
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(free) != 1 || free[0].ID != n2.ID {
		t.Errorf("available = %+v", free)
	}

	nurse, schedule, err := svc.NurseSchedule(context.Background(), n1.ID, "2025-03-10")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if nurse.ID != n1.ID || len(schedule) != 2 || schedule[0].Time != "09:00" {
		t.Errorf("schedule = %+v", schedule)
	}
}

func TestMarkNoShows(t *testing.T) {
	repo := newMemRepo(true)
	overdue := seeded(n1, "2025-03-10", "10:30")
	overdue.EndTime = "11:00"
	overdue = repo.seed(overdue)

	withinGrace := seeded(n1, "2025-03-10", "11:15")
	withinGrace.EndTime = "11:45"
	withinGrace = repo.seed(withinGrace)

	done := seeded(n2, "2025-03-10", "08:00")
	done.EndTime = "08:30"
	done.Status = StatusCompleted
	done = repo.seed(done)

	svc := newTestService(t, repo, []directory.Nurse{n1, n2}, slotlock.NewLocal(time.Second))

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	marked, err := svc.MarkNoShows(context.Background(), now)
	if err != nil {
		t.Fatalf("mark no-shows: %v", err)
	}
	if marked != 1 {
		t.Fatalf("marked = %d, want 1", marked)
	}

	for id, want := range map[uuid.UUID]Status{
		overdue.ID:     StatusNoShow,
		withinGrace.ID: StatusConfirmed,
		done.ID:        StatusCompleted,
	} {
		got, _ := repo.GetAppointmentByID(context.Background(), id)
		if got.Status != want {
			t.Errorf("appointment %s status = %s, want %s", id, got.Status, want)
		}
	}
}
