package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/campus-clinic-scheduling/internal/config"
	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
	"github.com/hackgods/campus-clinic-scheduling/internal/slotlock"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentUpdated       = "APPOINTMENT_UPDATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentDeleted       = "APPOINTMENT_DELETED"
	EventAppointmentNoShow        = "APPOINTMENT_NO_SHOW"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	maxAssignAttempts = 3
	notifyTimeout     = 15 * time.Second
)

// TypeCatalog answers whether an appointment type key exists.
type TypeCatalog interface {
	HasType(ctx context.Context, value string) (bool, error)
}

// Notifier is told about every successful booking.
type Notifier interface {
	BookingConfirmed(ctx context.Context, a Appointment) error
}

type Service struct {
	repo     Repository
	nurses   directory.Directory
	locker   slotlock.Locker
	selector Selector
	types    TypeCatalog
	notifier Notifier
	cfg      config.Config

	notifyWG sync.WaitGroup
}

func NewService(repo Repository, nurses directory.Directory, locker slotlock.Locker, selector Selector, cfg config.Config) *Service {
	return &Service{
		repo:     repo,
		nurses:   nurses,
		locker:   locker,
		selector: selector,
		cfg:      cfg,
	}
}

// SetTypeCatalog makes bookings reject types missing from the catalog.
func (s *Service) SetTypeCatalog(c TypeCatalog) {
	s.types = c
}

func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Wait blocks until in-flight booking notifications are done.
func (s *Service) Wait() {
	s.notifyWG.Wait()
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func (s *Service) defaultStatus() Status {
	if s.cfg.DefaultStatus == "" {
		return StatusPending
	}
	return Status(s.cfg.DefaultStatus)
}

// BookAppointment resolves a nurse for the requested slot and persists the appointment.
// The conflict check and the insert run under a per-slot lock; the store's unique
// index on (nurse, date, time) backs it up across processes.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := normalizeRequest(req, s.defaultStatus())
	if err != nil {
		return nil, err
	}
	if err := s.checkType(ctx, appt.Type); err != nil {
		return nil, err
	}

	var (
		nurse      *directory.Nurse
		candidates []directory.Nurse
	)
	if req.NurseID != nil {
		nurse, err = s.lookupNurse(ctx, *req.NurseID)
	} else {
		candidates, err = s.listNurses(ctx)
	}
	if err != nil {
		return nil, err
	}

	slot := appt.Slot()
	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slot.Key(), func(lockCtx context.Context) error {
		var err error
		if nurse != nil {
			created, err = s.insertForNurse(lockCtx, appt, *nurse)
		} else {
			created, err = s.insertAutoAssigned(lockCtx, appt, candidates)
		}
		return err
	})
	if err != nil {
		return nil, lockError(err)
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"nurse_id":    created.NurseID.String(),
		"patient_id":  created.PatientID.String(),
		"date":        created.Date,
		"time":        created.Time,
		"auto_assign": req.NurseID == nil,
	})
	s.notifyBooked(*created)

	return created, nil
}

func lockError(err error) error {
	if errors.Is(err, slotlock.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

func (s *Service) insertForNurse(ctx context.Context, appt *Appointment, nurse directory.Nurse) (*Appointment, error) {
	if err := s.ensureNurseFree(ctx, nurse.ID, appt.Slot(), uuid.Nil); err != nil {
		return nil, err
	}

	a := *appt
	a.NurseID = nurse.ID
	a.NurseName = nurse.Name

	created, err := s.repo.InsertAppointment(ctx, &a)
	if err != nil {
		if errors.Is(err, ErrSlotConflict) {
			return nil, err
		}
		return nil, storeError("insert appointment", err)
	}
	return created, nil
}

// insertAutoAssigned picks a free nurse and inserts. A lost unique-index race
// means someone outside this lock took the nurse, so another candidate is tried.
func (s *Service) insertAutoAssigned(ctx context.Context, appt *Appointment, candidates []directory.Nurse) (*Appointment, error) {
	slot := appt.Slot()
	lost := make(map[uuid.UUID]bool)

	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		free, err := s.freeNurses(ctx, slot, candidates, nil)
		if err != nil {
			return nil, err
		}
		free = dropNurses(free, lost)
		if len(free) == 0 {
			return nil, ErrNoAvailableProvider
		}

		nurse, err := s.selector.Pick(ctx, slot, free)
		if err != nil {
			return nil, storeError("select nurse", err)
		}

		a := *appt
		a.NurseID = nurse.ID
		a.NurseName = nurse.Name

		created, err := s.repo.InsertAppointment(ctx, &a)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrSlotConflict) {
			return nil, storeError("insert appointment", err)
		}

		log.Printf("auto-assign lost slot race nurse=%s slot=%s attempt=%d", nurse.ID, slot.Key(), attempt+1)
		lost[nurse.ID] = true
	}

	return nil, ErrNoAvailableProvider
}

func dropNurses(nurses []directory.Nurse, drop map[uuid.UUID]bool) []directory.Nurse {
	if len(drop) == 0 {
		return nurses
	}
	out := nurses[:0:0]
	for _, n := range nurses {
		if !drop[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// freeNurses is candidates minus the nurses booked at slot. self, when set,
// does not count as occupying its own slot.
func (s *Service) freeNurses(ctx context.Context, slot Slot, candidates []directory.Nurse, self *Appointment) ([]directory.Nurse, error) {
	booked, err := s.repo.FindBookedNurses(ctx, slot)
	if err != nil {
		return nil, storeError("find booked nurses", err)
	}

	busy := make(map[uuid.UUID]bool, len(booked))
	for _, id := range booked {
		busy[id] = true
	}
	if self != nil && self.Slot() == slot {
		delete(busy, self.NurseID)
	}

	free := make([]directory.Nurse, 0, len(candidates))
	for _, n := range candidates {
		if !busy[n.ID] {
			free = append(free, n)
		}
	}
	return free, nil
}

func (s *Service) ensureNurseFree(ctx context.Context, nurseID uuid.UUID, slot Slot, excludeID uuid.UUID) error {
	existing, err := s.repo.FindAppointment(ctx, nurseID, slot, excludeID)
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return nil
	case err != nil:
		return storeError("find appointment", err)
	case existing != nil:
		return ErrSlotConflict
	}
	return nil
}

func (s *Service) lookupNurse(ctx context.Context, id uuid.UUID) (*directory.Nurse, error) {
	n, err := s.nurses.GetNurse(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNurseNotFound) {
			return nil, invalid("nurseId", "unknown nurse")
		}
		return nil, storeError("get nurse", err)
	}
	return n, nil
}

func (s *Service) listNurses(ctx context.Context) ([]directory.Nurse, error) {
	nurses, err := s.nurses.ListNurses(ctx)
	if err != nil {
		return nil, storeError("list nurses", err)
	}
	return nurses, nil
}

func (s *Service) checkType(ctx context.Context, value string) error {
	if s.types == nil {
		return nil
	}
	ok, err := s.types.HasType(ctx, value)
	if err != nil {
		return storeError("check appointment type", err)
	}
	if !ok {
		return invalid("type", fmt.Sprintf("unknown appointment type %q", value))
	}
	return nil
}

// Reschedule moves an appointment to slot, keeping its length. A nil nurseID
// keeps the current nurse.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, slot Slot, nurseID *uuid.UUID) (*Appointment, error) {
	return s.UpdateAppointment(ctx, id, Changes{
		Date:    &slot.Date,
		Time:    &slot.Time,
		NurseID: nurseID,
	})
}

// UpdateAppointment applies a partial update. Changes that move the appointment
// to another slot or nurse re-run the conflict check, ignoring the appointment itself.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, ch Changes) (*Appointment, error) {
	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := s.applyChanges(ctx, current, ch)
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	if !ch.movesSlot() {
		updated, err = s.save(ctx, next, current.Status)
	} else {
		updated, err = s.moveSlot(ctx, current, next, ch)
	}
	if err != nil {
		return nil, err
	}

	if updated.Status != current.Status {
		s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, map[string]any{
			"from": string(current.Status),
			"to":   string(updated.Status),
		})
	}
	if fields := ch.fields(); len(fields) > 0 {
		s.logEvent(ctx, updated.ID, EventAppointmentUpdated, map[string]any{
			"fields":   fields,
			"nurse_id": updated.NurseID.String(),
			"date":     updated.Date,
			"time":     updated.Time,
		})
	}

	return updated, nil
}

func (s *Service) applyChanges(ctx context.Context, current *Appointment, ch Changes) (*Appointment, error) {
	next := *current

	if ch.Date != nil {
		d, err := NormalizeDate("date", *ch.Date)
		if err != nil {
			return nil, err
		}
		next.Date = d
	}
	if ch.Time != nil {
		t, err := NormalizeTime("time", *ch.Time)
		if err != nil {
			return nil, err
		}
		next.Time = t
		if ch.EndTime == nil {
			end, err := shiftEnd(current.Time, current.EndTime, t)
			if err != nil {
				return nil, err
			}
			next.EndTime = end
		}
	}
	if ch.EndTime != nil {
		t, err := NormalizeTime("endTime", *ch.EndTime)
		if err != nil {
			return nil, err
		}
		next.EndTime = t
	}
	if ch.Time != nil || ch.EndTime != nil {
		if err := checkWindow(next.Time, next.EndTime); err != nil {
			return nil, err
		}
	}

	if ch.Type != nil {
		t := strings.TrimSpace(*ch.Type)
		if t == "" {
			return nil, invalid("type", "must not be empty")
		}
		if err := s.checkType(ctx, t); err != nil {
			return nil, err
		}
		next.Type = t
	}
	if ch.Notes != nil {
		next.Notes = ch.Notes
	}
	if ch.Symptoms != nil {
		next.Symptoms = ch.Symptoms
	}
	if ch.Priority != nil {
		if !ch.Priority.Valid() {
			return nil, invalid("priority", "must be normal or high")
		}
		next.Priority = *ch.Priority
	}

	if ch.Status != nil {
		to := *ch.Status
		if !to.Valid() {
			return nil, invalid("status", fmt.Sprintf("unknown status %q", to))
		}
		if s.cfg.StrictStatus && !CanTransition(current.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, to)
		}
		next.Status = to
	}

	return &next, nil
}

func (s *Service) moveSlot(ctx context.Context, current, next *Appointment, ch Changes) (*Appointment, error) {
	var (
		nurse      *directory.Nurse
		candidates []directory.Nurse
		err        error
	)
	switch {
	case ch.AutoAssign:
		candidates, err = s.listNurses(ctx)
	case ch.NurseID != nil && *ch.NurseID != current.NurseID:
		nurse, err = s.lookupNurse(ctx, *ch.NurseID)
	}
	if err != nil {
		return nil, err
	}

	slot := next.Slot()
	var updated *Appointment

	err = s.locker.WithSlotLock(ctx, slot.Key(), func(lockCtx context.Context) error {
		switch {
		case ch.AutoAssign:
			free, err := s.freeNurses(lockCtx, slot, candidates, current)
			if err != nil {
				return err
			}
			if len(free) == 0 {
				return ErrNoAvailableProvider
			}
			picked, err := s.selector.Pick(lockCtx, slot, free)
			if err != nil {
				return storeError("select nurse", err)
			}
			next.NurseID, next.NurseName = picked.ID, picked.Name
		case nurse != nil:
			next.NurseID, next.NurseName = nurse.ID, nurse.Name
		}

		if next.Status != StatusCancelled {
			if err := s.ensureNurseFree(lockCtx, next.NurseID, slot, current.ID); err != nil {
				return err
			}
		}

		var err error
		updated, err = s.save(lockCtx, next, current.Status)
		return err
	})
	if err != nil {
		return nil, lockError(err)
	}

	return updated, nil
}

func (s *Service) save(ctx context.Context, a *Appointment, expected Status) (*Appointment, error) {
	updated, err := s.repo.UpdateAppointment(ctx, a, expected)
	if err != nil {
		if errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrStaleAppointment) || errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storeError("update appointment", err)
	}
	return updated, nil
}

func (c Changes) fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(c.Date != nil, "date")
	add(c.Time != nil, "time")
	add(c.EndTime != nil, "endTime")
	add(c.NurseID != nil || c.AutoAssign, "nurseId")
	add(c.Type != nil, "type")
	add(c.Notes != nil, "notes")
	add(c.Symptoms != nil, "symptoms")
	add(c.Priority != nil, "priority")
	return f
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storeError("get appointment", err)
	}
	return a, nil
}

// ListAppointments returns appointments newest slot first.
func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, storeError("list appointments", err)
	}
	return appointments, nil
}

// DeleteAppointment removes the appointment row and returns what was removed.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	deleted, err := s.repo.DeleteAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storeError("delete appointment", err)
	}

	s.logEvent(ctx, deleted.ID, EventAppointmentDeleted, map[string]any{
		"nurse_id": deleted.NurseID.String(),
		"date":     deleted.Date,
		"time":     deleted.Time,
		"status":   string(deleted.Status),
	})

	return deleted, nil
}

func (s *Service) ListNurses(ctx context.Context) ([]directory.Nurse, error) {
	return s.listNurses(ctx)
}

// AvailableNurses lists the nurses auto-assignment could pick for slot right now.
func (s *Service) AvailableNurses(ctx context.Context, slot Slot) ([]directory.Nurse, error) {
	nurses, err := s.listNurses(ctx)
	if err != nil {
		return nil, err
	}
	return s.freeNurses(ctx, slot, nurses, nil)
}

// NurseSchedule returns a nurse's appointments on date, earliest first.
func (s *Service) NurseSchedule(ctx context.Context, nurseID uuid.UUID, date string) (*directory.Nurse, []Appointment, error) {
	d, err := NormalizeDate("date", date)
	if err != nil {
		return nil, nil, err
	}
	nurse, err := s.lookupNurse(ctx, nurseID)
	if err != nil {
		return nil, nil, err
	}

	appointments, err := s.ListAppointments(ctx, ListFilter{
		NurseID: &nurseID,
		Date:    &d,
		Limit:   MaxListLimit,
	})
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(appointments, func(i, j int) bool {
		return appointments[i].Time < appointments[j].Time
	})
	return nurse, appointments, nil
}

// MarkNoShows moves pending and confirmed appointments that ended more than the
// configured grace period before now to no-show. It returns how many were marked.
func (s *Service) MarkNoShows(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.NoShowGrace)
	overdue, err := s.repo.FindOverdue(ctx, cutoff)
	if err != nil {
		return 0, storeError("find overdue appointments", err)
	}

	marked := 0
	for _, appt := range overdue {
		if !CanTransition(appt.Status, StatusNoShow) {
			continue
		}

		next := appt
		next.Status = StatusNoShow
		_, err := s.repo.UpdateAppointment(ctx, &next, appt.Status)
		if err != nil {
			if !errors.Is(err, ErrStaleAppointment) && !errors.Is(err, ErrAppointmentNotFound) {
				log.Printf("failed to mark appointment %s as no-show: %v", appt.ID, err)
			}
			continue
		}

		marked++
		s.logEvent(ctx, appt.ID, EventAppointmentNoShow, map[string]any{
			"previous_status": string(appt.Status),
			"date":            appt.Date,
			"end_time":        appt.EndTime,
		})
	}

	return marked, nil
}

func (s *Service) notifyBooked(a Appointment) {
	if s.notifier == nil {
		return
	}

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.BookingConfirmed(ctx, a); err != nil {
			log.Printf("failed to send booking confirmation for appointment %s: %v", a.ID, err)
		}
	}()
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
