package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Slot is a calendar date plus a start time, in clinic local time.
// Date is YYYY-MM-DD and Time is HH:MM.
type Slot struct {
	Date string
	Time string
}

// Key identifies the slot in lock names.
func (s Slot) Key() string {
	return s.Date + ":" + s.Time
}

type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	PatientName  string
	PatientEmail string
	NurseID      uuid.UUID
	NurseName    string
	Date         string
	Time         string
	EndTime      string
	Status       Status
	Type         string
	Notes        *string
	Symptoms     *string
	Priority     Priority
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Appointment) Slot() Slot {
	return Slot{Date: a.Date, Time: a.Time}
}

// BookingRequest is a new appointment as submitted by a patient.
// A nil NurseID asks the scheduler to pick a nurse.
type BookingRequest struct {
	PatientID    uuid.UUID
	PatientName  string
	PatientEmail string
	NurseID      *uuid.UUID
	Date         string
	Time         string
	EndTime      string
	Type         string
	Notes        *string
	Symptoms     *string
	Priority     Priority
	Status       Status
}

// Changes is a partial update. Nil fields are left untouched.
type Changes struct {
	Date       *string
	Time       *string
	EndTime    *string
	NurseID    *uuid.UUID
	AutoAssign bool
	Status     *Status
	Type       *string
	Notes      *string
	Symptoms   *string
	Priority   *Priority
}

func (c Changes) movesSlot() bool {
	return c.Date != nil || c.Time != nil || c.NurseID != nil || c.AutoAssign
}

type ListFilter struct {
	PatientID *uuid.UUID
	NurseID   *uuid.UUID
	Status    *Status
	Type      *string
	Date      *string
	Limit     int
	Offset    int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
