package appointment

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// NormalizeDate checks a YYYY-MM-DD date and returns it in canonical form.
func NormalizeDate(field, raw string) (string, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return d.Format(dateLayout), nil
}

// NormalizeTime checks an HH:MM time and returns it zero padded.
func NormalizeTime(field, raw string) (string, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", invalid(field, "must be a time in HH:MM format")
	}
	return t.Format(timeLayout), nil
}

// ParseNurseSelection maps the nurse field of a request to a nurse id.
// An empty value or "auto" means automatic assignment and yields nil.
func ParseNurseSelection(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "auto") {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalid("nurseId", "must be a nurse id or \"auto\"")
	}
	return &id, nil
}

func NewSlot(date, start string) (Slot, error) {
	d, err := NormalizeDate("date", date)
	if err != nil {
		return Slot{}, err
	}
	t, err := NormalizeTime("time", start)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: t}, nil
}

func checkWindow(start, end string) error {
	if end <= start {
		return invalid("endTime", "must be after the start time")
	}
	return nil
}

// shiftEnd moves an appointment window to newStart, keeping its length.
func shiftEnd(start, end, newStart string) (string, error) {
	s, err1 := time.Parse(timeLayout, start)
	e, err2 := time.Parse(timeLayout, end)
	ns, err3 := time.Parse(timeLayout, newStart)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", invalid("time", "must be a time in HH:MM format")
	}

	shifted := ns.Add(e.Sub(s))
	if shifted.Day() != ns.Day() {
		return "", invalid("time", "appointment would end after midnight")
	}
	return shifted.Format(timeLayout), nil
}

func validateEmail(raw string) error {
	if _, err := mail.ParseAddress(raw); err != nil {
		return invalid("patientEmail", "must be a valid e-mail address")
	}
	return nil
}

// normalizeRequest validates a booking request and fills in defaults.
func normalizeRequest(req BookingRequest, defaultStatus Status) (*Appointment, error) {
	if req.PatientID == uuid.Nil {
		return nil, invalid("patientId", "is required")
	}
	name := strings.TrimSpace(req.PatientName)
	if name == "" {
		return nil, invalid("patientName", "is required")
	}
	email := strings.TrimSpace(req.PatientEmail)
	if email == "" {
		return nil, invalid("patientEmail", "is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	apptType := strings.TrimSpace(req.Type)
	if apptType == "" {
		return nil, invalid("type", "is required")
	}

	slot, err := NewSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	end, err := NormalizeTime("endTime", req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(slot.Time, end); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, invalid("priority", "must be normal or high")
	}

	status := req.Status
	if status == "" {
		status = defaultStatus
	}
	if status != StatusPending && status != StatusConfirmed {
		return nil, invalid("status", "a new appointment must be pending or confirmed")
	}

	return &Appointment{
		PatientID:    req.PatientID,
		PatientName:  name,
		PatientEmail: email,
		Date:         slot.Date,
		Time:         slot.Time,
		EndTime:      end,
		Status:       status,
		Type:         apptType,
		Notes:        req.Notes,
		Symptoms:     req.Symptoms,
		Priority:     priority,
	}, nil
}
