package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/campus-clinic-scheduling/internal/appointment"
	"github.com/hackgods/campus-clinic-scheduling/internal/catalog"
	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
)

type CreateAppointmentRequest struct {
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	EndTime      string  `json:"endTime"`
	NurseID      string  `json:"nurseId"`
	PatientID    string  `json:"patientId"`
	PatientName  string  `json:"patientName"`
	PatientEmail string  `json:"patientEmail"`
	Type         string  `json:"type"`
	Notes        *string `json:"notes"`
	Symptoms     *string `json:"symptoms"`
	Priority     string  `json:"priority"`
	Status       string  `json:"status"`
}

// UpdateAppointmentRequest is a PATCH body; absent fields are left unchanged.
type UpdateAppointmentRequest struct {
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	EndTime  *string `json:"endTime"`
	NurseID  *string `json:"nurseId"`
	Status   *string `json:"status"`
	Type     *string `json:"type"`
	Notes    *string `json:"notes"`
	Symptoms *string `json:"symptoms"`
	Priority *string `json:"priority"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patientId"`
	PatientName  string    `json:"patientName"`
	PatientEmail string    `json:"patientEmail"`
	NurseID      uuid.UUID `json:"nurseId"`
	NurseName    string    `json:"nurseName"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	EndTime      string    `json:"endTime"`
	Status       string    `json:"status"`
	Type         string    `json:"type"`
	Notes        *string   `json:"notes,omitempty"`
	Symptoms     *string   `json:"symptoms,omitempty"`
	Priority     string    `json:"priority"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type NurseResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Shift *string   `json:"shift,omitempty"`
}

type AvailableNursesResponse struct {
	Date   string          `json:"date"`
	Time   string          `json:"time"`
	Nurses []NurseResponse `json:"nurses"`
}

type NurseScheduleResponse struct {
	Nurse        NurseResponse         `json:"nurse"`
	Date         string                `json:"date"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type CreateAppointmentTypeRequest struct {
	Value           string `json:"value"`
	Label           string `json:"label"`
	DurationMinutes int    `json:"durationMinutes"`
}

type UpdateAppointmentTypeRequest struct {
	Label           *string `json:"label"`
	DurationMinutes *int    `json:"durationMinutes"`
}

type AppointmentTypeResponse struct {
	Value           string `json:"value"`
	Label           string `json:"label"`
	DurationMinutes int    `json:"durationMinutes"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		PatientName:  a.PatientName,
		PatientEmail: a.PatientEmail,
		NurseID:      a.NurseID,
		NurseName:    a.NurseName,
		Date:         a.Date,
		Time:         a.Time,
		EndTime:      a.EndTime,
		Status:       string(a.Status),
		Type:         a.Type,
		Notes:        a.Notes,
		Symptoms:     a.Symptoms,
		Priority:     string(a.Priority),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toAppointmentResponses(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toNurseResponses(list []directory.Nurse) []NurseResponse {
	out := make([]NurseResponse, 0, len(list))
	for _, n := range list {
		out = append(out, NurseResponse{ID: n.ID, Name: n.Name, Shift: n.Shift})
	}
	return out
}

func toTypeResponse(t catalog.AppointmentType) AppointmentTypeResponse {
	return AppointmentTypeResponse{
		Value:           t.Value,
		Label:           t.Label,
		DurationMinutes: t.DurationMinutes,
	}
}
