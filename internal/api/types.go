package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// TemplateRequest is used for both create and partial update; absent fields
// are nil.
type TemplateRequest struct {
	DoctorID     string            `json:"Doctor_id"`
	DayOfTheWeek *schedule.Weekday `json:"Day_Of_The_Week"`
	StartTime    *schedule.Clock   `json:"Start_Time"`
	EndTime      *schedule.Clock   `json:"End_Time"`
	SlotDuration *int              `json:"Slot_Duration"`
	IsActive     *bool             `json:"Is_Active"`
}

type TemplateResponse struct {
	ID           uuid.UUID        `json:"id"`
	DoctorID     uuid.UUID        `json:"Doctor_id"`
	DayOfTheWeek schedule.Weekday `json:"Day_Of_The_Week"`
	StartTime    schedule.Clock   `json:"Start_Time"`
	EndTime      schedule.Clock   `json:"End_Time"`
	SlotDuration int              `json:"Slot_Duration"`
	IsActive     bool             `json:"Is_Active"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func newTemplateResponse(t *schedule.Template) TemplateResponse {
	return TemplateResponse{
		ID:           t.ID,
		DoctorID:     t.ProviderID,
		DayOfTheWeek: t.Weekday,
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		SlotDuration: t.SlotDurationMinutes,
		IsActive:     t.IsActive,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

type SlotRequest struct {
	DoctorID    string          `json:"Doctor_id"`
	SlotDate    *schedule.Date  `json:"Slot_Date"`
	SlotTime    *schedule.Clock `json:"Slot_Time"`
	IsAvailable *bool           `json:"Is_Available"`
	IsBlocked   *bool           `json:"Is_Blocked"`
}

type SlotResponse struct {
	ID          uuid.UUID      `json:"id"`
	DoctorID    uuid.UUID      `json:"Doctor_id"`
	SlotDate    schedule.Date  `json:"Slot_Date"`
	SlotTime    schedule.Clock `json:"Slot_Time"`
	IsAvailable bool           `json:"Is_Available"`
	IsBlocked   bool           `json:"Is_Blocked"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func newSlotResponse(s *schedule.Slot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		DoctorID:    s.ProviderID,
		SlotDate:    s.Date,
		SlotTime:    s.Time,
		IsAvailable: s.IsAvailable,
		IsBlocked:   s.IsBlocked,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func newSlotList(slots []schedule.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, newSlotResponse(&slots[i]))
	}
	return out
}

type GenerateSlotsRequest struct {
	DoctorID  string        `json:"Doctor_id"`
	StartDate schedule.Date `json:"startDate"`
	EndDate   schedule.Date `json:"endDate"`
}

type CreateAppointmentRequest struct {
	SlotID        string `json:"slot_id"`
	PatientID     string `json:"patient_id,omitempty"`
	Type          string `json:"type,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Notes         string `json:"notes,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UpdatePaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

type AppointmentResponse struct {
	ID            uuid.UUID      `json:"id"`
	PatientID     uuid.UUID      `json:"patient_id"`
	ProviderID    uuid.UUID      `json:"provider_id"`
	SlotID        *uuid.UUID     `json:"slot_id"`
	Date          schedule.Date  `json:"date"`
	Time          schedule.Clock `json:"time"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	PaymentStatus string         `json:"payment_status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		ProviderID:    a.ProviderID,
		SlotID:        a.SlotID,
		Date:          a.Date,
		Time:          a.Time,
		Type:          string(a.Type),
		Status:        string(a.Status),
		Reason:        a.Reason,
		Notes:         a.Notes,
		PaymentStatus: string(a.PaymentStatus),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
