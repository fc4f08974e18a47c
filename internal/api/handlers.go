package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		patientID, err := optionalUUID(req.PatientID, "patient_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", err.Error())
			return
		}

		appt, err := svc.Book(r.Context(), actor, slotID, patientID, appointment.BookingFields{
			Type:          appointment.Type(req.Type),
			Reason:        req.Reason,
			Notes:         req.Notes,
			PaymentStatus: appointment.PaymentStatus(req.PaymentStatus),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		var f appointment.Filter
		var err error
		if f.ProviderID, err = optionalUUID(q.Get("provider_id"), "provider_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", err.Error())
			return
		}
		if f.PatientID, err = optionalUUID(q.Get("patient_id"), "patient_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", err.Error())
			return
		}
		if s := q.Get("status"); s != "" {
			if f.Status, err = appointment.ParseStatus(s); err != nil {
				writeServiceError(w, r, err)
				return
			}
		}
		if f.Limit, err = optionalInt(q.Get("limit"), "limit"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
			return
		}
		if f.Offset, err = optionalInt(q.Get("offset"), "offset"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offset", err.Error())
			return
		}

		appointments, err := svc.ListAppointments(r.Context(), actor, f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appointments))
		for i := range appointments {
			out = append(out, newAppointmentResponse(&appointments[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse[AppointmentResponse]{Data: out, Count: len(out)})
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), actor, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		to, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		appt, err := svc.Transition(r.Context(), actor, id, to)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.Release(r.Context(), actor, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func updatePaymentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req UpdatePaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.SetPaymentStatus(r.Context(), actor, id, appointment.PaymentStatus(req.PaymentStatus))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}
