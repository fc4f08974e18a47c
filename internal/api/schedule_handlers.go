package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

func createTemplateHandler(store *schedule.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var req TemplateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		providerID, err := optionalUUID(req.DoctorID, "Doctor_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		if req.DayOfTheWeek == nil || req.StartTime == nil || req.EndTime == nil || req.SlotDuration == nil {
			writeError(w, http.StatusBadRequest, "missing_fields", "Day_Of_The_Week, Start_Time, End_Time and Slot_Duration are required")
			return
		}

		t := &schedule.Template{
			ProviderID:          providerID,
			Weekday:             *req.DayOfTheWeek,
			StartTime:           *req.StartTime,
			EndTime:             *req.EndTime,
			SlotDurationMinutes: *req.SlotDuration,
			IsActive:            true,
		}
		if req.IsActive != nil {
			t.IsActive = *req.IsActive
		}

		if err := store.Create(r.Context(), actor, t); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newTemplateResponse(t))
	}
}

func listTemplatesHandler(store *schedule.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		providerID, err := optionalUUID(r.URL.Query().Get("Doctor_id"), "Doctor_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}

		templates, err := store.List(r.Context(), actor, providerID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]TemplateResponse, 0, len(templates))
		for i := range templates {
			out = append(out, newTemplateResponse(&templates[i]))
		}
		writeJSON(w, http.StatusOK, ListResponse[TemplateResponse]{Data: out, Count: len(out)})
	}
}

func getTemplateHandler(store *schedule.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_template_id")
		if !ok {
			return
		}

		t, err := store.Get(r.Context(), actor, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTemplateResponse(t))
	}
}

func updateTemplateHandler(store *schedule.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_template_id")
		if !ok {
			return
		}

		var req TemplateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.DoctorID != "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "Doctor_id cannot be changed")
			return
		}

		t, err := store.Update(r.Context(), actor, id, schedule.TemplatePatch{
			Weekday:             req.DayOfTheWeek,
			StartTime:           req.StartTime,
			EndTime:             req.EndTime,
			SlotDurationMinutes: req.SlotDuration,
			IsActive:            req.IsActive,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTemplateResponse(t))
	}
}

func deleteTemplateHandler(store *schedule.TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_template_id")
		if !ok {
			return
		}

		if err := store.Delete(r.Context(), actor, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createSlotHandler(admin *schedule.SlotAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var req SlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		providerID, err := optionalUUID(req.DoctorID, "Doctor_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		if req.SlotDate == nil || req.SlotTime == nil {
			writeError(w, http.StatusBadRequest, "missing_fields", "Slot_Date and Slot_Time are required")
			return
		}

		slot := &schedule.Slot{
			ProviderID:  providerID,
			Date:        *req.SlotDate,
			Time:        *req.SlotTime,
			IsAvailable: true,
		}
		if req.IsAvailable != nil {
			slot.IsAvailable = *req.IsAvailable
		}
		if req.IsBlocked != nil {
			slot.IsBlocked = *req.IsBlocked
		}

		if err := admin.Create(r.Context(), actor, slot); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSlotResponse(slot))
	}
}

func listSlotsHandler(admin *schedule.SlotAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var f schedule.SlotFilter
		var err error
		if f.ProviderID, err = optionalUUID(q.Get("Doctor_id"), "Doctor_id"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		if f.From, err = optionalDate(q.Get("from"), "from"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		if f.To, err = optionalDate(q.Get("to"), "to"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		f.OnlyBookable = q.Get("available") == "true"

		slots, err := admin.List(r.Context(), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ListResponse[SlotResponse]{Data: newSlotList(slots), Count: len(slots)})
	}
}

// availableSlotsHandler serves ?Doctor_id=&date= or ?Doctor_id=&from=&to=.
func availableSlotsHandler(avail *schedule.Availability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		providerID, err := optionalUUID(q.Get("Doctor_id"), "Doctor_id")
		if err != nil || providerID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "Doctor_id must be a valid UUID")
			return
		}

		from, err := optionalDate(q.Get("from"), "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		to, err := optionalDate(q.Get("to"), "to")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		if date := q.Get("date"); date != "" {
			d, err := schedule.ParseDate(date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
				return
			}
			from, to = d, d
		}

		slots, err := avail.FindAvailableRange(r.Context(), providerID, from, to)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ListResponse[SlotResponse]{Data: newSlotList(slots), Count: len(slots)})
	}
}

func getSlotHandler(admin *schedule.SlotAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "invalid_slot_id")
		if !ok {
			return
		}

		slot, err := admin.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSlotResponse(slot))
	}
}

// updateSlotHandler only toggles the block; availability belongs to bookings.
func updateSlotHandler(admin *schedule.SlotAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_slot_id")
		if !ok {
			return
		}

		var req SlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.IsAvailable != nil || req.SlotDate != nil || req.SlotTime != nil || req.DoctorID != "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "only Is_Blocked can be changed on an existing slot")
			return
		}
		if req.IsBlocked == nil {
			writeError(w, http.StatusBadRequest, "missing_fields", "Is_Blocked is required")
			return
		}

		slot, err := admin.SetBlocked(r.Context(), actor, id, *req.IsBlocked)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSlotResponse(slot))
	}
}

func deleteSlotHandler(admin *schedule.SlotAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := urlID(w, r, "invalid_slot_id")
		if !ok {
			return
		}

		if err := admin.Delete(r.Context(), actor, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func generateSlotsHandler(gen *schedule.Generator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		var req GenerateSlotsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		providerID, err := optionalUUID(req.DoctorID, "Doctor_id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}
		if providerID == uuid.Nil && actor.Role == auth.RoleProvider {
			providerID = actor.ID
		}

		res, err := gen.Generate(r.Context(), actor, providerID, req.StartDate, req.EndDate)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
