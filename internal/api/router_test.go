package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/memstore"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

const testSecret = "test-secret"

type testServer struct {
	handler http.Handler
	store   *memstore.Store
}

func newTestServer(t *testing.T, rps float64, burst int) *testServer {
	t.Helper()

	now := func() time.Time { return time.Date(2030, time.January, 1, 8, 0, 0, 0, time.UTC) }
	store := memstore.New()
	log := zerolog.Nop()
	cfg := config.Config{Location: time.UTC, NoShowGrace: 15 * time.Minute}

	handler := NewRouter(RouterConfig{
		Templates:      schedule.NewTemplateStore(store, log),
		Slots:          schedule.NewSlotAdmin(store, log),
		Generator:      schedule.NewGenerator(store, store, time.UTC, 90, log).WithClock(now),
		Availability:   schedule.NewAvailability(store, time.UTC, 90).WithClock(now),
		Appointments:   appointment.NewService(store, nil, cfg, log).WithClock(now),
		Verifier:       auth.NewTokenVerifier(testSecret),
		Logger:         log,
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
		Env:            "test",
		Version:        "test",
	})
	return &testServer{handler: handler, store: store}
}

func token(t *testing.T, a auth.Actor) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, a, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, actor *auth.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *actor))
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0, 0)

	rec := s.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, depDisabled, ready.Dependencies["postgres"])
	assert.Equal(t, depDisabled, ready.Dependencies["redis"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, 0, 0)

	rec := s.do(t, http.MethodGet, "/appointments", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decode[ErrorResponse](t, rec).Error)

	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t, 0, 0)
	provider := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}
	p1 := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	p2 := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}

	rec := s.do(t, http.MethodPost, "/doctor-schedule", &provider, `{
		"Doctor_id": "`+provider.ID.String()+`",
		"Day_Of_The_Week": "Monday",
		"Start_Time": "09:00",
		"End_Time": "10:00",
		"Slot_Duration": 30
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tmpl := decode[TemplateResponse](t, rec)
	assert.True(t, tmpl.IsActive)
	assert.Equal(t, provider.ID, tmpl.DoctorID)

	rec = s.do(t, http.MethodPost, "/schedule/generate-slots", &provider, map[string]string{
		"Doctor_id": provider.ID.String(),
		"startDate": "2030-01-07",
		"endDate":   "2030-01-07",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[schedule.GenerationResult](t, rec).SlotsGenerated)

	availPath := "/appointment-slots/available?Doctor_id=" + provider.ID.String() + "&date=2030-01-07"
	rec = s.do(t, http.MethodGet, availPath, &p1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[ListResponse[SlotResponse]](t, rec)
	require.Equal(t, 2, avail.Count)
	assert.Equal(t, "09:00", avail.Data[0].SlotTime.String())
	slotID := avail.Data[0].ID

	rec = s.do(t, http.MethodPost, "/appointments", &p1, CreateAppointmentRequest{SlotID: slotID.String(), Reason: "checkup"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "Scheduled", appt.Status)
	assert.Equal(t, p1.ID, appt.PatientID)

	rec = s.do(t, http.MethodPost, "/appointments", &p2, CreateAppointmentRequest{SlotID: slotID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, availPath, &p2, nil)
	assert.Equal(t, 1, decode[ListResponse[SlotResponse]](t, rec).Count)

	rec = s.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", &p1, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Cancelled", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, availPath, &p2, nil)
	assert.Equal(t, 2, decode[ListResponse[SlotResponse]](t, rec).Count)

	rec = s.do(t, http.MethodPatch, "/appointments/"+appt.ID.String()+"/status", &provider, UpdateStatusRequest{Status: "Confirmed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/appointments", &p1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ListResponse[AppointmentResponse]](t, rec).Count)
}

func TestTemplateValidationAndOwnership(t *testing.T) {
	s := newTestServer(t, 0, 0)
	provider := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}
	other := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}

	rec := s.do(t, http.MethodPost, "/doctor-schedule", &provider, `{"Day_Of_The_Week":1,"Start_Time":"11:00","End_Time":"10:00","Slot_Duration":30}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_template", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/doctor-schedule", &provider, `{"Day_Of_The_Week":"Monday","Start_Time":"9am","End_Time":"10:00","Slot_Duration":30}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/doctor-schedule", &provider, `{"Day_Of_The_Week":"Monday","Start_Time":"09:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_fields", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/doctor-schedule", &provider, `{"Day_Of_The_Week":"Friday","Start_Time":"09:00","End_Time":"12:00","Slot_Duration":60}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	tmpl := decode[TemplateResponse](t, rec)

	path := "/doctor-schedule/" + tmpl.ID.String()
	rec = s.do(t, http.MethodPatch, path, &other, `{"Is_Active":false}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, path, &provider, `{"Is_Active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[TemplateResponse](t, rec).IsActive)

	rec = s.do(t, http.MethodGet, "/doctor-schedule/"+uuid.NewString(), &provider, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/doctor-schedule/not-a-uuid", &provider, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, path, &provider, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSlotEndpoints(t *testing.T) {
	s := newTestServer(t, 0, 0)
	provider := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}
	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}

	rec := s.do(t, http.MethodPost, "/appointment-slots", &provider, `{"Slot_Date":"2030-01-07","Slot_Time":"14:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	slot := decode[SlotResponse](t, rec)
	assert.True(t, slot.IsAvailable)

	rec = s.do(t, http.MethodPost, "/appointment-slots", &provider, `{"Slot_Date":"2030-01-07","Slot_Time":"14:00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointment-slots", &provider, `{"Slot_Date":"2030-01-07","Slot_Time":"15:00","Is_Available":false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/appointment-slots/" + slot.ID.String()
	rec = s.do(t, http.MethodPatch, path, &provider, `{"Is_Available":false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, path, &provider, `{"Is_Blocked":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[SlotResponse](t, rec).IsBlocked)

	rec = s.do(t, http.MethodPost, "/appointments", &patient, CreateAppointmentRequest{SlotID: slot.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointment-slots?Doctor_id="+provider.ID.String(), &patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ListResponse[SlotResponse]](t, rec).Count)

	rec = s.do(t, http.MethodGet, "/appointment-slots?Doctor_id="+provider.ID.String()+"&available=true", &patient, nil)
	assert.Equal(t, 0, decode[ListResponse[SlotResponse]](t, rec).Count)

	rec = s.do(t, http.MethodDelete, path, &patient, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, path, &provider, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, path, &provider, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateRangeTooLarge(t *testing.T) {
	s := newTestServer(t, 0, 0)
	provider := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}

	rec := s.do(t, http.MethodPost, "/schedule/generate-slots", &provider, map[string]string{
		"startDate": "2030-01-01",
		"endDate":   "2030-12-31",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "range_too_large", decode[ErrorResponse](t, rec).Error)
}

func TestPaymentRequiresAdmin(t *testing.T) {
	s := newTestServer(t, 0, 0)
	admin := auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}
	provider := auth.Actor{ID: uuid.New(), Role: auth.RoleProvider}
	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}

	rec := s.do(t, http.MethodPost, "/appointment-slots", &provider, `{"Slot_Date":"2030-01-07","Slot_Time":"14:00"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	slot := decode[SlotResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/appointments", &patient, CreateAppointmentRequest{SlotID: slot.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code)
	appt := decode[AppointmentResponse](t, rec)

	path := "/appointments/" + appt.ID.String() + "/payment"
	rec = s.do(t, http.MethodPatch, path, &patient, UpdatePaymentRequest{PaymentStatus: "paid"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, path, &admin, UpdatePaymentRequest{PaymentStatus: "paid"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decode[AppointmentResponse](t, rec).PaymentStatus)

	rec = s.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), &admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 0.001, 1)
	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}

	rec := s.do(t, http.MethodGet, "/appointments", &patient, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments", &patient, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// buckets are per actor
	other := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	rec = s.do(t, http.MethodGet, "/appointments", &other, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays outside the limiter
	rec = s.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
