package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ConfirmRatio float64
	ReadRatio    float64
	Patients     int
	Days         int
	JWTSecret    string
}

type slotRef struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"Doctor_id"`
}

type apptRef struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	SlotID     *uuid.UUID `json:"slot_id"`
	Status     string     `json:"status"`
}

// DataPool holds what the workers pick from. Slots are fixed at start;
// appointments grow as bookings succeed.
type DataPool struct {
	Patients []uuid.UUID
	Slots    []slotRef

	mu           sync.RWMutex
	appointments []apptRef
}

func (dp *DataPool) AddAppointment(a apptRef) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (apptRef, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return apptRef{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min95(len(latencies))]
	return avg, min, max, p50, p95
}

func min95(n int) int {
	i := n * 95 / 100
	if i >= n {
		i = n - 1
	}
	return i
}

type Metrics struct {
	Booking      OperationMetrics
	Cancel       OperationMetrics
	Confirm      OperationMetrics
	ReadByID     OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger

	adminActor auth.Actor
	tokenMu    sync.Mutex
	tokens     map[auth.Actor]string
}

func main() {
	var cfg SimConfig

	cmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Drive concurrent bookings against a running api-server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := config.LoadWith(map[string]any{"STORE": config.StoreMemory})
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				cfg.JWTSecret = base.JWTSecret
			}
			if err := normalize(&cfg); err != nil {
				return err
			}

			sim := &Simulator{
				config: cfg,
				client: &http.Client{Timeout: 10 * time.Second},
				logger: logging.New(base.Env, base.LogLevel),
				tokens: make(map[auth.Actor]string),

				adminActor: auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin},
			}
			return sim.Main(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&cfg.APIBaseURL, "url", "http://localhost:8080", "api-server base URL")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "How long to run")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 10, "Concurrent workers")
	cmd.Flags().Float64Var(&cfg.BookingRatio, "booking", 0.5, "Share of booking operations")
	cmd.Flags().Float64Var(&cfg.CancelRatio, "cancel", 0.1, "Share of cancel operations")
	cmd.Flags().Float64Var(&cfg.ConfirmRatio, "confirm", 0.1, "Share of confirm operations")
	cmd.Flags().Float64Var(&cfg.ReadRatio, "read", 0.3, "Share of read operations")
	cmd.Flags().IntVar(&cfg.Patients, "patients", 200, "Distinct simulated patients")
	cmd.Flags().IntVar(&cfg.Days, "days", 14, "Days ahead to pick slots from")
	cmd.Flags().StringVar(&cfg.JWTSecret, "jwt-secret", "", "Token signing secret (default: JWT_SECRET)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func normalize(cfg *SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("--workers must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("--patients must be > 0")
	}
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total <= 0 {
		return fmt.Errorf("operation ratios must add up to more than zero")
	}
	cfg.BookingRatio /= total
	cfg.CancelRatio /= total
	cfg.ConfirmRatio /= total
	cfg.ReadRatio /= total
	return nil
}

func (s *Simulator) Main(ctx context.Context) error {
	s.logger.Info().
		Dur("duration", s.config.Duration).
		Int("workers", s.config.Workers).
		Float64("booking", s.config.BookingRatio).
		Float64("cancel", s.config.CancelRatio).
		Float64("confirm", s.config.ConfirmRatio).
		Float64("read", s.config.ReadRatio).
		Msg("simulator starting")

	pool, err := s.loadDataPool(ctx)
	if err != nil {
		return fmt.Errorf("load data pool: %w", err)
	}
	s.pool = pool
	s.logger.Info().Int("patients", len(pool.Patients)).Int("slots", len(pool.Slots)).Msg("data pool loaded")

	s.Run(ctx)
	s.PrintReport()

	return s.verifyOneLivePerSlot(ctx)
}

func (s *Simulator) token(a auth.Actor) string {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if tok, ok := s.tokens[a]; ok {
		return tok
	}
	tok, err := auth.IssueToken(s.config.JWTSecret, a, 2*s.config.Duration+time.Hour)
	if err != nil {
		s.logger.Fatal().Err(err).Msg("issue token")
	}
	s.tokens[a] = tok
	return tok
}

func (s *Simulator) do(ctx context.Context, actor auth.Actor, method, path string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(actor))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dp := &DataPool{Patients: make([]uuid.UUID, s.config.Patients)}
	for i := range dp.Patients {
		dp.Patients[i] = uuid.New()
	}

	from := time.Now().Format("2006-01-02")
	to := time.Now().AddDate(0, 0, s.config.Days-1).Format("2006-01-02")

	var resp struct {
		Data []slotRef `json:"data"`
	}
	status, err := s.do(ctx, s.adminActor, http.MethodGet,
		fmt.Sprintf("/appointment-slots?available=true&from=%s&to=%s", from, to), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list slots: status %d", status)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no open slots between %s and %s, run seed first", from, to)
	}
	dp.Slots = resp.Data
	return dp, nil
}

func (s *Simulator) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doReadByID(ctx, rng)
			} else {
				s.doAvailability(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	patient := auth.Actor{ID: s.pool.Patients[rng.Intn(len(s.pool.Patients))], Role: auth.RolePatient}

	start := time.Now()
	var appt apptRef
	status, err := s.do(ctx, patient, http.MethodPost, "/appointments",
		map[string]string{"slot_id": slot.ID.String(), "reason": "simulated"}, &appt)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated {
		s.pool.AddAppointment(appt)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	patient := auth.Actor{ID: appt.PatientID, Role: auth.RolePatient}

	start := time.Now()
	status, err := s.do(ctx, patient, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Cancel.Record(time.Since(start), status, err)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	provider := auth.Actor{ID: appt.ProviderID, Role: auth.RoleProvider}

	start := time.Now()
	status, err := s.do(ctx, provider, http.MethodPatch, "/appointments/"+appt.ID.String()+"/status",
		map[string]string{"status": "Confirmed"}, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Confirm.Record(time.Since(start), status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	patient := auth.Actor{ID: appt.PatientID, Role: auth.RolePatient}

	start := time.Now()
	status, err := s.do(ctx, patient, http.MethodGet, "/appointments/"+appt.ID.String(), nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.ReadByID.Record(time.Since(start), status, err)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	patient := auth.Actor{ID: s.pool.Patients[rng.Intn(len(s.pool.Patients))], Role: auth.RolePatient}

	start := time.Now()
	status, err := s.do(ctx, patient, http.MethodGet, fmt.Sprintf("/appointment-slots/available?Doctor_id=%s&from=%s&to=%s",
		slot.DoctorID, time.Now().Format("2006-01-02"), time.Now().AddDate(0, 0, 6).Format("2006-01-02")), nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Availability.Record(time.Since(start), status, err)
}

// verifyOneLivePerSlot pages through every appointment and fails if any slot
// ended up with more than one live booking.
func (s *Simulator) verifyOneLivePerSlot(ctx context.Context) error {
	const page = 100
	live := make(map[uuid.UUID]int)
	total := 0

	for offset := 0; ; offset += page {
		var resp struct {
			Data []apptRef `json:"data"`
		}
		status, err := s.do(ctx, s.adminActor, http.MethodGet,
			fmt.Sprintf("/appointments?limit=%d&offset=%d", page, offset), nil, &resp)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("verify: status %d", status)
		}
		for _, a := range resp.Data {
			total++
			if a.SlotID == nil {
				continue
			}
			switch a.Status {
			case "Scheduled", "Confirmed", "InProgress":
				live[*a.SlotID]++
			}
		}
		if len(resp.Data) < page {
			break
		}
	}

	var doubled []string
	for slotID, n := range live {
		if n > 1 {
			doubled = append(doubled, fmt.Sprintf("%s (%d)", slotID, n))
		}
	}
	if len(doubled) > 0 {
		return fmt.Errorf("double booked slots: %s", strings.Join(doubled, ", "))
	}

	s.logger.Info().Int("appointments", total).Int("live_slots", len(live)).Msg("no slot holds more than one live appointment")
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
