package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"

	"github.com/hackgods/doctor-slot-booking/internal/config"
	"github.com/hackgods/doctor-slot-booking/internal/db"
)

// SimConfig is read from SIM_* variables.
type SimConfig struct {
	APIBaseURL   string        `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	Duration     time.Duration `default:"30s"`
	Workers      int           `default:"10"`
	BookingRatio float64       `split_words:"true" default:"0.5"`
	CancelRatio  float64       `split_words:"true" default:"0.2"`
	ReadRatio    float64       `split_words:"true" default:"0.3"`
	HotSlotRush  int           `split_words:"true" default:"50"` // concurrent bookings against one slot before the mixed run
	PatientLimit int           `split_words:"true" default:"4000"`
	SlotLimit    int           `split_words:"true" default:"2400"`
	TicketPrice  int64         `split_words:"true" default:"5000"`
	PlatformFee  int64         `split_words:"true" default:"250"`
}

type openSlot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	MaxPatients int
}

type DataPool struct {
	Patients []uuid.UUID
	Slots    []openSlot

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	codes     sync.Map // error code -> *int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int, code string) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}
	if code != "" {
		n, _ := om.codes.LoadOrStore(code, new(int64))
		atomic.AddInt64(n.(*int64), 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return sum / time.Duration(len(latencies)),
		om.percentile(latencies, 50),
		om.percentile(latencies, 95),
		latencies[len(latencies)-1]
}

type Metrics struct {
	HotSlot       OperationMetrics
	Booking       OperationMetrics
	Cancel        OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Availability  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics

	hotSlot     openSlot
	hotSlotSeen int
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f cancel=%.2f read=%.2f rush=%d",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.ReadRatio, cfg.HotSlotRush)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d patients, %d open slots", len(dataPool.Patients), len(dataPool.Slots))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	if cfg.HotSlotRush > 0 {
		sim.RushHotSlot(context.Background())
		sim.hotSlotSeen = sim.bookedCount(ctx, pgPool, sim.hotSlot.ID)
	}
	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	var cfg SimConfig
	if err := envconfig.Process("sim", &cfg); err != nil {
		return cfg, err
	}
	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `
		SELECT id, doctor_id, max_patients FROM slots
		WHERE NOT is_blocked AND booked_count < max_patients AND slot_date >= to_char(now(), 'YYYY-MM-DD')
		ORDER BY slot_date, start_time
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	for rows.Next() {
		var s openSlot
		if err := rows.Scan(&s.ID, &s.DoctorID, &s.MaxPatients); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, s)
	}
	rows.Close()

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots loaded, run cmd/seed first")
	}
	return dataPool, nil
}

// RushHotSlot fires HotSlotRush bookings at one slot at the same instant.
// Exactly MaxPatients of them may succeed.
func (s *Simulator) RushHotSlot(ctx context.Context) {
	s.hotSlot = s.pool.Slots[0]
	s.pool.Slots = s.pool.Slots[1:]

	log.Printf("rushing slot %s (capacity %d) with %d concurrent bookings",
		s.hotSlot.ID, s.hotSlot.MaxPatients, s.config.HotSlotRush)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < s.config.HotSlotRush; i++ {
		patientID := s.pool.Patients[i%len(s.pool.Patients)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.book(ctx, s.hotSlot, patientID, &s.metrics.HotSlot)
		}()
	}
	close(start)
	wg.Wait()
}

func (s *Simulator) bookedCount(ctx context.Context, pool *pgxpool.Pool, slotID uuid.UUID) int {
	var n int
	if err := pool.QueryRow(ctx, `SELECT booked_count FROM slots WHERE id = $1`, slotID).Scan(&n); err != nil {
		log.Printf("read hot slot: %v", err)
		return -1
	}
	return n
}

func (s *Simulator) Run() {
	if len(s.pool.Slots) == 0 {
		log.Println("no slots left for the mixed run")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
			patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
			s.book(ctx, sl, patientID, &s.metrics.Booking)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doListByPatient(ctx, rng)
			case 2:
				s.doAvailability(ctx, rng)
			}
		}
	}
}

func (s *Simulator) book(ctx context.Context, sl openSlot, patientID uuid.UUID, om *OperationMetrics) {
	body, _ := json.Marshal(map[string]any{
		"doctor_id":      sl.DoctorID.String(),
		"patient_id":     patientID.String(),
		"slot_id":        sl.ID.String(),
		"payment_method": "wallet",
		"ticket_price":   s.config.TicketPrice,
		"platform_fee":   s.config.PlatformFee,
		"total_amount":   s.config.TicketPrice + s.config.PlatformFee,
	})

	status, respBody, latency := s.call(ctx, http.MethodPost, "/appointments", body)
	code := errorCode(status, respBody)
	if status == http.StatusCreated {
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(respBody, &appt) == nil && appt.ID != uuid.Nil {
			s.pool.AddAppointment(appt.ID)
		}
	}
	om.Record(latency, status, code)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	status, body, latency := s.call(ctx, http.MethodPost, "/appointments/"+apptID.String()+"/cancel",
		[]byte(`{"reason":"simulated cancellation"}`))
	s.metrics.Cancel.Record(latency, status, errorCode(status, body))
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	status, body, latency := s.call(ctx, http.MethodGet, "/appointments/"+apptID.String(), nil)
	s.metrics.ReadByID.Record(latency, status, errorCode(status, body))
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	status, body, latency := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/appointments?patient_id=%s&limit=20&offset=0", patientID), nil)
	s.metrics.ListByPatient.Record(latency, status, errorCode(status, body))
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	status, body, latency := s.call(ctx, http.MethodGet, "/slots/"+sl.ID.String()+"/availability", nil)
	s.metrics.Availability.Record(latency, status, errorCode(status, body))
}

// call returns status 0 when the request never got a response.
func (s *Simulator) call(ctx context.Context, method, path string, body []byte) (int, []byte, time.Duration) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, 0
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, latency
}

func errorCode(status int, body []byte) string {
	if status >= 200 && status < 300 {
		return ""
	}
	if status == 0 {
		return "transport_error"
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == "" {
		return fmt.Sprintf("http_%d", status)
	}
	return e.Error
}

func (s *Simulator) PrintReport() {
	rule := strings.Repeat("=", 80)
	fmt.Println("\n" + rule)
	fmt.Println("SIMULATION REPORT")
	fmt.Println(rule)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	if s.config.HotSlotRush > 0 {
		hot := &s.metrics.HotSlot
		success := atomic.LoadInt64(&hot.Success)
		verdict := "OK"
		if success > int64(s.hotSlot.MaxPatients) {
			verdict = "OVERBOOKED"
		}
		fmt.Printf("Hot slot %s: capacity=%d accepted=%d booked_count=%d -> %s\n",
			s.hotSlot.ID, s.hotSlot.MaxPatients, success, s.hotSlotSeen, verdict)
		printOperationReport("Hot slot rush", hot)
	}

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Slot availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}

	var codes []string
	om.codes.Range(func(k, v any) bool {
		codes = append(codes, fmt.Sprintf("%s=%d", k, atomic.LoadInt64(v.(*int64))))
		return true
	})
	if len(codes) > 0 {
		sort.Strings(codes)
		fmt.Printf("  Codes: %s\n", strings.Join(codes, " "))
	}

	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}
