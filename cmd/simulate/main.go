package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/campus-clinic-scheduling/internal/config"
	"github.com/hackgods/campus-clinic-scheduling/internal/db"
)

// clinic hours, 30 minute slots
var timeSlots = []string{
	"08:00", "08:30", "09:00", "09:30", "10:00", "10:30",
	"11:00", "11:30", "12:00", "12:30", "13:00", "13:30",
	"14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00",
}

var appointmentTypes = []string{
	"general-checkup", "illness", "injury", "follow-up", "mental-health", "vaccination", "screening",
}

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	RescheduleRatio float64
	ReadRatio       float64
	AutoAssignRatio float64
	Days            int
	PatientLimit    int
	PostgresDSN     string
}

type patient struct {
	ID    uuid.UUID
	Name  string
	Email string
}

type DataPool struct {
	Patients     []patient
	Nurses       []uuid.UUID
	Dates        []string
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
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
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	BookAuto      OperationMetrics
	BookExplicit  OperationMetrics
	Reschedule    OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Available     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f reschedule=%.2f read=%.2f auto=%.2f days=%d",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.RescheduleRatio, cfg.ReadRatio, cfg.AutoAssignRatio, cfg.Days)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolConfig{AppName: "clinic-simulate", MaxConns: 4})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d nurses, %d dates x %d slots",
		len(dataPool.Patients), len(dataPool.Nurses), len(dataPool.Dates), len(timeSlots))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()

	auditCtx, auditCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer auditCancel()

	doubles, err := auditDoubleBookings(auditCtx, pgPool)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}
	printAudit(doubles)
	if len(doubles) > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.4),
		AutoAssignRatio: getFloat("SIM_AUTO_ASSIGN_RATIO", 0.7),
		Days:            getInt("SIM_DAYS", 3),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 4000),
		PostgresDSN:     baseCfg.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.RescheduleRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.RescheduleRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id, name, coalesce(email, '') FROM users
		WHERE role IN ('student', 'staff')
		LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var p patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			rows.Close()
			return nil, err
		}
		if p.Email == "" {
			p.Email = gofakeit.Email()
		}
		dataPool.Patients = append(dataPool.Patients, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	rows, err = pool.Query(ctx, `SELECT id FROM users WHERE role = 'nurse'`)
	if err != nil {
		return nil, fmt.Errorf("load nurses: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Nurses = append(dataPool.Nurses, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load nurses: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Nurses) == 0 {
		return nil, fmt.Errorf("no nurses loaded")
	}

	// start tomorrow so no booking lands in the past
	day := time.Now().AddDate(0, 0, 1)
	for i := 0; i < cfg.Days; i++ {
		dataPool.Dates = append(dataPool.Dates, day.AddDate(0, 0, i).Format("2006-01-02"))
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
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

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.RescheduleRatio:
				s.doReschedule(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByPatient(ctx, rng)
				case 2:
					s.doAvailable(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) randomSlot(rng *rand.Rand) (string, string) {
	return s.pool.Dates[rng.Intn(len(s.pool.Dates))], timeSlots[rng.Intn(len(timeSlots))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date, at := s.randomSlot(rng)

	auto := rng.Float64() < s.config.AutoAssignRatio
	nurseID := "auto"
	if !auto {
		nurseID = s.pool.Nurses[rng.Intn(len(s.pool.Nurses))].String()
	}

	priority := "normal"
	if rng.Intn(10) == 0 {
		priority = "high"
	}

	reqBody := map[string]any{
		"date":         date,
		"time":         at,
		"nurseId":      nurseID,
		"patientId":    p.ID.String(),
		"patientName":  p.Name,
		"patientEmail": p.Email,
		"type":         appointmentTypes[rng.Intn(len(appointmentTypes))],
		"priority":     priority,
		"symptoms":     gofakeit.Sentence(6),
	}

	start := time.Now()
	resp, err := s.send(ctx, http.MethodPost, "/appointments", reqBody)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var apptResp struct {
				ID uuid.UUID `json:"id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 && json.Unmarshal(bodyBytes, &apptResp) == nil && apptResp.ID != uuid.Nil {
				s.pool.AddAppointment(apptResp.ID)
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	if auto {
		s.metrics.BookAuto.Record(latency, success, conflict)
	} else {
		s.metrics.BookExplicit.Record(latency, success, conflict)
	}
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	date, at := s.randomSlot(rng)
	reqBody := map[string]any{"date": date, "time": at}

	start := time.Now()
	resp, err := s.send(ctx, http.MethodPatch, "/appointments/"+apptID.String(), reqBody)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Reschedule.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	s.timedGet(ctx, &s.metrics.ReadByID, "/appointments/"+apptID.String())
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.timedGet(ctx, &s.metrics.ListByPatient,
		fmt.Sprintf("/appointments?patientId=%s&limit=20&offset=0", p.ID))
}

func (s *Simulator) doAvailable(ctx context.Context, rng *rand.Rand) {
	date, at := s.randomSlot(rng)
	s.timedGet(ctx, &s.metrics.Available, fmt.Sprintf("/nurses/available?date=%s&time=%s", date, at))
}

func (s *Simulator) timedGet(ctx context.Context, om *OperationMetrics, path string) {
	start := time.Now()
	resp, err := s.send(ctx, http.MethodGet, path, nil)
	latency := time.Since(start)

	success := false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	om.Record(latency, success, false)
}

func (s *Simulator) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.client.Do(req)
}

type doubleBooking struct {
	NurseID uuid.UUID
	Date    string
	Time    string
	Count   int
}

// auditDoubleBookings lists every nurse slot held by more than one live appointment.
func auditDoubleBookings(ctx context.Context, pool *pgxpool.Pool) ([]doubleBooking, error) {
	rows, err := pool.Query(ctx, `
		SELECT nurse_id, to_char(appointment_date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), count(*)
		FROM appointments
		WHERE status <> 'cancelled'
		GROUP BY 1, 2, 3
		HAVING count(*) > 1
		ORDER BY 2, 3
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []doubleBooking
	for rows.Next() {
		var d doubleBooking
		if err := rows.Scan(&d.NurseID, &d.Date, &d.Time, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Booked: %d appointments\n", len(s.pool.appointments))
	fmt.Println()

	printOperationReport("Book (auto-assign)", &s.metrics.BookAuto)
	printOperationReport("Book (explicit nurse)", &s.metrics.BookExplicit)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Available Nurses", &s.metrics.Available)
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

func printAudit(doubles []doubleBooking) {
	fmt.Println(repeat("=", 80))
	fmt.Println("DOUBLE-BOOKING AUDIT")
	fmt.Println(repeat("=", 80))
	if len(doubles) == 0 {
		fmt.Println("no nurse holds more than one live appointment per slot")
		return
	}
	for _, d := range doubles {
		fmt.Printf("  nurse=%s date=%s time=%s appointments=%d\n", d.NurseID, d.Date, d.Time, d.Count)
	}
	fmt.Printf("%d double-booked slots\n", len(doubles))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
