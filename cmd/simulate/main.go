package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotwise/booking-api/internal/config"
	"github.com/slotwise/booking-api/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	SlotLimit   int
	PostgresDSN string
}

// worker identity: a freshly registered patient and its bearer token
type account struct {
	Email string
	Token string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
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

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Book      OperationMetrics
	ListSlots OperationMetrics
}

type Simulator struct {
	config   SimConfig
	accounts []account
	slots    []uuid.UUID
	client   *http.Client
	metrics  Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d book_ratio=%.2f", cfg.Duration, cfg.Workers, cfg.BookRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := sim.prepareAccounts(ctx); err != nil {
		log.Fatalf("prepare accounts: %v", err)
	}
	if err := sim.loadSlots(ctx); err != nil {
		log.Fatalf("load slots: %v", err)
	}
	log.Printf("loaded: %d accounts, %d slots", len(sim.accounts), len(sim.slots))

	sim.Run()
	sim.PrintReport()

	if err := verifyExclusivity(context.Background(), pgPool); err != nil {
		log.Fatalf("EXCLUSIVITY VIOLATED: %v", err)
	}
	log.Println("exclusivity verified: no slot holds more than one booking")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getSimDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.8),
		SlotLimit:   getInt("SIM_SLOT_LIMIT", 50),
		PostgresDSN: baseCfg.PostgresDSN,
	}
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
	if cfg.BookRatio < 0 || cfg.BookRatio > 1 {
		return fmt.Errorf("SIM_BOOK_RATIO must be in [0, 1]")
	}
	return nil
}

// prepareAccounts registers one patient per worker through the public API
// and logs each in for a bearer token.
func (s *Simulator) prepareAccounts(ctx context.Context) error {
	for i := 0; i < s.config.Workers; i++ {
		email := fmt.Sprintf("sim-%s@example.com", uuid.NewString()[:8])

		regBody, _ := json.Marshal(map[string]string{
			"name":     fmt.Sprintf("Sim Worker %d", i),
			"email":    email,
			"password": "Simulate1!",
		})
		resp, err := s.post(ctx, "/api/register", "", regBody)
		if err != nil {
			return fmt.Errorf("register %s: %w", email, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("register %s: status %d", email, resp.StatusCode)
		}

		loginBody, _ := json.Marshal(map[string]string{
			"email":    email,
			"password": "Simulate1!",
		})
		resp, err = s.post(ctx, "/api/login", "", loginBody)
		if err != nil {
			return fmt.Errorf("login %s: %w", email, err)
		}
		var loginResp struct {
			Token string `json:"token"`
		}
		err = json.NewDecoder(resp.Body).Decode(&loginResp)
		resp.Body.Close()
		if err != nil || loginResp.Token == "" {
			return fmt.Errorf("login %s: no token (status %d)", email, resp.StatusCode)
		}

		s.accounts = append(s.accounts, account{Email: email, Token: loginResp.Token})
	}
	return nil
}

// loadSlots pulls the visible slot window from the API. A small slot set
// relative to worker count is what makes claims collide.
func (s *Simulator) loadSlots(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.config.APIBaseURL+"/api/slots", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var slots []struct {
		ID        uuid.UUID `json:"id"`
		Available bool      `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
		return err
	}

	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		s.slots = append(s.slots, slot.ID)
		if len(s.slots) >= s.config.SlotLimit {
			break
		}
	}

	if len(s.slots) == 0 {
		return fmt.Errorf("no available slots; run cmd/seed first")
	}
	return nil
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
	acct := s.accounts[workerID%len(s.accounts)]

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.BookRatio {
				s.doBook(ctx, rng, acct)
			} else {
				s.doListSlots(ctx)
			}
		}
	}
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand, acct account) {
	slotID := s.slots[rng.Intn(len(s.slots))]

	body, _ := json.Marshal(map[string]string{"slotId": slotID.String()})

	start := time.Now()
	resp, err := s.post(ctx, "/api/book", acct.Token, body)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Book.Record(latency, success, conflict)
}

func (s *Simulator) doListSlots(ctx context.Context) {
	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET", s.config.APIBaseURL+"/api/slots", nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ListSlots.Record(latency, success, false)
}

func (s *Simulator) post(ctx context.Context, path, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.client.Do(req)
}

// verifyExclusivity asserts the core invariant directly against the ledger.
func verifyExclusivity(ctx context.Context, pool *pgxpool.Pool) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := pool.Query(checkCtx, `
		SELECT slot_id, COUNT(*)
		FROM bookings
		GROUP BY slot_id
		HAVING COUNT(*) > 1
	`)
	if err != nil {
		return fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var violations []string
	for rows.Next() {
		var slotID uuid.UUID
		var n int
		if err := rows.Scan(&slotID, &n); err != nil {
			return err
		}
		violations = append(violations, fmt.Sprintf("slot %s has %d bookings", slotID, n))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(violations) > 0 {
		return fmt.Errorf("%s", strings.Join(violations, "; "))
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book", &s.metrics.Book)
	printOperationReport("List Slots", &s.metrics.ListSlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failures := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failures > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failures, float64(failures)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getSimDuration(key string, def time.Duration) time.Duration {
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
