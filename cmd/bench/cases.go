// README: Smoke and load cases: infra reachability, schema, auth, gates, rate limiting and throughput.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"staybook/internal/config"
	"staybook/migrations"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   config.BenchConfig
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	email string
	token string
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg config.BenchConfig) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
		email: fmt.Sprintf("bench-%d@example.com", time.Now().UnixNano()),
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusFail, Note: "db not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusFail, Note: "redis not configured"}
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			return Result{Status: statusPass}
		}},
		{Name: "Schema: embedded migration tables exist", Run: checkTables},
		{Name: "Schema: service categories seeded", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return Result{Status: statusFail, Note: "db not configured"}
			}
			var n int
			if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM service_categories`).Scan(&n); err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			if n < 8 {
				return Result{Status: statusFail, Note: fmt.Sprintf("categories=%d", n)}
			}
			return Result{Status: statusPass, Note: fmt.Sprintf("categories=%d", n)}
		}},

		httpCase("API: health", http.MethodGet, "/health", nil, false, http.StatusOK),
		httpCase("API: categories are public", http.MethodGet, "/api/categories", nil, false, http.StatusOK),

		{Name: "Auth: register client", Run: func(ctx context.Context, r *Runner) Result {
			return r.call(ctx, http.MethodPost, "/api/auth/register", map[string]any{
				"email": r.email, "password": "bench-password", "name": "Bench Client",
			}, false, nil, http.StatusCreated)
		}},
		{Name: "Auth: login", Run: func(ctx context.Context, r *Runner) Result {
			var resp struct {
				Token string `json:"token"`
			}
			res := r.call(ctx, http.MethodPost, "/api/auth/login", map[string]any{
				"email": r.email, "password": "bench-password",
			}, false, &resp, http.StatusOK)
			r.token = resp.Token
			return res
		}},
		{Name: "Auth: duplicate email -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.call(ctx, http.MethodPost, "/api/auth/register", map[string]any{
				"email": r.email, "password": "bench-password",
			}, false, nil, http.StatusConflict)
		}},
		httpCase("Auth: staff role self-registration -> 400", http.MethodPost, "/api/auth/register", map[string]any{
			"email": "bench-admin@example.com", "password": "bench-password", "role": "admin",
		}, false, http.StatusBadRequest),

		httpCase("Gate: no session -> 401", http.MethodGet, "/api/bookings", nil, false, http.StatusUnauthorized),
		httpCase("Gate: client on ledger -> 403", http.MethodGet, "/api/ledger", nil, true, http.StatusForbidden),
		httpCase("Orders: empty list is []", http.MethodGet, "/api/orders", nil, true, http.StatusOK),
		httpCase("Booking: unknown field -> 400", http.MethodPost, "/api/bookings", map[string]any{
			"property_id": "missing", "check_in": "2030-01-01", "check_out": "2030-01-03", "guests": 1, "discount": 99,
		}, true, http.StatusBadRequest),
		httpCase("Booking: unknown property", http.MethodPost, "/api/bookings", map[string]any{
			"property_id": "missing", "check_in": "2030-01-01", "check_out": "2030-01-03", "guests": 1,
		}, true, http.StatusNotFound, http.StatusBadRequest),

		{Name: "Concurrency: login limiter trips", Run: loginBurst},
		{Name: "Perf: categories throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, "/api/categories")
		}},
	}
}

func httpCase(name, method, path string, body any, authed bool, ok ...int) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		return r.call(ctx, method, path, body, authed, nil, ok...)
	}}
}

// call issues one request and passes when the status is one of ok. A 429 from the credential
// limiter is reported as a skip rather than a failure.
func (r *Runner) call(ctx context.Context, method, path string, body any, authed bool, out any, ok ...int) Result {
	if authed && r.token == "" {
		return Result{Status: statusSkip, Note: "no session token"}
	}
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	latency := time.Since(start)

	note := fmt.Sprintf("status=%d", resp.StatusCode)
	if contains(ok, resp.StatusCode) {
		return Result{Status: statusPass, Latency: latency, Note: note}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{Status: statusSkip, Latency: latency, Note: "rate limited"}
	}
	return Result{Status: statusFail, Latency: latency, Note: note}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := embeddedTables()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

var createTable = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func embeddedTables() ([]string, error) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, name := range names {
		b, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return nil, err
		}
		for _, m := range createTable.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}

// loginBurst fires concurrent bad logins from one client; the limiter must answer some with 429.
func loginBurst(ctx context.Context, r *Runner) Result {
	b, _ := json.Marshal(map[string]any{"email": "nobody@example.com", "password": "wrong-password"})
	var wg sync.WaitGroup
	var mu sync.Mutex
	limited, unauthorized := 0, 0

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/api/auth/login", strings.NewReader(string(b)))
			req.Header.Set("Content-Type", "application/json")
			resp, err := r.httpc.Do(req)
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			mu.Lock()
			switch resp.StatusCode {
			case http.StatusTooManyRequests:
				limited++
			case http.StatusUnauthorized:
				unauthorized++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("429=%d 401=%d", limited, unauthorized)
	if limited == 0 {
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, path string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+path, nil)
				resp, err := r.httpc.Do(req)
				mu.Lock()
				if err != nil || resp.StatusCode != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}
