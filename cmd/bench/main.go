// README: Smoke/benchmark runner; executes HTTP, DB and Redis checks against a running API and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"staybook/internal/config"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", counts[statusPass], counts[statusFail], counts[statusSkip])

	if counts[statusFail] > 0 || (cfg.Strict && counts[statusSkip] > 0) {
		os.Exit(1)
	}
}

func loadConfig() config.BenchConfig {
	cfg := config.LoadBench()
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Postgres DSN; empty skips DB checks")
	flag.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address; empty skips redis checks")
	flag.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Workers for load checks")
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Length of the throughput check")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}
