package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type stats struct {
	total   atomic.Int64
	success atomic.Int64
	errors  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	byStatus  map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		byStatus:  make(map[int]int64),
	}
}

func (s *stats) record(elapsed time.Duration, statusCode int, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, elapsed)
	s.byStatus[statusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "results per query")
	flag.Parse()

	queries := []string{
		"inverted index",
		"posting list",
		"segment merge",
		"disk seek",
		"byte offset lexicon",
		"term frequency",
		"document ranking",
		"boolean intersection",
		"corpus tokenizer",
		"html extraction",
		"query cache",
		"index reload",
	}

	fmt.Println("=== corpusearch load test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Queries:     %d unique\n", len(queries))
	fmt.Println()

	st := run(*baseURL, *concurrency, *duration, *limit, queries)
	report(st, *duration)
}

func run(baseURL string, concurrency int, duration time.Duration, limit int, queries []string) *stats {
	st := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	fmt.Print("Running")
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	var g errgroup.Group
	for w := 0; w < concurrency; w++ {
		queryIdx := w
		g.Go(func() error {
			for ctx.Err() == nil {
				query := queries[queryIdx%len(queries)]
				queryIdx++

				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					baseURL, url.QueryEscape(query), limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return err
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					st.record(elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				st.record(elapsed, resp.StatusCode, nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\nworker error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(" done!")
	fmt.Println()
	return st
}

func report(st *stats, duration time.Duration) {
	total := st.total.Load()
	success := st.success.Load()
	errors := st.errors.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	st.mu.Lock()
	latencies := make([]time.Duration, len(st.latencies))
	copy(latencies, st.latencies)
	byStatus := make(map[int]int64, len(st.byStatus))
	for code, count := range st.byStatus {
		byStatus[code] = count
	}
	st.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(byStatus))
	for code := range byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, byStatus[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: no requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
