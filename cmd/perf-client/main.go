// Command perf-client drives concurrent redemptions against one deal and
// then checks that the stored redemption count matches what it observed.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/time/rate"

	"github.com/pinnity/pinnity/internal/rpc"
)

// PerfResult gathers aggregated metrics for the test run.
// LatencySum & P95Latency are in nanoseconds.
type PerfResult struct {
	TotalRequests int64
	SuccessCount  int64
	RefusedCount  int64
	ErrorCount    int64
	LatencySum    int64
	P95Latency    int64
}

const defaultTimeout = 30 * time.Second

type client struct {
	http    *http.Client
	baseURL string
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string { return fmt.Sprintf("status %d: %s", e.Status, e.Body) }

func (c *client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return &apiError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
	Business struct {
		ID string `json:"id"`
	} `json:"business"`
}

type deal struct {
	ID                    string `json:"id"`
	Status                string `json:"status"`
	TotalRedemptionsLimit int    `json:"total_redemptions_limit"`
	RedemptionCount       int    `json:"redemption_count"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	adminEmail := flag.String("admin-email", "admin@pinnity.local", "admin account (see cmd/seed)")
	adminPassword := flag.String("admin-password", "pinnity123", "admin password")
	rps := flag.Int("rps", 40, "target requests per second")
	workers := flag.Int("workers", 20, "concurrent customers")
	duration := flag.Duration("duration", 15*time.Second, "test duration")
	limit := flag.Int("limit", 200, "total redemptions limit of the test deal")
	flag.Parse()
	if *workers < 1 || *rps < 1 {
		fmt.Fprintln(os.Stderr, "rps and workers must be positive")
		os.Exit(2)
	}

	// ─── HTTP Client & Transport ─────────────────────────────────
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        *workers * 4,
			MaxIdleConnsPerHost: *workers * 4,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: defaultTimeout,
	}
	c := &client{http: httpClient, baseURL: *baseURL}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelSetup()

	d, tokens, adminToken, err := setup(setupCtx, c, *adminEmail, *adminPassword, *workers, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("==========================================")
	fmt.Println("Pinnity redemption load test")
	fmt.Println("==========================================")
	fmt.Printf("Deal ID    : %s\n", d.ID)
	fmt.Printf("Limit      : %d\n", *limit)
	fmt.Printf("RPS        : %d\n", *rps)
	fmt.Printf("Customers  : %d\n", *workers)
	fmt.Printf("Duration   : %v\n", *duration)
	fmt.Println("==========================================")

	// ─── Rate limiter & context ─────────────────────────────────
	burst := max(*rps / *workers, 1)
	limiter := rate.NewLimiter(rate.Limit(*rps), burst)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var result PerfResult
	var wg sync.WaitGroup

	latencyChan := make(chan time.Duration, 4096)
	p95Done := make(chan struct{})
	go func() {
		trackP95(latencyChan, &result)
		close(p95Done)
	}()

	start := time.Now()
	for _, token := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				redeem(c, d.ID, token, &result, latencyChan)
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	close(latencyChan)
	<-p95Done
	totalDur := time.Since(start)

	// ─── Report ─────────────────────────────────────────────────
	fmt.Println("==========================================")
	fmt.Println("Results")
	fmt.Println("==========================================")
	fmt.Printf("Elapsed            : %.2fs\n", totalDur.Seconds())
	fmt.Printf("Requests           : %d\n", result.TotalRequests)
	fmt.Printf("Redeemed           : %d\n", result.SuccessCount)
	fmt.Printf("Refused (sold out) : %d\n", result.RefusedCount)
	fmt.Printf("Errors             : %d\n", result.ErrorCount)

	var avgLatency time.Duration
	if result.SuccessCount > 0 {
		avgLatency = time.Duration(result.LatencySum / result.SuccessCount)
	}
	fmt.Printf("Actual RPS         : %.2f\n", float64(result.TotalRequests)/totalDur.Seconds())
	fmt.Printf("Avg latency        : %v\n", avgLatency)
	fmt.Printf("P95 latency        : %v\n", time.Duration(result.P95Latency))

	// ─── Data Consistency Check ─────────────────────────────────
	fmt.Println("==========================================")
	fmt.Println("Data consistency")
	fmt.Println("==========================================")
	if err := verifyDataConsistency(c, adminToken, d.ID, result.SuccessCount); err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

// setup creates a verified vendor with one approved deal and signs up the
// customers that will redeem it. Moderation goes through the RPC service.
func setup(ctx context.Context, c *client, adminEmail, adminPassword string, customers, limit int) (*deal, []string, string, error) {
	var admin session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": adminEmail, "password": adminPassword,
	}, &admin); err != nil {
		return nil, nil, "", fmt.Errorf("admin login: %w", err)
	}

	run := time.Now().UnixNano()
	var vendor session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signup/business", "", map[string]any{
		"email":    fmt.Sprintf("perf-vendor-%d@example.com", run),
		"password": "perftest1",
		"business": map[string]string{"business_name": "Perf Test Cafe", "category": "food_drink"},
	}, &vendor); err != nil {
		return nil, nil, "", fmt.Errorf("vendor signup: %w", err)
	}

	verify := connect.NewClient[rpc.BusinessDecisionRequest, rpc.BusinessDecisionResponse](
		c.http, c.baseURL+rpc.VerifyBusinessProcedure, connect.WithCodec(rpc.Codec))
	req := connect.NewRequest(&rpc.BusinessDecisionRequest{BusinessID: vendor.Business.ID, Feedback: "load test"})
	req.Header().Set("Authorization", "Bearer "+admin.Token)
	if _, err := verify.CallUnary(ctx, req); err != nil {
		return nil, nil, "", fmt.Errorf("verify business: %w", err)
	}

	var d deal
	now := time.Now()
	if err := c.do(ctx, http.MethodPost, "/api/v1/vendor/deals", vendor.Token, map[string]any{
		"title":                    "Load test deal",
		"category":                 "food_drink",
		"original_price":           10,
		"discounted_price":         5,
		"start_date":               now.Add(-time.Minute),
		"end_date":                 now.Add(24 * time.Hour),
		"max_redemptions_per_user": 0,
		"total_redemptions_limit":  limit,
		"submit":                   true,
	}, &d); err != nil {
		return nil, nil, "", fmt.Errorf("create deal: %w", err)
	}

	approve := connect.NewClient[rpc.DealDecisionRequest, rpc.DealDecisionResponse](
		c.http, c.baseURL+rpc.ApproveDealProcedure, connect.WithCodec(rpc.Codec))
	areq := connect.NewRequest(&rpc.DealDecisionRequest{DealID: d.ID})
	areq.Header().Set("Authorization", "Bearer "+admin.Token)
	if _, err := approve.CallUnary(ctx, areq); err != nil {
		return nil, nil, "", fmt.Errorf("approve deal: %w", err)
	}

	tokens := make([]string, 0, customers)
	for i := range customers {
		var s session
		if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
			"email":    fmt.Sprintf("perf-%d-%d@example.com", run, i),
			"password": "perftest1",
		}, &s); err != nil {
			return nil, nil, "", fmt.Errorf("customer signup: %w", err)
		}
		tokens = append(tokens, s.Token)
	}
	return &d, tokens, admin.Token, nil
}

// redeem performs a single redemption and collects metrics.
func redeem(c *client, dealID, token string, result *PerfResult, latencyChan chan<- time.Duration) {
	// Use independent context to avoid cancellation when test ends
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)
	err := c.do(ctx, http.MethodPost, "/api/v1/deals/"+dealID+"/redeem", token, nil, nil)
	latency := time.Since(start)

	if err != nil {
		if apiErr, ok := err.(*apiError); ok && apiErr.Status == http.StatusUnprocessableEntity {
			atomic.AddInt64(&result.RefusedCount, 1)
			return
		}
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	atomic.AddInt64(&result.SuccessCount, 1)
	atomic.AddInt64(&result.LatencySum, latency.Nanoseconds())
	select {
	case latencyChan <- latency:
	default:
	}
}

// trackP95 keeps a bounded sample of latencies and refreshes the P95
// estimate every 100 samples.
func trackP95(latencies <-chan time.Duration, result *PerfResult) {
	const size = 1000
	buf := make([]int64, 0, size)

	update := func() {
		sorted := append([]int64(nil), buf...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		idx := min(int(float64(len(sorted))*0.95), len(sorted)-1)
		atomic.StoreInt64(&result.P95Latency, sorted[idx])
	}

	n := 0
	for lat := range latencies {
		n++
		if len(buf) < size {
			buf = append(buf, lat.Nanoseconds())
		} else if idx := time.Now().UnixNano() % size; idx < size/10 {
			buf[idx] = lat.Nanoseconds()
		}
		if n%100 == 0 {
			update()
		}
	}
	if len(buf) > 0 {
		update()
	}
}

// verifyDataConsistency checks the stored redemption count against the
// successes the client saw and against the deal's limit.
func verifyDataConsistency(c *client, adminToken, dealID string, expected int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var d deal
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/deals/"+dealID, adminToken, nil, &d); err != nil {
		return fmt.Errorf("failed to get deal: %w", err)
	}

	fmt.Printf("Deal ID              : %s\n", d.ID)
	fmt.Printf("Limit                : %d\n", d.TotalRedemptionsLimit)
	fmt.Printf("Redemptions (stored) : %d\n", d.RedemptionCount)
	fmt.Printf("Redemptions (client) : %d\n", expected)

	if int64(d.RedemptionCount) != expected {
		return fmt.Errorf("count mismatch: stored=%d client=%d diff=%d",
			d.RedemptionCount, expected, int64(d.RedemptionCount)-expected)
	}
	if d.TotalRedemptionsLimit > 0 && d.RedemptionCount > d.TotalRedemptionsLimit {
		return fmt.Errorf("over-redemption: stored=%d > limit=%d", d.RedemptionCount, d.TotalRedemptionsLimit)
	}
	return nil
}
