// Command hms-loadtest drives a goHMS client against an in-process stub API
// and reports how well the query cache coalesces and invalidates.
//
// Phases:
//
//	coalesce  many readers ask for the same cold page at once
//	cached    readers spread over a few warm pages
//	mutate    update then read, verifying every read sees the write
//
// Run:
//
//	go run ./cmd/hms-loadtest -readers 256 -latency 20ms
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/internal/stubapi"
	"github.com/MrEthical07/goHMS/metrics/export/otel"
)

const (
	adminEmail    = "loadtest@hms.test"
	adminPassword = "loadtest-password"
)

func main() {
	var (
		units       = flag.Int("units", 500, "units to seed")
		readers     = flag.Int("readers", 128, "concurrent readers per coalesce round")
		rounds      = flag.Int("rounds", 20, "coalesce rounds, each on a fresh page")
		ops         = flag.Int("ops", 20000, "reads in the cached phase")
		pages       = flag.Int("pages", 8, "distinct pages in the cached phase")
		mutations   = flag.Int("mutations", 200, "update-then-read cycles")
		concurrency = flag.Int("concurrency", 64, "workers in the cached phase")
		latency     = flag.Duration("latency", 10*time.Millisecond, "artificial stub latency for reads")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *units <= 0 || *readers <= 0 || *rounds <= 0 || *ops <= 0 || *pages <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "units, readers, rounds, ops, pages and concurrency must be > 0")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	rdb, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	stub, baseURL, stop, err := startStub(rdb, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stub api: %v\n", err)
		os.Exit(1)
	}
	defer stop()

	client, err := newClient(baseURL, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter, err := otel.NewOTelExporter(provider.Meter("hms-loadtest"), client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "otel exporter: %v\n", err)
		os.Exit(1)
	}
	defer exporter.Close()

	if _, err := client.Login(ctx, goHMS.Credentials{Email: adminEmail, Password: adminPassword}); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeding %d units...\n", *units)
	startSeed := time.Now()
	ids, err := seedUnits(ctx, client, *units)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	stub.SetLatency(*latency)
	stub.ResetHits()

	coalesce := runCoalescePhase(ctx, client, *readers, *rounds)
	coalesce.requests = stub.Hits(http.MethodGet, "/units")

	stub.ResetHits()
	cached := runCachedPhase(ctx, client, *ops, *pages, *concurrency)
	cached.requests = stub.Hits(http.MethodGet, "/units")

	stub.ResetHits()
	mutate := runMutatePhase(ctx, client, ids, *mutations)
	mutate.requests = stub.Hits(http.MethodGet, "/units") + stub.Hits(http.MethodPatch, "/units")

	fmt.Println("---- results ----")
	printStats("coalesce", coalesce)
	printStats("cached", cached)
	printStats("mutate", mutate)

	fmt.Println("---- client metrics ----")
	if err := printMetrics(ctx, reader); err != nil {
		fmt.Fprintf(os.Stderr, "collect: %v\n", err)
	}
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return rdb, func() { _ = rdb.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}, nil
}

func startStub(rdb redis.UniversalClient, logger *slog.Logger) (*stubapi.Server, string, func(), error) {
	cfg := stubapi.DefaultConfig()
	cfg.Redis = rdb
	cfg.Logger = logger

	stub, err := stubapi.New(cfg)
	if err != nil {
		return nil, "", nil, err
	}
	if _, err := stub.SeedUser(adminEmail, adminPassword, "Load Test", goHMS.RoleAdmin); err != nil {
		return nil, "", nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", nil, err
	}
	srv := &http.Server{Handler: stub, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "stub server: %v\n", err)
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return stub, "http://" + ln.Addr().String() + stub.Prefix(), stop, nil
}

func newClient(baseURL string, logger *slog.Logger) (*goHMS.Client, error) {
	cfg := goHMS.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 256

	return goHMS.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithHTTPClient(&http.Client{Transport: transport}).
		Build()
}

func seedUnits(ctx context.Context, client *goHMS.Client, n int) ([]string, error) {
	ids := make([]string, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(32)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			u, err := client.Units().Create(ctx, goHMS.UnitInput{
				UnitNumber: fmt.Sprintf("U-%04d", i),
				PropertyID: "p-load",
				RentAmount: float64(1000 + i),
				Status:     goHMS.UnitAvailable,
			})
			if err != nil {
				return err
			}
			ids[i] = u.ID
			return nil
		})
	}
	return ids, g.Wait()
}

// runCoalescePhase releases readers together on a page no one has read, so
// every round should cost one request.
func runCoalescePhase(ctx context.Context, client *goHMS.Client, readers, rounds int) phaseStats {
	rec := newRecorder(readers * rounds)
	start := time.Now()

	for round := 0; round < rounds; round++ {
		params := goHMS.ListParams{Page: 1, Limit: 10, Search: fmt.Sprintf("U-%03d", round)}
		gate := make(chan struct{})

		var wg sync.WaitGroup
		for r := 0; r < readers; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				_, err := client.Units().List(ctx, params)
				rec.record(time.Since(t0), err)
			}()
		}
		close(gate)
		wg.Wait()
	}

	return rec.stats(time.Since(start))
}

func runCachedPhase(ctx context.Context, client *goHMS.Client, ops, pages, concurrency int) phaseStats {
	rec := newRecorder(ops)
	var cursor int64

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				params := goHMS.ListParams{Page: r.Intn(pages) + 1, Limit: 20}
				t0 := time.Now()
				_, err := client.Units().List(ctx, params)
				rec.record(time.Since(t0), err)
			}
		}(w)
	}
	wg.Wait()

	return rec.stats(time.Since(start))
}

// runMutatePhase counts a read that does not reflect the preceding update as a failure.
func runMutatePhase(ctx context.Context, client *goHMS.Client, ids []string, cycles int) phaseStats {
	rec := newRecorder(cycles * 2)
	start := time.Now()
	statuses := []goHMS.UnitStatus{goHMS.UnitOccupied, goHMS.UnitMaintenance, goHMS.UnitAvailable}

	for i := 0; i < cycles; i++ {
		id := ids[i%len(ids)]
		want := statuses[i%len(statuses)]

		t0 := time.Now()
		current, err := client.Units().Get(ctx, id)
		if err != nil {
			rec.record(time.Since(t0), err)
			continue
		}
		_, err = client.Units().Update(ctx, id, goHMS.UnitInput{
			UnitNumber: current.UnitNumber,
			PropertyID: current.PropertyID,
			RentAmount: current.RentAmount,
			Status:     want,
		})
		rec.record(time.Since(t0), err)

		t0 = time.Now()
		got, err := client.Units().Get(ctx, id)
		if err == nil && got.Status != want {
			err = fmt.Errorf("unit %s: read %s after writing %s", id, got.Status, want)
		}
		rec.record(time.Since(t0), err)
	}

	return rec.stats(time.Since(start))
}

type recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  int64
}

func newRecorder(capacity int) *recorder {
	return &recorder{latencies: make([]time.Duration, 0, capacity)}
}

func (r *recorder) record(d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies = append(r.latencies, d)
	if err != nil {
		r.failures++
	}
}

func (r *recorder) stats(total time.Duration) phaseStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return computeStats(total, r.latencies, r.failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	requests int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	ratio := 0.0
	if s.requests > 0 {
		ratio = float64(s.ops) / float64(s.requests)
	}
	fmt.Printf("%s: reads=%d requests=%d reads/request=%.1f failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.requests,
		ratio,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// printMetrics prints every non-zero counter collected through the OTel exporter.
func printMetrics(ctx context.Context, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}

	type line struct {
		name  string
		value int64
	}
	var lines []line
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 || sum.DataPoints[0].Value == 0 {
				continue
			}
			lines = append(lines, line{m.Name, sum.DataPoints[0].Value})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].name < lines[j].name })
	for _, l := range lines {
		fmt.Printf("%s %d\n", l.name, l.value)
	}
	return nil
}
