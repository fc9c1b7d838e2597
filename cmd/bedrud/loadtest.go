package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bedrud/bedrud-go"
	"github.com/bedrud/bedrud-go/internal/fakebackend"
	"github.com/bedrud/bedrud-go/metrics/export/internaldefs"
	promexport "github.com/bedrud/bedrud-go/metrics/export/prometheus"
)

type loadtestOptions struct {
	clients     int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
	metricsAddr string
	rotate      bool
}

func loadtestCmd(a *app) *cobra.Command {
	var opts loadtestOptions

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive Token calls against an in-process backend and report latency",
		Long: `loadtest starts an in-process backend, signs in --clients sessions backed by a
Redis durable tier and runs two phases of --ops Token calls each:

  token    every session is valid, no refresh is expected;
  refresh  every session starts expired, exactly one refresh per session is expected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.clients <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("clients, concurrency, and ops must be > 0")
			}
			level := a.logLevel
			if level == "" {
				level = "warn"
			}
			logger, err := newLogger(cmd.ErrOrStderr(), level, "console")
			if err != nil {
				return err
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), logger, opts)
		},
	}

	cmd.Flags().IntVar(&opts.clients, "clients", 64, "number of sessions")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 256, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 100000, "Token calls per phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; miniredis is used when empty")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "bedrud-loadtest", "redis key prefix")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().BoolVar(&opts.rotate, "rotate-refresh", true, "backend rotates refresh tokens")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, logger zerolog.Logger, opts loadtestOptions) error {
	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if opts.redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{opts.redisAddr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Fprintf(out, "using redis at %s\n", opts.redisAddr)
	}
	defer cleanup()

	srv := fakebackend.Start(fakebackend.Options{RotateRefresh: opts.rotate, Logger: logger})
	defer srv.Close()

	sessions := &fleet{}
	defer sessions.close()

	fmt.Fprintf(out, "signing in %d sessions...\n", opts.clients)
	startSeed := time.Now()
	for i := 0; i < opts.clients; i++ {
		email := fmt.Sprintf("load-%d@example.com", i)
		password := fmt.Sprintf("load-password-%d", i)
		srv.AddUser(email, password, fmt.Sprintf("Load %d", i))

		cfg := bedrud.DefaultConfig()
		cfg.Backend.BaseURL = srv.URL()
		cfg.Session.RedisPrefix = fmt.Sprintf("%s:%d", opts.prefix, i)

		c, err := bedrud.New().
			WithConfig(cfg).
			WithLogger(logger).
			WithRedis(rdb).
			WithLatencyHistograms(true).
			Build(ctx)
		if err != nil {
			return fmt.Errorf("build client %d: %w", i, err)
		}
		sessions.add(c, email, password)
	}
	if err := sessions.loginAll(ctx, true); err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in in %s\n", time.Since(startSeed).Round(time.Millisecond))

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(opts.metricsAddr, sessions, logger)
		if err != nil {
			return err
		}
		defer stop()
		fmt.Fprintf(out, "serving metrics on http://%s/metrics\n", opts.metricsAddr)
	}

	tokenStats := runPhase(ctx, sessions, opts.ops, opts.concurrency)

	// Sign in again with expired access tokens, then let refresh hand out long-lived ones.
	srv.SetAccessTTL(-time.Minute)
	if err := sessions.loginAll(ctx, true); err != nil {
		return err
	}
	srv.SetAccessTTL(time.Hour)
	refreshesBefore := srv.RefreshCalls()
	refreshStats := runPhase(ctx, sessions, opts.ops, opts.concurrency)
	refreshes := srv.RefreshCalls() - refreshesBefore

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "token", tokenStats)
	printStats(out, "refresh", refreshStats)
	fmt.Fprintf(out, "refresh calls: %d for %d sessions\n", refreshes, opts.clients)

	snap := sessions.MetricsSnapshot()
	for _, def := range internaldefs.CounterDefs {
		if v := snap.Counters[def.ID]; v > 0 {
			fmt.Fprintf(out, "%s %d\n", def.Name, v)
		}
	}

	if refreshes > int64(opts.clients) {
		return fmt.Errorf("expected at most %d refresh calls, saw %d", opts.clients, refreshes)
	}
	return nil
}

func runPhase(ctx context.Context, f *fleet, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				c := f.clients[r.Intn(len(f.clients))]
				t0 := time.Now()
				tok, err := c.Token(ctx)
				d := time.Since(t0)
				if err != nil || tok == nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// fleet aggregates the metrics of many clients into one source.
type fleet struct {
	clients   []*bedrud.Client
	emails    []string
	passwords []string
}

func (f *fleet) add(c *bedrud.Client, email, password string) {
	f.clients = append(f.clients, c)
	f.emails = append(f.emails, email)
	f.passwords = append(f.passwords, password)
}

func (f *fleet) loginAll(ctx context.Context, remember bool) error {
	for i, c := range f.clients {
		if _, err := c.Login(ctx, f.emails[i], f.passwords[i], remember); err != nil {
			return fmt.Errorf("login %s: %w", f.emails[i], err)
		}
	}
	return nil
}

func (f *fleet) MetricsSnapshot() bedrud.MetricsSnapshot {
	out := bedrud.MetricsSnapshot{
		Counters:   map[bedrud.MetricID]uint64{},
		Histograms: map[bedrud.MetricID][]uint64{},
	}
	for _, c := range f.clients {
		snap := c.MetricsSnapshot()
		for id, v := range snap.Counters {
			out.Counters[id] += v
		}
		for id, buckets := range snap.Histograms {
			sum := out.Histograms[id]
			if sum == nil {
				sum = make([]uint64, len(buckets))
			}
			for i, v := range buckets {
				if i < len(sum) {
					sum[i] += v
				}
			}
			out.Histograms[id] = sum
		}
	}
	return out
}

func (f *fleet) EventsDropped() uint64 {
	var n uint64
	for _, c := range f.clients {
		n += c.EventsDropped()
	}
	return n
}

func (f *fleet) close() {
	for _, c := range f.clients {
		_ = c.Close()
	}
}

func serveMetrics(addr string, source promexport.MetricsSource, logger zerolog.Logger) (func(), error) {
	handler, err := promexport.Handler(source)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
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

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
