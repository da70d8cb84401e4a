package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/agentuity/go-entitycache/config"
	"github.com/agentuity/go-entitycache/logger"
	"github.com/agentuity/go-entitycache/sys"
	"github.com/agentuity/go-entitycache/telemetry"
	"github.com/agentuity/go-entitycache/tui"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"
)

// record is the entity the simulation caches.
type record struct {
	ID       string    `msgpack:"id"`
	Payload  []byte    `msgpack:"payload"`
	LoadedAt time.Time `msgpack:"loaded_at"`
}

func (r *record) Identity() cache.Identity { return cache.IdentityFor[record](r.ID) }

// keyspace is the namespace record ids are derived from, so every run reads
// the same ids and persistent stores warm up across runs.
var keyspace = uuid.MustParse("6f1c8a52-93a5-4c53-8f3e-2b1f4f3c9d10")

func recordID(n uint64) cache.Identity {
	return cache.IdentityFor[record](uuid.NewSHA1(keyspace, []byte(strconv.FormatUint(n, 10))).String())
}

type simulation struct {
	Keys        int
	Reads       int
	Workers     int
	Seed        int64
	Skew        float64
	LoadLatency time.Duration
	PayloadSize int
}

func (s simulation) validate() error {
	switch {
	case s.Keys < 1:
		return errors.Newf("--keys must be at least 1, got %d", s.Keys)
	case s.Reads < 0:
		return errors.Newf("--reads must not be negative, got %d", s.Reads)
	case s.Workers < 1:
		return errors.Newf("--workers must be at least 1, got %d", s.Workers)
	case s.Skew <= 1:
		return errors.Newf("--skew must be greater than 1, got %v", s.Skew)
	case s.PayloadSize < 0:
		return errors.Newf("--payload must not be negative, got %d", s.PayloadSize)
	}
	return nil
}

// keys returns the key sequence one worker reads: Zipf distributed, so a
// few keys take most of the reads.
func (s simulation) keys(worker, reads int) []uint64 {
	r := rand.New(rand.NewSource(s.Seed + int64(worker)))
	zipf := rand.NewZipf(r, s.Skew, 1, uint64(s.Keys-1))
	out := make([]uint64, reads)
	for i := range out {
		out[i] = zipf.Uint64()
	}
	return out
}

type result struct {
	RunID    string
	Stats    cache.Stats
	Count    int
	Loads    int64
	Elapsed  time.Duration
	Counters map[string]int64
}

func runSimulation(ctx context.Context, cfg *config.Config, sim simulation, log logger.Logger) (*result, error) {
	if err := sim.validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	log = logger.WithKV(log, "run", runID)

	c, shutdown, err := config.NewCache[*record](ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := shutdown(); err != nil {
			log.Warn("shutting down cache: %s", err)
		}
	}()

	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProvider(ctx, "entitycache", reader)
	if err != nil {
		return nil, err
	}
	defer mp.Shutdown(context.Background())
	obs, err := telemetry.NewMetricsObserver(c.Name(), telemetry.WithMeterProvider(mp))
	if err != nil {
		return nil, err
	}
	unsubscribe := c.Subscribe(obs)
	defer unsubscribe()

	var loads atomic.Int64
	loader := telemetry.TraceLoader(ctx, func(id cache.Identity) (*record, error) {
		loads.Add(1)
		if sim.LoadLatency > 0 {
			time.Sleep(sim.LoadLatency)
		}
		return &record{
			ID:       id.Value.(string),
			Payload:  make([]byte, sim.PayloadSize),
			LoadedAt: time.Now().UTC(),
		}, nil
	})

	log.Info("simulating %d reads over %d keys with %d workers", sim.Reads, sim.Keys, sim.Workers)
	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < sim.Workers; w++ {
		reads := sim.Reads / sim.Workers
		if w < sim.Reads%sim.Workers {
			reads++
		}
		keys := sim.keys(w, reads)
		g.Go(func() error {
			for _, k := range keys {
				if err := gctx.Err(); err != nil {
					return err
				}
				var policy cache.ItemPolicy
				if !cfg.SharedItemPolicy() {
					policy = cfg.NewItemPolicy()
				}
				if _, err := c.Read(recordID(k), policy, loader); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "simulation failed")
	}
	elapsed := time.Since(started)

	count, err := c.Count()
	if err != nil {
		return nil, err
	}
	counters, err := collectCounters(ctx, reader)
	if err != nil {
		return nil, err
	}
	log.Debug("simulation finished in %s", elapsed)
	return &result{
		RunID:    runID,
		Stats:    c.Stats(),
		Count:    count,
		Loads:    loads.Load(),
		Elapsed:  elapsed,
		Counters: counters,
	}, nil
}

func collectCounters(ctx context.Context, reader *sdkmetric.ManualReader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, errors.Wrap(err, "collecting metrics")
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out, nil
}

func (r *result) write(w io.Writer, sim simulation, maxItems int) {
	if tui.IsTerminal(w) {
		fmt.Fprintln(w, tui.Title("entity cache simulation "+r.RunID))
	}
	n := func(v uint64) string { return strconv.FormatUint(v, 10) }
	rps := float64(sim.Reads) / r.Elapsed.Seconds()
	tui.Table(w, []string{"Metric", "Value"}, [][]string{
		{"reads", strconv.Itoa(sim.Reads)},
		{"hits", n(r.Stats.Hits)},
		{"misses", n(r.Stats.Misses)},
		{"hit ratio", fmt.Sprintf("%.2f%%", r.Stats.HitRatio()*100)},
		{"loads", strconv.FormatInt(r.Loads, 10)},
		{"cleanups", n(r.Stats.Cleanups)},
		{"evicted", n(r.Stats.Evicted)},
		{"forced", n(r.Stats.Forced)},
		{"entities", fmt.Sprintf("%d / %d", r.Count, maxItems)},
		{"elapsed", r.Elapsed.Round(time.Millisecond).String()},
		{"reads/s", fmt.Sprintf("%.0f", rps)},
	}, 1)

	rows := make([][]string, 0, 4)
	for _, name := range []string{telemetry.MetricHits, telemetry.MetricMisses, telemetry.MetricAdded, telemetry.MetricRemoved} {
		rows = append(rows, []string{name, strconv.FormatInt(r.Counters[name], 10)})
	}
	tui.Table(w, []string{"Counter", "Total"}, rows, 1)

	if mem, err := sys.HostMemory(); err == nil {
		fmt.Fprintln(w, tui.Muted("host memory: "+mem.String()))
	} else {
		fmt.Fprintln(w, tui.Warning("host memory unavailable: "+err.Error()))
	}
}

func newSimulateCommand() *cobra.Command {
	var sim simulation
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a skewed read workload against the configured cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, closeLog, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeLog()
			res, err := runSimulation(cmd.Context(), cfg, sim, log)
			if err != nil {
				return err
			}
			res.write(cmd.OutOrStdout(), sim, cfg.MaxItems)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&sim.Keys, "keys", 10000, "number of distinct keys")
	flags.IntVar(&sim.Reads, "reads", 100000, "total number of reads")
	flags.IntVar(&sim.Workers, "workers", 8, "concurrent readers")
	flags.Int64Var(&sim.Seed, "seed", 1, "random seed")
	flags.Float64Var(&sim.Skew, "skew", 1.1, "Zipf exponent, greater than 1; higher concentrates reads on fewer keys")
	flags.DurationVar(&sim.LoadLatency, "latency", 0, "synthetic loader latency")
	flags.IntVar(&sim.PayloadSize, "payload", 256, "bytes per loaded entity")
	return cmd
}
