// Command gateway-loadtest measures the latency of the gateway's two Redis
// hot paths: the fixed-window rate limiter consulted on every sign-in, and
// the passcode challenge store hit on every passcode verify.
//
// With no -redis-addr flag (and no REDIS_ADDR env) it runs against an
// embedded miniredis, which measures Go-side overhead rather than network
// round-trips.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guardian/gateway-sub002/internal/rate"
	"github.com/guardian/gateway-sub002/internal/stores"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		identifiers = flag.Int("identifiers", 50000, "number of distinct identifiers to spread load across")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *identifiers <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identifiers, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	limiter := rate.New(client)
	store := stores.NewPasscodeStore(client, "lt")

	fmt.Printf("seeding %d passcode records...\n", *identifiers)
	startSeed := time.Now()
	now := time.Now()
	for i := 0; i < *identifiers; i++ {
		record := &stores.PasscodeRecord{
			StateHandle: fmt.Sprintf("handle-%d", i),
			IssuedAt:    now.Unix(),
			ExpiresAt:   now.Add(time.Hour).Unix(),
		}
		if err := store.Save(ctx, identifierFor(i), record, time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	rateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		key := fmt.Sprintf("ltr:%d", r.Intn(*identifiers))
		_, err := limiter.CheckAndIncrement(ctx, key, rate.Config{
			Limit:  1 << 30,
			Window: time.Hour,
		})
		return err
	})

	passcodeStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := store.Get(ctx, identifierFor(r.Intn(*identifiers)))
		return err
	})

	failureStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := store.RegisterFailure(ctx, identifierFor(r.Intn(*identifiers)), 1<<30)
		return err
	})

	fmt.Println("---- results ----")
	printStats("rate-check", rateStats)
	printStats("passcode-get", passcodeStats)
	printStats("passcode-failure", failureStats)
}

func identifierFor(i int) string {
	return fmt.Sprintf("user-%d@load.test", i)
}

func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseStats {
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
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
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

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
