package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/delivery"
	"github.com/spf13/cobra"
)

const loadtestPassword = "loadtest-password"

type account struct {
	identifier string

	mu      sync.Mutex
	access  string
	refresh string
}

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
	memory      bool
	realHash    bool
}

func newLoadtestCmd(g *globals) *cobra.Command {
	var o loadtestOptions
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure validate, refresh and login throughput",
		Long: `Seed accounts, then run validate, refresh and login phases with concurrent
workers and report throughput and latency percentiles.

The Redis stores are used by default, against miniredis unless --redis-addr
or REDIS_ADDR is set. Password hashing drops to the cheapest bcrypt cost
unless --real-hash is given, so the run measures the engine and not the KDF.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.users <= 0 || o.concurrency <= 0 || o.ops <= 0 {
				return errors.New("users, concurrency and ops must be > 0")
			}
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if err := withEphemeralKeys(&cfg, g.logger); err != nil {
				return err
			}
			cfg.Verification.SendOnRegister = false
			cfg.Verification.RequireVerifiedLogin = false
			cfg.Session.RevokeOnLogin = false
			cfg.RateLimit.Enabled = false
			cfg.Metrics.Enabled = true
			cfg.Metrics.EnableLatencyHistograms = true
			if !o.realHash {
				cfg.Password.Algorithm = "bcrypt"
				cfg.Password.BcryptCost = 4
			}

			say := func(s string) { fmt.Fprintln(g.out, s) }
			b := goIdentity.New().WithConfig(cfg).WithLogger(g.logger).WithDelivery(delivery.Nop{})
			if !o.memory {
				client, closeRedis, err := openRedis(o.redisAddr, say)
				if err != nil {
					return err
				}
				defer closeRedis()
				b = b.WithRedis(client)
			} else {
				say("using memory stores")
			}
			engine, err := b.Build()
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := cmd.Context()
			say(fmt.Sprintf("seeding %d accounts...", o.users))
			startSeed := time.Now()
			accounts, err := seedAccounts(ctx, engine, o.users)
			if err != nil {
				return err
			}
			say(fmt.Sprintf("seeded in %s", time.Since(startSeed).Round(time.Millisecond)))

			results := []phaseStats{
				runPhase("validate", accounts, o.ops, o.concurrency, func(a *account) error {
					a.mu.Lock()
					token := a.access
					a.mu.Unlock()
					_, err := engine.ValidateAccessToken(ctx, token)
					return err
				}),
				runPhase("refresh", accounts, o.ops, o.concurrency, func(a *account) error {
					a.mu.Lock()
					defer a.mu.Unlock()
					pair, err := engine.Refresh(ctx, a.refresh)
					if err != nil {
						return err
					}
					a.access, a.refresh = pair.AccessToken, pair.RefreshToken
					return nil
				}),
				runPhase("login", accounts, o.ops, o.concurrency, func(a *account) error {
					_, err := engine.Login(ctx, goIdentity.KindUsername, a.identifier, loadtestPassword)
					return err
				}),
			}

			if g.jsonOut {
				return g.emit(results, "")
			}
			say("---- results ----")
			for _, s := range results {
				printStats(g, s)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.users, "users", 1000, "number of accounts to seed")
	f.IntVar(&o.concurrency, "concurrency", 64, "number of concurrent workers")
	f.IntVar(&o.ops, "ops", 20000, "operations per phase")
	f.StringVar(&o.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	f.BoolVar(&o.memory, "memory", false, "use in-memory stores instead of Redis")
	f.BoolVar(&o.realHash, "real-hash", false, "keep the configured password hasher")
	return cmd
}

func seedAccounts(ctx context.Context, e *goIdentity.Engine, n int) ([]*account, error) {
	accounts := make([]*account, n)
	for i := range accounts {
		name := fmt.Sprintf("load.user-%d", i)
		if _, err := e.Register(ctx, goIdentity.RegisterRequest{
			Kind:            goIdentity.KindUsername,
			Identifier:      name,
			Password:        loadtestPassword,
			ConfirmPassword: loadtestPassword,
		}); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		pair, err := e.Login(ctx, goIdentity.KindUsername, name, loadtestPassword)
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", name, err)
		}
		accounts[i] = &account{identifier: name, access: pair.AccessToken, refresh: pair.RefreshToken}
	}
	return accounts, nil
}

func runPhase(name string, accounts []*account, ops, concurrency int, op func(*account) error) phaseStats {
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
				a := accounts[r.Intn(len(accounts))]
				t0 := time.Now()
				err := op(a)
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
	s := computeStats(time.Since(start), latencies, failures)
	s.Name = name
	return s
}

type phaseStats struct {
	Name     string        `json:"phase"`
	Total    time.Duration `json:"total_ns"`
	Ops      int           `json:"ops"`
	Failures int64         `json:"failures"`
	P50      time.Duration `json:"p50_ns"`
	P95      time.Duration `json:"p95_ns"`
	P99      time.Duration `json:"p99_ns"`
	OpsPerS  float64       `json:"ops_per_sec"`
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{Total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		Total:    total,
		Ops:      len(samples),
		Failures: failures,
		P50:      percentile(samples, 50),
		P95:      percentile(samples, 95),
		P99:      percentile(samples, 99),
		OpsPerS:  float64(len(samples)) / total.Seconds(),
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

func printStats(g *globals, s phaseStats) {
	fmt.Fprintf(g.out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		s.Name,
		s.Ops,
		s.Failures,
		s.Total.Round(time.Millisecond),
		s.OpsPerS,
		s.P50.Round(time.Microsecond),
		s.P95.Round(time.Microsecond),
		s.P99.Round(time.Microsecond),
	)
}
