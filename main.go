// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainpoint-network/calendar-core/pkg/anchor"
	"github.com/chainpoint-network/calendar-core/pkg/api"
	"github.com/chainpoint-network/calendar-core/pkg/audit"
	"github.com/chainpoint-network/calendar-core/pkg/block"
	"github.com/chainpoint-network/calendar-core/pkg/bus"
	"github.com/chainpoint-network/calendar-core/pkg/calendar"
	"github.com/chainpoint-network/calendar-core/pkg/config"
	"github.com/chainpoint-network/calendar-core/pkg/healthz"
	"github.com/chainpoint-network/calendar-core/pkg/leader"
	"github.com/chainpoint-network/calendar-core/pkg/lock"
	"github.com/chainpoint-network/calendar-core/pkg/metrics"
	"github.com/chainpoint-network/calendar-core/pkg/proofstore"
	"github.com/chainpoint-network/calendar-core/pkg/registry"
	"github.com/chainpoint-network/calendar-core/pkg/reward"
	"github.com/chainpoint-network/calendar-core/pkg/signer"
	"github.com/chainpoint-network/calendar-core/pkg/storage"
	"github.com/chainpoint-network/calendar-core/pkg/tokensvc"
)

// clockSkewAllowance bounds how far a Node's reported audit time may drift
// from this process's clock before the time predicate fails (spec §4.9).
const clockSkewAllowance = time.Minute

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("🚀 starting calendar-core block engine")

	var (
		stackIDFlag = flag.String("stack-id", "", "stack id (overrides STACK_ID env var)")
		showHelp    = flag.Bool("help", false, "show help message")
	)
	flag.Parse()
	if *showHelp {
		flag.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ load config: %v", err)
	}
	if *stackIDFlag != "" {
		cfg.StackID = *stackIDFlag
	}
	log.Printf("📋 stack id: %s, validator id: %s", cfg.StackID, cfg.ValidatorID)

	health := healthz.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sgn, err := signer.LoadOrGenerate(cfg.Ed25519KeyPath)
	if err != nil {
		log.Fatalf("❌ load signer key: %v", err)
	}
	log.Printf("🔑 signer ready: fingerprint=%s", sgn.Fingerprint())

	pool, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("❌ open database: %v", err)
	}
	defer pool.Close()
	if err := pool.MigrateUp(ctx); err != nil {
		log.Fatalf("❌ run migrations: %v", err)
	}
	health.SetDatabase("connected")
	log.Printf("✅ database connected and migrated")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("❌ connect to redis: %v", err)
	}
	defer rdb.Close()
	lockSvc := lock.New(rdb, nil)
	health.SetLock("connected")
	log.Printf("✅ lock service connected")

	blockStore := block.NewStore(pool, sgn)
	if err := calendar.EnsureGenesis(ctx, lockSvc, blockStore, cfg.StackID); err != nil {
		log.Fatalf("❌ ensure genesis block: %v", err)
	}
	log.Printf("✅ genesis block present")

	busCfg := bus.DefaultConfig()
	busCfg.URL = cfg.NATSURL
	if cfg.NATSStreamName != "" {
		busCfg.StreamName = cfg.NATSStreamName
	}
	if cfg.NATSDurableName != "" {
		busCfg.DurableName = cfg.NATSDurableName
	}
	b, err := bus.Connect(busCfg)
	if err != nil {
		log.Fatalf("❌ connect to message bus: %v", err)
	}
	defer b.Close()
	health.SetBus("connected")
	log.Printf("✅ message bus connected: %s", busCfg.URL)

	proofs := proofstore.New()
	materializer := proofstore.NewMaterializer(proofs)
	if _, err := materializer.Subscribe(b); err != nil {
		log.Fatalf("❌ subscribe proof materializer: %v", err)
	}
	tokens := tokensvc.New(cfg.TokenServiceURL, cfg.HTTPClientTimeout)

	// Calendar Writer (C7) and its aggregator intake.
	writer := calendar.New(lockSvc, blockStore, b, cfg.StackID)
	writer.Start(ctx)
	intake := calendar.NewIntake(writer)
	if _, err := intake.Subscribe(b); err != nil {
		log.Fatalf("❌ subscribe calendar intake: %v", err)
	}
	log.Printf("✅ calendar writer running")

	// Anchor Engine (C8): scheduled anchor path plus the two bus-driven
	// collaborators (confirm path, tx pre-processing).
	anchorEngine := anchor.NewEngine(lockSvc, blockStore, b, cfg.StackID, cfg.AnchorMinute1, cfg.AnchorMinute2)
	anchorEngine.Start(ctx)

	calendarElector := leader.New(lockSvc, "calendar")
	runElection(ctx, calendarElector, "calendar")

	confirmer := anchor.NewConfirmer(calendarElector, lockSvc, blockStore, b, cfg.StackID)
	if _, err := confirmer.Subscribe(); err != nil {
		log.Fatalf("❌ subscribe btc confirm: %v", err)
	}
	txPrep := anchor.NewTxPreprocessor(b)
	if _, err := txPrep.Subscribe(); err != nil {
		log.Fatalf("❌ subscribe btc tx preprocessor: %v", err)
	}
	log.Printf("✅ anchor engine running")

	// Node Registry (C11).
	registryStore := registry.New(pool, tokens, cfg.RegistrationCap, cfg.MinBalanceGrains)
	registryHandlers := registry.NewHandlers(registryStore, cfg.MinNewNodeVersion, cfg.MinExistingNodeVersion)

	// Audit Engine (C9): challenge generation, leader-gated rounds, and the
	// bus-driven per-node result consumer.
	auditLog := audit.NewLog(pool)
	nodeClient := audit.NewNodeClient(cfg.HTTPClientTimeout)
	challengeGen := audit.NewChallengeGenerator(blockStore, cfg.StackID)
	thresholds := audit.Thresholds{
		MinCredits: 0,
		MinVersion: cfg.MinExistingNodeVersion,
		MinBalance: cfg.MinBalanceGrains,
		ClockSkew:  clockSkewAllowance,
	}
	consumer := audit.NewConsumer(challengeGen, nodeClient, tokens, registryStore, auditLog, thresholds)
	if _, err := consumer.Subscribe(b); err != nil {
		log.Fatalf("❌ subscribe audit consumer: %v", err)
	}

	auditElector := leader.New(lockSvc, "audit-producer")
	runElection(ctx, auditElector, "audit-producer")
	round := audit.NewRound(auditElector, registryStore, auditLog, b, cfg.AuditRetentionWindow, cfg.AuditPruneBatchSize)
	scheduler := audit.NewScheduler(challengeGen, round, cfg.ChallengeInterval, cfg.AuditRoundInterval)
	scheduler.Start(ctx)
	log.Printf("✅ audit engine running")

	// Reward Engine (C10).
	rewardEngine := reward.New(blockStore, b, tokens, cfg.StackID)
	if _, err := rewardEngine.Subscribe(); err != nil {
		log.Fatalf("❌ subscribe reward engine: %v", err)
	}
	log.Printf("✅ reward engine running")

	proofHandlers := api.NewProofHandlers(proofs)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(health.ToJSON())
	})

	mux.HandleFunc("/nodes/random", registryHandlers.HandleRandom)
	mux.HandleFunc("/nodes/blacklist", registryHandlers.HandleBlacklist)
	mux.HandleFunc("/node", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		registryHandlers.HandleCreate(w, r)
	})
	mux.HandleFunc("/node/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		registryHandlers.HandleUpdate(w, r)
	})
	mux.HandleFunc("/calendar/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/hash"):
			proofHandlers.HandleHash(w, r)
		case strings.HasSuffix(r.URL.Path, "/data"):
			proofHandlers.HandleData(w, r)
		default:
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}
	})

	httpServer := &http.Server{Addr: cfg.HealthAddr, Handler: mux}
	go func() {
		log.Printf("🌐 http listening on %s", cfg.HealthAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ http server: %v", err)
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		log.Printf("📈 metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ metrics server: %v", err)
		}
	}()

	log.Printf("✅ calendar-core ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 shutting down calendar-core...")
	cancel()

	writer.Stop()
	anchorEngine.Stop()
	scheduler.Stop()
	_ = calendarElector.Resign(context.Background())
	_ = auditElector.Resign(context.Background())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	log.Printf("✅ calendar-core stopped")
}

// runElection campaigns for role in the background for as long as ctx is
// live, immediately re-campaigning whenever leadership is lost so the
// process is always contending rather than permanently giving up after one
// loss.
func runElection(ctx context.Context, elector *leader.Elector, role string) {
	go func() {
		for {
			events, err := elector.Campaign(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("leader: campaign for %s failed: %v", role, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
					continue
				}
			}
			log.Printf("👑 elected leader for role %s", role)
			for range events {
			}
			if ctx.Err() != nil {
				return
			}
			log.Printf("⚠️ lost leadership for role %s, re-campaigning", role)
		}
	}()
}
