// Resolvr support platform server: serves the channel webhook API, runs the
// dispatch worker pool, and orchestrates conversation processing.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/resolvr-ai/resolvr/pkg/agent"
	"github.com/resolvr-ai/resolvr/pkg/api"
	"github.com/resolvr-ai/resolvr/pkg/audit"
	"github.com/resolvr-ai/resolvr/pkg/cache"
	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/connectors"
	"github.com/resolvr-ai/resolvr/pkg/convstore"
	"github.com/resolvr-ai/resolvr/pkg/customer"
	"github.com/resolvr-ai/resolvr/pkg/dispatch"
	"github.com/resolvr-ai/resolvr/pkg/experiment"
	"github.com/resolvr-ai/resolvr/pkg/flows"
	"github.com/resolvr-ai/resolvr/pkg/health"
	"github.com/resolvr-ai/resolvr/pkg/learning"
	"github.com/resolvr-ai/resolvr/pkg/llm"
	"github.com/resolvr-ai/resolvr/pkg/metrics"
	"github.com/resolvr-ai/resolvr/pkg/models"
	"github.com/resolvr-ai/resolvr/pkg/notify"
	"github.com/resolvr-ai/resolvr/pkg/orchestrator"
	"github.com/resolvr-ai/resolvr/pkg/piivault"
	"github.com/resolvr-ai/resolvr/pkg/proactive"
	"github.com/resolvr-ai/resolvr/pkg/routing"
	"github.com/resolvr-ai/resolvr/pkg/sla"
	"github.com/resolvr-ai/resolvr/pkg/tools"
	"github.com/resolvr-ai/resolvr/pkg/version"
	"github.com/resolvr-ai/resolvr/pkg/voc"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// logOutbound is the default channel delivery when no outbound webhook is
// configured. Replies land in the log instead of a customer channel.
type logOutbound struct{}

func (logOutbound) SendMessage(_ context.Context, conversationID, text string, channel models.Channel) error {
	slog.Info("Outbound message (no delivery webhook configured)",
		"conversation_id", conversationID, "channel", channel, "text", text)
	return nil
}

func (logOutbound) SendTyping(_ context.Context, _ string, _ models.Channel) error {
	return nil
}

func (logOutbound) EscalateToHuman(_ context.Context, conversationID, reason, _ string, _ models.Channel) error {
	slog.Info("Outbound escalation (no delivery webhook configured)",
		"conversation_id", conversationID, "reason", reason)
	return nil
}

// vaultKey resolves the PII vault key material. Without configured material
// an ephemeral key is generated; tokens then do not survive a restart.
func vaultKey(envName string) []byte {
	if envName != "" {
		if key := os.Getenv(envName); key != "" {
			return []byte(key)
		}
	}
	slog.Warn("PII vault key not configured, using an ephemeral key",
		"env", envName)
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		slog.Error("Failed to generate ephemeral vault key", "error", err)
		os.Exit(1)
	}
	return key
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting Resolvr",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	ctx := context.Background()

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// Redis is optional: without it every store falls back to its in-memory
	// backend, suitable for a single replica.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid redis_url", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		slog.Info("Connected to Redis")
	} else {
		slog.Warn("No redis_url configured, using in-memory backends")
	}

	m := metrics.New()
	tracker := health.NewTracker(cfg.Health.FailureThreshold, cfg.Health.CircuitReset, m)
	cacheStore := cache.New(rdb, tracker)

	var chain audit.Chain
	if rdb != nil {
		chain = audit.NewRedisChain(rdb)
	} else {
		chain = audit.NewMemoryChain()
	}

	vault, err := piivault.New(rdb, vaultKey(cfg.PIIKeyEnv))
	if err != nil {
		slog.Error("Failed to initialize PII vault", "error", err)
		os.Exit(1)
	}

	store := convstore.New(rdb)
	flowStore := flows.NewStore(rdb)
	vocRecords := voc.NewRecordStore(rdb)
	orderIndex := tools.NewOrderIndex(rdb)

	// External systems: each connector is wired only when its base URL is
	// configured; builtin tools over a missing collaborator are disabled.
	connCfg := connectors.FromEnv()
	collaborators := tools.Collaborators{}
	var ticketing orchestrator.Ticketing
	if connCfg.OMSBaseURL != "" {
		collaborators.OMS = connectors.NewOMSClient(connCfg)
	}
	if connCfg.TrackingBaseURL != "" {
		collaborators.Tracking = connectors.NewTrackingClient(connCfg)
	}
	if connCfg.PaymentsBaseURL != "" {
		collaborators.Payments = connectors.NewPaymentsClient(connCfg)
	}
	if connCfg.TicketingBaseURL != "" {
		tc := connectors.NewTicketingClient(connCfg)
		collaborators.Handoff = tc
		ticketing = tc
	}
	if connCfg.KnowledgeBaseURL != "" {
		collaborators.Knowledge = connectors.NewKnowledgeClient(connCfg)
	}
	var profiles customer.ProfileLoader
	if connCfg.Customer360BaseURL != "" {
		profiles = connectors.NewProfileClient(connCfg)
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, collaborators, orderIndex); err != nil {
		slog.Error("Failed to register tools", "error", err)
		os.Exit(1)
	}
	runtime := tools.NewRuntime(registry, cacheStore, tracker, chain, m, cfg.Tools)
	slog.Info("Tool runtime initialized", "tools", len(registry.List()))

	llmClient, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	agentCore := agent.NewCore(llmClient, cfg.LLM, m, tracker)

	notifier := notify.NewService(cfg.Slack)
	slaEngine := sla.NewEngine(cfg.SLA, rdb, notifier, m)
	collector := learning.NewCollector(nil, learning.DefaultQueueSize)

	var outbound orchestrator.ChannelOutbound = logOutbound{}
	if connCfg.OutboundBaseURL != "" {
		outbound = connectors.NewOutboundWebhook(connCfg)
	}

	var skillRouter routing.SkillRouter
	if router := routing.NewSkillRouterFromConfig(cfg.Agents); router != nil {
		skillRouter = router
		slog.Info("Skill router initialized", "agents", len(cfg.Agents))
	}

	orch := orchestrator.New(orchestrator.Deps{
		Config:      cfg,
		Store:       store,
		Linker:      customer.NewLinker(customer.NewSessionIndex(rdb), store),
		Profiles:    profiles,
		SLA:         slaEngine,
		VOC:         voc.NewProcessor(m),
		VOCRecords:  vocRecords,
		Proactive:   proactive.NewChecker(runtime, orderIndex),
		Agent:       agentCore,
		Runtime:     runtime,
		Experiments: experiment.NewEngine(nil),
		Escalation:  routing.NewEscalationPolicy(m),
		SkillRouter: skillRouter,
		Learning:    collector,
		Notifier:    notifier,
		Audit:       chain,
		Outbound:    outbound,
		Ticketing:   ticketing,
		Vault:       vault,
		Metrics:     m,
	})

	pool := dispatch.NewPool(cfg.Dispatch, orch)
	pool.Start()

	server := api.NewServer(api.Deps{
		Config:     cfg,
		AdminKey:   os.Getenv(cfg.AdminAPIKeyEnv),
		Pool:       pool,
		Store:      store,
		Flows:      flowStore,
		Vault:      vault,
		Audit:      chain,
		Health:     tracker,
		Metrics:    m,
		Agent:      agentCore,
		Runtime:    runtime,
		Knowledge:  collaborators.Knowledge,
		VOCRecords: vocRecords,
		SLA:        slaEngine,
	})
	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Resolvr started",
		"workers", cfg.Dispatch.WorkerCount,
		"tenants", cfg.Stats().Tenants)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Stop the HTTP server first so no new messages are accepted, then drain
	// the dispatch pool, then flush the learning queue.
	httpCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	pool.Stop()

	drainCtx, drainCancel := context.WithTimeout(ctx, 10*time.Second)
	defer drainCancel()
	if err := collector.Stop(drainCtx); err != nil {
		slog.Warn("Learning collector did not drain in time", "error", err)
	}

	slog.Info("Shutdown complete")
}
