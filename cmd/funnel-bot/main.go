package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/risk-funnel-bot/internal/bot"
	"github.com/ducminhle1904/risk-funnel-bot/internal/broker"
	"github.com/ducminhle1904/risk-funnel-bot/internal/broker/bybit"
	"github.com/ducminhle1904/risk-funnel-bot/internal/config"
	"github.com/ducminhle1904/risk-funnel-bot/internal/journal"
	"github.com/ducminhle1904/risk-funnel-bot/internal/liquidator"
	"github.com/ducminhle1904/risk-funnel-bot/internal/logger"
	"github.com/ducminhle1904/risk-funnel-bot/internal/monitoring"
	"github.com/ducminhle1904/risk-funnel-bot/internal/notifications"
	"github.com/ducminhle1904/risk-funnel-bot/internal/pipeline"
	"github.com/ducminhle1904/risk-funnel-bot/internal/risk"
	"github.com/ducminhle1904/risk-funnel-bot/internal/staleness"
	"github.com/ducminhle1904/risk-funnel-bot/internal/state"
)

func main() {
	var (
		configFile = flag.String("config", "", "Optional JSON config file overlaying environment variables")
		envFile    = flag.String("env", ".env", "Environment file path")
		logDir     = flag.String("log-dir", "logs", "Directory for session log files")
		paperCash  = flag.Float64("paper-cash", 100000, "Starting cash for the paper broker")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: could not load %s (%v), using environment variables", *envFile, err)
	}

	cfg := config.Load()
	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("🚀 Risk Funnel Bot Starting...")
	fmt.Printf("📊 Symbols: %s\n", strings.Join(cfg.Trading.Symbols, ", "))
	fmt.Printf("⏰ Cycle: %s\n", cfg.Trading.CycleInterval)
	fmt.Printf("🏦 Broker: %s\n", cfg.Broker.Name)
	fmt.Printf("🧪 Dry Run: %v\n", cfg.Trading.DryRun)
	fmt.Println(strings.Repeat("=", 51))

	fileLogger, err := logger.NewLogger(*logDir, cfg.Trading.Symbols)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer fileLogger.Close()

	var notifier notifications.Notifier = notifications.NoopNotifier{}
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.TelegramChatID != "" {
		notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
		fileLogger.Info("Telegram notifications enabled")
	}

	brk := buildBroker(cfg, *paperCash)

	persistence := state.NewPersistence(fileLogger, cfg.State.Dir, cfg.Trading.Symbols, cfg.Staleness.StateMaxAge)
	if err := persistence.Initialize(); err != nil {
		log.Fatalf("Failed to initialize state persistence: %v", err)
	}
	if err := persistence.Load(); err != nil {
		log.Fatalf("Failed to load persisted state: %v", err)
	}

	metrics := persistence.Metrics()
	riskMgr := risk.NewManager(risk.Config{
		RiskPerTradePct:    cfg.Risk.RiskPerTradePct,
		MaxPositionSizePct: cfg.Risk.MaxPositionSizePct,
		MaxDailyLossPct:    cfg.Risk.MaxDailyLossPct,
		MaxDrawdownPct:     cfg.Risk.MaxDrawdownPct,
		MaxConsecutiveLoss: cfg.Risk.MaxConsecutiveLoss,
		UseHalfKelly:       cfg.Risk.UseHalfKelly,
		KellyCap:           cfg.Risk.KellyCap,
		PDTMinEquity:       cfg.Risk.PDTMinEquity,
		PDTMaxDayTrades:    cfg.Risk.PDTMaxDayTrades,
	}, &metrics)

	liq := liquidator.New(liquidator.Config{
		AutoLiquidatePct: cfg.Liquidation.AutoLiquidatePct,
		FullLiquidatePct: cfg.Liquidation.FullLiquidatePct,
		SafeHavens:       cfg.Liquidation.SafeHavens,
	}, brk)

	auditJournal, err := journal.Open(cfg.State.JournalPath)
	if err != nil {
		log.Fatalf("Failed to open audit journal: %v", err)
	}
	defer auditJournal.Close()

	var scorer broker.SentimentScorer
	if cfg.Sentiment.Endpoint != "" {
		scorer = broker.NewHTTPSentimentScorer(cfg.Sentiment.Endpoint, cfg.Sentiment.Timeout)
		fileLogger.Info("Sentiment scoring enabled: %s", cfg.Sentiment.Endpoint)
	} else {
		fileLogger.Warning("No sentiment endpoint configured, sentiment gate will use the neutral default")
	}

	budget := pipeline.NewBudgetController(cfg.Budget.DailyLimit)

	sink := pipeline.MultiSink{
		pipeline.MetricsSink{},
		journal.NewSink(auditJournal, func(err error) {
			fileLogger.LogError("journal", err)
		}),
	}

	pipe := pipeline.New(pipeline.Config{
		SignalThreshold:      cfg.Pipeline.SignalThreshold,
		FilterThreshold:      cfg.Pipeline.FilterThreshold,
		SentimentRejectBelow: cfg.Pipeline.SentimentRejectBelow,
		NeutralSentiment:     cfg.Pipeline.NeutralSentiment,
		RiskPerTradePct:      cfg.Risk.RiskPerTradePct,
		UseKelly:             cfg.Pipeline.UseKellySizing,
		SentimentEstimate:    cfg.Budget.CallEstimate,
	}, budget, scorer, riskMgr, brk, sink)

	health := monitoring.NewHealthChecker()
	startMonitoringServers(cfg, health, fileLogger)

	funnelBot, err := bot.New(bot.Config{
		Symbols:          cfg.Trading.Symbols,
		CycleInterval:    cfg.Trading.CycleInterval,
		AccountMaxAge:    cfg.Staleness.AccountMaxAge,
		MarketDataMaxAge: cfg.Staleness.MarketDataMaxAge,
		StateMaxAge:      cfg.Staleness.StateMaxAge,
	}, bot.Deps{
		Logger:      fileLogger,
		Notifier:    notifier,
		Broker:      brk,
		Source:      bot.NewMomentumSource(brk),
		RiskManager: riskMgr,
		Liquidator:  liq,
		Pipeline:    pipe,
		Budget:      budget,
		Guard:       staleness.NewGuard(),
		Persistence: persistence,
		Journal:     auditJournal,
		Health:      health,
	})
	if err != nil {
		log.Fatalf("Failed to build bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("📝 Session log: %s\n", fileLogger.GetLogPath())

	if err := funnelBot.Run(ctx); err != nil {
		log.Fatalf("Bot stopped with error: %v", err)
	}

	fmt.Println("👋 Bot stopped")
}

// buildBroker selects the execution venue. Dry-run forces the paper
// broker regardless of the configured venue.
func buildBroker(cfg *config.Config, paperCash float64) broker.Broker {
	if cfg.Trading.DryRun || cfg.Broker.Name == "paper" {
		if cfg.Broker.Name == "bybit" {
			fmt.Println("📝 Note: dry-run forces the paper broker, no orders reach bybit")
		}
		return broker.NewPaperBroker(paperCash)
	}

	return bybit.New(bybit.Config{
		APIKey:    cfg.Broker.APIKey,
		APISecret: cfg.Broker.APISecret,
		Testnet:   cfg.Broker.Testnet,
		Demo:      cfg.Broker.Demo,
		Category:  cfg.Broker.Category,
	})
}

// startMonitoringServers exposes /metrics and /health on their
// configured ports.
func startMonitoringServers(cfg *config.Config, health *monitoring.HealthChecker, fileLogger *logger.Logger) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.NewMetricsHandler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Monitoring.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fileLogger.Error("Metrics server failed: %v", err)
		}
	}()
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fileLogger.Error("Health server failed: %v", err)
		}
	}()

	fileLogger.Info("Monitoring: metrics on :%d, health on :%d", cfg.Monitoring.PrometheusPort, cfg.Monitoring.HealthPort)
}
