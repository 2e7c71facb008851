package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership_compliance_bot/internal/app"
	"membership_compliance_bot/internal/domain/compliance"
	"membership_compliance_bot/internal/infra/config"
	idb "membership_compliance_bot/internal/infra/database"
	"membership_compliance_bot/internal/infra/logger"
	"membership_compliance_bot/internal/infra/metrics"
	"membership_compliance_bot/internal/infra/scheduler"
	"membership_compliance_bot/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.WithField("environment", cfg.Environment).Info("Membership compliance bot starting")

	loc := cfg.Location()

	// Database and repositories
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	ledgerRepo := idb.NewPostgresLedgerRepository(db)
	exemptionRepo := idb.NewPostgresExemptionRepository(db)
	optInRepo := idb.NewPostgresOptInRepository(db)
	memberRepo := idb.NewPostgresMemberRepository(db)

	// Metrics
	metrics.MustRegister(prometheus.DefaultRegisterer)
	rootCtx, stopMetrics := context.WithCancel(context.Background())
	metrics.StartServer(rootCtx, log, cfg.MetricsAddr)

	// Telegram bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Error("telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.Fatalf("Could not create Telegram bot: %v", err)
	}

	gateway := telegram.NewTelebotGateway(bot, memberRepo, log.WithField("component", "gateway"))

	// Application services
	roles := app.NewStaticRoleResolver(cfg.OwnerTelegramID, cfg.SuperAdminIDs, cfg.ModelIDs, gateway)
	ledgerService := app.NewLedgerService(ledgerRepo, cfg.HouseEntityIDs, loc, log.WithField("component", "ledger"))
	exemptionService := app.NewExemptionService(exemptionRepo, log.WithField("component", "exemptions"))
	optInService := app.NewOptInService(optInRepo, cfg.WatchedGroupIDs, log.WithField("component", "optin"))
	dispatcher := app.NewDispatcher(gateway, optInService, cfg.DispatchDelay, log.WithField("component", "dispatcher"))

	defaultPolicy := compliance.SimplePolicy(cfg.MinCents, cfg.MinGames)
	altPolicy := compliance.DiversityPolicy(cfg.MinCents, cfg.MinEntities)
	sweepService := app.NewSweepService(
		gateway,
		ledgerService,
		exemptionService,
		roles,
		dispatcher,
		cfg.OperatorChatID,
		cfg.WatchedGroupIDs,
		defaultPolicy,
		altPolicy,
		log.WithField("component", "sweeps"),
	)
	log.Info("Application services initialized")

	// Pipeline scheduler
	pipeline := scheduler.NewPipelineScheduler(
		sweepService,
		exemptionService,
		log.WithField("component", "scheduler"),
		loc,
		cfg.CronSpecMidMonth,
		cfg.CronSpecFinalWarning,
		cfg.CronSpecMonthlySweep,
	)
	pipeline.Start()

	// Handlers
	handlerCtx := context.Background()
	telegram.RegisterOperatorHandlers(handlerCtx, bot, telegram.OperatorDeps{
		Ledger:         ledgerService,
		Exemptions:     exemptionService,
		OptIn:          optInService,
		Sweeps:         sweepService,
		Roles:          roles,
		DefaultGroupID: cfg.WatchedGroupIDs[0],
	}, log.WithField("component", "operator_handlers"))
	telegram.RegisterMemberHandlers(handlerCtx, bot, memberRepo, optInService, log.WithField("component", "member_handlers"))
	log.Info("Handlers registered, bot starting")

	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	pipeline.Stop()
	bot.Stop()
	stopMetrics()
	log.Info("Application shut down gracefully")
}
