package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "mailsync-backend/cmd/api"
	authUsecase "mailsync-backend/internal/auth/usecase"
	"mailsync-backend/internal/mail/adapter"
	"mailsync-backend/internal/mail/repository"
	"mailsync-backend/internal/mail/scheduler"
	mailUsecase "mailsync-backend/internal/mail/usecase"
	"mailsync-backend/internal/notification"
	"mailsync-backend/pkg/config"
	"mailsync-backend/pkg/credential"
	"mailsync-backend/pkg/database"
	"mailsync-backend/pkg/fcm"
	"mailsync-backend/pkg/gmail"
	"mailsync-backend/pkg/imap"
	"mailsync-backend/pkg/logger"
	"mailsync-backend/pkg/outlook"
)

func main() {
	issueToken := flag.String("issue-token", "", "print an admin API token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the token printed by -issue-token")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithComponent("Main")

	authUc := authUsecase.NewAuthUsecase(cfg.AdminJWTSecret)
	if *issueToken != "" {
		token, err := authUc.IssueToken(*issueToken, *tokenTTL)
		if err != nil {
			log.WithError(err).Fatal("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	providers, err := cfg.Providers()
	if err != nil {
		log.WithError(err).Fatal("Invalid provider configuration")
	}
	if len(providers) == 0 {
		log.Warn("No providers configured; only the admin API will be served")
	}

	// Initialize database
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := repository.Migrate(db); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}
	store := repository.NewStore(db, cfg.StorageTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Notification outputs fall back to the log when FCM is not configured
	var (
		digest  mailUsecase.DigestSender = notification.LogDigestSender{}
		alerter mailUsecase.Alerter      = notification.LogAlerter{}
	)
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize FCM client, notifications will only be logged")
		} else {
			digest = notification.NewFCMDigestSender(fcmClient, cfg.FCMDigestTopic)
			alerter = notification.NewFCMAlerter(fcmClient, cfg.FCMAlertTopic)
			log.Info("FCM client initialized")
		}
	}

	creds := credential.NewEnvProvider(cfg, providers)
	adapters, err := buildAdapters(cfg, providers, creds, store)
	if err != nil {
		log.WithError(err).Fatal("Failed to build provider adapters")
	}

	// Initialize use cases (dependency injection)
	reconciler := mailUsecase.NewThreadReconciler(mailUsecase.RelatednessFromConfig(cfg.SubjectMatch, cfg.SubjectFuzzyThreshold))
	ingest := mailUsecase.NewIngestService(store, reconciler)
	tracker := mailUsecase.NewStateTracker(store.Cursors(), alerter)
	dispatcher := mailUsecase.NewDispatcher(store.Messages(), digest, alerter, mailUsecase.DispatcherConfig{
		Window:      cfg.SweepWindow,
		Batch:       cfg.SweepBatch,
		MaxAttempts: cfg.NotifyMaxAttempts,
	})
	syncUc := mailUsecase.NewSyncUsecase(store, adapters, ingest, tracker, dispatcher, mailUsecase.SyncConfig{
		CycleTimeout: cfg.CycleTimeout,
		Accounts:     pushAccounts(cfg, providers),
	})
	messageUc := mailUsecase.NewMessageUsecase(store)

	worker := mailUsecase.NewTriggerWorker(syncUc, cfg.TriggerWorkers, cfg.TriggerQueueSize)
	syncUc.SetTrigger(worker)
	worker.Start()

	var sched *scheduler.SyncScheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.NewSyncScheduler(worker, scheduleEntries(cfg, providers))
		sched.Start()
	} else {
		log.Info("Scheduler disabled, cycles run on push or admin request only")
	}

	// Pull-mode Pub/Sub feeds the same intake as the push webhook
	if cfg.PubSubPull && cfg.GoogleProjectID != "" && cfg.GooglePubSubTopic != "" {
		sub, err := notification.NewSubscriber(ctx, cfg.GoogleProjectID, cfg.PubSubTopicID(), cfg.GooglePubSubSub, cfg.GoogleCredentials, syncUc)
		if err != nil {
			log.WithError(err).Error("Failed to initialize Pub/Sub subscriber")
		} else {
			defer sub.Close()
			go func() {
				if err := sub.Start(ctx); err != nil {
					log.WithError(err).Error("Pub/Sub subscriber stopped")
				}
			}()
		}
	}

	// Initialize HTTP handler
	handler := api.NewHandler(authUc, syncUc, messageUc, cfg)
	server := handler.Server(":" + cfg.Port)

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
	worker.Stop()
}

func buildAdapters(cfg *config.Config, providers []config.ProviderConfig, creds adapter.CredentialProvider, store repository.Store) ([]adapter.Adapter, error) {
	gmailService := gmail.NewService(cfg.FetchTimeout)
	outlookClient := outlook.NewClient(cfg.FetchTimeout)
	imapClient := imap.NewClient(cfg.IMAPAddr, cfg.IMAPTLS, cfg.FetchTimeout)

	adapters := make([]adapter.Adapter, 0, len(providers))
	for _, p := range providers {
		var (
			changes adapter.ChangeSource
			recent  adapter.RecentSource
		)
		switch p.Kind {
		case config.KindGmail:
			src := adapter.NewGmailSource(p.Name, gmailService, cfg.GmailWatchTopic(), cfg.GmailWatchLabels)
			changes, recent = src, src
		case config.KindOutlook:
			src := adapter.NewOutlookSource(p.Name, outlookClient)
			changes, recent = src, src
		case config.KindIMAP:
			recent = adapter.NewIMAPSource(p.Name, imapClient, cfg.IMAPMailbox)
		default:
			return nil, fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
		}

		switch p.Strategy {
		case config.StrategyCursorReplay:
			if changes == nil {
				return nil, fmt.Errorf("provider %q: %s has no change feed", p.Name, p.Kind)
			}
			adapters = append(adapters, adapter.NewCursorReplay(p.Name, changes, creds, store.Messages()))
		case config.StrategyFullRefetch:
			adapters = append(adapters, adapter.NewFullRefetch(p.Name, recent, creds, p.FetchCount))
		default:
			return nil, fmt.Errorf("provider %q: unknown strategy %q", p.Name, p.Strategy)
		}
	}
	return adapters, nil
}

// pushAccounts maps Gmail mailbox addresses to provider names for push intake
func pushAccounts(cfg *config.Config, providers []config.ProviderConfig) map[string]string {
	accounts := make(map[string]string)
	for _, p := range providers {
		if p.Kind != config.KindGmail {
			continue
		}
		account := p.Account
		if account == "" {
			account = cfg.GmailAccount
		}
		if account == "" {
			logger.WithComponent("Main").WithField("provider", p.Name).Warn("No account configured, push notifications for it will be ignored")
			continue
		}
		accounts[account] = p.Name
	}
	return accounts
}

func scheduleEntries(cfg *config.Config, providers []config.ProviderConfig) []scheduler.Entry {
	entries := make([]scheduler.Entry, 0, len(providers)+2)
	for _, p := range providers {
		entries = append(entries, scheduler.Entry{
			Job:      mailUsecase.TriggerJob{Kind: mailUsecase.JobSync, Provider: p.Name, Reason: "poll"},
			Interval: p.PollInterval,
		})
	}
	entries = append(entries,
		scheduler.Entry{Job: mailUsecase.TriggerJob{Kind: mailUsecase.JobSweep, Reason: "schedule"}, Interval: cfg.SweepInterval},
		scheduler.Entry{Job: mailUsecase.TriggerJob{Kind: mailUsecase.JobRenewWatch, Reason: "schedule"}, Interval: cfg.WatchRenewInterval},
	)
	return entries
}
