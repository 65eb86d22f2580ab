package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signon/internal/directory"
	"signon/internal/directory/auth"
	"signon/internal/directory/azuread"
	"signon/internal/directory/delius"
	"signon/internal/directory/nomis"
	"signon/internal/identity"
	"signon/internal/mfa"
	"signon/internal/notify"
	"signon/internal/platform/config"
	"signon/internal/platform/httpserver"
	"signon/internal/platform/logger"
	"signon/internal/platform/metrics"
	"signon/internal/platform/postgres"
	"signon/internal/platform/redis"
	"signon/internal/retries"
	"signon/internal/session"
	"signon/internal/token"
	httptransport "signon/internal/transport/http"
	"signon/internal/verify"
	"signon/pkg/audit"
)

// main wires the stores, directories, and services, then runs the HTTP
// server until interrupted. Business rules live in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var health []httptransport.HealthCheck

	// Stores fall back to memory when no backing service is configured,
	// which keeps local development dependency free.
	var userStore auth.UserStore = auth.NewInMemoryUserStore()
	var retryStore retries.Store = retries.NewInMemoryStore()
	var tokenStore token.Store = token.NewInMemoryStore()

	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		userStore = auth.NewPostgres(db)
		retryStore = retries.NewPostgres(db)
		tokenStore = token.NewPostgres(db)
		health = append(health, httptransport.HealthCheck{
			Name:  "postgres",
			Check: db.PingContext,
		})
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		// Tokens are hot, short lived state; prefer Redis for them when it
		// is available.
		tokenStore = token.NewRedis(redisClient.Client)
		health = append(health, httptransport.HealthCheck{
			Name:  "redis",
			Check: redisClient.Health,
		})
	}

	var auditor audit.Publisher = audit.Noop{}
	if len(cfg.AuditBrokers) > 0 {
		kafka, err := audit.NewKafka(cfg.AuditBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("audit publisher setup failed", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		auditor = kafka
	}

	authDir := auth.NewDirectory(userStore)
	nomisDir := nomis.NewClient(cfg.Directory.PrisonBaseURL, cfg.Directory.Timeout)
	deliusDir := delius.NewClient(cfg.Directory.ProbationBaseURL, cfg.Directory.Timeout)

	resolverOpts := []identity.ResolverOption{identity.WithLogger(log)}
	dirs := []directory.Directory{authDir, nomisDir, deliusDir}
	if cfg.Directory.FederatedBaseURL != "" {
		azureDir := azuread.NewClient(cfg.Directory.FederatedBaseURL, cfg.Directory.Timeout)
		resolverOpts = append(resolverOpts, identity.WithAzure(azureDir))
		dirs = append(dirs, azureDir)
	}
	resolver := identity.NewResolver(authDir, nomisDir, deliusDir, resolverOpts...)

	tokenSvc, err := token.New(tokenStore, cfg.Tokens,
		token.WithLogger(log), token.WithAuditPublisher(auditor), token.WithMetrics(m))
	if err != nil {
		log.Error("token service setup failed", "error", err)
		os.Exit(1)
	}

	// Locking writes through the local store; externally mastered accounts
	// without a local row get an alias row created on first lock.
	locker := identity.NewLocker(userStore, resolver)

	retrySvc, err := retries.New(retryStore, locker, cfg.Retries.LockoutThreshold,
		retries.WithLogger(log), retries.WithAuditPublisher(auditor), retries.WithMetrics(m))
	if err != nil {
		log.Error("retry service setup failed", "error", err)
		os.Exit(1)
	}

	verifier, err := verify.New(resolver, retrySvc, dirs,
		verify.WithLogger(log), verify.WithAuditPublisher(auditor), verify.WithMetrics(m))
	if err != nil {
		log.Error("verifier setup failed", "error", err)
		os.Exit(1)
	}

	var sender notify.Sender = notify.Noop{}
	if cfg.Notify.BaseURL != "" {
		sender = notify.NewClient(cfg.Notify, cfg.Directory.Timeout)
	}

	engine, err := mfa.New(tokenSvc, retrySvc, resolver, sender,
		mfa.NewRememberMe(cfg.RememberMe), cfg.Notify,
		mfa.WithLogger(log), mfa.WithAuditPublisher(auditor), mfa.WithMetrics(m),
		mfa.WithPreferenceStore(userStore))
	if err != nil {
		log.Error("mfa engine setup failed", "error", err)
		os.Exit(1)
	}

	signer := session.NewSigner(cfg.Session)

	handler := httptransport.NewHandler(httptransport.HandlerConfig{
		Logger:        log,
		Verifier:      verifier,
		Mfa:           engine,
		Resolver:      resolver,
		Tokens:        tokenSvc,
		Passwords:     userStore,
		Unlocker:      retrySvc,
		Sessions:      signer,
		ResetSender:   sender,
		SessionVerify: signer,
		Notify:        cfg.Notify,
		TrustedCIDRs:  cfg.Mfa.TrustedCIDRs,
		HealthChecks:  health,
	})

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	log.Info("starting signon", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("signon stopped")
}
