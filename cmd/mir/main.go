package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/maritimeconnect/mir/pkg/api"
	"github.com/maritimeconnect/mir/pkg/certificates"
	"github.com/maritimeconnect/mir/pkg/config"
	"github.com/maritimeconnect/mir/pkg/directory"
	"github.com/maritimeconnect/mir/pkg/email"
	"github.com/maritimeconnect/mir/pkg/entities"
	"github.com/maritimeconnect/mir/pkg/federation"
	"github.com/maritimeconnect/mir/pkg/observability"
	"github.com/maritimeconnect/mir/pkg/orgs"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting maritime identity registry")

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		logger.WithError(err).Error("failed to reach database")
		os.Exit(1)
	}
	cancel()

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	broker := federation.NewKeycloakClient(realmConfig(cfg.Broker), logger)
	users := federation.NewKeycloakClient(realmConfig(cfg.Users), logger)
	if metrics != nil {
		broker.SetMetrics(metrics)
		users.SetMetrics(metrics)
	}

	reconciler := federation.NewReconciler(broker, logger)
	userDirectory := directory.NewService(users, logger)

	certStore := certificates.NewPostgresStore(db)
	certManager := certificates.NewManager(certStore, certificates.ManagerConfig{
		ValidityPeriod: cfg.Certificates.ValidityPeriod,
	}, logger)
	if metrics != nil {
		certManager.SetMetrics(metrics)
	}

	entityStore := entities.NewPostgresStore(db)
	entityService := entities.NewService(entityStore, certManager, broker, userDirectory, logger)

	sender := email.NewSender(cfg.Email, logger)
	entityService.SetNotifier(sender)

	orgStore := orgs.NewPostgresStore(db)
	orgService := orgs.NewService(orgStore, reconciler, certManager, entityService, userDirectory, sender, logger)

	verifierCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	issuer := fmt.Sprintf("%s/realms/%s", cfg.Broker.BaseURL, cfg.Broker.Realm)
	verifier, err := api.NewOIDCVerifier(verifierCtx, issuer, "")
	cancel()
	if err != nil {
		logger.WithError(err).WithField("issuer", issuer).Error("failed to set up token verifier")
		os.Exit(1)
	}

	server := api.NewServer(api.Dependencies{
		Orgs:     orgService,
		Entities: entityService,
		Certs:    certManager,
		Verifier: verifier,
		Logger:   logger,
		Metrics:  metrics,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@daily", func() {
		auditExpiredCertificates(certManager, metrics, logger)
		gaugeOrganizations(orgService, metrics, logger)
	}); err != nil {
		logger.WithError(err).Error("failed to schedule expiry audit")
		os.Exit(1)
	}
	if metrics != nil {
		if _, err := scheduler.AddFunc("@every 1m", func() {
			metrics.CollectDBStats(db)
		}); err != nil {
			logger.WithError(err).Error("failed to schedule pool stats collection")
			os.Exit(1)
		}
	}
	scheduler.Start()

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
	}

	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("api server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("health server shutdown failed")
	}
	logger.Info("shutdown complete")
}

// auditExpiredCertificates counts certificates whose validity window has
// lapsed without a revocation. Expiry is derived state; the sweep only
// reports it.
func auditExpiredCertificates(manager *certificates.Manager, metrics *observability.Metrics, logger *observability.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	count, err := manager.CountExpired(ctx)
	if err != nil {
		logger.WithError(err).Error("expiry audit failed")
		return
	}
	if metrics != nil {
		metrics.CertificatesExpired.Set(float64(count))
	}
	logger.WithField("expired", count).Info("certificate expiry audit")
}

// gaugeOrganizations refreshes the approved and pending organization gauges
func gaugeOrganizations(service *orgs.Service, metrics *observability.Metrics, logger *observability.Logger) {
	if metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	approved, err := service.List(ctx)
	if err != nil {
		logger.WithError(err).Error("organization gauge refresh failed")
		return
	}
	pending, err := service.ListUnapproved(ctx)
	if err != nil {
		logger.WithError(err).Error("organization gauge refresh failed")
		return
	}
	metrics.OrganizationsTotal.Set(float64(len(approved)))
	metrics.OrganizationsPending.Set(float64(len(pending)))
}

// realmConfig adapts a realm configuration to the federation client
func realmConfig(rc config.RealmConfig) federation.KeycloakConfig {
	return federation.KeycloakConfig{
		BaseURL:       rc.BaseURL,
		Realm:         rc.Realm,
		AdminClientID: rc.AdminClientID,
		AdminUser:     rc.AdminUser,
		AdminPassword: rc.AdminPassword,
		Timeout:       rc.Timeout,
	}
}
