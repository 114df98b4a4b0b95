package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"auth-api/internal/audit"
	"auth-api/internal/config"
	apphttp "auth-api/internal/http"
	"auth-api/internal/repository"
	"auth-api/internal/repository/postgres"
	"auth-api/internal/repository/sqlite"
	"auth-api/internal/security"
	"auth-api/internal/service"
	"auth-api/internal/storage"
)

var migrateOnStart bool

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply postgres migrations before serving")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeDB, err := openUsers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	hasher, err := security.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("setup hasher: %w", err)
	}
	passwords := security.NewHashPool(hasher, cfg.Hashing.Workers)

	tokens, err := security.NewTokenIssuer(security.TokenConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return fmt.Errorf("setup token issuer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinks := []audit.Sink{audit.NewLogSink(logger), audit.NewMetricsSink(reg)}

	var (
		storageSvc storage.Service
		archive    *audit.ArchiveSink
	)
	if cfg.Audit.Bucket != "" {
		storageSvc, err = buildStorage(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("setup storage: %w", err)
		}
		archive = audit.NewArchiveSink(storageSvc, audit.ArchiveConfig{
			Bucket:        cfg.Audit.Bucket,
			Prefix:        cfg.Audit.Prefix,
			FlushInterval: cfg.Audit.FlushInterval,
			BatchSize:     cfg.Audit.BatchSize,
			Logger:        logger,
		})
		archive.Start(ctx)
		sinks = append(sinks, archive)
	} else {
		logger.Info("audit archive disabled (audit.bucket not set)")
	}
	sink := audit.Multi(sinks...)

	verifier := service.NewCredentialVerifier(users, passwords, sink)
	authService := service.NewAuthService(verifier, tokens)
	registration := service.NewRegistrationService(users, passwords, sink)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.HandlerConfig{
		Auth:         authService,
		Registration: registration,
		Users:        users,
		Storage:      storageSvc,
		AuditBucket:  cfg.Audit.Bucket,
		AuditPrefix:  cfg.Audit.Prefix,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:       logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if archive != nil {
		if err := archive.Close(shutdownCtx); err != nil {
			logger.Warnf("flush audit archive: %v", err)
		}
	}

	logger.Info("bye")
	return nil
}

// openUsers opens the configured user store and returns a function that releases it.
func openUsers(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.UserRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if migrateOnStart {
			version, err := postgres.Migrate(cfg.Database.DSN)
			if err != nil {
				return nil, nil, fmt.Errorf("run migrations: %w", err)
			}
			logger.Infof("schema at version %d", version)
		}
		pool, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		users := postgres.NewUserRepository(pool)
		if err := users.Init(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("init user repository: %w", err)
		}
		return users, pool.Close, nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		users := sqlite.NewUserRepository(db)
		if err := users.Init(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init user repository: %w", err)
		}
		return users, func() { db.Close() }, nil
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Audit.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Audit.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Audit.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving audit events to s3 bucket %s (region %s)", cfg.Audit.Bucket, cfg.Audit.Region)
	return storage.NewS3Service(client), nil
}
