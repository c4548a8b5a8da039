package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/config"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/server"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/logger"
)

func main() {
	configPath := pflag.String("config", "config.json", "path to the JSON config file")
	migrate := pflag.Bool("migrate", false, "create or update database tables on startup")
	pflag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	var db *gorm.DB
	if cfg.Database.Driver == config.DriverPostgres {
		db = openDatabase(cfg, log)
		if *migrate {
			log.Info("Running migrations")
			if err := db.AutoMigrate(server.Models()...); err != nil {
				log.Fatal("Failed to migrate database", zap.Error(err))
			}
		}
	} else {
		log.Warn("Using in-memory storage, state is lost on restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sinks []events.Sink
	if cfg.Events.SNSTopicARN != "" {
		sink, err := events.NewSNSSinkFromEnv(ctx, cfg.Events.AWSRegion, cfg.Events.SNSTopicARN)
		if err != nil {
			log.Fatal("Failed to configure SNS sink", zap.Error(err))
		}
		sinks = append(sinks, sink)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	app := server.New(cfg, db, reg, log, sinks...)
	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start background jobs", zap.Error(err))
	}

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("issuer", cfg.Issuer.Name),
		zap.String("admin", cfg.Issuer.Admin))

	// Graceful Shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	app.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exiting")
}

func openDatabase(cfg *config.Config, log *zap.Logger) *gorm.DB {
	log.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("db", cfg.Database.DBName))

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{
		Logger: logger.Gorm(log),
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to access connection pool", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	return db
}
