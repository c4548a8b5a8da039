// Package server wires the trust registries, oracles, issuer and event sinks
// into one gin router.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/auth"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/config"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/events"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/feeder"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/issuer"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/metrics"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/oracles"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/reports"
	"carbon-scribe/credit-issuer/credit-issuer-backend/internal/trust"
	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/txn"
)

// App holds the wired components.
type App struct {
	Router  *gin.Engine
	Average *oracles.AverageOracle
	Project *oracles.ProjectOracle
	Issuer  *issuer.Issuer
	Bus     *events.Bus
	Hub     *events.Hub
	Feeder  *feeder.Feeder
	Auth    *auth.Authenticator
}

// Models lists every gorm model for AutoMigrate.
func Models() []any {
	return []any{
		&trust.TrustedSource{},
		&oracles.AverageEmissions{},
		&oracles.OracleProject{},
		&issuer.IssuerProject{},
		&issuer.IssuerMint{},
		&issuer.IssuerState{},
		&events.Record{},
	}
}

type repositories struct {
	trust   trust.Repository
	average oracles.AverageRepository
	project oracles.ProjectRepository
	issuer  issuer.Repository
	events  events.Repository
}

func newRepositories(db *gorm.DB) repositories {
	if db == nil {
		return repositories{
			trust:   trust.NewMemoryRepository(),
			average: oracles.NewMemoryAverageRepository(),
			project: oracles.NewMemoryProjectRepository(),
			issuer:  issuer.NewMemoryRepository(),
			events:  events.NewMemoryRepository(),
		}
	}
	return repositories{
		trust:   trust.NewRepository(db),
		average: oracles.NewAverageRepository(db),
		project: oracles.NewProjectRepository(db),
		issuer:  issuer.NewRepository(db),
		events:  events.NewRepository(db),
	}
}

// New builds the application. db nil selects the in-memory stores. sinks are
// attached to the event bus after the audit store and the websocket hub.
func New(cfg *config.Config, db *gorm.DB, reg prometheus.Registerer, logger *zap.Logger, sinks ...events.Sink) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := metrics.New(reg)
	repos := newRepositories(db)
	exec := txn.NewSerial(db)

	hub := events.NewHub(logger)
	bus := events.NewBus(logger, events.NewStoreSink(repos.events), hub)
	for _, sink := range sinks {
		bus.Attach(sink)
	}

	averageRegistry := trust.NewRegistry(oracles.AverageRegistryName, cfg.AverageAdmin(), repos.trust, exec, bus, recorder, logger)
	projectRegistry := trust.NewRegistry(oracles.ProjectRegistryName, cfg.ProjectAdmin(), repos.trust, exec, bus, recorder, logger)
	average := oracles.NewAverageOracle(averageRegistry, repos.average, exec, bus, recorder, logger)
	project := oracles.NewProjectOracle(projectRegistry, repos.project, exec, bus, recorder, logger)

	credits := issuer.NewIssuer(issuer.Options{
		Name:     cfg.Issuer.Name,
		Symbol:   cfg.Issuer.Symbol,
		Admin:    common.HexToAddress(cfg.Issuer.Admin),
		Scale:    cfg.Issuer.Scale,
		MintUnit: cfg.Issuer.MintUnit,
	}, repos.issuer, oracles.NewSource(average, project), exec, bus, recorder, logger)

	authenticator := auth.NewAuthenticator(cfg.Security.JWTSecret, cfg.Security.AllowHeaderIdentity)

	app := &App{
		Average: average,
		Project: project,
		Issuer:  credits,
		Bus:     bus,
		Hub:     hub,
		Auth:    authenticator,
	}
	if cfg.Feeder.Enabled {
		app.Feeder = feeder.New(feeder.Config{
			Schedule: cfg.Feeder.Schedule,
			URL:      cfg.Feeder.URL,
			Source:   common.HexToAddress(cfg.Feeder.Source),
			Timeout:  cfg.Feeder.Timeout,
		}, average, recorder, logger)
	}

	app.Router = newRouter(app, repos.events, reg, cfg.Security.TokenTTL, logger)
	return app
}

func newRouter(app *App, eventsRepo events.Repository, reg prometheus.Registerer, tokenTTL time.Duration, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors())

	secured := app.Auth.Middleware()
	api := router.Group("/api/v1")
	{
		auth.RegisterRoutes(api, auth.NewHandler(app.Auth, tokenTTL))
		oracles.NewHandler(app.Average, app.Project).RegisterRoutes(api, secured)
		issuer.NewHandler(app.Issuer).RegisterRoutes(api, secured)
		events.NewHandler(eventsRepo, app.Hub).RegisterRoutes(api)
		reports.NewHandler(reports.NewService(app.Issuer, eventsRepo)).RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"subscribers": app.Hub.Subscribers(),
		})
	})

	if gatherer, ok := reg.(prometheus.Gatherer); ok {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// Start launches background jobs.
func (a *App) Start(ctx context.Context) error {
	if a.Feeder != nil {
		return a.Feeder.Start(ctx)
	}
	return nil
}

// Close stops background jobs and disconnects websocket subscribers.
func (a *App) Close() {
	if a.Feeder != nil {
		a.Feeder.Stop()
	}
	a.Hub.Close()
}

// CORS Middleware
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Caller-Address, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
