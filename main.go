package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/alertevent"
	"github.com/Ramsey-B/clover/internal/repositories/block"
	"github.com/Ramsey-B/clover/internal/repositories/crossedpath"
	"github.com/Ramsey-B/clover/internal/repositories/encounter"
	"github.com/Ramsey-B/clover/internal/repositories/user"
	"github.com/Ramsey-B/clover/pkg/alerts"
	"github.com/Ramsey-B/clover/pkg/cleanup"
	"github.com/Ramsey-B/clover/pkg/crossings"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/encounters"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/locations"
	"github.com/Ramsey-B/clover/pkg/markers"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/proximity"
	"github.com/Ramsey-B/clover/pkg/redis"
	adminroutes "github.com/Ramsey-B/clover/pkg/routes/admin"
	alertroutes "github.com/Ramsey-B/clover/pkg/routes/alerts"
	"github.com/Ramsey-B/clover/pkg/routes/crossedpaths"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/history"
	locationroutes "github.com/Ramsey-B/clover/pkg/routes/locations"
	"github.com/Ramsey-B/clover/pkg/routes/nearby"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to set up tracing")
			os.Exit(1)
		}
		defer shutdown(ctx)
	}

	db, err := database.Connect(database.ConnectConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	// Repositories
	userRepo := user.NewRepository(db, logger)
	blockRepo := block.NewRepository(db, logger)
	pathRepo := crossedpath.NewRepository(db, logger)
	encounterRepo := encounter.NewRepository(db, logger)
	alertRepo := alertevent.NewRepository(db, logger)

	// Services
	matcher := proximity.NewEngine(logger, userRepo, blockRepo, proximity.DefaultConfig())
	crossingService := crossings.NewService(logger, pathRepo, userRepo, producer, crossings.DefaultConfig())
	encounterService := encounters.NewService(logger, encounterRepo, userRepo, encounters.DefaultConfig())
	alertService := alerts.NewService(logger, alertRepo, userRepo, matcher, alerts.DefaultConfig())
	locationService := locations.NewService(logger, userRepo, matcher, crossingService, encounterService, locations.DefaultConfig())
	markerService := markers.NewService(logger, userRepo, matcher)

	locker := redis.NewLocker(redisClient, cfg.AppName+":")
	janitor := cleanup.NewJanitor(alertRepo, encounterRepo, locker, cleanup.Config{
		Interval:  cfg.CleanupInterval,
		BatchSize: cfg.CleanupBatchSize,
	}, logger)

	if err := registerDependencies(logger, userRepo, blockRepo, pathRepo, encounterRepo, alertRepo,
		locationService, crossingService, encounterService, alertService, markerService, janitor); err != nil {
		logger.WithError(err).Error("Failed to register dependencies")
		os.Exit(1)
	}

	if cfg.CleanupEnabled {
		if err := janitor.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start cleanup janitor")
			os.Exit(1)
		}
	}

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaLocationTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, func(ctx context.Context, update *kafka.LocationUpdate) error {
			_, err := locationService.RecordLocation(ctx, update.UserID, update.Latitude, update.Longitude, time.Now().UTC())
			return err
		})
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start kafka consumer")
			os.Exit(1)
		}
	}

	checker := health.NewChecker(db, redisClient, version)
	e := newServer(cfg, logger, checker)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		checker.SetReady(true)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}
	if cfg.CleanupEnabled {
		if err := janitor.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Janitor shutdown failed")
		}
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	if cfg.PrettyLogs {
		zapLogger, _ = zap.NewDevelopment()
	} else {
		zapConfig := zap.NewProductionConfig()
		if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
		zapLogger, _ = zapConfig.Build()
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func newServer(cfg config.Config, logger ectologger.Logger, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		api.Use(middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID))
	}

	users := api.Group("/users")
	locationroutes.Register(users)
	nearby.Register(users)
	crossedpaths.Register(users)
	history.Register(users)
	alertroutes.Register(users)

	pairs := api.Group("/crossed-paths")
	crossedpaths.RegisterPair(pairs)

	admin := api.Group("/admin")
	adminroutes.Register(admin)

	return e
}

func runMigrations(cfg config.Config, db database.DB, logger ectologger.Logger) error {
	instance, ok := db.(*database.DatabaseInstance)
	if !ok {
		return fmt.Errorf("unexpected database instance type %T", db)
	}

	driver, err := migratepg.WithInstance(instance.DB.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return migrationService.Migrate(cfg.DatabaseName, driver)
}

func registerDependencies(
	logger ectologger.Logger,
	userRepo *user.Repository,
	blockRepo *block.Repository,
	pathRepo *crossedpath.Repository,
	encounterRepo *encounter.Repository,
	alertRepo *alertevent.Repository,
	locationService *locations.Service,
	crossingService *crossings.Service,
	encounterService *encounters.Service,
	alertService *alerts.Service,
	markerService *markers.Service,
	janitor *cleanup.Janitor,
) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*user.Repository](container, userRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*block.Repository](container, blockRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*crossedpath.Repository](container, pathRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*encounter.Repository](container, encounterRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*alertevent.Repository](container, alertRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*locations.Service](container, locationService); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*crossings.Service](container, crossingService); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*encounters.Service](container, encounterService); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*alerts.Service](container, alertService); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*markers.Service](container, markerService); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*cleanup.Janitor](container, janitor); err != nil {
		return err
	}

	return nil
}

func setupTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingInsecure,
	})
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	return tp.Shutdown, nil
}
