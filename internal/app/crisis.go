package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"couplecare-crisis/common/database"
	"couplecare-crisis/common/mqtt"
	commonredis "couplecare-crisis/common/redis"
	"couplecare-crisis/internal/aggregator"
	"couplecare-crisis/internal/config"
	"couplecare-crisis/internal/consumer"
	"couplecare-crisis/internal/evaluator"
	httpapi "couplecare-crisis/internal/http"
	"couplecare-crisis/internal/models"
	"couplecare-crisis/internal/notify"
	"couplecare-crisis/internal/repository"
	"couplecare-crisis/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CrisisService wires storage, pipeline, sweep, scheduler and HTTP API
type CrisisService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	pipeline      *service.CrisisPipeline
	coolingOff    *service.CoolingOffService
	safetyChecks  *service.SafetyCheckService
	interventions *service.InterventionService
	sweep         *consumer.SweepConsumer
	scheduler     *consumer.Scheduler
	server        *httpapi.Server
}

// NewCrisisService connects to Postgres, Redis and (optionally) MQTT and builds every layer
func NewCrisisService(cfg *config.Config, logger *zap.Logger) (*CrisisService, error) {
	// 1. storage
	db, err := database.NewPostgresDB(context.Background(), &cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	if err := commonredis.Ping(context.Background(), redisClient); err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	s := &CrisisService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}

	// 2. notifiers
	notifiers := []notify.Notifier{
		notify.NewStreamNotifier(redisClient, cfg.Crisis.Notify.Stream, cfg.Crisis.Notify.StreamMaxLen, logger),
	}
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
		s.mqttClient = mqttClient
		notifiers = append(notifiers, notify.NewMQTTNotifier(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger))
	}
	notifier := notify.NewMultiNotifier(logger, notifiers...)

	// 3. repositories
	coupleRepo := repository.NewCoupleRepository(db, logger)
	signalsRepo := repository.NewSignalsRepository(db, logger)
	scoresRepo := repository.NewCrisisScoresRepository(db, logger)
	interventionsRepo := repository.NewInterventionsRepository(db, logger)
	coolingOffRepo := repository.NewCoolingOffRepository(db, logger)
	safetyChecksRepo := repository.NewSafetyChecksRepository(db, logger)
	hotlinesRepo := repository.NewHotlinesRepository(db, logger)

	// 4. pipeline and services
	agg := aggregator.NewSignalAggregator(coupleRepo, signalsRepo, cfg.Crisis.SignalWindowDays, cfg.Crisis.ConflictWindowDays, logger)
	engine := evaluator.NewEngine(
		interventionsRepo,
		safetyChecksRepo,
		notifier,
		time.Duration(cfg.Crisis.InterventionTTLHours)*time.Hour,
		logger,
	)
	s.pipeline = service.NewCrisisPipeline(agg, scoresRepo, engine, logger)
	s.coolingOff = service.NewCoolingOffService(coolingOffRepo, cfg.Crisis.DefaultCoolingOffHours, logger)
	s.interventions = service.NewInterventionService(interventionsRepo, s.coolingOff, logger)

	var escalator service.Escalator
	escalation := notify.NewEscalationClient(cfg.Crisis.Escalation.WebhookURL, cfg.Crisis.Escalation.Timeout, logger)
	if escalation.Enabled() {
		escalator = escalation
	}
	s.safetyChecks = service.NewSafetyCheckService(safetyChecksRepo, escalator, notifier, logger)

	// 5. sweep
	state := consumer.NewStateManager(redisClient, cfg.Crisis.Sweep.KeyPrefix, cfg.Crisis.Sweep.LeaseTTL, cfg.Crisis.Sweep.SummaryTTL, logger)
	s.sweep = consumer.NewSweepConsumer(coupleRepo, s.pipeline, s.coolingOff, s.interventions, state, cfg.Crisis.Sweep.Workers, logger)
	s.scheduler, err = consumer.NewScheduler(cfg.Crisis.Sweep.Cron, s.sweep, logger)
	if err != nil {
		s.Stop()
		return nil, err
	}

	// 6. HTTP
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Crisis:       httpapi.NewCrisisHandler(s.pipeline, s.interventions, logger),
		CoolingOff:   httpapi.NewCoolingOffHandler(s.coolingOff, logger),
		SafetyChecks: httpapi.NewSafetyCheckHandler(s.safetyChecks, logger),
		Hotlines:     httpapi.NewHotlineHandler(hotlinesRepo, logger),
		Sweep:        httpapi.NewSweepHandler(s.sweep, logger),
		Logger:       logger,
	})
	s.server = httpapi.NewServer(cfg.HTTP.Addr, router, logger)

	return s, nil
}

// Start runs the HTTP server and the sweep scheduler until ctx is done
func (s *CrisisService) Start(ctx context.Context) error {
	s.logger.Info("Starting crisis service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.String("sweep_cron", s.config.Crisis.Sweep.Cron),
		zap.Time("next_sweep", s.scheduler.Next()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.scheduler.Start(gctx)
	})
	g.Go(func() error {
		if err := s.server.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Stop(shutdownCtx)
	})
	return g.Wait()
}

// RunSweep runs one sweep immediately
func (s *CrisisService) RunSweep(ctx context.Context, asOf time.Time) (*models.SweepSummary, error) {
	return s.sweep.Sweep(ctx, asOf)
}

// IsInCoolingOff reports whether the couple is in a live cooling-off period
func (s *CrisisService) IsInCoolingOff(ctx context.Context, coupleID string) (bool, error) {
	return s.coolingOff.IsActive(ctx, coupleID)
}

// ComputeScore recomputes the couple's score as an explicit result
func (s *CrisisService) ComputeScore(ctx context.Context, coupleID string) service.ScoreResult {
	return s.pipeline.ComputeScore(ctx, coupleID)
}

// Stop releases connections
func (s *CrisisService) Stop() error {
	s.logger.Info("Stopping crisis service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := commonredis.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	return nil
}
