package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zariya-jewels/backend-store/internal/common"
	"github.com/zariya-jewels/backend-store/internal/config"
	"github.com/zariya-jewels/backend-store/internal/obs"
	"github.com/zariya-jewels/backend-store/internal/reminder"
	"github.com/zariya-jewels/backend-store/internal/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "zariya")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	if !cfg.ReminderEnabled {
		logger.Info().Msg("reminder disabled, worker idle exit")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(initCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(initCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	asynqRedis := asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}

	scanner := &reminder.Scanner{
		Store:     repo.NewPayments(pool),
		Email:     common.LogEmailSender{Logger: logger},
		Logger:    logger,
		StaleAge:  cfg.ReminderStaleAge,
		BatchSize: cfg.ReminderBatchSize,
	}

	scheduler := asynq.NewScheduler(asynqRedis, &asynq.SchedulerOpts{})
	task, err := reminder.NewScanTask()
	if err != nil {
		logger.Fatal().Err(err).Msg("build scan task")
	}
	cron := "@every " + cfg.ReminderInterval.String()
	if _, err := scheduler.Register(cron, task); err != nil {
		logger.Fatal().Err(err).Msg("register scan schedule")
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()
	defer scheduler.Shutdown()

	srv := asynq.NewServer(asynqRedis, asynq.Config{
		Concurrency: 2,
		Logger:      asynqLogger{logger},
	})
	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.Info().Str("interval", cfg.ReminderInterval.String()).Msg("worker starting")
	if err := srv.Run(reminder.Mux(scanner)); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger adapts zerolog to asynq's logger interface.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmtArgs(args)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmtArgs(args)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmtArgs(args)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmtArgs(args)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmtArgs(args)) }

func fmtArgs(args []any) string {
	return strings.TrimSpace(fmt.Sprintln(args...))
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
