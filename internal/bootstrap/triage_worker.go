package bootstrap

import (
	"context"
	"os"
	"sync"
	"time"

	"triage_server/adapter/in/worker"
	"triage_server/adapter/out/messaging"
	"triage_server/config"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"

	"github.com/rs/zerolog"
)

// Worker is the background process consuming queued triage jobs.
type Worker struct {
	consumer *messaging.Consumer
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "triage-worker",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	if deps.Redis == nil {
		cleanup()
		return nil, nil, apperr.ConfigError("worker mode requires REDIS_URL")
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	processor := worker.NewTriageProcessor(deps.TriageService)

	consumer := messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
		Group:    cfg.ConsumerGroup,
		Consumer: cfg.ConsumerID,
		Streams:  []string{messaging.StreamTriageInbound},
		Handler:  processor,
		Logger:   zlog,

		PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
		PendingIdleTime:      time.Duration(cfg.ConsumerPendingIdleSec) * time.Second,
		MaxRetries:           cfg.ConsumerMaxRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		consumer: consumer,
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
	}

	return w, cleanup, nil
}

// Start runs the consumer loop until Stop is called.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Run(w.ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Error("consumer stopped")
		}
	}()

	logger.Info("Worker started")
}

// Stop cancels the consumer and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	logger.Info("Worker stopped")
}
