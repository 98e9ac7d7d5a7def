package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/config"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/internal/bootstrap"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
)

// shutdownTimeout bounds how long graceful shutdown waits before forcing
// exit.
const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "link-intelligence-worker",
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config: %v", err)
	}

	worker, cleanup, err := bootstrap.NewWorker(cfg)
	if err != nil {
		logger.Fatal("failed to initialize worker: %v", err)
	}
	defer cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down worker (timeout: %v)...", shutdownTimeout)

		done := make(chan struct{})
		go func() {
			worker.Stop()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("worker shut down gracefully")
		case <-time.After(shutdownTimeout):
			logger.Warn("worker shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	logger.Info("starting worker...")
	if err := worker.Start(); err != nil {
		logger.Fatal("worker exited with error: %v", err)
	}
}
