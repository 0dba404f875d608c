package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-zulfiqar/spl-token-manager/internal/cache"
	"github.com/aman-zulfiqar/spl-token-manager/internal/config"
	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/sirupsen/logrus"
)

// subscriber tails the live operation feed published by the engine.
func main() {
	kind := flag.String("kind", "", "only show operations of this kind (e.g. mint_to)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	cfg := config.Load()
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer rc.Close()

	show := func(op *models.OperationEvent) {
		logger.WithFields(logrus.Fields{
			"kind":   op.Kind,
			"status": op.Status,
			"mint":   op.Mint,
			"amount": op.Amount,
			"sig":    op.Signature,
		}).Info("operation")
	}

	if *kind != "" {
		go func() { _ = rc.Subscribe(ctx, constants.PubSubChannelOperations+":kind:"+*kind, show) }()
	} else {
		go func() { _ = rc.Subscribe(ctx, constants.PubSubChannelOperations, show) }()
	}

	// failures get their own line regardless of the filter
	go func() {
		_ = rc.PSubscribe(ctx, constants.PubSubChannelOperations+":kind:*", func(op *models.OperationEvent) {
			if op.Status == "failed" {
				logger.WithField("reason", op.Reason).Warnf("%s failed", op.Kind)
			}
		})
	}()

	logger.Info("subscriber running, press Ctrl+C to stop")
	<-sigChan
	logger.Info("shutting down subscriber")
}
