package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/messaging-gateway/internal/capability"
	"github.com/nimasrn/messaging-gateway/internal/config"
	gateway "github.com/nimasrn/messaging-gateway/internal/gateways"
	"github.com/nimasrn/messaging-gateway/internal/notifier"
	"github.com/nimasrn/messaging-gateway/internal/processor"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/internal/router"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
	"github.com/nimasrn/messaging-gateway/pkg/pg"
	"github.com/nimasrn/messaging-gateway/pkg/prom"
	"github.com/nimasrn/messaging-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	messageRepo := repository.NewMessageRepository(db)
	brandRepo := repository.NewBrandRepository(db)
	capabilityRepo := repository.NewCapabilityRepository(db)
	vsmsKeyRepo := repository.NewVSMSKeyRepository(db)

	gbmClient := gateway.NewGBMClient(gateway.GBMConfig{
		BaseURL:     config.Get().GBMEndpoint,
		AccessToken: config.Get().GBMAccessToken,
	})
	rcsClient := gateway.NewRCSClient(gateway.RCSConfig{
		BaseURL: config.Get().RCSEndpoint,
	})
	smsClient := gateway.NewSMSClient(gateway.SMSConfig{
		BaseURL:           config.Get().SMSEndpoint,
		StatusCallbackURL: config.Get().ExternalURLBase + "/webhooks/sms/status",
	})
	vsmsClient := gateway.NewVSMSClient(gateway.VSMSConfig{
		BaseURL:     config.Get().VSMSEndpoint,
		AccessToken: config.Get().VSMSAccessToken,
	})

	registry := capability.NewRegistry(capabilityRepo, rcsClient)

	messageRouter := router.New(
		router.Config{CalendarBaseURL: config.Get().ExternalURLBase},
		messageRepo,
		brandRepo,
		registry,
		vsmsKeyRepo,
		gbmClient,
		rcsClient,
		smsClient,
		vsmsClient,
	)

	webhookNotifier := notifier.New(notifier.Config{
		Timeout: config.Get().NotifyTimeout,
	}, messageRepo, brandRepo)

	idempotencyConfig := processor.DefaultIdempotencyConfig()
	idempotencyService := processor.NewIdempotencyService(redisAdap, idempotencyConfig)

	dispatchService, err := processor.NewProcessorService(redisAdap, config.Get().DispatchQueueConfig())
	if err != nil {
		logger.Error("failed to create dispatch service", "error", err)
		return
	}
	dispatchService.RegisterProcessor(processor.NewDispatchProcessor(messageRouter, messageRepo, idempotencyService))

	notifyService, err := processor.NewProcessorService(redisAdap, config.Get().NotifyQueueConfig())
	if err != nil {
		logger.Error("failed to create notify service", "error", err)
		return
	}
	notifyService.RegisterProcessor(processor.NewNotifyProcessor(webhookNotifier, idempotencyService))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		if err := dispatchService.Start(); err != nil {
			logger.Error("failed to start dispatch service", "error", err)
		}
	}()
	go func() {
		if err := notifyService.Start(); err != nil {
			logger.Error("failed to start notify service", "error", err)
		}
	}()

	select {
	case <-c:
		dispatchService.Stop()
		notifyService.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
