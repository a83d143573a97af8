package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/capability"
	"github.com/nimasrn/messaging-gateway/internal/config"
	gateway "github.com/nimasrn/messaging-gateway/internal/gateways"
	"github.com/nimasrn/messaging-gateway/internal/queue"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/internal/webhooks"
	xhttp "github.com/nimasrn/messaging-gateway/pkg/http"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
	"github.com/nimasrn/messaging-gateway/pkg/pg"
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

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.TimeoutMiddleware(time.Second * 10))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	notifyQ, err := queue.NewQueue(redisAdap, config.Get().NotifyQueueConfig())
	if err != nil {
		logger.Error("failed creating notify queue", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	brandRepo := repository.NewBrandRepository(db)
	capabilityRepo := repository.NewCapabilityRepository(db)

	rcsClient := gateway.NewRCSClient(gateway.RCSConfig{
		BaseURL: config.Get().RCSEndpoint,
	})
	registry := capability.NewRegistry(capabilityRepo, rcsClient)
	ingest := webhooks.NewIngestor(messageRepo, registry, notifyQ)

	gbmHandler := webhooks.NewGBMWebhookHandler(webhooks.GBMWebhookConfig{
		PartnerKey: config.Get().GBMPartnerKey,
	}, brandRepo, ingest)
	rcsHandler := webhooks.NewRCSWebhookHandler(webhooks.RCSWebhookConfig{
		WebhookToken: config.Get().RCSWebhookToken,
	}, brandRepo, ingest)
	smsHandler := webhooks.NewSMSWebhookHandler(brandRepo, registry, ingest)

	g := s.Router.Group("/webhooks")
	webhooks.RegisterGBMWebhookRoutes(g, gbmHandler)
	webhooks.RegisterRCSWebhookRoutes(g, rcsHandler)
	webhooks.RegisterSMSWebhookRoutes(g, smsHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
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
