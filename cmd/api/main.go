package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Abdallahnangere/SaukinKarshe/internal/config"
	gateway "github.com/Abdallahnangere/SaukinKarshe/internal/gateways"
	"github.com/Abdallahnangere/SaukinKarshe/internal/handlers"
	"github.com/Abdallahnangere/SaukinKarshe/internal/processor"
	"github.com/Abdallahnangere/SaukinKarshe/internal/repository"
	"github.com/Abdallahnangere/SaukinKarshe/internal/services"
	xhttp "github.com/Abdallahnangere/SaukinKarshe/pkg/http"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/pg"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/prom"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/redis"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
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

	flutterwave, err := gateway.NewFlutterwaveClient(gateway.FlutterwaveConfig{
		BaseURL:   config.Get().FlutterwaveBaseURL,
		SecretKey: config.Get().FlutterwaveSecretKey,
		Timeout:   config.Get().FlutterwaveTimeout,
	})
	if err != nil {
		logger.Error("failed to create flutterwave client", "error", err)
		return
	}

	amigo, err := gateway.NewAmigoClient(gateway.AmigoConfig{
		BaseURL: config.Get().AmigoBaseURL,
		APIKey:  config.Get().AmigoAPIKey,
		Timeout: config.Get().AmigoTimeout,
	})
	if err != nil {
		logger.Error("failed to create amigo client", "error", err)
		return
	}

	purchaseRepo := repository.NewPurchaseRepository(db)
	planRepo := repository.NewDataPlanRepository(db)
	productRepo := repository.NewProductRepository(db)
	attemptRepo := repository.NewFulfillmentAttemptRepository(db)

	dedupe := processor.NewDedupeService(redisAdap, processor.DefaultDedupeConfig())
	confirmations := processor.NewProcessor(purchaseRepo, planRepo, attemptRepo, flutterwave, amigo, dedupe)

	// services
	purchaseService := services.NewPurchaseService(purchaseRepo, planRepo, productRepo, services.BankDetails{
		Bank:          config.Get().BankName,
		AccountNumber: config.Get().BankAccountNumber,
		AccountName:   config.Get().BankAccountName,
	})
	healthService := services.NewHealthService(db, redisAdap)

	// v1 handlers
	purchaseHandler := handlers.NewPurchaseHandler(purchaseService, confirmations)
	if config.Get().FlutterwaveWebhookSecret == "" {
		logger.Error("FLUTTERWAVE_WEBHOOK_SECRET is not set, refusing to accept unsigned webhooks")
		return
	}
	webhookHandler := handlers.NewWebhookHandler(confirmations, config.Get().FlutterwaveWebhookSecret)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterPurchaseRoutes(g, purchaseHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

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

	if config.Get().AppDebugMetricsAddr != "" {
		go func() {
			prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

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
