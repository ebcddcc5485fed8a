package config

import (
	"time"

	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"

var config *Config

// Config holds every env-sourced value the gateway uses. Only this struct
// may be read for configuration; no direct access to env or any other config
// source should be made elsewhere.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=sauki_gateway"`
	AppDebug            bool   `env:"APP_DEBUG,default=1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	// Flutterwave: payment verification API plus the webhook pre-shared hash.
	FlutterwaveBaseURL       string        `env:"FLUTTERWAVE_BASE_URL,default=https://api.flutterwave.com"`
	FlutterwaveSecretKey     string        `env:"FLUTTERWAVE_SECRET_KEY"`
	FlutterwaveWebhookSecret string        `env:"FLUTTERWAVE_WEBHOOK_SECRET"`
	FlutterwaveTimeout       time.Duration `env:"FLUTTERWAVE_TIMEOUT,default=10s"`

	// Amigo: data-bundle delivery provider.
	AmigoBaseURL string        `env:"AMIGO_BASE_URL,default=https://amigo.ng"`
	AmigoAPIKey  string        `env:"AMIGO_API_KEY"`
	AmigoTimeout time.Duration `env:"AMIGO_TIMEOUT,default=15s"`

	// Static bank-transfer instructions returned on purchase initiation.
	BankName          string `env:"BANK_NAME,default=Wema Bank"`
	BankAccountNumber string `env:"BANK_ACCOUNT_NUMBER"`
	BankAccountName   string `env:"BANK_ACCOUNT_NAME,default=SAUKI MART / FLW"`

	// Reconciler: how old a pending purchase must be before it is re-driven.
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL,default=1m"`
	ReconcileGrace    time.Duration `env:"RECONCILE_GRACE,default=5m"`
	ReconcileBatch    int           `env:"RECONCILE_BATCH,default=100"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
