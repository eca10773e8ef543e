package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseDSN   string `env:"DATABASE_URI"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	GatewayAPIURL string `env:"GATEWAY_API_URL"`
	JWTSecret     string `env:"JWT_SECRET"`

	GatewaySnapURL   string        `env:"GATEWAY_SNAP_URL" envDefault:"https://app.sandbox.midtrans.com"`
	GatewayServerKey string        `env:"GATEWAY_SERVER_KEY"`
	GatewayFinishURL string        `env:"GATEWAY_FINISH_URL"`
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	// KafkaBrokers если список пуст, уведомления пишутся только в лог.
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	NotificationTopic string   `env:"NOTIFICATION_TOPIC" envDefault:"ledger.notifications"`

	HoldingPeriod   time.Duration `env:"HOLDING_PERIOD" envDefault:"72h"`
	PaymentExpiry   time.Duration `env:"PAYMENT_EXPIRY" envDefault:"24h"`
	MinWithdrawal   int64         `env:"MIN_WITHDRAWAL" envDefault:"50000"`
	ReleaseSchedule string        `env:"RELEASE_SCHEDULE" envDefault:"0 2 * * *"`
	ReleaseBatch    uint          `env:"RELEASE_BATCH" envDefault:"100"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"30s"`
	ReconcileBatch    uint          `env:"RECONCILE_BATCH" envDefault:"50"`
	ReconcileWorkers  uint          `env:"RECONCILE_WORKERS" envDefault:"5"`

	LogLevel string `env:"LOG_LEVEL"`
}

// LoadConfig собирает конфигурацию из .env (если есть), переменных окружения и флагов args. Переменные окружения
// приоритетнее флагов.
func LoadConfig(args []string) (*Config, error) {
	if dotenvErr := godotenv.Load(); dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %s", dotenvErr.Error())
	}

	var flagsConfig, envConfig Config

	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %s", envParseErr.Error())
	}

	if flagsErr := loadFlags(&flagsConfig, args); flagsErr != nil {
		return nil, fmt.Errorf("parse flags: %s", flagsErr.Error())
	}

	conf := mergeConfig(&envConfig, &flagsConfig)
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return config
}

func (c *Config) validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database DSN is not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT secret is not set")
	}
	if c.GatewayServerKey == "" {
		return errors.New("gateway server key is not set")
	}
	if c.HoldingPeriod <= 0 || c.PaymentExpiry <= 0 {
		return errors.New("holding period and payment expiry must be positive")
	}
	if c.MinWithdrawal <= 0 {
		return errors.New("minimum withdrawal must be positive")
	}
	return nil
}

func loadFlags(flagConfig *Config, args []string) error {
	fSet := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fSet.StringVar(&flagConfig.RunAddress, "a", "localhost:8080", "Run address in format host:port")
	fSet.StringVar(&flagConfig.DatabaseDSN, "d", "", "Database DSN")
	fSet.StringVar(&flagConfig.MigrationsDir, "m", "internal/db/migrations", "Database migrations directory")
	fSet.StringVar(&flagConfig.GatewayAPIURL, "r", "https://api.sandbox.midtrans.com", "Payment gateway API address")
	fSet.StringVar(&flagConfig.JWTSecret, "j", "", "JWT secret key")

	return fSet.Parse(args) //nolint:wrapcheck
}

// mergeConfig поля с флагами берутся из окружения, если там не пусто. Остальные поля задаются только окружением.
func mergeConfig(envConfig, flagsConfig *Config) *Config {
	conf := *envConfig
	conf.RunAddress = defaultIfBlank(envConfig.RunAddress, flagsConfig.RunAddress)
	conf.DatabaseDSN = defaultIfBlank(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN)
	conf.MigrationsDir = defaultIfBlank(envConfig.MigrationsDir, flagsConfig.MigrationsDir)
	conf.GatewayAPIURL = defaultIfBlank(envConfig.GatewayAPIURL, flagsConfig.GatewayAPIURL)
	conf.JWTSecret = defaultIfBlank(envConfig.JWTSecret, flagsConfig.JWTSecret)
	return &conf
}

func defaultIfBlank(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
