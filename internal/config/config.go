package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceName    = "catalog-fulfillment"
	ServiceVersion = "0.1.0"

	defaultMySQLDSN = "root:root@tcp(localhost:3306)/fulfillment?parseTime=true"
)

type Config struct {
	Env string

	// DBDriver is mysql, postgres or sqlite. For sqlite DBDSN is a file path;
	// sqlite holds one database-wide write lock, so orders for different
	// products run one at a time instead of in parallel.
	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Optional; empty disables the idempotency guard and the stock mirror.
	RedisAddr string
	// Optional; empty disables event publishing.
	KafkaBroker string
	KafkaTopic  string
	// Optional; empty disables trace export.
	OtelEndpoint string

	HTTPAddr string
	GRPCAddr string

	WorkerCount  int
	QueueSize    int
	TxRetries    int
	OrderTimeout time.Duration
}

// Load reads the environment once. Malformed numbers and durations are
// reported rather than silently defaulted.
func Load() (*Config, error) {
	var errs []string
	intVar := func(key string, def int) int {
		v, err := getenvInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := getenvDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := &Config{
		Env:               getenvDefault("APP_ENV", "production"),
		DBDriver:          strings.ToLower(getenvDefault("DB_DRIVER", "mysql")),
		DBDSN:             os.Getenv("DB_DSN"),
		DBMaxOpenConns:    intVar("DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns:    intVar("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: durVar("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		KafkaBroker:       os.Getenv("KAFKA_BROKER"),
		KafkaTopic:        getenvDefault("KAFKA_TOPIC", "inventory.stock-reserved"),
		OtelEndpoint:      os.Getenv("OTEL_ENDPOINT"),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		GRPCAddr:          getenvDefault("GRPC_ADDR", ":50051"),
		WorkerCount:       intVar("WORKER_COUNT", 10),
		QueueSize:         intVar("QUEUE_SIZE", 10000),
		TxRetries:         intVar("TX_RETRIES", 3),
		OrderTimeout:      durVar("ORDER_TIMEOUT", 5*time.Second),
	}
	if cfg.DBDSN == "" {
		switch cfg.DBDriver {
		case "mysql":
			cfg.DBDSN = defaultMySQLDSN
		case "sqlite":
			cfg.DBDSN = "fulfillment.db"
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "mysql", "postgres", "postgresql", "pg":
		if c.DBDSN == "" {
			return fmt.Errorf("config: DB_DSN is required for driver %s", c.DBDriver)
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("config: WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("config: QUEUE_SIZE must be positive, got %d", c.QueueSize)
	}
	if c.TxRetries < 0 {
		return fmt.Errorf("config: TX_RETRIES must not be negative, got %d", c.TxRetries)
	}
	if c.OrderTimeout <= 0 {
		return fmt.Errorf("config: ORDER_TIMEOUT must be positive, got %s", c.OrderTimeout)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}
