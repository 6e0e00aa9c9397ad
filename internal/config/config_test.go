package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "DB_DRIVER", "DB_DSN", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
		"DB_CONN_MAX_LIFETIME", "REDIS_ADDR", "KAFKA_BROKER", "KAFKA_TOPIC",
		"OTEL_ENDPOINT", "HTTP_ADDR", "GRPC_ADDR", "WORKER_COUNT", "QUEUE_SIZE",
		"TX_RETRIES", "ORDER_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBDriver != "mysql" || cfg.DBDSN != defaultMySQLDSN {
		t.Errorf("unexpected database defaults: %s %s", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.KafkaTopic != "inventory.stock-reserved" {
		t.Errorf("unexpected topic: %s", cfg.KafkaTopic)
	}
	if cfg.WorkerCount != 10 || cfg.QueueSize != 10000 || cfg.TxRetries != 3 {
		t.Errorf("unexpected worker defaults: %+v", cfg)
	}
	if cfg.OrderTimeout != 5*time.Second {
		t.Errorf("unexpected order timeout: %s", cfg.OrderTimeout)
	}
	if cfg.RedisAddr != "" || cfg.KafkaBroker != "" {
		t.Error("optional dependencies should default to disabled")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "postgres://localhost/catalog")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("ORDER_TIMEOUT", "250ms")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("expected lowercased driver, got %s", cfg.DBDriver)
	}
	if cfg.WorkerCount != 4 || cfg.OrderTimeout != 250*time.Millisecond {
		t.Errorf("unexpected overrides: %+v", cfg)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected redis addr: %s", cfg.RedisAddr)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"WORKER_COUNT": "many"}, "WORKER_COUNT"},
		{"bad duration", map[string]string{"ORDER_TIMEOUT": "5"}, "ORDER_TIMEOUT"},
		{"postgres without dsn", map[string]string{"DB_DRIVER": "postgres", "DB_DSN": ""}, "DB_DSN is required"},
		{"unknown driver", map[string]string{"DB_DRIVER": "oracle"}, "unsupported DB_DRIVER"},
		{"zero workers", map[string]string{"WORKER_COUNT": "0"}, "WORKER_COUNT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_DRIVER", "")
			t.Setenv("DB_DSN", "")
			t.Setenv("WORKER_COUNT", "")
			t.Setenv("ORDER_TIMEOUT", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_SQLiteDefaultPath(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBDSN != "fulfillment.db" {
		t.Errorf("expected default sqlite path, got %s", cfg.DBDSN)
	}
}
